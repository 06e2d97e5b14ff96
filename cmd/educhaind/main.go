package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/educhain-dev/educhain/internal/credential"
	"github.com/educhain-dev/educhain/internal/gateway"
	"github.com/educhain-dev/educhain/internal/identity"
	"github.com/educhain-dev/educhain/internal/statestore"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync() //nolint:errcheck

	if err := run(logger); err != nil {
		logger.Fatal("educhaind exited with error", zap.Error(err))
	}
}

func run(logger *zap.Logger) error {
	// ── Configuration ────────────────────────────────────────────────────────
	viper.SetConfigName("educhain")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("configs")
	viper.AddConfigPath(".")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("gateway.port", 8080)
	viper.SetDefault("gateway.issuer_url", "")
	viper.SetDefault("gateway.cors_origins", []string{"http://localhost:3000"})
	viper.SetDefault("gateway.rate_limit_rps", 20)
	viper.SetDefault("gateway.admin_secret", "")
	viper.SetDefault("database.url", "")
	viper.SetDefault("identity.key_file", "certs/signing.pem")
	viper.SetDefault("identity.token_ttl_seconds", 3600)

	if err := viper.ReadInConfig(); err != nil {
		var cfgNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgNotFound) {
			return fmt.Errorf("read config: %w", err)
		}
		logger.Warn("no config file found, using defaults and env vars")
	}

	// ── State store ──────────────────────────────────────────────────────────
	var store statestore.Store
	if dbURL := viper.GetString("database.url"); dbURL != "" {
		db, err := pgxpool.New(context.Background(), dbURL)
		if err != nil {
			return fmt.Errorf("connect to postgres: %w", err)
		}
		defer db.Close()
		if err := db.Ping(context.Background()); err != nil {
			return fmt.Errorf("ping postgres: %w", err)
		}
		pgStore := statestore.NewPostgresStore(db, logger)
		if err := pgStore.EnsureSchema(context.Background()); err != nil {
			return err
		}
		store = pgStore
		logger.Info("state store: postgres")
	} else {
		store = statestore.NewMemStore()
		logger.Warn("state store: in-memory (set database.url for durable state)")
	}

	// ── Identity ─────────────────────────────────────────────────────────────
	key, err := identity.LoadOrCreateKey(viper.GetString("identity.key_file"))
	if err != nil {
		return fmt.Errorf("signing key: %w", err)
	}

	httpPort := viper.GetInt("gateway.port")
	issuerURL := viper.GetString("gateway.issuer_url")
	if issuerURL == "" {
		issuerURL = fmt.Sprintf("http://localhost:%d", httpPort)
	}
	tokenTTL := time.Duration(viper.GetInt("identity.token_ttl_seconds")) * time.Second
	tokens := identity.NewTokenIssuer(key, issuerURL, tokenTTL)
	enroll := identity.NewEnrollmentStore(logger)

	adminSecret := viper.GetString("gateway.admin_secret")
	if adminSecret == "" {
		logger.Warn("gateway.admin_secret not set, bootstrap admin tokens disabled")
	}

	// ── Wire up layers ───────────────────────────────────────────────────────
	contract := credential.NewContract(logger)
	credHandler := gateway.NewCredentialHandler(store, contract, enroll, logger)
	authHandler := gateway.NewAuthHandler(tokens, enroll, adminSecret, logger)

	// ── HTTP Router ──────────────────────────────────────────────────────────
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	corsOrigins := viper.GetStringSlice("gateway.cors_origins")
	router.Use(cors.New(cors.Config{
		AllowOrigins:     corsOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: !containsWildcard(corsOrigins),
		MaxAge:           12 * time.Hour,
	}))

	// Request body size limit (1 MB)
	router.Use(func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, 1<<20)
		c.Next()
	})

	if rps := viper.GetInt("gateway.rate_limit_rps"); rps > 0 {
		router.Use(gateway.RateLimiter(rps, rps*2))
	}
	router.Use(gateway.PrometheusMiddleware())
	router.Use(requestLogger(logger))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gateway.MetricsHandler())

	v1 := router.Group("/api/v1")
	authHandler.Register(v1)
	protected := v1.Group("")
	protected.Use(gateway.RequireToken(tokens, logger))
	credHandler.Register(protected)

	// ── Serve ────────────────────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", httpPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("gateway listening", zap.Int("port", httpPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP listen error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("shutting down gateway...")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("HTTP shutdown error", zap.Error(err))
	}

	logger.Info("gateway stopped")
	return nil
}

// containsWildcard returns true if origins includes "*".
func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if strings.TrimSpace(o) == "*" {
			return true
		}
	}
	return false
}

// requestLogger returns a Gin middleware that logs each request with zap.
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}
