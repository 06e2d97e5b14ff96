package gateway

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/educhain-dev/educhain/internal/identity"
)

const callerContextKey = "educhain.caller"

// AuthHandler issues identity tokens in exchange for enrollment credentials.
type AuthHandler struct {
	tokens      *identity.TokenIssuer
	enroll      *identity.EnrollmentStore
	adminSecret string
	logger      *zap.Logger
}

// NewAuthHandler creates an AuthHandler. adminSecret may be empty to
// disable bootstrap admin token issuance.
func NewAuthHandler(tokens *identity.TokenIssuer, enroll *identity.EnrollmentStore, adminSecret string, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{tokens: tokens, enroll: enroll, adminSecret: adminSecret, logger: logger}
}

// Register mounts the auth routes on the given router group.
func (h *AuthHandler) Register(rg *gin.RouterGroup) {
	rg.POST("/auth/token", h.Token)
}

type tokenRequest struct {
	DNI    string `json:"dni"`
	Secret string `json:"secret"`
	// AdminSecret exchanges the static bootstrap secret for an admin token.
	AdminSecret string `json:"admin_secret"`
}

// Token handles POST /auth/token.
func (h *AuthHandler) Token(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.AdminSecret != "" {
		if h.adminSecret == "" ||
			subtle.ConstantTimeCompare([]byte(req.AdminSecret), []byte(h.adminSecret)) != 1 {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid admin secret"})
			return
		}
		token, err := h.tokens.IssueAdmin(0)
		if err != nil {
			h.logger.Error("issue admin token", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"token": token})
		return
	}

	if err := h.enroll.Verify(req.DNI, req.Secret); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	token, err := h.tokens.IssueParticipant(req.DNI)
	if err != nil {
		h.logger.Error("issue participant token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

// RequireToken returns a middleware that verifies the bearer token and
// stores the resolved Caller on the request context.
func RequireToken(tokens *identity.TokenIssuer, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		claims, err := tokens.Verify(raw)
		if err != nil {
			logger.Debug("token rejected", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(callerContextKey, claims.Caller())
		c.Next()
	}
}

// CallerFrom returns the Caller resolved by RequireToken. The zero caller
// (no attributes) is returned when the middleware did not run.
func CallerFrom(c *gin.Context) *identity.Caller {
	if v, ok := c.Get(callerContextKey); ok {
		if caller, ok := v.(*identity.Caller); ok {
			return caller
		}
	}
	return identity.NewCaller(nil)
}
