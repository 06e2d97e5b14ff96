package gateway_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/educhain-dev/educhain/internal/gateway"
)

func TestRateLimiterBlocksAfterBurst(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(gateway.RateLimiter(1, 2))
	router.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	get := func(addr string) int {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.RemoteAddr = addr
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w.Code
	}

	for i := 0; i < 2; i++ {
		if code := get("10.0.0.1:1234"); code != http.StatusOK {
			t.Fatalf("request %d: status %d, want 200", i+1, code)
		}
	}
	if code := get("10.0.0.1:1234"); code != http.StatusTooManyRequests {
		t.Errorf("burst exhausted: status %d, want 429", code)
	}

	// Buckets are per client IP.
	if code := get("10.0.0.2:1234"); code != http.StatusOK {
		t.Errorf("other client: status %d, want 200", code)
	}
}
