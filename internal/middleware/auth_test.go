package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"quiz-bot-go/internal/service"
	"quiz-bot-go/pkg/token"
	"testing"

	"github.com/gin-gonic/gin"
)

type stubAuth struct {
	service.AuthService
	revoked map[string]bool
}

func (s *stubAuth) IsRevoked(_ context.Context, tokenString string) bool {
	return s.revoked[tokenString]
}

func protected(jwt *token.JWTManager, auth service.AuthService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/admin", AuthMiddleware(jwt, auth), AdminAuthMiddleware(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func call(r http.Handler, authHeader string) int {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	r.ServeHTTP(w, req)
	return w.Code
}

func TestAuthMiddleware(t *testing.T) {
	jwt := token.NewJWTManager("test-secret", 1, 1)
	admin, _ := jwt.GenerateToken("admin", service.RoleAdmin)
	refresh, _ := jwt.GenerateRefreshToken("admin", service.RoleAdmin)
	viewer, _ := jwt.GenerateToken("viewer", "USER")
	revoked, _ := jwt.GenerateToken("admin2", service.RoleAdmin)

	r := protected(jwt, &stubAuth{revoked: map[string]bool{revoked: true}})

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Token " + admin, http.StatusUnauthorized},
		{"garbage token", "Bearer nope", http.StatusUnauthorized},
		{"refresh token", "Bearer " + refresh, http.StatusUnauthorized},
		{"revoked token", "Bearer " + revoked, http.StatusUnauthorized},
		{"non-admin role", "Bearer " + viewer, http.StatusForbidden},
		{"admin", "Bearer " + admin, http.StatusNoContent},
	}
	for _, tc := range cases {
		if got := call(r, tc.header); got != tc.want {
			t.Errorf("%s: status = %d, want %d", tc.name, got, tc.want)
		}
	}
}
