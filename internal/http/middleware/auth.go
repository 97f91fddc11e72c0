package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/credit-transaction-service/internal/service"
)

// Context ключи для gin.Context.
const (
	ContextUserIDKey    = "userID"
	ContextRoleKey      = "role"
	ContextRequestIDKey = "requestID"
)

// InternalTokenHeader - заголовок для служебных вызовов платёжного и кредитного сервисов.
const InternalTokenHeader = "X-Internal-Token"

// AuthMiddleware проверяет JWT access токен из заголовка Authorization или query-параметра token.
// Query-параметр нужен для WebSocket, где браузер не умеет передавать заголовки.
func AuthMiddleware(tokens *service.TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := bearerToken(c.GetHeader("Authorization"))
		if raw == "" {
			raw = c.Query("token")
		}
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "требуется авторизация"})
			return
		}

		userID, role, err := tokens.ParseAccess(raw)
		if err != nil || userID <= 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "токен невалиден"})
			return
		}

		c.Set(ContextUserIDKey, userID)
		c.Set(ContextRoleKey, role)
		c.Next()
	}
}

// InternalTokenMiddleware пропускает только запросы с общим служебным секретом.
func InternalTokenMiddleware(token string) gin.HandlerFunc {
	expected := []byte(token)
	return func(c *gin.Context) {
		got := c.GetHeader(InternalTokenHeader)
		if got == "" {
			got = bearerToken(c.GetHeader("Authorization"))
		}
		if len(expected) == 0 || subtle.ConstantTimeCompare([]byte(got), expected) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "неверный служебный токен"})
			return
		}
		c.Next()
	}
}

func bearerToken(header string) string {
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}
