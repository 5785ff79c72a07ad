// Package middleware содержит промежуточные обработчики HTTP-запросов.
package middleware

import (
	"net/http"
	"strings"

	"tender-kb-go/internal/service"
	"tender-kb-go/pkg/token"

	"github.com/gin-gonic/gin"
)

// AuthMiddleware проверяет JWT из заголовка Authorization, отвергает
// отозванные токены и кладёт полный объект пользователя в контекст Gin.
func AuthMiddleware(jwtManager *token.JWTManager, userService service.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Запрос не содержит заголовок авторизации"})
			return
		}

		const bearerPrefix = "Bearer "
		if !strings.HasPrefix(authHeader, bearerPrefix) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Неверный формат заголовка авторизации"})
			return
		}
		tokenString := strings.TrimPrefix(authHeader, bearerPrefix)

		claims, err := jwtManager.VerifyToken(tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Недействительный или просроченный токен"})
			return
		}

		// Токен мог быть отозван при выходе из системы
		if service.IsTokenBlacklisted(tokenString) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Токен отозван"})
			return
		}

		user, err := userService.GetProfile(claims.Username)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Пользователь не найден"})
			return
		}
		if !user.IsActive {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Учётная запись отключена"})
			return
		}

		// Полный объект пользователя доступен обработчикам дальше по цепочке
		c.Set("user", user)
		c.Set("claims", claims)
		c.Next()
	}
}
