package middleware

import (
	"net/http"

	"tender-kb-go/internal/model"

	"github.com/gin-gonic/gin"
)

// AdminAuthMiddleware пропускает только администраторов.
// Ставится в цепочку после AuthMiddleware.
func AdminAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, exists := c.Get("user")
		if !exists {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"detail": "Не удалось получить данные пользователя"})
			return
		}

		currentUser, ok := user.(*model.User)
		if !ok {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"detail": "Некорректный тип данных пользователя"})
			return
		}

		if currentUser.Role != model.RoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"detail": "Требуются права администратора"})
			return
		}
		c.Next()
	}
}
