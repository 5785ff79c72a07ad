// Package handler содержит контроллеры HTTP-запросов.
package handler

import (
	"errors"
	"net/http"
	"strings"

	"tender-kb-go/internal/service"
	"tender-kb-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// AuthHandler обрабатывает вход, выход и обновление токенов.
type AuthHandler struct {
	userService service.UserService
}

// NewAuthHandler создаёт новый экземпляр AuthHandler.
func NewAuthHandler(userService service.UserService) *AuthHandler {
	return &AuthHandler{userService: userService}
}

// Login обрабатывает вход по форме username/password.
func (h *AuthHandler) Login(c *gin.Context) {
	username := c.PostForm("username")
	password := c.PostForm("password")
	if username == "" || password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Укажите имя пользователя и пароль"})
		return
	}

	accessToken, refreshToken, err := h.userService.Login(username, password)
	if err != nil {
		if errors.Is(err, service.ErrUserInactive) {
			c.JSON(http.StatusForbidden, gin.H{"detail": err.Error()})
			return
		}
		log.Warnf("[AuthHandler] неудачная попытка входа для %q: %v", username, err)
		c.JSON(http.StatusUnauthorized, gin.H{"detail": service.ErrInvalidCredentials.Error()})
		return
	}

	log.Infof("[AuthHandler] пользователь %q вошёл в систему", username)
	c.JSON(http.StatusOK, gin.H{
		"access_token":  accessToken,
		"refresh_token": refreshToken,
		"token_type":    "bearer",
	})
}

// RefreshRequest — тело запроса на обновление токенов.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// Refresh выдаёт новую пару токенов по refresh-токену.
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Укажите refresh_token"})
		return
	}

	accessToken, refreshToken, err := h.userService.RefreshToken(req.RefreshToken)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "Недействительный refresh-токен"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token":  accessToken,
		"refresh_token": refreshToken,
		"token_type":    "bearer",
	})
}

// Logout отзывает текущий access-токен.
func (h *AuthHandler) Logout(c *gin.Context) {
	authHeader := c.GetHeader("Authorization")
	tokenString := strings.TrimPrefix(authHeader, "Bearer ")
	if tokenString == "" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Запрос не содержит токен"})
		return
	}
	if err := h.userService.Logout(tokenString); err != nil {
		log.Errorf("[AuthHandler] не удалось отозвать токен: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Не удалось завершить сеанс"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"detail": "Сеанс завершён"})
}
