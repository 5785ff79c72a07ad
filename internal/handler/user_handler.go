package handler

import (
	"errors"
	"net/http"
	"strconv"

	"tender-kb-go/internal/model"
	"tender-kb-go/internal/service"
	"tender-kb-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// UserHandler обрабатывает запросы к учётным записям.
type UserHandler struct {
	userService service.UserService
}

// NewUserHandler создаёт новый экземпляр UserHandler.
func NewUserHandler(userService service.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// currentUser достаёт пользователя, положенного в контекст AuthMiddleware.
func currentUser(c *gin.Context) (*model.User, bool) {
	value, exists := c.Get("user")
	if !exists {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Не удалось получить данные пользователя"})
		return nil, false
	}
	user, ok := value.(*model.User)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Некорректный тип данных пользователя"})
		return nil, false
	}
	return user, true
}

// GetProfile возвращает профиль текущего пользователя.
func (h *UserHandler) GetProfile(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, user)
}

// ChangePasswordRequest — тело запроса на смену пароля.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,min=8"`
}

// ChangePassword меняет пароль текущего пользователя.
func (h *UserHandler) ChangePassword(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Укажите текущий пароль и новый пароль длиной не короче 8 символов"})
		return
	}

	if err := h.userService.ChangePassword(user.Username, req.CurrentPassword, req.NewPassword); err != nil {
		if errors.Is(err, service.ErrWrongCurrentPassword) {
			c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
			return
		}
		log.Errorf("[UserHandler] не удалось сменить пароль пользователя %q: %v", user.Username, err)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Не удалось сменить пароль"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"detail": "Пароль изменён"})
}

// RegisterRequest — тело запроса на создание пользователя.
type RegisterRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required,min=8"`
	FullName string `json:"full_name"`
}

// Register создаёт нового пользователя. Доступно только администратору.
func (h *UserHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Укажите имя пользователя и пароль длиной не короче 8 символов"})
		return
	}

	user, err := h.userService.Register(req.Username, req.Password, req.FullName)
	if err != nil {
		if errors.Is(err, service.ErrUserExists) {
			c.JSON(http.StatusConflict, gin.H{"detail": err.Error()})
			return
		}
		log.Errorf("[UserHandler] не удалось создать пользователя %q: %v", req.Username, err)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Не удалось создать пользователя"})
		return
	}

	log.Infof("[UserHandler] создан пользователь %q", user.Username)
	c.JSON(http.StatusCreated, user)
}

// ListUsers возвращает страницу пользователей. Доступно только администратору.
func (h *UserHandler) ListUsers(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	size, _ := strconv.Atoi(c.DefaultQuery("size", "20"))
	if size < 1 || size > 100 {
		size = 20
	}

	users, total, err := h.userService.ListUsers((page-1)*size, size)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Не удалось получить список пользователей"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": users, "total": total, "page": page, "size": size})
}

// SetActiveRequest — тело запроса на включение или отключение учётной записи.
type SetActiveRequest struct {
	IsActive *bool `json:"is_active" binding:"required"`
}

// SetActive включает или отключает учётную запись. Доступно только администратору.
func (h *UserHandler) SetActive(c *gin.Context) {
	userID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Некорректный идентификатор пользователя"})
		return
	}
	var req SetActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Укажите is_active"})
		return
	}

	if err := h.userService.SetActive(uint(userID), *req.IsActive); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Не удалось изменить состояние учётной записи"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"detail": "Состояние учётной записи изменено"})
}
