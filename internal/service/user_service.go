package service

import (
	"context"
	"errors"
	"time"

	"tender-kb-go/internal/model"
	"tender-kb-go/internal/repository"
	"tender-kb-go/pkg/database"
	"tender-kb-go/pkg/hash"
	"tender-kb-go/pkg/token"

	"gorm.io/gorm"
)

// Ошибки пользовательских операций.
var (
	ErrInvalidCredentials   = errors.New("Неверное имя пользователя или пароль")
	ErrUserExists           = errors.New("Пользователь с таким именем уже существует")
	ErrWrongCurrentPassword = errors.New("Неверный текущий пароль")
	ErrUserInactive         = errors.New("Учётная запись отключена")
)

// UserService определяет операции с пользователями.
type UserService interface {
	Register(username, password, fullName string) (*model.User, error)
	Login(username, password string) (accessToken, refreshToken string, err error)
	GetProfile(username string) (*model.User, error)
	Logout(tokenString string) error
	ChangePassword(username, currentPassword, newPassword string) error
	RefreshToken(refreshTokenString string) (newAccessToken, newRefreshToken string, err error)
	ListUsers(offset, limit int) ([]model.User, int64, error)
	SetActive(userID uint, active bool) error
}

// userService — реализация интерфейса UserService.
type userService struct {
	userRepo   repository.UserRepository
	jwtManager *token.JWTManager
}

// NewUserService создаёт новый экземпляр UserService.
func NewUserService(userRepo repository.UserRepository, jwtManager *token.JWTManager) UserService {
	return &userService{
		userRepo:   userRepo,
		jwtManager: jwtManager,
	}
}

// Register регистрирует нового пользователя.
func (s *userService) Register(username, password, fullName string) (*model.User, error) {
	// 1. Проверяем, не занято ли имя пользователя
	_, err := s.userRepo.FindByUsername(username)
	if err == nil {
		return nil, ErrUserExists
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	// 2. Хешируем пароль
	hashedPassword, err := hash.HashPassword(password)
	if err != nil {
		return nil, err
	}

	// 3. Создаём пользователя с ролью по умолчанию
	newUser := &model.User{
		Username: username,
		Password: hashedPassword,
		FullName: fullName,
		Role:     model.RoleUser,
		IsActive: true,
	}

	if err := s.userRepo.Create(newUser); err != nil {
		return nil, err
	}
	return newUser, nil
}

// Login проверяет учётные данные и выпускает пару токенов.
func (s *userService) Login(username, password string) (accessToken, refreshToken string, err error) {
	// 1. Ищем пользователя
	user, err := s.userRepo.FindByUsername(username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", "", ErrInvalidCredentials
		}
		return "", "", err
	}

	// 2. Проверяем пароль и активность учётной записи
	if !hash.CheckPasswordHash(password, user.Password) {
		return "", "", ErrInvalidCredentials
	}
	if !user.IsActive {
		return "", "", ErrUserInactive
	}

	// 3. Выпускаем access и refresh токены
	accessToken, err = s.jwtManager.GenerateToken(user.ID, user.Username, user.Role)
	if err != nil {
		return "", "", err
	}
	refreshToken, err = s.jwtManager.GenerateRefreshToken(user.ID, user.Username, user.Role)
	if err != nil {
		return "", "", err
	}

	return accessToken, refreshToken, nil
}

// GetProfile возвращает данные пользователя по имени.
func (s *userService) GetProfile(username string) (*model.User, error) {
	user, err := s.userRepo.FindByUsername(username)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// Logout помещает токен в чёрный список в Redis.
// Остаток срока действия токена используется как срок жизни ключа.
func (s *userService) Logout(tokenString string) error {
	claims, err := s.jwtManager.VerifyToken(tokenString)
	if err != nil {
		return err
	}
	expiration := time.Until(claims.ExpiresAt.Time)
	return database.RDB.Set(context.Background(), "blacklist:"+tokenString, "true", expiration).Err()
}

// IsTokenBlacklisted проверяет, не отозван ли токен.
func IsTokenBlacklisted(tokenString string) bool {
	exists, err := database.RDB.Exists(context.Background(), "blacklist:"+tokenString).Result()
	return err == nil && exists > 0
}

// ChangePassword меняет пароль после проверки текущего.
func (s *userService) ChangePassword(username, currentPassword, newPassword string) error {
	user, err := s.userRepo.FindByUsername(username)
	if err != nil {
		return err
	}
	if !hash.CheckPasswordHash(currentPassword, user.Password) {
		return ErrWrongCurrentPassword
	}
	hashedPassword, err := hash.HashPassword(newPassword)
	if err != nil {
		return err
	}
	user.Password = hashedPassword
	return s.userRepo.Update(user)
}

// RefreshToken проверяет refresh token и выпускает новую пару токенов.
func (s *userService) RefreshToken(refreshTokenString string) (newAccessToken, newRefreshToken string, err error) {
	// 1. Проверяем refresh token
	claims, err := s.jwtManager.VerifyToken(refreshTokenString)
	if err != nil {
		return "", "", errors.New("invalid refresh token")
	}

	// 2. Проверяем, что пользователь существует
	user, err := s.userRepo.FindByUsername(claims.Username)
	if err != nil {
		return "", "", errors.New("user not found")
	}

	// 3. Выпускаем новые токены
	newAccessToken, err = s.jwtManager.GenerateToken(user.ID, user.Username, user.Role)
	if err != nil {
		return "", "", err
	}
	newRefreshToken, err = s.jwtManager.GenerateRefreshToken(user.ID, user.Username, user.Role)
	if err != nil {
		return "", "", err
	}

	return newAccessToken, newRefreshToken, nil
}

// ListUsers возвращает страницу пользователей.
func (s *userService) ListUsers(offset, limit int) ([]model.User, int64, error) {
	return s.userRepo.FindWithPagination(offset, limit)
}

// SetActive включает или отключает учётную запись.
func (s *userService) SetActive(userID uint, active bool) error {
	user, err := s.userRepo.FindByID(userID)
	if err != nil {
		return err
	}
	user.IsActive = active
	return s.userRepo.Update(user)
}
