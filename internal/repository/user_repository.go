// Package repository определяет интерфейсы и реализации доступа к базе данных.
package repository

import (
	"tender-kb-go/internal/model"

	"gorm.io/gorm"
)

// UserRepository определяет операции с пользователями.
type UserRepository interface {
	Create(user *model.User) error
	FindByUsername(username string) (*model.User, error)
	FindByID(userID uint) (*model.User, error)
	Update(user *model.User) error
	FindAll() ([]model.User, error)
	FindWithPagination(offset, limit int) ([]model.User, int64, error)
}

// userRepository — GORM-реализация интерфейса UserRepository.
type userRepository struct {
	db *gorm.DB
}

// NewUserRepository создаёт новый экземпляр UserRepository.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

// Create создаёт новую запись пользователя.
func (r *userRepository) Create(user *model.User) error {
	return r.db.Create(user).Error
}

// FindByUsername ищет пользователя по имени.
func (r *userRepository) FindByUsername(username string) (*model.User, error) {
	var user model.User
	err := r.db.Where("username = ?", username).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByID ищет пользователя по идентификатору.
func (r *userRepository) FindByID(userID uint) (*model.User, error) {
	var user model.User
	err := r.db.First(&user, userID).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Update сохраняет изменения существующего пользователя.
func (r *userRepository) Update(user *model.User) error {
	return r.db.Save(user).Error
}

// FindAll возвращает всех пользователей.
func (r *userRepository) FindAll() ([]model.User, error) {
	var users []model.User
	err := r.db.Find(&users).Error
	return users, err
}

// FindWithPagination возвращает страницу пользователей и общее количество.
func (r *userRepository) FindWithPagination(offset, limit int) ([]model.User, int64, error) {
	var users []model.User
	var total int64

	db := r.db.Model(&model.User{})

	err := db.Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	err = db.Offset(offset).Limit(limit).Find(&users).Error
	if err != nil {
		return nil, 0, err
	}

	return users, total, nil
}
