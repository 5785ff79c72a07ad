// Package model определяет Go-структуры, соответствующие таблицам базы данных.
package model

import "time"

// Роли пользователей.
const (
	RoleAdmin = "ADMIN"
	RoleUser  = "USER"
)

// User — ORM-модель таблицы users.
type User struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Username  string    `gorm:"type:varchar(255);not null;uniqueIndex" json:"username"`
	Password  string    `gorm:"type:varchar(255);not null" json:"-"`
	FullName  string    `gorm:"type:varchar(255)" json:"full_name"`
	Role      string    `gorm:"type:varchar(20);not null;default:USER" json:"role"`
	IsActive  bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName задаёт имя таблицы для этой модели.
func (User) TableName() string {
	return "users"
}
