package database

import (
	"time"

	"tender-kb-go/pkg/log"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

var DB *gorm.DB

// InitMySQL инициализирует подключение к MySQL.
func InitMySQL(dsn string) {
	var err error
	DB, err = gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("не удалось подключиться к базе данных", err)
	}

	// Настройка пула соединений.
	sqlDB, err := DB.DB()
	if err != nil {
		log.Fatal("не удалось получить sql.DB", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	log.Info("Подключение к MySQL установлено")
}
