package database

import (
	"context"

	"tender-kb-go/pkg/log"

	"github.com/go-redis/redis/v8"
)

var RDB *redis.Client

// InitRedis инициализирует клиент Redis.
func InitRedis(addr, password string, db int) {
	RDB = redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	// Проверка соединения.
	ctx := context.Background()
	if err := RDB.Ping(ctx).Err(); err != nil {
		log.Fatal("не удалось подключиться к Redis", err)
	}

	log.Info("Подключение к Redis установлено")
}
