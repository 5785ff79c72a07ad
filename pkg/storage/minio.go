// Package storage предоставляет функции работы с объектным хранилищем MinIO.
package storage

import (
	"context"
	"time"

	"tender-kb-go/internal/config"
	"tender-kb-go/pkg/log"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioClient — глобальный экземпляр клиента MinIO.
var MinioClient *minio.Client

// InitMinIO инициализирует клиент MinIO и убеждается, что бакет существует.
func InitMinIO(cfg config.MinIOConfig) {
	var err error

	MinioClient, err = minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		log.Fatal("инициализация клиента MinIO не удалась", err)
	}

	log.Info("Клиент MinIO инициализирован")

	ctx := context.Background()
	bucketName := cfg.BucketName
	exists, err := MinioClient.BucketExists(ctx, bucketName)
	if err != nil {
		log.Fatal("проверка бакета MinIO не удалась", err)
	}

	if !exists {
		log.Infof("Бакет '%s' не найден, создаём...", bucketName)
		err = MinioClient.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{})
		if err != nil {
			log.Fatal("создание бакета MinIO не удалось", err)
		}
		log.Infof("Бакет '%s' создан", bucketName)
	} else {
		log.Infof("Бакет '%s' уже существует", bucketName)
	}
}

// GetPresignedURL возвращает временную ссылку на объект.
func GetPresignedURL(bucketName, objectName string, expiry time.Duration) (string, error) {
	presignedURL, err := MinioClient.PresignedGetObject(context.Background(), bucketName, objectName, expiry, nil)
	if err != nil {
		log.Errorf("Не удалось сгенерировать presigned URL: %s", err)
		return "", err
	}
	return presignedURL.String(), nil
}
