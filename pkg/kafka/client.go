// Package kafka предоставляет функции работы с очередью сообщений Kafka.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"tender-kb-go/internal/config"
	"tender-kb-go/pkg/database"
	"tender-kb-go/pkg/log"
	"tender-kb-go/pkg/tasks"

	"github.com/segmentio/kafka-go"
)

// TaskProcessor — интерфейс обработчика задач индексации.
// Отвязывает консьюмер Kafka от конкретной реализации пайплайна.
type TaskProcessor interface {
	Process(ctx context.Context, task tasks.IndexTask) error
}

var producer *kafka.Writer

// InitProducer инициализирует продюсер Kafka.
func InitProducer(cfg config.KafkaConfig) {
	producer = &kafka.Writer{
		Addr:     kafka.TCP(cfg.Brokers),
		Topic:    cfg.Topic,
		Balancer: &kafka.LeastBytes{},
	}
	log.Info("Продюсер Kafka инициализирован")
}

// ProduceIndexTask отправляет задачу индексации в Kafka.
// До инициализации продюсера задачи молча отбрасываются.
func ProduceIndexTask(task tasks.IndexTask) error {
	if producer == nil {
		return nil
	}
	taskBytes, err := json.Marshal(task)
	if err != nil {
		return err
	}

	err = producer.WriteMessages(context.Background(),
		kafka.Message{
			Key:   []byte(task.Key()),
			Value: taskBytes,
		},
	)
	return err
}

// StartConsumer запускает консьюмер Kafka для обработки задач индексации.
func StartConsumer(cfg config.KafkaConfig, processor TaskProcessor) {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  []string{cfg.Brokers},
		Topic:    cfg.Topic,
		GroupID:  "tender-kb-go-consumer",
		MinBytes: 10e3, // 10KB
		MaxBytes: 10e6, // 10MB
	})

	log.Infof("Консьюмер Kafka запущен, слушаем топик '%s'", cfg.Topic)

	for {
		m, err := r.FetchMessage(context.Background())
		if err != nil {
			log.Error("не удалось прочитать сообщение из Kafka", err)
			break
		}

		log.Infof("Получено сообщение Kafka: offset %d", m.Offset)

		var task tasks.IndexTask
		if err := json.Unmarshal(m.Value, &task); err != nil {
			log.Errorf("Не удалось разобрать сообщение Kafka: %v, value: %s", err, string(m.Value))
			// Формат сообщения сломан: коммитим сразу, чтобы не блокировать очередь.
			if err := r.CommitMessages(context.Background(), m); err != nil {
				log.Errorf("Не удалось закоммитить ошибочное сообщение: %v", err)
			}
			continue
		}

		log.Infof("Начата обработка задачи индексации: %s", task.Key())
		if err := processor.Process(context.Background(), task); err != nil {
			log.Errorf("Обработка задачи индексации не удалась: %s, ошибка: %v", task.Key(), err)
			// Считаем неудачи в Redis; после порога коммитим offset и прекращаем ретраи.
			attemptsKey := fmt.Sprintf("kafka:attempts:%s", task.Key())
			attempts, incErr := database.RDB.Incr(context.Background(), attemptsKey).Result()
			if incErr == nil {
				_ = database.RDB.Expire(context.Background(), attemptsKey, 24*time.Hour).Err()
			}
			if incErr != nil {
				// При недоступном Redis offset не коммитим, Kafka повторит доставку.
				continue
			}
			if attempts >= 3 {
				log.Errorf("Задача индексации провалилась несколько раз (>=3), коммитим offset: %s", task.Key())
				if err := r.CommitMessages(context.Background(), m); err != nil {
					log.Errorf("Не удалось закоммитить offset Kafka: %v", err)
				}
			}
		} else {
			log.Infof("Задача индексации обработана: %s", task.Key())
			_ = database.RDB.Del(context.Background(), fmt.Sprintf("kafka:attempts:%s", task.Key())).Err()
			if err := r.CommitMessages(context.Background(), m); err != nil {
				log.Errorf("Не удалось закоммитить offset Kafka: %v", err)
			}
		}
	}

	if err := r.Close(); err != nil {
		log.Fatalf("Не удалось закрыть консьюмер Kafka: %v", err)
	}
}
