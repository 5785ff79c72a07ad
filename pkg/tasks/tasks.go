// Package tasks описывает структуры задач, отправляемых в Kafka.
package tasks

import "strconv"

// Действия задачи индексации.
const (
	ActionIndex  = "index"
	ActionDelete = "delete"
)

// IndexTask — задача обновления поискового индекса по тендеру или позиции.
type IndexTask struct {
	Action     string `json:"action"`
	EntityType string `json:"entity_type"` // tender или position
	EntityID   uint   `json:"entity_id"`
	TenderID   uint   `json:"tender_id"`
}

// Key возвращает ключ дедупликации задачи.
func (t IndexTask) Key() string {
	return t.EntityType + ":" + strconv.FormatUint(uint64(t.EntityID), 10)
}
