package model

import (
	"time"

	"gorm.io/datatypes"
)

// Действия аудит-лога.
const (
	AuditCreated             = "created"
	AuditUpdated             = "updated"
	AuditStageChanged        = "stage_changed"
	AuditResponsibleAssigned = "responsible_assigned"
	AuditEngineerAssigned    = "engineer_assigned"
	AuditPositionAdded       = "position_added"
	AuditPositionUpdated     = "position_updated"
	AuditPositionDeleted     = "position_deleted"
	AuditFileUploaded        = "file_uploaded"
	AuditFileDeleted         = "file_deleted"
	AuditSchemaPublished     = "schema_published"
	AuditNodeArchived        = "node_archived"
)

// AuditLog — запись журнала действий. Привязка к тендеру опциональна:
// записи по номенклатуре хранятся с entity_type/entity_id без tender_id.
type AuditLog struct {
	ID         uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	TenderID   *uint          `gorm:"index" json:"tender_id,omitempty"`
	EntityType string         `gorm:"type:varchar(50);not null;default:tender" json:"entity_type"`
	EntityID   *uint          `json:"entity_id,omitempty"`
	UserID     *uint          `json:"user_id,omitempty"`
	Action     string         `gorm:"type:varchar(50);not null" json:"action"`
	Details    datatypes.JSON `gorm:"type:json" json:"details"`
	CreatedAt  time.Time      `gorm:"autoCreateTime" json:"created_at"`
}

// TableName задаёт имя таблицы для этой модели.
func (AuditLog) TableName() string {
	return "audit_logs"
}
