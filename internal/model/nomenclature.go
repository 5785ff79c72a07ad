package model

import (
	"time"

	"gorm.io/datatypes"
)

// Типы узлов классификатора.
const (
	NodeTypeSegment  = "segment"
	NodeTypeFamily   = "family"
	NodeTypeClass    = "class"
	NodeTypeCategory = "category"
)

// Статусы узла классификатора.
const (
	NodeStatusDraft    = "draft"
	NodeStatusActive   = "active"
	NodeStatusArchived = "archived"
)

// Статусы версии схемы и пресета.
const (
	SchemaStatusDraft     = "draft"
	SchemaStatusReview    = "review"
	SchemaStatusPublished = "published"
	SchemaStatusArchived  = "archived"
)

// Режимы применения пресета к схеме.
const (
	PresetModeInclude = "include"
	PresetModeExclude = "exclude"
)

// NomenclatureNode — узел дерева классификатора номенклатуры.
type NomenclatureNode struct {
	ID            uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	ParentID      *uint          `gorm:"index" json:"parent_id,omitempty"`
	Code          string         `gorm:"type:varchar(32);not null;uniqueIndex" json:"code"`
	Name          string         `gorm:"type:varchar(255);not null" json:"name"`
	NodeType      string         `gorm:"type:varchar(20);not null;index" json:"node_type"`
	Depth         int            `gorm:"type:smallint;not null;default:0" json:"depth"`
	Version       int            `gorm:"not null;default:1" json:"version"`
	EffectiveFrom time.Time      `gorm:"not null" json:"effective_from"`
	EffectiveTo   *time.Time     `json:"effective_to,omitempty"`
	Status        string         `gorm:"type:varchar(20);not null;default:draft;index" json:"status"`
	IsArchived    bool           `gorm:"not null;default:false" json:"is_archived"`
	Meta          datatypes.JSON `gorm:"column:metadata;type:json" json:"metadata"`
}

// TableName задаёт имя таблицы для этой модели.
func (NomenclatureNode) TableName() string {
	return "nomenclature_nodes"
}

// NomenclatureNodeVersion — снимок узла на момент очередной версии.
// Пара (node_id, version) уникальна.
type NomenclatureNodeVersion struct {
	ID            uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	NodeID        uint           `gorm:"not null;index;uniqueIndex:uq_nomenclature_node_version" json:"node_id"`
	Version       int            `gorm:"not null;uniqueIndex:uq_nomenclature_node_version" json:"version"`
	ParentID      *uint          `gorm:"index" json:"parent_id,omitempty"`
	Code          string         `gorm:"type:varchar(32);not null" json:"code"`
	Name          string         `gorm:"type:varchar(255);not null" json:"name"`
	NodeType      string         `gorm:"type:varchar(20);not null" json:"node_type"`
	Depth         int            `gorm:"type:smallint;not null;default:0" json:"depth"`
	Status        string         `gorm:"type:varchar(20);not null" json:"status"`
	IsArchived    bool           `gorm:"not null;default:false" json:"is_archived"`
	EffectiveFrom time.Time      `json:"effective_from"`
	EffectiveTo   *time.Time     `json:"effective_to,omitempty"`
	Meta          datatypes.JSON `gorm:"column:metadata;type:json" json:"metadata"`
	CreatedAt     time.Time      `gorm:"autoCreateTime" json:"created_at"`
}

// TableName задаёт имя таблицы для этой модели.
func (NomenclatureNodeVersion) TableName() string {
	return "nomenclature_node_versions"
}

// NomenclatureAttributePreset — библиотечный пресет атрибутов.
type NomenclatureAttributePreset struct {
	ID          uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	Code        string         `gorm:"type:varchar(50);not null;uniqueIndex" json:"code"`
	Title       string         `gorm:"type:varchar(255);not null" json:"title"`
	JSONSchema  datatypes.JSON `gorm:"column:json_schema;type:json;not null" json:"json_schema"`
	Version     int            `gorm:"not null;default:1" json:"version"`
	Status      string         `gorm:"type:varchar(20);not null;default:published" json:"status"`
	Description string         `gorm:"type:text" json:"description,omitempty"`
	CreatedAt   time.Time      `gorm:"autoCreateTime" json:"created_at"`
}

// TableName задаёт имя таблицы для этой модели.
func (NomenclatureAttributePreset) TableName() string {
	return "nomenclature_attribute_presets"
}

// NomenclatureClassSchema — версия JSON-схемы атрибутов класса.
type NomenclatureClassSchema struct {
	ID          uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	NodeID      uint           `gorm:"not null;index" json:"node_id"`
	Version     int            `gorm:"not null" json:"version"`
	Status      string         `gorm:"type:varchar(20);not null;default:draft;index" json:"status"`
	JSONSchema  datatypes.JSON `gorm:"column:json_schema;type:json;not null" json:"json_schema"`
	Meta        datatypes.JSON `gorm:"column:metadata;type:json" json:"metadata"`
	Comment     string         `gorm:"type:text" json:"comment,omitempty"`
	PublishedAt *time.Time     `json:"published_at,omitempty"`
	CreatedByID *uint          `json:"created_by_id,omitempty"`
	CreatedAt   time.Time      `gorm:"autoCreateTime" json:"created_at"`

	// Связи с пресетами грузятся отдельным запросом репозитория.
	Presets []ClassSchemaPreset `gorm:"foreignKey:ClassSchemaID" json:"presets,omitempty"`
}

// TableName задаёт имя таблицы для этой модели.
func (NomenclatureClassSchema) TableName() string {
	return "nomenclature_class_schema"
}

// ClassSchemaPreset — связь версии схемы с пресетом и режим применения.
type ClassSchemaPreset struct {
	ClassSchemaID uint   `gorm:"primaryKey" json:"class_schema_id"`
	PresetID      uint   `gorm:"primaryKey" json:"preset_id"`
	Mode          string `gorm:"type:varchar(10);not null;default:include" json:"mode"`

	Preset *NomenclatureAttributePreset `gorm:"foreignKey:PresetID" json:"preset,omitempty"`
}

// TableName задаёт имя таблицы для этой модели.
func (ClassSchemaPreset) TableName() string {
	return "class_schema_presets"
}

// ClassAttributeRevision — зафиксированная при публикации дельта схемы
// относительно предыдущей версии.
type ClassAttributeRevision struct {
	ID          uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	SchemaID    uint           `gorm:"not null;index" json:"schema_id"`
	NodeID      uint           `gorm:"not null;index" json:"node_id"`
	Version     int            `gorm:"not null" json:"version"`
	DiffPayload datatypes.JSON `gorm:"column:diff_payload;type:json" json:"diff_payload"`
	AuthorID    *uint          `json:"author_id,omitempty"`
	CreatedAt   time.Time      `gorm:"autoCreateTime" json:"created_at"`
}

// TableName задаёт имя таблицы для этой модели.
func (ClassAttributeRevision) TableName() string {
	return "class_attribute_revisions"
}
