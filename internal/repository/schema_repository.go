package repository

import (
	"errors"

	"tender-kb-go/internal/model"

	"gorm.io/gorm"
)

// SchemaRepository определяет операции с версиями схем классов,
// их связями с пресетами и ревизиями атрибутов.
type SchemaRepository interface {
	Create(schema *model.NomenclatureClassSchema) error
	Update(schema *model.NomenclatureClassSchema) error
	FindByID(schemaID uint) (*model.NomenclatureClassSchema, error)
	FindByNodeAndVersion(nodeID uint, version int) (*model.NomenclatureClassSchema, error)
	FindVersions(nodeID uint) ([]model.NomenclatureClassSchema, error)
	MaxVersion(nodeID uint) (int, error)
	FindLatestPublished(nodeID uint) (*model.NomenclatureClassSchema, error)
	FindPreviousVersion(nodeID uint, version int) (*model.NomenclatureClassSchema, error)

	CreatePresetLink(link *model.ClassSchemaPreset) error
	CreateRevision(revision *model.ClassAttributeRevision) error
	FindRevision(nodeID uint, version int) (*model.ClassAttributeRevision, error)
}

// schemaRepository — GORM-реализация интерфейса SchemaRepository.
type schemaRepository struct {
	db *gorm.DB
}

// NewSchemaRepository создаёт новый экземпляр SchemaRepository.
func NewSchemaRepository(db *gorm.DB) SchemaRepository {
	return &schemaRepository{db: db}
}

// withPresets подгружает связи с пресетами вместе с самими пресетами.
func (r *schemaRepository) withPresets() *gorm.DB {
	return r.db.Preload("Presets").Preload("Presets.Preset")
}

// Create создаёт версию схемы.
func (r *schemaRepository) Create(schema *model.NomenclatureClassSchema) error {
	return r.db.Create(schema).Error
}

// Update сохраняет изменения версии схемы.
func (r *schemaRepository) Update(schema *model.NomenclatureClassSchema) error {
	return r.db.Omit("Presets").Save(schema).Error
}

// FindByID ищет версию схемы по идентификатору.
func (r *schemaRepository) FindByID(schemaID uint) (*model.NomenclatureClassSchema, error) {
	var schema model.NomenclatureClassSchema
	err := r.withPresets().First(&schema, schemaID).Error
	if err != nil {
		return nil, err
	}
	return &schema, nil
}

// FindByNodeAndVersion ищет версию схемы узла по номеру.
func (r *schemaRepository) FindByNodeAndVersion(nodeID uint, version int) (*model.NomenclatureClassSchema, error) {
	var schema model.NomenclatureClassSchema
	err := r.withPresets().
		Where("node_id = ? AND version = ?", nodeID, version).
		First(&schema).Error
	if err != nil {
		return nil, err
	}
	return &schema, nil
}

// FindVersions возвращает версии схемы узла, новые первыми.
func (r *schemaRepository) FindVersions(nodeID uint) ([]model.NomenclatureClassSchema, error) {
	var schemas []model.NomenclatureClassSchema
	err := r.withPresets().
		Where("node_id = ?", nodeID).
		Order("version DESC").
		Find(&schemas).Error
	return schemas, err
}

// MaxVersion возвращает максимальный номер версии схемы узла (0, если версий нет).
func (r *schemaRepository) MaxVersion(nodeID uint) (int, error) {
	var maxVersion *int
	err := r.db.Model(&model.NomenclatureClassSchema{}).
		Where("node_id = ?", nodeID).
		Select("MAX(version)").
		Scan(&maxVersion).Error
	if err != nil {
		return 0, err
	}
	if maxVersion == nil {
		return 0, nil
	}
	return *maxVersion, nil
}

// FindLatestPublished возвращает последнюю опубликованную версию схемы узла.
func (r *schemaRepository) FindLatestPublished(nodeID uint) (*model.NomenclatureClassSchema, error) {
	var schema model.NomenclatureClassSchema
	err := r.withPresets().
		Where("node_id = ? AND status = ?", nodeID, model.SchemaStatusPublished).
		Order("version DESC").
		First(&schema).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &schema, nil
}

// FindPreviousVersion возвращает ближайшую версию схемы узла ниже указанной.
func (r *schemaRepository) FindPreviousVersion(nodeID uint, version int) (*model.NomenclatureClassSchema, error) {
	var schema model.NomenclatureClassSchema
	err := r.withPresets().
		Where("node_id = ? AND version < ?", nodeID, version).
		Order("version DESC").
		First(&schema).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &schema, nil
}

// CreatePresetLink создаёт связь версии схемы с пресетом.
func (r *schemaRepository) CreatePresetLink(link *model.ClassSchemaPreset) error {
	return r.db.Create(link).Error
}

// CreateRevision создаёт запись ревизии атрибутов.
func (r *schemaRepository) CreateRevision(revision *model.ClassAttributeRevision) error {
	return r.db.Create(revision).Error
}

// FindRevision ищет ревизию по узлу и версии схемы.
func (r *schemaRepository) FindRevision(nodeID uint, version int) (*model.ClassAttributeRevision, error) {
	var revision model.ClassAttributeRevision
	err := r.db.Where("node_id = ? AND version = ?", nodeID, version).
		First(&revision).Error
	if err != nil {
		return nil, err
	}
	return &revision, nil
}
