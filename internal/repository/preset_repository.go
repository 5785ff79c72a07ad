package repository

import (
	"tender-kb-go/internal/model"

	"gorm.io/gorm"
)

// PresetRepository определяет операции с библиотекой пресетов атрибутов.
type PresetRepository interface {
	Create(preset *model.NomenclatureAttributePreset) error
	FindByID(presetID uint) (*model.NomenclatureAttributePreset, error)
	FindByCode(code string) (*model.NomenclatureAttributePreset, error)
	FindByStatus(status string) ([]model.NomenclatureAttributePreset, error)
	FindAll() ([]model.NomenclatureAttributePreset, error)
	Update(preset *model.NomenclatureAttributePreset) error
}

// presetRepository — GORM-реализация интерфейса PresetRepository.
type presetRepository struct {
	db *gorm.DB
}

// NewPresetRepository создаёт новый экземпляр PresetRepository.
func NewPresetRepository(db *gorm.DB) PresetRepository {
	return &presetRepository{db: db}
}

// Create создаёт пресет.
func (r *presetRepository) Create(preset *model.NomenclatureAttributePreset) error {
	return r.db.Create(preset).Error
}

// FindByID ищет пресет по идентификатору.
func (r *presetRepository) FindByID(presetID uint) (*model.NomenclatureAttributePreset, error) {
	var preset model.NomenclatureAttributePreset
	err := r.db.First(&preset, presetID).Error
	if err != nil {
		return nil, err
	}
	return &preset, nil
}

// FindByCode ищет пресет по коду.
func (r *presetRepository) FindByCode(code string) (*model.NomenclatureAttributePreset, error) {
	var preset model.NomenclatureAttributePreset
	err := r.db.Where("code = ?", code).First(&preset).Error
	if err != nil {
		return nil, err
	}
	return &preset, nil
}

// FindByStatus возвращает пресеты в указанном статусе.
func (r *presetRepository) FindByStatus(status string) ([]model.NomenclatureAttributePreset, error) {
	var presets []model.NomenclatureAttributePreset
	err := r.db.Where("status = ?", status).Order("code ASC").Find(&presets).Error
	return presets, err
}

// FindAll возвращает все пресеты.
func (r *presetRepository) FindAll() ([]model.NomenclatureAttributePreset, error) {
	var presets []model.NomenclatureAttributePreset
	err := r.db.Order("code ASC").Find(&presets).Error
	return presets, err
}

// Update сохраняет изменения пресета.
func (r *presetRepository) Update(preset *model.NomenclatureAttributePreset) error {
	return r.db.Save(preset).Error
}
