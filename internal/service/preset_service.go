package service

import (
	"encoding/json"
	"errors"

	"tender-kb-go/internal/model"
	"tender-kb-go/internal/repository"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Ошибки операций с пресетами атрибутов.
var (
	ErrPresetNotFound  = errors.New("Пресет не найден")
	ErrPresetCodeTaken = errors.New("Пресет с таким кодом уже существует")
	ErrPresetEmpty     = errors.New("Пресет не содержит ни одного свойства")
)

// PresetCreateInput — данные создания пресета.
type PresetCreateInput struct {
	Code        string
	Title       string
	Description string
	JSONSchema  map[string]interface{}
}

// PresetUpdateInput — изменяемые поля пресета. Код пресета неизменяем.
type PresetUpdateInput struct {
	Title       *string
	Description *string
	JSONSchema  map[string]interface{}
}

// PresetService определяет операции с библиотекой пресетов атрибутов.
type PresetService interface {
	List(status string) ([]model.NomenclatureAttributePreset, error)
	Get(presetID uint) (*model.NomenclatureAttributePreset, error)
	Create(input PresetCreateInput) (*model.NomenclatureAttributePreset, error)
	Update(presetID uint, input PresetUpdateInput) (*model.NomenclatureAttributePreset, error)
	Publish(presetID uint) (*model.NomenclatureAttributePreset, error)
	Archive(presetID uint) error
}

// presetService — реализация интерфейса PresetService.
type presetService struct {
	presetRepo repository.PresetRepository
}

// NewPresetService создаёт новый экземпляр PresetService.
func NewPresetService(presetRepo repository.PresetRepository) PresetService {
	return &presetService{presetRepo: presetRepo}
}

// List возвращает пресеты, при непустом статусе — только с этим статусом.
func (s *presetService) List(status string) ([]model.NomenclatureAttributePreset, error) {
	if status == "" {
		return s.presetRepo.FindAll()
	}
	return s.presetRepo.FindByStatus(status)
}

// Get возвращает пресет по идентификатору.
func (s *presetService) Get(presetID uint) (*model.NomenclatureAttributePreset, error) {
	preset, err := s.presetRepo.FindByID(presetID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPresetNotFound
	}
	return preset, err
}

// Create создаёт черновой пресет.
func (s *presetService) Create(input PresetCreateInput) (*model.NomenclatureAttributePreset, error) {
	if len(schemaProperties(input.JSONSchema)) == 0 {
		return nil, ErrPresetEmpty
	}
	_, err := s.presetRepo.FindByCode(input.Code)
	if err == nil {
		return nil, ErrPresetCodeTaken
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	raw, err := json.Marshal(input.JSONSchema)
	if err != nil {
		return nil, err
	}
	preset := &model.NomenclatureAttributePreset{
		Code:        input.Code,
		Title:       input.Title,
		Description: input.Description,
		JSONSchema:  datatypes.JSON(raw),
		Version:     1,
		Status:      model.SchemaStatusDraft,
	}
	if err := s.presetRepo.Create(preset); err != nil {
		return nil, err
	}
	return preset, nil
}

// Update изменяет пресет. Изменение набора свойств поднимает версию,
// уже опубликованные схемы продолжают ссылаться на пресет по идентификатору.
func (s *presetService) Update(presetID uint, input PresetUpdateInput) (*model.NomenclatureAttributePreset, error) {
	preset, err := s.Get(presetID)
	if err != nil {
		return nil, err
	}
	if input.Title != nil {
		preset.Title = *input.Title
	}
	if input.Description != nil {
		preset.Description = *input.Description
	}
	if input.JSONSchema != nil {
		if len(schemaProperties(input.JSONSchema)) == 0 {
			return nil, ErrPresetEmpty
		}
		raw, err := json.Marshal(input.JSONSchema)
		if err != nil {
			return nil, err
		}
		preset.JSONSchema = datatypes.JSON(raw)
		preset.Version++
	}
	if err := s.presetRepo.Update(preset); err != nil {
		return nil, err
	}
	return preset, nil
}

// Publish делает пресет доступным для привязки к схемам.
func (s *presetService) Publish(presetID uint) (*model.NomenclatureAttributePreset, error) {
	preset, err := s.Get(presetID)
	if err != nil {
		return nil, err
	}
	if preset.Status == model.SchemaStatusPublished {
		return preset, nil
	}
	preset.Status = model.SchemaStatusPublished
	if err := s.presetRepo.Update(preset); err != nil {
		return nil, err
	}
	return preset, nil
}

// Archive выводит пресет из оборота: новые схемы его не видят,
// уже привязанные продолжают работать.
func (s *presetService) Archive(presetID uint) error {
	preset, err := s.Get(presetID)
	if err != nil {
		return err
	}
	if preset.Status == model.SchemaStatusArchived {
		return nil
	}
	preset.Status = model.SchemaStatusArchived
	return s.presetRepo.Update(preset)
}
