package service

import (
	"encoding/json"
	"errors"
	"reflect"
	"sort"
	"time"

	"tender-kb-go/internal/model"
	"tender-kb-go/internal/repository"
	"tender-kb-go/pkg/log"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Ошибки операций с версиями схем.
var (
	ErrSchemaNotFound         = errors.New("Версия схемы не найдена")
	ErrSchemaNotDraft         = errors.New("Опубликовать можно только черновик")
	ErrSchemaEmpty            = errors.New("Схема не содержит ни одного свойства")
	ErrSchemaPresetNotFound   = errors.New("Пресет не найден")
	ErrSchemaRevisionNotFound = errors.New("Ревизия для этой версии не найдена")
	ErrSchemaNodeNotClass     = errors.New("Схемы ведутся только для классов и категорий")
)

// SchemaCreateInput — данные новой версии схемы.
type SchemaCreateInput struct {
	JSONSchema map[string]interface{}
	Presets    []uint
	Comment    string
}

// SchemaService определяет операции с версиями схем атрибутов класса.
type SchemaService interface {
	ListVersions(nodeID uint) ([]model.NomenclatureClassSchema, error)
	GetVersion(nodeID uint, version int) (*model.NomenclatureClassSchema, error)
	CreateVersion(nodeID uint, input SchemaCreateInput, actorID uint) (*model.NomenclatureClassSchema, error)
	PublishVersion(nodeID uint, version int, actorID uint) (*model.NomenclatureClassSchema, error)
	GetDiff(nodeID uint, version int) (*model.ClassAttributeRevision, error)
}

// schemaService — реализация интерфейса SchemaService.
type schemaService struct {
	schemaRepo   repository.SchemaRepository
	nodeRepo     repository.NodeRepository
	presetRepo   repository.PresetRepository
	registry     RegistryService
	auditService AuditService
}

// NewSchemaService создаёт новый экземпляр SchemaService.
func NewSchemaService(schemaRepo repository.SchemaRepository, nodeRepo repository.NodeRepository, presetRepo repository.PresetRepository, registry RegistryService, auditService AuditService) SchemaService {
	return &schemaService{
		schemaRepo:   schemaRepo,
		nodeRepo:     nodeRepo,
		presetRepo:   presetRepo,
		registry:     registry,
		auditService: auditService,
	}
}

// ListVersions возвращает версии схемы узла, новые первыми.
func (s *schemaService) ListVersions(nodeID uint) ([]model.NomenclatureClassSchema, error) {
	if _, err := s.schemaNode(nodeID); err != nil {
		return nil, err
	}
	return s.schemaRepo.FindVersions(nodeID)
}

// GetVersion возвращает конкретную версию схемы узла.
func (s *schemaService) GetVersion(nodeID uint, version int) (*model.NomenclatureClassSchema, error) {
	schema, err := s.schemaRepo.FindByNodeAndVersion(nodeID, version)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSchemaNotFound
	}
	return schema, err
}

// CreateVersion создаёт черновую версию схемы со следующим номером
// и привязывает к ней выбранные пресеты.
func (s *schemaService) CreateVersion(nodeID uint, input SchemaCreateInput, actorID uint) (*model.NomenclatureClassSchema, error) {
	if _, err := s.schemaNode(nodeID); err != nil {
		return nil, err
	}
	if len(schemaProperties(input.JSONSchema)) == 0 {
		return nil, ErrSchemaEmpty
	}
	for _, presetID := range input.Presets {
		preset, err := s.presetRepo.FindByID(presetID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrSchemaPresetNotFound
			}
			return nil, err
		}
		if preset.Status == model.SchemaStatusArchived {
			return nil, ErrSchemaPresetNotFound
		}
	}

	maxVersion, err := s.schemaRepo.MaxVersion(nodeID)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(input.JSONSchema)
	if err != nil {
		return nil, err
	}

	schema := &model.NomenclatureClassSchema{
		NodeID:      nodeID,
		Version:     maxVersion + 1,
		Status:      model.SchemaStatusDraft,
		JSONSchema:  datatypes.JSON(raw),
		Comment:     input.Comment,
		CreatedByID: &actorID,
	}
	if err := s.schemaRepo.Create(schema); err != nil {
		return nil, err
	}
	for _, presetID := range input.Presets {
		link := &model.ClassSchemaPreset{
			ClassSchemaID: schema.ID,
			PresetID:      presetID,
			Mode:          model.PresetModeInclude,
		}
		if err := s.schemaRepo.CreatePresetLink(link); err != nil {
			return nil, err
		}
	}

	log.Infof("[SchemaService] создана версия схемы v%d для узла %d", schema.Version, nodeID)
	return s.schemaRepo.FindByID(schema.ID)
}

// PublishVersion публикует черновик: выставляет статус и дату,
// поднимает версию узла, фиксирует ревизию с дельтой относительно
// предыдущей версии и сбрасывает кэш действующих схем.
func (s *schemaService) PublishVersion(nodeID uint, version int, actorID uint) (*model.NomenclatureClassSchema, error) {
	node, err := s.schemaNode(nodeID)
	if err != nil {
		return nil, err
	}
	schema, err := s.GetVersion(nodeID, version)
	if err != nil {
		return nil, err
	}
	if schema.Status != model.SchemaStatusDraft {
		return nil, ErrSchemaNotDraft
	}

	// 1. Публикация версии
	now := time.Now()
	schema.Status = model.SchemaStatusPublished
	schema.PublishedAt = &now
	if err := s.schemaRepo.Update(schema); err != nil {
		return nil, err
	}

	// 2. Версия узла следует за опубликованной схемой
	node.Version = schema.Version
	if err := s.nodeRepo.Update(node); err != nil {
		return nil, err
	}

	// 3. Ревизия с дельтой относительно предыдущей версии
	previous, err := s.schemaRepo.FindPreviousVersion(nodeID, schema.Version)
	if err != nil {
		return nil, err
	}
	var previousSchema map[string]interface{}
	if previous != nil {
		if err := json.Unmarshal(previous.JSONSchema, &previousSchema); err != nil {
			return nil, err
		}
	}
	var currentSchema map[string]interface{}
	if err := json.Unmarshal(schema.JSONSchema, &currentSchema); err != nil {
		return nil, err
	}

	diff := CalculateSchemaDiff(previousSchema, currentSchema)
	diffRaw, err := json.Marshal(diff)
	if err != nil {
		return nil, err
	}
	revision := &model.ClassAttributeRevision{
		SchemaID:    schema.ID,
		NodeID:      nodeID,
		Version:     schema.Version,
		DiffPayload: datatypes.JSON(diffRaw),
		AuthorID:    &actorID,
	}
	if err := s.schemaRepo.CreateRevision(revision); err != nil {
		return nil, err
	}

	// 4. Кэш действующей схемы этого узла больше не актуален
	s.registry.Invalidate(nodeID)

	s.auditService.Log(model.AuditSchemaPublished, "class_schema", &schema.ID, nil, &actorID,
		map[string]interface{}{"node_id": nodeID, "version": schema.Version})
	log.Infof("[SchemaService] опубликована версия схемы v%d для узла %d", schema.Version, nodeID)
	return schema, nil
}

// GetDiff возвращает зафиксированную при публикации дельту версии.
func (s *schemaService) GetDiff(nodeID uint, version int) (*model.ClassAttributeRevision, error) {
	revision, err := s.schemaRepo.FindRevision(nodeID, version)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSchemaRevisionNotFound
	}
	return revision, err
}

// schemaNode загружает узел и проверяет, что для него ведутся схемы.
func (s *schemaService) schemaNode(nodeID uint) (*model.NomenclatureNode, error) {
	node, err := s.nodeRepo.FindByID(nodeID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNodeNotFound
	}
	if err != nil {
		return nil, err
	}
	if node.NodeType != model.NodeTypeClass && node.NodeType != model.NodeTypeCategory {
		return nil, ErrSchemaNodeNotClass
	}
	return node, nil
}

// CalculateSchemaDiff сравнивает словари properties двух версий схемы.
// Результат содержит ключи added, removed и changed.
func CalculateSchemaDiff(previous, current map[string]interface{}) map[string]interface{} {
	prevProps := schemaProperties(previous)
	currProps := schemaProperties(current)

	added := map[string]interface{}{}
	removed := []string{}
	changed := map[string]interface{}{}

	for key, currDef := range currProps {
		prevDef, ok := prevProps[key]
		if !ok {
			added[key] = currDef
			continue
		}
		if !reflect.DeepEqual(prevDef, currDef) {
			changed[key] = map[string]interface{}{"old": prevDef, "new": currDef}
		}
	}
	for key := range prevProps {
		if _, ok := currProps[key]; !ok {
			removed = append(removed, key)
		}
	}
	sort.Strings(removed)

	return map[string]interface{}{
		"added":   added,
		"removed": removed,
		"changed": changed,
	}
}

// schemaProperties достаёт словарь properties из JSON-схемы.
func schemaProperties(schema map[string]interface{}) map[string]interface{} {
	if schema == nil {
		return map[string]interface{}{}
	}
	props, ok := schema["properties"].(map[string]interface{})
	if !ok {
		return map[string]interface{}{}
	}
	return props
}
