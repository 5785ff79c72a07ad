package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"tender-kb-go/internal/model"
	"tender-kb-go/internal/repository"
	"tender-kb-go/pkg/database"
	"tender-kb-go/pkg/log"

	"github.com/go-redis/redis/v8"
)

// ErrSchemaViolation — нарушение действующей схемы при проверке характеристик.
var ErrSchemaViolation = errors.New("Характеристики не соответствуют схеме классификатора")

// registryCacheTTL — срок жизни действующей схемы в Redis.
const registryCacheTTL = time.Hour

// RegistryService собирает действующую схему узла из опубликованных
// версий по цепочке от корня и проверяет характеристики по ней.
type RegistryService interface {
	EffectiveSchema(nodeID uint) (map[string]interface{}, error)
	ValidatePayload(nodeID uint, payload map[string]interface{}) error
	Invalidate(nodeID uint)
}

// registryService — реализация интерфейса RegistryService.
type registryService struct {
	nodeRepo   repository.NodeRepository
	schemaRepo repository.SchemaRepository
}

// NewRegistryService создаёт новый экземпляр RegistryService.
func NewRegistryService(nodeRepo repository.NodeRepository, schemaRepo repository.SchemaRepository) RegistryService {
	return &registryService{nodeRepo: nodeRepo, schemaRepo: schemaRepo}
}

// registryCacheKey — ключ действующей схемы узла в Redis.
func registryCacheKey(nodeID uint) string {
	return fmt.Sprintf("nomenclature:schema:%d", nodeID)
}

// EffectiveSchema возвращает действующую схему узла: наложение
// опубликованных схем по цепочке от корня до узла с применёнными
// пресетами. Результат кэшируется в Redis.
func (s *registryService) EffectiveSchema(nodeID uint) (map[string]interface{}, error) {
	ctx := context.Background()
	key := registryCacheKey(nodeID)

	cached, err := database.RDB.Get(ctx, key).Result()
	if err == nil {
		var schema map[string]interface{}
		if err := json.Unmarshal([]byte(cached), &schema); err == nil {
			return schema, nil
		}
		// Повреждённый кэш не фатален, пересобираем схему заново.
		database.RDB.Del(ctx, key)
	} else if !errors.Is(err, redis.Nil) {
		log.Warnf("[RegistryService] ошибка чтения кэша схемы узла %d: %v", nodeID, err)
	}

	schema, err := s.buildEffectiveSchema(nodeID)
	if err != nil {
		return nil, err
	}

	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, err
	}
	if err := database.RDB.Set(ctx, key, raw, registryCacheTTL).Err(); err != nil {
		log.Warnf("[RegistryService] не удалось записать кэш схемы узла %d: %v", nodeID, err)
	}
	return schema, nil
}

// buildEffectiveSchema собирает схему без обращения к кэшу.
func (s *registryService) buildEffectiveSchema(nodeID uint) (map[string]interface{}, error) {
	chain, err := s.chain(nodeID)
	if err != nil {
		return nil, err
	}

	effective := map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
		"required":   []interface{}{},
	}
	for i := range chain {
		published, err := s.schemaRepo.FindLatestPublished(chain[i].ID)
		if err != nil {
			return nil, err
		}
		if published == nil {
			continue
		}
		var layer map[string]interface{}
		if err := json.Unmarshal(published.JSONSchema, &layer); err != nil {
			return nil, err
		}
		layer, err = applyPresets(layer, published.Presets)
		if err != nil {
			return nil, err
		}
		effective = DeepMergeSchemas(effective, layer)
	}
	return effective, nil
}

// chain возвращает узлы от корня до указанного узла включительно.
func (s *registryService) chain(nodeID uint) ([]model.NomenclatureNode, error) {
	var chain []model.NomenclatureNode
	current, err := s.nodeRepo.FindByID(nodeID)
	if err != nil {
		return nil, err
	}
	for {
		chain = append([]model.NomenclatureNode{*current}, chain...)
		if current.ParentID == nil {
			return chain, nil
		}
		current, err = s.nodeRepo.FindByID(*current.ParentID)
		if err != nil {
			return nil, err
		}
	}
}

// applyPresets накладывает пресеты версии схемы: include дополняет
// схему полями пресета, exclude убирает перечисленные в пресете поля.
func applyPresets(schema map[string]interface{}, links []model.ClassSchemaPreset) (map[string]interface{}, error) {
	for _, link := range links {
		if link.Preset == nil {
			continue
		}
		var presetSchema map[string]interface{}
		if err := json.Unmarshal(link.Preset.JSONSchema, &presetSchema); err != nil {
			return nil, err
		}
		switch link.Mode {
		case model.PresetModeExclude:
			schema = excludeProperties(schema, presetSchema)
		default:
			schema = DeepMergeSchemas(schema, presetSchema)
		}
	}
	return schema, nil
}

// excludeProperties убирает из схемы свойства, перечисленные в пресете,
// вместе с их упоминаниями в required.
func excludeProperties(schema, preset map[string]interface{}) map[string]interface{} {
	excluded := map[string]bool{}
	for key := range schemaProperties(preset) {
		excluded[key] = true
	}
	if len(excluded) == 0 {
		return schema
	}

	props := map[string]interface{}{}
	for key, def := range schemaProperties(schema) {
		if !excluded[key] {
			props[key] = def
		}
	}
	schema["properties"] = props

	if required, ok := schema["required"].([]interface{}); ok {
		kept := []interface{}{}
		for _, entry := range required {
			name, ok := entry.(string)
			if ok && excluded[name] {
				continue
			}
			kept = append(kept, entry)
		}
		schema["required"] = kept
	}
	return schema
}

// DeepMergeSchemas рекурсивно накладывает overlay на base.
// Списки required объединяются как множества с сохранением порядка,
// вложенные словари сливаются рекурсивно, остальные значения
// перекрываются значением из overlay.
func DeepMergeSchemas(base, overlay map[string]interface{}) map[string]interface{} {
	result := map[string]interface{}{}
	for key, value := range base {
		result[key] = value
	}
	for key, overlayValue := range overlay {
		if key == "required" {
			result[key] = mergeRequired(result[key], overlayValue)
			continue
		}
		baseMap, baseOK := result[key].(map[string]interface{})
		overlayMap, overlayOK := overlayValue.(map[string]interface{})
		if baseOK && overlayOK {
			result[key] = DeepMergeSchemas(baseMap, overlayMap)
			continue
		}
		result[key] = overlayValue
	}
	return result
}

// mergeRequired объединяет два списка required без дублей.
func mergeRequired(base, overlay interface{}) []interface{} {
	seen := map[string]bool{}
	merged := []interface{}{}
	for _, list := range []interface{}{base, overlay} {
		entries, ok := list.([]interface{})
		if !ok {
			continue
		}
		for _, entry := range entries {
			name, ok := entry.(string)
			if !ok || seen[name] {
				continue
			}
			seen[name] = true
			merged = append(merged, entry)
		}
	}
	return merged
}

// Invalidate сбрасывает кэш действующей схемы узла.
func (s *registryService) Invalidate(nodeID uint) {
	if err := database.RDB.Del(context.Background(), registryCacheKey(nodeID)).Err(); err != nil {
		log.Warnf("[RegistryService] не удалось сбросить кэш схемы узла %d: %v", nodeID, err)
	}
}

// ValidatePayload проверяет характеристики позиции по действующей схеме:
// обязательные поля, базовые типы и допустимые значения enum.
func (s *registryService) ValidatePayload(nodeID uint, payload map[string]interface{}) error {
	schema, err := s.EffectiveSchema(nodeID)
	if err != nil {
		return err
	}
	return ValidateAgainstSchema(schema, payload)
}

// ValidateAgainstSchema проверяет значения по собранной схеме.
func ValidateAgainstSchema(schema, payload map[string]interface{}) error {
	if required, ok := schema["required"].([]interface{}); ok {
		for _, entry := range required {
			name, ok := entry.(string)
			if !ok {
				continue
			}
			if _, present := payload[name]; !present {
				return fmt.Errorf("%w: отсутствует обязательное поле %q", ErrSchemaViolation, name)
			}
		}
	}

	props := schemaProperties(schema)
	for key, value := range payload {
		def, ok := props[key].(map[string]interface{})
		if !ok {
			return fmt.Errorf("%w: поле %q не описано в схеме", ErrSchemaViolation, key)
		}
		if err := validateValue(key, def, value); err != nil {
			return err
		}
	}
	return nil
}

// validateValue проверяет одно значение по описанию свойства.
func validateValue(key string, def map[string]interface{}, value interface{}) error {
	if value == nil {
		return nil
	}

	if expected, ok := def["type"].(string); ok {
		valid := true
		switch expected {
		case "string":
			_, valid = value.(string)
		case "number", "integer":
			_, valid = value.(float64)
			if !valid {
				_, valid = value.(int)
			}
		case "boolean":
			_, valid = value.(bool)
		case "array":
			_, valid = value.([]interface{})
		case "object":
			_, valid = value.(map[string]interface{})
		}
		if !valid {
			return fmt.Errorf("%w: поле %q должно иметь тип %s", ErrSchemaViolation, key, expected)
		}
	}

	if enum, ok := def["enum"].([]interface{}); ok && len(enum) > 0 {
		for _, allowed := range enum {
			if allowed == value {
				return nil
			}
		}
		return fmt.Errorf("%w: значение поля %q не входит в список допустимых", ErrSchemaViolation, key)
	}
	return nil
}
