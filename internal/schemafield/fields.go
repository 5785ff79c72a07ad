// Package schemafield преобразует JSON-Schema-подобные описания атрибутов
// номенклатуры в плоский редактируемый список полей и обратно.
package schemafield

import (
	"sort"
	"strconv"
	"strings"
)

// FieldType — замкнутый перечень типов поля атрибута.
// Неизвестные типы всегда сводятся к FieldString.
type FieldType string

const (
	FieldString  FieldType = "string"
	FieldNumber  FieldType = "number"
	FieldBoolean FieldType = "boolean"
	// FieldArray — перечислимый мультивыбор, сериализуется как массив строк.
	FieldArray FieldType = "array"
)

// FieldTypeOption описывает вариант типа для выпадающего списка редактора.
type FieldTypeOption struct {
	Label string    `json:"label"`
	Value FieldType `json:"value"`
}

// FieldTypeOptions — порядок и подписи типов в редакторе схемы.
var FieldTypeOptions = []FieldTypeOption{
	{Label: "Строка", Value: FieldString},
	{Label: "Число", Value: FieldNumber},
	{Label: "Логическое", Value: FieldBoolean},
	{Label: "Массив (enum)", Value: FieldArray},
}

// SchemaFieldForm — редактируемое представление одного атрибута схемы.
// Key уникален в пределах списка и стабилен после создания поля.
type SchemaFieldForm struct {
	Key         string
	Type        FieldType
	Title       string
	Description string
	// Unit имеет смысл только для числовых полей.
	Unit string
	// EnumValues применимы к string и array.
	EnumValues []string
	// DefaultValue полиморфно: string, bool, []string или nil в зависимости от Type.
	// Числовые значения по умолчанию в сессии редактирования хранятся строкой.
	DefaultValue any
	Required     bool
	// Enabled — понятие только сессии редактирования: выключенные поля
	// сохраняются в списке, но не попадают в сериализованную схему.
	Enabled bool
}

// DefaultSchema — пустой шаблон схемы узла.
func DefaultSchema() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	}
}

// ParseFieldType определяет тип поля по его описанию в схеме.
// Значение "type" может быть массивом — берётся первый элемент;
// integer нормализуется в number; всё нераспознанное считается строкой.
func ParseFieldType(definition map[string]any) FieldType {
	rawType := definition["type"]
	if list, ok := rawType.([]any); ok {
		if len(list) > 0 {
			rawType = list[0]
		} else {
			rawType = nil
		}
	}
	switch rawType {
	case "number", "integer":
		return FieldNumber
	case "boolean":
		return FieldBoolean
	case "array":
		return FieldArray
	default:
		return FieldString
	}
}

// ConvertSchemaToFields разворачивает JSON-Schema-подобный объект в плоский
// список полей. Функция терпима к мусору на входе: отсутствующие или
// некорректные properties дают пустой список, а не панику.
func ConvertSchemaToFields(schema map[string]any) []SchemaFieldForm {
	if schema == nil {
		return []SchemaFieldForm{}
	}
	properties, ok := schema["properties"].(map[string]any)
	if !ok || properties == nil {
		return []SchemaFieldForm{}
	}

	requiredSet := make(map[string]struct{})
	if rawRequired, ok := schema["required"].([]any); ok {
		for _, entry := range rawRequired {
			if key, ok := entry.(string); ok {
				requiredSet[key] = struct{}{}
			}
		}
	}

	fields := make([]SchemaFieldForm, 0, len(properties))
	for _, key := range sortedKeys(properties) {
		definition, ok := properties[key].(map[string]any)
		if !ok {
			definition = map[string]any{}
		}
		fieldType := ParseFieldType(definition)

		field := SchemaFieldForm{
			Key:      key,
			Type:     fieldType,
			Title:    key,
			Enabled:  true,
			Required: false,
		}
		if title, ok := definition["title"].(string); ok && strings.TrimSpace(title) != "" {
			field.Title = title
		}
		if description, ok := definition["description"].(string); ok {
			field.Description = description
		}
		if fieldType == FieldNumber {
			if unit, ok := definition["unit"].(string); ok {
				field.Unit = unit
			} else if unit, ok := definition["x-unit"].(string); ok {
				field.Unit = unit
			}
		}
		field.EnumValues = extractEnumValues(fieldType, definition)
		field.DefaultValue = decodeDefault(fieldType, definition)
		if _, ok := requiredSet[key]; ok {
			field.Required = true
		}
		fields = append(fields, field)
	}
	return fields
}

// extractEnumValues читает enum для строковых полей и items.enum для массивов.
// Нестроковые элементы отбрасываются.
func extractEnumValues(fieldType FieldType, definition map[string]any) []string {
	var raw []any
	switch fieldType {
	case FieldString:
		if list, ok := definition["enum"].([]any); ok {
			raw = list
		}
	case FieldArray:
		items, ok := definition["items"].(map[string]any)
		if !ok {
			return nil
		}
		if list, ok := items["enum"].([]any); ok {
			raw = list
		}
	default:
		return nil
	}
	if raw == nil {
		return nil
	}
	values := make([]string, 0, len(raw))
	for _, entry := range raw {
		if value, ok := entry.(string); ok {
			values = append(values, value)
		}
	}
	return values
}

// decodeDefault декодирует значение по умолчанию с учётом типа поля.
// Несовместимое с типом значение просто игнорируется.
func decodeDefault(fieldType FieldType, definition map[string]any) any {
	rawDefault, ok := definition["default"]
	if !ok {
		return nil
	}
	switch fieldType {
	case FieldBoolean:
		if value, ok := rawDefault.(bool); ok {
			return value
		}
	case FieldNumber:
		// Число редактируется как строка.
		if value, ok := rawDefault.(float64); ok {
			return strconv.FormatFloat(value, 'f', -1, 64)
		}
		if value, ok := rawDefault.(int); ok {
			return strconv.Itoa(value)
		}
	case FieldString:
		if value, ok := rawDefault.(string); ok {
			return value
		}
	case FieldArray:
		if list, ok := rawDefault.([]any); ok {
			values := make([]string, 0, len(list))
			for _, entry := range list {
				if value, ok := entry.(string); ok {
					values = append(values, value)
				}
			}
			return values
		}
	}
	return nil
}

// NormalizeDefaultValue приводит значение по умолчанию к формату схемы.
// Второй результат false означает, что ключ default опускается полностью.
func NormalizeDefaultValue(field SchemaFieldForm) (any, bool) {
	if field.DefaultValue == nil {
		return nil, false
	}
	if value, ok := field.DefaultValue.(string); ok && value == "" {
		return nil, false
	}
	switch field.Type {
	case FieldNumber:
		text, ok := field.DefaultValue.(string)
		if !ok {
			return nil, false
		}
		parsed, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
		if err != nil {
			return nil, false
		}
		return parsed, true
	case FieldBoolean:
		value, ok := field.DefaultValue.(bool)
		if !ok {
			return nil, false
		}
		return value, true
	case FieldArray:
		list, ok := field.DefaultValue.([]string)
		if !ok {
			return nil, false
		}
		trimmed := make([]string, 0, len(list))
		for _, entry := range list {
			entry = strings.TrimSpace(entry)
			if entry != "" {
				trimmed = append(trimmed, entry)
			}
		}
		if len(trimmed) == 0 {
			return nil, false
		}
		// В схему массив уходит как []any, иначе decodeDefault при
		// повторной загрузке его не узнает.
		return toAnySlice(trimmed), true
	default:
		if value, ok := field.DefaultValue.(string); ok {
			return value, true
		}
		return nil, false
	}
}

// BuildSchemaPayload собирает JSON-Schema-подобный объект из списка полей.
// Выключенные поля исключаются полностью, включая список required.
// Ключ required присутствует только при непустом списке — бэкенд различает
// отсутствие ключа и пустой массив.
func BuildSchemaPayload(fields []SchemaFieldForm) map[string]any {
	properties := make(map[string]any, len(fields))
	required := make([]string, 0)

	for _, field := range fields {
		if !field.Enabled {
			continue
		}
		definition := map[string]any{
			"type":  string(field.Type),
			"title": field.Title,
		}
		if field.Title == "" {
			definition["title"] = field.Key
		}
		if field.Description != "" {
			definition["description"] = field.Description
		}
		if field.Type == FieldNumber && field.Unit != "" {
			definition["x-unit"] = field.Unit
		}
		if field.Type == FieldString && len(field.EnumValues) > 0 {
			definition["enum"] = toAnySlice(field.EnumValues)
		}
		if field.Type == FieldArray {
			items := map[string]any{"type": "string"}
			if len(field.EnumValues) > 0 {
				items["enum"] = toAnySlice(field.EnumValues)
			}
			definition["items"] = items
		}
		if normalized, ok := NormalizeDefaultValue(field); ok {
			definition["default"] = normalized
		}
		properties[field.Key] = definition
		if field.Required {
			required = append(required, field.Key)
		}
	}

	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = toAnySlice(required)
	}
	return schema
}

func toAnySlice(values []string) []any {
	result := make([]any, len(values))
	for i, value := range values {
		result[i] = value
	}
	return result
}

// sortedKeys даёт стабильный порядок обхода properties: map в Go не
// упорядочен, а список полей должен быть воспроизводимым между загрузками
// одной и той же схемы.
func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
