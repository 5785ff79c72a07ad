// Package attrform строит модель формы атрибутов карточки номенклатуры по
// JSON-схеме узла: группировка полей, типизация контролов и применение
// введённых значений к карте атрибутов.
package attrform

import (
	"sort"
	"strconv"
	"strings"
)

// ControlKind определяет тип контрола, которым редактируется поле.
type ControlKind string

const (
	ControlString ControlKind = "string"
	ControlNumber ControlKind = "number"
	// ControlEnum — выбор одного значения из списка.
	ControlEnum ControlKind = "enum"
	// ControlArray — мультивыбор, редактируется как multi-select.
	ControlArray ControlKind = "array"
)

// DefaultGroupTitle — группа для полей без явного x-group.
const DefaultGroupTitle = "Характеристики"

// FieldConfig описывает один контрол формы.
type FieldConfig struct {
	Key   string      `json:"key"`
	Label string      `json:"label"`
	Kind  ControlKind `json:"kind"`
	// Options заполняется для enum и array.
	Options []string `json:"options,omitempty"`
	// Suffix — единица измерения числового поля.
	Suffix string `json:"suffix,omitempty"`
	// Placeholder — подсказка строкового поля из description.
	Placeholder string `json:"placeholder,omitempty"`
}

// FieldGroup — именованная группа контролов.
type FieldGroup struct {
	Title  string        `json:"title"`
	Fields []FieldConfig `json:"fields"`
}

// DemoGroups возвращает фиксированный демонстрационный набор полей,
// который используется, пока у узла нет живой схемы. Семантика изменения
// значений для него та же, что и для полей из схемы.
func DemoGroups() []FieldGroup {
	return []FieldGroup{
		{
			Title: "Механика",
			Fields: []FieldConfig{
				{Key: "power", Label: "Мощность, кВт", Kind: ControlNumber, Suffix: "кВт"},
				{Key: "torque", Label: "Крутящий момент, Н·м", Kind: ControlNumber, Suffix: "Н·м"},
				{Key: "ratio", Label: "Передаточное число", Kind: ControlString, Placeholder: "Напр. 1:15"},
			},
		},
		{
			Title: "Эксплуатация",
			Fields: []FieldConfig{
				{Key: "protection", Label: "Класс защиты", Kind: ControlEnum, Options: []string{"IP54", "IP65", "IP67"}},
				{Key: "temperature", Label: "Температура, °C", Kind: ControlNumber, Suffix: "°C"},
			},
		},
	}
}

// resolveKind определяет тип контрола. Наличие enum имеет приоритет над
// объявленным type (кроме массивов, у которых enum лежит в items).
func resolveKind(definition map[string]any) ControlKind {
	rawType := definition["type"]
	if list, ok := rawType.([]any); ok {
		if len(list) > 0 {
			rawType = list[0]
		} else {
			rawType = nil
		}
	}
	if _, ok := definition["enum"]; ok {
		return ControlEnum
	}
	switch rawType {
	case "array":
		return ControlArray
	case "number", "integer":
		return ControlNumber
	default:
		return ControlString
	}
}

func resolveGroup(definition map[string]any) string {
	if group, ok := definition["x-group"].(string); ok && group != "" {
		return group
	}
	if group, ok := definition["group"].(string); ok && group != "" {
		return group
	}
	return DefaultGroupTitle
}

func stringOptions(raw any) []string {
	list, ok := raw.([]any)
	if !ok {
		return []string{}
	}
	options := make([]string, 0, len(list))
	for _, entry := range list {
		if value, ok := entry.(string); ok {
			options = append(options, value)
		}
	}
	return options
}

// BuildGroups группирует свойства схемы по объявленной группе и собирает
// описания контролов. Возвращает nil, если в схеме нет пригодных
// properties — вызывающая сторона в этом случае подставляет DemoGroups.
func BuildGroups(schema map[string]any) []FieldGroup {
	if schema == nil {
		return nil
	}
	properties, ok := schema["properties"].(map[string]any)
	if !ok || len(properties) == 0 {
		return nil
	}

	grouped := make(map[string][]FieldConfig)
	order := make([]string, 0)

	keys := make([]string, 0, len(properties))
	for key := range properties {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		definition, ok := properties[key].(map[string]any)
		if !ok {
			definition = map[string]any{}
		}
		kind := resolveKind(definition)

		title := key
		if raw, ok := definition["title"].(string); ok && strings.TrimSpace(raw) != "" {
			title = raw
		}
		description := ""
		if raw, ok := definition["description"].(string); ok {
			description = strings.TrimSpace(raw)
		}
		label := title
		if description != "" {
			label = description
		}

		field := FieldConfig{Key: key, Label: label, Kind: kind}
		switch kind {
		case ControlEnum:
			field.Options = stringOptions(definition["enum"])
		case ControlArray:
			if items, ok := definition["items"].(map[string]any); ok {
				field.Options = stringOptions(items["enum"])
			} else {
				field.Options = []string{}
			}
		case ControlNumber:
			if unit, ok := definition["unit"].(string); ok && unit != "" {
				field.Suffix = unit
			} else if unit, ok := definition["x-unit"].(string); ok {
				field.Suffix = unit
			}
		default:
			if description != "" && description != label {
				field.Placeholder = description
			}
		}

		bucket := resolveGroup(definition)
		if _, ok := grouped[bucket]; !ok {
			order = append(order, bucket)
		}
		grouped[bucket] = append(grouped[bucket], field)
	}

	groups := make([]FieldGroup, 0, len(order))
	for _, title := range order {
		groups = append(groups, FieldGroup{Title: title, Fields: grouped[title]})
	}
	return groups
}

// ApplyValue применяет ввод пользователя к карте атрибутов и возвращает
// новую полную карту (никогда не патч). "Пустое" значение — пустая строка,
// непарсящееся число или пустой список — удаляет ключ: сохранённый payload
// атрибутов остаётся разреженным. Исходная карта не мутируется.
func ApplyValue(values map[string]any, field FieldConfig, raw any) map[string]any {
	next := make(map[string]any, len(values)+1)
	for key, value := range values {
		next[key] = value
	}

	var typed any
	switch field.Kind {
	case ControlNumber:
		text, _ := raw.(string)
		if strings.TrimSpace(text) == "" {
			typed = nil
		} else if parsed, err := strconv.ParseFloat(strings.TrimSpace(text), 64); err == nil {
			typed = parsed
		} else {
			typed = nil
		}
	case ControlArray:
		list, _ := raw.([]string)
		filtered := make([]string, 0, len(list))
		for _, entry := range list {
			if entry != "" {
				filtered = append(filtered, entry)
			}
		}
		typed = filtered
	default:
		text, _ := raw.(string)
		typed = text
	}

	if isEmptyValue(typed) {
		delete(next, field.Key)
	} else {
		next[field.Key] = typed
	}
	return next
}

func isEmptyValue(value any) bool {
	if value == nil {
		return true
	}
	if text, ok := value.(string); ok {
		return text == ""
	}
	if list, ok := value.([]string); ok {
		return len(list) == 0
	}
	return false
}
