package service

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"tender-kb-go/internal/model"

	"gorm.io/datatypes"
)

func TestDeepMergeSchemasRequiredUnion(t *testing.T) {
	base := map[string]interface{}{
		"required": []interface{}{"voltage", "weight"},
	}
	overlay := map[string]interface{}{
		"required": []interface{}{"weight", "current"},
	}

	merged := DeepMergeSchemas(base, overlay)

	want := []interface{}{"voltage", "weight", "current"}
	if !reflect.DeepEqual(merged["required"], want) {
		t.Errorf("required должен объединяться как множество с сохранением порядка: получено %v", merged["required"])
	}
}

func TestDeepMergeSchemasNestedMapsAndOverride(t *testing.T) {
	base := map[string]interface{}{
		"title": "Базовая схема",
		"properties": map[string]interface{}{
			"voltage": map[string]interface{}{"type": "number", "title": "Напряжение"},
		},
	}
	overlay := map[string]interface{}{
		"title": "Уточнённая схема",
		"properties": map[string]interface{}{
			"voltage": map[string]interface{}{"title": "Напряжение, В"},
			"current": map[string]interface{}{"type": "number"},
		},
	}

	merged := DeepMergeSchemas(base, overlay)

	if merged["title"] != "Уточнённая схема" {
		t.Errorf("скалярное значение должно перекрываться overlay, получено %v", merged["title"])
	}
	properties := merged["properties"].(map[string]interface{})
	voltage := properties["voltage"].(map[string]interface{})
	if voltage["type"] != "number" {
		t.Errorf("вложенное слияние должно сохранять type из base, получено %v", voltage)
	}
	if voltage["title"] != "Напряжение, В" {
		t.Errorf("вложенное слияние должно брать title из overlay, получено %v", voltage)
	}
	if _, ok := properties["current"]; !ok {
		t.Errorf("новое свойство из overlay должно попасть в результат")
	}
}

func TestDeepMergeSchemasDoesNotMutateBase(t *testing.T) {
	base := map[string]interface{}{
		"properties": map[string]interface{}{
			"voltage": map[string]interface{}{"type": "number"},
		},
	}
	overlay := map[string]interface{}{
		"properties": map[string]interface{}{
			"voltage": map[string]interface{}{"title": "Напряжение"},
		},
	}

	DeepMergeSchemas(base, overlay)

	voltage := base["properties"].(map[string]interface{})["voltage"].(map[string]interface{})
	if _, ok := voltage["title"]; ok {
		t.Errorf("слияние не должно менять base")
	}
}

func mustJSON(t *testing.T, value interface{}) datatypes.JSON {
	t.Helper()
	raw, err := json.Marshal(value)
	if err != nil {
		t.Fatalf("не удалось сериализовать фикстуру: %v", err)
	}
	return datatypes.JSON(raw)
}

func TestApplyPresetsIncludeAndExclude(t *testing.T) {
	schema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"voltage": map[string]interface{}{"type": "number"},
			"legacy":  map[string]interface{}{"type": "string"},
		},
		"required": []interface{}{"voltage", "legacy"},
	}

	include := model.ClassSchemaPreset{
		Mode: model.PresetModeInclude,
		Preset: &model.NomenclatureAttributePreset{
			JSONSchema: mustJSON(t, map[string]interface{}{
				"properties": map[string]interface{}{
					"current": map[string]interface{}{"type": "number"},
				},
				"required": []interface{}{"current"},
			}),
		},
	}
	exclude := model.ClassSchemaPreset{
		Mode: model.PresetModeExclude,
		Preset: &model.NomenclatureAttributePreset{
			JSONSchema: mustJSON(t, map[string]interface{}{
				"properties": map[string]interface{}{
					"legacy": map[string]interface{}{},
				},
			}),
		},
	}

	result, err := applyPresets(schema, []model.ClassSchemaPreset{include, exclude})
	if err != nil {
		t.Fatalf("применение пресетов завершилось ошибкой: %v", err)
	}

	properties := result["properties"].(map[string]interface{})
	if _, ok := properties["current"]; !ok {
		t.Errorf("include-пресет должен добавить свойство current")
	}
	if _, ok := properties["legacy"]; ok {
		t.Errorf("exclude-пресет должен убрать свойство legacy")
	}
	required := result["required"].([]interface{})
	for _, entry := range required {
		if entry == "legacy" {
			t.Errorf("exclude-пресет должен убрать legacy из required, получено %v", required)
		}
	}
}

func TestValidateAgainstSchema(t *testing.T) {
	schema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"voltage": map[string]interface{}{"type": "number"},
			"grade":   map[string]interface{}{"type": "string", "enum": []interface{}{"A", "B"}},
			"tags":    map[string]interface{}{"type": "array"},
		},
		"required": []interface{}{"voltage"},
	}

	cases := []struct {
		name    string
		payload map[string]interface{}
		wantErr bool
	}{
		{"валидные характеристики", map[string]interface{}{"voltage": 220.0, "grade": "A"}, false},
		{"отсутствует обязательное поле", map[string]interface{}{"grade": "A"}, true},
		{"неверный тип числа", map[string]interface{}{"voltage": "220"}, true},
		{"значение вне enum", map[string]interface{}{"voltage": 220.0, "grade": "C"}, true},
		{"неописанное поле", map[string]interface{}{"voltage": 220.0, "color": "red"}, true},
		{"массив допустим", map[string]interface{}{"voltage": 220.0, "tags": []interface{}{"x"}}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateAgainstSchema(schema, tc.payload)
			if tc.wantErr {
				if !errors.Is(err, ErrSchemaViolation) {
					t.Fatalf("ожидалась ошибка нарушения схемы, получено %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("неожиданная ошибка: %v", err)
			}
		})
	}
}
