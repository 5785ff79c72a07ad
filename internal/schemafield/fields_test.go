package schemafield

import (
	"reflect"
	"testing"
)

func sampleFields() []SchemaFieldForm {
	return []SchemaFieldForm{
		{
			Key:          "power",
			Type:         FieldNumber,
			Title:        "Мощность",
			Description:  "Номинальная мощность",
			Unit:         "кВт",
			DefaultValue: "7.5",
			Required:     true,
			Enabled:      true,
		},
		{
			Key:        "protection",
			Type:       FieldString,
			Title:      "Класс защиты",
			EnumValues: []string{"IP54", "IP65"},
			Required:   false,
			Enabled:    true,
		},
		{
			Key:          "mounting",
			Type:         FieldArray,
			Title:        "Способ монтажа",
			EnumValues:   []string{"фланец", "лапа", "стойка"},
			DefaultValue: []string{"лапа"},
			Enabled:      true,
		},
		{
			Key:          "explosion_proof",
			Type:         FieldBoolean,
			Title:        "Взрывозащита",
			DefaultValue: false,
			Enabled:      true,
		},
	}
}

func TestRoundTripPreservesFields(t *testing.T) {
	fields := sampleFields()
	restored := ConvertSchemaToFields(BuildSchemaPayload(fields))
	if len(restored) != len(fields) {
		t.Fatalf("ожидалось %d полей, получено %d", len(fields), len(restored))
	}
	byKey := make(map[string]SchemaFieldForm)
	for _, field := range restored {
		byKey[field.Key] = field
	}
	for _, want := range fields {
		got, ok := byKey[want.Key]
		if !ok {
			t.Fatalf("поле %q потеряно при round-trip", want.Key)
		}
		if got.Type != want.Type {
			t.Errorf("%s: тип %q, ожидался %q", want.Key, got.Type, want.Type)
		}
		if got.Title != want.Title {
			t.Errorf("%s: title %q, ожидался %q", want.Key, got.Title, want.Title)
		}
		if got.Description != want.Description {
			t.Errorf("%s: description %q, ожидался %q", want.Key, got.Description, want.Description)
		}
		if got.Unit != want.Unit {
			t.Errorf("%s: unit %q, ожидался %q", want.Key, got.Unit, want.Unit)
		}
		if !reflect.DeepEqual(got.EnumValues, want.EnumValues) {
			t.Errorf("%s: enum %v, ожидался %v", want.Key, got.EnumValues, want.EnumValues)
		}
		if got.Required != want.Required {
			t.Errorf("%s: required %v, ожидался %v", want.Key, got.Required, want.Required)
		}
		if !got.Enabled {
			t.Errorf("%s: сконвертированное поле должно быть включено", want.Key)
		}
	}
	// Числовой default редактируется строкой и восстанавливается в пределах
	// точности представления.
	if byKey["power"].DefaultValue != "7.5" {
		t.Errorf("power: default %v, ожидался \"7.5\"", byKey["power"].DefaultValue)
	}
	if !reflect.DeepEqual(byKey["mounting"].DefaultValue, []string{"лапа"}) {
		t.Errorf("mounting: default %v, ожидался [лапа]", byKey["mounting"].DefaultValue)
	}
	if byKey["explosion_proof"].DefaultValue != false {
		t.Errorf("explosion_proof: default %v, ожидался false", byKey["explosion_proof"].DefaultValue)
	}
}

func TestDisabledFieldsExcludedFromPayload(t *testing.T) {
	fields := sampleFields()
	fields[0].Enabled = false // power: required + disabled

	schema := BuildSchemaPayload(fields)
	properties := schema["properties"].(map[string]any)
	if _, ok := properties["power"]; ok {
		t.Fatal("выключенное поле не должно попадать в properties")
	}
	if rawRequired, ok := schema["required"]; ok {
		for _, entry := range rawRequired.([]any) {
			if entry == "power" {
				t.Fatal("выключенное поле не должно попадать в required")
			}
		}
	}
}

func TestEmptyFieldListPayload(t *testing.T) {
	schema := BuildSchemaPayload(nil)
	if schema["type"] != "object" {
		t.Fatalf("type = %v, ожидался object", schema["type"])
	}
	properties, ok := schema["properties"].(map[string]any)
	if !ok || len(properties) != 0 {
		t.Fatalf("ожидался пустой properties, получено %v", schema["properties"])
	}
	if _, ok := schema["required"]; ok {
		t.Fatal("пустой required должен опускаться, а не сериализоваться пустым массивом")
	}
}

func TestConvertToleratesMalformedSchema(t *testing.T) {
	cases := []map[string]any{
		nil,
		{},
		{"properties": "не объект"},
		{"properties": 42},
		{"type": "object"},
	}
	for i, schema := range cases {
		if fields := ConvertSchemaToFields(schema); len(fields) != 0 {
			t.Errorf("case %d: ожидался пустой список, получено %d полей", i, len(fields))
		}
	}
}

func TestParseFieldTypeFallbacks(t *testing.T) {
	cases := []struct {
		definition map[string]any
		want       FieldType
	}{
		{map[string]any{"type": "integer"}, FieldNumber},
		{map[string]any{"type": []any{"number", "null"}}, FieldNumber},
		{map[string]any{"type": "array"}, FieldArray},
		{map[string]any{"type": "boolean"}, FieldBoolean},
		{map[string]any{"type": "object"}, FieldString},
		{map[string]any{"type": 7}, FieldString},
		{map[string]any{}, FieldString},
	}
	for i, c := range cases {
		if got := ParseFieldType(c.definition); got != c.want {
			t.Errorf("case %d: %q, ожидался %q", i, got, c.want)
		}
	}
}

func TestNormalizeDefaultValue(t *testing.T) {
	numeric := SchemaFieldForm{Type: FieldNumber, DefaultValue: "12.5"}
	if value, ok := NormalizeDefaultValue(numeric); !ok || value != 12.5 {
		t.Errorf("число: (%v, %v), ожидалось (12.5, true)", value, ok)
	}
	broken := SchemaFieldForm{Type: FieldNumber, DefaultValue: "abc"}
	if _, ok := NormalizeDefaultValue(broken); ok {
		t.Error("нечисловой default числового поля должен опускаться")
	}
	empty := SchemaFieldForm{Type: FieldString, DefaultValue: ""}
	if _, ok := NormalizeDefaultValue(empty); ok {
		t.Error("пустая строка должна опускаться")
	}
	blankArray := SchemaFieldForm{Type: FieldArray, DefaultValue: []string{"  ", ""}}
	if _, ok := NormalizeDefaultValue(blankArray); ok {
		t.Error("массив из пустых элементов должен опускаться")
	}
	trimmed := SchemaFieldForm{Type: FieldArray, DefaultValue: []string{" лапа ", "фланец"}}
	value, ok := NormalizeDefaultValue(trimmed)
	if !ok || !reflect.DeepEqual(value, []any{"лапа", "фланец"}) {
		t.Errorf("массив: (%v, %v), ожидался нормализованный список", value, ok)
	}
}

func TestDecodeDefaultSkipsMismatchedTypes(t *testing.T) {
	schema := map[string]any{
		"properties": map[string]any{
			"flag":  map[string]any{"type": "boolean", "default": "true"},
			"count": map[string]any{"type": "number", "default": float64(3)},
			"tags":  map[string]any{"type": "array", "default": []any{"a", 1, "b"}},
		},
	}
	fields := ConvertSchemaToFields(schema)
	byKey := make(map[string]SchemaFieldForm)
	for _, f := range fields {
		byKey[f.Key] = f
	}
	if byKey["flag"].DefaultValue != nil {
		t.Error("строковый default логического поля должен игнорироваться")
	}
	if byKey["count"].DefaultValue != "3" {
		t.Errorf("count: default %v, ожидался \"3\"", byKey["count"].DefaultValue)
	}
	if !reflect.DeepEqual(byKey["tags"].DefaultValue, []string{"a", "b"}) {
		t.Errorf("tags: default %v, нестроковые элементы должны отбрасываться", byKey["tags"].DefaultValue)
	}
}
