package attrform

import (
	"reflect"
	"testing"
)

func passportSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"power": map[string]any{
				"type":    "number",
				"title":   "Мощность",
				"x-unit":  "кВт",
				"x-group": "Паспорт",
			},
			"protection": map[string]any{
				"type":    "string",
				"title":   "Класс защиты",
				"enum":    []any{"IP54", "IP65"},
				"x-group": "Паспорт",
			},
			"mounting": map[string]any{
				"type":  "array",
				"title": "Способ монтажа",
				"items": map[string]any{
					"type": "string",
					"enum": []any{"фланец", "лапа", "стойка"},
				},
				"x-group": "Паспорт",
			},
		},
	}
}

func findField(t *testing.T, groups []FieldGroup, key string) FieldConfig {
	t.Helper()
	for _, group := range groups {
		for _, field := range group.Fields {
			if field.Key == key {
				return field
			}
		}
	}
	t.Fatalf("поле %q не найдено в группах", key)
	return FieldConfig{}
}

func TestBuildGroupsByDeclaredGroup(t *testing.T) {
	groups := BuildGroups(passportSchema())
	if len(groups) != 1 {
		t.Fatalf("ожидалась одна группа, получено %d", len(groups))
	}
	if groups[0].Title != "Паспорт" {
		t.Fatalf("группа %q, ожидалась \"Паспорт\"", groups[0].Title)
	}

	power := findField(t, groups, "power")
	if power.Kind != ControlNumber || power.Suffix != "кВт" {
		t.Errorf("power: %+v, ожидался числовой контрол с суффиксом кВт", power)
	}
	protection := findField(t, groups, "protection")
	if protection.Kind != ControlEnum || !reflect.DeepEqual(protection.Options, []string{"IP54", "IP65"}) {
		t.Errorf("protection: %+v, ожидался enum-контрол", protection)
	}
	mounting := findField(t, groups, "mounting")
	if mounting.Kind != ControlArray {
		t.Errorf("mounting: контрол %q, массив должен рендериться как мультивыбор", mounting.Kind)
	}
	if !reflect.DeepEqual(mounting.Options, []string{"фланец", "лапа", "стойка"}) {
		t.Errorf("mounting: опции %v", mounting.Options)
	}
}

func TestBuildGroupsDefaultBucketAndFallback(t *testing.T) {
	schema := map[string]any{
		"properties": map[string]any{
			"weight": map[string]any{"type": "number"},
		},
	}
	groups := BuildGroups(schema)
	if len(groups) != 1 || groups[0].Title != DefaultGroupTitle {
		t.Fatalf("поле без x-group должно попадать в %q, получено %+v", DefaultGroupTitle, groups)
	}

	if BuildGroups(nil) != nil {
		t.Error("nil-схема должна давать nil (вызывающий подставит демо-набор)")
	}
	if BuildGroups(map[string]any{"properties": map[string]any{}}) != nil {
		t.Error("схема без свойств должна давать nil")
	}
	if len(DemoGroups()) == 0 {
		t.Error("демо-набор не должен быть пустым")
	}
}

func TestApplyNumberValue(t *testing.T) {
	groups := BuildGroups(passportSchema())
	power := findField(t, groups, "power")
	values := map[string]any{"power": float64(7)}

	next := ApplyValue(values, power, "12.5")
	if !reflect.DeepEqual(next, map[string]any{"power": 12.5}) {
		t.Fatalf("ввод 12.5: получено %v", next)
	}

	cleared := ApplyValue(next, power, "")
	if len(cleared) != 0 {
		t.Fatalf("очистка числа должна удалять ключ, получено %v", cleared)
	}

	if values["power"] != float64(7) {
		t.Fatal("исходная карта значений не должна мутироваться")
	}
}

func TestApplyArrayValue(t *testing.T) {
	groups := BuildGroups(passportSchema())
	mounting := findField(t, groups, "mounting")
	values := map[string]any{"mounting": []string{"лапа"}}

	next := ApplyValue(values, mounting, []string{"фланец", "стойка"})
	if !reflect.DeepEqual(next["mounting"], []string{"фланец", "стойка"}) {
		t.Fatalf("мультивыбор: получено %v", next["mounting"])
	}

	emptied := ApplyValue(next, mounting, []string{})
	if _, ok := emptied["mounting"]; ok {
		t.Fatal("пустой мультивыбор должен удалять ключ")
	}
}

func TestApplyStringValueDeleteOnEmpty(t *testing.T) {
	field := FieldConfig{Key: "ratio", Kind: ControlString}
	values := map[string]any{"ratio": "1:15", "power": 7.0}

	next := ApplyValue(values, field, "")
	if _, ok := next["ratio"]; ok {
		t.Fatal("пустая строка должна удалять ключ")
	}
	if next["power"] != 7.0 {
		t.Fatal("остальные ключи должны сохраняться без изменений")
	}
}

func TestStringPlaceholderFromDescription(t *testing.T) {
	schema := map[string]any{
		"properties": map[string]any{
			"ratio": map[string]any{
				"type":        "string",
				"title":       "Передаточное число",
				"description": "Напр. 1:15",
			},
		},
	}
	field := findField(t, BuildGroups(schema), "ratio")
	// description непустое и служит подписью, поэтому placeholder пуст.
	if field.Label != "Напр. 1:15" || field.Placeholder != "" {
		t.Errorf("ratio: %+v", field)
	}
}
