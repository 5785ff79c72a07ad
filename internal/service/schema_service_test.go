package service

import (
	"reflect"
	"testing"
)

func props(keys map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": keys,
	}
}

func TestCalculateSchemaDiffAddedRemovedChanged(t *testing.T) {
	previous := props(map[string]interface{}{
		"voltage": map[string]interface{}{"type": "number", "title": "Напряжение"},
		"weight":  map[string]interface{}{"type": "number"},
	})
	current := props(map[string]interface{}{
		"voltage": map[string]interface{}{"type": "number", "title": "Напряжение, В"},
		"current": map[string]interface{}{"type": "number"},
	})

	diff := CalculateSchemaDiff(previous, current)

	added, ok := diff["added"].(map[string]interface{})
	if !ok || len(added) != 1 {
		t.Fatalf("ожидалось одно добавленное поле, получено %v", diff["added"])
	}
	if _, ok := added["current"]; !ok {
		t.Errorf("поле current должно попасть в added")
	}

	removed, ok := diff["removed"].([]string)
	if !ok || !reflect.DeepEqual(removed, []string{"weight"}) {
		t.Errorf("ожидалось removed=[weight], получено %v", diff["removed"])
	}

	changed, ok := diff["changed"].(map[string]interface{})
	if !ok || len(changed) != 1 {
		t.Fatalf("ожидалось одно изменённое поле, получено %v", diff["changed"])
	}
	entry, ok := changed["voltage"].(map[string]interface{})
	if !ok {
		t.Fatalf("ожидалась запись changed для voltage")
	}
	oldDef := entry["old"].(map[string]interface{})
	newDef := entry["new"].(map[string]interface{})
	if oldDef["title"] != "Напряжение" || newDef["title"] != "Напряжение, В" {
		t.Errorf("дельта voltage содержит неверные old/new: %v", entry)
	}
}

func TestCalculateSchemaDiffFirstVersion(t *testing.T) {
	current := props(map[string]interface{}{
		"voltage": map[string]interface{}{"type": "number"},
	})

	diff := CalculateSchemaDiff(nil, current)

	added := diff["added"].(map[string]interface{})
	if len(added) != 1 {
		t.Errorf("для первой версии все поля должны попасть в added, получено %v", added)
	}
	if removed := diff["removed"].([]string); len(removed) != 0 {
		t.Errorf("для первой версии removed должен быть пуст, получено %v", removed)
	}
	if changed := diff["changed"].(map[string]interface{}); len(changed) != 0 {
		t.Errorf("для первой версии changed должен быть пуст, получено %v", changed)
	}
}

func TestCalculateSchemaDiffIdenticalVersions(t *testing.T) {
	schema := props(map[string]interface{}{
		"voltage": map[string]interface{}{"type": "number", "enum": []interface{}{"220", "380"}},
	})

	diff := CalculateSchemaDiff(schema, schema)

	if len(diff["added"].(map[string]interface{})) != 0 ||
		len(diff["removed"].([]string)) != 0 ||
		len(diff["changed"].(map[string]interface{})) != 0 {
		t.Errorf("одинаковые версии должны давать пустую дельту, получено %v", diff)
	}
}
