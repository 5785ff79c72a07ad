// Package editor реализует сессию редактирования схемы узла классификатора:
// рабочий список полей, пресеты, валидацию и операции сохранения черновика,
// публикации и просмотра дельты через REST API бэкенда.
package editor

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"tender-kb-go/internal/schemafield"
	"tender-kb-go/pkg/apiclient"
)

// Backend — срез операций API, нужных редактору. Реализуется
// *apiclient.Client; в тестах подменяется заглушкой.
type Backend interface {
	ListSchemaVersions(ctx context.Context, nodeID int64) ([]apiclient.SchemaVersion, error)
	ListPublishedPresets(ctx context.Context) ([]apiclient.SchemaVersionPreset, error)
	CreateSchemaVersion(ctx context.Context, nodeID int64, payload apiclient.CreateSchemaVersionRequest) (*apiclient.SchemaVersion, error)
	PublishSchemaVersion(ctx context.Context, nodeID int64, version int) (*apiclient.SchemaVersion, error)
	FetchDiff(ctx context.Context, nodeID int64, version int) (*apiclient.SchemaDiff, error)
}

const errEnterNumber = "Введите число"

// Session — состояние одного редактора схемы. Состояние привязано к текущему
// выбранному узлу: смена узла отбрасывает незаконченные правки без
// подтверждения.
type Session struct {
	backend Backend
	cache   *Cache

	nodeID int64
	// generation растёт при каждой смене узла; ответ, стартовавший при другом
	// поколении, отбрасывается и не может примениться к чужому узлу.
	generation uint64

	fields          []schemafield.SchemaFieldForm
	fieldErrors     map[string]string
	selectedPresets []int64
	comment         string

	latest *apiclient.SchemaVersion

	savePending    bool
	publishPending bool

	localError     string
	successMessage string
}

// NewSession создаёт сессию поверх API и общего кэша редакторов.
func NewSession(backend Backend, cache *Cache) *Session {
	if cache == nil {
		cache = NewCache()
	}
	return &Session{
		backend:     backend,
		cache:       cache,
		fieldErrors: make(map[string]string),
	}
}

// NodeID возвращает id выбранного узла (0 — узел не выбран).
func (s *Session) NodeID() int64 { return s.nodeID }

// Fields возвращает рабочий список полей.
func (s *Session) Fields() []schemafield.SchemaFieldForm { return s.fields }

// FieldError возвращает текст ошибки поля, если она есть.
func (s *Session) FieldError(key string) string { return s.fieldErrors[key] }

// LocalError — текущее сообщение об ошибке уровня формы.
func (s *Session) LocalError() string { return s.localError }

// SuccessMessage — текущее сообщение об успехе.
func (s *Session) SuccessMessage() string { return s.successMessage }

// SavePending сообщает, идёт ли сейчас сохранение: на это время контрол
// сохранения блокируется, чем и сериализуются сохранения одного узла.
func (s *Session) SavePending() bool { return s.savePending }

// SelectedPresets возвращает отмеченные пресеты.
func (s *Session) SelectedPresets() []int64 { return s.selectedPresets }

// SetComment задаёт комментарий будущей версии.
func (s *Session) SetComment(comment string) { s.comment = comment }

// LatestVersion — последняя загруженная версия схемы узла, nil если её нет.
func (s *Session) LatestVersion() *apiclient.SchemaVersion { return s.latest }

// SelectNode переключает редактор на узел: прежние ошибки и незаконченные
// правки отбрасываются, список полей перечитывается из последней версии
// схемы узла (или остаётся пустым, если версий нет).
func (s *Session) SelectNode(ctx context.Context, nodeID int64) error {
	s.generation++
	s.nodeID = nodeID
	s.resetEditingState()
	if nodeID == 0 {
		return nil
	}
	return s.reloadVersions(ctx)
}

func (s *Session) resetEditingState() {
	s.fields = nil
	s.fieldErrors = make(map[string]string)
	s.selectedPresets = nil
	s.comment = ""
	s.latest = nil
	s.localError = ""
	s.successMessage = ""
}

// reloadVersions перечитывает версии схемы текущего узла, используя кэш.
// Поздний ответ для уже сменённого узла игнорируется.
func (s *Session) reloadVersions(ctx context.Context) error {
	nodeID := s.nodeID
	if cached, ok := s.cache.Get(nodeID, KindVersions); ok {
		s.applyVersions(nodeID, cached.([]apiclient.SchemaVersion))
		return nil
	}

	generation := s.generation
	versions, err := s.backend.ListSchemaVersions(ctx, nodeID)
	if err != nil {
		if generation == s.generation {
			s.localError = err.Error()
		}
		return err
	}
	// За время запроса узел могли сменить: результат кэшируем под исходным
	// узлом, но к состоянию сессии не применяем.
	s.cache.Set(nodeID, KindVersions, versions, 0)
	if generation != s.generation {
		return nil
	}
	s.applyVersions(nodeID, versions)
	return nil
}

func (s *Session) applyVersions(nodeID int64, versions []apiclient.SchemaVersion) {
	if nodeID != s.nodeID {
		return
	}
	if len(versions) == 0 {
		s.latest = nil
		s.fields = nil
		s.selectedPresets = nil
		return
	}
	latest := versions[0]
	s.latest = &latest
	s.fields = schemafield.ConvertSchemaToFields(latest.JSONSchema)
	s.selectedPresets = nil
	for _, preset := range latest.Presets {
		s.selectedPresets = append(s.selectedPresets, preset.ID)
	}
}

// Presets возвращает библиотеку опубликованных пресетов. Список общий для
// всех редакторов сессии, живёт в кэше пять минут и никем не мутируется.
func (s *Session) Presets(ctx context.Context) ([]apiclient.SchemaVersionPreset, error) {
	if cached, ok := s.cache.Get(0, KindPresets); ok {
		return cached.([]apiclient.SchemaVersionPreset), nil
	}
	presets, err := s.backend.ListPublishedPresets(ctx)
	if err != nil {
		return nil, err
	}
	s.cache.Set(0, KindPresets, presets, PresetCacheTTL)
	return presets, nil
}

// TogglePreset отмечает или снимает пресет для применения и привязки к
// следующей версии.
func (s *Session) TogglePreset(presetID int64) {
	for i, id := range s.selectedPresets {
		if id == presetID {
			s.selectedPresets = append(s.selectedPresets[:i], s.selectedPresets[i+1:]...)
			return
		}
	}
	s.selectedPresets = append(s.selectedPresets, presetID)
}

// AddField добавляет новое поле. Пустой или уже занятый ключ отклоняется с
// ошибкой формы, список полей при этом не меняется.
func (s *Session) AddField(key string, fieldType schemafield.FieldType) error {
	trimmed := strings.TrimSpace(key)
	if trimmed == "" {
		s.localError = "Укажите ключ для нового поля"
		return errors.New(s.localError)
	}
	for _, field := range s.fields {
		if field.Key == trimmed {
			s.localError = "Поле с таким ключом уже существует"
			return errors.New(s.localError)
		}
	}
	field := schemafield.SchemaFieldForm{
		Key:     trimmed,
		Type:    fieldType,
		Title:   trimmed,
		Enabled: true,
	}
	switch fieldType {
	case schemafield.FieldString, schemafield.FieldArray:
		field.EnumValues = []string{}
	}
	switch fieldType {
	case schemafield.FieldBoolean:
		field.DefaultValue = nil
	case schemafield.FieldArray:
		field.DefaultValue = []string{}
	default:
		field.DefaultValue = ""
	}
	s.fields = append(s.fields, field)
	delete(s.fieldErrors, trimmed)
	s.localError = ""
	return nil
}

// ApplyPresets подмешивает поля отмеченных пресетов в рабочий список.
// Объединение идёт по ключу, позднее добавленный источник выигрывает,
// подмешанные поля принудительно включаются. Нулевой выбор и пресеты без
// полей отклоняются без изменения состояния.
func (s *Session) ApplyPresets(ctx context.Context) error {
	if len(s.selectedPresets) == 0 {
		s.localError = "Выберите хотя бы один пресет для автозаполнения"
		return errors.New(s.localError)
	}
	available, err := s.Presets(ctx)
	if err != nil {
		s.localError = err.Error()
		return err
	}
	byID := make(map[int64]apiclient.SchemaVersionPreset, len(available))
	for _, preset := range available {
		byID[preset.ID] = preset
	}

	var merged []schemafield.SchemaFieldForm
	applied := make(map[int64]struct{})
	for _, presetID := range s.selectedPresets {
		preset, ok := byID[presetID]
		if !ok {
			continue
		}
		merged = append(merged, schemafield.ConvertSchemaToFields(preset.JSONSchema)...)
		applied[presetID] = struct{}{}
	}
	if len(merged) == 0 {
		s.localError = "Выбранные пресеты не содержат полей"
		return errors.New(s.localError)
	}

	index := make(map[string]int, len(s.fields))
	next := make([]schemafield.SchemaFieldForm, len(s.fields))
	copy(next, s.fields)
	for i, field := range next {
		index[field.Key] = i
	}
	for _, field := range merged {
		field.Enabled = true
		if i, ok := index[field.Key]; ok {
			next[i] = field
		} else {
			index[field.Key] = len(next)
			next = append(next, field)
		}
		delete(s.fieldErrors, field.Key)
	}
	s.fields = next

	// Применённые пресеты снимаются с выбора.
	remaining := s.selectedPresets[:0]
	for _, id := range s.selectedPresets {
		if _, ok := applied[id]; !ok {
			remaining = append(remaining, id)
		}
	}
	s.selectedPresets = remaining
	s.localError = ""
	s.successMessage = "Поля из выбранных пресетов добавлены в схему. Проверьте атрибуты и сохраните версию."
	return nil
}

// findField возвращает индекс поля по ключу.
func (s *Session) findField(key string) int {
	for i, field := range s.fields {
		if field.Key == key {
			return i
		}
	}
	return -1
}

// ToggleField включает или выключает поле в сериализуемой схеме.
func (s *Session) ToggleField(key string, enabled bool) {
	if i := s.findField(key); i >= 0 {
		s.fields[i].Enabled = enabled
	}
}

// SetFieldRequired помечает поле обязательным.
func (s *Session) SetFieldRequired(key string, required bool) {
	if i := s.findField(key); i >= 0 {
		s.fields[i].Required = required
	}
}

// SetFieldTitle задаёт отображаемое имя поля.
func (s *Session) SetFieldTitle(key, title string) {
	if i := s.findField(key); i >= 0 {
		s.fields[i].Title = title
	}
}

// SetFieldDescription задаёт описание поля.
func (s *Session) SetFieldDescription(key, description string) {
	if i := s.findField(key); i >= 0 {
		s.fields[i].Description = description
	}
}

// SetFieldUnit задаёт единицу измерения (имеет смысл для чисел).
func (s *Session) SetFieldUnit(key, unit string) {
	if i := s.findField(key); i >= 0 {
		s.fields[i].Unit = unit
	}
}

// ChangeFieldType меняет тип поля, сбрасывая тип-зависимые части: enum,
// единицу измерения и значение по умолчанию.
func (s *Session) ChangeFieldType(key string, fieldType schemafield.FieldType) {
	i := s.findField(key)
	if i < 0 {
		return
	}
	field := &s.fields[i]
	field.Type = fieldType
	switch fieldType {
	case schemafield.FieldString, schemafield.FieldArray:
		field.EnumValues = []string{}
	default:
		field.EnumValues = nil
	}
	field.Unit = ""
	switch fieldType {
	case schemafield.FieldBoolean:
		field.DefaultValue = nil
	case schemafield.FieldArray:
		field.DefaultValue = []string{}
	default:
		field.DefaultValue = ""
	}
	delete(s.fieldErrors, key)
}

// SetFieldEnum разбирает список значений enum из строки с запятыми.
func (s *Session) SetFieldEnum(key, raw string) {
	i := s.findField(key)
	if i < 0 {
		return
	}
	parts := strings.Split(raw, ",")
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			values = append(values, part)
		}
	}
	s.fields[i].EnumValues = values
}

// SetFieldDefault применяет ввод значения по умолчанию с живой валидацией:
// нечисловой ввод для числового поля сразу помечается ошибкой поля, но
// сохраняется для дальнейшего редактирования.
func (s *Session) SetFieldDefault(key, raw string) {
	i := s.findField(key)
	if i < 0 {
		return
	}
	field := &s.fields[i]
	switch field.Type {
	case schemafield.FieldNumber:
		if raw == "" {
			delete(s.fieldErrors, key)
		} else if _, err := strconv.ParseFloat(strings.TrimSpace(raw), 64); err != nil {
			s.fieldErrors[key] = errEnterNumber
		} else {
			delete(s.fieldErrors, key)
		}
		field.DefaultValue = raw
	case schemafield.FieldBoolean:
		delete(s.fieldErrors, key)
		if raw == "" {
			field.DefaultValue = nil
		} else {
			field.DefaultValue = raw == "true"
		}
	case schemafield.FieldArray:
		delete(s.fieldErrors, key)
		parts := strings.Split(raw, ",")
		values := make([]string, 0, len(parts))
		for _, part := range parts {
			part = strings.TrimSpace(part)
			if part != "" {
				values = append(values, part)
			}
		}
		field.DefaultValue = values
	default:
		delete(s.fieldErrors, key)
		field.DefaultValue = raw
	}
}

// RenameField меняет ключ поля. Ошибка, висевшая на старом ключе,
// отбрасывается: значение по умолчанию будет перепроверено перед
// сохранением, а переносить сообщение на новый ключ без перепроверки
// некорректно.
func (s *Session) RenameField(oldKey, newKey string) error {
	trimmed := strings.TrimSpace(newKey)
	if trimmed == "" {
		s.localError = "Укажите ключ для нового поля"
		return errors.New(s.localError)
	}
	if trimmed != oldKey {
		for _, field := range s.fields {
			if field.Key == trimmed {
				s.localError = "Поле с таким ключом уже существует"
				return errors.New(s.localError)
			}
		}
	}
	i := s.findField(oldKey)
	if i < 0 {
		return fmt.Errorf("поле %q не найдено", oldKey)
	}
	s.fields[i].Key = trimmed
	delete(s.fieldErrors, oldKey)
	s.localError = ""
	return nil
}

// Validate проверяет поля перед сохранением: у включённого числового поля
// непустое значение по умолчанию обязано парситься как число. Более глубокая
// проверка (например, вхождение default в enum) на этом слое не выполняется.
func (s *Session) Validate() bool {
	errorsFound := false
	for _, field := range s.fields {
		message := ""
		if field.Enabled && field.Type == schemafield.FieldNumber {
			if text, ok := field.DefaultValue.(string); ok && text != "" {
				if _, err := strconv.ParseFloat(strings.TrimSpace(text), 64); err != nil {
					message = errEnterNumber
				}
			}
		}
		if message != "" {
			s.fieldErrors[field.Key] = message
			errorsFound = true
		} else {
			delete(s.fieldErrors, field.Key)
		}
	}
	return !errorsFound
}

// SaveDraft собирает схему из рабочего списка и создаёт новую версию-черновик.
// Блокируется без выбранного узла, при ошибках валидации и при пустой схеме;
// в этих случаях запрос не отправляется.
func (s *Session) SaveDraft(ctx context.Context) error {
	if s.savePending {
		return errors.New("сохранение уже выполняется")
	}
	if s.nodeID == 0 {
		s.localError = "Не выбран узел классификатора"
		return errors.New(s.localError)
	}
	if !s.Validate() {
		s.localError = "Исправьте ошибки в атрибутах"
		return errors.New(s.localError)
	}
	payload := schemafield.BuildSchemaPayload(s.fields)
	properties, _ := payload["properties"].(map[string]any)
	if len(properties) == 0 {
		s.localError = "Добавьте и включите хотя бы одно поле"
		return errors.New(s.localError)
	}

	s.localError = ""
	s.savePending = true
	defer func() { s.savePending = false }()

	nodeID := s.nodeID
	generation := s.generation
	_, err := s.backend.CreateSchemaVersion(ctx, nodeID, apiclient.CreateSchemaVersionRequest{
		JSONSchema: payload,
		Presets:    append([]int64(nil), s.selectedPresets...),
		Comment:    strings.TrimSpace(s.comment),
	})
	if err != nil {
		if generation == s.generation {
			s.localError = err.Error()
			s.successMessage = ""
		}
		return err
	}
	s.cache.Invalidate(nodeID, KindVersions, KindDiff)
	if generation != s.generation {
		return nil
	}
	// Сохранение создаёт черновик: публикация — отдельный явный шаг.
	s.successMessage = "Новая версия схемы сохранена. Не забудьте опубликовать её в админке."
	s.localError = ""
	return s.reloadVersions(ctx)
}

// Publish публикует явно указанную версию. Подразумеваемой "последней"
// версии здесь нет — номер передаёт вызывающая сторона.
func (s *Session) Publish(ctx context.Context, version int) error {
	if s.publishPending {
		return errors.New("публикация уже выполняется")
	}
	if s.nodeID == 0 {
		s.localError = "Не выбран узел классификатора"
		return errors.New(s.localError)
	}
	s.publishPending = true
	defer func() { s.publishPending = false }()

	nodeID := s.nodeID
	generation := s.generation
	published, err := s.backend.PublishSchemaVersion(ctx, nodeID, version)
	if err != nil {
		if generation == s.generation {
			s.localError = err.Error()
			s.successMessage = ""
		}
		return err
	}
	s.cache.Invalidate(nodeID, KindVersions, KindDiff)
	if generation != s.generation {
		return nil
	}
	s.successMessage = fmt.Sprintf("Версия v%d опубликована.", published.Version)
	s.localError = ""
	return s.reloadVersions(ctx)
}

// Diff запрашивает дельту конкретной версии — только по явному запросу
// пользователя. nil без ошибки означает, что дельты нет (первая версия);
// это отображаемый результат, а не сбой.
func (s *Session) Diff(ctx context.Context, version int) (*apiclient.SchemaDiff, error) {
	if s.nodeID == 0 {
		return nil, errors.New("Не выбран узел классификатора")
	}
	nodeID := s.nodeID
	if cached, ok := s.cache.Get(nodeID, KindDiff); ok {
		if diff, ok := cached.(*apiclient.SchemaDiff); ok && diff != nil && diff.Version == version {
			return diff, nil
		}
	}
	diff, err := s.backend.FetchDiff(ctx, nodeID, version)
	if err != nil {
		return nil, err
	}
	if diff != nil {
		s.cache.Set(nodeID, KindDiff, diff, 0)
	}
	return diff, nil
}
