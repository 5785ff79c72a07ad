package handler

import (
	"errors"
	"net/http"
	"strconv"

	"tender-kb-go/internal/repository"
	"tender-kb-go/internal/service"
	"tender-kb-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// NomenclatureHandler обрабатывает запросы к классификатору номенклатуры:
// узлам, версиям схем и пресетам атрибутов.
type NomenclatureHandler struct {
	nodeService   service.NodeService
	schemaService service.SchemaService
	presetService service.PresetService
	registry      service.RegistryService
}

// NewNomenclatureHandler создаёт новый экземпляр NomenclatureHandler.
func NewNomenclatureHandler(nodeService service.NodeService, schemaService service.SchemaService, presetService service.PresetService, registry service.RegistryService) *NomenclatureHandler {
	return &NomenclatureHandler{
		nodeService:   nodeService,
		schemaService: schemaService,
		presetService: presetService,
		registry:      registry,
	}
}

// ListNodes возвращает узлы классификатора по фильтру.
func (h *NomenclatureHandler) ListNodes(c *gin.Context) {
	filter := repository.NodeFilter{Status: c.Query("status")}
	if raw := c.Query("parent_id"); raw != "" {
		if id, err := strconv.ParseUint(raw, 10, 32); err == nil {
			parentID := uint(id)
			filter.ParentID = &parentID
		}
	}
	if raw := c.Query("depth"); raw != "" {
		if depth, err := strconv.Atoi(raw); err == nil {
			filter.Depth = &depth
		}
	}

	nodes, err := h.nodeService.List(filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Не удалось получить узлы классификатора"})
		return
	}
	c.JSON(http.StatusOK, nodes)
}

// Tree возвращает дерево классификатора целиком.
func (h *NomenclatureHandler) Tree(c *gin.Context) {
	tree, err := h.nodeService.Tree()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Не удалось построить дерево классификатора"})
		return
	}
	c.JSON(http.StatusOK, tree)
}

// GetNode возвращает узел по идентификатору.
func (h *NomenclatureHandler) GetNode(c *gin.Context) {
	nodeID, ok := pathID(c, "id")
	if !ok {
		return
	}
	node, err := h.nodeService.Get(nodeID)
	if err != nil {
		if errors.Is(err, service.ErrNodeNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"detail": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Не удалось получить узел"})
		return
	}
	c.JSON(http.StatusOK, node)
}

// CreateNodeRequest — тело запроса на создание узла.
type CreateNodeRequest struct {
	ParentID *uint                  `json:"parent_id"`
	Code     string                 `json:"code" binding:"required"`
	Name     string                 `json:"name" binding:"required"`
	NodeType string                 `json:"node_type" binding:"required"`
	Meta     map[string]interface{} `json:"metadata"`
}

// CreateNode создаёт узел классификатора. Доступно только администратору.
func (h *NomenclatureHandler) CreateNode(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	var req CreateNodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Укажите код, название и тип узла"})
		return
	}

	node, err := h.nodeService.Create(service.NodeCreateInput{
		ParentID: req.ParentID,
		Code:     req.Code,
		Name:     req.Name,
		NodeType: req.NodeType,
		Meta:     req.Meta,
	}, user.ID)
	switch {
	case err == nil:
		c.JSON(http.StatusCreated, node)
	case errors.Is(err, service.ErrNodeCodeTaken):
		c.JSON(http.StatusConflict, gin.H{"detail": err.Error()})
	case errors.Is(err, service.ErrUnknownNodeType), errors.Is(err, service.ErrParentNodeDepth), errors.Is(err, service.ErrNodeArchived):
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
	case errors.Is(err, service.ErrNodeNotFound):
		c.JSON(http.StatusNotFound, gin.H{"detail": err.Error()})
	default:
		log.Errorf("[NomenclatureHandler] не удалось создать узел %q: %v", req.Code, err)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Не удалось создать узел"})
	}
}

// UpdateNodeRequest — тело запроса на изменение узла.
type UpdateNodeRequest struct {
	Name *string                `json:"name"`
	Meta map[string]interface{} `json:"metadata"`
}

// UpdateNode изменяет узел. Доступно только администратору.
func (h *NomenclatureHandler) UpdateNode(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	nodeID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req UpdateNodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Некорректное тело запроса"})
		return
	}

	node, err := h.nodeService.Update(nodeID, service.NodeUpdateInput{Name: req.Name, Meta: req.Meta}, user.ID)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, node)
	case errors.Is(err, service.ErrNodeNotFound):
		c.JSON(http.StatusNotFound, gin.H{"detail": err.Error()})
	case errors.Is(err, service.ErrNodeArchived):
		c.JSON(http.StatusConflict, gin.H{"detail": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Не удалось изменить узел"})
	}
}

// ArchiveNode архивирует узел. Доступно только администратору.
func (h *NomenclatureHandler) ArchiveNode(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	nodeID, ok := pathID(c, "id")
	if !ok {
		return
	}
	err := h.nodeService.Archive(nodeID, user.ID)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"detail": "Узел архивирован"})
	case errors.Is(err, service.ErrNodeNotFound):
		c.JSON(http.StatusNotFound, gin.H{"detail": err.Error()})
	case errors.Is(err, service.ErrNodeHasActiveChilds):
		c.JSON(http.StatusConflict, gin.H{"detail": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Не удалось архивировать узел"})
	}
}

// ListNodeVersions возвращает снимки версий узла.
func (h *NomenclatureHandler) ListNodeVersions(c *gin.Context) {
	nodeID, ok := pathID(c, "id")
	if !ok {
		return
	}
	versions, err := h.nodeService.ListVersions(nodeID)
	if err != nil {
		if errors.Is(err, service.ErrNodeNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"detail": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Не удалось получить версии узла"})
		return
	}
	c.JSON(http.StatusOK, versions)
}

// EffectiveSchema возвращает действующую схему узла с учётом
// наследования по цепочке и пресетов.
func (h *NomenclatureHandler) EffectiveSchema(c *gin.Context) {
	nodeID, ok := pathID(c, "id")
	if !ok {
		return
	}
	if _, err := h.nodeService.Get(nodeID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"detail": service.ErrNodeNotFound.Error()})
		return
	}
	schema, err := h.registry.EffectiveSchema(nodeID)
	if err != nil {
		log.Errorf("[NomenclatureHandler] не удалось собрать действующую схему узла %d: %v", nodeID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Не удалось собрать действующую схему"})
		return
	}
	c.JSON(http.StatusOK, schema)
}

// ListSchemaVersions возвращает версии схемы узла, новые первыми.
func (h *NomenclatureHandler) ListSchemaVersions(c *gin.Context) {
	nodeID, ok := pathID(c, "id")
	if !ok {
		return
	}
	versions, err := h.schemaService.ListVersions(nodeID)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, versions)
	case errors.Is(err, service.ErrNodeNotFound):
		c.JSON(http.StatusNotFound, gin.H{"detail": err.Error()})
	case errors.Is(err, service.ErrSchemaNodeNotClass):
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Не удалось получить версии схемы"})
	}
}

// CreateSchemaRequest — тело запроса на создание версии схемы.
type CreateSchemaRequest struct {
	JSONSchema map[string]interface{} `json:"json_schema" binding:"required"`
	Presets    []uint                 `json:"presets"`
	Comment    string                 `json:"comment"`
}

// CreateSchemaVersion создаёт черновую версию схемы узла.
func (h *NomenclatureHandler) CreateSchemaVersion(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	nodeID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req CreateSchemaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Укажите json_schema"})
		return
	}

	schema, err := h.schemaService.CreateVersion(nodeID, service.SchemaCreateInput{
		JSONSchema: req.JSONSchema,
		Presets:    req.Presets,
		Comment:    req.Comment,
	}, user.ID)
	switch {
	case err == nil:
		c.JSON(http.StatusCreated, schema)
	case errors.Is(err, service.ErrNodeNotFound), errors.Is(err, service.ErrSchemaPresetNotFound):
		c.JSON(http.StatusNotFound, gin.H{"detail": err.Error()})
	case errors.Is(err, service.ErrSchemaEmpty), errors.Is(err, service.ErrSchemaNodeNotClass):
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
	default:
		log.Errorf("[NomenclatureHandler] не удалось создать версию схемы узла %d: %v", nodeID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Не удалось создать версию схемы"})
	}
}

// pathVersion разбирает номер версии из пути.
func pathVersion(c *gin.Context) (int, bool) {
	version, err := strconv.Atoi(c.Param("version"))
	if err != nil || version < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Некорректный номер версии"})
		return 0, false
	}
	return version, true
}

// PublishSchemaVersion публикует черновик версии схемы.
func (h *NomenclatureHandler) PublishSchemaVersion(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	nodeID, ok := pathID(c, "id")
	if !ok {
		return
	}
	version, ok := pathVersion(c)
	if !ok {
		return
	}

	schema, err := h.schemaService.PublishVersion(nodeID, version, user.ID)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, schema)
	case errors.Is(err, service.ErrNodeNotFound), errors.Is(err, service.ErrSchemaNotFound):
		c.JSON(http.StatusNotFound, gin.H{"detail": err.Error()})
	case errors.Is(err, service.ErrSchemaNotDraft), errors.Is(err, service.ErrSchemaNodeNotClass):
		c.JSON(http.StatusConflict, gin.H{"detail": err.Error()})
	default:
		log.Errorf("[NomenclatureHandler] не удалось опубликовать версию v%d схемы узла %d: %v", version, nodeID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Не удалось опубликовать версию схемы"})
	}
}

// GetSchemaDiff возвращает дельту версии относительно предыдущей.
func (h *NomenclatureHandler) GetSchemaDiff(c *gin.Context) {
	nodeID, ok := pathID(c, "id")
	if !ok {
		return
	}
	version, ok := pathVersion(c)
	if !ok {
		return
	}

	revision, err := h.schemaService.GetDiff(nodeID, version)
	if err != nil {
		if errors.Is(err, service.ErrSchemaRevisionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"detail": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Не удалось получить дельту версии"})
		return
	}
	c.JSON(http.StatusOK, revision)
}

// ListPresets возвращает пресеты атрибутов, опционально по статусу.
func (h *NomenclatureHandler) ListPresets(c *gin.Context) {
	presets, err := h.presetService.List(c.Query("status"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Не удалось получить пресеты"})
		return
	}
	c.JSON(http.StatusOK, presets)
}

// CreatePresetRequest — тело запроса на создание пресета.
type CreatePresetRequest struct {
	Code        string                 `json:"code" binding:"required"`
	Title       string                 `json:"title" binding:"required"`
	Description string                 `json:"description"`
	JSONSchema  map[string]interface{} `json:"json_schema" binding:"required"`
}

// CreatePreset создаёт пресет атрибутов. Доступно только администратору.
func (h *NomenclatureHandler) CreatePreset(c *gin.Context) {
	var req CreatePresetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Укажите код, название и json_schema"})
		return
	}

	preset, err := h.presetService.Create(service.PresetCreateInput{
		Code:        req.Code,
		Title:       req.Title,
		Description: req.Description,
		JSONSchema:  req.JSONSchema,
	})
	switch {
	case err == nil:
		c.JSON(http.StatusCreated, preset)
	case errors.Is(err, service.ErrPresetCodeTaken):
		c.JSON(http.StatusConflict, gin.H{"detail": err.Error()})
	case errors.Is(err, service.ErrPresetEmpty):
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Не удалось создать пресет"})
	}
}

// PublishPreset публикует пресет. Доступно только администратору.
func (h *NomenclatureHandler) PublishPreset(c *gin.Context) {
	presetID, ok := pathID(c, "id")
	if !ok {
		return
	}
	preset, err := h.presetService.Publish(presetID)
	if err != nil {
		if errors.Is(err, service.ErrPresetNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"detail": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Не удалось опубликовать пресет"})
		return
	}
	c.JSON(http.StatusOK, preset)
}

// GetPreset возвращает пресет по идентификатору.
func (h *NomenclatureHandler) GetPreset(c *gin.Context) {
	presetID, ok := pathID(c, "id")
	if !ok {
		return
	}
	preset, err := h.presetService.Get(presetID)
	if err != nil {
		if errors.Is(err, service.ErrPresetNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"detail": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Не удалось получить пресет"})
		return
	}
	c.JSON(http.StatusOK, preset)
}

// UpdatePresetRequest — тело запроса на изменение пресета.
type UpdatePresetRequest struct {
	Title       *string                `json:"title"`
	Description *string                `json:"description"`
	JSONSchema  map[string]interface{} `json:"json_schema"`
}

// UpdatePreset изменяет пресет. Доступно только администратору.
func (h *NomenclatureHandler) UpdatePreset(c *gin.Context) {
	presetID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req UpdatePresetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Некорректное тело запроса"})
		return
	}

	preset, err := h.presetService.Update(presetID, service.PresetUpdateInput{
		Title:       req.Title,
		Description: req.Description,
		JSONSchema:  req.JSONSchema,
	})
	switch {
	case err == nil:
		c.JSON(http.StatusOK, preset)
	case errors.Is(err, service.ErrPresetNotFound):
		c.JSON(http.StatusNotFound, gin.H{"detail": err.Error()})
	case errors.Is(err, service.ErrPresetEmpty):
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Не удалось изменить пресет"})
	}
}

// ArchivePreset архивирует пресет. Доступно только администратору.
func (h *NomenclatureHandler) ArchivePreset(c *gin.Context) {
	presetID, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.presetService.Archive(presetID); err != nil {
		if errors.Is(err, service.ErrPresetNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"detail": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Не удалось архивировать пресет"})
		return
	}
	c.Status(http.StatusNoContent)
}
