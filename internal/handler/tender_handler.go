package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"tender-kb-go/internal/repository"
	"tender-kb-go/internal/service"
	"tender-kb-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// TenderHandler обрабатывает запросы к тендерам, их файлам и позициям.
type TenderHandler struct {
	tenderService   service.TenderService
	positionService service.PositionService
	fileService     service.FileService
	auditService    service.AuditService
}

// NewTenderHandler создаёт новый экземпляр TenderHandler.
func NewTenderHandler(tenderService service.TenderService, positionService service.PositionService, fileService service.FileService, auditService service.AuditService) *TenderHandler {
	return &TenderHandler{
		tenderService:   tenderService,
		positionService: positionService,
		fileService:     fileService,
		auditService:    auditService,
	}
}

// pathID разбирает числовой параметр пути.
func pathID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Некорректный идентификатор в пути запроса"})
		return 0, false
	}
	return uint(id), true
}

// CreateTenderRequest — тело запроса на создание тендера.
type CreateTenderRequest struct {
	Number          string                 `json:"number" binding:"required"`
	Title           string                 `json:"title" binding:"required"`
	Description     string                 `json:"description"`
	Customer        string                 `json:"customer"`
	Source          string                 `json:"source"`
	SourceURL       string                 `json:"source_url"`
	DeadlineAt      time.Time              `json:"deadline_at" binding:"required"`
	InitialMaxPrice float64                `json:"initial_max_price"`
	Currency        string                 `json:"currency"`
	Terms           map[string]interface{} `json:"terms"`
}

// Create создаёт тендер.
func (h *TenderHandler) Create(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	var req CreateTenderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Укажите номер закупки, название и срок подачи"})
		return
	}

	tender, err := h.tenderService.Create(service.TenderCreateInput{
		Number:          req.Number,
		Title:           req.Title,
		Description:     req.Description,
		Customer:        req.Customer,
		Source:          req.Source,
		SourceURL:       req.SourceURL,
		DeadlineAt:      req.DeadlineAt,
		InitialMaxPrice: req.InitialMaxPrice,
		Currency:        req.Currency,
		Terms:           req.Terms,
	}, user.ID)
	if err != nil {
		if errors.Is(err, service.ErrTenderNumberTaken) {
			c.JSON(http.StatusConflict, gin.H{"detail": err.Error()})
			return
		}
		log.Errorf("[TenderHandler] не удалось создать тендер %q: %v", req.Number, err)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Не удалось создать тендер"})
		return
	}
	c.JSON(http.StatusCreated, tender)
}

// List возвращает страницу тендеров по фильтру.
func (h *TenderHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	size, _ := strconv.Atoi(c.DefaultQuery("size", "20"))
	if size < 1 || size > 100 {
		size = 20
	}

	filter := repository.TenderFilter{
		StageCode:       c.Query("stage"),
		Query:           c.Query("q"),
		IncludeArchived: c.Query("include_archived") == "true",
		Offset:          (page - 1) * size,
		Limit:           size,
	}
	if raw := c.Query("responsible_id"); raw != "" {
		if id, err := strconv.ParseUint(raw, 10, 32); err == nil {
			responsibleID := uint(id)
			filter.ResponsibleID = &responsibleID
		}
	}

	tenders, total, err := h.tenderService.List(filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Не удалось получить список тендеров"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": tenders, "total": total, "page": page, "size": size})
}

// Get возвращает тендер по идентификатору.
func (h *TenderHandler) Get(c *gin.Context) {
	tenderID, ok := pathID(c, "id")
	if !ok {
		return
	}
	tender, err := h.tenderService.Get(tenderID)
	if err != nil {
		if errors.Is(err, service.ErrTenderNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"detail": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Не удалось получить тендер"})
		return
	}
	c.JSON(http.StatusOK, tender)
}

// UpdateTenderRequest — тело запроса на изменение тендера.
type UpdateTenderRequest struct {
	Title           *string                `json:"title"`
	Description     *string                `json:"description"`
	Customer        *string                `json:"customer"`
	SourceURL       *string                `json:"source_url"`
	DeadlineAt      *time.Time             `json:"deadline_at"`
	InitialMaxPrice *float64               `json:"initial_max_price"`
	Terms           map[string]interface{} `json:"terms"`
}

// Update изменяет поля тендера.
func (h *TenderHandler) Update(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	tenderID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req UpdateTenderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Некорректное тело запроса"})
		return
	}

	tender, err := h.tenderService.Update(tenderID, service.TenderUpdateInput{
		Title:           req.Title,
		Description:     req.Description,
		Customer:        req.Customer,
		SourceURL:       req.SourceURL,
		DeadlineAt:      req.DeadlineAt,
		InitialMaxPrice: req.InitialMaxPrice,
		Terms:           req.Terms,
	}, user.ID)
	if err != nil {
		if errors.Is(err, service.ErrTenderNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"detail": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Не удалось изменить тендер"})
		return
	}
	c.JSON(http.StatusOK, tender)
}

// ChangeStageRequest — тело запроса на смену стадии.
type ChangeStageRequest struct {
	Stage string `json:"stage" binding:"required"`
}

// ChangeStage переводит тендер на другую стадию.
func (h *TenderHandler) ChangeStage(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	tenderID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req ChangeStageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Укажите код целевой стадии"})
		return
	}

	tender, err := h.tenderService.ChangeStage(tenderID, req.Stage, user)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, tender)
	case errors.Is(err, service.ErrTenderNotFound), errors.Is(err, service.ErrStageNotFound):
		c.JSON(http.StatusNotFound, gin.H{"detail": err.Error()})
	case errors.Is(err, service.ErrTransitionForbidden), errors.Is(err, service.ErrPositionsNotComplete):
		c.JSON(http.StatusConflict, gin.H{"detail": err.Error()})
	case errors.Is(err, service.ErrRoleRequired):
		c.JSON(http.StatusForbidden, gin.H{"detail": err.Error()})
	default:
		log.Errorf("[TenderHandler] не удалось сменить стадию тендера %d: %v", tenderID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Не удалось сменить стадию"})
	}
}

// AssignRequest — тело запроса на назначение пользователя.
type AssignRequest struct {
	UserID uint `json:"user_id" binding:"required"`
}

// AssignResponsible назначает ответственного менеджера.
func (h *TenderHandler) AssignResponsible(c *gin.Context) {
	h.assign(c, h.tenderService.AssignResponsible)
}

// AssignEngineer назначает инженера.
func (h *TenderHandler) AssignEngineer(c *gin.Context) {
	h.assign(c, h.tenderService.AssignEngineer)
}

func (h *TenderHandler) assign(c *gin.Context, assign func(tenderID, userID, actorID uint) error) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	tenderID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req AssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Укажите user_id"})
		return
	}

	if err := assign(tenderID, req.UserID, user.ID); err != nil {
		if errors.Is(err, service.ErrTenderNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"detail": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Не удалось назначить пользователя"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"detail": "Пользователь назначен"})
}

// Archive переводит тендер в архив.
func (h *TenderHandler) Archive(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	tenderID, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.tenderService.Archive(tenderID, user.ID); err != nil {
		if errors.Is(err, service.ErrTenderNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"detail": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Не удалось архивировать тендер"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"detail": "Тендер архивирован"})
}

// ListStages возвращает справочник стадий.
func (h *TenderHandler) ListStages(c *gin.Context) {
	stages, err := h.tenderService.ListStages()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Не удалось получить справочник стадий"})
		return
	}
	c.JSON(http.StatusOK, stages)
}

// UploadFile принимает файл формы и сохраняет его за тендером.
func (h *TenderHandler) UploadFile(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	tenderID, ok := pathID(c, "id")
	if !ok {
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Запрос не содержит файл"})
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Не удалось прочитать файл"})
		return
	}
	defer file.Close()

	record, err := h.fileService.Upload(c.Request.Context(), tenderID, fileHeader.Filename, c.PostForm("category"), file, fileHeader.Size, user.ID)
	if err != nil {
		if errors.Is(err, service.ErrUnknownFileCategory) || errors.Is(err, service.ErrFileTypeUnsupported) {
			c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
			return
		}
		log.Errorf("[TenderHandler] не удалось сохранить файл %q тендера %d: %v", fileHeader.Filename, tenderID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Не удалось сохранить файл"})
		return
	}
	c.JSON(http.StatusCreated, record)
}

// ListFiles возвращает файлы тендера.
func (h *TenderHandler) ListFiles(c *gin.Context) {
	tenderID, ok := pathID(c, "id")
	if !ok {
		return
	}
	files, err := h.fileService.ListByTender(tenderID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Не удалось получить список файлов"})
		return
	}
	c.JSON(http.StatusOK, files)
}

// DownloadFile выдаёт временную ссылку на скачивание файла.
func (h *TenderHandler) DownloadFile(c *gin.Context) {
	tenderID, ok := pathID(c, "id")
	if !ok {
		return
	}
	fileID, ok := pathID(c, "fileId")
	if !ok {
		return
	}
	url, err := h.fileService.DownloadURL(tenderID, fileID)
	if err != nil {
		if errors.Is(err, service.ErrFileNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"detail": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Не удалось сформировать ссылку на скачивание"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

// DeleteFile помечает файл архивным.
func (h *TenderHandler) DeleteFile(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	tenderID, ok := pathID(c, "id")
	if !ok {
		return
	}
	fileID, ok := pathID(c, "fileId")
	if !ok {
		return
	}
	if err := h.fileService.Delete(tenderID, fileID, user.ID); err != nil {
		if errors.Is(err, service.ErrFileNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"detail": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Не удалось удалить файл"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"detail": "Файл удалён"})
}

// PositionRequest — тело запроса на создание позиции.
type PositionRequest struct {
	Name                  string                 `json:"name" binding:"required"`
	Description           string                 `json:"description"`
	Quantity              float64                `json:"quantity" binding:"required,gt=0"`
	Unit                  string                 `json:"unit"`
	NomenclatureNodeID    *uint                  `json:"nomenclature_node_id"`
	TechnicalRequirements map[string]interface{} `json:"technical_requirements"`
}

// CreatePosition создаёт позицию тендера.
func (h *TenderHandler) CreatePosition(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	tenderID, ok := pathID(c, "id")
	if !ok {
		return
	}
	if _, err := h.tenderService.Get(tenderID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"detail": service.ErrTenderNotFound.Error()})
		return
	}
	var req PositionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Укажите название и положительное количество"})
		return
	}

	position, err := h.positionService.Create(tenderID, service.PositionCreateInput{
		Name:                  req.Name,
		Description:           req.Description,
		Quantity:              req.Quantity,
		Unit:                  req.Unit,
		NomenclatureNodeID:    req.NomenclatureNodeID,
		TechnicalRequirements: req.TechnicalRequirements,
	}, user.ID)
	if err != nil {
		if errors.Is(err, service.ErrSchemaViolation) || errors.Is(err, service.ErrPositionNodeNotSet) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": err.Error()})
			return
		}
		log.Errorf("[TenderHandler] не удалось создать позицию тендера %d: %v", tenderID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Не удалось создать позицию"})
		return
	}
	c.JSON(http.StatusCreated, position)
}

// ListPositions возвращает позиции тендера.
func (h *TenderHandler) ListPositions(c *gin.Context) {
	tenderID, ok := pathID(c, "id")
	if !ok {
		return
	}
	positions, err := h.positionService.ListByTender(tenderID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Не удалось получить список позиций"})
		return
	}
	c.JSON(http.StatusOK, positions)
}

// UpdatePositionRequest — тело запроса на изменение позиции.
type UpdatePositionRequest struct {
	Name                  *string                `json:"name"`
	Description           *string                `json:"description"`
	Quantity              *float64               `json:"quantity"`
	Unit                  *string                `json:"unit"`
	NomenclatureNodeID    *uint                  `json:"nomenclature_node_id"`
	TechnicalRequirements map[string]interface{} `json:"technical_requirements"`
	PricePerUnit          *float64               `json:"price_per_unit"`
}

// UpdatePosition изменяет позицию тендера.
func (h *TenderHandler) UpdatePosition(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	tenderID, ok := pathID(c, "id")
	if !ok {
		return
	}
	positionID, ok := pathID(c, "positionId")
	if !ok {
		return
	}
	var req UpdatePositionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Некорректное тело запроса"})
		return
	}

	position, err := h.positionService.Update(tenderID, positionID, service.PositionUpdateInput{
		Name:                  req.Name,
		Description:           req.Description,
		Quantity:              req.Quantity,
		Unit:                  req.Unit,
		NomenclatureNodeID:    req.NomenclatureNodeID,
		TechnicalRequirements: req.TechnicalRequirements,
		PricePerUnit:          req.PricePerUnit,
	}, user.ID)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, position)
	case errors.Is(err, service.ErrPositionNotFound), errors.Is(err, service.ErrPositionTenderMismatch):
		c.JSON(http.StatusNotFound, gin.H{"detail": service.ErrPositionNotFound.Error()})
	case errors.Is(err, service.ErrSchemaViolation), errors.Is(err, service.ErrPositionNodeNotSet):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Не удалось изменить позицию"})
	}
}

// PositionStatusRequest — тело запроса на смену статуса позиции.
type PositionStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// SetPositionStatus переводит позицию в новый статус.
func (h *TenderHandler) SetPositionStatus(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	tenderID, ok := pathID(c, "id")
	if !ok {
		return
	}
	positionID, ok := pathID(c, "positionId")
	if !ok {
		return
	}
	var req PositionStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Укажите статус"})
		return
	}

	position, err := h.positionService.SetStatus(tenderID, positionID, req.Status, user.ID)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, position)
	case errors.Is(err, service.ErrUnknownPositionStatus):
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
	case errors.Is(err, service.ErrPositionNotFound), errors.Is(err, service.ErrPositionTenderMismatch):
		c.JSON(http.StatusNotFound, gin.H{"detail": service.ErrPositionNotFound.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Не удалось сменить статус позиции"})
	}
}

// DeletePosition удаляет позицию тендера.
func (h *TenderHandler) DeletePosition(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	tenderID, ok := pathID(c, "id")
	if !ok {
		return
	}
	positionID, ok := pathID(c, "positionId")
	if !ok {
		return
	}
	if err := h.positionService.Delete(tenderID, positionID, user.ID); err != nil {
		if errors.Is(err, service.ErrPositionNotFound) || errors.Is(err, service.ErrPositionTenderMismatch) {
			c.JSON(http.StatusNotFound, gin.H{"detail": service.ErrPositionNotFound.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Не удалось удалить позицию"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"detail": "Позиция удалена"})
}

// ListAudit возвращает журнал действий по тендеру.
func (h *TenderHandler) ListAudit(c *gin.Context) {
	tenderID, ok := pathID(c, "id")
	if !ok {
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	size, _ := strconv.Atoi(c.DefaultQuery("size", "50"))
	if size < 1 || size > 200 {
		size = 50
	}

	entries, total, err := h.auditService.ListByTender(tenderID, (page-1)*size, size)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Не удалось получить журнал действий"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": entries, "total": total, "page": page, "size": size})
}
