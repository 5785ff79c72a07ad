package handler

import (
	"net/http"
	"strconv"

	"tender-kb-go/internal/service"

	"github.com/gin-gonic/gin"
)

// AuditHandler обрабатывает запросы к журналу действий.
type AuditHandler struct {
	auditService service.AuditService
}

// NewAuditHandler создаёт новый экземпляр AuditHandler.
func NewAuditHandler(auditService service.AuditService) *AuditHandler {
	return &AuditHandler{auditService: auditService}
}

// ListByEntity возвращает журнал действий по произвольной сущности.
// Доступно только администратору.
func (h *AuditHandler) ListByEntity(c *gin.Context) {
	entityType := c.Query("entity_type")
	if entityType == "" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Укажите entity_type"})
		return
	}
	entityID, err := strconv.ParseUint(c.Query("entity_id"), 10, 32)
	if err != nil || entityID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Укажите корректный entity_id"})
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

	entries, total, err := h.auditService.ListByEntity(entityType, uint(entityID), (page-1)*size, size)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Не удалось получить журнал действий"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": entries, "total": total, "page": page, "size": size})
}
