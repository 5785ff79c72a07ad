package handler

import (
	"net/http"
	"strconv"

	"tender-kb-go/internal/service"

	"github.com/gin-gonic/gin"
)

// SearchHandler обрабатывает запросы полнотекстового поиска.
type SearchHandler struct {
	searchService service.SearchService
}

// NewSearchHandler создаёт новый экземпляр SearchHandler.
func NewSearchHandler(searchService service.SearchService) *SearchHandler {
	return &SearchHandler{searchService: searchService}
}

// Search ищет тендеры и позиции по тексту запроса.
func (h *SearchHandler) Search(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Укажите параметр q"})
		return
	}
	size, _ := strconv.Atoi(c.DefaultQuery("size", "20"))

	results, err := h.searchService.Search(c.Request.Context(), service.SearchFilter{
		Query:           query,
		Stage:           c.Query("stage"),
		EntityType:      c.Query("entity_type"),
		IncludeArchived: c.Query("include_archived") == "true",
		Size:            size,
	})
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"detail": "Поиск временно недоступен"})
		return
	}
	c.JSON(http.StatusOK, results)
}
