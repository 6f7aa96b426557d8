package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sparkcampus/doubts/backend/internal/services"
)

type SearchHandler struct {
	search *services.SearchService
	logger *zap.Logger
}

func NewSearchHandler(search *services.SearchService, logger *zap.Logger) *SearchHandler {
	return &SearchHandler{search: search, logger: logger}
}

// Search looks through doubts, communities and users. type narrows it to one.
func (h *SearchHandler) Search(c *gin.Context) {
	q := strings.TrimSpace(c.Query("q"))
	results, err := h.search.Search(c.Request.Context(), q, c.Query("type"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"query": q, "results": results})
}
