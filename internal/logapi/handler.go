// Package logapi provides the HTTP handler for querying stored logs.
package logapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/kneutral-org/ops-worker/internal/logstore"
	"github.com/kneutral-org/ops-worker/internal/metrics"
)

// ListLogsResponse is the body of a successful GET /logs.
type ListLogsResponse struct {
	Logs []*logstore.Entry `json:"logs"`
}

// ErrorResponse is the body of a failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Handler serves log queries.
type Handler struct {
	store  logstore.Store
	logger zerolog.Logger
}

// NewHandler creates a new log query handler.
func NewHandler(store logstore.Store, logger zerolog.Logger) *Handler {
	return &Handler{
		store:  store,
		logger: logger.With().Str("component", "logapi").Logger(),
	}
}

// RegisterRoutes registers the log routes on the provided router group.
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/logs", h.ListLogs)
}

// ListLogs handles GET /logs?limit=&category=&level=.
func (h *Handler) ListLogs(c *gin.Context) {
	params := logstore.ListParams{
		Limit:    logstore.DefaultListLimit,
		Category: c.Query("category"),
		Level:    c.Query("level"),
	}

	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid limit"})
			return
		}
		params.Limit = min(limit, logstore.MaxListLimit)
	}

	entries, err := h.store.List(c.Request.Context(), params)
	if err != nil {
		h.logger.Error().
			Err(err).
			Int("limit", params.Limit).
			Str("category", params.Category).
			Str("level", params.Level).
			Msg("failed to fetch logs")
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to fetch logs"})
		return
	}

	metrics.RecordLogsReturned(len(entries))
	c.JSON(http.StatusOK, ListLogsResponse{Logs: entries})
}
