package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"sequential-trader/internal/analysis"
	"sequential-trader/internal/api/models"
	"sequential-trader/internal/storage"
)

// RunsHandler serves the stored runs
type RunsHandler struct {
	store *storage.RunStore
	log   zerolog.Logger
}

// NewRunsHandler creates a new runs handler
func NewRunsHandler(store *storage.RunStore, log zerolog.Logger) *RunsHandler {
	return &RunsHandler{store: store, log: log}
}

// ListRuns handles GET /api/v1/runs
func (h *RunsHandler) ListRuns(c *gin.Context) {
	var q models.ListRunsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error: models.ErrorDetail{
				Code:    "INVALID_REQUEST",
				Message: err.Error(),
			},
		})
		return
	}

	runs, err := h.store.ListRuns(c.Request.Context(), q.Limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list runs")
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error: models.ErrorDetail{
				Code:    "STORE_ERROR",
				Message: err.Error(),
			},
		})
		return
	}
	if runs == nil {
		runs = []storage.Run{}
	}
	c.JSON(http.StatusOK, models.RunsResponse{Runs: runs, Count: len(runs)})
}

// RankRuns handles GET /api/v1/runs/rank. Only completed runs with a stored
// summary are ranked.
func (h *RunsHandler) RankRuns(c *gin.Context) {
	runs, err := h.store.ListRuns(c.Request.Context(), 0)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list runs")
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error: models.ErrorDetail{
				Code:    "STORE_ERROR",
				Message: err.Error(),
			},
		})
		return
	}

	// Rank by id; run names need not be unique.
	byID := make(map[string]analysis.Summary, len(runs))
	names := make(map[string]string, len(runs))
	for _, r := range runs {
		if r.Status != storage.StatusCompleted || len(r.Summary) == 0 {
			continue
		}
		var s analysis.Summary
		if err := json.Unmarshal(r.Summary, &s); err != nil {
			h.log.Warn().Err(err).Str("run_id", r.ID).Msg("Skipping run with unreadable summary")
			continue
		}
		byID[r.ID] = s
		names[r.ID] = r.Name
	}

	ranked := analysis.Rank(byID)
	out := make([]models.RankedStoredRun, len(ranked))
	for i, r := range ranked {
		id := r.Name
		r.Name = names[id]
		out[i] = models.RankedStoredRun{ID: id, RankedRun: r}
	}
	c.JSON(http.StatusOK, models.RankResponse{Rankings: out})
}
