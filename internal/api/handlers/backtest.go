package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"sequential-trader/internal/analysis"
	"sequential-trader/internal/api/models"
	"sequential-trader/internal/backtest"
	"sequential-trader/internal/config"
	"sequential-trader/internal/runner"
	"sequential-trader/internal/storage"
)

// BacktestHandler handles backtest-related requests
type BacktestHandler struct {
	store *storage.RunStore
	creds config.Credentials
	log   zerolog.Logger
}

// NewBacktestHandler creates a new backtest handler. Every run is persisted
// in store.
func NewBacktestHandler(store *storage.RunStore, creds config.Credentials, log zerolog.Logger) *BacktestHandler {
	return &BacktestHandler{store: store, creds: creds, log: log}
}

// RunBacktest handles POST /api/v1/backtest
func (h *BacktestHandler) RunBacktest(c *gin.Context) {
	var req models.BacktestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error: models.ErrorDetail{
				Code:    "INVALID_REQUEST",
				Message: err.Error(),
			},
		})
		return
	}

	cfg := req.Config
	if detail := h.prepare(&cfg); detail != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: *detail})
		return
	}

	name := req.Name
	if name == "" {
		name = cfg.Run.Ticker
	}
	resp, err := h.run(c.Request.Context(), name, &cfg)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error: models.ErrorDetail{
				Code:    "BACKTEST_ERROR",
				Message: err.Error(),
			},
		})
		return
	}

	if !req.Options.IncludeLedger {
		resp.Ledger = nil
	}
	c.JSON(http.StatusOK, resp)
}

// GetLedger handles GET /api/v1/backtest/:id/ledger. Add ?format=csv for the
// CSV ledger.
func (h *BacktestHandler) GetLedger(c *gin.Context) {
	id := c.Param("id")
	ctx := c.Request.Context()

	run, err := h.store.GetRun(ctx, id)
	if err != nil {
		h.storeError(c, err)
		return
	}
	steps, err := h.store.Steps(ctx, id)
	if err != nil {
		h.storeError(c, err)
		return
	}

	if c.Query("format") == "csv" {
		c.Header("Content-Type", "text/csv")
		c.Header("Content-Disposition", `attachment; filename="`+id+`.csv"`)
		if err := backtest.EncodeLedgerCSV(c.Writer, steps); err != nil {
			h.log.Error().Err(err).Str("run_id", id).Msg("Failed to write CSV ledger")
		}
		return
	}

	c.JSON(http.StatusOK, models.LedgerResponse{Run: *run, Ledger: steps})
}

// CompareBacktests handles POST /api/v1/backtest/compare
func (h *BacktestHandler) CompareBacktests(c *gin.Context) {
	var req models.CompareBacktestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error: models.ErrorDetail{
				Code:    "INVALID_REQUEST",
				Message: err.Error(),
			},
		})
		return
	}

	summaries := make(map[string]analysis.Summary, len(req.Variations))
	seen := make(map[string]bool, len(req.Variations))
	var failed []models.VariationError

	for _, v := range req.Variations {
		if seen[v.Name] {
			failed = append(failed, models.VariationError{
				Name:  v.Name,
				Error: models.ErrorDetail{Code: "DUPLICATE_NAME", Message: "variation names must be unique"},
			})
			continue
		}
		seen[v.Name] = true

		cfg := config.Merge(req.BaseConfig, v.Config)
		if detail := h.prepare(&cfg); detail != nil {
			failed = append(failed, models.VariationError{Name: v.Name, Error: *detail})
			continue
		}

		resp, err := h.run(c.Request.Context(), v.Name, &cfg)
		if err != nil {
			failed = append(failed, models.VariationError{
				Name:  v.Name,
				Error: models.ErrorDetail{Code: "BACKTEST_ERROR", Message: err.Error()},
			})
			continue
		}
		summaries[v.Name] = resp.Summary
	}

	if len(summaries) == 0 {
		details := make(map[string]interface{}, len(failed))
		for _, f := range failed {
			details[f.Name] = f.Error.Message
		}
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error: models.ErrorDetail{
				Code:    "NO_VALID_VARIATIONS",
				Message: "no variation could be run",
				Details: details,
			},
		})
		return
	}

	c.JSON(http.StatusOK, models.CompareBacktestResponse{
		Comparison: analysis.Rank(summaries),
		Failed:     failed,
	})
}

// prepare fills defaults and rejects a config that cannot be run.
func (h *BacktestHandler) prepare(cfg *config.Config) *models.ErrorDetail {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return &models.ErrorDetail{Code: "INVALID_CONFIG", Message: err.Error()}
	}
	if err := h.creds.Check(cfg); err != nil {
		return &models.ErrorDetail{Code: "MISSING_CREDENTIALS", Message: err.Error()}
	}
	return nil
}

// run executes one stored backtest. The run row is finished even when the
// request context is cancelled mid-run.
func (h *BacktestHandler) run(ctx context.Context, name string, cfg *config.Config) (*models.BacktestResponse, error) {
	id, err := h.store.CreateRun(ctx, name, cfg)
	if err != nil {
		return nil, err
	}
	log := h.log.With().Str("run_id", id).Str("run", name).Logger()

	sim, err := runner.Build(ctx, cfg, h.creds, log, h.store.Recorder(id))
	if err != nil {
		if ferr := h.store.FinishRun(context.Background(), id, storage.StatusFailed, nil); ferr != nil {
			log.Error().Err(ferr).Msg("Failed to mark run as failed")
		}
		return nil, err
	}

	res := sim.Run(ctx)
	summary := analysis.SummarizeResult(res)
	status := storage.StatusCompleted
	if res.Interrupted {
		status = storage.StatusInterrupted
	}
	if err := h.store.FinishRun(context.Background(), id, status, summary); err != nil {
		log.Error().Err(err).Msg("Failed to store run summary")
	}

	log.Info().
		Str("status", status).
		Int("steps", summary.Steps).
		Float64("final_value", summary.FinalValue).
		Msg("Backtest finished")

	return &models.BacktestResponse{
		ID:      id,
		Status:  status,
		Window:  models.TimeWindow{Start: res.Start, End: res.End},
		Summary: summary,
		Ledger:  res.Records,
	}, nil
}

func (h *BacktestHandler) storeError(c *gin.Context, err error) {
	if errors.Is(err, storage.ErrRunNotFound) {
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Error: models.ErrorDetail{
				Code:    "RUN_NOT_FOUND",
				Message: err.Error(),
			},
		})
		return
	}
	h.log.Error().Err(err).Msg("Run store query failed")
	c.JSON(http.StatusInternalServerError, models.ErrorResponse{
		Error: models.ErrorDetail{
			Code:    "STORE_ERROR",
			Message: err.Error(),
		},
	})
}
