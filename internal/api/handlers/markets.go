package handlers

import (
	"errors"
	"io/fs"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"sequential-trader/internal/api/models"
	"sequential-trader/internal/data"
)

// MarketsHandler serves the resolved market registry
type MarketsHandler struct {
	registryPath string
}

// NewMarketsHandler creates a markets handler. An empty path uses the default
// registry location.
func NewMarketsHandler(registryPath string) *MarketsHandler {
	if registryPath == "" {
		registryPath = data.DefaultRegistryPath()
	}
	return &MarketsHandler{registryPath: registryPath}
}

// ListMarkets handles GET /api/v1/markets
func (h *MarketsHandler) ListMarkets(c *gin.Context) {
	reg, err := data.LoadRegistry(h.registryPath)
	if err != nil {
		// No registry yet is an empty list
		if errors.Is(err, fs.ErrNotExist) {
			c.JSON(http.StatusOK, gin.H{
				"markets": []models.MarketInfo{},
				"count":   0,
			})
			return
		}
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error: models.ErrorDetail{
				Code:    "REGISTRY_LOAD_ERROR",
				Message: err.Error(),
			},
		})
		return
	}

	source := strings.ToLower(c.Query("source"))
	markets := make([]models.MarketInfo, 0, len(reg.Markets))
	for _, e := range reg.Markets {
		if source != "" && strings.ToLower(e.Source) != source {
			continue
		}
		markets = append(markets, models.MarketInfo{
			Query:      e.Query,
			TokenID:    e.TokenID,
			Question:   e.Question,
			Source:     e.Source,
			ResolvedAt: e.ResolvedAt,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"markets":    markets,
		"updated_at": reg.UpdatedAt,
		"count":      len(markets),
	})
}
