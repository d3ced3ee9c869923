package handlers

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"sequential-trader/internal/api/models"
	"sequential-trader/internal/config"
)

// PresetHandler lists the run configs shipped as YAML presets
type PresetHandler struct {
	presetDir string
	log       zerolog.Logger
}

// NewPresetHandler creates a preset handler. The directory comes from dir,
// then CONFIG_DIR, then ./configs.
func NewPresetHandler(dir string, log zerolog.Logger) *PresetHandler {
	if dir == "" {
		dir = os.Getenv("CONFIG_DIR")
	}
	if dir == "" {
		dir = "./configs"
	}
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	log.Debug().Str("dir", dir).Msg("Using preset directory")
	return &PresetHandler{presetDir: dir, log: log}
}

// ListPresets handles GET /api/v1/presets
func (h *PresetHandler) ListPresets(c *gin.Context) {
	presets := []models.PresetInfo{}

	entries, err := os.ReadDir(h.presetDir)
	if err != nil {
		h.log.Warn().Err(err).Str("dir", h.presetDir).Msg("Failed to read preset directory")
		c.JSON(http.StatusOK, gin.H{"presets": presets})
		return
	}

	for _, entry := range entries {
		ext := filepath.Ext(entry.Name())
		if entry.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		path := filepath.Join(h.presetDir, entry.Name())
		info, err := loadPresetInfo(path, strings.TrimSuffix(entry.Name(), ext))
		if err != nil {
			h.log.Warn().Err(err).Str("file", path).Msg("Skipping invalid preset")
			continue
		}
		presets = append(presets, *info)
	}

	c.JSON(http.StatusOK, gin.H{"presets": presets})
}

func loadPresetInfo(path, id string) (*models.PresetInfo, error) {
	cfg, err := config.LoadUnchecked(path)
	if err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()

	name := cfg.Run.Question
	if name == "" {
		name = id
	}
	return &models.PresetInfo{
		ID:      id,
		Name:    name,
		File:    path,
		Markets: cfg.Run.Markets,
		Agent:   cfg.Agent.Name,
		Source:  cfg.Data.Source,
	}, nil
}
