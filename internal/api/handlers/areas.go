package handlers

import (
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"market-clearing/internal/api/models"
	"market-clearing/internal/clearing"
	"market-clearing/internal/config"
)

// AreaHandler serves the area presets in a directory of YAML files
type AreaHandler struct {
	areaDir string
	cfg     clearing.Config
	logger  *slog.Logger
}

func NewAreaHandler(areaDir string, cfg clearing.Config, logger *slog.Logger) *AreaHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if abs, err := filepath.Abs(areaDir); err == nil {
		areaDir = abs
	}
	return &AreaHandler{areaDir: areaDir, cfg: cfg, logger: logger.With("handler", "areas", "dir", areaDir)}
}

func (h *AreaHandler) AreaDir() string { return h.areaDir }

// ListAreas handles GET /api/v1/areas
func (h *AreaHandler) ListAreas(c *gin.Context) {
	areas := []models.AreaInfo{}

	entries, err := os.ReadDir(h.areaDir)
	if err != nil {
		h.logger.Warn("failed to read area directory", "err", err)
		c.JSON(http.StatusOK, gin.H{"areas": areas})
		return
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		path := filepath.Join(h.areaDir, entry.Name())
		info, err := h.loadAreaInfo(path, entry.Name())
		if err != nil {
			h.logger.Warn("skipping area preset", "file", entry.Name(), "err", err)
			continue
		}
		areas = append(areas, *info)
	}
	h.logger.Debug("listed area presets", "count", len(areas))
	c.JSON(http.StatusOK, gin.H{"areas": areas})
}

// SupplyCurve handles GET /api/v1/areas/:id/curve
func (h *AreaHandler) SupplyCurve(c *gin.Context) {
	id := filepath.Base(c.Param("id"))
	ac, err := config.LoadAreaFile(filepath.Join(h.areaDir, id+".yaml"))
	if err != nil {
		if os.IsNotExist(err) {
			abortWithError(c, http.StatusNotFound, "UNKNOWN_AREA", "no area preset "+id)
			return
		}
		abortWithError(c, http.StatusInternalServerError, "AREA_LOAD_ERROR", err.Error())
		return
	}

	area := clearing.NewArea(id, h.cfg, clearing.WithAreaLogger(h.logger))
	for _, g := range ac.Generators {
		if err := area.AddGenerator(g); err != nil {
			abortWithError(c, http.StatusUnprocessableEntity, "INVALID_RESOURCE", err.Error())
			return
		}
	}
	cv, err := area.SupplyCurve()
	if err != nil {
		abortWithError(c, http.StatusUnprocessableEntity, "MALFORMED_CURVE", err.Error())
		return
	}
	c.JSON(http.StatusOK, buildCurveResponse(cv, models.CurveRequest{}))
}

func (h *AreaHandler) loadAreaInfo(path, filename string) (*models.AreaInfo, error) {
	ac, err := config.LoadAreaFile(path)
	if err != nil {
		return nil, err
	}
	// Keep the full filename without extension as the ID.
	id := strings.TrimSuffix(filename, ".yaml")
	name := ac.Name
	if name == "" {
		name = id
	}
	specs := models.AreaSpecs{Generators: len(ac.Generators), Loads: len(ac.Loads)}
	for _, g := range ac.Generators {
		specs.SupplyCapacity += g.Capacity
	}
	for _, l := range ac.Loads {
		specs.DemandCapacity += l.Capacity
	}
	return &models.AreaInfo{ID: id, Name: name, File: path, Specs: specs}, nil
}
