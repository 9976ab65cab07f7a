package handlers

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"market-clearing/internal/analysis"
	"market-clearing/internal/api/models"
	"market-clearing/internal/clearing"
	"market-clearing/internal/coordination"
	"market-clearing/internal/data"
	"market-clearing/internal/model"
	"market-clearing/internal/replay"
)

// maxStoredRuns bounds the ledgers kept for GET /replay/:id/ledger.
const maxStoredRuns = 32

// ReplayHandler replays interval datasets from a data directory
type ReplayHandler struct {
	dataDir string
	cache   *data.DatasetCache
	cfg     clearing.Config
	logger  *slog.Logger

	mu    sync.Mutex
	runs  map[string][]replay.LedgerRow
	order []string
}

func NewReplayHandler(dataDir string, cache *data.DatasetCache, cfg clearing.Config, logger *slog.Logger) *ReplayHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if abs, err := filepath.Abs(dataDir); err == nil {
		dataDir = abs
	}
	return &ReplayHandler{
		dataDir: dataDir,
		cache:   cache,
		cfg:     cfg,
		logger:  logger.With("handler", "replay"),
		runs:    map[string][]replay.LedgerRow{},
	}
}

// RunReplay handles POST /api/v1/replay
func (h *ReplayHandler) RunReplay(c *gin.Context) {
	var req models.ReplayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	cfg := h.cfg
	if req.OnFailure != "" {
		p, err := model.ParseFailurePolicy(req.OnFailure)
		if err != nil {
			abortWithError(c, http.StatusBadRequest, "INVALID_CONFIG", err.Error())
			return
		}
		cfg.Policy = p
	}
	if _, err := coordination.New(req.Coordinator.Name, req.Coordinator.Window); err != nil {
		abortWithError(c, http.StatusBadRequest, "INVALID_COORDINATOR", err.Error())
		return
	}

	groups, ok := h.loadGroups(c, req.Dataset)
	if !ok {
		return
	}
	if req.Area != "" {
		intervals, found := groups[req.Area]
		if !found {
			abortWithError(c, http.StatusNotFound, "UNKNOWN_AREA", fmt.Sprintf("area %q not in dataset %s", req.Area, req.Dataset))
			return
		}
		groups = map[string][]model.Interval{req.Area: intervals}
	}
	if n := req.Options.LimitIntervals; n > 0 {
		for area, intervals := range groups {
			if n < len(intervals) {
				groups[area] = intervals[:n]
			}
		}
	}

	id := uuid.NewString()
	results, skipped, err := h.replayAll(c.Request.Context(), groups, cfg, req.Coordinator, h.logger.With("request_id", id))
	if err != nil {
		status, code := clearingStatus(err)
		abortWithError(c, status, code, err.Error())
		return
	}

	resp := models.ReplayResponse{ID: id, Status: "completed", Skipped: skipped}
	var ledger []replay.LedgerRow
	for _, area := range sortedKeys(results) {
		res := results[area]
		resp.Areas = append(resp.Areas, toAreaSummary(analysis.Summarize(res.Ledger)))
		ledger = append(ledger, res.Ledger...)
	}
	h.store(id, ledger)
	if req.Options.IncludeLedger {
		resp.Ledger = toLedgerRows(ledger)
	}
	c.JSON(http.StatusOK, resp)
}

// GetLedger handles GET /api/v1/replay/:id/ledger. With ?format=csv the
// ledger is written as CSV.
func (h *ReplayHandler) GetLedger(c *gin.Context) {
	id := c.Param("id")
	h.mu.Lock()
	ledger, ok := h.runs[id]
	h.mu.Unlock()
	if !ok {
		abortWithError(c, http.StatusNotFound, "UNKNOWN_RUN", "no replay with id "+id)
		return
	}
	if c.Query("format") == "csv" {
		c.Header("Content-Type", "text/csv")
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", id+".csv"))
		c.Status(http.StatusOK)
		if err := replay.EncodeLedgerCSV(c.Writer, ledger); err != nil {
			h.logger.Error("ledger csv", "id", id, "err", err)
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "ledger": toLedgerRows(ledger)})
}

// ListDatasets handles GET /api/v1/datasets
func (h *ReplayHandler) ListDatasets(c *gin.Context) {
	datasets := []models.DatasetInfo{}
	entries, err := os.ReadDir(h.dataDir)
	if err != nil {
		h.logger.Warn("failed to read data directory", "dir", h.dataDir, "err", err)
		c.JSON(http.StatusOK, gin.H{"datasets": datasets})
		return
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(h.dataDir, entry.Name())
		file, err := h.cache.Load(path)
		if err != nil {
			h.logger.Warn("skipping dataset", "file", entry.Name(), "err", err)
			continue
		}
		datasets = append(datasets, models.DatasetInfo{
			ID:        strings.TrimSuffix(entry.Name(), ".json"),
			File:      path,
			Intervals: len(file.Data),
			Areas:     sortedKeys(data.GroupByArea(file)),
		})
	}
	c.JSON(http.StatusOK, gin.H{"datasets": datasets})
}

// loadGroups loads a dataset by ID and writes the error response on failure.
func (h *ReplayHandler) loadGroups(c *gin.Context, dataset string) (map[string][]model.Interval, bool) {
	path := filepath.Join(h.dataDir, filepath.Base(dataset)+".json")
	file, err := h.cache.Load(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			abortWithError(c, http.StatusNotFound, "UNKNOWN_DATASET", "no dataset "+dataset)
			return nil, false
		}
		abortWithError(c, http.StatusBadRequest, "DATA_LOAD_ERROR", err.Error())
		return nil, false
	}
	return data.GroupByArea(file), true
}

// replayAll replays every area in parallel. Areas without intervals are
// reported as skipped.
func (h *ReplayHandler) replayAll(ctx context.Context, groups map[string][]model.Interval, cfg clearing.Config, cc models.CoordinatorConfig, logger *slog.Logger) (map[string]*replay.Result, []string, error) {
	var (
		mu      sync.Mutex
		results = map[string]*replay.Result{}
		skipped []string
	)
	engine := replay.New(logger)
	g, gctx := errgroup.WithContext(ctx)
	for _, name := range sortedKeys(groups) {
		intervals := groups[name]
		if len(intervals) == 0 {
			skipped = append(skipped, name)
			continue
		}
		g.Go(func() error {
			coord, err := coordination.New(cc.Name, cc.Window)
			if err != nil {
				return err
			}
			area := clearing.NewArea(name, cfg, clearing.WithAreaLogger(logger), clearing.WithAreaDumpWriter(&slogWriter{logger: logger}))
			res, err := engine.Run(gctx, intervals, area, coord)
			if err != nil {
				return fmt.Errorf("area %s: %w", name, err)
			}
			mu.Lock()
			results[name] = res
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return results, skipped, nil
}

func (h *ReplayHandler) store(id string, ledger []replay.LedgerRow) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.runs[id] = ledger
	h.order = append(h.order, id)
	for len(h.order) > maxStoredRuns {
		delete(h.runs, h.order[0])
		h.order = h.order[1:]
	}
}

// slogWriter forwards failure dumps to the log.
type slogWriter struct {
	logger *slog.Logger
}

func (w *slogWriter) Write(p []byte) (int, error) {
	w.logger.Warn("clearing diagnostics", "dump", string(p))
	return len(p), nil
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func toAreaSummary(s analysis.Summary) models.AreaSummary {
	return models.AreaSummary{
		Area:         s.Area,
		Window:       models.TimeWindow{Start: s.StartUTC, End: s.EndUTC},
		Count:        s.Count,
		Accepted:     s.Accepted,
		Fallback:     s.Fallback,
		Results:      s.Results,
		MinPrice:     s.MinPrice,
		MaxPrice:     s.MaxPrice,
		MeanPrice:    s.MeanPrice,
		P05Price:     s.P05Price,
		P95Price:     s.P95Price,
		SpreadP95P05: s.SpreadP95P05,
		ExportMWh:    s.ExportMWh,
		ImportMWh:    s.ImportMWh,
	}
}

func toLedgerRows(ledger []replay.LedgerRow) []models.LedgerRow {
	out := make([]models.LedgerRow, 0, len(ledger))
	for _, r := range ledger {
		out = append(out, models.LedgerRow{
			Index:              r.Index,
			IntervalStartLocal: r.IntervalStartLocal,
			IntervalEndLocal:   r.IntervalEndLocal,
			IntervalStartUTC:   r.IntervalStartUTC,
			IntervalEndUTC:     r.IntervalEndUTC,
			Area:               r.Area,
			DQ:                 r.DQ,
			DP:                 r.DP,
			QD:                 r.QD,
			PD:                 r.PD,
			QS:                 r.QS,
			PS:                 r.PS,
			Schedule:           r.Schedule,
			Flow:               r.Flow,
			Result:             r.Result,
			Branch:             r.Branch,
			Iterations:         r.Iterations,
			Error:              r.Error,
		})
	}
	return out
}
