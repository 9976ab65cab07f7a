package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"market-clearing/internal/analysis"
	"market-clearing/internal/api/models"
	"market-clearing/internal/model"
	"market-clearing/internal/replay"
)

// RankAreas handles GET /api/v1/rank. Every area of the dataset is replayed
// with its recorded exchanges and ranked by mean cleared price.
func (h *ReplayHandler) RankAreas(c *gin.Context) {
	var req models.RankRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	limit := req.Limit
	if limit <= 0 {
		limit = 10
	}

	groups, ok := h.loadGroups(c, req.Dataset)
	if !ok {
		return
	}
	cfg := h.cfg
	cfg.Policy |= model.PolicyIgnore
	results, _, err := h.replayAll(c.Request.Context(), groups, cfg, models.CoordinatorConfig{}, h.logger.With("request_id", uuid.NewString()))
	if err != nil {
		status, code := clearingStatus(err)
		abortWithError(c, status, code, err.Error())
		return
	}

	byArea := make(map[string][]replay.LedgerRow, len(results))
	for area, res := range results {
		byArea[area] = res.Ledger
	}
	ranked := analysis.RankAreas(byArea)
	if limit < len(ranked) {
		ranked = ranked[:limit]
	}

	resp := models.RankResponse{Rankings: make([]models.Ranking, 0, len(ranked))}
	for i, r := range ranked {
		resp.Rankings = append(resp.Rankings, models.Ranking{
			Rank:         i + 1,
			Area:         r.Area,
			Count:        r.Count,
			MeanPrice:    r.MeanPrice,
			MinPrice:     r.MinPrice,
			MaxPrice:     r.MaxPrice,
			SpreadP95P05: r.SpreadP95P05,
			ExportMWh:    r.ExportMWh,
			ImportMWh:    r.ImportMWh,
		})
	}
	c.JSON(http.StatusOK, resp)
}
