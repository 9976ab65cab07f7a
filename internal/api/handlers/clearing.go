package handlers

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"market-clearing/internal/api/models"
	"market-clearing/internal/clearing"
	"market-clearing/internal/model"
)

// ClearingHandler clears single intervals on request. Every request clears a
// fresh area, so requests share no state.
type ClearingHandler struct {
	cfg    clearing.Config
	logger *slog.Logger
}

func NewClearingHandler(cfg clearing.Config, logger *slog.Logger) *ClearingHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ClearingHandler{cfg: cfg, logger: logger.With("handler", "clearing")}
}

// Clear handles POST /api/v1/clear
func (h *ClearingHandler) Clear(c *gin.Context) {
	var req models.ClearRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	if req.Parameters == nil && len(req.Generators) == 0 && len(req.Loads) == 0 {
		abortWithError(c, http.StatusBadRequest, "INVALID_REQUEST", "generators/loads or parameters are required")
		return
	}
	if err := validateReports(req.Generators, req.Loads); err != nil {
		abortWithError(c, http.StatusBadRequest, "INVALID_RESOURCE", err.Error())
		return
	}
	cfg, err := h.configFor(req.Options)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "INVALID_CONFIG", err.Error())
		return
	}

	id := uuid.NewString()
	name := req.Area
	if name == "" {
		name = "default"
	}
	logger := h.logger.With("request_id", id, "area", name)
	var dump bytes.Buffer

	var out clearing.Outcome
	var dispatch []clearing.Dispatch
	if req.Parameters != nil {
		p := *req.Parameters
		if req.Exchange != (model.Exchange{}) {
			p.DQ, p.DP = req.Exchange.DQ, req.Exchange.DP
		}
		s := clearing.NewSolver(cfg, clearing.WithLogger(logger), clearing.WithDumpWriter(&dump))
		out, err = s.Solve(p, clearing.Solution{})
	} else {
		area := clearing.NewArea(name, cfg, clearing.WithAreaLogger(h.logger.With("request_id", id)), clearing.WithAreaDumpWriter(&dump))
		var ao clearing.AreaOutcome
		ao, err = area.ClearInterval(c.Request.Context(), clearing.Input{
			Generators: req.Generators,
			Loads:      req.Loads,
			Exchange:   req.Exchange,
		})
		out, dispatch = ao.Outcome, ao.Dispatch
	}
	if dump.Len() > 0 {
		logger.Warn("clearing diagnostics", "dump", dump.String())
	}
	if err != nil {
		status, code := clearingStatus(err)
		c.AbortWithStatusJSON(status, models.ErrorResponse{
			Error: models.ErrorDetail{
				Code:    code,
				Message: err.Error(),
				Details: map[string]interface{}{
					"id":     id,
					"result": out.State.Solution.Result,
					"kind":   clearing.KindOf(err),
				},
			},
		})
		return
	}

	c.JSON(http.StatusOK, buildClearResponse(id, name, out, dispatch, req.Options.IncludeTrace))
}

func (h *ClearingHandler) configFor(opts models.ClearOptions) (clearing.Config, error) {
	cfg := h.cfg
	if opts.MaxIterations > 0 {
		cfg.MaxIterations = opts.MaxIterations
	}
	if opts.OnFailure != "" {
		p, err := model.ParseFailurePolicy(opts.OnFailure)
		if err != nil {
			return cfg, err
		}
		cfg.Policy = p
	}
	return cfg, nil
}

func validateReports(gens, loads []model.Report) error {
	for i, g := range gens {
		if _, err := model.NewResource(model.SideSupply, g); err != nil {
			return fmt.Errorf("generator %d: %w", i, err)
		}
	}
	for i, l := range loads {
		if _, err := model.NewResource(model.SideDemand, l); err != nil {
			return fmt.Errorf("load %d: %w", i, err)
		}
	}
	return nil
}

func buildClearResponse(id, area string, out clearing.Outcome, dispatch []clearing.Dispatch, includeTrace bool) models.ClearResponse {
	sol := out.State.Solution
	resp := models.ClearResponse{
		ID:         id,
		Area:       area,
		Status:     "completed",
		Result:     sol.Result,
		Branch:     sol.Branch,
		Iterations: sol.Iterations,
		QD:         sol.QD,
		PD:         sol.PD,
		QS:         sol.QS,
		PS:         sol.PS,
		Schedule:   sol.Schedule,
		Flow:       model.FlowFromSchedule(sol.Schedule),
		Parameters: out.State.Params,
		Dispatch:   dispatch,
	}
	for _, p := range out.Phases {
		resp.Phases = append(resp.Phases, p.String())
	}
	for _, w := range out.Warnings {
		resp.Warnings = append(resp.Warnings, w.Error())
	}
	if out.Err != nil {
		resp.Error = out.Err.Error()
	}
	if includeTrace && out.Trace != nil {
		for _, s := range out.Trace.Steps {
			resp.Trace = append(resp.Trace, models.TraceStep{
				Iteration:   s.Iteration,
				Active:      s.Active.String(),
				Candidate:   s.Candidate.String(),
				Removed:     s.Removed.String(),
				X:           s.X,
				Multipliers: s.Multipliers,
			})
		}
	}
	return resp
}
