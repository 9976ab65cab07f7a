package handlers

import (
	"log/slog"
	"math"
	"net/http"

	"github.com/gin-gonic/gin"

	"market-clearing/internal/api/models"
	"market-clearing/internal/curve"
)

// CurveHandler builds aggregate curves from offer components
type CurveHandler struct {
	opts   curve.Options
	logger *slog.Logger
}

func NewCurveHandler(opts curve.Options, logger *slog.Logger) *CurveHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CurveHandler{opts: opts, logger: logger.With("handler", "curve")}
}

// BuildCurve handles POST /api/v1/curve
func (h *CurveHandler) BuildCurve(c *gin.Context) {
	var req models.CurveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	opts := h.opts
	if req.PriceFloor != nil {
		opts.PriceFloor = *req.PriceFloor
	}
	if req.PriceCap != nil {
		opts.PriceCap = *req.PriceCap
	}
	if opts.PriceCap <= opts.PriceFloor {
		abortWithError(c, http.StatusBadRequest, "INVALID_CONFIG", "price_cap must be greater than price_floor")
		return
	}

	b := curve.NewBuilder(opts, h.logger)
	if _, err := b.AddComponents(req.Components...); err != nil {
		abortWithError(c, http.StatusBadRequest, "INVALID_COMPONENT", err.Error())
		return
	}
	cv, err := b.Curve()
	if err != nil {
		abortWithError(c, http.StatusUnprocessableEntity, "MALFORMED_CURVE", err.Error())
		return
	}
	c.JSON(http.StatusOK, buildCurveResponse(cv, req))
}

func buildCurveResponse(cv *curve.Curve, req models.CurveRequest) models.CurveResponse {
	resp := models.CurveResponse{
		P:     cv.P,
		Q:     cv.Q,
		DP:    cv.DP,
		DQ:    cv.DQ,
		R:     cv.R,
		Total: cv.Total(),
	}
	for _, s := range cv.Slopes() {
		if math.IsInf(s, 0) {
			resp.Slopes = append(resp.Slopes, nil)
			continue
		}
		v := s
		resp.Slopes = append(resp.Slopes, &v)
	}
	if req.AtPrice != nil {
		resp.QuantityAtPrice = cv.QuantityAt(*req.AtPrice)
	}
	if req.AtQuantity != nil {
		resp.PriceAtQuantity = cv.PriceAt(*req.AtQuantity)
	}
	return resp
}
