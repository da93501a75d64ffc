package api

import (
	"fmt"
	"time"

	models "AlphaPipe/internal/domain/models"
	domrepo "AlphaPipe/internal/domain/repository"
	"AlphaPipe/internal/usecase"
	xhttp "AlphaPipe/pkg/http"
	xlogger "AlphaPipe/pkg/logger"

	"github.com/labstack/echo/v4"
)

// PipelineEchoHandler exposes the read API over Echo.
type PipelineEchoHandler struct {
	logger *xlogger.Logger
	query  *usecase.QueryUseCase
	replay *usecase.ReplayUseCase
	bars   *usecase.BarsUseCase
}

func NewPipelineEchoHandler(logger *xlogger.Logger, query *usecase.QueryUseCase, replay *usecase.ReplayUseCase, bars *usecase.BarsUseCase) *PipelineEchoHandler {
	return &PipelineEchoHandler{logger: logger, query: query, replay: replay, bars: bars}
}

func (h *PipelineEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/features", h.Features)
	g.GET("/signal", h.Signal)
	g.GET("/decide", h.Decide)
	g.GET("/replay", h.Replay)
	g.GET("/bars", h.Bars)
}

func (h *PipelineEchoHandler) Features(c echo.Context) error {
	req := &models.FeaturesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	tf := domrepo.NormalizeTimeframe(req.TF)

	res, err := h.query.Features(c.Request().Context(), req.Symbol, req.N, tf)
	if err != nil {
		h.logger.Error("features usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=5")
	return xhttp.SuccessResponse(c, res)
}

func (h *PipelineEchoHandler) Signal(c echo.Context) error {
	req := &models.SignalRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	tf := domrepo.NormalizeTimeframe(req.TF)

	res, err := h.query.Signal(c.Request().Context(), req.Symbol, req.Model, req.N, tf)
	if err != nil {
		h.logger.Error("signal usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *PipelineEchoHandler) Decide(c echo.Context) error {
	req := &models.DecideRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	tf := domrepo.NormalizeTimeframe(req.TF)

	res, err := h.query.Decide(c.Request().Context(), req.Symbol, req.N, tf)
	if err != nil {
		h.logger.Error("decide usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *PipelineEchoHandler) Replay(c echo.Context) error {
	req := &models.ReplayRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	tf := domrepo.NormalizeTimeframe(req.TF)

	from, ok := xhttp.ParseTime(req.From)
	if !ok {
		return xhttp.BadRequestResponse(c, fmt.Sprintf("from: want unix seconds or RFC3339, got %q", req.From))
	}
	to, ok := xhttp.ParseTime(req.To)
	if !ok {
		return xhttp.BadRequestResponse(c, fmt.Sprintf("to: want unix seconds or RFC3339, got %q", req.To))
	}

	res, err := h.replay.Replay(c.Request().Context(), usecase.ReplayParams{
		Symbol:    req.Symbol,
		From:      from,
		To:        to,
		Timeframe: tf,
	})
	if err != nil {
		h.logger.Error("replay usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *PipelineEchoHandler) Bars(c echo.Context) error {
	req := &models.FeaturesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	tf := domrepo.NormalizeTimeframe(req.TF)

	now := time.Now().UTC()
	res, err := h.bars.GetBars(c.Request().Context(), usecase.GetBarsParams{
		Symbol:    req.Symbol,
		From:      now.Add(-24 * time.Hour),
		To:        now,
		Timeframe: tf,
		Limit:     req.N,
	})
	if err != nil {
		h.logger.Error("bars usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, res)
}
