package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/journeyfunnel/journeyfunnel-backend/internal/http/response"
	"github.com/journeyfunnel/journeyfunnel-backend/internal/services"
)

// Funnel payloads are step arrays plus parameters; a megabyte is far
// beyond any real funnel.
const maxFunnelBodyBytes = 1 << 20

type FunnelHandler struct {
	funnel services.FunnelService
	runs   services.RunService
}

func NewFunnelHandler(funnel services.FunnelService, runs services.RunService) *FunnelHandler {
	return &FunnelHandler{funnel: funnel, runs: runs}
}

// POST /api/v1/funnel/simulate
func (h *FunnelHandler) Simulate(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxFunnelBodyBytes)
	var req services.SimulateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	res, err := h.funnel.Simulate(c.Request.Context(), req)
	if err != nil {
		response.RespondServiceError(c, err, "simulate_failed")
		return
	}
	response.RespondOK(c, gin.H{
		"steps":                res.Steps,
		"overall_predicted_cr": res.CRTotal,
	})
}

// POST /api/v1/funnel/backsolve
func (h *FunnelHandler) Backsolve(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxFunnelBodyBytes)
	var req services.BacksolveInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	out, err := h.funnel.Backsolve(c.Request.Context(), req)
	if err != nil {
		response.RespondServiceError(c, err, "backsolve_failed")
		return
	}
	response.RespondOK(c, out)
}

type optimizeRequest struct {
	services.OptimizeInput
	Async      bool       `json:"async,omitempty"`
	ScenarioID *uuid.UUID `json:"scenario_id,omitempty"`
}

// POST /api/v1/funnel/optimize
func (h *FunnelHandler) Optimize(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxFunnelBodyBytes)
	var req optimizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}

	if req.Async {
		run, err := h.runs.Enqueue(c.Request.Context(), services.EnqueueRunInput{
			Optimize:   req.OptimizeInput,
			ScenarioID: req.ScenarioID,
		})
		if err != nil {
			response.RespondServiceError(c, err, "enqueue_failed")
			return
		}
		response.RespondOK(c, gin.H{
			"run_id": run.ID,
			"status": run.Status,
		})
		return
	}

	res, err := h.funnel.Optimize(c.Request.Context(), req.OptimizeInput)
	if err != nil {
		response.RespondServiceError(c, err, "optimize_failed")
		return
	}
	response.RespondOK(c, res)
}
