package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/journeyfunnel/journeyfunnel-backend/internal/http/response"
	"github.com/journeyfunnel/journeyfunnel-backend/internal/services"
)

type ScenarioHandler struct {
	scenarios services.ScenarioService
}

func NewScenarioHandler(scenarios services.ScenarioService) *ScenarioHandler {
	return &ScenarioHandler{scenarios: scenarios}
}

// POST /api/v1/scenarios
func (h *ScenarioHandler) Save(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxFunnelBodyBytes)
	var req services.SaveScenarioInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	out, err := h.scenarios.Save(c.Request.Context(), req)
	if err != nil {
		response.RespondServiceError(c, err, "save_scenario_failed")
		return
	}
	response.RespondOK(c, gin.H{"scenario": out})
}

// GET /api/v1/scenarios
func (h *ScenarioHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	out, err := h.scenarios.List(c.Request.Context(), limit, offset)
	if err != nil {
		response.RespondServiceError(c, err, "list_scenarios_failed")
		return
	}
	response.RespondOK(c, gin.H{"scenarios": out})
}

// GET /api/v1/scenarios/:id
func (h *ScenarioHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_scenario_id", err)
		return
	}
	out, err := h.scenarios.Get(c.Request.Context(), id)
	if err != nil {
		response.RespondServiceError(c, err, "get_scenario_failed")
		return
	}
	response.RespondOK(c, gin.H{"scenario": out})
}

// DELETE /api/v1/scenarios/:id
func (h *ScenarioHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_scenario_id", err)
		return
	}
	if err := h.scenarios.Delete(c.Request.Context(), id); err != nil {
		response.RespondServiceError(c, err, "delete_scenario_failed")
		return
	}
	response.RespondOK(c, gin.H{"ok": true})
}
