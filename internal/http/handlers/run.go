package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/journeyfunnel/journeyfunnel-backend/internal/http/response"
	"github.com/journeyfunnel/journeyfunnel-backend/internal/services"
)

type RunHandler struct {
	runs services.RunService
}

func NewRunHandler(runs services.RunService) *RunHandler {
	return &RunHandler{runs: runs}
}

// GET /api/v1/runs/:id
func (h *RunHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_run_id", err)
		return
	}
	out, err := h.runs.Get(c.Request.Context(), id)
	if err != nil {
		response.RespondServiceError(c, err, "get_run_failed")
		return
	}
	response.RespondOK(c, gin.H{"run": out})
}
