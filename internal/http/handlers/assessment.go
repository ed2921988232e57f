package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/journeyfunnel/journeyfunnel-backend/internal/http/response"
	"github.com/journeyfunnel/journeyfunnel-backend/internal/services"
)

type AssessmentHandler struct {
	assessments services.AssessmentService
	analysis    services.AnalysisService
}

func NewAssessmentHandler(assessments services.AssessmentService, analysis services.AnalysisService) *AssessmentHandler {
	return &AssessmentHandler{assessments: assessments, analysis: analysis}
}

// POST /api/v1/funnel/assess
func (h *AssessmentHandler) Assess(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxFunnelBodyBytes)
	var req services.AssessInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	out, err := h.assessments.Assess(c.Request.Context(), req)
	if err != nil {
		response.RespondServiceError(c, err, "assess_failed")
		return
	}
	response.RespondOK(c, out)
}

// POST /api/v1/funnel/analyze
func (h *AssessmentHandler) Analyze(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxFunnelBodyBytes)
	var req services.AnalyzeInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	out, err := h.analysis.Analyze(c.Request.Context(), req)
	if err != nil {
		response.RespondServiceError(c, err, "analyze_failed")
		return
	}
	response.RespondOK(c, out)
}
