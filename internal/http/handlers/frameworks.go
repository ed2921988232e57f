package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/journeyfunnel/journeyfunnel-backend/internal/frameworks"
	"github.com/journeyfunnel/journeyfunnel-backend/internal/http/response"
)

type FrameworksHandler struct{}

func NewFrameworksHandler() *FrameworksHandler { return &FrameworksHandler{} }

// GET /api/v1/frameworks
func (h *FrameworksHandler) List(c *gin.Context) {
	response.RespondOK(c, gin.H{"frameworks": frameworks.Catalog()})
}
