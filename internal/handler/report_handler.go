package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/jengzang/civic-map/internal/models"
	"github.com/jengzang/civic-map/internal/service"
	"github.com/jengzang/civic-map/pkg/response"
)

// ReportHandler handles HTTP requests for the report list
type ReportHandler struct {
	service *service.ReportService
}

// NewReportHandler creates a new report handler
func NewReportHandler(service *service.ReportService) *ReportHandler {
	return &ReportHandler{service: service}
}

// GetReports handles GET /api/v1/reports
func (h *ReportHandler) GetReports(c *gin.Context) {
	var filter models.ReportFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.BadRequest(c, "Invalid query parameters", err)
		return
	}

	reports, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, "Failed to get reports", err)
		return
	}
	response.Success(c, gin.H{
		"data":  reports,
		"total": len(reports),
	})
}

// GetHeat handles GET /api/v1/reports/heat
func (h *ReportHandler) GetHeat(c *gin.Context) {
	var filter models.ReportFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.BadRequest(c, "Invalid query parameters", err)
		return
	}

	heat, err := h.service.Heat(c.Request.Context(), filter)
	if err != nil {
		respondError(c, "Failed to build heatmap", err)
		return
	}
	response.Success(c, heat)
}

// GetCategories handles GET /api/v1/reports/categories
func (h *ReportHandler) GetCategories(c *gin.Context) {
	counts, err := h.service.Categories(c.Request.Context())
	if err != nil {
		respondError(c, "Failed to count categories", err)
		return
	}
	response.Success(c, counts)
}
