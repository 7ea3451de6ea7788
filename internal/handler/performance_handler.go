package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/russiantech/score-app-server-sub000/internal/service"
	"github.com/russiantech/score-app-server-sub000/pkg/response"
)

// PerformanceHandler exposes aggregated student performance endpoints.
type PerformanceHandler struct {
	performance *service.PerformanceService
}

// NewPerformanceHandler constructs handler.
func NewPerformanceHandler(performance *service.PerformanceService) *PerformanceHandler {
	return &PerformanceHandler{performance: performance}
}

// Student godoc
// @Summary Aggregated performance for a student
// @Tags Performance
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /performance/students/{id} [get]
func (h *PerformanceHandler) Student(c *gin.Context) {
	perf, err := h.performance.GetStudentPerformance(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, perf, nil)
}

// ExportCSV godoc
// @Summary Download a student performance report as CSV
// @Tags Performance
// @Produce text/csv
// @Param id path string true "Student ID"
// @Success 200 {file} file
// @Router /performance/students/{id}/export/csv [get]
func (h *PerformanceHandler) ExportCSV(c *gin.Context) {
	studentID := c.Param("id")
	data, err := h.performance.ExportCSV(c.Request.Context(), studentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"performance-%s.csv\"", studentID))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "text/csv", data)
}

// ExportPDF godoc
// @Summary Download a student performance report as PDF
// @Tags Performance
// @Produce application/pdf
// @Param id path string true "Student ID"
// @Success 200 {file} file
// @Router /performance/students/{id}/export/pdf [get]
func (h *PerformanceHandler) ExportPDF(c *gin.Context) {
	studentID := c.Param("id")
	data, err := h.performance.ExportPDF(c.Request.Context(), studentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"performance-%s.pdf\"", studentID))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "application/pdf", data)
}
