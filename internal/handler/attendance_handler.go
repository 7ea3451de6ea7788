package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/russiantech/score-app-server-sub000/internal/models"
	"github.com/russiantech/score-app-server-sub000/internal/service"
	appErrors "github.com/russiantech/score-app-server-sub000/pkg/errors"
	"github.com/russiantech/score-app-server-sub000/pkg/response"
)

// AttendanceHandler exposes attendance endpoints.
type AttendanceHandler struct {
	attendance *service.AttendanceService
}

// NewAttendanceHandler constructs handler.
func NewAttendanceHandler(attendance *service.AttendanceService) *AttendanceHandler {
	return &AttendanceHandler{attendance: attendance}
}

// List godoc
// @Summary List attendance records
// @Tags Attendance
// @Produce json
// @Param courseId query string false "Filter by course"
// @Param lessonId query string false "Filter by lesson"
// @Param studentId query string false "Filter by student"
// @Param status query string false "Filter by status"
// @Param dateFrom query string false "Start date (RFC 3339)"
// @Param dateTo query string false "End date (RFC 3339)"
// @Success 200 {object} response.Envelope
// @Router /attendance [get]
func (h *AttendanceHandler) List(c *gin.Context) {
	filter := models.AttendanceFilter{
		CourseID:  c.Query("courseId"),
		LessonID:  c.Query("lessonId"),
		StudentID: c.Query("studentId"),
		Page:      queryInt(c, "page", 1),
		PageSize:  queryInt(c, "pageSize", 50),
		SortOrder: c.Query("sortOrder"),
	}
	if raw := c.Query("status"); raw != "" {
		status := models.AttendanceStatus(raw)
		filter.Status = &status
	}
	if raw := c.Query("dateFrom"); raw != "" {
		if ts, err := time.Parse(time.RFC3339, raw); err == nil {
			filter.DateFrom = &ts
		}
	}
	if raw := c.Query("dateTo"); raw != "" {
		if ts, err := time.Parse(time.RFC3339, raw); err == nil {
			filter.DateTo = &ts
		}
	}
	records, total, err := h.attendance.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	response.JSON(c, http.StatusOK, records, pagination)
}

// Mark godoc
// @Summary Mark attendance for one student
// @Tags Attendance
// @Accept json
// @Produce json
// @Param payload body service.MarkAttendanceRequest true "Attendance payload"
// @Success 200 {object} response.Envelope
// @Router /attendance [post]
func (h *AttendanceHandler) Mark(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.MarkAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	record, err := h.attendance.Mark(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// Bulk godoc
// @Summary Bulk mark attendance for a lesson
// @Tags Attendance
// @Accept json
// @Produce json
// @Param payload body service.BulkAttendanceRequest true "Bulk payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /attendance/bulk [post]
func (h *AttendanceHandler) Bulk(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.BulkAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.attendance.BulkMark(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// LessonReport godoc
// @Summary Attendance report for a lesson date
// @Tags Attendance
// @Produce json
// @Param lessonId path string true "Lesson ID"
// @Param date query string true "Date (RFC 3339)"
// @Success 200 {object} response.Envelope
// @Router /attendance/lessons/{lessonId} [get]
func (h *AttendanceHandler) LessonReport(c *gin.Context) {
	date, err := time.Parse(time.RFC3339, c.Query("date"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "date query parameter required"))
		return
	}
	records, err := h.attendance.LessonReport(c.Request.Context(), c.Param("lessonId"), date)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, nil)
}

// StudentSummary godoc
// @Summary Attendance summary for a student
// @Tags Attendance
// @Produce json
// @Param studentId path string true "Student ID"
// @Param courseId query string false "Restrict to course"
// @Success 200 {object} response.Envelope
// @Router /attendance/students/{studentId}/summary [get]
func (h *AttendanceHandler) StudentSummary(c *gin.Context) {
	summary, err := h.attendance.StudentSummary(c.Request.Context(), c.Param("studentId"), c.Query("courseId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}
