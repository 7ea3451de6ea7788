package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/russiantech/score-app-server-sub000/internal/models"
	"github.com/russiantech/score-app-server-sub000/internal/service"
	appErrors "github.com/russiantech/score-app-server-sub000/pkg/errors"
	"github.com/russiantech/score-app-server-sub000/pkg/response"
)

// EnrollmentHandler exposes enrollment endpoints.
type EnrollmentHandler struct {
	enrollments *service.EnrollmentService
}

// NewEnrollmentHandler constructs handler.
func NewEnrollmentHandler(enrollments *service.EnrollmentService) *EnrollmentHandler {
	return &EnrollmentHandler{enrollments: enrollments}
}

// List godoc
// @Summary List enrollments
// @Tags Enrollments
// @Produce json
// @Param studentId query string false "Filter by student"
// @Param courseId query string false "Filter by course"
// @Param session query string false "Filter by session"
// @Param status query string false "Filter by status"
// @Success 200 {object} response.Envelope
// @Router /enrollments [get]
func (h *EnrollmentHandler) List(c *gin.Context) {
	filter := models.EnrollmentFilter{
		StudentID: c.Query("studentId"),
		CourseID:  c.Query("courseId"),
		Session:   c.Query("session"),
		Status:    models.EnrollmentStatus(c.Query("status")),
		Page:      queryInt(c, "page", 1),
		PageSize:  queryInt(c, "pageSize", 20),
		SortBy:    c.Query("sortBy"),
		SortOrder: c.Query("sortOrder"),
	}
	enrollments, total, err := h.enrollments.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	response.JSON(c, http.StatusOK, enrollments, pagination)
}

// Get godoc
// @Summary Get an enrollment
// @Tags Enrollments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id} [get]
func (h *EnrollmentHandler) Get(c *gin.Context) {
	enrollment, err := h.enrollments.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollment, nil)
}

// Enroll godoc
// @Summary Enroll a student on a course
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param payload body service.EnrollRequest true "Enrollment payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /enrollments [post]
func (h *EnrollmentHandler) Enroll(c *gin.Context) {
	var req service.EnrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	enrollment, err := h.enrollments.Enroll(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, enrollment)
}

// UpdateStatus godoc
// @Summary Update enrollment status
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param payload body service.UpdateEnrollmentStatusRequest true "Status payload"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/status [patch]
func (h *EnrollmentHandler) UpdateStatus(c *gin.Context) {
	var req service.UpdateEnrollmentStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	enrollment, err := h.enrollments.UpdateStatus(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollment, nil)
}

// Delete godoc
// @Summary Delete an enrollment
// @Tags Enrollments
// @Param id path string true "Enrollment ID"
// @Success 204 {object} response.Envelope
// @Router /enrollments/{id} [delete]
func (h *EnrollmentHandler) Delete(c *gin.Context) {
	if err := h.enrollments.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
