package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/russiantech/score-app-server-sub000/internal/service"
	appErrors "github.com/russiantech/score-app-server-sub000/pkg/errors"
	"github.com/russiantech/score-app-server-sub000/pkg/response"
)

// TutorHandler exposes tutor assignment endpoints.
type TutorHandler struct {
	tutors *service.TutorService
}

// NewTutorHandler constructs handler.
func NewTutorHandler(tutors *service.TutorService) *TutorHandler {
	return &TutorHandler{tutors: tutors}
}

func activeOnlyParam(c *gin.Context) bool {
	raw := c.DefaultQuery("activeOnly", "true")
	active, err := strconv.ParseBool(raw)
	if err != nil {
		return true
	}
	return active
}

// ListByCourse godoc
// @Summary List tutors assigned to a course
// @Tags Tutors
// @Produce json
// @Param courseId path string true "Course ID"
// @Param activeOnly query bool false "Only active assignments" default(true)
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/tutors [get]
func (h *TutorHandler) ListByCourse(c *gin.Context) {
	assignments, err := h.tutors.ListByCourse(c.Request.Context(), c.Param("id"), activeOnlyParam(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assignments, nil)
}

// ListByTutor godoc
// @Summary List course assignments for a tutor
// @Tags Tutors
// @Produce json
// @Param tutorId path string true "Tutor ID"
// @Param activeOnly query bool false "Only active assignments" default(true)
// @Success 200 {object} response.Envelope
// @Router /tutors/{id}/assignments [get]
func (h *TutorHandler) ListByTutor(c *gin.Context) {
	assignments, err := h.tutors.ListByTutor(c.Request.Context(), c.Param("id"), activeOnlyParam(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assignments, nil)
}

// Assign godoc
// @Summary Assign a tutor to a course
// @Tags Tutors
// @Accept json
// @Produce json
// @Param payload body service.AssignTutorRequest true "Assignment payload"
// @Success 201 {object} response.Envelope
// @Router /tutors/assignments [post]
func (h *TutorHandler) Assign(c *gin.Context) {
	var req service.AssignTutorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	assignment, err := h.tutors.Assign(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, assignment)
}

// Revoke godoc
// @Summary Revoke a tutor assignment
// @Tags Tutors
// @Produce json
// @Param id path string true "Assignment ID"
// @Success 204
// @Router /tutors/assignments/{id} [delete]
func (h *TutorHandler) Revoke(c *gin.Context) {
	if err := h.tutors.Revoke(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
