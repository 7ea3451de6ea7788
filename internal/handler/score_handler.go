package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/russiantech/score-app-server-sub000/internal/models"
	"github.com/russiantech/score-app-server-sub000/internal/service"
	appErrors "github.com/russiantech/score-app-server-sub000/pkg/errors"
	"github.com/russiantech/score-app-server-sub000/pkg/response"
)

// ScoreHandler exposes score column and score entry endpoints.
type ScoreHandler struct {
	scoring     *service.ScoringService
	metrics     *service.MetricsService
	performance *service.PerformanceService
}

// NewScoreHandler constructs handler. Metrics and performance are optional
// collaborators used for counters and cache invalidation after bulk writes.
func NewScoreHandler(scoring *service.ScoringService, metrics *service.MetricsService, performance *service.PerformanceService) *ScoreHandler {
	return &ScoreHandler{scoring: scoring, metrics: metrics, performance: performance}
}

func scopeFromQuery(c *gin.Context) (models.ColumnScope, bool) {
	if id := c.Query("lessonId"); id != "" {
		return models.LessonScope(id), true
	}
	if id := c.Query("moduleId"); id != "" {
		return models.ModuleScope(id), true
	}
	if id := c.Query("courseId"); id != "" {
		return models.CourseScope(id), true
	}
	return models.ColumnScope{}, false
}

// Columns godoc
// @Summary List score columns for a scope
// @Tags Scores
// @Produce json
// @Param lessonId query string false "Lesson scope"
// @Param moduleId query string false "Module scope"
// @Param courseId query string false "Course scope"
// @Success 200 {object} response.Envelope
// @Router /scores/columns [get]
func (h *ScoreHandler) Columns(c *gin.Context) {
	scope, ok := scopeFromQuery(c)
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "exactly one of lessonId, moduleId or courseId is required"))
		return
	}
	columns, err := h.scoring.Columns(c.Request.Context(), scope)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, columns, nil)
}

// ReconcileColumns godoc
// @Summary Reconcile the column list for a scope
// @Tags Scores
// @Accept json
// @Produce json
// @Param lessonId query string false "Lesson scope"
// @Param moduleId query string false "Module scope"
// @Param courseId query string false "Course scope"
// @Param payload body []service.ColumnEntry true "Desired columns"
// @Success 200 {object} response.Envelope
// @Router /scores/columns [put]
func (h *ScoreHandler) ReconcileColumns(c *gin.Context) {
	scope, ok := scopeFromQuery(c)
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "exactly one of lessonId, moduleId or courseId is required"))
		return
	}
	var desired []service.ColumnEntry
	if err := c.ShouldBindJSON(&desired); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid columns payload"))
		return
	}
	columns, err := h.scoring.ReconcileColumns(c.Request.Context(), scope, desired)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, columns, nil)
}

// DeleteColumn godoc
// @Summary Delete a score column
// @Tags Scores
// @Produce json
// @Param id path string true "Column ID"
// @Success 204 {object} response.Envelope
// @Router /scores/columns/{id} [delete]
func (h *ScoreHandler) DeleteColumn(c *gin.Context) {
	if err := h.scoring.DeleteColumn(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// List godoc
// @Summary List score entries
// @Tags Scores
// @Produce json
// @Param enrollmentId query string false "Filter by enrollment"
// @Param columnId query string false "Filter by column"
// @Param lessonId query string false "Filter by lesson"
// @Param moduleId query string false "Filter by module"
// @Success 200 {object} response.Envelope
// @Router /scores [get]
func (h *ScoreHandler) List(c *gin.Context) {
	filter := models.ScoreFilter{
		EnrollmentID: c.Query("enrollmentId"),
		ColumnID:     c.Query("columnId"),
		LessonID:     c.Query("lessonId"),
		ModuleID:     c.Query("moduleId"),
	}
	scores, err := h.scoring.ListScores(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, scores, nil)
}

// Bulk godoc
// @Summary Bulk record scores for a lesson
// @Tags Scores
// @Accept json
// @Produce json
// @Param payload body service.BulkScoresRequest true "Bulk payload"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /scores/bulk [post]
func (h *ScoreHandler) Bulk(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.BulkScoresRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.scoring.BulkUpsertScores(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	if h.metrics != nil {
		h.metrics.RecordScores(result.Created, result.Updated)
	}
	if h.performance != nil {
		for _, student := range req.Students {
			if student.StudentID != "" {
				h.performance.InvalidateStudent(c.Request.Context(), student.StudentID)
			}
		}
	}
	response.JSON(c, http.StatusOK, result, nil)
}
