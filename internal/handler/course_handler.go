package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/russiantech/score-app-server-sub000/internal/models"
	"github.com/russiantech/score-app-server-sub000/internal/service"
	appErrors "github.com/russiantech/score-app-server-sub000/pkg/errors"
	"github.com/russiantech/score-app-server-sub000/pkg/response"
)

// CourseHandler exposes course, module and lesson endpoints.
type CourseHandler struct {
	courses *service.CourseService
}

// NewCourseHandler constructs handler.
func NewCourseHandler(courses *service.CourseService) *CourseHandler {
	return &CourseHandler{courses: courses}
}

// List godoc
// @Summary List courses
// @Tags Courses
// @Produce json
// @Param search query string false "Search in title and slug"
// @Param published query bool false "Filter by published flag"
// @Param level query string false "Filter by level"
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /courses [get]
func (h *CourseHandler) List(c *gin.Context) {
	filter := models.CourseFilter{
		Search:    c.Query("search"),
		Level:     c.Query("level"),
		Page:      queryInt(c, "page", 1),
		PageSize:  queryInt(c, "pageSize", 20),
		SortBy:    c.Query("sortBy"),
		SortOrder: c.Query("sortOrder"),
	}
	if raw := c.Query("published"); raw != "" {
		published, err := strconv.ParseBool(raw)
		if err == nil {
			filter.Published = &published
		}
	}
	courses, total, err := h.courses.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	response.JSON(c, http.StatusOK, courses, pagination)
}

// Get godoc
// @Summary Get a course
// @Tags Courses
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id} [get]
func (h *CourseHandler) Get(c *gin.Context) {
	course, err := h.courses.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, course, nil)
}

// Create godoc
// @Summary Create a course
// @Tags Courses
// @Accept json
// @Produce json
// @Param payload body service.CreateCourseRequest true "Course payload"
// @Success 201 {object} response.Envelope
// @Router /courses [post]
func (h *CourseHandler) Create(c *gin.Context) {
	var req service.CreateCourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	course, err := h.courses.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, course)
}

// Update godoc
// @Summary Update a course
// @Tags Courses
// @Accept json
// @Produce json
// @Param id path string true "Course ID"
// @Param payload body service.UpdateCourseRequest true "Course payload"
// @Success 200 {object} response.Envelope
// @Router /courses/{id} [patch]
func (h *CourseHandler) Update(c *gin.Context) {
	var req service.UpdateCourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	course, err := h.courses.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, course, nil)
}

// Delete godoc
// @Summary Delete a course
// @Tags Courses
// @Param id path string true "Course ID"
// @Success 204 {object} response.Envelope
// @Router /courses/{id} [delete]
func (h *CourseHandler) Delete(c *gin.Context) {
	if err := h.courses.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Modules godoc
// @Summary List modules of a course
// @Tags Courses
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/modules [get]
func (h *CourseHandler) Modules(c *gin.Context) {
	modules, err := h.courses.Modules(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, modules, nil)
}

// CreateModule godoc
// @Summary Create a module
// @Tags Courses
// @Accept json
// @Produce json
// @Param id path string true "Course ID"
// @Param payload body service.UpsertModuleRequest true "Module payload"
// @Success 201 {object} response.Envelope
// @Router /courses/{id}/modules [post]
func (h *CourseHandler) CreateModule(c *gin.Context) {
	var req service.UpsertModuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	module, err := h.courses.CreateModule(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, module)
}

// UpdateModule godoc
// @Summary Update a module
// @Tags Courses
// @Accept json
// @Produce json
// @Param moduleId path string true "Module ID"
// @Param payload body service.UpsertModuleRequest true "Module payload"
// @Success 200 {object} response.Envelope
// @Router /modules/{moduleId} [put]
func (h *CourseHandler) UpdateModule(c *gin.Context) {
	var req service.UpsertModuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	module, err := h.courses.UpdateModule(c.Request.Context(), c.Param("moduleId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, module, nil)
}

// DeleteModule godoc
// @Summary Delete a module
// @Tags Courses
// @Param moduleId path string true "Module ID"
// @Success 204 {object} response.Envelope
// @Router /modules/{moduleId} [delete]
func (h *CourseHandler) DeleteModule(c *gin.Context) {
	if err := h.courses.DeleteModule(c.Request.Context(), c.Param("moduleId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Lessons godoc
// @Summary List lessons of a module
// @Tags Courses
// @Produce json
// @Param moduleId path string true "Module ID"
// @Success 200 {object} response.Envelope
// @Router /modules/{moduleId}/lessons [get]
func (h *CourseHandler) Lessons(c *gin.Context) {
	lessons, err := h.courses.Lessons(c.Request.Context(), c.Param("moduleId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, lessons, nil)
}

// CreateLesson godoc
// @Summary Create a lesson
// @Tags Courses
// @Accept json
// @Produce json
// @Param moduleId path string true "Module ID"
// @Param payload body service.UpsertLessonRequest true "Lesson payload"
// @Success 201 {object} response.Envelope
// @Router /modules/{moduleId}/lessons [post]
func (h *CourseHandler) CreateLesson(c *gin.Context) {
	var req service.UpsertLessonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	lesson, err := h.courses.CreateLesson(c.Request.Context(), c.Param("moduleId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, lesson)
}

// UpdateLesson godoc
// @Summary Update a lesson
// @Tags Courses
// @Accept json
// @Produce json
// @Param lessonId path string true "Lesson ID"
// @Param payload body service.UpsertLessonRequest true "Lesson payload"
// @Success 200 {object} response.Envelope
// @Router /lessons/{lessonId} [put]
func (h *CourseHandler) UpdateLesson(c *gin.Context) {
	var req service.UpsertLessonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	lesson, err := h.courses.UpdateLesson(c.Request.Context(), c.Param("lessonId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, lesson, nil)
}

// DeleteLesson godoc
// @Summary Delete a lesson
// @Tags Courses
// @Param lessonId path string true "Lesson ID"
// @Success 204 {object} response.Envelope
// @Router /lessons/{lessonId} [delete]
func (h *CourseHandler) DeleteLesson(c *gin.Context) {
	if err := h.courses.DeleteLesson(c.Request.Context(), c.Param("lessonId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
