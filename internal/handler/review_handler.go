package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/russiantech/score-app-server-sub000/internal/models"
	"github.com/russiantech/score-app-server-sub000/internal/service"
	appErrors "github.com/russiantech/score-app-server-sub000/pkg/errors"
	"github.com/russiantech/score-app-server-sub000/pkg/response"
)

// ReviewHandler exposes course review endpoints.
type ReviewHandler struct {
	reviews *service.ReviewService
	users   *service.UserService
}

// NewReviewHandler constructs handler.
func NewReviewHandler(reviews *service.ReviewService, users *service.UserService) *ReviewHandler {
	return &ReviewHandler{reviews: reviews, users: users}
}

// ListByCourse godoc
// @Summary List reviews for a course
// @Tags Reviews
// @Produce json
// @Param courseId path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/reviews [get]
func (h *ReviewHandler) ListByCourse(c *gin.Context) {
	page := queryInt(c, "page", 1)
	pageSize := queryInt(c, "pageSize", 20)
	reviews, total, err := h.reviews.ListByCourse(c.Request.Context(), c.Param("id"), page, pageSize)
	if err != nil {
		response.Error(c, err)
		return
	}
	pagination := &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}
	response.JSON(c, http.StatusOK, reviews, pagination)
}

// Rating godoc
// @Summary Aggregate rating for a course
// @Tags Reviews
// @Produce json
// @Param courseId path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/rating [get]
func (h *ReviewHandler) Rating(c *gin.Context) {
	rating, err := h.reviews.CourseRating(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rating, nil)
}

// Submit godoc
// @Summary Submit or update a review for an enrollment
// @Tags Reviews
// @Accept json
// @Produce json
// @Param payload body service.SubmitReviewRequest true "Review payload"
// @Success 200 {object} response.Envelope
// @Router /reviews [post]
func (h *ReviewHandler) Submit(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.SubmitReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	review, err := h.reviews.Submit(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, review, nil)
}

// Delete godoc
// @Summary Delete a review
// @Tags Reviews
// @Produce json
// @Param id path string true "Review ID"
// @Param enrollmentId query string true "Enrollment ID"
// @Success 204
// @Router /reviews/{id} [delete]
func (h *ReviewHandler) Delete(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	actor, err := h.users.Get(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.reviews.Delete(c.Request.Context(), actor, c.Param("id"), c.Query("enrollmentId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
