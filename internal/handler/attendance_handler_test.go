package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/russiantech/score-app-server-sub000/internal/middleware"
	"github.com/russiantech/score-app-server-sub000/internal/models"
)

func TestAttendanceHandlerLessonReportRequiresDate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewAttendanceHandler(nil)

	for _, target := range []string{"/attendance/lessons/l1", "/attendance/lessons/l1?date=20-08-2026"} {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		req, _ := http.NewRequest(http.MethodGet, target, nil)
		c.Request = req
		c.Params = gin.Params{{Key: "lessonId", Value: "l1"}}
		c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "tutor-1", Role: models.RoleTutor})

		handler.LessonReport(c)
		require.Equal(t, http.StatusBadRequest, w.Code)
	}
}

func TestAttendanceHandlerMarkRejectsMalformedBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewAttendanceHandler(nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/attendance", nil)
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "tutor-1", Role: models.RoleTutor})

	handler.Mark(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}
