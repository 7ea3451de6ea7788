package service

import (
	"context"
	"database/sql"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/russiantech/score-app-server-sub000/internal/models"
	"github.com/russiantech/score-app-server-sub000/internal/repository"
	appErrors "github.com/russiantech/score-app-server-sub000/pkg/errors"
)

type courseRepo interface {
	List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error)
	FindByID(ctx context.Context, id string) (*models.Course, error)
	ExistsBySlug(ctx context.Context, slug string, excludeID string) (bool, error)
	Create(ctx context.Context, course *models.Course) error
	Update(ctx context.Context, course *models.Course) error
	Delete(ctx context.Context, id string) error
}

type moduleRepo interface {
	ListByCourse(ctx context.Context, courseID string) ([]models.CourseModule, error)
	FindByID(ctx context.Context, id string) (*models.CourseModule, error)
	MaxPosition(ctx context.Context, courseID string) (int, error)
	Insert(ctx context.Context, module *models.CourseModule) error
	Update(ctx context.Context, module *models.CourseModule) error
	Move(ctx context.Context, module *models.CourseModule, newPosition int) error
	Delete(ctx context.Context, module *models.CourseModule) error
}

type lessonRepo interface {
	ListByModule(ctx context.Context, moduleID string) ([]models.Lesson, error)
	FindByID(ctx context.Context, id string) (*models.Lesson, error)
	MaxPosition(ctx context.Context, moduleID string) (int, error)
	Insert(ctx context.Context, lesson *models.Lesson) error
	Update(ctx context.Context, lesson *models.Lesson) error
	Delete(ctx context.Context, lesson *models.Lesson) error
}

// CreateCourseRequest is the payload for creating a course.
type CreateCourseRequest struct {
	Title       string  `json:"title" validate:"required"`
	Slug        string  `json:"slug" validate:"required"`
	Description *string `json:"description,omitempty"`
	Level       *string `json:"level,omitempty"`
	Published   bool    `json:"published"`
}

// UpdateCourseRequest is the payload for updating a course.
type UpdateCourseRequest struct {
	Title       *string `json:"title,omitempty"`
	Slug        *string `json:"slug,omitempty"`
	Description *string `json:"description,omitempty"`
	Level       *string `json:"level,omitempty"`
	Published   *bool   `json:"published,omitempty"`
}

// UpsertModuleRequest is the payload for creating or updating a module.
// Position is optional; omitted means append at the end on create.
type UpsertModuleRequest struct {
	Title    string  `json:"title" validate:"required"`
	Summary  *string `json:"summary,omitempty"`
	Position *int    `json:"position,omitempty" validate:"omitempty,gte=0"`
}

// UpsertLessonRequest is the payload for creating or updating a lesson.
type UpsertLessonRequest struct {
	Title           string  `json:"title" validate:"required"`
	Content         *string `json:"content,omitempty"`
	DurationMinutes *int    `json:"duration_minutes,omitempty" validate:"omitempty,gte=0"`
	Position        *int    `json:"position,omitempty" validate:"omitempty,gte=0"`
}

// CourseService manages the course, module and lesson hierarchy.
type CourseService struct {
	courses   courseRepo
	modules   moduleRepo
	lessons   lessonRepo
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCourseService constructs CourseService.
func NewCourseService(courses courseRepo, modules moduleRepo, lessons lessonRepo, validate *validator.Validate, logger *zap.Logger) *CourseService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CourseService{courses: courses, modules: modules, lessons: lessons, validator: validate, logger: logger}
}

// List returns courses matching the filter with a total count.
func (s *CourseService) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error) {
	courses, total, err := s.courses.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}
	return courses, total, nil
}

// Get returns a single course.
func (s *CourseService) Get(ctx context.Context, id string) (*models.Course, error) {
	course, err := s.courses.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	return course, nil
}

// Create registers a new course with a unique slug.
func (s *CourseService) Create(ctx context.Context, req CreateCourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	slug := strings.ToLower(strings.TrimSpace(req.Slug))
	exists, err := s.courses.ExistsBySlug(ctx, slug, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check slug")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "slug already in use")
	}
	course := &models.Course{
		Title:       req.Title,
		Slug:        slug,
		Description: req.Description,
		Level:       req.Level,
		Published:   req.Published,
	}
	if err := s.courses.Create(ctx, course); err != nil {
		if repository.IsIntegrityViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "slug already in use")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create course")
	}
	return course, nil
}

// Update applies partial changes to a course.
func (s *CourseService) Update(ctx context.Context, id string, req UpdateCourseRequest) (*models.Course, error) {
	course, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Slug != nil {
		slug := strings.ToLower(strings.TrimSpace(*req.Slug))
		exists, err := s.courses.ExistsBySlug(ctx, slug, id)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check slug")
		}
		if exists {
			return nil, appErrors.Clone(appErrors.ErrConflict, "slug already in use")
		}
		course.Slug = slug
	}
	if req.Title != nil {
		course.Title = *req.Title
	}
	if req.Description != nil {
		course.Description = req.Description
	}
	if req.Level != nil {
		course.Level = req.Level
	}
	if req.Published != nil {
		course.Published = *req.Published
	}
	if err := s.courses.Update(ctx, course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update course")
	}
	return course, nil
}

// Delete removes a course and everything beneath it.
func (s *CourseService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.courses.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete course")
	}
	return nil
}

// Modules returns the ordered module list of a course.
func (s *CourseService) Modules(ctx context.Context, courseID string) ([]models.CourseModule, error) {
	if _, err := s.Get(ctx, courseID); err != nil {
		return nil, err
	}
	modules, err := s.modules.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list modules")
	}
	return modules, nil
}

// CreateModule inserts a module, appending when no position is given and
// shifting later siblings when the requested position is taken.
func (s *CourseService) CreateModule(ctx context.Context, courseID string, req UpsertModuleRequest) (*models.CourseModule, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid module payload")
	}
	if _, err := s.Get(ctx, courseID); err != nil {
		return nil, err
	}
	position, err := s.resolveModulePosition(ctx, courseID, req.Position)
	if err != nil {
		return nil, err
	}
	module := &models.CourseModule{
		CourseID: courseID,
		Title:    req.Title,
		Summary:  req.Summary,
		Position: position,
	}
	if err := s.modules.Insert(ctx, module); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create module")
	}
	return module, nil
}

// UpdateModule changes module metadata and relocates it when a new
// position is supplied.
func (s *CourseService) UpdateModule(ctx context.Context, moduleID string, req UpsertModuleRequest) (*models.CourseModule, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid module payload")
	}
	module, err := s.findModule(ctx, moduleID)
	if err != nil {
		return nil, err
	}
	module.Title = req.Title
	module.Summary = req.Summary
	if err := s.modules.Update(ctx, module); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update module")
	}
	if req.Position != nil && *req.Position != module.Position {
		max, err := s.modules.MaxPosition(ctx, module.CourseID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve module positions")
		}
		target := *req.Position
		if target > max {
			target = max
		}
		if err := s.modules.Move(ctx, module, target); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to move module")
		}
	}
	return module, nil
}

// DeleteModule removes a module and compacts sibling positions.
func (s *CourseService) DeleteModule(ctx context.Context, moduleID string) error {
	module, err := s.findModule(ctx, moduleID)
	if err != nil {
		return err
	}
	if err := s.modules.Delete(ctx, module); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete module")
	}
	return nil
}

// Lessons returns the ordered lesson list of a module.
func (s *CourseService) Lessons(ctx context.Context, moduleID string) ([]models.Lesson, error) {
	if _, err := s.findModule(ctx, moduleID); err != nil {
		return nil, err
	}
	lessons, err := s.lessons.ListByModule(ctx, moduleID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list lessons")
	}
	return lessons, nil
}

// CreateLesson inserts a lesson with the same ordering semantics as modules.
func (s *CourseService) CreateLesson(ctx context.Context, moduleID string, req UpsertLessonRequest) (*models.Lesson, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid lesson payload")
	}
	if _, err := s.findModule(ctx, moduleID); err != nil {
		return nil, err
	}
	position, err := s.resolveLessonPosition(ctx, moduleID, req.Position)
	if err != nil {
		return nil, err
	}
	lesson := &models.Lesson{
		ModuleID:        moduleID,
		Title:           req.Title,
		Content:         req.Content,
		DurationMinutes: req.DurationMinutes,
		Position:        position,
	}
	if err := s.lessons.Insert(ctx, lesson); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create lesson")
	}
	return lesson, nil
}

// UpdateLesson changes lesson fields in place. Reordering goes through
// delete and re-insert on the client side; metadata updates keep position.
func (s *CourseService) UpdateLesson(ctx context.Context, lessonID string, req UpsertLessonRequest) (*models.Lesson, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid lesson payload")
	}
	lesson, err := s.findLesson(ctx, lessonID)
	if err != nil {
		return nil, err
	}
	lesson.Title = req.Title
	lesson.Content = req.Content
	lesson.DurationMinutes = req.DurationMinutes
	if err := s.lessons.Update(ctx, lesson); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update lesson")
	}
	return lesson, nil
}

// DeleteLesson removes a lesson and compacts sibling positions.
func (s *CourseService) DeleteLesson(ctx context.Context, lessonID string) error {
	lesson, err := s.findLesson(ctx, lessonID)
	if err != nil {
		return err
	}
	if err := s.lessons.Delete(ctx, lesson); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete lesson")
	}
	return nil
}

func (s *CourseService) findModule(ctx context.Context, id string) (*models.CourseModule, error) {
	module, err := s.modules.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "module not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load module")
	}
	return module, nil
}

func (s *CourseService) findLesson(ctx context.Context, id string) (*models.Lesson, error) {
	lesson, err := s.lessons.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "lesson not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lesson")
	}
	return lesson, nil
}

func (s *CourseService) resolveModulePosition(ctx context.Context, courseID string, requested *int) (int, error) {
	max, err := s.modules.MaxPosition(ctx, courseID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve module positions")
	}
	if requested == nil || *requested > max+1 {
		return max + 1, nil
	}
	return *requested, nil
}

func (s *CourseService) resolveLessonPosition(ctx context.Context, moduleID string, requested *int) (int, error) {
	max, err := s.lessons.MaxPosition(ctx, moduleID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve lesson positions")
	}
	if requested == nil || *requested > max+1 {
		return max + 1, nil
	}
	return *requested, nil
}
