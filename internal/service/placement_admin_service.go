package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"placement_backend/internal/model"
	"placement_backend/internal/placement"
	"placement_backend/internal/repository"
	"placement_backend/internal/util"
	"placement_backend/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Actor is the authenticated user performing an authoring operation.
type Actor struct {
	UserID uint
	Role   model.UserRole
}

func (a Actor) canManage(test *model.PlacementTest) bool {
	return a.Role == model.Admin || (a.UserID != 0 && test.CreatorID == a.UserID)
}

type PlacementAdminService struct {
	Repo  *repository.PlacementRepository
	Cache *repository.PlacementCache
	Now   func() time.Time
}

func NewPlacementAdminService(repo *repository.PlacementRepository, cache *repository.PlacementCache) *PlacementAdminService {
	return &PlacementAdminService{Repo: repo, Cache: cache, Now: time.Now}
}

type QuestionRequest struct {
	Prompt  string         `json:"prompt"`
	Tier    string         `json:"tier"`
	Choices []model.Choice `json:"choices"`
}

type TestRequest struct {
	Title       string            `json:"title" binding:"required"`
	Description string            `json:"description"`
	Questions   []QuestionRequest `json:"questions"`
}

type ModuleRequest struct {
	CourseID    uint   `json:"course_id"`
	CourseTitle string `json:"course_title"`
}

type QuestionView struct {
	ID       uint           `json:"id"`
	Position int            `json:"position"`
	Prompt   string         `json:"prompt"`
	Tier     string         `json:"tier"`
	Choices  []model.Choice `json:"choices"`
}

type TestDetail struct {
	Test        *model.PlacementTest       `json:"test"`
	Questions   []QuestionView             `json:"questions"`
	Assignments map[string][]ModuleRequest `json:"module_assignments"`
}

// buildQuestions checks the parts of a draft that must be right from the
// start. Completeness (choices, a correct answer) is enforced at publish time.
func buildQuestions(reqs []QuestionRequest) ([]model.PlacementQuestion, error) {
	questions := make([]model.PlacementQuestion, 0, len(reqs))
	for i, q := range reqs {
		tier, err := placement.ParseTier(q.Tier)
		if err != nil {
			return nil, fmt.Errorf("%w: question %d: %v", util.ErrInvalidTest, i+1, err)
		}
		choices := q.Choices
		if choices == nil {
			choices = []model.Choice{}
		}
		raw, err := json.Marshal(choices)
		if err != nil {
			return nil, fmt.Errorf("%w: question %d: %v", util.ErrInvalidTest, i+1, err)
		}
		questions = append(questions, model.PlacementQuestion{
			Position: i,
			Prompt:   strings.TrimSpace(q.Prompt),
			Tier:     tier.String(),
			Choices:  raw,
		})
	}
	return questions, nil
}

func (s *PlacementAdminService) findManaged(ctx context.Context, actor Actor, testID uint) (*model.PlacementTest, error) {
	test, err := s.Repo.FindTestByID(ctx, testID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrTestNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", util.ErrPersistenceFailure, err)
	}
	if !actor.canManage(test) {
		return nil, util.ErrPermissionDenied
	}
	return test, nil
}

func (s *PlacementAdminService) CreateTest(ctx context.Context, actor Actor, req TestRequest) (*model.PlacementTest, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", util.ErrInvalidTest)
	}
	questions, err := buildQuestions(req.Questions)
	if err != nil {
		return nil, err
	}

	test := &model.PlacementTest{
		Title:       title,
		Description: req.Description,
		Status:      model.TestStatusDraft,
		CreatorID:   actor.UserID,
	}
	if err := s.Repo.CreateTest(ctx, test, questions); err != nil {
		return nil, fmt.Errorf("%w: %w", util.ErrPersistenceFailure, err)
	}
	logger.Log.Info("placement test created", zap.Uint("testId", test.ID), zap.Uint("creatorId", actor.UserID))
	return test, nil
}

// UpdateTest replaces the title, description and questions of a draft.
func (s *PlacementAdminService) UpdateTest(ctx context.Context, actor Actor, testID uint, req TestRequest) (*model.PlacementTest, error) {
	test, err := s.findManaged(ctx, actor, testID)
	if err != nil {
		return nil, err
	}
	if test.Status != model.TestStatusDraft {
		return nil, util.ErrTestNotEditable
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", util.ErrInvalidTest)
	}
	questions, err := buildQuestions(req.Questions)
	if err != nil {
		return nil, err
	}

	test.Title = title
	test.Description = req.Description
	if err := s.Repo.UpdateDraft(ctx, test, questions); err != nil {
		if errors.Is(err, util.ErrTestNotEditable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", util.ErrPersistenceFailure, err)
	}
	return test, nil
}

func (s *PlacementAdminService) GetTest(ctx context.Context, actor Actor, testID uint) (*TestDetail, error) {
	test, err := s.findManaged(ctx, actor, testID)
	if err != nil {
		return nil, err
	}
	rows, err := s.Repo.ListQuestions(ctx, testID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", util.ErrPersistenceFailure, err)
	}
	assignments, err := s.GetModuleAssignments(ctx, actor, testID)
	if err != nil {
		return nil, err
	}

	detail := &TestDetail{Test: test, Questions: make([]QuestionView, 0, len(rows)), Assignments: assignments}
	for _, q := range rows {
		choices, err := decodeChoices(q.Choices)
		if err != nil {
			logger.Log.Warn("placement question has unreadable choices", zap.Uint("questionId", q.ID), zap.Error(err))
		}
		detail.Questions = append(detail.Questions, QuestionView{
			ID:       q.ID,
			Position: q.Position,
			Prompt:   q.Prompt,
			Tier:     q.Tier,
			Choices:  choices,
		})
	}
	return detail, nil
}

// ListTests shows a teacher their own tests; admins see all of them.
func (s *PlacementAdminService) ListTests(ctx context.Context, actor Actor, page, limit int) ([]repository.PlacementTestListRow, int64, error) {
	creatorID := actor.UserID
	if actor.Role == model.Admin {
		creatorID = 0
	}
	rows, total, err := s.Repo.ListTests(ctx, creatorID, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %w", util.ErrPersistenceFailure, err)
	}
	return rows, total, nil
}

// validateForPublish requires at least one question and every question to be
// scorable.
func (s *PlacementAdminService) validateForPublish(ctx context.Context, testID uint) error {
	rows, err := s.Repo.ListQuestions(ctx, testID)
	if err != nil {
		return fmt.Errorf("%w: %w", util.ErrPersistenceFailure, err)
	}
	if len(rows) == 0 {
		return fmt.Errorf("%w: test has no questions", util.ErrInvalidTest)
	}
	for i, row := range rows {
		q, err := toQuestion(row)
		if err == nil {
			err = q.Validate()
		}
		if err != nil {
			return fmt.Errorf("%w: question %d: %v", util.ErrInvalidTest, i+1, err)
		}
	}
	return nil
}

func (s *PlacementAdminService) publish(ctx context.Context, test *model.PlacementTest) error {
	if test.Status != model.TestStatusDraft {
		return util.ErrInvalidTransition
	}
	if err := s.validateForPublish(ctx, test.ID); err != nil {
		return err
	}
	ok, err := s.Repo.TransitionStatus(ctx, test.ID, model.TestStatusDraft, model.TestStatusPublished, s.Now())
	if err != nil {
		return fmt.Errorf("%w: %w", util.ErrPersistenceFailure, err)
	}
	if !ok {
		return util.ErrInvalidTransition
	}
	s.Cache.Invalidate(ctx, test.ID)
	logger.Log.Info("placement test published", zap.Uint("testId", test.ID))
	return nil
}

func (s *PlacementAdminService) PublishTest(ctx context.Context, actor Actor, testID uint) error {
	test, err := s.findManaged(ctx, actor, testID)
	if err != nil {
		return err
	}
	return s.publish(ctx, test)
}

// ArchiveTest withdraws a published test. Stored results stay readable.
func (s *PlacementAdminService) ArchiveTest(ctx context.Context, actor Actor, testID uint) error {
	test, err := s.findManaged(ctx, actor, testID)
	if err != nil {
		return err
	}
	if test.Status != model.TestStatusPublished {
		return util.ErrInvalidTransition
	}
	ok, err := s.Repo.TransitionStatus(ctx, testID, model.TestStatusPublished, model.TestStatusArchived, s.Now())
	if err != nil {
		return fmt.Errorf("%w: %w", util.ErrPersistenceFailure, err)
	}
	if !ok {
		return util.ErrInvalidTransition
	}
	s.Cache.Invalidate(ctx, testID)
	logger.Log.Info("placement test archived", zap.Uint("testId", testID))
	return nil
}

// SchedulePublish sets or, with a nil time, clears the automatic publish
// time of a draft.
func (s *PlacementAdminService) SchedulePublish(ctx context.Context, actor Actor, testID uint, at *time.Time) error {
	test, err := s.findManaged(ctx, actor, testID)
	if err != nil {
		return err
	}
	if test.Status != model.TestStatusDraft {
		return util.ErrTestNotEditable
	}
	ok, err := s.Repo.SetScheduledPublish(ctx, testID, at)
	if err != nil {
		return fmt.Errorf("%w: %w", util.ErrPersistenceFailure, err)
	}
	if !ok {
		return util.ErrTestNotEditable
	}
	return nil
}

// ProcessScheduledPublishes publishes every draft whose scheduled time has
// passed and returns how many went live. A draft that fails validation has
// its schedule cleared so it is not retried on every tick.
func (s *PlacementAdminService) ProcessScheduledPublishes(ctx context.Context) (int, error) {
	due, err := s.Repo.ListDueScheduled(ctx, s.Now())
	if err != nil {
		return 0, err
	}
	published := 0
	for i := range due {
		test := &due[i]
		err := s.publish(ctx, test)
		switch {
		case err == nil:
			published++
		case errors.Is(err, util.ErrInvalidTest):
			logger.Log.Warn("scheduled placement test is incomplete, schedule cleared",
				zap.Uint("testId", test.ID), zap.Error(err))
			if _, err := s.Repo.SetScheduledPublish(ctx, test.ID, nil); err != nil {
				logger.Log.Error("failed to clear publish schedule", zap.Uint("testId", test.ID), zap.Error(err))
			}
		default:
			logger.Log.Error("scheduled publish failed", zap.Uint("testId", test.ID), zap.Error(err))
		}
	}
	return published, nil
}

// SetModuleAssignments replaces the courses recommended per level. Archived
// tests can no longer be changed.
func (s *PlacementAdminService) SetModuleAssignments(ctx context.Context, actor Actor, testID uint, req map[string][]ModuleRequest) error {
	test, err := s.findManaged(ctx, actor, testID)
	if err != nil {
		return err
	}
	if test.Status == model.TestStatusArchived {
		return util.ErrTestNotEditable
	}

	for name := range req {
		if _, err := placement.ParseLevel(name); err != nil {
			return fmt.Errorf("%w: %v", util.ErrInvalidTest, err)
		}
	}

	var rows []model.ModuleAssignment
	for _, level := range placement.Levels() {
		for i, m := range req[string(level)] {
			if m.CourseID == 0 {
				return fmt.Errorf("%w: %s module %d has no course id", util.ErrInvalidTest, level, i+1)
			}
			rows = append(rows, model.ModuleAssignment{
				Level:       string(level),
				Position:    i,
				CourseID:    m.CourseID,
				CourseTitle: strings.TrimSpace(m.CourseTitle),
			})
		}
	}
	if err := s.Repo.ReplaceModuleAssignments(ctx, testID, rows); err != nil {
		return fmt.Errorf("%w: %w", util.ErrPersistenceFailure, err)
	}
	s.Cache.Invalidate(ctx, testID)
	return nil
}

// GetModuleAssignments returns every level, with an empty list for levels
// that have no courses yet.
func (s *PlacementAdminService) GetModuleAssignments(ctx context.Context, actor Actor, testID uint) (map[string][]ModuleRequest, error) {
	if _, err := s.findManaged(ctx, actor, testID); err != nil {
		return nil, err
	}
	rows, err := s.Repo.ListModuleAssignments(ctx, testID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", util.ErrPersistenceFailure, err)
	}
	out := make(map[string][]ModuleRequest, len(placement.Levels()))
	for _, level := range placement.Levels() {
		out[string(level)] = []ModuleRequest{}
	}
	for _, row := range rows {
		out[row.Level] = append(out[row.Level], ModuleRequest{CourseID: row.CourseID, CourseTitle: row.CourseTitle})
	}
	return out, nil
}

func (s *PlacementAdminService) ListResults(ctx context.Context, actor Actor, testID uint, page, limit int) ([]model.PlacementResult, int64, error) {
	if _, err := s.findManaged(ctx, actor, testID); err != nil {
		return nil, 0, err
	}
	results, total, err := s.Repo.ListResults(ctx, testID, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %w", util.ErrPersistenceFailure, err)
	}
	return results, total, nil
}
