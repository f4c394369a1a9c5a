package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"placement_backend/internal/model"
	"placement_backend/internal/placement"
	"placement_backend/internal/repository"
	"placement_backend/internal/util"
	"placement_backend/pkg/logger"
	"placement_backend/pkg/monitoring"
	"placement_backend/pkg/tracing"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type PlacementService struct {
	Repo      *repository.PlacementRepository
	Cache     *repository.PlacementCache
	Evaluator *placement.Evaluator
	Now       func() time.Time
}

func NewPlacementService(repo *repository.PlacementRepository, cache *repository.PlacementCache, evaluator *placement.Evaluator) *PlacementService {
	return &PlacementService{
		Repo:      repo,
		Cache:     cache,
		Evaluator: evaluator,
		Now:       time.Now,
	}
}

type SubmitRequest struct {
	TestID       uint        `json:"test_id"`
	SessionToken string      `json:"session_token"`
	Answers      map[int]int `json:"answers"`
	Skipped      bool        `json:"skipped"`
}

// SubmitResponse is returned for a fresh submission and when a student
// looks up a stored result.
type SubmitResponse struct {
	ResultID              uint              `json:"result_id"`
	TestID                uint              `json:"test_id"`
	SessionToken          string            `json:"session_token"`
	RecommendedLevel      string            `json:"recommended_level"`
	RecommendedLevelLabel string            `json:"recommended_level_label"`
	RecommendedCourseID   *uint             `json:"recommended_course_id"`
	PercentageScore       float64           `json:"percentage_score"`
	CorrectAnswers        int               `json:"correct_answers"`
	TotalQuestions        int               `json:"total_questions"`
	TierScores            placement.Tallies `json:"tier_scores"`
	Skipped               bool              `json:"skipped"`
	Feedback              string            `json:"feedback"`
	CompletedAt           time.Time         `json:"completed_at"`
}

type StudentChoice struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

type StudentQuestion struct {
	Index   int             `json:"index"`
	ID      uint            `json:"id"`
	Prompt  string          `json:"prompt"`
	Tier    string          `json:"tier"`
	Choices []StudentChoice `json:"choices"`
}

// StudentTestView is a published test without any correctness flags.
type StudentTestView struct {
	ID          uint              `json:"id"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Questions   []StudentQuestion `json:"questions"`
}

// loadSnapshot serves questions and assignments from the cache when it can,
// but always confirms against the database that the test is still published.
// A snapshot cached by a reader racing an archive is dropped here.
func (s *PlacementService) loadSnapshot(ctx context.Context, testID uint) (*repository.PlacementSnapshot, error) {
	snap, ok := s.Cache.Get(ctx, testID)
	if !ok {
		var err error
		snap, err = s.Repo.LoadPublishedSnapshot(ctx, testID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrTestNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("%w: load test %d: %w", util.ErrPersistenceFailure, testID, err)
		}
		s.Cache.Set(ctx, snap)
	}

	published, err := s.Repo.IsPublished(ctx, testID)
	if err != nil {
		return nil, fmt.Errorf("%w: load test %d: %w", util.ErrPersistenceFailure, testID, err)
	}
	if !published {
		s.Cache.Invalidate(ctx, testID)
		return nil, util.ErrTestNotFound
	}
	return snap, nil
}

// Submit evaluates a student's answers and stores the result. Each student
// gets exactly one result per test; later attempts fail with
// util.ErrDuplicateSubmission and leave the first result untouched.
func (s *PlacementService) Submit(ctx context.Context, studentID uint, req SubmitRequest) (resp *SubmitResponse, err error) {
	ctx, span := tracing.StartSpan(ctx, "PlacementService.Submit",
		attribute.Int64("user.id", int64(studentID)),
		attribute.Int64("test.id", int64(req.TestID)),
		attribute.Bool("placement.skipped", req.Skipped))
	defer func() {
		outcome, level := submissionOutcome(err), ""
		if resp != nil {
			level = resp.RecommendedLevel
		}
		monitoring.ObserveSubmission(outcome, level)
		tracing.EndSpan(span, err)
	}()

	if studentID == 0 {
		return nil, fmt.Errorf("%w: missing student", util.ErrInvalidSubmission)
	}
	if req.TestID == 0 {
		return nil, fmt.Errorf("%w: missing test id", util.ErrInvalidSubmission)
	}

	snap, err := s.loadSnapshot(ctx, req.TestID)
	if err != nil {
		return nil, err
	}

	ev := s.Evaluator.Evaluate(toPlacementTest(snap), placement.Answers(req.Answers), req.Skipped)

	token := req.SessionToken
	if token == "" {
		token = uuid.NewString()
	}
	answers := req.Answers
	if answers == nil || req.Skipped {
		answers = map[int]int{}
	}
	answersJSON, err := json.Marshal(answers)
	if err != nil {
		return nil, fmt.Errorf("%w: encode answers: %w", util.ErrPersistenceFailure, err)
	}
	tiersJSON, err := json.Marshal(ev.Tallies)
	if err != nil {
		return nil, fmt.Errorf("%w: encode tier scores: %w", util.ErrPersistenceFailure, err)
	}

	result := &model.PlacementResult{
		UserID:              studentID,
		TestID:              req.TestID,
		SessionToken:        token,
		Answers:             answersJSON,
		TotalQuestions:      ev.TotalQuestions,
		CorrectAnswers:      ev.CorrectAnswers,
		PercentageScore:     ev.Percentage,
		TierScores:          tiersJSON,
		RecommendedLevel:    string(ev.Level),
		RecommendedCourseID: ev.RecommendedCourseID,
		Feedback:            ev.Feedback,
		Skipped:             ev.Skipped,
		CompletedAt:         s.Now(),
	}
	if err = s.Repo.CreateResult(ctx, result); err != nil {
		switch {
		case errors.Is(err, util.ErrDuplicateSubmission):
			logger.Log.Info("duplicate placement submission rejected",
				zap.Uint("userId", studentID), zap.Uint("testId", req.TestID))
		case errors.Is(err, util.ErrTestNotFound):
			s.Cache.Invalidate(ctx, req.TestID)
			logger.Log.Info("placement test closed before the result was stored",
				zap.Uint("userId", studentID), zap.Uint("testId", req.TestID))
		default:
			logger.Log.Error("failed to store placement result",
				zap.Uint("userId", studentID), zap.Uint("testId", req.TestID), zap.Error(err))
		}
		return nil, err
	}

	logger.Log.Info("placement test evaluated",
		zap.Uint("userId", studentID),
		zap.Uint("testId", req.TestID),
		zap.Uint("resultId", result.ID),
		zap.String("level", result.RecommendedLevel),
		zap.Float64("percentage", result.PercentageScore),
		zap.Bool("skipped", result.Skipped))

	return toSubmitResponse(result, ev.Tallies), nil
}

func submissionOutcome(err error) string {
	switch {
	case err == nil:
		return "stored"
	case errors.Is(err, util.ErrDuplicateSubmission):
		return "duplicate"
	case errors.Is(err, util.ErrTestNotFound):
		return "not_found"
	case errors.Is(err, util.ErrInvalidSubmission):
		return "invalid"
	default:
		return "error"
	}
}

func toSubmitResponse(r *model.PlacementResult, tallies placement.Tallies) *SubmitResponse {
	label := r.RecommendedLevel
	if level, err := placement.ParseLevel(r.RecommendedLevel); err == nil {
		label = level.Label()
	}
	return &SubmitResponse{
		ResultID:              r.ID,
		TestID:                r.TestID,
		SessionToken:          r.SessionToken,
		RecommendedLevel:      r.RecommendedLevel,
		RecommendedLevelLabel: label,
		RecommendedCourseID:   r.RecommendedCourseID,
		PercentageScore:       r.PercentageScore,
		CorrectAnswers:        r.CorrectAnswers,
		TotalQuestions:        r.TotalQuestions,
		TierScores:            tallies,
		Skipped:               r.Skipped,
		Feedback:              r.Feedback,
		CompletedAt:           r.CompletedAt,
	}
}

// GetStudentTest returns a published test ready to be answered.
func (s *PlacementService) GetStudentTest(ctx context.Context, testID uint) (*StudentTestView, error) {
	if testID == 0 {
		return nil, util.ErrTestNotFound
	}
	snap, err := s.loadSnapshot(ctx, testID)
	if err != nil {
		return nil, err
	}

	view := &StudentTestView{
		ID:          snap.Test.ID,
		Title:       snap.Test.Title,
		Description: snap.Test.Description,
		Questions:   make([]StudentQuestion, 0, len(snap.Questions)),
	}
	for i, q := range snap.Questions {
		choices, err := decodeChoices(q.Choices)
		if err != nil {
			logger.Log.Warn("placement question has unreadable choices",
				zap.Uint("questionId", q.ID), zap.Error(err))
		}
		sq := StudentQuestion{
			Index:   i,
			ID:      q.ID,
			Prompt:  q.Prompt,
			Tier:    q.Tier,
			Choices: make([]StudentChoice, len(choices)),
		}
		for j, c := range choices {
			sq.Choices[j] = StudentChoice{Index: j, Text: c.Text}
		}
		view.Questions = append(view.Questions, sq)
	}
	return view, nil
}

func (s *PlacementService) GetMyResult(ctx context.Context, studentID, testID uint) (*SubmitResponse, error) {
	result, err := s.Repo.FindResult(ctx, studentID, testID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrResultNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: load result: %w", util.ErrPersistenceFailure, err)
	}

	var tallies placement.Tallies
	if len(result.TierScores) > 0 {
		if err := json.Unmarshal(result.TierScores, &tallies); err != nil {
			logger.Log.Warn("stored tier scores unreadable", zap.Uint("resultId", result.ID), zap.Error(err))
		}
	}
	return toSubmitResponse(result, tallies), nil
}
