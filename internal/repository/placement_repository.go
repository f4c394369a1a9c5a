package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"placement_backend/internal/model"
	"placement_backend/internal/util"
	"placement_backend/pkg/tracing"

	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

type PlacementRepository struct {
	DB *gorm.DB
}

func NewPlacementRepository(db *gorm.DB) *PlacementRepository {
	return &PlacementRepository{DB: db}
}

// PlacementSnapshot is everything needed to evaluate a submission.
type PlacementSnapshot struct {
	Test        model.PlacementTest       `json:"test"`
	Questions   []model.PlacementQuestion `json:"questions"`
	Assignments []model.ModuleAssignment  `json:"assignments"`
}

func (r *PlacementRepository) CreateTest(ctx context.Context, test *model.PlacementTest, questions []model.PlacementQuestion) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(test).Error; err != nil {
			return err
		}
		return createQuestions(tx, test.ID, questions)
	})
}

func createQuestions(tx *gorm.DB, testID uint, questions []model.PlacementQuestion) error {
	if len(questions) == 0 {
		return nil
	}
	for i := range questions {
		questions[i].TestID = testID
	}
	return tx.Create(&questions).Error
}

// UpdateDraft saves test and replaces its questions, but only while the test
// is still a draft.
func (r *PlacementRepository) UpdateDraft(ctx context.Context, test *model.PlacementTest, questions []model.PlacementQuestion) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.PlacementTest{}).
			Where("id = ? AND status = ?", test.ID, model.TestStatusDraft).
			Updates(map[string]interface{}{
				"title":       test.Title,
				"description": test.Description,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return util.ErrTestNotEditable
		}
		if err := tx.Unscoped().Where("test_id = ?", test.ID).Delete(&model.PlacementQuestion{}).Error; err != nil {
			return err
		}
		return createQuestions(tx, test.ID, questions)
	})
}

func (r *PlacementRepository) FindTestByID(ctx context.Context, id uint) (*model.PlacementTest, error) {
	var test model.PlacementTest
	err := r.DB.WithContext(ctx).First(&test, id).Error
	return &test, err
}

type PlacementTestListRow struct {
	model.PlacementTest
	QuestionCount int `json:"question_count"`
	ResultCount   int `json:"result_count"`
}

func (r *PlacementRepository) ListTests(ctx context.Context, creatorID uint, page, limit int) ([]PlacementTestListRow, int64, error) {
	db := r.DB.WithContext(ctx)

	var total int64
	countQuery := db.Model(&model.PlacementTest{})
	if creatorID > 0 {
		countQuery = countQuery.Where("creator_id = ?", creatorID)
	}
	if err := countQuery.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query := db.Table("placement_tests t").
		Select("t.*, " +
			"(SELECT COUNT(*) FROM placement_questions q WHERE q.test_id = t.id AND q.deleted_at IS NULL) as question_count, " +
			"(SELECT COUNT(*) FROM placement_results pr WHERE pr.test_id = t.id) as result_count").
		Where("t.deleted_at IS NULL")
	if creatorID > 0 {
		query = query.Where("t.creator_id = ?", creatorID)
	}

	var rows []PlacementTestListRow
	offset := (page - 1) * limit
	err := query.Order("t.created_at desc, t.id desc").Offset(offset).Limit(limit).Scan(&rows).Error
	return rows, total, err
}

func (r *PlacementRepository) ListQuestions(ctx context.Context, testID uint) ([]model.PlacementQuestion, error) {
	var qs []model.PlacementQuestion
	err := r.DB.WithContext(ctx).Where("test_id = ?", testID).Order("position asc, id asc").Find(&qs).Error
	return qs, err
}

// TransitionStatus moves a test from one status to another with a
// conditional update, so concurrent transitions cannot both apply. It reports
// whether the row changed.
func (r *PlacementRepository) TransitionStatus(ctx context.Context, id uint, from, to model.TestStatus, at time.Time) (bool, error) {
	updates := map[string]interface{}{"status": to}
	switch to {
	case model.TestStatusPublished:
		updates["published_at"] = at
		updates["scheduled_publish_at"] = nil
	case model.TestStatusArchived:
		updates["archived_at"] = at
	}
	res := r.DB.WithContext(ctx).Model(&model.PlacementTest{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	return res.RowsAffected > 0, res.Error
}

func (r *PlacementRepository) SetScheduledPublish(ctx context.Context, id uint, at *time.Time) (bool, error) {
	res := r.DB.WithContext(ctx).Model(&model.PlacementTest{}).
		Where("id = ? AND status = ?", id, model.TestStatusDraft).
		Update("scheduled_publish_at", at)
	return res.RowsAffected > 0, res.Error
}

// ListDueScheduled returns drafts whose scheduled publish time has passed.
func (r *PlacementRepository) ListDueScheduled(ctx context.Context, now time.Time) ([]model.PlacementTest, error) {
	var tests []model.PlacementTest
	err := r.DB.WithContext(ctx).
		Where("scheduled_publish_at IS NOT NULL AND scheduled_publish_at <= ? AND status = ?", now, model.TestStatusDraft).
		Order("scheduled_publish_at asc").
		Find(&tests).Error
	return tests, err
}

func (r *PlacementRepository) ReplaceModuleAssignments(ctx context.Context, testID uint, rows []model.ModuleAssignment) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("test_id = ?", testID).Delete(&model.ModuleAssignment{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		for i := range rows {
			rows[i].TestID = testID
		}
		return tx.Create(&rows).Error
	})
}

func (r *PlacementRepository) ListModuleAssignments(ctx context.Context, testID uint) ([]model.ModuleAssignment, error) {
	var rows []model.ModuleAssignment
	err := r.DB.WithContext(ctx).Where("test_id = ?", testID).Order("level asc, position asc, id asc").Find(&rows).Error
	return rows, err
}

// LoadPublishedSnapshot returns gorm.ErrRecordNotFound unless the test exists
// and is published.
func (r *PlacementRepository) LoadPublishedSnapshot(ctx context.Context, testID uint) (*PlacementSnapshot, error) {
	ctx, span := tracing.StartSpan(ctx, "PlacementRepository.LoadPublishedSnapshot", attribute.Int64("test.id", int64(testID)))
	var err error
	defer func() { tracing.EndSpan(span, err) }()

	var snap PlacementSnapshot
	err = r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND status = ?", testID, model.TestStatusPublished).First(&snap.Test).Error; err != nil {
			return err
		}
		if err := tx.Where("test_id = ?", testID).Order("position asc, id asc").Find(&snap.Questions).Error; err != nil {
			return err
		}
		return tx.Where("test_id = ?", testID).Order("level asc, position asc, id asc").Find(&snap.Assignments).Error
	})
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// IsPublished reports whether the test is currently open for submissions.
func (r *PlacementRepository) IsPublished(ctx context.Context, testID uint) (bool, error) {
	return isPublished(r.DB.WithContext(ctx), testID)
}

func isPublished(db *gorm.DB, testID uint) (bool, error) {
	var count int64
	err := db.Model(&model.PlacementTest{}).
		Where("id = ? AND status = ?", testID, model.TestStatusPublished).
		Count(&count).Error
	return count > 0, err
}

// CreateResult stores result unless one already exists for the same student
// and test. The test must still be published when the row is written. The
// check and the insert share a transaction and the unique index on
// (user_id, test_id) rejects whichever concurrent writer loses.
func (r *PlacementRepository) CreateResult(ctx context.Context, result *model.PlacementResult) error {
	ctx, span := tracing.StartSpan(ctx, "PlacementRepository.CreateResult",
		attribute.Int64("user.id", int64(result.UserID)),
		attribute.Int64("test.id", int64(result.TestID)))

	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		published, err := isPublished(tx, result.TestID)
		if err != nil {
			return err
		}
		if !published {
			return util.ErrTestNotFound
		}

		var count int64
		if err := tx.Model(&model.PlacementResult{}).
			Where("user_id = ? AND test_id = ?", result.UserID, result.TestID).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return util.ErrDuplicateSubmission
		}
		return tx.Create(result).Error
	})

	switch {
	case err == nil, errors.Is(err, util.ErrTestNotFound):
	case errors.Is(err, util.ErrDuplicateSubmission), IsDuplicateKey(err):
		err = util.ErrDuplicateSubmission
	default:
		err = fmt.Errorf("%w: %w", util.ErrPersistenceFailure, err)
	}
	tracing.EndSpan(span, err)
	return err
}

// IsDuplicateKey detects unique constraint violations. gorm translates them
// when TranslateError is on; the message checks cover drivers that do not.
func IsDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "Duplicate entry") ||
		strings.Contains(msg, "duplicate key value")
}

func (r *PlacementRepository) FindResult(ctx context.Context, userID, testID uint) (*model.PlacementResult, error) {
	var res model.PlacementResult
	err := r.DB.WithContext(ctx).Where("user_id = ? AND test_id = ?", userID, testID).First(&res).Error
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (r *PlacementRepository) ListResults(ctx context.Context, testID uint, page, limit int) ([]model.PlacementResult, int64, error) {
	var results []model.PlacementResult
	var total int64

	query := r.DB.WithContext(ctx).Model(&model.PlacementResult{}).Where("test_id = ?", testID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	err := query.Order("completed_at desc, id desc").Offset(offset).Limit(limit).Find(&results).Error
	return results, total, err
}
