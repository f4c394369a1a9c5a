package service

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"placement_backend/internal/model"
	"placement_backend/internal/util"
	"placement_backend/pkg/monitoring"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var layout = [3]int{7, 6, 2}

func TestSubmitAdvancedBeginner(t *testing.T) {
	f := newPlacementFixture(t)
	test := f.publishedTest(t)

	resp, err := f.student.Submit(t.Context(), 42, SubmitRequest{
		TestID:       test.ID,
		SessionToken: "sess-1",
		Answers:      answersFor(layout, [3]int{6, 2, 0}),
	})
	require.NoError(t, err)

	assert.Equal(t, "advanced_beginner", resp.RecommendedLevel)
	assert.Equal(t, "Advanced Beginner", resp.RecommendedLevelLabel)
	require.NotNil(t, resp.RecommendedCourseID)
	assert.Equal(t, uint(301), *resp.RecommendedCourseID)
	assert.Equal(t, 8, resp.CorrectAnswers)
	assert.Equal(t, 15, resp.TotalQuestions)
	assert.Equal(t, 53.33, resp.PercentageScore)
	assert.Equal(t, "sess-1", resp.SessionToken)
	assert.Equal(t, fixedNow, resp.CompletedAt)
	assert.Equal(t,
		"Beginner: 6/7, Intermediate: 2/6, Advanced: 0/2. Assigned level: Advanced Beginner. Start with Keigo.",
		resp.Feedback)

	stored, err := f.repo.FindResult(t.Context(), 42, test.ID)
	require.NoError(t, err)
	assert.Equal(t, resp.ResultID, stored.ID)
	assert.Equal(t, "advanced_beginner", stored.RecommendedLevel)
	assert.Equal(t, 53.33, stored.PercentageScore)

	var tiers map[string]map[string]int
	decodeJSON(t, stored.TierScores, &tiers)
	assert.Equal(t, map[string]int{"correct": 2, "total": 6}, tiers["intermediate"])
}

func TestSubmitIntermediateBeginnerWithoutModules(t *testing.T) {
	f := newPlacementFixture(t)
	test := f.publishedTest(t)

	resp, err := f.student.Submit(t.Context(), 42, SubmitRequest{
		TestID:  test.ID,
		Answers: answersFor(layout, [3]int{7, 1, 2}),
	})
	require.NoError(t, err)

	assert.Equal(t, "intermediate_beginner", resp.RecommendedLevel)
	assert.Nil(t, resp.RecommendedCourseID)
	assert.True(t, strings.HasSuffix(resp.Feedback, "No modules are assigned for this level yet."))
	assert.Len(t, resp.SessionToken, 36, "a session token is generated when none is sent")
}

func TestSubmitBeginnerRecommendsFirstModule(t *testing.T) {
	f := newPlacementFixture(t)
	test := f.publishedTest(t)

	// answering only some questions: the rest still count toward the totals
	resp, err := f.student.Submit(t.Context(), 42, SubmitRequest{
		TestID:  test.ID,
		Answers: map[int]int{0: 0, 1: 0, 2: 0, 3: 0, 4: 0},
	})
	require.NoError(t, err)

	assert.Equal(t, "beginner", resp.RecommendedLevel)
	require.NotNil(t, resp.RecommendedCourseID)
	assert.Equal(t, uint(101), *resp.RecommendedCourseID)
	assert.Equal(t, 15, resp.TotalQuestions)
	assert.Equal(t, 5, resp.CorrectAnswers)
	assert.Contains(t, resp.Feedback, "Start with Intro - Kana.")
}

func TestSubmitSkipped(t *testing.T) {
	f := newPlacementFixture(t)
	test := f.publishedTest(t)

	resp, err := f.student.Submit(t.Context(), 42, SubmitRequest{
		TestID:  test.ID,
		Answers: answersFor(layout, [3]int{7, 6, 2}),
		Skipped: true,
	})
	require.NoError(t, err)

	assert.True(t, resp.Skipped)
	assert.Equal(t, "beginner", resp.RecommendedLevel)
	assert.Equal(t, 0, resp.CorrectAnswers)
	assert.Equal(t, 15, resp.TotalQuestions)
	assert.Equal(t, 0.0, resp.PercentageScore)
	assert.True(t, strings.HasPrefix(resp.Feedback, "Placement test skipped."))

	stored, err := f.repo.FindResult(t.Context(), 42, test.ID)
	require.NoError(t, err)
	assert.True(t, stored.Skipped)
	assert.JSONEq(t, `{}`, string(stored.Answers))
}

func TestSubmitDuplicateKeepsFirstResult(t *testing.T) {
	f := newPlacementFixture(t)
	test := f.publishedTest(t)
	ctx := t.Context()

	before := testutil.ToFloat64(monitoring.PlacementSubmissions.WithLabelValues("duplicate"))

	first, err := f.student.Submit(ctx, 42, SubmitRequest{TestID: test.ID, Answers: answersFor(layout, [3]int{1, 0, 0})})
	require.NoError(t, err)

	_, err = f.student.Submit(ctx, 42, SubmitRequest{TestID: test.ID, Answers: answersFor(layout, [3]int{7, 6, 2})})
	assert.ErrorIs(t, err, util.ErrDuplicateSubmission)

	stored, err := f.repo.FindResult(ctx, 42, test.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ResultID, stored.ID)
	assert.Equal(t, 1, stored.CorrectAnswers)

	after := testutil.ToFloat64(monitoring.PlacementSubmissions.WithLabelValues("duplicate"))
	assert.Equal(t, before+1, after)
}

func TestSubmitRejectsInvalidRequests(t *testing.T) {
	f := newPlacementFixture(t)
	test := f.publishedTest(t)
	ctx := t.Context()

	_, err := f.student.Submit(ctx, 0, SubmitRequest{TestID: test.ID})
	assert.ErrorIs(t, err, util.ErrInvalidSubmission)

	_, err = f.student.Submit(ctx, 42, SubmitRequest{})
	assert.ErrorIs(t, err, util.ErrInvalidSubmission)

	_, err = f.student.Submit(ctx, 42, SubmitRequest{TestID: 9999})
	assert.ErrorIs(t, err, util.ErrTestNotFound)

	var count int64
	require.NoError(t, f.repo.DB.Model(&model.PlacementResult{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestSubmitUnpublishedTest(t *testing.T) {
	f := newPlacementFixture(t)
	ctx := t.Context()

	draft, err := f.admin.CreateTest(ctx, teacher, TestRequest{Title: "Draft", Questions: tieredQuestions(1, 0, 0)})
	require.NoError(t, err)
	_, err = f.student.Submit(ctx, 42, SubmitRequest{TestID: draft.ID})
	assert.ErrorIs(t, err, util.ErrTestNotFound)

	archived := f.publishedTest(t)
	require.NoError(t, f.admin.ArchiveTest(ctx, teacher, archived.ID))
	_, err = f.student.Submit(ctx, 42, SubmitRequest{TestID: archived.ID})
	assert.ErrorIs(t, err, util.ErrTestNotFound)
}

func TestSubmitIgnoresOutOfRangeAnswers(t *testing.T) {
	f := newPlacementFixture(t)
	test := f.publishedTest(t)

	resp, err := f.student.Submit(t.Context(), 42, SubmitRequest{
		TestID:  test.ID,
		Answers: map[int]int{0: 0, 1: 9, 2: -1, 99: 0},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.CorrectAnswers)
	assert.Equal(t, 15, resp.TotalQuestions)
}

func TestGetStudentTestHidesAnswers(t *testing.T) {
	f := newPlacementFixture(t)
	test := f.publishedTest(t)

	view, err := f.student.GetStudentTest(t.Context(), test.ID)
	require.NoError(t, err)
	require.Len(t, view.Questions, 15)
	assert.Equal(t, 0, view.Questions[0].Index)
	assert.Equal(t, "beginner", view.Questions[0].Tier)
	assert.Equal(t, "advanced", view.Questions[14].Tier)
	require.Len(t, view.Questions[0].Choices, 3)
	assert.Equal(t, "right", view.Questions[0].Choices[0].Text)

	raw, err := json.Marshal(view)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "is_correct")
}

func TestSnapshotCacheAndInvalidation(t *testing.T) {
	f := newPlacementFixture(t)
	test := f.publishedTest(t)
	ctx := t.Context()

	_, err := f.student.GetStudentTest(ctx, test.ID)
	require.NoError(t, err)
	assert.True(t, f.redis.Exists(fmt.Sprintf("placement:snapshot:%d", test.ID)))

	// a cache hit does not see changes made behind the service's back
	require.NoError(t, f.repo.DB.Model(&model.PlacementTest{}).Where("id = ?", test.ID).Update("title", "Changed").Error)
	view, err := f.student.GetStudentTest(ctx, test.ID)
	require.NoError(t, err)
	assert.Equal(t, "Japanese placement", view.Title)

	// assignment changes drop the snapshot
	require.NoError(t, f.admin.SetModuleAssignments(ctx, teacher, test.ID, map[string][]ModuleRequest{
		"intermediate_beginner": {{CourseID: 201, CourseTitle: "Grammar"}},
	}))
	assert.False(t, f.redis.Exists(fmt.Sprintf("placement:snapshot:%d", test.ID)))

	resp, err := f.student.Submit(ctx, 42, SubmitRequest{TestID: test.ID, Answers: answersFor(layout, [3]int{7, 0, 0})})
	require.NoError(t, err)
	require.NotNil(t, resp.RecommendedCourseID)
	assert.Equal(t, uint(201), *resp.RecommendedCourseID)

	require.NoError(t, f.admin.ArchiveTest(ctx, teacher, test.ID))
	_, err = f.student.GetStudentTest(ctx, test.ID)
	assert.ErrorIs(t, err, util.ErrTestNotFound)
}

func TestArchiveRacingSnapshotWrite(t *testing.T) {
	f := newPlacementFixture(t)
	test := f.publishedTest(t)
	ctx := t.Context()

	// a reader loads the snapshot, the test is archived and invalidated, and
	// only then does the reader's cache write land
	snap, err := f.repo.LoadPublishedSnapshot(ctx, test.ID)
	require.NoError(t, err)
	require.NoError(t, f.admin.ArchiveTest(ctx, teacher, test.ID))
	f.cache.Set(ctx, snap)

	_, err = f.student.GetStudentTest(ctx, test.ID)
	assert.ErrorIs(t, err, util.ErrTestNotFound)
	assert.False(t, f.redis.Exists(fmt.Sprintf("placement:snapshot:%d", test.ID)))

	f.cache.Set(ctx, snap)
	resp, err := f.student.Submit(ctx, 99, SubmitRequest{TestID: test.ID, Answers: answersFor(layout, [3]int{7, 2, 0})})
	assert.ErrorIs(t, err, util.ErrTestNotFound)
	assert.Nil(t, resp)

	var count int64
	require.NoError(t, f.repo.DB.Model(&model.PlacementResult{}).Where("test_id = ?", test.ID).Count(&count).Error)
	assert.Zero(t, count)
}

func TestGetMyResult(t *testing.T) {
	f := newPlacementFixture(t)
	test := f.publishedTest(t)
	ctx := t.Context()

	_, err := f.student.GetMyResult(ctx, 42, test.ID)
	assert.ErrorIs(t, err, util.ErrResultNotFound)

	submitted, err := f.student.Submit(ctx, 42, SubmitRequest{TestID: test.ID, Answers: answersFor(layout, [3]int{6, 2, 1})})
	require.NoError(t, err)

	got, err := f.student.GetMyResult(ctx, 42, test.ID)
	require.NoError(t, err)
	assert.Equal(t, submitted.ResultID, got.ResultID)
	assert.Equal(t, submitted.Feedback, got.Feedback)
	assert.Equal(t, submitted.TierScores, got.TierScores)
	assert.Equal(t, "Advanced Beginner", got.RecommendedLevelLabel)
}
