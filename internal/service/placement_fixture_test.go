package service

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"placement_backend/internal/model"
	"placement_backend/internal/placement"
	"placement_backend/internal/repository"
	"placement_backend/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

type placementFixture struct {
	repo    *repository.PlacementRepository
	cache   *repository.PlacementCache
	redis   *miniredis.Miniredis
	student *PlacementService
	admin   *PlacementAdminService
}

func newPlacementFixture(t *testing.T) *placementFixture {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	repo := repository.NewPlacementRepository(testutil.NewTestDB(t))
	cache := repository.NewPlacementCache(rdb, time.Hour)
	evaluator, err := placement.NewEvaluator(nil)
	require.NoError(t, err)

	f := &placementFixture{
		repo:    repo,
		cache:   cache,
		redis:   mr,
		student: NewPlacementService(repo, cache, evaluator),
		admin:   NewPlacementAdminService(repo, cache),
	}
	f.student.Now = func() time.Time { return fixedNow }
	f.admin.Now = func() time.Time { return fixedNow }
	return f
}

// Choice 0 is always the correct one.
func tieredQuestions(beginner, intermediate, advanced int) []QuestionRequest {
	var qs []QuestionRequest
	add := func(tier string, n int) {
		for i := 0; i < n; i++ {
			qs = append(qs, QuestionRequest{
				Prompt: fmt.Sprintf("%s question %d", tier, i+1),
				Tier:   tier,
				Choices: []model.Choice{
					{Text: "right", IsCorrect: true},
					{Text: "wrong"},
					{Text: "also wrong"},
				},
			})
		}
	}
	add("beginner", beginner)
	add("intermediate", intermediate)
	add("advanced", advanced)
	return qs
}

var teacher = Actor{UserID: 7, Role: model.Teacher}

// publishedTest creates and publishes a 7/6/2 test with beginner and
// advanced_beginner modules.
func (f *placementFixture) publishedTest(t *testing.T) *model.PlacementTest {
	t.Helper()
	ctx := t.Context()
	test, err := f.admin.CreateTest(ctx, teacher, TestRequest{
		Title:     "Japanese placement",
		Questions: tieredQuestions(7, 6, 2),
	})
	require.NoError(t, err)
	require.NoError(t, f.admin.SetModuleAssignments(ctx, teacher, test.ID, map[string][]ModuleRequest{
		"beginner": {
			{CourseID: 101, CourseTitle: "Intro"},
			{CourseID: 102, CourseTitle: "Kana"},
		},
		"advanced_beginner": {
			{CourseID: 301, CourseTitle: "Keigo"},
		},
	}))
	require.NoError(t, f.admin.PublishTest(ctx, teacher, test.ID))
	return test
}

// answersFor answers the first n questions of each tier correctly and the
// rest wrongly, for a test laid out by tieredQuestions.
func answersFor(layout [3]int, correct [3]int) map[int]int {
	answers := map[int]int{}
	idx := 0
	for tier, n := range layout {
		for i := 0; i < n; i++ {
			if i < correct[tier] {
				answers[idx] = 0
			} else {
				answers[idx] = 1
			}
			idx++
		}
	}
	return answers
}

func decodeJSON(t *testing.T, raw json.RawMessage, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(raw, v))
}
