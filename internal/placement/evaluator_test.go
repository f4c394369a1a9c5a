package placement

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func choices() []Choice {
	return []Choice{{Text: "a", Correct: true}, {Text: "b"}, {Text: "c"}}
}

// buildTest lays questions out beginner first, then intermediate, then advanced.
func buildTest(beginner, intermediate, advanced int) Test {
	var qs []Question
	add := func(n int, tier Tier) {
		for i := 0; i < n; i++ {
			qs = append(qs, Question{ID: uint(len(qs) + 1), Prompt: "q", Tier: tier, Choices: choices()})
		}
	}
	add(beginner, TierBeginner)
	add(intermediate, TierIntermediate)
	add(advanced, TierAdvanced)
	return Test{ID: 1, Questions: qs}
}

// answerRange marks questions [from, from+n) correct.
func answerRange(a Answers, from, n int) Answers {
	if a == nil {
		a = Answers{}
	}
	for i := from; i < from+n; i++ {
		a[i] = 0
	}
	return a
}

func newEvaluator(t *testing.T) *Evaluator {
	t.Helper()
	e, err := NewEvaluator(nil)
	require.NoError(t, err)
	return e
}

func TestEvaluate_LevelBoundaries(t *testing.T) {
	tests := []struct {
		name         string
		beginner     int
		intermediate int
		want         Level
	}{
		{"advanced beginner at threshold", 6, 2, LevelAdvancedBeginner},
		{"intermediate beginner one short", 6, 1, LevelIntermediateBeginner},
		{"beginner gate failed", 5, 6, LevelBeginner},
		{"all correct", 7, 6, LevelAdvancedBeginner},
		{"nothing correct", 0, 0, LevelBeginner},
	}

	e := newEvaluator(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			test := buildTest(7, 6, 2)
			answers := answerRange(nil, 0, tt.beginner)
			answers = answerRange(answers, 7, tt.intermediate)

			ev := e.Evaluate(test, answers, false)
			assert.Equal(t, tt.want, ev.Level)
			assert.Equal(t, Tally{Correct: tt.beginner, Total: 7}, ev.Tallies.Get(TierBeginner))
			assert.Equal(t, Tally{Correct: tt.intermediate, Total: 6}, ev.Tallies.Get(TierIntermediate))
		})
	}
}

func TestEvaluate_BeginnerTotalBelowGate(t *testing.T) {
	e := newEvaluator(t)
	test := buildTest(6, 6, 0)
	answers := answerRange(answerRange(nil, 0, 6), 6, 6)

	ev := e.Evaluate(test, answers, false)
	assert.Equal(t, LevelBeginner, ev.Level, "six beginner questions cannot pass a gate of seven")
}

func TestEvaluate_TierTotalsSumToQuestionCount(t *testing.T) {
	e := newEvaluator(t)
	test := buildTest(7, 6, 4)

	for _, answers := range []Answers{nil, {}, {0: 0}, answerRange(nil, 0, 17)} {
		ev := e.Evaluate(test, answers, false)
		assert.Equal(t, 17, ev.TotalQuestions)
		sum := 0
		for _, tier := range Tiers() {
			sum += ev.Tallies.Get(tier).Total
		}
		assert.Equal(t, 17, sum)
	}
}

func TestEvaluate_UnansweredCountsTowardTotal(t *testing.T) {
	e := newEvaluator(t)
	test := buildTest(7, 0, 0)

	answers := answerRange(nil, 0, 7)
	delete(answers, 3)

	ev := e.Evaluate(test, answers, false)
	assert.Equal(t, Tally{Correct: 6, Total: 7}, ev.Tallies.Get(TierBeginner))
	assert.Equal(t, 6, ev.CorrectAnswers)
}

func TestEvaluate_InvalidChoiceIndexIsIncorrect(t *testing.T) {
	e := newEvaluator(t)
	test := buildTest(3, 0, 0)

	ev := e.Evaluate(test, Answers{0: -1, 1: 3, 2: 1, 9: 0}, false)
	assert.Equal(t, 0, ev.CorrectAnswers)
	assert.Equal(t, 3, ev.TotalQuestions)
}

func TestEvaluate_Skipped(t *testing.T) {
	e := newEvaluator(t)
	test := buildTest(7, 6, 2)
	test.Assignments = Assignments{LevelBeginner: {{CourseID: 5, Title: "Intro"}}}

	ev := e.Evaluate(test, answerRange(nil, 0, 15), true)
	assert.True(t, ev.Skipped)
	assert.Equal(t, LevelBeginner, ev.Level)
	assert.Equal(t, 0, ev.CorrectAnswers)
	assert.Equal(t, 15, ev.TotalQuestions)
	assert.Equal(t, Tally{Correct: 0, Total: 7}, ev.Tallies.Get(TierBeginner))
	assert.Equal(t, float64(0), ev.Percentage)
	require.NotNil(t, ev.RecommendedCourseID)
	assert.Equal(t, uint(5), *ev.RecommendedCourseID)
	assert.Contains(t, ev.Feedback, "skipped")
	assert.Contains(t, ev.Feedback, "Beginner level by default")
}

func TestPercentage(t *testing.T) {
	tests := []struct {
		correct, total int
		want           float64
	}{
		{7, 10, 70},
		{0, 0, 0},
		{0, 5, 0},
		{2, 3, 66.67},
		{1, 3, 33.33},
		{1, 8, 12.5},
		{1, 200, 0.5},
		{1, 400, 0.25},
		{1, 800, 0.13},
		{10, 10, 100},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Percentage(tt.correct, tt.total), "%d/%d", tt.correct, tt.total)
	}
}

func TestEvaluate_ModuleRecommendation(t *testing.T) {
	e := newEvaluator(t)
	test := buildTest(7, 6, 0)
	test.Assignments = Assignments{
		LevelBeginner: {{CourseID: 5, Title: "Intro"}, {CourseID: 6, Title: "Kana"}},
		LevelIntermediateBeginner: {},
	}

	ev := e.Evaluate(test, nil, false)
	require.Equal(t, LevelBeginner, ev.Level)
	require.NotNil(t, ev.RecommendedCourseID)
	assert.Equal(t, uint(5), *ev.RecommendedCourseID)
	assert.Contains(t, ev.Feedback, "Start with Intro - Kana.")

	ev = e.Evaluate(test, answerRange(nil, 0, 7), false)
	require.Equal(t, LevelIntermediateBeginner, ev.Level)
	assert.Nil(t, ev.RecommendedCourseID)
	assert.Contains(t, ev.Feedback, "No modules are assigned for this level yet.")
}

func TestEvaluate_FeedbackFormat(t *testing.T) {
	e := newEvaluator(t)
	test := buildTest(7, 6, 2)
	test.Assignments = Assignments{LevelAdvancedBeginner: {{CourseID: 9, Title: "Grammar I"}}}

	answers := answerRange(answerRange(nil, 0, 7), 7, 3)
	answers[13] = 0

	ev := e.Evaluate(test, answers, false)
	assert.Equal(t,
		"Beginner: 7/7, Intermediate: 3/6, Advanced: 1/2. Assigned level: Advanced Beginner. Start with Grammar I.",
		ev.Feedback)
	assert.Equal(t, 73.33, ev.Percentage)
}

func TestEvaluate_EmptyTest(t *testing.T) {
	e := newEvaluator(t)
	ev := e.Evaluate(Test{ID: 3}, Answers{0: 1}, false)
	assert.Equal(t, 0, ev.TotalQuestions)
	assert.Equal(t, float64(0), ev.Percentage)
	assert.Equal(t, LevelBeginner, ev.Level)
}

func TestRuleTable_CustomRules(t *testing.T) {
	rules := RuleTable{
		{Level: LevelIntermediateBeginner, Requires: []Requirement{{Tier: TierAdvanced, MinCorrect: 1, MinTotal: 1}}},
		{Level: LevelBeginner},
	}
	e, err := NewEvaluator(rules)
	require.NoError(t, err)

	test := buildTest(1, 0, 1)
	ev := e.Evaluate(test, Answers{1: 0}, false)
	assert.Equal(t, LevelIntermediateBeginner, ev.Level)
}

func TestRuleTable_Validate(t *testing.T) {
	assert.NoError(t, DefaultRules.Validate())
	assert.Error(t, RuleTable{}.Validate())
	assert.Error(t, RuleTable{{Level: "expert"}}.Validate())
	assert.Error(t, RuleTable{{Level: LevelBeginner, Requires: []Requirement{{Tier: Tier(7)}}}}.Validate())
	assert.Error(t, RuleTable{{Level: LevelBeginner, Requires: []Requirement{{Tier: TierBeginner, MinCorrect: -1}}}}.Validate())

	_, err := NewEvaluator(RuleTable{})
	assert.Error(t, err)
}

func TestQuestion_Validate(t *testing.T) {
	ok := Question{Prompt: "p", Tier: TierBeginner, Choices: choices()}
	assert.NoError(t, ok.Validate())

	noPrompt := ok
	noPrompt.Prompt = " "
	assert.Error(t, noPrompt.Validate())

	oneChoice := ok
	oneChoice.Choices = []Choice{{Text: "a", Correct: true}}
	assert.Error(t, oneChoice.Validate())

	noCorrect := ok
	noCorrect.Choices = []Choice{{Text: "a"}, {Text: "b"}}
	assert.Error(t, noCorrect.Validate())

	badTier := ok
	badTier.Tier = Tier(9)
	assert.Error(t, badTier.Validate())
}

func TestTallies_JSON(t *testing.T) {
	var ts Tallies
	ts.record(TierBeginner, true)
	ts.record(TierAdvanced, false)

	b, err := json.Marshal(ts)
	require.NoError(t, err)
	assert.JSONEq(t, `{"beginner":{"correct":1,"total":1},"intermediate":{"correct":0,"total":0},"advanced":{"correct":0,"total":1}}`, string(b))

	var back Tallies
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, ts, back)

	assert.Error(t, json.Unmarshal([]byte(`{"expert":{"correct":1,"total":1}}`), &back))
}

func TestParseTierAndLevel(t *testing.T) {
	tier, err := ParseTier(" Intermediate ")
	require.NoError(t, err)
	assert.Equal(t, TierIntermediate, tier)
	_, err = ParseTier("expert")
	assert.Error(t, err)

	level, err := ParseLevel("advanced_beginner")
	require.NoError(t, err)
	assert.Equal(t, "Advanced Beginner", level.Label())
	_, err = ParseLevel("advanced")
	assert.Error(t, err)
}
