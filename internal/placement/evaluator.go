// Package placement scores placement tests per difficulty tier and turns the
// tallies into a recommended level and starting module.
package placement

import (
	"errors"
	"fmt"
	"strings"
)

type Choice struct {
	Text    string `json:"text"`
	Correct bool   `json:"is_correct"`
}

type Question struct {
	ID      uint     `json:"id"`
	Prompt  string   `json:"prompt"`
	Tier    Tier     `json:"tier"`
	Choices []Choice `json:"choices"`
}

// IsCorrect reports whether choice is a valid index pointing at a correct choice.
func (q Question) IsCorrect(choice int) bool {
	if choice < 0 || choice >= len(q.Choices) {
		return false
	}
	return q.Choices[choice].Correct
}

func (q Question) Validate() error {
	if strings.TrimSpace(q.Prompt) == "" {
		return errors.New("prompt is empty")
	}
	if !q.Tier.Valid() {
		return fmt.Errorf("invalid tier %d", int(q.Tier))
	}
	if len(q.Choices) < 2 {
		return errors.New("at least two choices are required")
	}
	for _, c := range q.Choices {
		if c.Correct {
			return nil
		}
	}
	return errors.New("no correct choice")
}

// Module is a course suggested for a level.
type Module struct {
	CourseID uint   `json:"course_id"`
	Title    string `json:"course_title"`
}

// Assignments maps a level to the ordered courses a teacher configured for it.
type Assignments map[Level][]Module

type Test struct {
	ID          uint
	Questions   []Question
	Assignments Assignments
}

// Answers maps a question index to the chosen choice index.
type Answers map[int]int

type Evaluation struct {
	Skipped             bool
	Tallies             Tallies
	TotalQuestions      int
	CorrectAnswers      int
	Percentage          float64
	Level               Level
	RecommendedCourseID *uint
	Feedback            string
}

type Evaluator struct {
	rules RuleTable
}

// NewEvaluator builds an evaluator over rules. A nil table uses DefaultRules.
func NewEvaluator(rules RuleTable) (*Evaluator, error) {
	if rules == nil {
		rules = DefaultRules
	}
	if err := rules.Validate(); err != nil {
		return nil, err
	}
	return &Evaluator{rules: rules}, nil
}

// Evaluate scores answers against test. Unanswered questions still count
// toward their tier's total so that skipping hard questions cannot raise
// the placement.
func (e *Evaluator) Evaluate(test Test, answers Answers, skipped bool) Evaluation {
	var ts Tallies
	for i, q := range test.Questions {
		if !q.Tier.Valid() {
			continue
		}
		correct := false
		if !skipped {
			if choice, ok := answers[i]; ok {
				correct = q.IsCorrect(choice)
			}
		}
		ts.record(q.Tier, correct)
	}

	level := LevelBeginner
	if !skipped {
		level = e.rules.Decide(ts)
	}

	modules := test.Assignments[level]
	ev := Evaluation{
		Skipped:        skipped,
		Tallies:        ts,
		TotalQuestions: ts.Total(),
		CorrectAnswers: ts.Correct(),
		Percentage:     Percentage(ts.Correct(), ts.Total()),
		Level:          level,
	}
	if len(modules) > 0 {
		id := modules[0].CourseID
		ev.RecommendedCourseID = &id
	}
	ev.Feedback = ComposeFeedback(ev, modules)
	return ev
}

// Percentage returns 100*correct/total rounded half-up to two decimals,
// or 0 when total is 0.
func Percentage(correct, total int) float64 {
	if total <= 0 {
		return 0
	}
	hundredths := (int64(correct)*20000 + int64(total)) / (2 * int64(total))
	return float64(hundredths) / 100
}
