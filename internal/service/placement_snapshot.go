package service

import (
	"encoding/json"
	"fmt"

	"placement_backend/internal/model"
	"placement_backend/internal/placement"
	"placement_backend/internal/repository"
	"placement_backend/pkg/logger"

	"go.uber.org/zap"
)

func decodeChoices(raw json.RawMessage) ([]model.Choice, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var choices []model.Choice
	if err := json.Unmarshal(raw, &choices); err != nil {
		return nil, err
	}
	return choices, nil
}

// toQuestion converts a stored row into the evaluator's form. An unknown tier
// yields an invalid Tier, which the evaluator leaves out of every tally.
func toQuestion(q model.PlacementQuestion) (placement.Question, error) {
	out := placement.Question{ID: q.ID, Prompt: q.Prompt, Tier: placement.Tier(-1)}
	tier, err := placement.ParseTier(q.Tier)
	if err != nil {
		return out, err
	}
	out.Tier = tier

	choices, err := decodeChoices(q.Choices)
	if err != nil {
		return out, fmt.Errorf("question %d choices: %w", q.ID, err)
	}
	out.Choices = make([]placement.Choice, len(choices))
	for i, c := range choices {
		out.Choices[i] = placement.Choice{Text: c.Text, Correct: c.IsCorrect}
	}
	return out, nil
}

func toAssignments(rows []model.ModuleAssignment) placement.Assignments {
	out := make(placement.Assignments)
	for _, row := range rows {
		level, err := placement.ParseLevel(row.Level)
		if err != nil {
			logger.Log.Warn("ignoring module assignment with unknown level",
				zap.Uint("testId", row.TestID), zap.String("level", row.Level))
			continue
		}
		out[level] = append(out[level], placement.Module{CourseID: row.CourseID, Title: row.CourseTitle})
	}
	return out
}

// toPlacementTest keeps question order intact because answers are keyed by
// question index.
func toPlacementTest(snap *repository.PlacementSnapshot) placement.Test {
	test := placement.Test{
		ID:          snap.Test.ID,
		Questions:   make([]placement.Question, 0, len(snap.Questions)),
		Assignments: toAssignments(snap.Assignments),
	}
	for _, row := range snap.Questions {
		q, err := toQuestion(row)
		if err != nil {
			logger.Log.Warn("placement question not scorable",
				zap.Uint("testId", row.TestID), zap.Uint("questionId", row.ID), zap.Error(err))
		}
		test.Questions = append(test.Questions, q)
	}
	return test
}
