package model

import (
	"encoding/json"
	"time"
)

// PlacementResult is the permanent record of one student's attempt at one
// test. It has no soft delete and is never updated.
// swagger:model PlacementResult
type PlacementResult struct {
	ID                  uint            `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID              uint            `gorm:"not null;uniqueIndex:uq_placement_results_user_test,priority:1" json:"user_id"`
	TestID              uint            `gorm:"not null;uniqueIndex:uq_placement_results_user_test,priority:2;index" json:"test_id"`
	SessionToken        string          `gorm:"size:64" json:"session_token"`
	Answers             json.RawMessage `gorm:"type:json" json:"answers"`
	TotalQuestions      int             `gorm:"not null;default:0" json:"total_questions"`
	CorrectAnswers      int             `gorm:"not null;default:0" json:"correct_answers"`
	PercentageScore     float64         `gorm:"type:decimal(5,2);not null;default:0" json:"percentage_score"`
	TierScores          json.RawMessage `gorm:"type:json" json:"tier_scores"`
	RecommendedLevel    string          `gorm:"size:50;not null" json:"recommended_level"`
	RecommendedCourseID *uint           `json:"recommended_course_id"`
	Feedback            string          `gorm:"type:text" json:"feedback"`
	Skipped             bool            `gorm:"default:false" json:"skipped"`
	CompletedAt         time.Time       `json:"completed_at"`
	CreatedAt           time.Time       `json:"created_at"`
}

func (PlacementResult) TableName() string {
	return "placement_results"
}
