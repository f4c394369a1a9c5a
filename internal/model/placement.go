package model

import (
	"encoding/json"
	"time"
)

type TestStatus string

const (
	TestStatusDraft     TestStatus = "draft"
	TestStatusPublished TestStatus = "published"
	TestStatusArchived  TestStatus = "archived"
)

// swagger:model PlacementTest
type PlacementTest struct {
	BaseModel
	Title              string     `gorm:"size:255;not null" json:"title"`
	Description        string     `gorm:"type:text" json:"description"`
	Status             TestStatus `gorm:"size:20;index;default:'draft'" json:"status"`
	CreatorID          uint       `gorm:"index" json:"creator_id"`
	PublishedAt        *time.Time `json:"published_at,omitempty"`
	ArchivedAt         *time.Time `json:"archived_at,omitempty"`
	ScheduledPublishAt *time.Time `json:"scheduled_publish_at,omitempty"`
}

func (PlacementTest) TableName() string {
	return "placement_tests"
}

// swagger:model PlacementQuestion
type PlacementQuestion struct {
	BaseModel
	TestID   uint            `gorm:"index;not null" json:"test_id"`
	Position int             `gorm:"not null;default:0" json:"position"`
	Prompt   string          `gorm:"type:text;not null" json:"prompt"`
	Tier     string          `gorm:"size:20;not null" json:"tier"` // beginner, intermediate, advanced
	Choices  json.RawMessage `gorm:"type:json" json:"choices"`     // JSON: []Choice
}

func (PlacementQuestion) TableName() string {
	return "placement_questions"
}

type Choice struct {
	Text      string `json:"text"`
	IsCorrect bool   `json:"is_correct"`
}

// ModuleAssignment is one course a teacher recommends for a level of a test.
// swagger:model ModuleAssignment
type ModuleAssignment struct {
	BaseModel
	TestID      uint   `gorm:"index;not null" json:"test_id"`
	Level       string `gorm:"size:50;not null" json:"level"`
	Position    int    `gorm:"not null;default:0" json:"position"`
	CourseID    uint   `gorm:"not null" json:"course_id"`
	CourseTitle string `gorm:"size:255" json:"course_title"`
}

func (ModuleAssignment) TableName() string {
	return "placement_module_assignments"
}
