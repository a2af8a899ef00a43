package types

import (
  "time"

  "github.com/google/uuid"
  "gorm.io/datatypes"
  "gorm.io/gorm"
)

// StepQuizAttempt stores the generated question list including the hidden
// answer key. Questions are written once at generation time; grading reads
// the stored key and never calls the generation service again.
type StepQuizAttempt struct {
  ID             uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
  UserID         uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
  RoadmapID      uuid.UUID      `gorm:"type:uuid;not null;index" json:"roadmap_id"`
  ConceptID      uuid.UUID      `gorm:"type:uuid;not null;index" json:"concept_id"`
  Questions      datatypes.JSON `gorm:"column:questions;type:jsonb;not null" json:"-"`
  Answers        datatypes.JSON `gorm:"column:answers;type:jsonb" json:"answers,omitempty"`
  Score          float64        `gorm:"column:score;not null;default:0" json:"score"`
  TotalQuestions int            `gorm:"column:total_questions;not null;default:0" json:"total_questions"`
  CorrectAnswers int            `gorm:"column:correct_answers;not null;default:0" json:"correct_answers"`
  Passed         bool           `gorm:"column:passed;not null;default:false" json:"passed"`
  CompletedAt    *time.Time     `gorm:"column:completed_at" json:"completed_at,omitempty"`
  CreatedAt      time.Time      `gorm:"not null;default:now()" json:"created_at"`
  UpdatedAt      time.Time      `gorm:"not null;default:now()" json:"updated_at"`
  DeletedAt      gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (StepQuizAttempt) TableName() string { return "step_quiz_attempt" }

// QuizQuestion is the stored shape inside StepQuizAttempt.Questions.
type QuizQuestion struct {
  Prompt       string   `json:"prompt"`
  Options      []string `json:"options"`
  Type         string   `json:"type"` // mcq
  Difficulty   string   `json:"difficulty"`
  CorrectIndex int      `json:"correct_index"`
  Explanation  string   `json:"explanation,omitempty"`
}

// SanitizedQuizQuestion is what callers see: no correctness marker.
type SanitizedQuizQuestion struct {
  Prompt     string   `json:"prompt"`
  Options    []string `json:"options"`
  Type       string   `json:"type"`
  Difficulty string   `json:"difficulty"`
}
