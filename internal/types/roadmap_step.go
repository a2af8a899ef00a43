package types

import (
  "time"

  "github.com/google/uuid"
  "gorm.io/gorm"
)

const (
  DifficultyBeginner     = "beginner"
  DifficultyIntermediate = "intermediate"
  DifficultyAdvanced     = "advanced"
  DifficultyExpert       = "expert"
)

// RoadmapStep binds one concept to a position in a roadmap. Order values are
// 0-based and contiguous within a roadmap; population and expansion always
// rewrite the affected range in a single transaction.
type RoadmapStep struct {
  ID                 uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
  RoadmapID          uuid.UUID      `gorm:"type:uuid;not null;index:idx_roadmap_step_order" json:"roadmap_id"`
  ConceptID          uuid.UUID      `gorm:"type:uuid;not null;index" json:"concept_id"`
  Concept            *Concept       `gorm:"constraint:OnDelete:CASCADE;foreignKey:ConceptID;references:ID" json:"concept,omitempty"`
  Order              int            `gorm:"column:step_order;not null;index:idx_roadmap_step_order" json:"order"`
  LearningObjective  string         `gorm:"column:learning_objective" json:"learning_objective"`
  Difficulty         string         `gorm:"column:difficulty;not null;default:'beginner'" json:"difficulty"` // beginner|intermediate|advanced|expert
  EstimatedDuration  *int           `gorm:"column:estimated_duration_minutes" json:"estimated_duration_minutes,omitempty"`
  Rationale          string         `gorm:"column:rationale" json:"rationale,omitempty"`
  CreatedAt          time.Time      `gorm:"not null;default:now()" json:"created_at"`
  UpdatedAt          time.Time      `gorm:"not null;default:now()" json:"updated_at"`
  DeletedAt          gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (RoadmapStep) TableName() string { return "roadmap_step" }
