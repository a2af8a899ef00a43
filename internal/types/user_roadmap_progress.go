package types

import (
  "time"

  "github.com/google/uuid"
  "gorm.io/datatypes"
  "gorm.io/gorm"
)

const (
  ProgressNotStarted = "NOT_STARTED"
  ProgressInProgress = "IN_PROGRESS"
  ProgressCompleted  = "COMPLETED"
  ProgressSkipped    = "SKIPPED"
)

// UserRoadmapProgress rows are created lazily on the first status write for a
// (user, roadmap, concept) triple; absence means NOT_STARTED.
type UserRoadmapProgress struct {
  ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
  UserID      uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_user_roadmap_concept" json:"user_id"`
  RoadmapID   uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_user_roadmap_concept;index" json:"roadmap_id"`
  ConceptID   uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_user_roadmap_concept" json:"concept_id"`
  Status      string         `gorm:"column:status;not null;default:'NOT_STARTED'" json:"status"` // NOT_STARTED|IN_PROGRESS|COMPLETED|SKIPPED
  CompletedAt *time.Time     `gorm:"column:completed_at" json:"completed_at,omitempty"`
  Metadata    datatypes.JSON `gorm:"column:metadata;type:jsonb" json:"metadata"`
  CreatedAt   time.Time      `gorm:"not null;default:now()" json:"created_at"`
  UpdatedAt   time.Time      `gorm:"not null;default:now()" json:"updated_at"`
  DeletedAt   gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (UserRoadmapProgress) TableName() string { return "user_roadmap_progress" }

// RoadmapProgressSummary is derived, never stored.
type RoadmapProgressSummary struct {
  TotalSteps         int     `json:"total_steps"`
  CompletedSteps     int     `json:"completed_steps"`
  InProgressSteps    int     `json:"in_progress_steps"`
  SkippedSteps       int     `json:"skipped_steps"`
  ProgressPercentage float64 `json:"progress_percentage"`
}
