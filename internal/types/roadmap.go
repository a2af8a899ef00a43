package types

import (
  "time"

  "github.com/google/uuid"
  "gorm.io/datatypes"
  "gorm.io/gorm"
)

const (
  RoadmapStatusPending   = "pending"
  RoadmapStatusPopulated = "populated"
  RoadmapStatusFailed    = "failed"
)

type Roadmap struct {
  ID               uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
  UserID           uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
  DocumentID       *uuid.UUID     `gorm:"type:uuid;index" json:"document_id,omitempty"`
  Title            string         `gorm:"column:title;not null" json:"title"`
  Description      string         `gorm:"column:description" json:"description"`
  GenerationStatus string         `gorm:"column:generation_status;not null;default:'pending';index" json:"generation_status"` // pending|populated|failed
  FailureReason    string         `gorm:"column:failure_reason" json:"failure_reason,omitempty"`
  Metadata         datatypes.JSON `gorm:"column:metadata;type:jsonb" json:"metadata"`
  Steps            []*RoadmapStep `gorm:"-" json:"steps,omitempty"`
  CreatedAt        time.Time      `gorm:"not null;default:now();index" json:"created_at"`
  UpdatedAt        time.Time      `gorm:"not null;default:now()" json:"updated_at"`
  DeletedAt        gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Roadmap) TableName() string { return "roadmap" }
