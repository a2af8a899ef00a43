package types

import (
  "time"

  "github.com/google/uuid"
  "gorm.io/gorm"
)

// Concept is immutable once created; sub-concept expansion creates new
// Concept rows rather than mutating existing ones.
type Concept struct {
  ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
  Name        string         `gorm:"column:name;not null;index" json:"name"`
  Description string         `gorm:"column:description" json:"description,omitempty"`
  TopicID     *uuid.UUID     `gorm:"type:uuid;index" json:"topic_id,omitempty"`
  DocumentID  *uuid.UUID     `gorm:"type:uuid;index" json:"document_id,omitempty"`
  CreatedAt   time.Time      `gorm:"not null;default:now()" json:"created_at"`
  UpdatedAt   time.Time      `gorm:"not null;default:now()" json:"updated_at"`
  DeletedAt   gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Concept) TableName() string { return "concept" }
