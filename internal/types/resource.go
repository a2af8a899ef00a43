package types

import (
  "time"

  "github.com/google/uuid"
  "gorm.io/gorm"
)

// Resource rows are owned by (concept, roadmap) and replaced as a set on
// refresh rather than diffed.
type Resource struct {
  ID                uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
  ConceptID         uuid.UUID      `gorm:"type:uuid;not null;index:idx_resource_concept_roadmap" json:"concept_id"`
  RoadmapID         uuid.UUID      `gorm:"type:uuid;not null;index:idx_resource_concept_roadmap;index" json:"roadmap_id"`
  Title             string         `gorm:"column:title;not null" json:"title"`
  URL               string         `gorm:"column:url;not null" json:"url"`
  Type              string         `gorm:"column:resource_type;not null" json:"type"` // article|video|course|book|documentation|other
  Description       string         `gorm:"column:description" json:"description,omitempty"`
  Provider          string         `gorm:"column:provider" json:"provider,omitempty"`
  EstimatedDuration *int           `gorm:"column:estimated_duration_minutes" json:"estimated_duration_minutes,omitempty"`
  Difficulty        string         `gorm:"column:difficulty" json:"difficulty,omitempty"`
  Order             int            `gorm:"column:discovery_order;not null;default:0" json:"order"`
  CreatedAt         time.Time      `gorm:"not null;default:now()" json:"created_at"`
  UpdatedAt         time.Time      `gorm:"not null;default:now()" json:"updated_at"`
  DeletedAt         gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Resource) TableName() string { return "resource" }
