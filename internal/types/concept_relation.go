package types

import (
  "time"

  "github.com/google/uuid"
)

const (
  RelationDependsOn = "DEPENDS_ON"
  RelationNextStep  = "NEXT_STEP"
  RelationRelatedTo = "RELATED_TO"
)

// ConceptRelation is a directed edge between two concepts. The same pair may
// carry multiple edges with different types; re-adding an existing
// (from, to, type) triple is a no-op.
type ConceptRelation struct {
  ID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
  FromConceptID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_concept_relation_triple" json:"from_concept_id"`
  ToConceptID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_concept_relation_triple" json:"to_concept_id"`
  Type          string    `gorm:"column:relation_type;not null;uniqueIndex:idx_concept_relation_triple" json:"type"` // DEPENDS_ON|NEXT_STEP|RELATED_TO
  CreatedAt     time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (ConceptRelation) TableName() string { return "concept_relation" }
