package repos

import (
  "context"

  "github.com/google/uuid"
  "gorm.io/gorm"
  "gorm.io/gorm/clause"

  "github.com/RodAcevedoF/sagepoint-sub001/internal/logger"
  "github.com/RodAcevedoF/sagepoint-sub001/internal/types"
)

type ConceptRelationRepo interface {
  // CreateIgnoreDuplicates inserts relations, silently skipping any
  // (from, to, type) triple that already exists.
  CreateIgnoreDuplicates(ctx context.Context, tx *gorm.DB, relations []*types.ConceptRelation) error
  GetByConceptIDs(ctx context.Context, tx *gorm.DB, conceptIDs []uuid.UUID) ([]*types.ConceptRelation, error)
}

type conceptRelationRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewConceptRelationRepo(db *gorm.DB, baseLog *logger.Logger) ConceptRelationRepo {
  repoLog := baseLog.With("repo", "ConceptRelationRepo")
  return &conceptRelationRepo{db: db, log: repoLog}
}

func (r *conceptRelationRepo) CreateIgnoreDuplicates(ctx context.Context, tx *gorm.DB, relations []*types.ConceptRelation) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  if len(relations) == 0 {
    return nil
  }

  return transaction.WithContext(ctx).
    Clauses(clause.OnConflict{
      Columns:   []clause.Column{{Name: "from_concept_id"}, {Name: "to_concept_id"}, {Name: "relation_type"}},
      DoNothing: true,
    }).
    Create(&relations).Error
}

func (r *conceptRelationRepo) GetByConceptIDs(ctx context.Context, tx *gorm.DB, conceptIDs []uuid.UUID) ([]*types.ConceptRelation, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  var results []*types.ConceptRelation
  if len(conceptIDs) == 0 {
    return results, nil
  }

  if err := transaction.WithContext(ctx).
    Where("from_concept_id IN ? OR to_concept_id IN ?", conceptIDs, conceptIDs).
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}
