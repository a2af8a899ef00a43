package repos

import (
  "context"

  "github.com/google/uuid"
  "gorm.io/gorm"

  "github.com/RodAcevedoF/sagepoint-sub001/internal/logger"
  "github.com/RodAcevedoF/sagepoint-sub001/internal/types"
)

type ConceptRepo interface {
  Create(ctx context.Context, tx *gorm.DB, concepts []*types.Concept) ([]*types.Concept, error)
  GetByIDs(ctx context.Context, tx *gorm.DB, conceptIDs []uuid.UUID) ([]*types.Concept, error)
  GetByRoadmapID(ctx context.Context, tx *gorm.DB, roadmapID uuid.UUID) ([]*types.Concept, error)
}

type conceptRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewConceptRepo(db *gorm.DB, baseLog *logger.Logger) ConceptRepo {
  repoLog := baseLog.With("repo", "ConceptRepo")
  return &conceptRepo{db: db, log: repoLog}
}

func (r *conceptRepo) Create(ctx context.Context, tx *gorm.DB, concepts []*types.Concept) ([]*types.Concept, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  if len(concepts) == 0 {
    return []*types.Concept{}, nil
  }

  if err := transaction.WithContext(ctx).Create(&concepts).Error; err != nil {
    return nil, err
  }
  return concepts, nil
}

func (r *conceptRepo) GetByIDs(ctx context.Context, tx *gorm.DB, conceptIDs []uuid.UUID) ([]*types.Concept, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  var results []*types.Concept
  if len(conceptIDs) == 0 {
    return results, nil
  }

  if err := transaction.WithContext(ctx).
    Where("id IN ?", conceptIDs).
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}

func (r *conceptRepo) GetByRoadmapID(ctx context.Context, tx *gorm.DB, roadmapID uuid.UUID) ([]*types.Concept, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  var results []*types.Concept
  if roadmapID == uuid.Nil {
    return results, nil
  }

  if err := transaction.WithContext(ctx).
    Joins("JOIN roadmap_step ON roadmap_step.concept_id = concept.id").
    Where("roadmap_step.roadmap_id = ? AND roadmap_step.deleted_at IS NULL", roadmapID).
    Order("roadmap_step.step_order ASC").
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}
