package repos

import (
  "context"

  "github.com/google/uuid"
  "gorm.io/gorm"

  "github.com/RodAcevedoF/sagepoint-sub001/internal/logger"
  "github.com/RodAcevedoF/sagepoint-sub001/internal/types"
)

type ResourceRepo interface {
  Create(ctx context.Context, tx *gorm.DB, resources []*types.Resource) ([]*types.Resource, error)
  GetByRoadmapIDs(ctx context.Context, tx *gorm.DB, roadmapIDs []uuid.UUID) ([]*types.Resource, error)
  FullDeleteByRoadmapID(ctx context.Context, tx *gorm.DB, roadmapID uuid.UUID) error
  FullDeleteByConceptIDs(ctx context.Context, tx *gorm.DB, roadmapID uuid.UUID, conceptIDs []uuid.UUID) error
}

type resourceRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewResourceRepo(db *gorm.DB, baseLog *logger.Logger) ResourceRepo {
  repoLog := baseLog.With("repo", "ResourceRepo")
  return &resourceRepo{db: db, log: repoLog}
}

func (r *resourceRepo) Create(ctx context.Context, tx *gorm.DB, resources []*types.Resource) ([]*types.Resource, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  if len(resources) == 0 {
    return []*types.Resource{}, nil
  }

  if err := transaction.WithContext(ctx).Create(&resources).Error; err != nil {
    return nil, err
  }
  return resources, nil
}

func (r *resourceRepo) GetByRoadmapIDs(ctx context.Context, tx *gorm.DB, roadmapIDs []uuid.UUID) ([]*types.Resource, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  var results []*types.Resource
  if len(roadmapIDs) == 0 {
    return results, nil
  }

  if err := transaction.WithContext(ctx).
    Where("roadmap_id IN ?", roadmapIDs).
    Order("roadmap_id, concept_id, discovery_order ASC").
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}

func (r *resourceRepo) FullDeleteByRoadmapID(ctx context.Context, tx *gorm.DB, roadmapID uuid.UUID) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if roadmapID == uuid.Nil {
    return nil
  }

  return transaction.WithContext(ctx).
    Unscoped().
    Where("roadmap_id = ?", roadmapID).
    Delete(&types.Resource{}).Error
}

func (r *resourceRepo) FullDeleteByConceptIDs(ctx context.Context, tx *gorm.DB, roadmapID uuid.UUID, conceptIDs []uuid.UUID) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if roadmapID == uuid.Nil || len(conceptIDs) == 0 {
    return nil
  }

  return transaction.WithContext(ctx).
    Unscoped().
    Where("roadmap_id = ? AND concept_id IN ?", roadmapID, conceptIDs).
    Delete(&types.Resource{}).Error
}
