package repos

import (
  "context"
  "time"

  "github.com/google/uuid"
  "gorm.io/gorm"

  "github.com/RodAcevedoF/sagepoint-sub001/internal/logger"
  "github.com/RodAcevedoF/sagepoint-sub001/internal/types"
)

type RoadmapStepRepo interface {
  Create(ctx context.Context, tx *gorm.DB, steps []*types.RoadmapStep) ([]*types.RoadmapStep, error)
  GetByRoadmapIDs(ctx context.Context, tx *gorm.DB, roadmapIDs []uuid.UUID) ([]*types.RoadmapStep, error)
  GetByRoadmapAndConcept(ctx context.Context, tx *gorm.DB, roadmapID, conceptID uuid.UUID) (*types.RoadmapStep, error)
  CountByRoadmapIDs(ctx context.Context, tx *gorm.DB, roadmapIDs []uuid.UUID) (map[uuid.UUID]int, error)

  // ShiftOrdersFrom moves every step of the roadmap with step_order >= from
  // up by delta. Callers run it together with the insert of the new steps in
  // one transaction so readers never observe duplicate orders.
  ShiftOrdersFrom(ctx context.Context, tx *gorm.DB, roadmapID uuid.UUID, from int, delta int) error
  FullDeleteByRoadmapID(ctx context.Context, tx *gorm.DB, roadmapID uuid.UUID) error
}

type roadmapStepRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewRoadmapStepRepo(db *gorm.DB, baseLog *logger.Logger) RoadmapStepRepo {
  repoLog := baseLog.With("repo", "RoadmapStepRepo")
  return &roadmapStepRepo{db: db, log: repoLog}
}

func (r *roadmapStepRepo) Create(ctx context.Context, tx *gorm.DB, steps []*types.RoadmapStep) ([]*types.RoadmapStep, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  if len(steps) == 0 {
    return []*types.RoadmapStep{}, nil
  }

  if err := transaction.WithContext(ctx).Create(&steps).Error; err != nil {
    return nil, err
  }
  return steps, nil
}

func (r *roadmapStepRepo) GetByRoadmapIDs(ctx context.Context, tx *gorm.DB, roadmapIDs []uuid.UUID) ([]*types.RoadmapStep, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  var results []*types.RoadmapStep
  if len(roadmapIDs) == 0 {
    return results, nil
  }

  if err := transaction.WithContext(ctx).
    Preload("Concept").
    Where("roadmap_id IN ?", roadmapIDs).
    Order("roadmap_id, step_order ASC").
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}

func (r *roadmapStepRepo) GetByRoadmapAndConcept(ctx context.Context, tx *gorm.DB, roadmapID, conceptID uuid.UUID) (*types.RoadmapStep, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if roadmapID == uuid.Nil || conceptID == uuid.Nil {
    return nil, nil
  }

  var step types.RoadmapStep
  err := transaction.WithContext(ctx).
    Preload("Concept").
    Where("roadmap_id = ? AND concept_id = ?", roadmapID, conceptID).
    Limit(1).
    Find(&step).Error
  if err != nil {
    return nil, err
  }
  if step.ID == uuid.Nil {
    return nil, nil
  }
  return &step, nil
}

func (r *roadmapStepRepo) CountByRoadmapIDs(ctx context.Context, tx *gorm.DB, roadmapIDs []uuid.UUID) (map[uuid.UUID]int, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  counts := map[uuid.UUID]int{}
  if len(roadmapIDs) == 0 {
    return counts, nil
  }

  type row struct {
    RoadmapID uuid.UUID
    N         int
  }
  var rows []row
  if err := transaction.WithContext(ctx).
    Model(&types.RoadmapStep{}).
    Select("roadmap_id, COUNT(*) AS n").
    Where("roadmap_id IN ?", roadmapIDs).
    Group("roadmap_id").
    Scan(&rows).Error; err != nil {
    return nil, err
  }
  for _, rr := range rows {
    counts[rr.RoadmapID] = rr.N
  }
  return counts, nil
}

func (r *roadmapStepRepo) ShiftOrdersFrom(ctx context.Context, tx *gorm.DB, roadmapID uuid.UUID, from int, delta int) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if roadmapID == uuid.Nil || delta == 0 {
    return nil
  }

  return transaction.WithContext(ctx).
    Model(&types.RoadmapStep{}).
    Where("roadmap_id = ? AND step_order >= ?", roadmapID, from).
    Updates(map[string]interface{}{
      "step_order": gorm.Expr("step_order + ?", delta),
      "updated_at": time.Now(),
    }).Error
}

func (r *roadmapStepRepo) FullDeleteByRoadmapID(ctx context.Context, tx *gorm.DB, roadmapID uuid.UUID) error {
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
    Delete(&types.RoadmapStep{}).Error
}
