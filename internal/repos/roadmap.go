package repos

import (
  "context"
  "time"

  "github.com/google/uuid"
  "gorm.io/gorm"

  "github.com/RodAcevedoF/sagepoint-sub001/internal/logger"
  "github.com/RodAcevedoF/sagepoint-sub001/internal/types"
)

type RoadmapRepo interface {
  Create(ctx context.Context, tx *gorm.DB, roadmaps []*types.Roadmap) ([]*types.Roadmap, error)
  GetByIDs(ctx context.Context, tx *gorm.DB, roadmapIDs []uuid.UUID) ([]*types.Roadmap, error)
  GetByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.Roadmap, error)
  GetByDocumentID(ctx context.Context, tx *gorm.DB, documentID uuid.UUID) (*types.Roadmap, error)
  UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error

  // StalePending returns roadmaps that have sat in pending longer than
  // maxAge. These are an operator signal, not something the pipeline
  // self-heals.
  StalePending(ctx context.Context, tx *gorm.DB, maxAge time.Duration) ([]*types.Roadmap, error)
}

type roadmapRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewRoadmapRepo(db *gorm.DB, baseLog *logger.Logger) RoadmapRepo {
  repoLog := baseLog.With("repo", "RoadmapRepo")
  return &roadmapRepo{db: db, log: repoLog}
}

func (r *roadmapRepo) Create(ctx context.Context, tx *gorm.DB, roadmaps []*types.Roadmap) ([]*types.Roadmap, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  if len(roadmaps) == 0 {
    return []*types.Roadmap{}, nil
  }

  if err := transaction.WithContext(ctx).Create(&roadmaps).Error; err != nil {
    return nil, err
  }
  return roadmaps, nil
}

func (r *roadmapRepo) GetByIDs(ctx context.Context, tx *gorm.DB, roadmapIDs []uuid.UUID) ([]*types.Roadmap, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  var results []*types.Roadmap
  if len(roadmapIDs) == 0 {
    return results, nil
  }

  if err := transaction.WithContext(ctx).
    Where("id IN ?", roadmapIDs).
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}

func (r *roadmapRepo) GetByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.Roadmap, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  var results []*types.Roadmap
  if userID == uuid.Nil {
    return results, nil
  }

  if err := transaction.WithContext(ctx).
    Where("user_id = ?", userID).
    Order("created_at DESC").
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}

func (r *roadmapRepo) GetByDocumentID(ctx context.Context, tx *gorm.DB, documentID uuid.UUID) (*types.Roadmap, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if documentID == uuid.Nil {
    return nil, nil
  }

  var roadmap types.Roadmap
  err := transaction.WithContext(ctx).
    Where("document_id = ?", documentID).
    Order("created_at DESC").
    Limit(1).
    Find(&roadmap).Error
  if err != nil {
    return nil, err
  }
  if roadmap.ID == uuid.Nil {
    return nil, nil
  }
  return &roadmap, nil
}

func (r *roadmapRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if id == uuid.Nil {
    return nil
  }
  if updates == nil {
    updates = map[string]interface{}{}
  }
  if _, ok := updates["updated_at"]; !ok {
    updates["updated_at"] = time.Now()
  }
  return transaction.WithContext(ctx).
    Model(&types.Roadmap{}).
    Where("id = ?", id).
    Updates(updates).Error
}

func (r *roadmapRepo) StalePending(ctx context.Context, tx *gorm.DB, maxAge time.Duration) ([]*types.Roadmap, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  cutoff := time.Now().Add(-maxAge)
  var results []*types.Roadmap
  if err := transaction.WithContext(ctx).
    Where("generation_status = ? AND created_at < ?", types.RoadmapStatusPending, cutoff).
    Order("created_at ASC").
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}
