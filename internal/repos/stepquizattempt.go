package repos

import (
  "context"
  "time"

  "github.com/google/uuid"
  "gorm.io/gorm"

  "github.com/RodAcevedoF/sagepoint-sub001/internal/logger"
  "github.com/RodAcevedoF/sagepoint-sub001/internal/types"
)

type StepQuizAttemptRepo interface {
  Create(ctx context.Context, tx *gorm.DB, attempts []*types.StepQuizAttempt) ([]*types.StepQuizAttempt, error)
  GetByID(ctx context.Context, tx *gorm.DB, attemptID uuid.UUID) (*types.StepQuizAttempt, error)
  UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error
}

type stepQuizAttemptRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewStepQuizAttemptRepo(db *gorm.DB, baseLog *logger.Logger) StepQuizAttemptRepo {
  repoLog := baseLog.With("repo", "StepQuizAttemptRepo")
  return &stepQuizAttemptRepo{db: db, log: repoLog}
}

func (r *stepQuizAttemptRepo) Create(ctx context.Context, tx *gorm.DB, attempts []*types.StepQuizAttempt) ([]*types.StepQuizAttempt, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  if len(attempts) == 0 {
    return []*types.StepQuizAttempt{}, nil
  }

  if err := transaction.WithContext(ctx).Create(&attempts).Error; err != nil {
    return nil, err
  }
  return attempts, nil
}

func (r *stepQuizAttemptRepo) GetByID(ctx context.Context, tx *gorm.DB, attemptID uuid.UUID) (*types.StepQuizAttempt, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if attemptID == uuid.Nil {
    return nil, nil
  }

  var attempt types.StepQuizAttempt
  err := transaction.WithContext(ctx).
    Where("id = ?", attemptID).
    Limit(1).
    Find(&attempt).Error
  if err != nil {
    return nil, err
  }
  if attempt.ID == uuid.Nil {
    return nil, nil
  }
  return &attempt, nil
}

func (r *stepQuizAttemptRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
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
    Model(&types.StepQuizAttempt{}).
    Where("id = ?", id).
    Updates(updates).Error
}
