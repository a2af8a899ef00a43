package repos

import (
  "context"
  "time"

  "github.com/google/uuid"
  "gorm.io/gorm"
  "gorm.io/gorm/clause"

  "github.com/RodAcevedoF/sagepoint-sub001/internal/logger"
  "github.com/RodAcevedoF/sagepoint-sub001/internal/types"
)

// ProgressSummaryRow is one row of the batched progress aggregation: status
// counts per roadmap for a single user, computed in one GROUP BY query no
// matter how many roadmaps are asked about.
type ProgressSummaryRow struct {
  RoadmapID  uuid.UUID
  Completed  int
  InProgress int
  Skipped    int
}

type ProgressRepo interface {
  Upsert(ctx context.Context, tx *gorm.DB, row *types.UserRoadmapProgress) (*types.UserRoadmapProgress, error)
  GetByUserAndRoadmap(ctx context.Context, tx *gorm.DB, userID, roadmapID uuid.UUID) ([]*types.UserRoadmapProgress, error)
  SummarizeByRoadmapIDs(ctx context.Context, tx *gorm.DB, userID uuid.UUID, roadmapIDs []uuid.UUID) (map[uuid.UUID]*ProgressSummaryRow, error)
}

type progressRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewProgressRepo(db *gorm.DB, baseLog *logger.Logger) ProgressRepo {
  repoLog := baseLog.With("repo", "ProgressRepo")
  return &progressRepo{db: db, log: repoLog}
}

func (r *progressRepo) Upsert(ctx context.Context, tx *gorm.DB, row *types.UserRoadmapProgress) (*types.UserRoadmapProgress, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if row == nil {
    return nil, nil
  }

  row.UpdatedAt = time.Now()
  if err := transaction.WithContext(ctx).
    Clauses(clause.OnConflict{
      Columns: []clause.Column{{Name: "user_id"}, {Name: "roadmap_id"}, {Name: "concept_id"}},
      DoUpdates: clause.AssignmentColumns([]string{"status", "completed_at", "updated_at"}),
    }).
    Create(row).Error; err != nil {
    return nil, err
  }
  return row, nil
}

func (r *progressRepo) GetByUserAndRoadmap(ctx context.Context, tx *gorm.DB, userID, roadmapID uuid.UUID) ([]*types.UserRoadmapProgress, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  var results []*types.UserRoadmapProgress
  if userID == uuid.Nil || roadmapID == uuid.Nil {
    return results, nil
  }

  if err := transaction.WithContext(ctx).
    Where("user_id = ? AND roadmap_id = ?", userID, roadmapID).
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}

func (r *progressRepo) SummarizeByRoadmapIDs(ctx context.Context, tx *gorm.DB, userID uuid.UUID, roadmapIDs []uuid.UUID) (map[uuid.UUID]*ProgressSummaryRow, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  out := map[uuid.UUID]*ProgressSummaryRow{}
  if userID == uuid.Nil || len(roadmapIDs) == 0 {
    return out, nil
  }

  type row struct {
    RoadmapID  uuid.UUID
    Completed  int
    InProgress int
    Skipped    int
  }
  var rows []row
  if err := transaction.WithContext(ctx).
    Model(&types.UserRoadmapProgress{}).
    Select(`roadmap_id,
      SUM(CASE WHEN status = ? THEN 1 ELSE 0 END) AS completed,
      SUM(CASE WHEN status = ? THEN 1 ELSE 0 END) AS in_progress,
      SUM(CASE WHEN status = ? THEN 1 ELSE 0 END) AS skipped`,
      types.ProgressCompleted, types.ProgressInProgress, types.ProgressSkipped).
    Where("user_id = ? AND roadmap_id IN ?", userID, roadmapIDs).
    Group("roadmap_id").
    Scan(&rows).Error; err != nil {
    return nil, err
  }
  for _, rr := range rows {
    out[rr.RoadmapID] = &ProgressSummaryRow{
      RoadmapID:  rr.RoadmapID,
      Completed:  rr.Completed,
      InProgress: rr.InProgress,
      Skipped:    rr.Skipped,
    }
  }
  return out, nil
}
