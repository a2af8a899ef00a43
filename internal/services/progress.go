package services

import (
  "context"
  "fmt"
  "time"

  "github.com/google/uuid"
  "gorm.io/gorm"

  "github.com/RodAcevedoF/sagepoint-sub001/internal/logger"
  "github.com/RodAcevedoF/sagepoint-sub001/internal/repos"
  "github.com/RodAcevedoF/sagepoint-sub001/internal/types"
)

// RoadmapWithProgress is the roadmap-list shape: the roadmap, its derived
// progress summary, and its resources.
type RoadmapWithProgress struct {
  Roadmap      *types.Roadmap                 `json:"roadmap"`
  Summary      *types.RoadmapProgressSummary  `json:"summary"`
  StepProgress map[uuid.UUID]string           `json:"step_progress,omitempty"` // conceptID -> status
  Resources    []*types.Resource              `json:"resources,omitempty"`
}

type ProgressService interface {
  UpdateStepProgress(ctx context.Context, userID uuid.UUID, roadmapID uuid.UUID, conceptID uuid.UUID, status string) (*types.UserRoadmapProgress, error)

  // GetUserRoadmaps returns every roadmap of the user with summaries and
  // resources attached. Aggregation is batched: one summary query and one
  // step-count query cover all roadmaps regardless of how many there are.
  GetUserRoadmaps(ctx context.Context, userID uuid.UUID) ([]*RoadmapWithProgress, error)

  GetUserRoadmapByID(ctx context.Context, userID uuid.UUID, roadmapID uuid.UUID) (*RoadmapWithProgress, error)
}

type progressService struct {
  db           *gorm.DB
  log          *logger.Logger
  roadmapRepo  repos.RoadmapRepo
  stepRepo     repos.RoadmapStepRepo
  progressRepo repos.ProgressRepo
  resourceRepo repos.ResourceRepo
}

func NewProgressService(
  db *gorm.DB,
  baseLog *logger.Logger,
  roadmapRepo repos.RoadmapRepo,
  stepRepo repos.RoadmapStepRepo,
  progressRepo repos.ProgressRepo,
  resourceRepo repos.ResourceRepo,
) ProgressService {
  return &progressService{
    db:           db,
    log:          baseLog.With("service", "ProgressService"),
    roadmapRepo:  roadmapRepo,
    stepRepo:     stepRepo,
    progressRepo: progressRepo,
    resourceRepo: resourceRepo,
  }
}

func validProgressStatus(status string) bool {
  switch status {
  case types.ProgressNotStarted, types.ProgressInProgress, types.ProgressCompleted, types.ProgressSkipped:
    return true
  }
  return false
}

func (ps *progressService) UpdateStepProgress(ctx context.Context, userID uuid.UUID, roadmapID uuid.UUID, conceptID uuid.UUID, status string) (*types.UserRoadmapProgress, error) {
  if !validProgressStatus(status) {
    return nil, fmt.Errorf("%w: unknown progress status %q", ErrValidation, status)
  }

  roadmaps, err := ps.roadmapRepo.GetByIDs(ctx, nil, []uuid.UUID{roadmapID})
  if err != nil {
    return nil, fmt.Errorf("load roadmap: %w", err)
  }
  if len(roadmaps) == 0 || roadmaps[0] == nil || roadmaps[0].UserID != userID {
    return nil, fmt.Errorf("%w: roadmap %s", ErrNotFound, roadmapID)
  }

  step, err := ps.stepRepo.GetByRoadmapAndConcept(ctx, nil, roadmapID, conceptID)
  if err != nil {
    return nil, fmt.Errorf("load step: %w", err)
  }
  if step == nil {
    return nil, fmt.Errorf("%w: concept %s is not a step of roadmap %s", ErrNotFound, conceptID, roadmapID)
  }

  now := time.Now()
  var completedAt *time.Time
  if status == types.ProgressCompleted {
    completedAt = &now
  }
  row := &types.UserRoadmapProgress{
    ID:          uuid.New(),
    UserID:      userID,
    RoadmapID:   roadmapID,
    ConceptID:   conceptID,
    Status:      status,
    CompletedAt: completedAt,
    CreatedAt:   now,
    UpdatedAt:   now,
  }
  saved, err := ps.progressRepo.Upsert(ctx, nil, row)
  if err != nil {
    return nil, fmt.Errorf("upsert progress: %w", err)
  }
  ps.log.Debug("Step progress updated", "roadmapID", roadmapID, "conceptID", conceptID, "status", status)
  return saved, nil
}

func (ps *progressService) GetUserRoadmaps(ctx context.Context, userID uuid.UUID) ([]*RoadmapWithProgress, error) {
  roadmaps, err := ps.roadmapRepo.GetByUserID(ctx, nil, userID)
  if err != nil {
    return nil, fmt.Errorf("load roadmaps: %w", err)
  }
  if len(roadmaps) == 0 {
    return []*RoadmapWithProgress{}, nil
  }

  ids := make([]uuid.UUID, 0, len(roadmaps))
  for _, r := range roadmaps {
    ids = append(ids, r.ID)
  }

  counts, err := ps.stepRepo.CountByRoadmapIDs(ctx, nil, ids)
  if err != nil {
    return nil, fmt.Errorf("count steps: %w", err)
  }
  summaries, err := ps.progressRepo.SummarizeByRoadmapIDs(ctx, nil, userID, ids)
  if err != nil {
    return nil, fmt.Errorf("summarize progress: %w", err)
  }
  resources, err := ps.resourceRepo.GetByRoadmapIDs(ctx, nil, ids)
  if err != nil {
    return nil, fmt.Errorf("load resources: %w", err)
  }
  resourcesByRoadmap := make(map[uuid.UUID][]*types.Resource, len(ids))
  for _, res := range resources {
    resourcesByRoadmap[res.RoadmapID] = append(resourcesByRoadmap[res.RoadmapID], res)
  }

  out := make([]*RoadmapWithProgress, 0, len(roadmaps))
  for _, r := range roadmaps {
    out = append(out, &RoadmapWithProgress{
      Roadmap:   r,
      Summary:   buildSummary(counts[r.ID], summaries[r.ID]),
      Resources: resourcesByRoadmap[r.ID],
    })
  }
  return out, nil
}

func (ps *progressService) GetUserRoadmapByID(ctx context.Context, userID uuid.UUID, roadmapID uuid.UUID) (*RoadmapWithProgress, error) {
  roadmaps, err := ps.roadmapRepo.GetByIDs(ctx, nil, []uuid.UUID{roadmapID})
  if err != nil {
    return nil, fmt.Errorf("load roadmap: %w", err)
  }
  if len(roadmaps) == 0 || roadmaps[0] == nil || roadmaps[0].UserID != userID {
    return nil, fmt.Errorf("%w: roadmap %s", ErrNotFound, roadmapID)
  }
  roadmap := roadmaps[0]

  steps, err := ps.stepRepo.GetByRoadmapIDs(ctx, nil, []uuid.UUID{roadmapID})
  if err != nil {
    return nil, fmt.Errorf("load steps: %w", err)
  }
  if roadmap.GenerationStatus == types.RoadmapStatusPopulated {
    roadmap.Steps = steps
  }

  rows, err := ps.progressRepo.GetByUserAndRoadmap(ctx, nil, userID, roadmapID)
  if err != nil {
    return nil, fmt.Errorf("load progress: %w", err)
  }
  stepProgress := make(map[uuid.UUID]string, len(rows))
  summary := &repos.ProgressSummaryRow{RoadmapID: roadmapID}
  for _, row := range rows {
    stepProgress[row.ConceptID] = row.Status
    switch row.Status {
    case types.ProgressCompleted:
      summary.Completed++
    case types.ProgressInProgress:
      summary.InProgress++
    case types.ProgressSkipped:
      summary.Skipped++
    }
  }

  resources, err := ps.resourceRepo.GetByRoadmapIDs(ctx, nil, []uuid.UUID{roadmapID})
  if err != nil {
    return nil, fmt.Errorf("load resources: %w", err)
  }

  return &RoadmapWithProgress{
    Roadmap:      roadmap,
    Summary:      buildSummary(len(steps), summary),
    StepProgress: stepProgress,
    Resources:    resources,
  }, nil
}

// buildSummary derives the summary from a step count and aggregated status
// counts. A user with no progress rows gets an all-zero summary sized by the
// roadmap's step count.
func buildSummary(totalSteps int, row *repos.ProgressSummaryRow) *types.RoadmapProgressSummary {
  s := &types.RoadmapProgressSummary{TotalSteps: totalSteps}
  if row != nil {
    s.CompletedSteps = row.Completed
    s.InProgressSteps = row.InProgress
    s.SkippedSteps = row.Skipped
  }
  if totalSteps > 0 {
    s.ProgressPercentage = float64(s.CompletedSteps) / float64(totalSteps) * 100.0
  }
  return s
}
