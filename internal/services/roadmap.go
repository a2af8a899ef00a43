package services

import (
  "context"
  "fmt"
  "hash/fnv"
  "time"

  "github.com/google/uuid"
  "gorm.io/gorm"

  "github.com/RodAcevedoF/sagepoint-sub001/internal/graph"
  "github.com/RodAcevedoF/sagepoint-sub001/internal/logger"
  "github.com/RodAcevedoF/sagepoint-sub001/internal/repos"
  "github.com/RodAcevedoF/sagepoint-sub001/internal/sse"
  "github.com/RodAcevedoF/sagepoint-sub001/internal/types"
)

type RoadmapService interface {
  GetByID(ctx context.Context, userID uuid.UUID, roadmapID uuid.UUID) (*types.Roadmap, error)
  GetByDocumentID(ctx context.Context, userID uuid.UUID, documentID uuid.UUID) (*types.Roadmap, error)

  // ExpandStep breaks the step's concept into sub-concepts and splices them
  // into the roadmap directly after the parent step, shifting later steps
  // up. Runs synchronously; concurrent expansions of the same roadmap are
  // serialized.
  ExpandStep(ctx context.Context, userID uuid.UUID, roadmapID uuid.UUID, conceptID uuid.UUID, userContext *UserContext) ([]*types.RoadmapStep, error)

  // SuggestConcepts returns graph-adjacent concepts not already on the
  // roadmap, ranked by how many roadmap concepts they connect to.
  SuggestConcepts(ctx context.Context, userID uuid.UUID, roadmapID uuid.UUID, limit int) ([]*graph.SuggestedConcept, error)

  // StalledRoadmaps is an operator view: pending roadmaps older than maxAge.
  StalledRoadmaps(ctx context.Context, maxAge time.Duration) ([]*types.Roadmap, error)
}

type roadmapService struct {
  db          *gorm.DB
  log         *logger.Logger
  sseHub      *sse.SSEHub
  roadmapRepo repos.RoadmapRepo
  stepRepo    repos.RoadmapStepRepo
  conceptRepo repos.ConceptRepo
  graphClient *graph.Client
  ai          GenerationClient
}

func NewRoadmapService(
  db *gorm.DB,
  baseLog *logger.Logger,
  sseHub *sse.SSEHub,
  roadmapRepo repos.RoadmapRepo,
  stepRepo repos.RoadmapStepRepo,
  conceptRepo repos.ConceptRepo,
  graphClient *graph.Client,
  ai GenerationClient,
) RoadmapService {
  return &roadmapService{
    db:          db,
    log:         baseLog.With("service", "RoadmapService"),
    sseHub:      sseHub,
    roadmapRepo: roadmapRepo,
    stepRepo:    stepRepo,
    conceptRepo: conceptRepo,
    graphClient: graphClient,
    ai:          ai,
  }
}

func (rs *roadmapService) GetByID(ctx context.Context, userID uuid.UUID, roadmapID uuid.UUID) (*types.Roadmap, error) {
  roadmaps, err := rs.roadmapRepo.GetByIDs(ctx, nil, []uuid.UUID{roadmapID})
  if err != nil {
    return nil, fmt.Errorf("load roadmap: %w", err)
  }
  if len(roadmaps) == 0 || roadmaps[0] == nil || roadmaps[0].UserID != userID {
    return nil, fmt.Errorf("%w: roadmap %s", ErrNotFound, roadmapID)
  }
  roadmap := roadmaps[0]

  if roadmap.GenerationStatus == types.RoadmapStatusPopulated {
    steps, err := rs.stepRepo.GetByRoadmapIDs(ctx, nil, []uuid.UUID{roadmapID})
    if err != nil {
      return nil, fmt.Errorf("load steps: %w", err)
    }
    roadmap.Steps = steps
  }
  return roadmap, nil
}

func (rs *roadmapService) GetByDocumentID(ctx context.Context, userID uuid.UUID, documentID uuid.UUID) (*types.Roadmap, error) {
  roadmap, err := rs.roadmapRepo.GetByDocumentID(ctx, nil, documentID)
  if err != nil {
    return nil, fmt.Errorf("load roadmap by document: %w", err)
  }
  if roadmap == nil || roadmap.UserID != userID {
    return nil, fmt.Errorf("%w: no roadmap for document %s", ErrNotFound, documentID)
  }
  if roadmap.GenerationStatus == types.RoadmapStatusPopulated {
    steps, err := rs.stepRepo.GetByRoadmapIDs(ctx, nil, []uuid.UUID{roadmap.ID})
    if err != nil {
      return nil, fmt.Errorf("load steps: %w", err)
    }
    roadmap.Steps = steps
  }
  return roadmap, nil
}

func (rs *roadmapService) ExpandStep(ctx context.Context, userID uuid.UUID, roadmapID uuid.UUID, conceptID uuid.UUID, userContext *UserContext) ([]*types.RoadmapStep, error) {
  roadmaps, err := rs.roadmapRepo.GetByIDs(ctx, nil, []uuid.UUID{roadmapID})
  if err != nil {
    return nil, fmt.Errorf("load roadmap: %w", err)
  }
  if len(roadmaps) == 0 || roadmaps[0] == nil || roadmaps[0].UserID != userID {
    return nil, fmt.Errorf("%w: roadmap %s", ErrNotFound, roadmapID)
  }
  roadmap := roadmaps[0]
  if roadmap.GenerationStatus != types.RoadmapStatusPopulated {
    return nil, fmt.Errorf("%w: roadmap is %s, expansion needs a populated roadmap", ErrValidation, roadmap.GenerationStatus)
  }

  allSteps, err := rs.stepRepo.GetByRoadmapIDs(ctx, nil, []uuid.UUID{roadmapID})
  if err != nil {
    return nil, fmt.Errorf("load steps: %w", err)
  }
  var parent *types.RoadmapStep
  siblings := make([]string, 0, len(allSteps))
  for _, s := range allSteps {
    if s.ConceptID == conceptID {
      parent = s
      continue
    }
    if s.Concept != nil {
      siblings = append(siblings, s.Concept.Name)
    }
  }
  if parent == nil {
    return nil, fmt.Errorf("%w: concept %s is not a step of roadmap %s", ErrNotFound, conceptID, roadmapID)
  }
  if parent.Concept == nil {
    return nil, fmt.Errorf("step %s has no concept loaded", parent.ID)
  }

  subs, err := rs.ai.ExpandConcept(ctx, parent.Concept.Name, parent.Concept.Description, siblings, userContext)
  if err != nil {
    return nil, fmt.Errorf("%w: expand concept: %v", ErrGeneration, err)
  }
  if len(subs) == 0 {
    return nil, fmt.Errorf("%w: no sub-concepts produced for %q", ErrGeneration, parent.Concept.Name)
  }

  now := time.Now()
  newConcepts := make([]*types.Concept, 0, len(subs))
  newSteps := make([]*types.RoadmapStep, 0, len(subs))
  for _, sub := range subs {
    concept := &types.Concept{
      ID:          uuid.New(),
      Name:        sub.Name,
      Description: sub.Description,
      DocumentID:  roadmap.DocumentID,
      CreatedAt:   now,
      UpdatedAt:   now,
    }
    newConcepts = append(newConcepts, concept)

    var estimated *int
    if sub.EstimatedDuration > 0 {
      d := sub.EstimatedDuration
      estimated = &d
    }
    newSteps = append(newSteps, &types.RoadmapStep{
      ID:                uuid.New(),
      RoadmapID:         roadmapID,
      ConceptID:         concept.ID,
      LearningObjective: sub.LearningObjective,
      Difficulty:        normalizeDifficulty(sub.Difficulty),
      EstimatedDuration: estimated,
      CreatedAt:         now,
      UpdatedAt:         now,
    })
  }

  err = rs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
    if err := lockRoadmapForUpdate(tx, roadmapID); err != nil {
      return err
    }
    // The parent may have moved between the unlocked read and here, so the
    // splice point comes from its current position.
    current, err := rs.stepRepo.GetByRoadmapAndConcept(ctx, tx, roadmapID, conceptID)
    if err != nil {
      return fmt.Errorf("reload parent step: %w", err)
    }
    if current == nil {
      return fmt.Errorf("%w: concept %s is not a step of roadmap %s", ErrNotFound, conceptID, roadmapID)
    }
    for i, s := range newSteps {
      s.Order = current.Order + 1 + i
    }
    if _, err := rs.conceptRepo.Create(ctx, tx, newConcepts); err != nil {
      return fmt.Errorf("create sub concepts: %w", err)
    }
    if err := rs.stepRepo.ShiftOrdersFrom(ctx, tx, roadmapID, current.Order+1, len(newSteps)); err != nil {
      return fmt.Errorf("shift step orders: %w", err)
    }
    if _, err := rs.stepRepo.Create(ctx, tx, newSteps); err != nil {
      return fmt.Errorf("create sub steps: %w", err)
    }
    return nil
  })
  if err != nil {
    return nil, err
  }

  rs.log.Info("Step expanded", "roadmapID", roadmapID, "stepID", parent.ID, "subSteps", len(newSteps))
  if rs.sseHub != nil {
    rs.sseHub.Broadcast(sse.SSEMessage{
      Channel: userID.String(),
      Event:   sse.SSEEventRoadmapStepsExpanded,
      Data: map[string]any{
        "roadmap_id":     roadmapID,
        "parent_step_id": parent.ID,
        "new_steps":      len(newSteps),
      },
    })
  }

  for i, s := range newSteps {
    s.Concept = newConcepts[i]
  }
  return newSteps, nil
}

// lockRoadmapForUpdate serializes concurrent expansions of one roadmap with a
// transaction-scoped advisory lock. Non-postgres dialects (sqlite in tests)
// rely on the surrounding transaction instead.
func lockRoadmapForUpdate(tx *gorm.DB, roadmapID uuid.UUID) error {
  if tx.Dialector.Name() != "postgres" {
    return nil
  }
  h := fnv.New64a()
  _, _ = h.Write(roadmapID[:])
  return tx.Exec("SELECT pg_advisory_xact_lock(?)", int64(h.Sum64())).Error
}

func (rs *roadmapService) SuggestConcepts(ctx context.Context, userID uuid.UUID, roadmapID uuid.UUID, limit int) ([]*graph.SuggestedConcept, error) {
  roadmaps, err := rs.roadmapRepo.GetByIDs(ctx, nil, []uuid.UUID{roadmapID})
  if err != nil {
    return nil, fmt.Errorf("load roadmap: %w", err)
  }
  if len(roadmaps) == 0 || roadmaps[0] == nil || roadmaps[0].UserID != userID {
    return nil, fmt.Errorf("%w: roadmap %s", ErrNotFound, roadmapID)
  }

  concepts, err := rs.conceptRepo.GetByRoadmapID(ctx, nil, roadmapID)
  if err != nil {
    return nil, fmt.Errorf("load roadmap concepts: %w", err)
  }
  if len(concepts) == 0 {
    return []*graph.SuggestedConcept{}, nil
  }

  ids := make([]uuid.UUID, 0, len(concepts))
  for _, c := range concepts {
    ids = append(ids, c.ID)
  }
  if limit <= 0 {
    limit = 10
  }
  return graph.SuggestRelatedConcepts(ctx, rs.graphClient, ids, limit)
}

func (rs *roadmapService) StalledRoadmaps(ctx context.Context, maxAge time.Duration) ([]*types.Roadmap, error) {
  if maxAge <= 0 {
    maxAge = 30 * time.Minute
  }
  return rs.roadmapRepo.StalePending(ctx, nil, maxAge)
}
