package services

import (
  "context"
  "fmt"
  "sort"
  "sync"
  "time"

  "github.com/google/uuid"
  "golang.org/x/sync/errgroup"
  "gorm.io/gorm"

  "github.com/RodAcevedoF/sagepoint-sub001/internal/logger"
  "github.com/RodAcevedoF/sagepoint-sub001/internal/repos"
  "github.com/RodAcevedoF/sagepoint-sub001/internal/sse"
  "github.com/RodAcevedoF/sagepoint-sub001/internal/types"
  "github.com/RodAcevedoF/sagepoint-sub001/internal/utils"
)

type ResourceDiscoveryService interface {
  // RefreshResources rediscovers learning resources for the roadmap. With no
  // conceptIDs it is a full refresh: every existing resource row for the
  // roadmap is dropped and every step's concept rediscovered. With
  // conceptIDs it only replaces resources for those concepts and leaves the
  // rest untouched.
  RefreshResources(ctx context.Context, userID uuid.UUID, roadmapID uuid.UUID, conceptIDs []uuid.UUID) ([]*types.Resource, error)

  GetByRoadmap(ctx context.Context, userID uuid.UUID, roadmapID uuid.UUID) ([]*types.Resource, error)
}

type resourceDiscoveryService struct {
  db           *gorm.DB
  log          *logger.Logger
  sseHub       *sse.SSEHub
  roadmapRepo  repos.RoadmapRepo
  stepRepo     repos.RoadmapStepRepo
  resourceRepo repos.ResourceRepo
  ai           GenerationClient
  maxResults   int
  concurrency  int
}

func NewResourceDiscoveryService(
  db *gorm.DB,
  baseLog *logger.Logger,
  sseHub *sse.SSEHub,
  roadmapRepo repos.RoadmapRepo,
  stepRepo repos.RoadmapStepRepo,
  resourceRepo repos.ResourceRepo,
  ai GenerationClient,
) ResourceDiscoveryService {
  log := baseLog.With("service", "ResourceDiscoveryService")
  return &resourceDiscoveryService{
    db:           db,
    log:          log,
    sseHub:       sseHub,
    roadmapRepo:  roadmapRepo,
    stepRepo:     stepRepo,
    resourceRepo: resourceRepo,
    ai:           ai,
    maxResults:   utils.GetEnvAsInt("RESOURCE_MAX_RESULTS", 3, log),
    concurrency:  utils.GetEnvAsInt("RESOURCE_DISCOVERY_CONCURRENCY", 4, log),
  }
}

func (rds *resourceDiscoveryService) RefreshResources(ctx context.Context, userID uuid.UUID, roadmapID uuid.UUID, conceptIDs []uuid.UUID) ([]*types.Resource, error) {
  roadmaps, err := rds.roadmapRepo.GetByIDs(ctx, nil, []uuid.UUID{roadmapID})
  if err != nil {
    return nil, fmt.Errorf("load roadmap: %w", err)
  }
  if len(roadmaps) == 0 || roadmaps[0] == nil || roadmaps[0].UserID != userID {
    return nil, fmt.Errorf("%w: roadmap %s", ErrNotFound, roadmapID)
  }
  if roadmaps[0].GenerationStatus != types.RoadmapStatusPopulated {
    return nil, fmt.Errorf("%w: roadmap is %s, discovery needs a populated roadmap", ErrValidation, roadmaps[0].GenerationStatus)
  }

  steps, err := rds.stepRepo.GetByRoadmapIDs(ctx, nil, []uuid.UUID{roadmapID})
  if err != nil {
    return nil, fmt.Errorf("load steps: %w", err)
  }

  fullRefresh := len(conceptIDs) == 0
  targets := steps
  if !fullRefresh {
    wanted := make(map[uuid.UUID]bool, len(conceptIDs))
    for _, id := range conceptIDs {
      wanted[id] = true
    }
    targets = targets[:0:0]
    for _, s := range steps {
      if wanted[s.ConceptID] {
        targets = append(targets, s)
      }
    }
    if len(targets) == 0 {
      return nil, fmt.Errorf("%w: none of the given concepts belong to roadmap %s", ErrValidation, roadmapID)
    }
  }
  if len(targets) == 0 {
    return []*types.Resource{}, nil
  }

  // Fan out one discovery call per concept, bounded, collecting per concept
  // so one slow or failing concept does not lose the rest.
  type conceptResult struct {
    conceptID  uuid.UUID
    candidates []ResourceCandidate
  }
  var mu sync.Mutex
  results := make([]conceptResult, 0, len(targets))

  g, gctx := errgroup.WithContext(ctx)
  g.SetLimit(rds.concurrency)
  for _, step := range targets {
    step := step
    g.Go(func() error {
      if step.Concept == nil {
        return nil
      }
      candidates, err := rds.ai.DiscoverResources(gctx, step.Concept.Name, step.Concept.Description, rds.maxResults, step.Difficulty)
      if err != nil {
        return fmt.Errorf("discover resources for %q: %w", step.Concept.Name, err)
      }
      mu.Lock()
      results = append(results, conceptResult{conceptID: step.ConceptID, candidates: candidates})
      mu.Unlock()
      return nil
    })
  }
  if err := g.Wait(); err != nil {
    return nil, fmt.Errorf("%w: %v", ErrGeneration, err)
  }

  // Stable output regardless of goroutine completion order.
  stepOrder := make(map[uuid.UUID]int, len(steps))
  for _, s := range steps {
    stepOrder[s.ConceptID] = s.Order
  }
  sort.Slice(results, func(i, j int) bool {
    return stepOrder[results[i].conceptID] < stepOrder[results[j].conceptID]
  })

  now := time.Now()
  resources := make([]*types.Resource, 0, len(results)*rds.maxResults)
  for _, res := range results {
    for i, c := range res.candidates {
      if c.URL == "" || c.Title == "" {
        continue
      }
      var estimated *int
      if c.EstimatedDuration > 0 {
        d := c.EstimatedDuration
        estimated = &d
      }
      resources = append(resources, &types.Resource{
        ID:                uuid.New(),
        ConceptID:         res.conceptID,
        RoadmapID:         roadmapID,
        Title:             c.Title,
        URL:               c.URL,
        Type:              normalizeResourceType(c.Type),
        Description:       c.Description,
        Provider:          c.Provider,
        EstimatedDuration: estimated,
        Difficulty:        normalizeDifficulty(c.Difficulty),
        Order:             i,
        CreatedAt:         now,
        UpdatedAt:         now,
      })
    }
  }

  err = rds.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
    if fullRefresh {
      if err := rds.resourceRepo.FullDeleteByRoadmapID(ctx, tx, roadmapID); err != nil {
        return fmt.Errorf("clear resources: %w", err)
      }
    } else {
      refreshed := make([]uuid.UUID, 0, len(results))
      for _, res := range results {
        refreshed = append(refreshed, res.conceptID)
      }
      if err := rds.resourceRepo.FullDeleteByConceptIDs(ctx, tx, roadmapID, refreshed); err != nil {
        return fmt.Errorf("clear concept resources: %w", err)
      }
    }
    _, err := rds.resourceRepo.Create(ctx, tx, resources)
    return err
  })
  if err != nil {
    return nil, err
  }

  rds.log.Info("Resources refreshed", "roadmapID", roadmapID, "full", fullRefresh, "resources", len(resources))
  if rds.sseHub != nil {
    rds.sseHub.Broadcast(sse.SSEMessage{
      Channel: userID.String(),
      Event:   sse.SSEEventRoadmapResourcesRefreshed,
      Data: map[string]any{
        "roadmap_id": roadmapID,
        "full":       fullRefresh,
        "resources":  len(resources),
      },
    })
  }
  return resources, nil
}

func (rds *resourceDiscoveryService) GetByRoadmap(ctx context.Context, userID uuid.UUID, roadmapID uuid.UUID) ([]*types.Resource, error) {
  roadmaps, err := rds.roadmapRepo.GetByIDs(ctx, nil, []uuid.UUID{roadmapID})
  if err != nil {
    return nil, fmt.Errorf("load roadmap: %w", err)
  }
  if len(roadmaps) == 0 || roadmaps[0] == nil || roadmaps[0].UserID != userID {
    return nil, fmt.Errorf("%w: roadmap %s", ErrNotFound, roadmapID)
  }
  return rds.resourceRepo.GetByRoadmapIDs(ctx, nil, []uuid.UUID{roadmapID})
}

func normalizeResourceType(s string) string {
  switch s {
  case "article", "video", "course", "book", "documentation":
    return s
  default:
    return "other"
  }
}
