package services

import (
  "context"
  "encoding/json"
  "fmt"
  "strings"
  "time"

  "github.com/google/uuid"
  "gorm.io/datatypes"
  "gorm.io/gorm"

  "github.com/RodAcevedoF/sagepoint-sub001/internal/graph"
  "github.com/RodAcevedoF/sagepoint-sub001/internal/logger"
  "github.com/RodAcevedoF/sagepoint-sub001/internal/repos"
  "github.com/RodAcevedoF/sagepoint-sub001/internal/sse"
  "github.com/RodAcevedoF/sagepoint-sub001/internal/types"
)

type RoadmapGenerationService interface {
  // EnqueueFromTopic creates a pending skeleton roadmap plus a queued
  // generation run in one transaction and returns both immediately. The
  // roadmap carries no steps until the worker populates it.
  EnqueueFromTopic(ctx context.Context, userID uuid.UUID, topic string, userContext *UserContext, documentID *uuid.UUID) (*types.Roadmap, *types.RoadmapGenerationRun, error)

  // Enqueue re-queues generation for an existing roadmap (retry after a
  // failure). It is idempotent: while a queued or running run exists for the
  // roadmap, it returns that run instead of creating another.
  Enqueue(ctx context.Context, userID uuid.UUID, roadmapID uuid.UUID) (*types.RoadmapGenerationRun, error)

  StartWorker(ctx context.Context)
}

type roadmapGenerationService struct {
  db           *gorm.DB
  log          *logger.Logger
  sseHub       *sse.SSEHub
  roadmapRepo  repos.RoadmapRepo
  stepRepo     repos.RoadmapStepRepo
  conceptRepo  repos.ConceptRepo
  relationRepo repos.ConceptRelationRepo
  runRepo      repos.GenerationRunRepo
  graphClient  *graph.Client
  ai           GenerationClient
  workers      int
}

func NewRoadmapGenerationService(
  db *gorm.DB,
  baseLog *logger.Logger,
  sseHub *sse.SSEHub,
  roadmapRepo repos.RoadmapRepo,
  stepRepo repos.RoadmapStepRepo,
  conceptRepo repos.ConceptRepo,
  relationRepo repos.ConceptRelationRepo,
  runRepo repos.GenerationRunRepo,
  graphClient *graph.Client,
  ai GenerationClient,
  workers int,
) RoadmapGenerationService {
  if workers < 1 {
    workers = 1
  }
  return &roadmapGenerationService{
    db:           db,
    log:          baseLog.With("service", "RoadmapGenerationService"),
    sseHub:       sseHub,
    roadmapRepo:  roadmapRepo,
    stepRepo:     stepRepo,
    conceptRepo:  conceptRepo,
    relationRepo: relationRepo,
    runRepo:      runRepo,
    graphClient:  graphClient,
    ai:           ai,
    workers:      workers,
  }
}

func (rgs *roadmapGenerationService) EnqueueFromTopic(ctx context.Context, userID uuid.UUID, topic string, userContext *UserContext, documentID *uuid.UUID) (*types.Roadmap, *types.RoadmapGenerationRun, error) {
  topic = strings.TrimSpace(topic)
  if topic == "" {
    return nil, nil, fmt.Errorf("%w: topic is required", ErrValidation)
  }
  if userID == uuid.Nil {
    return nil, nil, fmt.Errorf("%w: missing userID", ErrValidation)
  }

  ucJSON := []byte(`{}`)
  if userContext != nil {
    ucJSON = mustJSON(userContext)
  }

  var roadmap *types.Roadmap
  var run *types.RoadmapGenerationRun

  err := rgs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
    now := time.Now()
    roadmap = &types.Roadmap{
      ID:               uuid.New(),
      UserID:           userID,
      DocumentID:       documentID,
      Title:            topic,
      Description:      "",
      GenerationStatus: types.RoadmapStatusPending,
      Metadata:         datatypes.JSON(mustJSON(map[string]any{"topic": topic})),
      CreatedAt:        now,
      UpdatedAt:        now,
    }
    if _, err := rgs.roadmapRepo.Create(ctx, tx, []*types.Roadmap{roadmap}); err != nil {
      return fmt.Errorf("create roadmap: %w", err)
    }

    run = &types.RoadmapGenerationRun{
      ID:          uuid.New(),
      UserID:      userID,
      RoadmapID:   roadmap.ID,
      Topic:       topic,
      UserContext: datatypes.JSON(ucJSON),
      Status:      types.RunStatusQueued,
      Stage:       "extract",
      Progress:    0,
      Attempts:    0,
      CreatedAt:   now,
      UpdatedAt:   now,
    }
    if _, err := rgs.runRepo.Create(ctx, tx, []*types.RoadmapGenerationRun{run}); err != nil {
      return fmt.Errorf("create generation run: %w", err)
    }
    return nil
  })
  if err != nil {
    return nil, nil, err
  }

  rgs.broadcast(userID, sse.SSEEventRoadmapCreated, map[string]any{
    "roadmap": roadmap,
    "run":     run,
  })
  return roadmap, run, nil
}

func (rgs *roadmapGenerationService) Enqueue(ctx context.Context, userID uuid.UUID, roadmapID uuid.UUID) (*types.RoadmapGenerationRun, error) {
  roadmaps, err := rgs.roadmapRepo.GetByIDs(ctx, nil, []uuid.UUID{roadmapID})
  if err != nil {
    return nil, fmt.Errorf("load roadmap: %w", err)
  }
  if len(roadmaps) == 0 || roadmaps[0] == nil || roadmaps[0].UserID != userID {
    return nil, fmt.Errorf("%w: roadmap %s", ErrNotFound, roadmapID)
  }
  roadmap := roadmaps[0]

  var run *types.RoadmapGenerationRun
  err = rgs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
    active, err := rgs.runRepo.HasActiveForRoadmap(ctx, tx, roadmapID)
    if err != nil {
      return fmt.Errorf("check active runs: %w", err)
    }
    if active {
      existing, err := rgs.runRepo.GetLatestByRoadmapID(ctx, tx, roadmapID)
      if err != nil {
        return fmt.Errorf("load latest run: %w", err)
      }
      run = existing
      return nil
    }

    topic := roadmap.Title
    prev, err := rgs.runRepo.GetLatestByRoadmapID(ctx, tx, roadmapID)
    if err != nil {
      return fmt.Errorf("load latest run: %w", err)
    }
    ucJSON := []byte(`{}`)
    if prev != nil {
      topic = prev.Topic
      if len(prev.UserContext) > 0 {
        ucJSON = prev.UserContext
      }
    }

    now := time.Now()
    run = &types.RoadmapGenerationRun{
      ID:          uuid.New(),
      UserID:      userID,
      RoadmapID:   roadmapID,
      Topic:       topic,
      UserContext: datatypes.JSON(ucJSON),
      Status:      types.RunStatusQueued,
      Stage:       "extract",
      Progress:    0,
      Attempts:    0,
      CreatedAt:   now,
      UpdatedAt:   now,
    }
    if _, err := rgs.runRepo.Create(ctx, tx, []*types.RoadmapGenerationRun{run}); err != nil {
      return fmt.Errorf("create generation run: %w", err)
    }

    // Re-queueing a failed roadmap sends it back to pending with the old
    // steps cleared so readers never see a stale population.
    if err := rgs.stepRepo.FullDeleteByRoadmapID(ctx, tx, roadmapID); err != nil {
      return fmt.Errorf("clear steps: %w", err)
    }
    return rgs.roadmapRepo.UpdateFields(ctx, tx, roadmapID, map[string]interface{}{
      "generation_status": types.RoadmapStatusPending,
      "failure_reason":    "",
      "updated_at":        now,
    })
  })
  if err != nil {
    return nil, err
  }
  return run, nil
}

func (rgs *roadmapGenerationService) StartWorker(ctx context.Context) {
  for i := 0; i < rgs.workers; i++ {
    go func(workerID int) {
      ticker := time.NewTicker(1 * time.Second)
      defer ticker.Stop()

      // Worker policy
      const maxAttempts = 5
      retryDelay := 30 * time.Second
      staleRunning := 2 * time.Minute

      log := rgs.log.With("worker", workerID)
      for {
        select {
        case <-ctx.Done():
          return
        case <-ticker.C:
          run, err := rgs.runRepo.ClaimNextRunnable(ctx, rgs.db, maxAttempts, retryDelay, staleRunning)
          if err != nil {
            log.Warn("ClaimNextRunnable failed", "error", err)
            continue
          }
          if run == nil {
            continue
          }
          rgs.processRun(ctx, run)
        }
      }
    }(i)
  }
}

func (rgs *roadmapGenerationService) processRun(ctx context.Context, run *types.RoadmapGenerationRun) {
  userID := run.UserID
  runID := run.ID
  roadmapID := run.RoadmapID

  fail := func(stage string, err error) {
    now := time.Now()
    _ = rgs.runRepo.UpdateFields(ctx, nil, runID, map[string]interface{}{
      "status":        types.RunStatusFailed,
      "stage":         stage,
      "error":         err.Error(),
      "last_error_at": now,
      "locked_at":     nil,
      "updated_at":    now,
    })
    _ = rgs.roadmapRepo.UpdateFields(ctx, nil, roadmapID, map[string]interface{}{
      "generation_status": types.RoadmapStatusFailed,
      "failure_reason":    err.Error(),
      "updated_at":        now,
    })
    rgs.log.Warn("Roadmap generation failed", "runID", runID, "roadmapID", roadmapID, "stage", stage, "error", err)
    rgs.broadcast(userID, sse.SSEEventRoadmapGenerationFailed, map[string]any{
      "run_id":     runID,
      "roadmap_id": roadmapID,
      "stage":      stage,
      "error":      err.Error(),
    })
  }

  progress := func(stage string, pct int, msg string) {
    now := time.Now()
    _ = rgs.runRepo.UpdateFields(ctx, nil, runID, map[string]interface{}{
      "stage":        stage,
      "progress":     pct,
      "heartbeat_at": now,
      "updated_at":   now,
    })
    rgs.broadcast(userID, sse.SSEEventRoadmapGenerationProgress, map[string]any{
      "run_id":     runID,
      "roadmap_id": roadmapID,
      "stage":      stage,
      "progress":   pct,
      "message":    msg,
    })
  }

  roadmaps, err := rgs.roadmapRepo.GetByIDs(ctx, nil, []uuid.UUID{roadmapID})
  if err != nil {
    fail("extract", fmt.Errorf("load roadmap: %w", err))
    return
  }
  if len(roadmaps) == 0 || roadmaps[0] == nil {
    fail("extract", fmt.Errorf("roadmap %s not found", roadmapID))
    return
  }
  roadmap := roadmaps[0]

  // Redelivered run: a prior attempt can populate the roadmap and then die
  // before its run row is finalized, in which case the claim query hands the
  // run out again. The roadmap already holds a complete step set, so settle
  // the run and leave it alone.
  if roadmap.GenerationStatus == types.RoadmapStatusPopulated {
    now := time.Now()
    _ = rgs.runRepo.UpdateFields(ctx, nil, runID, map[string]interface{}{
      "status":       types.RunStatusSucceeded,
      "stage":        "done",
      "progress":     100,
      "error":        "",
      "locked_at":    nil,
      "heartbeat_at": now,
      "updated_at":   now,
    })
    rgs.log.Info("Run redelivered for populated roadmap, settling", "runID", runID, "roadmapID", roadmapID)
    return
  }

  var userContext *UserContext
  if len(run.UserContext) > 0 {
    var uc UserContext
    if err := json.Unmarshal(run.UserContext, &uc); err == nil && (uc.ExperienceLevel != "" || uc.Goal != "") {
      userContext = &uc
    }
  }

  progress("extract", 5, "Extracting concepts")
  extraction, err := rgs.ai.ExtractConcepts(ctx, run.Topic, userContext)
  if err != nil {
    fail("extract", fmt.Errorf("extract concepts: %w", err))
    return
  }
  if extraction == nil || len(extraction.Concepts) == 0 {
    fail("extract", fmt.Errorf("no concepts extracted for topic %q", run.Topic))
    return
  }

  // Dedupe by name, first occurrence wins. Discovery order is the ordering
  // fallback later, so position matters here.
  extracted := make([]ExtractedConcept, 0, len(extraction.Concepts))
  byName := make(map[string]int, len(extraction.Concepts))
  for _, ec := range extraction.Concepts {
    name := strings.TrimSpace(ec.Name)
    if name == "" {
      continue
    }
    key := strings.ToLower(name)
    if _, dup := byName[key]; dup {
      continue
    }
    ec.Name = name
    byName[key] = len(extracted)
    extracted = append(extracted, ec)
  }
  if len(extracted) == 0 {
    fail("extract", fmt.Errorf("no usable concepts extracted for topic %q", run.Topic))
    return
  }

  concepts := make([]*types.Concept, 0, len(extracted))
  now := time.Now()
  for _, ec := range extracted {
    concepts = append(concepts, &types.Concept{
      ID:          uuid.New(),
      Name:        ec.Name,
      Description: ec.Description,
      DocumentID:  roadmap.DocumentID,
      CreatedAt:   now,
      UpdatedAt:   now,
    })
  }

  relations := make([]*types.ConceptRelation, 0, len(extraction.Relations))
  for _, er := range extraction.Relations {
    fromIdx, okFrom := byName[strings.ToLower(strings.TrimSpace(er.FromName))]
    toIdx, okTo := byName[strings.ToLower(strings.TrimSpace(er.ToName))]
    relType := normalizeRelationType(er.Type)
    if !okFrom || !okTo || fromIdx == toIdx || relType == "" {
      continue
    }
    relations = append(relations, &types.ConceptRelation{
      ID:            uuid.New(),
      FromConceptID: concepts[fromIdx].ID,
      ToConceptID:   concepts[toIdx].ID,
      Type:          relType,
      CreatedAt:     now,
    })
  }

  err = rgs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
    if _, err := rgs.conceptRepo.Create(ctx, tx, concepts); err != nil {
      return fmt.Errorf("create concepts: %w", err)
    }
    return rgs.relationRepo.CreateIgnoreDuplicates(ctx, tx, relations)
  })
  if err != nil {
    fail("extract", err)
    return
  }
  progress("extract", 30, fmt.Sprintf("Extracted %d concepts", len(concepts)))

  // Graph mirror is best effort; the relational store stays authoritative.
  progress("graph", 40, "Syncing concept graph")
  if err := graph.SyncRoadmapConceptGraph(ctx, rgs.graphClient, rgs.log, roadmapID, concepts, relations); err != nil {
    rgs.log.Warn("Concept graph sync failed", "roadmapID", roadmapID, "error", err)
  }

  progress("order", 55, "Ordering concepts")
  names := make([]string, 0, len(extracted))
  for _, ec := range extracted {
    names = append(names, ec.Name)
  }
  orderedNames, err := rgs.ai.OrderConcepts(ctx, names, extraction.Relations, userContext)
  if err != nil {
    fail("order", fmt.Errorf("order concepts: %w", err))
    return
  }

  // Place returned names first, then append anything unplaced in discovery
  // order. This absorbs cyclic dependencies and partial orderings without
  // failing the run.
  placed := make(map[int]bool, len(extracted))
  orderedIdx := make([]int, 0, len(extracted))
  for _, name := range orderedNames {
    idx, ok := byName[strings.ToLower(strings.TrimSpace(name))]
    if !ok || placed[idx] {
      continue
    }
    placed[idx] = true
    orderedIdx = append(orderedIdx, idx)
  }
  for i := range extracted {
    if !placed[i] {
      orderedIdx = append(orderedIdx, i)
    }
  }

  progress("steps", 75, "Building roadmap steps")
  steps := make([]*types.RoadmapStep, 0, len(orderedIdx))
  stepNow := time.Now()
  for pos, idx := range orderedIdx {
    ec := extracted[idx]
    var estimated *int
    if ec.EstimatedDuration > 0 {
      d := ec.EstimatedDuration
      estimated = &d
    }
    steps = append(steps, &types.RoadmapStep{
      ID:                uuid.New(),
      RoadmapID:         roadmapID,
      ConceptID:         concepts[idx].ID,
      Order:             pos,
      LearningObjective: ec.LearningObjective,
      Difficulty:        normalizeDifficulty(ec.Difficulty),
      EstimatedDuration: estimated,
      Rationale:         ec.Rationale,
      CreatedAt:         stepNow,
      UpdatedAt:         stepNow,
    })
  }

  // Steps and the status flip land together so a reader either sees the
  // pending skeleton or the fully populated roadmap, never a partial one.
  err = rgs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
    // A half-finished earlier attempt may have left steps behind; the new
    // set replaces them outright so only one step set ever exists.
    if err := rgs.stepRepo.FullDeleteByRoadmapID(ctx, tx, roadmapID); err != nil {
      return fmt.Errorf("clear prior steps: %w", err)
    }
    if _, err := rgs.stepRepo.Create(ctx, tx, steps); err != nil {
      return fmt.Errorf("create steps: %w", err)
    }
    return rgs.roadmapRepo.UpdateFields(ctx, tx, roadmapID, map[string]interface{}{
      "generation_status": types.RoadmapStatusPopulated,
      "failure_reason":    "",
      "updated_at":        time.Now(),
    })
  })
  if err != nil {
    fail("steps", err)
    return
  }

  doneAt := time.Now()
  _ = rgs.runRepo.UpdateFields(ctx, nil, runID, map[string]interface{}{
    "status":       types.RunStatusSucceeded,
    "stage":        "done",
    "progress":     100,
    "error":        "",
    "locked_at":    nil,
    "heartbeat_at": doneAt,
    "updated_at":   doneAt,
  })

  rgs.log.Info("Roadmap populated", "roadmapID", roadmapID, "runID", runID, "steps", len(steps))
  rgs.broadcast(userID, sse.SSEEventRoadmapGenerationDone, map[string]any{
    "run_id":     runID,
    "roadmap_id": roadmapID,
    "steps":      len(steps),
  })
}

func (rgs *roadmapGenerationService) broadcast(userID uuid.UUID, event sse.SSEEvent, data any) {
  if rgs.sseHub == nil {
    return
  }
  rgs.sseHub.Broadcast(sse.SSEMessage{
    Channel: userID.String(),
    Event:   event,
    Data:    data,
  })
}
