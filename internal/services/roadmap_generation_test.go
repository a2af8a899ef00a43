package services

import (
  "context"
  "fmt"
  "testing"

  "github.com/google/uuid"

  "github.com/RodAcevedoF/sagepoint-sub001/internal/types"
)

func newGenService(env *testEnv, ai GenerationClient) *roadmapGenerationService {
  svc := NewRoadmapGenerationService(
    env.db, env.log, nil,
    env.roadmapRepo, env.stepRepo, env.conceptRepo, env.relationRepo, env.runRepo,
    nil, ai, 1,
  )
  return svc.(*roadmapGenerationService)
}

func threeConceptExtraction() *ConceptExtraction {
  return &ConceptExtraction{
    Concepts: []ExtractedConcept{
      {Name: "Consensus", Description: "Agreement under failures", LearningObjective: "Explain quorum intersection", Difficulty: "advanced", EstimatedDuration: 90},
      {Name: "Replication", Description: "Copies of state", Difficulty: "intermediate", EstimatedDuration: 60},
      {Name: "Clocks", Description: "Ordering events", Difficulty: "beginner"},
    },
    Relations: []ExtractedRelation{
      {FromName: "Consensus", ToName: "Replication", Type: "DEPENDS_ON"},
      {FromName: "Replication", ToName: "Consensus", Type: "NEXT_STEP"},
      {FromName: "Clocks", ToName: "Clocks", Type: "RELATED_TO"}, // self loop, dropped
    },
  }
}

func TestEnqueueFromTopic_CreatesPendingSkeleton(t *testing.T) {
  env := newTestEnv(t)
  svc := newGenService(env, &fakeGenerationClient{})
  ctx := context.Background()
  userID := uuid.New()

  roadmap, run, err := svc.EnqueueFromTopic(ctx, userID, "Distributed Systems", nil, nil)
  if err != nil {
    t.Fatalf("enqueue: %v", err)
  }
  if roadmap.GenerationStatus != types.RoadmapStatusPending {
    t.Fatalf("status: want=%v got=%v", types.RoadmapStatusPending, roadmap.GenerationStatus)
  }
  if run.Status != types.RunStatusQueued || run.RoadmapID != roadmap.ID {
    t.Fatalf("unexpected run: status=%v roadmap=%v", run.Status, run.RoadmapID)
  }

  steps, err := env.stepRepo.GetByRoadmapIDs(ctx, nil, []uuid.UUID{roadmap.ID})
  if err != nil {
    t.Fatalf("load steps: %v", err)
  }
  if len(steps) != 0 {
    t.Fatalf("pending roadmap must carry no steps, got %d", len(steps))
  }
}

func TestEnqueueFromTopic_RejectsBlankTopic(t *testing.T) {
  env := newTestEnv(t)
  svc := newGenService(env, &fakeGenerationClient{})

  _, _, err := svc.EnqueueFromTopic(context.Background(), uuid.New(), "   ", nil, nil)
  if !IsValidation(err) {
    t.Fatalf("want validation error, got %v", err)
  }
}

func TestEnqueue_IdempotentWhileRunActive(t *testing.T) {
  env := newTestEnv(t)
  svc := newGenService(env, &fakeGenerationClient{})
  ctx := context.Background()
  userID := uuid.New()

  roadmap, run, err := svc.EnqueueFromTopic(ctx, userID, "Kernels", nil, nil)
  if err != nil {
    t.Fatalf("enqueue: %v", err)
  }

  again, err := svc.Enqueue(ctx, userID, roadmap.ID)
  if err != nil {
    t.Fatalf("re-enqueue: %v", err)
  }
  if again.ID != run.ID {
    t.Fatalf("expected the active run back, want=%v got=%v", run.ID, again.ID)
  }

  var n int64
  if err := env.db.Model(&types.RoadmapGenerationRun{}).Where("roadmap_id = ?", roadmap.ID).Count(&n).Error; err != nil {
    t.Fatalf("count runs: %v", err)
  }
  if n != 1 {
    t.Fatalf("want 1 run, got %d", n)
  }
}

func TestProcessRun_PopulatesRoadmap(t *testing.T) {
  env := newTestEnv(t)
  ai := &fakeGenerationClient{
    extractFn: func(topic string) (*ConceptExtraction, error) {
      return threeConceptExtraction(), nil
    },
    orderFn: func(names []string) ([]string, error) {
      return []string{"Clocks", "Replication", "Consensus"}, nil
    },
  }
  svc := newGenService(env, ai)
  ctx := context.Background()
  userID := uuid.New()

  roadmap, run, err := svc.EnqueueFromTopic(ctx, userID, "Distributed Systems", &UserContext{ExperienceLevel: "beginner"}, nil)
  if err != nil {
    t.Fatalf("enqueue: %v", err)
  }

  svc.processRun(ctx, run)

  got, err := env.roadmapRepo.GetByIDs(ctx, nil, []uuid.UUID{roadmap.ID})
  if err != nil || len(got) != 1 {
    t.Fatalf("load roadmap: %v", err)
  }
  if got[0].GenerationStatus != types.RoadmapStatusPopulated {
    t.Fatalf("status: want=%v got=%v (reason=%q)", types.RoadmapStatusPopulated, got[0].GenerationStatus, got[0].FailureReason)
  }

  steps, err := env.stepRepo.GetByRoadmapIDs(ctx, nil, []uuid.UUID{roadmap.ID})
  if err != nil {
    t.Fatalf("load steps: %v", err)
  }
  if len(steps) != 3 {
    t.Fatalf("steps: want=3 got=%d", len(steps))
  }
  wantNames := []string{"Clocks", "Replication", "Consensus"}
  for i, s := range steps {
    if s.Order != i {
      t.Fatalf("step %d order: want=%d got=%d", i, i, s.Order)
    }
    if s.Concept == nil || s.Concept.Name != wantNames[i] {
      t.Fatalf("step %d concept: want=%q got=%v", i, wantNames[i], s.Concept)
    }
  }
  if steps[2].Difficulty != types.DifficultyAdvanced {
    t.Fatalf("difficulty carried: want=%v got=%v", types.DifficultyAdvanced, steps[2].Difficulty)
  }
  if steps[2].EstimatedDuration == nil || *steps[2].EstimatedDuration != 90 {
    t.Fatalf("estimated duration not carried: %v", steps[2].EstimatedDuration)
  }

  runs, err := env.runRepo.GetByIDs(ctx, nil, []uuid.UUID{run.ID})
  if err != nil || len(runs) != 1 {
    t.Fatalf("load run: %v", err)
  }
  if runs[0].Status != types.RunStatusSucceeded || runs[0].Progress != 100 {
    t.Fatalf("run: want succeeded/100 got %v/%d", runs[0].Status, runs[0].Progress)
  }

  // Self loops are dropped, valid edges kept.
  conceptIDs := make([]uuid.UUID, 0, 3)
  for _, s := range steps {
    conceptIDs = append(conceptIDs, s.ConceptID)
  }
  rels, err := env.relationRepo.GetByConceptIDs(ctx, nil, conceptIDs)
  if err != nil {
    t.Fatalf("load relations: %v", err)
  }
  if len(rels) != 2 {
    t.Fatalf("relations: want=2 got=%d", len(rels))
  }
}

func TestProcessRun_ZeroConcepts_FailsRoadmap(t *testing.T) {
  env := newTestEnv(t)
  ai := &fakeGenerationClient{
    extractFn: func(topic string) (*ConceptExtraction, error) {
      return &ConceptExtraction{}, nil
    },
  }
  svc := newGenService(env, ai)
  ctx := context.Background()

  roadmap, run, err := svc.EnqueueFromTopic(ctx, uuid.New(), "Empty Topic", nil, nil)
  if err != nil {
    t.Fatalf("enqueue: %v", err)
  }

  svc.processRun(ctx, run)

  got, err := env.roadmapRepo.GetByIDs(ctx, nil, []uuid.UUID{roadmap.ID})
  if err != nil || len(got) != 1 {
    t.Fatalf("load roadmap: %v", err)
  }
  if got[0].GenerationStatus != types.RoadmapStatusFailed {
    t.Fatalf("status: want=%v got=%v", types.RoadmapStatusFailed, got[0].GenerationStatus)
  }
  if got[0].FailureReason == "" {
    t.Fatalf("expected failure reason to be recorded")
  }

  steps, _ := env.stepRepo.GetByRoadmapIDs(ctx, nil, []uuid.UUID{roadmap.ID})
  if len(steps) != 0 {
    t.Fatalf("failed roadmap must carry no steps, got %d", len(steps))
  }

  runs, _ := env.runRepo.GetByIDs(ctx, nil, []uuid.UUID{run.ID})
  if len(runs) != 1 || runs[0].Status != types.RunStatusFailed {
    t.Fatalf("run should be failed: %+v", runs)
  }
}

func TestProcessRun_ExtractError_FailsRun(t *testing.T) {
  env := newTestEnv(t)
  ai := &fakeGenerationClient{
    extractFn: func(topic string) (*ConceptExtraction, error) {
      return nil, fmt.Errorf("backend unavailable")
    },
  }
  svc := newGenService(env, ai)
  ctx := context.Background()

  roadmap, run, err := svc.EnqueueFromTopic(ctx, uuid.New(), "Anything", nil, nil)
  if err != nil {
    t.Fatalf("enqueue: %v", err)
  }

  svc.processRun(ctx, run)

  got, _ := env.roadmapRepo.GetByIDs(ctx, nil, []uuid.UUID{roadmap.ID})
  if got[0].GenerationStatus != types.RoadmapStatusFailed {
    t.Fatalf("status: want=%v got=%v", types.RoadmapStatusFailed, got[0].GenerationStatus)
  }
  runs, _ := env.runRepo.GetByIDs(ctx, nil, []uuid.UUID{run.ID})
  if runs[0].Error == "" {
    t.Fatalf("expected run error recorded")
  }
}

func TestProcessRun_OrderingOmissions_AppendUnplaced(t *testing.T) {
  env := newTestEnv(t)
  ai := &fakeGenerationClient{
    extractFn: func(topic string) (*ConceptExtraction, error) {
      return threeConceptExtraction(), nil
    },
    // Cycle confused the backend: only one name placed, one unknown.
    orderFn: func(names []string) ([]string, error) {
      return []string{"replication", "Quantum Foam"}, nil
    },
  }
  svc := newGenService(env, ai)
  ctx := context.Background()

  roadmap, run, err := svc.EnqueueFromTopic(ctx, uuid.New(), "Distributed Systems", nil, nil)
  if err != nil {
    t.Fatalf("enqueue: %v", err)
  }

  svc.processRun(ctx, run)

  steps, err := env.stepRepo.GetByRoadmapIDs(ctx, nil, []uuid.UUID{roadmap.ID})
  if err != nil {
    t.Fatalf("load steps: %v", err)
  }
  if len(steps) != 3 {
    t.Fatalf("steps: want=3 got=%d", len(steps))
  }
  // Matched name first (case-insensitive), then the rest in discovery order.
  wantNames := []string{"Replication", "Consensus", "Clocks"}
  for i, s := range steps {
    if s.Order != i || s.Concept == nil || s.Concept.Name != wantNames[i] {
      t.Fatalf("step %d: want=%q got order=%d name=%v", i, wantNames[i], s.Order, s.Concept)
    }
  }
}

func TestProcessRun_DuplicateConceptNames_Collapsed(t *testing.T) {
  env := newTestEnv(t)
  ai := &fakeGenerationClient{
    extractFn: func(topic string) (*ConceptExtraction, error) {
      return &ConceptExtraction{
        Concepts: []ExtractedConcept{
          {Name: "Paxos"},
          {Name: "paxos"},
          {Name: "Raft"},
        },
      }, nil
    },
  }
  svc := newGenService(env, ai)
  ctx := context.Background()

  roadmap, run, err := svc.EnqueueFromTopic(ctx, uuid.New(), "Consensus", nil, nil)
  if err != nil {
    t.Fatalf("enqueue: %v", err)
  }

  svc.processRun(ctx, run)

  steps, _ := env.stepRepo.GetByRoadmapIDs(ctx, nil, []uuid.UUID{roadmap.ID})
  if len(steps) != 2 {
    t.Fatalf("duplicate names should collapse: want=2 got=%d", len(steps))
  }
}

func TestProcessRun_RedeliveredAfterPopulate_KeepsSingleStepSet(t *testing.T) {
  env := newTestEnv(t)
  ai := &fakeGenerationClient{
    extractFn: func(topic string) (*ConceptExtraction, error) {
      return threeConceptExtraction(), nil
    },
  }
  svc := newGenService(env, ai)
  ctx := context.Background()
  userID := uuid.New()

  roadmap, run, err := svc.EnqueueFromTopic(ctx, userID, "Distributed Systems", nil, nil)
  if err != nil {
    t.Fatalf("enqueue: %v", err)
  }

  svc.processRun(ctx, run)

  // A worker dying between the populate transaction and the run update
  // leaves the run claimable again. Mimic that and redeliver.
  if err := env.runRepo.UpdateFields(ctx, nil, run.ID, map[string]interface{}{
    "status": types.RunStatusRunning,
  }); err != nil {
    t.Fatalf("reset run: %v", err)
  }
  svc.processRun(ctx, run)

  steps, err := env.stepRepo.GetByRoadmapIDs(ctx, nil, []uuid.UUID{roadmap.ID})
  if err != nil {
    t.Fatalf("load steps: %v", err)
  }
  if len(steps) != 3 {
    t.Fatalf("redelivery duplicated steps: want=3 got=%d", len(steps))
  }
  seen := make(map[int]bool, len(steps))
  for i, s := range steps {
    if s.Order != i || seen[s.Order] {
      t.Fatalf("step orders corrupted: got order=%d at position %d", s.Order, i)
    }
    seen[s.Order] = true
  }

  var conceptCount int64
  if err := env.db.Model(&types.Concept{}).Count(&conceptCount).Error; err != nil {
    t.Fatalf("count concepts: %v", err)
  }
  if conceptCount != 3 {
    t.Fatalf("redelivery duplicated concepts: want=3 got=%d", conceptCount)
  }

  runs, err := env.runRepo.GetByIDs(ctx, nil, []uuid.UUID{run.ID})
  if err != nil || len(runs) != 1 {
    t.Fatalf("load run: %v", err)
  }
  if runs[0].Status != types.RunStatusSucceeded {
    t.Fatalf("run: want=%v got=%v", types.RunStatusSucceeded, runs[0].Status)
  }
}
