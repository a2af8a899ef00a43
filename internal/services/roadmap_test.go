package services

import (
  "context"
  "fmt"
  "testing"

  "github.com/google/uuid"
)

func newRoadmapService(env *testEnv, ai GenerationClient) RoadmapService {
  return NewRoadmapService(env.db, env.log, nil, env.roadmapRepo, env.stepRepo, env.conceptRepo, nil, ai)
}

func TestGetByID_AttachesOrderedSteps(t *testing.T) {
  env := newTestEnv(t)
  svc := newRoadmapService(env, &fakeGenerationClient{})
  ctx := context.Background()
  userID := uuid.New()
  seeded, _ := env.seedPopulatedRoadmap(t, userID, 4)

  roadmap, err := svc.GetByID(ctx, userID, seeded.ID)
  if err != nil {
    t.Fatalf("get: %v", err)
  }
  if len(roadmap.Steps) != 4 {
    t.Fatalf("steps: want=4 got=%d", len(roadmap.Steps))
  }
  for i, s := range roadmap.Steps {
    if s.Order != i {
      t.Fatalf("step %d out of order: got=%d", i, s.Order)
    }
  }
}

func TestGetByID_PendingRoadmapHasNoSteps(t *testing.T) {
  env := newTestEnv(t)
  svc := newRoadmapService(env, &fakeGenerationClient{})
  gen := newGenService(env, &fakeGenerationClient{})
  ctx := context.Background()
  userID := uuid.New()

  created, _, err := gen.EnqueueFromTopic(ctx, userID, "Topic", nil, nil)
  if err != nil {
    t.Fatalf("enqueue: %v", err)
  }

  roadmap, err := svc.GetByID(ctx, userID, created.ID)
  if err != nil {
    t.Fatalf("get: %v", err)
  }
  if len(roadmap.Steps) != 0 {
    t.Fatalf("pending roadmap must expose no steps, got %d", len(roadmap.Steps))
  }
}

func TestGetByID_OtherUsersRoadmapIsNotFound(t *testing.T) {
  env := newTestEnv(t)
  svc := newRoadmapService(env, &fakeGenerationClient{})
  ctx := context.Background()
  seeded, _ := env.seedPopulatedRoadmap(t, uuid.New(), 1)

  _, err := svc.GetByID(ctx, uuid.New(), seeded.ID)
  if !IsNotFound(err) {
    t.Fatalf("want not found, got %v", err)
  }
}

func TestExpandStep_SplicesAfterParentAndRenumbers(t *testing.T) {
  env := newTestEnv(t)
  ai := &fakeGenerationClient{
    expandFn: func(name string) ([]SubConcept, error) {
      return []SubConcept{
        {Name: name + " Basics", Difficulty: "beginner", EstimatedDuration: 20},
        {Name: name + " Internals", Difficulty: "intermediate"},
        {Name: name + " Pitfalls", Difficulty: "advanced"},
      }, nil
    },
  }
  svc := newRoadmapService(env, ai)
  ctx := context.Background()
  userID := uuid.New()
  seeded, concepts := env.seedPopulatedRoadmap(t, userID, 5)

  newSteps, err := svc.ExpandStep(ctx, userID, seeded.ID, concepts[2].ID, nil)
  if err != nil {
    t.Fatalf("expand: %v", err)
  }
  if len(newSteps) != 3 {
    t.Fatalf("new steps: want=3 got=%d", len(newSteps))
  }
  for i, s := range newSteps {
    if s.Order != 3+i {
      t.Fatalf("new step %d order: want=%d got=%d", i, 3+i, s.Order)
    }
  }

  all, err := env.stepRepo.GetByRoadmapIDs(ctx, nil, []uuid.UUID{seeded.ID})
  if err != nil {
    t.Fatalf("load steps: %v", err)
  }
  if len(all) != 8 {
    t.Fatalf("total steps: want=8 got=%d", len(all))
  }
  wantNames := []string{
    "Concept 0", "Concept 1", "Concept 2",
    "Concept 2 Basics", "Concept 2 Internals", "Concept 2 Pitfalls",
    "Concept 3", "Concept 4",
  }
  for i, s := range all {
    if s.Order != i {
      t.Fatalf("orders not contiguous at %d: got=%d", i, s.Order)
    }
    if s.Concept == nil || s.Concept.Name != wantNames[i] {
      t.Fatalf("step %d: want=%q got=%v", i, wantNames[i], s.Concept)
    }
  }
}

func TestExpandStep_UnknownConcept_NotFound(t *testing.T) {
  env := newTestEnv(t)
  svc := newRoadmapService(env, &fakeGenerationClient{})
  ctx := context.Background()
  userID := uuid.New()
  seeded, _ := env.seedPopulatedRoadmap(t, userID, 2)

  _, err := svc.ExpandStep(ctx, userID, seeded.ID, uuid.New(), nil)
  if !IsNotFound(err) {
    t.Fatalf("want not found, got %v", err)
  }
}

func TestExpandStep_PendingRoadmap_Rejected(t *testing.T) {
  env := newTestEnv(t)
  svc := newRoadmapService(env, &fakeGenerationClient{})
  gen := newGenService(env, &fakeGenerationClient{})
  ctx := context.Background()
  userID := uuid.New()

  created, _, err := gen.EnqueueFromTopic(ctx, userID, "Topic", nil, nil)
  if err != nil {
    t.Fatalf("enqueue: %v", err)
  }

  _, err = svc.ExpandStep(ctx, userID, created.ID, uuid.New(), nil)
  if !IsValidation(err) {
    t.Fatalf("want validation error, got %v", err)
  }
}

func TestExpandStep_GenerationFailure_LeavesStepsUntouched(t *testing.T) {
  env := newTestEnv(t)
  ai := &fakeGenerationClient{
    expandFn: func(name string) ([]SubConcept, error) {
      return nil, fmt.Errorf("timeout")
    },
  }
  svc := newRoadmapService(env, ai)
  ctx := context.Background()
  userID := uuid.New()
  seeded, concepts := env.seedPopulatedRoadmap(t, userID, 3)

  _, err := svc.ExpandStep(ctx, userID, seeded.ID, concepts[1].ID, nil)
  if !IsGeneration(err) {
    t.Fatalf("want generation error, got %v", err)
  }

  all, _ := env.stepRepo.GetByRoadmapIDs(ctx, nil, []uuid.UUID{seeded.ID})
  if len(all) != 3 {
    t.Fatalf("steps changed on failure: want=3 got=%d", len(all))
  }
  for i, s := range all {
    if s.Order != i {
      t.Fatalf("orders disturbed at %d: got=%d", i, s.Order)
    }
  }
}

func TestExpandStep_ParentMovedMidExpansion_SplicesAtCurrentPosition(t *testing.T) {
  env := newTestEnv(t)
  ctx := context.Background()
  userID := uuid.New()

  var roadmapID, parentConceptID, headConceptID uuid.UUID
  ai := &fakeGenerationClient{
    expandFn: func(name string) ([]SubConcept, error) {
      // Reorder the roadmap while the expansion call is in flight: the
      // parent jumps to the front, the former head takes its slot.
      if err := env.db.Exec(
        "UPDATE roadmap_step SET step_order = 0 WHERE roadmap_id = ? AND concept_id = ?",
        roadmapID, parentConceptID,
      ).Error; err != nil {
        return nil, err
      }
      if err := env.db.Exec(
        "UPDATE roadmap_step SET step_order = 2 WHERE roadmap_id = ? AND concept_id = ?",
        roadmapID, headConceptID,
      ).Error; err != nil {
        return nil, err
      }
      return []SubConcept{
        {Name: name + " Basics", Difficulty: "beginner"},
        {Name: name + " Internals", Difficulty: "intermediate"},
      }, nil
    },
  }
  svc := newRoadmapService(env, ai)
  roadmap, concepts := env.seedPopulatedRoadmap(t, userID, 4)
  roadmapID = roadmap.ID
  parentConceptID = concepts[2].ID
  headConceptID = concepts[0].ID

  newSteps, err := svc.ExpandStep(ctx, userID, roadmap.ID, concepts[2].ID, nil)
  if err != nil {
    t.Fatalf("expand: %v", err)
  }
  for i, s := range newSteps {
    if s.Order != 1+i {
      t.Fatalf("new step %d order: want=%d got=%d (splice point is stale)", i, 1+i, s.Order)
    }
  }

  all, err := env.stepRepo.GetByRoadmapIDs(ctx, nil, []uuid.UUID{roadmap.ID})
  if err != nil {
    t.Fatalf("load steps: %v", err)
  }
  wantNames := []string{
    "Concept 2", "Concept 2 Basics", "Concept 2 Internals",
    "Concept 1", "Concept 0", "Concept 3",
  }
  if len(all) != len(wantNames) {
    t.Fatalf("total steps: want=%d got=%d", len(wantNames), len(all))
  }
  for i, s := range all {
    if s.Order != i {
      t.Fatalf("orders not contiguous at %d: got=%d", i, s.Order)
    }
    if s.Concept == nil || s.Concept.Name != wantNames[i] {
      t.Fatalf("step %d: want=%q got=%v", i, wantNames[i], s.Concept)
    }
  }
}

func TestSuggestConcepts_NoGraphBackend_ReturnsEmpty(t *testing.T) {
  env := newTestEnv(t)
  svc := newRoadmapService(env, &fakeGenerationClient{})
  ctx := context.Background()
  userID := uuid.New()
  seeded, _ := env.seedPopulatedRoadmap(t, userID, 2)

  suggestions, err := svc.SuggestConcepts(ctx, userID, seeded.ID, 5)
  if err != nil {
    t.Fatalf("suggest: %v", err)
  }
  if len(suggestions) != 0 {
    t.Fatalf("want empty suggestions without a graph backend, got %d", len(suggestions))
  }
}
