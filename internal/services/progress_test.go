package services

import (
  "context"
  "testing"

  "github.com/google/uuid"

  "github.com/RodAcevedoF/sagepoint-sub001/internal/types"
)

func newProgressService(env *testEnv) ProgressService {
  return NewProgressService(env.db, env.log, env.roadmapRepo, env.stepRepo, env.progressRepo, env.resourceRepo)
}

func TestUpdateStepProgress_CompletedStampsTimestamp(t *testing.T) {
  env := newTestEnv(t)
  svc := newProgressService(env)
  ctx := context.Background()
  userID := uuid.New()
  seeded, concepts := env.seedPopulatedRoadmap(t, userID, 3)

  row, err := svc.UpdateStepProgress(ctx, userID, seeded.ID, concepts[0].ID, types.ProgressCompleted)
  if err != nil {
    t.Fatalf("update: %v", err)
  }
  if row.Status != types.ProgressCompleted {
    t.Fatalf("status: want=%v got=%v", types.ProgressCompleted, row.Status)
  }
  if row.CompletedAt == nil {
    t.Fatalf("expected completed_at to be set")
  }

  // Moving back to IN_PROGRESS clears the completion stamp.
  row, err = svc.UpdateStepProgress(ctx, userID, seeded.ID, concepts[0].ID, types.ProgressInProgress)
  if err != nil {
    t.Fatalf("update back: %v", err)
  }
  rows, err := env.progressRepo.GetByUserAndRoadmap(ctx, nil, userID, seeded.ID)
  if err != nil {
    t.Fatalf("load progress: %v", err)
  }
  if len(rows) != 1 {
    t.Fatalf("upsert should keep one row per concept, got %d", len(rows))
  }
  if rows[0].Status != types.ProgressInProgress || rows[0].CompletedAt != nil {
    t.Fatalf("want IN_PROGRESS with nil completed_at, got %v / %v", rows[0].Status, rows[0].CompletedAt)
  }
}

func TestUpdateStepProgress_RejectsUnknownStatus(t *testing.T) {
  env := newTestEnv(t)
  svc := newProgressService(env)
  ctx := context.Background()
  userID := uuid.New()
  seeded, concepts := env.seedPopulatedRoadmap(t, userID, 1)

  _, err := svc.UpdateStepProgress(ctx, userID, seeded.ID, concepts[0].ID, "DONE")
  if !IsValidation(err) {
    t.Fatalf("want validation error, got %v", err)
  }
}

func TestUpdateStepProgress_ConceptOutsideRoadmap_NotFound(t *testing.T) {
  env := newTestEnv(t)
  svc := newProgressService(env)
  ctx := context.Background()
  userID := uuid.New()
  seeded, _ := env.seedPopulatedRoadmap(t, userID, 1)

  _, err := svc.UpdateStepProgress(ctx, userID, seeded.ID, uuid.New(), types.ProgressCompleted)
  if !IsNotFound(err) {
    t.Fatalf("want not found, got %v", err)
  }
}

func TestGetUserRoadmaps_BatchedSummaries(t *testing.T) {
  env := newTestEnv(t)
  svc := newProgressService(env)
  ctx := context.Background()
  userID := uuid.New()

  first, firstConcepts := env.seedPopulatedRoadmap(t, userID, 4)
  second, _ := env.seedPopulatedRoadmap(t, userID, 2)

  if _, err := svc.UpdateStepProgress(ctx, userID, first.ID, firstConcepts[0].ID, types.ProgressCompleted); err != nil {
    t.Fatalf("progress: %v", err)
  }
  if _, err := svc.UpdateStepProgress(ctx, userID, first.ID, firstConcepts[1].ID, types.ProgressCompleted); err != nil {
    t.Fatalf("progress: %v", err)
  }
  if _, err := svc.UpdateStepProgress(ctx, userID, first.ID, firstConcepts[2].ID, types.ProgressSkipped); err != nil {
    t.Fatalf("progress: %v", err)
  }

  out, err := svc.GetUserRoadmaps(ctx, userID)
  if err != nil {
    t.Fatalf("list: %v", err)
  }
  if len(out) != 2 {
    t.Fatalf("roadmaps: want=2 got=%d", len(out))
  }

  byID := make(map[uuid.UUID]*RoadmapWithProgress, len(out))
  for _, r := range out {
    byID[r.Roadmap.ID] = r
  }

  fs := byID[first.ID].Summary
  if fs.TotalSteps != 4 || fs.CompletedSteps != 2 || fs.SkippedSteps != 1 || fs.InProgressSteps != 0 {
    t.Fatalf("first summary wrong: %+v", fs)
  }
  if fs.ProgressPercentage != 50.0 {
    t.Fatalf("percentage: want=50 got=%v", fs.ProgressPercentage)
  }

  // No progress rows at all still yields a zeroed summary sized by steps.
  ss := byID[second.ID].Summary
  if ss.TotalSteps != 2 || ss.CompletedSteps != 0 || ss.ProgressPercentage != 0 {
    t.Fatalf("second summary wrong: %+v", ss)
  }
}

func TestGetUserRoadmapByID_StepProgressMap(t *testing.T) {
  env := newTestEnv(t)
  svc := newProgressService(env)
  ctx := context.Background()
  userID := uuid.New()
  seeded, concepts := env.seedPopulatedRoadmap(t, userID, 3)

  if _, err := svc.UpdateStepProgress(ctx, userID, seeded.ID, concepts[1].ID, types.ProgressInProgress); err != nil {
    t.Fatalf("progress: %v", err)
  }

  out, err := svc.GetUserRoadmapByID(ctx, userID, seeded.ID)
  if err != nil {
    t.Fatalf("get: %v", err)
  }
  if len(out.Roadmap.Steps) != 3 {
    t.Fatalf("steps: want=3 got=%d", len(out.Roadmap.Steps))
  }
  if got := out.StepProgress[concepts[1].ID]; got != types.ProgressInProgress {
    t.Fatalf("step progress: want=%v got=%v", types.ProgressInProgress, got)
  }
  if _, ok := out.StepProgress[concepts[0].ID]; ok {
    t.Fatalf("untouched concepts must be absent from the map")
  }
  if out.Summary.TotalSteps != 3 || out.Summary.InProgressSteps != 1 {
    t.Fatalf("summary wrong: %+v", out.Summary)
  }
}

func TestGetUserRoadmaps_ProgressIsPerUser(t *testing.T) {
  env := newTestEnv(t)
  svc := newProgressService(env)
  ctx := context.Background()
  owner := uuid.New()
  seeded, concepts := env.seedPopulatedRoadmap(t, owner, 2)

  if _, err := svc.UpdateStepProgress(ctx, owner, seeded.ID, concepts[0].ID, types.ProgressCompleted); err != nil {
    t.Fatalf("progress: %v", err)
  }

  // A different user's view of their own (empty) roadmap list is unaffected.
  out, err := svc.GetUserRoadmaps(ctx, uuid.New())
  if err != nil {
    t.Fatalf("list: %v", err)
  }
  if len(out) != 0 {
    t.Fatalf("want no roadmaps for other user, got %d", len(out))
  }
}
