package services

import (
  "context"
  "fmt"
  "testing"

  "github.com/google/uuid"
)

func newResourceService(env *testEnv, ai GenerationClient) ResourceDiscoveryService {
  return NewResourceDiscoveryService(env.db, env.log, nil, env.roadmapRepo, env.stepRepo, env.resourceRepo, ai)
}

func discoverTwo(conceptName string, maxResults int) ([]ResourceCandidate, error) {
  return []ResourceCandidate{
    {Title: conceptName + " guide", URL: "https://example.com/" + conceptName + "/guide", Type: "article", Provider: "example"},
    {Title: conceptName + " video", URL: "https://example.com/" + conceptName + "/video", Type: "video", EstimatedDuration: 12},
  }, nil
}

func TestRefreshResources_FullReplacesEverything(t *testing.T) {
  env := newTestEnv(t)
  svc := newResourceService(env, &fakeGenerationClient{discoverFn: discoverTwo})
  ctx := context.Background()
  userID := uuid.New()
  seeded, _ := env.seedPopulatedRoadmap(t, userID, 3)

  first, err := svc.RefreshResources(ctx, userID, seeded.ID, nil)
  if err != nil {
    t.Fatalf("refresh: %v", err)
  }
  if len(first) != 6 {
    t.Fatalf("resources: want=6 got=%d", len(first))
  }

  // A second full refresh replaces, never accumulates.
  second, err := svc.RefreshResources(ctx, userID, seeded.ID, nil)
  if err != nil {
    t.Fatalf("second refresh: %v", err)
  }
  if len(second) != 6 {
    t.Fatalf("resources after second refresh: want=6 got=%d", len(second))
  }
  stored, err := svc.GetByRoadmap(ctx, userID, seeded.ID)
  if err != nil {
    t.Fatalf("load: %v", err)
  }
  if len(stored) != 6 {
    t.Fatalf("stored resources: want=6 got=%d", len(stored))
  }

  firstIDs := make(map[uuid.UUID]bool, len(first))
  for _, r := range first {
    firstIDs[r.ID] = true
  }
  for _, r := range stored {
    if firstIDs[r.ID] {
      t.Fatalf("row %s survived a full refresh", r.ID)
    }
  }
}

func TestRefreshResources_PartialLeavesOthersUntouched(t *testing.T) {
  env := newTestEnv(t)
  svc := newResourceService(env, &fakeGenerationClient{discoverFn: discoverTwo})
  ctx := context.Background()
  userID := uuid.New()
  seeded, concepts := env.seedPopulatedRoadmap(t, userID, 3)

  initial, err := svc.RefreshResources(ctx, userID, seeded.ID, nil)
  if err != nil {
    t.Fatalf("initial refresh: %v", err)
  }

  keep := make(map[uuid.UUID]bool)
  for _, r := range initial {
    if r.ConceptID != concepts[1].ID {
      keep[r.ID] = true
    }
  }

  refreshed, err := svc.RefreshResources(ctx, userID, seeded.ID, []uuid.UUID{concepts[1].ID})
  if err != nil {
    t.Fatalf("partial refresh: %v", err)
  }
  if len(refreshed) != 2 {
    t.Fatalf("partial refresh output: want=2 got=%d", len(refreshed))
  }
  for _, r := range refreshed {
    if r.ConceptID != concepts[1].ID {
      t.Fatalf("partial refresh touched concept %s", r.ConceptID)
    }
  }

  stored, err := svc.GetByRoadmap(ctx, userID, seeded.ID)
  if err != nil {
    t.Fatalf("load: %v", err)
  }
  if len(stored) != 6 {
    t.Fatalf("stored resources: want=6 got=%d", len(stored))
  }
  kept := 0
  for _, r := range stored {
    if keep[r.ID] {
      kept++
    }
  }
  if kept != 4 {
    t.Fatalf("untargeted concepts must keep their rows: want=4 got=%d", kept)
  }
}

func TestRefreshResources_ConceptOutsideRoadmap_Rejected(t *testing.T) {
  env := newTestEnv(t)
  svc := newResourceService(env, &fakeGenerationClient{discoverFn: discoverTwo})
  ctx := context.Background()
  userID := uuid.New()
  seeded, _ := env.seedPopulatedRoadmap(t, userID, 2)

  _, err := svc.RefreshResources(ctx, userID, seeded.ID, []uuid.UUID{uuid.New()})
  if !IsValidation(err) {
    t.Fatalf("want validation error, got %v", err)
  }
}

func TestRefreshResources_DiscoveryFailure_KeepsOldRows(t *testing.T) {
  env := newTestEnv(t)
  good := &fakeGenerationClient{discoverFn: discoverTwo}
  svc := newResourceService(env, good)
  ctx := context.Background()
  userID := uuid.New()
  seeded, _ := env.seedPopulatedRoadmap(t, userID, 2)

  if _, err := svc.RefreshResources(ctx, userID, seeded.ID, nil); err != nil {
    t.Fatalf("seed refresh: %v", err)
  }

  failing := newResourceService(env, &fakeGenerationClient{
    discoverFn: func(conceptName string, maxResults int) ([]ResourceCandidate, error) {
      return nil, fmt.Errorf("backend down")
    },
  })
  if _, err := failing.RefreshResources(ctx, userID, seeded.ID, nil); !IsGeneration(err) {
    t.Fatalf("want generation error, got %v", err)
  }

  stored, err := svc.GetByRoadmap(ctx, userID, seeded.ID)
  if err != nil {
    t.Fatalf("load: %v", err)
  }
  if len(stored) != 4 {
    t.Fatalf("old rows must survive a failed refresh: want=4 got=%d", len(stored))
  }
}

func TestRefreshResources_SkipsCandidatesWithoutURL(t *testing.T) {
  env := newTestEnv(t)
  svc := newResourceService(env, &fakeGenerationClient{
    discoverFn: func(conceptName string, maxResults int) ([]ResourceCandidate, error) {
      return []ResourceCandidate{
        {Title: "good", URL: "https://example.com/good", Type: "weird-type"},
        {Title: "no url"},
        {URL: "https://example.com/no-title"},
      }, nil
    },
  })
  ctx := context.Background()
  userID := uuid.New()
  seeded, _ := env.seedPopulatedRoadmap(t, userID, 1)

  out, err := svc.RefreshResources(ctx, userID, seeded.ID, nil)
  if err != nil {
    t.Fatalf("refresh: %v", err)
  }
  if len(out) != 1 {
    t.Fatalf("want 1 usable resource, got %d", len(out))
  }
  if out[0].Type != "other" {
    t.Fatalf("unknown types normalize to other, got %q", out[0].Type)
  }
}
