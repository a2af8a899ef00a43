package services

import (
  "context"
  "fmt"
  "testing"
  "time"

  "github.com/google/uuid"
  "gorm.io/driver/sqlite"
  "gorm.io/gorm"
  gormlogger "gorm.io/gorm/logger"

  "github.com/RodAcevedoF/sagepoint-sub001/internal/logger"
  "github.com/RodAcevedoF/sagepoint-sub001/internal/repos"
  "github.com/RodAcevedoF/sagepoint-sub001/internal/types"
)

// Postgres-only defaults like now() don't translate to sqlite, so the test
// schema is spelled out instead of auto-migrated. Services always set
// timestamps explicitly, so no defaults are needed here.
var testSchema = []string{
  `CREATE TABLE roadmap (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    document_id TEXT,
    title TEXT NOT NULL,
    description TEXT,
    generation_status TEXT NOT NULL,
    failure_reason TEXT,
    metadata TEXT,
    created_at DATETIME,
    updated_at DATETIME,
    deleted_at DATETIME
  )`,
  `CREATE TABLE concept (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    description TEXT,
    topic_id TEXT,
    document_id TEXT,
    created_at DATETIME,
    updated_at DATETIME,
    deleted_at DATETIME
  )`,
  `CREATE TABLE roadmap_step (
    id TEXT PRIMARY KEY,
    roadmap_id TEXT NOT NULL,
    concept_id TEXT NOT NULL,
    step_order INTEGER NOT NULL,
    learning_objective TEXT,
    difficulty TEXT NOT NULL,
    estimated_duration_minutes INTEGER,
    rationale TEXT,
    created_at DATETIME,
    updated_at DATETIME,
    deleted_at DATETIME
  )`,
  `CREATE TABLE concept_relation (
    id TEXT PRIMARY KEY,
    from_concept_id TEXT NOT NULL,
    to_concept_id TEXT NOT NULL,
    relation_type TEXT NOT NULL,
    created_at DATETIME,
    UNIQUE(from_concept_id, to_concept_id, relation_type)
  )`,
  `CREATE TABLE user_roadmap_progress (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    roadmap_id TEXT NOT NULL,
    concept_id TEXT NOT NULL,
    status TEXT NOT NULL,
    completed_at DATETIME,
    metadata TEXT,
    created_at DATETIME,
    updated_at DATETIME,
    deleted_at DATETIME,
    UNIQUE(user_id, roadmap_id, concept_id)
  )`,
  `CREATE TABLE resource (
    id TEXT PRIMARY KEY,
    concept_id TEXT NOT NULL,
    roadmap_id TEXT NOT NULL,
    title TEXT NOT NULL,
    url TEXT NOT NULL,
    resource_type TEXT NOT NULL,
    description TEXT,
    provider TEXT,
    estimated_duration_minutes INTEGER,
    difficulty TEXT,
    discovery_order INTEGER NOT NULL DEFAULT 0,
    created_at DATETIME,
    updated_at DATETIME,
    deleted_at DATETIME
  )`,
  `CREATE TABLE step_quiz_attempt (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    roadmap_id TEXT NOT NULL,
    concept_id TEXT NOT NULL,
    questions TEXT NOT NULL,
    answers TEXT,
    score REAL NOT NULL DEFAULT 0,
    total_questions INTEGER NOT NULL DEFAULT 0,
    correct_answers INTEGER NOT NULL DEFAULT 0,
    passed INTEGER NOT NULL DEFAULT 0,
    completed_at DATETIME,
    created_at DATETIME,
    updated_at DATETIME,
    deleted_at DATETIME
  )`,
  `CREATE TABLE roadmap_generation_run (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    roadmap_id TEXT NOT NULL,
    topic TEXT NOT NULL,
    user_context TEXT,
    status TEXT NOT NULL,
    stage TEXT NOT NULL,
    progress INTEGER NOT NULL DEFAULT 0,
    attempts INTEGER NOT NULL DEFAULT 0,
    error TEXT,
    last_error_at DATETIME,
    locked_at DATETIME,
    heartbeat_at DATETIME,
    created_at DATETIME,
    updated_at DATETIME,
    deleted_at DATETIME
  )`,
}

type testEnv struct {
  db           *gorm.DB
  log          *logger.Logger
  roadmapRepo  repos.RoadmapRepo
  stepRepo     repos.RoadmapStepRepo
  conceptRepo  repos.ConceptRepo
  relationRepo repos.ConceptRelationRepo
  progressRepo repos.ProgressRepo
  resourceRepo repos.ResourceRepo
  attemptRepo  repos.StepQuizAttemptRepo
  runRepo      repos.GenerationRunRepo
}

func newTestEnv(t *testing.T) *testEnv {
  t.Helper()

  // Named shared-cache DB so every pooled connection sees the same data;
  // unique per test so parallel tests stay isolated.
  dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
  db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
    Logger: gormlogger.Default.LogMode(gormlogger.Silent),
  })
  if err != nil {
    t.Fatalf("open sqlite: %v", err)
  }
  for _, stmt := range testSchema {
    if err := db.Exec(stmt).Error; err != nil {
      t.Fatalf("create schema: %v", err)
    }
  }

  log, err := logger.New("test")
  if err != nil {
    t.Fatalf("init logger: %v", err)
  }

  return &testEnv{
    db:           db,
    log:          log,
    roadmapRepo:  repos.NewRoadmapRepo(db, log),
    stepRepo:     repos.NewRoadmapStepRepo(db, log),
    conceptRepo:  repos.NewConceptRepo(db, log),
    relationRepo: repos.NewConceptRelationRepo(db, log),
    progressRepo: repos.NewProgressRepo(db, log),
    resourceRepo: repos.NewResourceRepo(db, log),
    attemptRepo:  repos.NewStepQuizAttemptRepo(db, log),
    runRepo:      repos.NewGenerationRunRepo(db, log),
  }
}

// seedPopulatedRoadmap writes a populated roadmap with n steps, each step
// bound to its own concept, orders 0..n-1.
func (env *testEnv) seedPopulatedRoadmap(t *testing.T, userID uuid.UUID, n int) (*types.Roadmap, []*types.Concept) {
  t.Helper()
  ctx := context.Background()
  now := time.Now()

  roadmap := &types.Roadmap{
    ID:               uuid.New(),
    UserID:           userID,
    Title:            "Distributed Systems",
    GenerationStatus: types.RoadmapStatusPopulated,
    CreatedAt:        now,
    UpdatedAt:        now,
  }
  if _, err := env.roadmapRepo.Create(ctx, nil, []*types.Roadmap{roadmap}); err != nil {
    t.Fatalf("seed roadmap: %v", err)
  }

  concepts := make([]*types.Concept, 0, n)
  steps := make([]*types.RoadmapStep, 0, n)
  for i := 0; i < n; i++ {
    c := &types.Concept{
      ID:          uuid.New(),
      Name:        fmt.Sprintf("Concept %d", i),
      Description: fmt.Sprintf("Description %d", i),
      CreatedAt:   now,
      UpdatedAt:   now,
    }
    concepts = append(concepts, c)
    steps = append(steps, &types.RoadmapStep{
      ID:         uuid.New(),
      RoadmapID:  roadmap.ID,
      ConceptID:  c.ID,
      Order:      i,
      Difficulty: types.DifficultyBeginner,
      CreatedAt:  now,
      UpdatedAt:  now,
    })
  }
  if _, err := env.conceptRepo.Create(ctx, nil, concepts); err != nil {
    t.Fatalf("seed concepts: %v", err)
  }
  if _, err := env.stepRepo.Create(ctx, nil, steps); err != nil {
    t.Fatalf("seed steps: %v", err)
  }
  return roadmap, concepts
}

// fakeGenerationClient lets each test script the generation backend.
type fakeGenerationClient struct {
  extractFn  func(topic string) (*ConceptExtraction, error)
  orderFn    func(names []string) ([]string, error)
  expandFn   func(name string) ([]SubConcept, error)
  quizFn     func(contextText string, count int, difficulty string) ([]GeneratedQuestion, error)
  discoverFn func(conceptName string, maxResults int) ([]ResourceCandidate, error)
}

func (f *fakeGenerationClient) ExtractConcepts(ctx context.Context, topic string, userContext *UserContext) (*ConceptExtraction, error) {
  if f.extractFn == nil {
    return nil, fmt.Errorf("extract not scripted")
  }
  return f.extractFn(topic)
}

func (f *fakeGenerationClient) OrderConcepts(ctx context.Context, conceptNames []string, relations []ExtractedRelation, userContext *UserContext) ([]string, error) {
  if f.orderFn == nil {
    return conceptNames, nil
  }
  return f.orderFn(conceptNames)
}

func (f *fakeGenerationClient) ExpandConcept(ctx context.Context, name, description string, siblings []string, userContext *UserContext) ([]SubConcept, error) {
  if f.expandFn == nil {
    return nil, fmt.Errorf("expand not scripted")
  }
  return f.expandFn(name)
}

func (f *fakeGenerationClient) GenerateQuiz(ctx context.Context, contextText string, conceptNames []string, count int, difficulty string) ([]GeneratedQuestion, error) {
  if f.quizFn == nil {
    return nil, fmt.Errorf("quiz not scripted")
  }
  return f.quizFn(contextText, count, difficulty)
}

func (f *fakeGenerationClient) DiscoverResources(ctx context.Context, conceptName, description string, maxResults int, difficulty string) ([]ResourceCandidate, error) {
  if f.discoverFn == nil {
    return nil, fmt.Errorf("discover not scripted")
  }
  return f.discoverFn(conceptName, maxResults)
}
