package services

import (
  "context"
  "encoding/json"
  "fmt"
  "time"

  "github.com/google/uuid"
  "gorm.io/datatypes"
  "gorm.io/gorm"

  "github.com/RodAcevedoF/sagepoint-sub001/internal/logger"
  "github.com/RodAcevedoF/sagepoint-sub001/internal/repos"
  "github.com/RodAcevedoF/sagepoint-sub001/internal/types"
  "github.com/RodAcevedoF/sagepoint-sub001/internal/utils"
)

// StepQuiz is what callers get back from generation: the attempt handle and
// the questions with correctness markers stripped.
type StepQuiz struct {
  AttemptID uuid.UUID                      `json:"attempt_id"`
  RoadmapID uuid.UUID                      `json:"roadmap_id"`
  ConceptID uuid.UUID                      `json:"concept_id"`
  Questions []*types.SanitizedQuizQuestion `json:"questions"`
}

// QuizResult is the graded outcome of an attempt.
type QuizResult struct {
  AttemptID      uuid.UUID `json:"attempt_id"`
  Score          float64   `json:"score"`
  TotalQuestions int       `json:"total_questions"`
  CorrectAnswers int       `json:"correct_answers"`
  Passed         bool      `json:"passed"`
}

type StepQuizService interface {
  // GenerateStepQuiz builds a quiz for one roadmap step and persists it with
  // its answer key. The returned questions never include the key.
  GenerateStepQuiz(ctx context.Context, userID uuid.UUID, roadmapID uuid.UUID, conceptID uuid.UUID, count int) (*StepQuiz, error)

  // SubmitAnswers grades against the stored key only; no generation call
  // happens here, so grading is deterministic for a given attempt.
  SubmitAnswers(ctx context.Context, userID uuid.UUID, attemptID uuid.UUID, answers []int) (*QuizResult, error)
}

type stepQuizService struct {
  db            *gorm.DB
  log           *logger.Logger
  roadmapRepo   repos.RoadmapRepo
  stepRepo      repos.RoadmapStepRepo
  attemptRepo   repos.StepQuizAttemptRepo
  ai            GenerationClient
  passThreshold float64
}

func NewStepQuizService(
  db *gorm.DB,
  baseLog *logger.Logger,
  roadmapRepo repos.RoadmapRepo,
  stepRepo repos.RoadmapStepRepo,
  attemptRepo repos.StepQuizAttemptRepo,
  ai GenerationClient,
) StepQuizService {
  log := baseLog.With("service", "StepQuizService")
  return &stepQuizService{
    db:            db,
    log:           log,
    roadmapRepo:   roadmapRepo,
    stepRepo:      stepRepo,
    attemptRepo:   attemptRepo,
    ai:            ai,
    passThreshold: utils.GetEnvAsFloat("QUIZ_PASS_THRESHOLD", 70.0, log),
  }
}

func (sqs *stepQuizService) GenerateStepQuiz(ctx context.Context, userID uuid.UUID, roadmapID uuid.UUID, conceptID uuid.UUID, count int) (*StepQuiz, error) {
  if count <= 0 {
    count = 3
  }

  roadmaps, err := sqs.roadmapRepo.GetByIDs(ctx, nil, []uuid.UUID{roadmapID})
  if err != nil {
    return nil, fmt.Errorf("load roadmap: %w", err)
  }
  if len(roadmaps) == 0 || roadmaps[0] == nil || roadmaps[0].UserID != userID {
    return nil, fmt.Errorf("%w: roadmap %s", ErrNotFound, roadmapID)
  }

  step, err := sqs.stepRepo.GetByRoadmapAndConcept(ctx, nil, roadmapID, conceptID)
  if err != nil {
    return nil, fmt.Errorf("load step: %w", err)
  }
  if step == nil || step.Concept == nil {
    return nil, fmt.Errorf("%w: concept %s is not a step of roadmap %s", ErrNotFound, conceptID, roadmapID)
  }

  contextText := step.Concept.Name
  if step.Concept.Description != "" {
    contextText += "\n" + step.Concept.Description
  }
  if step.LearningObjective != "" {
    contextText += "\nLearning objective: " + step.LearningObjective
  }

  generated, err := sqs.ai.GenerateQuiz(ctx, contextText, []string{step.Concept.Name}, count, step.Difficulty)
  if err != nil {
    return nil, fmt.Errorf("%w: generate quiz: %v", ErrGeneration, err)
  }
  if len(generated) == 0 {
    return nil, fmt.Errorf("%w: no questions generated for %q", ErrGeneration, step.Concept.Name)
  }

  stored := make([]types.QuizQuestion, 0, len(generated))
  sanitized := make([]*types.SanitizedQuizQuestion, 0, len(generated))
  for _, q := range generated {
    stored = append(stored, types.QuizQuestion{
      Prompt:       q.Prompt,
      Options:      q.Options,
      Type:         "mcq",
      Difficulty:   step.Difficulty,
      CorrectIndex: q.CorrectIndex,
      Explanation:  q.Explanation,
    })
    sanitized = append(sanitized, &types.SanitizedQuizQuestion{
      Prompt:     q.Prompt,
      Options:    q.Options,
      Type:       "mcq",
      Difficulty: step.Difficulty,
    })
  }

  now := time.Now()
  attempt := &types.StepQuizAttempt{
    ID:             uuid.New(),
    UserID:         userID,
    RoadmapID:      roadmapID,
    ConceptID:      conceptID,
    Questions:      datatypes.JSON(mustJSON(stored)),
    TotalQuestions: len(stored),
    CreatedAt:      now,
    UpdatedAt:      now,
  }
  if _, err := sqs.attemptRepo.Create(ctx, nil, []*types.StepQuizAttempt{attempt}); err != nil {
    return nil, fmt.Errorf("create quiz attempt: %w", err)
  }

  sqs.log.Debug("Step quiz generated", "roadmapID", roadmapID, "conceptID", conceptID, "questions", len(stored))
  return &StepQuiz{
    AttemptID: attempt.ID,
    RoadmapID: roadmapID,
    ConceptID: conceptID,
    Questions: sanitized,
  }, nil
}

func (sqs *stepQuizService) SubmitAnswers(ctx context.Context, userID uuid.UUID, attemptID uuid.UUID, answers []int) (*QuizResult, error) {
  attempt, err := sqs.attemptRepo.GetByID(ctx, nil, attemptID)
  if err != nil {
    return nil, fmt.Errorf("load attempt: %w", err)
  }
  if attempt == nil || attempt.UserID != userID {
    return nil, fmt.Errorf("%w: attempt %s", ErrNotFound, attemptID)
  }

  var questions []types.QuizQuestion
  if err := json.Unmarshal(attempt.Questions, &questions); err != nil {
    return nil, fmt.Errorf("decode stored questions: %w", err)
  }
  if len(answers) != len(questions) {
    return nil, fmt.Errorf("%w: expected %d answers, got %d", ErrValidation, len(questions), len(answers))
  }

  correct := 0
  for i, q := range questions {
    if answers[i] < 0 || answers[i] >= len(q.Options) {
      return nil, fmt.Errorf("%w: answer %d out of range for question %d", ErrValidation, answers[i], i)
    }
    if answers[i] == q.CorrectIndex {
      correct++
    }
  }

  score := float64(correct) / float64(len(questions)) * 100.0
  passed := score >= sqs.passThreshold
  now := time.Now()
  if err := sqs.attemptRepo.UpdateFields(ctx, nil, attemptID, map[string]interface{}{
    "answers":         datatypes.JSON(mustJSON(answers)),
    "score":           score,
    "correct_answers": correct,
    "passed":          passed,
    "completed_at":    now,
    "updated_at":      now,
  }); err != nil {
    return nil, fmt.Errorf("save grading: %w", err)
  }

  sqs.log.Debug("Step quiz graded", "attemptID", attemptID, "score", score, "passed", passed)
  return &QuizResult{
    AttemptID:      attemptID,
    Score:          score,
    TotalQuestions: len(questions),
    CorrectAnswers: correct,
    Passed:         passed,
  }, nil
}
