package services

import (
  "context"
  "fmt"
  "strings"

  "github.com/RodAcevedoF/sagepoint-sub001/internal/logger"
  "github.com/RodAcevedoF/sagepoint-sub001/internal/types"
  "github.com/RodAcevedoF/sagepoint-sub001/internal/utils"
)

// UserContext carries optional learner hints through generation calls.
type UserContext struct {
  ExperienceLevel string `json:"experience_level,omitempty"`
  Goal            string `json:"goal,omitempty"`
}

type ExtractedConcept struct {
  Name              string
  Description       string
  LearningObjective string
  Difficulty        string
  EstimatedDuration int // minutes, 0 when unknown
  Rationale         string
}

type ExtractedRelation struct {
  FromName string
  ToName   string
  Type     string // DEPENDS_ON|NEXT_STEP|RELATED_TO
}

type ConceptExtraction struct {
  Concepts  []ExtractedConcept
  Relations []ExtractedRelation
}

type SubConcept struct {
  Name              string
  Description       string
  LearningObjective string
  Difficulty        string
  EstimatedDuration int
}

type GeneratedQuestion struct {
  Prompt       string
  Options      []string
  CorrectIndex int
  Explanation  string
}

type ResourceCandidate struct {
  Title             string
  URL               string
  Type              string
  Description       string
  Provider          string
  Difficulty        string
  EstimatedDuration int
}

// GenerationClient is the capability boundary to the external content
// generation backend. The pipeline treats it as an untrusted, possibly slow,
// possibly failing oracle; timeouts and retries live behind this interface.
type GenerationClient interface {
  ExtractConcepts(ctx context.Context, topic string, userContext *UserContext) (*ConceptExtraction, error)
  // OrderConcepts returns concept names in learning order. It may omit names
  // it cannot confidently place; callers append those in discovery order.
  OrderConcepts(ctx context.Context, conceptNames []string, relations []ExtractedRelation, userContext *UserContext) ([]string, error)
  ExpandConcept(ctx context.Context, name, description string, siblings []string, userContext *UserContext) ([]SubConcept, error)
  GenerateQuiz(ctx context.Context, contextText string, conceptNames []string, count int, difficulty string) ([]GeneratedQuestion, error)
  DiscoverResources(ctx context.Context, conceptName, description string, maxResults int, difficulty string) ([]ResourceCandidate, error)
}

// jsonChatClient is the one thing a provider variant has to supply: a chat
// call constrained to a JSON schema. The capability methods are built on top
// of it generically in generation_capabilities.go.
type jsonChatClient interface {
  GenerateJSON(ctx context.Context, system string, user string, schemaName string, schema map[string]any) (map[string]any, error)
}

// NewGenerationClient selects the provider variant once at startup from
// GENERATION_PROVIDER. The rest of the system depends only on the interface.
func NewGenerationClient(log *logger.Logger) (GenerationClient, error) {
  provider := strings.ToLower(strings.TrimSpace(utils.GetEnv("GENERATION_PROVIDER", "openai", log)))
  var base jsonChatClient
  var err error
  switch provider {
  case "openai":
    base, err = NewOpenAIClient(log)
  case "anthropic":
    base, err = NewAnthropicClient(log)
  default:
    return nil, fmt.Errorf("unknown GENERATION_PROVIDER %q", provider)
  }
  if err != nil {
    return nil, err
  }
  return &generationClient{log: log.With("service", "GenerationClient", "provider", provider), chat: base}, nil
}

func normalizeDifficulty(s string) string {
  switch strings.ToLower(strings.TrimSpace(s)) {
  case types.DifficultyBeginner, types.DifficultyIntermediate, types.DifficultyAdvanced, types.DifficultyExpert:
    return strings.ToLower(strings.TrimSpace(s))
  default:
    return types.DifficultyBeginner
  }
}

func normalizeRelationType(s string) string {
  switch strings.ToUpper(strings.TrimSpace(s)) {
  case types.RelationDependsOn, types.RelationNextStep, types.RelationRelatedTo:
    return strings.ToUpper(strings.TrimSpace(s))
  default:
    return ""
  }
}
