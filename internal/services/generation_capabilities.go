package services

import (
  "context"
  "encoding/json"
  "fmt"
  "strings"

  "github.com/RodAcevedoF/sagepoint-sub001/internal/logger"
)

type generationClient struct {
  log  *logger.Logger
  chat jsonChatClient
}

func userContextLine(uc *UserContext) string {
  if uc == nil {
    return ""
  }
  parts := []string{}
  if strings.TrimSpace(uc.ExperienceLevel) != "" {
    parts = append(parts, fmt.Sprintf("Learner experience level: %s.", uc.ExperienceLevel))
  }
  if strings.TrimSpace(uc.Goal) != "" {
    parts = append(parts, fmt.Sprintf("Learner goal: %s.", uc.Goal))
  }
  return strings.Join(parts, " ")
}

func (g *generationClient) ExtractConcepts(ctx context.Context, topic string, userContext *UserContext) (*ConceptExtraction, error) {
  schema := map[string]any{
    "type": "object",
    "properties": map[string]any{
      "concepts": map[string]any{
        "type": "array",
        "items": map[string]any{
          "type": "object",
          "properties": map[string]any{
            "name":               map[string]any{"type": "string"},
            "description":        map[string]any{"type": "string"},
            "learning_objective": map[string]any{"type": "string"},
            "difficulty":         map[string]any{"type": "string", "enum": []string{"beginner", "intermediate", "advanced", "expert"}},
            "estimated_minutes":  map[string]any{"type": "integer"},
            "rationale":          map[string]any{"type": "string"},
          },
          "required":             []string{"name", "description", "learning_objective", "difficulty", "estimated_minutes", "rationale"},
          "additionalProperties": false,
        },
      },
      "relations": map[string]any{
        "type": "array",
        "items": map[string]any{
          "type": "object",
          "properties": map[string]any{
            "from": map[string]any{"type": "string"},
            "to":   map[string]any{"type": "string"},
            "type": map[string]any{"type": "string", "enum": []string{"DEPENDS_ON", "NEXT_STEP", "RELATED_TO"}},
          },
          "required":             []string{"from", "to", "type"},
          "additionalProperties": false,
        },
      },
    },
    "required":             []string{"concepts", "relations"},
    "additionalProperties": false,
  }

  prompt := fmt.Sprintf("Topic: %s\n%s\nBreak the topic into the concepts a learner must cover and the directed relations between them. Use DEPENDS_ON when one concept requires another first, NEXT_STEP for natural continuation, RELATED_TO for lateral links. Relation endpoints must use the exact concept names you return.", topic, userContextLine(userContext))

  out, err := g.chat.GenerateJSON(ctx,
    "You decompose learning topics into concept graphs for curriculum planning.",
    prompt,
    "concept_extraction",
    schema,
  )
  if err != nil {
    return nil, err
  }

  extraction := &ConceptExtraction{}
  conceptsAny, ok := out["concepts"].([]any)
  if !ok {
    return nil, fmt.Errorf("concept extraction: concepts missing or wrong type")
  }
  for _, raw := range conceptsAny {
    m, ok := raw.(map[string]any)
    if !ok {
      continue
    }
    name := strings.TrimSpace(fmt.Sprint(m["name"]))
    if name == "" {
      continue
    }
    extraction.Concepts = append(extraction.Concepts, ExtractedConcept{
      Name:              name,
      Description:       fmt.Sprint(m["description"]),
      LearningObjective: fmt.Sprint(m["learning_objective"]),
      Difficulty:        normalizeDifficulty(fmt.Sprint(m["difficulty"])),
      EstimatedDuration: intFromAny(m["estimated_minutes"], 0),
      Rationale:         fmt.Sprint(m["rationale"]),
    })
  }

  if relsAny, ok := out["relations"].([]any); ok {
    for _, raw := range relsAny {
      m, ok := raw.(map[string]any)
      if !ok {
        continue
      }
      relType := normalizeRelationType(fmt.Sprint(m["type"]))
      if relType == "" {
        continue
      }
      extraction.Relations = append(extraction.Relations, ExtractedRelation{
        FromName: strings.TrimSpace(fmt.Sprint(m["from"])),
        ToName:   strings.TrimSpace(fmt.Sprint(m["to"])),
        Type:     relType,
      })
    }
  }

  return extraction, nil
}

func (g *generationClient) OrderConcepts(ctx context.Context, conceptNames []string, relations []ExtractedRelation, userContext *UserContext) ([]string, error) {
  schema := map[string]any{
    "type": "object",
    "properties": map[string]any{
      "ordered_names": map[string]any{
        "type":  "array",
        "items": map[string]any{"type": "string"},
      },
    },
    "required":             []string{"ordered_names"},
    "additionalProperties": false,
  }

  relLines := make([]string, 0, len(relations))
  for _, r := range relations {
    relLines = append(relLines, fmt.Sprintf("%s -%s-> %s", r.FromName, r.Type, r.ToName))
  }

  prompt := fmt.Sprintf(
    "Concepts:\n%s\n\nRelations:\n%s\n\n%s\nOrder the concepts into a learning path where prerequisites come before what depends on them. Only include names from the concept list. Omit any concept you cannot confidently place.",
    strings.Join(conceptNames, "\n"), strings.Join(relLines, "\n"), userContextLine(userContext),
  )

  out, err := g.chat.GenerateJSON(ctx,
    "You order concepts into coherent learning paths.",
    prompt,
    "concept_ordering",
    schema,
  )
  if err != nil {
    return nil, err
  }

  known := map[string]bool{}
  for _, n := range conceptNames {
    known[strings.ToLower(strings.TrimSpace(n))] = true
  }

  ordered := make([]string, 0, len(conceptNames))
  seen := map[string]bool{}
  for _, raw := range toStringSlice(out["ordered_names"]) {
    key := strings.ToLower(strings.TrimSpace(raw))
    if !known[key] || seen[key] {
      continue
    }
    seen[key] = true
    ordered = append(ordered, strings.TrimSpace(raw))
  }
  return ordered, nil
}

func (g *generationClient) ExpandConcept(ctx context.Context, name, description string, siblings []string, userContext *UserContext) ([]SubConcept, error) {
  schema := map[string]any{
    "type": "object",
    "properties": map[string]any{
      "sub_concepts": map[string]any{
        "type": "array",
        "items": map[string]any{
          "type": "object",
          "properties": map[string]any{
            "name":               map[string]any{"type": "string"},
            "description":        map[string]any{"type": "string"},
            "learning_objective": map[string]any{"type": "string"},
            "difficulty":         map[string]any{"type": "string", "enum": []string{"beginner", "intermediate", "advanced", "expert"}},
            "estimated_minutes":  map[string]any{"type": "integer"},
          },
          "required":             []string{"name", "description", "learning_objective", "difficulty", "estimated_minutes"},
          "additionalProperties": false,
        },
      },
    },
    "required":             []string{"sub_concepts"},
    "additionalProperties": false,
  }

  prompt := fmt.Sprintf(
    "Concept: %s\nDescription: %s\nOther steps in the roadmap: %s\n%s\nBreak the concept into 3-5 ordered sub-concepts a learner should work through, from first to last. Do not repeat the other roadmap steps.",
    name, description, strings.Join(siblings, ", "), userContextLine(userContext),
  )

  out, err := g.chat.GenerateJSON(ctx,
    "You break a learning concept into a short ordered sequence of sub-concepts.",
    prompt,
    "concept_expansion",
    schema,
  )
  if err != nil {
    return nil, err
  }

  subsAny, ok := out["sub_concepts"].([]any)
  if !ok {
    return nil, fmt.Errorf("concept expansion: sub_concepts missing or wrong type")
  }

  subs := make([]SubConcept, 0, len(subsAny))
  for _, raw := range subsAny {
    m, ok := raw.(map[string]any)
    if !ok {
      continue
    }
    subName := strings.TrimSpace(fmt.Sprint(m["name"]))
    if subName == "" {
      continue
    }
    subs = append(subs, SubConcept{
      Name:              subName,
      Description:       fmt.Sprint(m["description"]),
      LearningObjective: fmt.Sprint(m["learning_objective"]),
      Difficulty:        normalizeDifficulty(fmt.Sprint(m["difficulty"])),
      EstimatedDuration: intFromAny(m["estimated_minutes"], 0),
    })
    if len(subs) == 5 {
      break
    }
  }
  if len(subs) == 0 {
    return nil, fmt.Errorf("concept expansion: no usable sub-concepts returned")
  }
  return subs, nil
}

func (g *generationClient) GenerateQuiz(ctx context.Context, contextText string, conceptNames []string, count int, difficulty string) ([]GeneratedQuestion, error) {
  if count <= 0 {
    count = 3
  }

  schema := map[string]any{
    "type": "object",
    "properties": map[string]any{
      "questions": map[string]any{
        "type": "array",
        "items": map[string]any{
          "type": "object",
          "properties": map[string]any{
            "prompt":        map[string]any{"type": "string"},
            "options":       map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
            "correct_index": map[string]any{"type": "integer"},
            "explanation":   map[string]any{"type": "string"},
          },
          "required":             []string{"prompt", "options", "correct_index", "explanation"},
          "additionalProperties": false,
        },
      },
    },
    "required":             []string{"questions"},
    "additionalProperties": false,
  }

  prompt := fmt.Sprintf(
    "Step context:\n%s\n\nConcepts: %s\nDifficulty: %s\n\nGenerate exactly %d multiple-choice comprehension questions with 4 options each, grounded strictly in the step context.",
    contextText, strings.Join(conceptNames, ", "), difficulty, count,
  )

  out, err := g.chat.GenerateJSON(ctx,
    "You generate fair multiple-choice quiz questions for a learning step.",
    prompt,
    "step_quiz",
    schema,
  )
  if err != nil {
    return nil, err
  }

  qsAny, ok := out["questions"].([]any)
  if !ok {
    return nil, fmt.Errorf("step quiz: questions missing or wrong type")
  }

  questions := make([]GeneratedQuestion, 0, len(qsAny))
  for _, raw := range qsAny {
    m, ok := raw.(map[string]any)
    if !ok {
      continue
    }
    opts := toStringSlice(m["options"])
    correct := intFromAny(m["correct_index"], 0)
    if len(opts) < 2 || correct < 0 || correct >= len(opts) {
      continue
    }
    questions = append(questions, GeneratedQuestion{
      Prompt:       fmt.Sprint(m["prompt"]),
      Options:      opts,
      CorrectIndex: correct,
      Explanation:  fmt.Sprint(m["explanation"]),
    })
    if len(questions) == count {
      break
    }
  }
  if len(questions) == 0 {
    return nil, fmt.Errorf("step quiz: no usable questions returned")
  }
  return questions, nil
}

func (g *generationClient) DiscoverResources(ctx context.Context, conceptName, description string, maxResults int, difficulty string) ([]ResourceCandidate, error) {
  if maxResults <= 0 {
    maxResults = 3
  }

  schema := map[string]any{
    "type": "object",
    "properties": map[string]any{
      "resources": map[string]any{
        "type": "array",
        "items": map[string]any{
          "type": "object",
          "properties": map[string]any{
            "title":             map[string]any{"type": "string"},
            "url":               map[string]any{"type": "string"},
            "type":              map[string]any{"type": "string", "enum": []string{"article", "video", "course", "book", "documentation", "other"}},
            "description":       map[string]any{"type": "string"},
            "provider":          map[string]any{"type": "string"},
            "estimated_minutes": map[string]any{"type": "integer"},
          },
          "required":             []string{"title", "url", "type", "description", "provider", "estimated_minutes"},
          "additionalProperties": false,
        },
      },
    },
    "required":             []string{"resources"},
    "additionalProperties": false,
  }

  prompt := fmt.Sprintf(
    "Concept: %s\nDescription: %s\nTarget difficulty: %s\n\nSuggest up to %d well-known, reputable learning resources for this concept at the target difficulty. Prefer canonical sources.",
    conceptName, description, difficulty, maxResults,
  )

  out, err := g.chat.GenerateJSON(ctx,
    "You recommend high-quality learning resources for a single concept.",
    prompt,
    "resource_discovery",
    schema,
  )
  if err != nil {
    return nil, err
  }

  resAny, ok := out["resources"].([]any)
  if !ok {
    return nil, fmt.Errorf("resource discovery: resources missing or wrong type")
  }

  candidates := make([]ResourceCandidate, 0, len(resAny))
  for _, raw := range resAny {
    m, ok := raw.(map[string]any)
    if !ok {
      continue
    }
    url := strings.TrimSpace(fmt.Sprint(m["url"]))
    title := strings.TrimSpace(fmt.Sprint(m["title"]))
    if url == "" || title == "" {
      continue
    }
    candidates = append(candidates, ResourceCandidate{
      Title:             title,
      URL:               url,
      Type:              fmt.Sprint(m["type"]),
      Description:       fmt.Sprint(m["description"]),
      Provider:          fmt.Sprint(m["provider"]),
      Difficulty:        difficulty,
      EstimatedDuration: intFromAny(m["estimated_minutes"], 0),
    })
    if len(candidates) == maxResults {
      break
    }
  }
  return candidates, nil
}

// ---- shared JSON coercion helpers ----

func toStringSlice(v any) []string {
  if v == nil {
    return []string{}
  }
  a, ok := v.([]any)
  if !ok {
    if ss, ok2 := v.([]string); ok2 {
      return ss
    }
    return []string{}
  }
  out := make([]string, 0, len(a))
  for _, x := range a {
    out = append(out, fmt.Sprint(x))
  }
  return out
}

func intFromAny(v any, def int) int {
  switch t := v.(type) {
  case int:
    return t
  case float64:
    return int(t)
  case json.Number:
    i, _ := t.Int64()
    return int(i)
  default:
    return def
  }
}

func mustJSON(v any) []byte {
  b, _ := json.Marshal(v)
  return b
}
