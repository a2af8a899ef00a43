package services

import (
  "bytes"
  "context"
  "encoding/json"
  "fmt"
  "io"
  "net/http"
  "os"
  "strconv"
  "strings"
  "time"

  "github.com/RodAcevedoF/sagepoint-sub001/internal/logger"
)

// anthropicClient is the Anthropic provider variant of jsonChatClient. JSON
// conformance is enforced via a forced tool call whose input schema is the
// requested schema.
type anthropicClient struct {
  log        *logger.Logger
  baseURL    string
  apiKey     string
  model      string
  maxTokens  int
  httpClient *http.Client
}

func NewAnthropicClient(log *logger.Logger) (jsonChatClient, error) {
  apiKey := os.Getenv("ANTHROPIC_API_KEY")
  if apiKey == "" {
    return nil, fmt.Errorf("missing ANTHROPIC_API_KEY")
  }

  baseURL := os.Getenv("ANTHROPIC_BASE_URL")
  if baseURL == "" {
    baseURL = "https://api.anthropic.com"
  }

  model := os.Getenv("ANTHROPIC_MODEL")
  if model == "" {
    model = "claude-sonnet-4-5"
  }

  timeoutSec := 180
  if v := os.Getenv("ANTHROPIC_TIMEOUT_SECONDS"); v != "" {
    if parsed, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && parsed > 0 {
      timeoutSec = parsed
    }
  }

  return &anthropicClient{
    log:        log.With("service", "AnthropicClient"),
    baseURL:    baseURL,
    apiKey:     apiKey,
    model:      model,
    maxTokens:  4096,
    httpClient: &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
  }, nil
}

type anthropicMessagesRequest struct {
  Model     string `json:"model"`
  MaxTokens int    `json:"max_tokens"`
  System    string `json:"system,omitempty"`
  Messages  []struct {
    Role    string `json:"role"`
    Content string `json:"content"`
  } `json:"messages"`
  Tools []map[string]any `json:"tools,omitempty"`
  ToolChoice map[string]any `json:"tool_choice,omitempty"`
}

type anthropicMessagesResponse struct {
  Content []struct {
    Type  string          `json:"type"`
    Input json.RawMessage `json:"input,omitempty"`
  } `json:"content"`
  StopReason string `json:"stop_reason"`
}

func (c *anthropicClient) GenerateJSON(ctx context.Context, system string, user string, schemaName string, schema map[string]any) (map[string]any, error) {
  if schemaName == "" || schema == nil {
    return nil, fmt.Errorf("schemaName and schema required")
  }

  req := anthropicMessagesRequest{
    Model:     c.model,
    MaxTokens: c.maxTokens,
    System:    system,
  }
  req.Messages = []struct {
    Role    string `json:"role"`
    Content string `json:"content"`
  }{
    {Role: "user", Content: user},
  }
  req.Tools = []map[string]any{
    {
      "name":         schemaName,
      "description":  "Record the structured result.",
      "input_schema": schema,
    },
  }
  req.ToolChoice = map[string]any{"type": "tool", "name": schemaName}

  var buf bytes.Buffer
  if err := json.NewEncoder(&buf).Encode(req); err != nil {
    return nil, err
  }

  httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/v1/messages", &buf)
  if err != nil {
    return nil, err
  }
  httpReq.Header.Set("x-api-key", c.apiKey)
  httpReq.Header.Set("anthropic-version", "2023-06-01")
  httpReq.Header.Set("Content-Type", "application/json")

  resp, err := c.httpClient.Do(httpReq)
  if err != nil {
    return nil, err
  }
  raw, readErr := io.ReadAll(resp.Body)
  _ = resp.Body.Close()
  if readErr != nil {
    return nil, readErr
  }
  if resp.StatusCode < 200 || resp.StatusCode >= 300 {
    return nil, &generationHTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
  }

  var parsed anthropicMessagesResponse
  if err := json.Unmarshal(raw, &parsed); err != nil {
    return nil, fmt.Errorf("anthropic decode error: %w; raw=%s", err, string(raw))
  }

  for _, block := range parsed.Content {
    if block.Type == "tool_use" && len(block.Input) > 0 {
      var obj map[string]any
      if err := json.Unmarshal(block.Input, &obj); err != nil {
        return nil, fmt.Errorf("failed to parse tool input JSON: %w", err)
      }
      return obj, nil
    }
  }
  return nil, fmt.Errorf("no tool_use block in response (stop_reason=%s)", parsed.StopReason)
}
