package services

import (
  "bytes"
  "context"
  "encoding/json"
  "io"
  "net/http"
  "strconv"
  "strings"
  "time"

  "github.com/wanderplan/wanderplan-backend/internal/logger"
  "github.com/wanderplan/wanderplan-backend/internal/utils"
)

const openAIProviderName = "openai"

type openAIProvider struct {
  log        *logger.Logger
  baseURL    string
  apiKey     string
  model      string
  httpClient *http.Client
}

// NewOpenAIProvider builds the OpenAI adapter. A missing API key does not
// fail construction; the provider just reports itself unavailable so the
// fallback chain skips it.
func NewOpenAIProvider(log *logger.Logger) ItineraryProvider {
  apiKey := strings.TrimSpace(utils.GetEnv("OPENAI_API_KEY", "", nil))
  baseURL := utils.GetEnv("OPENAI_BASE_URL", "https://api.openai.com", log)
  model := utils.GetEnv("OPENAI_MODEL", "gpt-4o-mini", log)

  timeoutSec := utils.GetEnvAsInt("OPENAI_TIMEOUT_SECONDS", 120, log)
  if timeoutSec <= 0 {
    timeoutSec = 120
  }

  return &openAIProvider{
    log:        log.With("service", "OpenAIProvider"),
    baseURL:    baseURL,
    apiKey:     apiKey,
    model:      model,
    httpClient: &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
  }
}

func (p *openAIProvider) Name() string { return openAIProviderName }

func (p *openAIProvider) Available() bool { return p.apiKey != "" }

type openAIChatRequest struct {
  Model    string          `json:"model"`
  Messages []openAIMessage `json:"messages"`
}

type openAIMessage struct {
  Role    string `json:"role"`
  Content string `json:"content"`
}

type openAIChatResponse struct {
  Choices []struct {
    Message struct {
      Content string `json:"content"`
    } `json:"message"`
  } `json:"choices"`
  Usage struct {
    TotalTokens int `json:"total_tokens"`
  } `json:"usage"`
}

func (p *openAIProvider) Generate(ctx context.Context, prompt string, model string) (*ProviderResponse, error) {
  if !p.Available() {
    return nil, &ProviderError{Provider: p.Name(), Message: "missing OPENAI_API_KEY"}
  }
  if model == "" {
    model = p.model
  }

  reqBody := openAIChatRequest{
    Model: model,
    Messages: []openAIMessage{
      {Role: "system", Content: "You are a travel planning assistant that writes detailed day-by-day itineraries."},
      {Role: "user", Content: prompt},
    },
  }

  var buf bytes.Buffer
  if err := json.NewEncoder(&buf).Encode(reqBody); err != nil {
    return nil, err
  }

  req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/chat/completions", &buf)
  if err != nil {
    return nil, err
  }
  req.Header.Set("Authorization", "Bearer "+p.apiKey)
  req.Header.Set("Content-Type", "application/json")

  resp, err := p.httpClient.Do(req)
  if err != nil {
    return nil, &ProviderError{Provider: p.Name(), Message: err.Error(), Transient: true}
  }
  raw, readErr := io.ReadAll(resp.Body)
  _ = resp.Body.Close()
  if readErr != nil {
    return nil, &ProviderError{Provider: p.Name(), Message: readErr.Error(), Transient: true}
  }

  if resp.StatusCode < 200 || resp.StatusCode >= 300 {
    return nil, &ProviderError{
      Provider:   p.Name(),
      StatusCode: resp.StatusCode,
      Message:    truncateBody(raw),
      Transient:  isRetryableHTTP(resp.StatusCode),
    }
  }

  var out openAIChatResponse
  if err := json.Unmarshal(raw, &out); err != nil {
    return nil, &ProviderError{Provider: p.Name(), Message: "decode response: " + err.Error()}
  }
  if len(out.Choices) == 0 || strings.TrimSpace(out.Choices[0].Message.Content) == "" {
    return nil, &ProviderError{Provider: p.Name(), Message: "empty completion"}
  }

  return &ProviderResponse{
    Text:       out.Choices[0].Message.Content,
    Model:      model,
    TokenCount: out.Usage.TotalTokens,
  }, nil
}

func truncateBody(raw []byte) string {
  const max = 512
  s := string(raw)
  if len(s) > max {
    return s[:max] + "... (" + strconv.Itoa(len(s)) + " bytes)"
  }
  return s
}
