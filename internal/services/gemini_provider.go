package services

import (
  "bytes"
  "context"
  "encoding/json"
  "io"
  "net/http"
  "strings"
  "time"

  "github.com/wanderplan/wanderplan-backend/internal/logger"
  "github.com/wanderplan/wanderplan-backend/internal/utils"
)

const geminiProviderName = "gemini"

type geminiProvider struct {
  log        *logger.Logger
  baseURL    string
  apiKey     string
  model      string
  httpClient *http.Client
}

func NewGeminiProvider(log *logger.Logger) ItineraryProvider {
  apiKey := strings.TrimSpace(utils.GetEnv("GEMINI_API_KEY", "", nil))
  baseURL := utils.GetEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com", log)
  model := utils.GetEnv("GEMINI_MODEL", "gemini-1.5-flash", log)

  timeoutSec := utils.GetEnvAsInt("GEMINI_TIMEOUT_SECONDS", 120, log)
  if timeoutSec <= 0 {
    timeoutSec = 120
  }

  return &geminiProvider{
    log:        log.With("service", "GeminiProvider"),
    baseURL:    baseURL,
    apiKey:     apiKey,
    model:      model,
    httpClient: &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
  }
}

func (p *geminiProvider) Name() string { return geminiProviderName }

func (p *geminiProvider) Available() bool { return p.apiKey != "" }

type geminiGenerateRequest struct {
  Contents []geminiContent `json:"contents"`
}

type geminiContent struct {
  Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
  Text string `json:"text"`
}

type geminiGenerateResponse struct {
  Candidates []struct {
    Content struct {
      Parts []geminiPart `json:"parts"`
    } `json:"content"`
  } `json:"candidates"`
  UsageMetadata struct {
    TotalTokenCount int `json:"totalTokenCount"`
  } `json:"usageMetadata"`
}

func (p *geminiProvider) Generate(ctx context.Context, prompt string, model string) (*ProviderResponse, error) {
  if !p.Available() {
    return nil, &ProviderError{Provider: p.Name(), Message: "missing GEMINI_API_KEY"}
  }
  if model == "" {
    model = p.model
  }

  reqBody := geminiGenerateRequest{
    Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
  }

  var buf bytes.Buffer
  if err := json.NewEncoder(&buf).Encode(reqBody); err != nil {
    return nil, err
  }

  url := p.baseURL + "/v1beta/models/" + model + ":generateContent?key=" + p.apiKey
  req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
  if err != nil {
    return nil, err
  }
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

  var out geminiGenerateResponse
  if err := json.Unmarshal(raw, &out); err != nil {
    return nil, &ProviderError{Provider: p.Name(), Message: "decode response: " + err.Error()}
  }
  if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
    return nil, &ProviderError{Provider: p.Name(), Message: "empty completion"}
  }
  text := strings.TrimSpace(out.Candidates[0].Content.Parts[0].Text)
  if text == "" {
    return nil, &ProviderError{Provider: p.Name(), Message: "empty completion"}
  }

  return &ProviderResponse{
    Text:       text,
    Model:      model,
    TokenCount: out.UsageMetadata.TotalTokenCount,
  }, nil
}
