package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com"

// GeminiProvider talks to the Generative Language REST API. Model names carry
// the "models/" resource prefix, e.g. "models/gemini-1.5-flash".
type GeminiProvider struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func NewGeminiProvider(apiKey, baseURL string, timeout time.Duration) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: %w", ErrMissingAPIKey)
	}
	if baseURL == "" {
		baseURL = defaultGeminiBaseURL
	}
	return &GeminiProvider{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

func (p *GeminiProvider) Name() string { return "gemini" }

func (p *GeminiProvider) Models() []string {
	return []string{
		"models/gemini-1.5-pro",
		"models/gemini-1.5-flash",
		"models/gemini-2.0-flash",
		"models/gemma-2-9b-it",
	}
}

type geminiRequest struct {
	Contents          []geminiContent         `json:"contents"`
	SystemInstruction *geminiContent          `json:"systemInstruction,omitempty"`
	GenerationConfig  *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenerationConfig struct {
	Temperature     float64  `json:"temperature,omitempty"`
	MaxOutputTokens int      `json:"maxOutputTokens,omitempty"`
	TopP            float64  `json:"topP,omitempty"`
	StopSequences   []string `json:"stopSequences,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (p *GeminiProvider) ChatCompletion(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	start := time.Now()

	gReq := geminiRequest{}
	for _, m := range req.Messages {
		switch m.Role {
		case "system":
			gReq.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: m.Content}}}
		case "assistant":
			gReq.Contents = append(gReq.Contents, geminiContent{Role: "model", Parts: []geminiPart{{Text: m.Content}}})
		default:
			gReq.Contents = append(gReq.Contents, geminiContent{Role: "user", Parts: []geminiPart{{Text: m.Content}}})
		}
	}
	if req.Temperature > 0 || req.MaxTokens > 0 || req.TopP > 0 || len(req.Stop) > 0 {
		gReq.GenerationConfig = &geminiGenerationConfig{
			Temperature:     req.Temperature,
			MaxOutputTokens: req.MaxTokens,
			TopP:            req.TopP,
			StopSequences:   req.Stop,
		}
	}

	body, err := json.Marshal(gReq)
	if err != nil {
		return nil, fmt.Errorf("gemini marshal: %w", err)
	}

	model := req.Model
	if !strings.HasPrefix(model, "models/") {
		model = "models/" + model
	}
	endpoint := fmt.Sprintf("%s/v1beta/%s:generateContent?key=%s", p.baseURL, model, url.QueryEscape(p.apiKey))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("gemini request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("gemini chat: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("gemini read: %w", err)
	}

	var gResp geminiResponse
	if err := json.Unmarshal(raw, &gResp); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("gemini chat: status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
		}
		return nil, fmt.Errorf("gemini decode: %w", err)
	}
	if gResp.Error != nil {
		return nil, fmt.Errorf("gemini chat: status %d: %s", resp.StatusCode, gResp.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gemini chat: status %d", resp.StatusCode)
	}
	if len(gResp.Candidates) == 0 {
		return nil, fmt.Errorf("gemini chat: no candidates returned")
	}

	var content strings.Builder
	for _, part := range gResp.Candidates[0].Content.Parts {
		content.WriteString(part.Text)
	}

	usage := gResp.UsageMetadata
	return &ChatResponse{
		Provider:     "gemini",
		Model:        req.Model,
		Content:      strings.TrimSpace(content.String()),
		InputTokens:  usage.PromptTokenCount,
		OutputTokens: usage.CandidatesTokenCount,
		TotalTokens:  usage.TotalTokenCount,
		CostUSD:      CalculateCost(req.Model, usage.PromptTokenCount, usage.CandidatesTokenCount),
		LatencyMs:    time.Since(start).Milliseconds(),
	}, nil
}
