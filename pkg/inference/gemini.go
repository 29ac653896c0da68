package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/teslashibe/go-voicecmd/internal/httpc"
)

const providerGemini = "gemini"

// Default Gemini endpoint and model.
const (
	GeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	GeminiModel   = "gemini-1.5-flash"
)

// Gemini implements Oracle for Google's Gemini generateContent REST API.
type Gemini struct {
	apiKey string
	config *Config
	http   *http.Client
	logger *slog.Logger
}

// NewGemini creates a Gemini oracle.
func NewGemini(opts ...Option) (*Gemini, error) {
	cfg := DefaultConfig()
	cfg.BaseURL = GeminiBaseURL
	cfg.Model = GeminiModel
	cfg.Apply(opts...)

	if cfg.APIKey == "" {
		return nil, WrapError(providerGemini, ErrNoAPIKey)
	}

	client := cfg.HTTPClient
	if client == nil {
		client = httpc.NewClient(cfg.Timeout)
	}

	return &Gemini{
		apiKey: cfg.APIKey,
		config: cfg,
		http:   client,
		logger: cfg.Logger.With("component", "inference.gemini"),
	}, nil
}

// Name returns "gemini".
func (g *Gemini) Name() string { return providerGemini }

// Complete sends the prompt as a single user turn.
func (g *Gemini) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()

	model := req.Model
	if model == "" {
		model = g.config.Model
	}
	gc := g.config.resolve(req.Config)

	payload := geminiRequest{
		Contents: []geminiContent{{
			Role:  "user",
			Parts: []geminiPart{{Text: req.Prompt}},
		}},
		GenerationConfig: geminiGenerationConfig{
			Temperature:     *gc.Temperature,
			TopP:            gc.TopP,
			TopK:            gc.TopK,
			MaxOutputTokens: gc.MaxTokens,
		},
		SafetySettings: req.Safety,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, WrapError(providerGemini, err)
	}

	// The key goes in a header so transport errors, which quote the URL,
	// never carry it into logs.
	url := fmt.Sprintf("%s/models/%s:generateContent",
		strings.TrimSuffix(g.config.BaseURL, "/"), model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, WrapError(providerGemini, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", g.apiKey)

	resp, err := g.http.Do(httpReq)
	if err != nil {
		return nil, WrapError(providerGemini, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, g.parseError(resp)
	}

	var result geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, WrapError(providerGemini, fmt.Errorf("decode response: %w", err))
	}

	if result.Error.Message != "" {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    result.Error.Message,
			Provider:   providerGemini,
		}
	}

	if result.PromptFeedback.BlockReason != "" {
		return nil, WrapError(providerGemini,
			fmt.Errorf("%w: %s", ErrBlocked, result.PromptFeedback.BlockReason))
	}

	if len(result.Candidates) == 0 || len(result.Candidates[0].Content.Parts) == 0 {
		if len(result.Candidates) > 0 && result.Candidates[0].FinishReason == "SAFETY" {
			return nil, WrapError(providerGemini, ErrBlocked)
		}
		return nil, WrapError(providerGemini, ErrEmptyResponse)
	}

	var text strings.Builder
	for _, p := range result.Candidates[0].Content.Parts {
		text.WriteString(p.Text)
	}

	g.logger.Debug("completion",
		"model", model,
		"finish_reason", result.Candidates[0].FinishReason,
		"latency_ms", time.Since(start).Milliseconds(),
	)

	return &CompletionResponse{
		Text:         text.String(),
		FinishReason: result.Candidates[0].FinishReason,
		Model:        model,
		LatencyMs:    time.Since(start).Milliseconds(),
	}, nil
}

// Close releases resources.
func (g *Gemini) Close() error {
	g.http.CloseIdleConnections()
	return nil
}

// parseError reads and parses an error response.
func (g *Gemini) parseError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var errResp struct {
		Error struct {
			Message string `json:"message"`
			Code    int    `json:"code"`
			Status  string `json:"status"`
		} `json:"error"`
	}

	message := string(body)
	status := ""
	if json.Unmarshal(body, &errResp) == nil && errResp.Error.Message != "" {
		message = errResp.Error.Message
		status = errResp.Error.Status
	}

	return &APIError{
		Provider:   providerGemini,
		StatusCode: resp.StatusCode,
		Status:     status,
		Message:    message,
	}
}

type geminiRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
	SafetySettings   SafetyPolicy           `json:"safetySettings,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

// topK is omitted when zero; the API treats an explicit 0 as invalid on
// some models.
type geminiGenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	TopP            float64 `json:"topP,omitempty"`
	TopK            int     `json:"topK,omitempty"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

// geminiResponse is the Gemini API response format.
type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
	Error struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// Verify Gemini implements Oracle at compile time.
var _ Oracle = (*Gemini)(nil)
