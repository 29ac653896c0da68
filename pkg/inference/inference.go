// Package inference provides the text-completion oracles used to translate
// transcripts into robot instructions.
//
// An Oracle takes a single prompt plus generation parameters and a safety
// policy, and returns raw text. Callers must never trust that text: the
// interpreter re-validates everything it gets back. Implementations exist for
// Google's Gemini REST API and for any OpenAI-compatible endpoint (OpenAI,
// Ollama, vLLM). Chain composes oracles with ordered fallback.
//
// Example usage:
//
//	oracle, _ := inference.NewGemini(
//	    inference.WithAPIKey(os.Getenv("GEMINI_API_KEY")),
//	    inference.WithModel("gemini-1.5-flash"),
//	)
//	defer oracle.Close()
//
//	resp, _ := oracle.Complete(ctx, &inference.CompletionRequest{
//	    Prompt: "Command: stop now\nOutput:",
//	    Config: inference.DefaultGenerationConfig(),
//	    Safety: inference.DefaultSafetyPolicy(inference.BlockNone),
//	})
package inference

import "context"

// Oracle is a text-completion backend.
type Oracle interface {
	// Name identifies the oracle in logs and errors.
	Name() string

	// Complete generates text for a single prompt.
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)

	// Close releases any resources held by the oracle.
	Close() error
}

// GenerationConfig controls sampling. A nil Temperature and zero TopP or
// MaxTokens fall back to the oracle's configured defaults. TopK zero means
// "not set".
type GenerationConfig struct {
	Temperature *float64
	TopP        float64
	TopK        int
	MaxTokens   int
}

// Float64 returns a pointer to v, for GenerationConfig.Temperature.
func Float64(v float64) *float64 { return &v }

// DefaultGenerationConfig returns near-deterministic sampling suited to a
// closed grammar.
func DefaultGenerationConfig() GenerationConfig {
	return GenerationConfig{
		Temperature: Float64(0.1),
		TopP:        0.95,
		TopK:        0,
		MaxTokens:   1024,
	}
}

// HarmCategory names a content-safety category.
type HarmCategory string

const (
	HarmHarassment       HarmCategory = "HARM_CATEGORY_HARASSMENT"
	HarmHateSpeech       HarmCategory = "HARM_CATEGORY_HATE_SPEECH"
	HarmSexuallyExplicit HarmCategory = "HARM_CATEGORY_SEXUALLY_EXPLICIT"
	HarmDangerousContent HarmCategory = "HARM_CATEGORY_DANGEROUS_CONTENT"
)

// Common safety thresholds.
const (
	BlockNone           = "BLOCK_NONE"
	BlockOnlyHigh       = "BLOCK_ONLY_HIGH"
	BlockMediumAndAbove = "BLOCK_MEDIUM_AND_ABOVE"
	BlockLowAndAbove    = "BLOCK_LOW_AND_ABOVE"
)

// SafetySetting sets the blocking threshold for one category.
type SafetySetting struct {
	Category  HarmCategory `json:"category"`
	Threshold string       `json:"threshold"`
}

// SafetyPolicy is the list of safety settings sent with a request.
// Oracles without a safety concept ignore it.
type SafetyPolicy []SafetySetting

// DefaultSafetyPolicy applies threshold to all four harm categories.
// Robot commands like "shoot" or "attack the box" should not be filtered.
func DefaultSafetyPolicy(threshold string) SafetyPolicy {
	if threshold == "" {
		threshold = BlockNone
	}
	return SafetyPolicy{
		{Category: HarmHarassment, Threshold: threshold},
		{Category: HarmHateSpeech, Threshold: threshold},
		{Category: HarmSexuallyExplicit, Threshold: threshold},
		{Category: HarmDangerousContent, Threshold: threshold},
	}
}

// CompletionRequest is a single-prompt completion.
type CompletionRequest struct {
	// Prompt is the full text sent to the model.
	Prompt string

	// Model overrides the default model.
	Model string

	// Config controls sampling.
	Config GenerationConfig

	// Safety is the content filter policy.
	Safety SafetyPolicy
}

// CompletionResponse is the raw oracle output.
type CompletionResponse struct {
	// Text is the generated text, unvalidated.
	Text string

	// FinishReason indicates why generation stopped.
	FinishReason string

	// Model used for generation.
	Model string

	// LatencyMs is the response time in milliseconds.
	LatencyMs int64
}
