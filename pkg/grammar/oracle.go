package grammar

import (
	"context"
	"strings"
	"time"

	"github.com/teslashibe/go-voicecmd/pkg/inference"
)

const providerGrammar = "grammar"

// commandMarker precedes the transcript on the last lines of a prompt.
const commandMarker = "Command:"

// Oracle answers completion requests by parsing the transcript locally.
// It ignores sampling and safety settings and never fails.
type Oracle struct{}

// NewOracle returns the offline grammar oracle.
func NewOracle() *Oracle { return &Oracle{} }

// Name returns "grammar".
func (o *Oracle) Name() string { return providerGrammar }

// Complete extracts the transcript after the last "Command:" marker and
// returns the parsed instructions as JSON text.
func (o *Oracle) Complete(ctx context.Context, req *inference.CompletionRequest) (*inference.CompletionResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, inference.WrapError(providerGrammar, err)
	}
	start := time.Now()

	return &inference.CompletionResponse{
		Text:         Parse(Transcript(req.Prompt)).String(),
		FinishReason: "stop",
		Model:        providerGrammar,
		LatencyMs:    time.Since(start).Milliseconds(),
	}, nil
}

// Close is a no-op.
func (o *Oracle) Close() error { return nil }

// Transcript pulls the spoken text out of a prompt. A prompt without the
// marker is treated as the transcript itself.
func Transcript(prompt string) string {
	idx := strings.LastIndex(prompt, commandMarker)
	if idx < 0 {
		return strings.TrimSpace(prompt)
	}
	rest := prompt[idx+len(commandMarker):]
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		rest = rest[:nl]
	}
	return strings.TrimSpace(rest)
}

// Verify Oracle implements inference.Oracle at compile time.
var _ inference.Oracle = (*Oracle)(nil)
