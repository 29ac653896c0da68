package interpreter

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/teslashibe/go-voicecmd/pkg/grammar"
	"github.com/teslashibe/go-voicecmd/pkg/inference"
)

const sentinel = `["error",null,null,null]`

func newTestInterpreter(t *testing.T, oracle inference.Oracle) *Interpreter {
	t.Helper()
	i, err := New(oracle)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return i
}

func TestTranslateOracleOutputs(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"plain", `["move", "forward", "50", "cm"]`, `["move","forward","50","cm"]`},
		{"json fence", "```json\n[\"scan\", null, null, null]\n```", `["scan",null,null,null]`},
		{"bare fence", "```\n[\"stop\", null, null, null]\n```", `["stop",null,null,null]`},
		{"prose", `Sure! Here is the command: ["turn", "left", "90", "degree"] Hope that helps.`, `["turn","left","90","degree"]`},
		{"batch", `[["move", "forward", "30", "cm"], ["turn", "left", "90", "degrees"]]`, `[["move","forward","30","cm"],["turn","left","90","degree"]]`},
		{"unit synonym", `["move", "forward", "20", "centimeters"]`, `["move","forward","20","cm"]`},
		{"cms", `["move", "backward", "5", "cms"]`, `["move","backward","5","cm"]`},
		{"numeric value", `["turn", "right", 45, null]`, `["turn","right","45",null]`},
		{"string null", `["move", "forward", "null", "null"]`, `["move","forward",null,null]`},
		{"stop forces nulls", `["stop", "left", "10", "cm"]`, `["stop",null,null,null]`},
		{"stop keeps earlier clauses", `[["move", "forward", "10", "cm"], ["stop", null, null, null]]`, `[["move","forward","10","cm"],["stop",null,null,null]]`},
		{"stop drops later clauses", `[["turn", "left", null, null], ["stop", null, null, null], ["move", "forward", "5", "cm"]]`, `[["turn","left",null,null],["stop",null,null,null]]`},
		{"leading stop", `[["stop", null, null, null], ["scan", null, null, null]]`, `["stop",null,null,null]`},
		{"synonym intent", `["advance", null, "40", null]`, `["move","forward","40",null]`},
		{"bracket in prose string", `Output: "[x]" then ["scan", null, null, null]`, sentinel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			i := newTestInterpreter(t, inference.NewMock(tt.text))
			got := i.Translate(context.Background(), "anything").String()
			if got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestTranslateFailuresReturnSentinel(t *testing.T) {
	tests := []struct {
		name   string
		oracle inference.Oracle
	}{
		{"empty", inference.NewMock("")},
		{"whitespace", inference.NewMock("   \n")},
		{"prose only", inference.NewMock("I am not sure what you mean.")},
		{"malformed", inference.NewMock(`["move", "forward", "50"`)},
		{"unterminated string", inference.NewMock(`["move", "forw`)},
		{"three elements", inference.NewMock(`["move", "forward", "50"]`)},
		{"five elements", inference.NewMock(`["move", "forward", "50", "cm", "fast"]`)},
		{"nested arity", inference.NewMock(`[["move", "forward", "50", "cm"], ["turn", "left"]]`)},
		{"empty array", inference.NewMock(`[]`)},
		{"object", inference.NewMock(`{"intent": "move"}`)},
		{"unknown intent", inference.NewMock(`["dance", null, null, null]`)},
		{"unknown unit", inference.NewMock(`["move", "forward", "2", "meters"]`)},
		{"non numeric value", inference.NewMock(`["move", "forward", "far", "cm"]`)},
		{"nan value", inference.NewMock(`["move", "forward", "NaN", "cm"]`)},
		{"infinite value", inference.NewMock(`["turn", "left", "-Inf", "degree"]`)},
		{"oracle error sentinel", inference.NewMock(`["error", null, null, null]`)},
		{"oracle failure", inference.WithError(errors.New("connection refused"))},
		{"oracle api error", inference.WithError(&inference.APIError{StatusCode: 503, Provider: "gemini"})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			i := newTestInterpreter(t, tt.oracle)
			got := i.Translate(context.Background(), "move forward")
			if got.String() != sentinel {
				t.Errorf("got %s, want sentinel", got)
			}
			if !got.IsError() {
				t.Error("IsError should be true")
			}
		})
	}
}

func TestTranslatePanickingOracle(t *testing.T) {
	m := inference.NewMock("")
	m.CompleteFunc = func(ctx context.Context, req *inference.CompletionRequest) (*inference.CompletionResponse, error) {
		panic("boom")
	}

	i := newTestInterpreter(t, m)
	if got := i.Translate(context.Background(), "stop").String(); got != sentinel {
		t.Errorf("got %s, want sentinel", got)
	}
}

func TestInterpretErrors(t *testing.T) {
	i := newTestInterpreter(t, inference.WithError(errors.New("down")))
	_, err := i.Interpret(context.Background(), "stop")
	if !errors.Is(err, ErrOracle) {
		t.Errorf("Expected ErrOracle, got %v", err)
	}

	i = newTestInterpreter(t, inference.NewMock("nothing here"))
	_, err = i.Interpret(context.Background(), "stop")
	if !errors.Is(err, ErrNoStructure) {
		t.Errorf("Expected ErrNoStructure, got %v", err)
	}

	i = newTestInterpreter(t, inference.NewMock(`["move"]`))
	_, err = i.Interpret(context.Background(), "stop")
	if !errors.Is(err, ErrSchema) {
		t.Errorf("Expected ErrSchema, got %v", err)
	}

	i = newTestInterpreter(t, inference.NewMock(`["move", "up", null, null]`))
	_, err = i.Interpret(context.Background(), "stop")
	if !errors.Is(err, ErrInvalid) {
		t.Errorf("Expected ErrInvalid, got %v", err)
	}

	m := inference.NewMock(`["stop", null, null, null]`)
	i = newTestInterpreter(t, m)
	_, err = i.Interpret(context.Background(), "  ")
	if !errors.Is(err, ErrEmptyTranscript) {
		t.Errorf("Expected ErrEmptyTranscript, got %v", err)
	}
	if m.CallCount("Complete") != 0 {
		t.Error("Oracle should not be called for an empty transcript")
	}
}

func TestNewRequiresOracle(t *testing.T) {
	if _, err := New(nil); !errors.Is(err, ErrNoOracle) {
		t.Errorf("Expected ErrNoOracle, got %v", err)
	}
}

func TestOneOracleCallPerTranslate(t *testing.T) {
	m := inference.NewMock(`["scan", null, null, null]`)
	i := newTestInterpreter(t, m)

	i.Translate(context.Background(), "scan the area")
	if got := m.CallCount("Complete"); got != 1 {
		t.Errorf("Expected 1 oracle call, got %d", got)
	}

	m2 := inference.NewMock("garbage")
	i = newTestInterpreter(t, m2)
	i.Translate(context.Background(), "scan the area")
	if got := m2.CallCount("Complete"); got != 1 {
		t.Errorf("Expected 1 oracle call on failure (no retries), got %d", got)
	}
}

func TestRequestCarriesPromptAndSettings(t *testing.T) {
	m := inference.NewMock(`["stop", null, null, null]`)
	gc := inference.GenerationConfig{Temperature: inference.Float64(0.1), TopP: 0.95, TopK: 0, MaxTokens: 1024}
	i, err := New(m,
		WithGenerationConfig(gc),
		WithSafetyPolicy(inference.DefaultSafetyPolicy(inference.BlockNone)),
		WithModel("gemini-1.5-flash"),
	)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	i.Translate(context.Background(), "Stop Now")

	req := m.LastRequest()
	if req == nil {
		t.Fatal("Expected a request")
	}
	if !strings.HasPrefix(req.Prompt, SystemPrompt) {
		t.Error("Prompt should start with the system prompt")
	}
	if !strings.HasSuffix(req.Prompt, "\n\nCommand: stop now\nOutput:") {
		t.Errorf("Unexpected prompt tail: %q", req.Prompt[len(req.Prompt)-40:])
	}
	if req.Config != gc {
		t.Errorf("Unexpected generation config: %+v", req.Config)
	}
	if len(req.Safety) != 4 || req.Model != "gemini-1.5-flash" {
		t.Errorf("Unexpected safety/model: %+v %s", req.Safety, req.Model)
	}
}

func TestTranslateWithGrammarOracle(t *testing.T) {
	i := newTestInterpreter(t, grammar.NewOracle())
	ctx := context.Background()

	tests := []struct {
		in   string
		want string
	}{
		{"move forward 50 cm", `["move","forward","50","cm"]`},
		{"go ahead 30 cm then turn left 90 degrees", `[["move","forward","30","cm"],["turn","left","90","degree"]]`},
		{"stop now", `["stop",null,null,null]`},
		{"scan the area", `["scan",null,null,null]`},
		{"perform full scan", `["scan",null,null,null]`},
		{"advance", `["move","forward",null,null]`},
		{"retreat", `["move","backward",null,null]`},
		{"rotate left", `["turn","left",null,null]`},
		{"move forward 10 centimeters", `["move","forward","10","cm"]`},
		{"move forward 10 cms", `["move","forward","10","cm"]`},
		{"turn right 15 degrees", `["turn","right","15","degree"]`},
		{"tell me a joke", sentinel},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := i.Translate(ctx, tt.in).String(); got != tt.want {
				t.Errorf("Translate(%q) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestTranslateIdempotent(t *testing.T) {
	i := newTestInterpreter(t, grammar.NewOracle())
	ctx := context.Background()

	for _, in := range []string{
		"go ahead 30 cm then turn left 90 degrees",
		"stop now",
		"gibberish",
	} {
		first := i.Translate(ctx, in).String()
		second := i.Translate(ctx, in).String()
		if first != second {
			t.Errorf("Translate(%q) not idempotent: %s vs %s", in, first, second)
		}
	}
}
