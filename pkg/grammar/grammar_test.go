package grammar

import (
	"context"
	"testing"

	"github.com/teslashibe/go-voicecmd/pkg/inference"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"move forward 50 cm", `["move","forward","50","cm"]`},
		{"go ahead 30 cm then turn left 90 degrees", `[["move","forward","30","cm"],["turn","left","90","degree"]]`},
		{"stop now", `["stop",null,null,null]`},
		{"scan the area", `["scan",null,null,null]`},
		{"perform full scan", `["scan",null,null,null]`},
		{"scan", `["scan",null,null,null]`},
		{"rotate to the right 45", `["turn","right","45",null]`},
		{"move forward 90 cm", `["move","forward","90","cm"]`},
		{"go ahead 50 centimeters", `["move","forward","50","cm"]`},
		{"turn left 30 degrees", `["turn","left","30","degree"]`},
		{"advance 40 and rotate right 30 degrees", `[["move","forward","40",null],["turn","right","30","degree"]]`},
		{"backward 100 cm", `["move","backward","100","cm"]`},
		{"move forward", `["move","forward",null,null]`},
		{"turn left", `["turn","left",null,null]`},
		{"go back 20 cms", `["move","backward","20","cm"]`},
		{"retreat 15 centimetres", `["move","backward","15","cm"]`},
		{"advance", `["move","forward",null,null]`},
		{"turn 45°", `["turn",null,"45","degree"]`},
		{"move forward 25cm", `["move","forward","25","cm"]`},
		{"move forward twenty five centimeters", `["move","forward","25","cm"]`},
		{"go a hundred cm", `["move","forward","100","cm"]`},
		{"move forward 12.5 cm", `["move","forward","12.5","cm"]`},
		{"look around", `["scan",null,null,null]`},
		{"Move Forward 10 CM.", `["move","forward","10","cm"]`},
		{"turn left one hundred and twenty degrees", `["turn","left","120","degree"]`},
		{"go a hundred and five cm then scan", `[["move","forward","105","cm"],["scan",null,null,null]]`},
		{"move forward 1,000 cm", `["move","forward","1000","cm"]`},
		{"move forward 1,000 cm, then turn right", `[["move","forward","1000","cm"],["turn","right",null,null]]`},
		{"move forward ten and turn left", `[["move","forward","10",null],["turn","left",null,null]]`},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := Parse(tt.in).String()
			if got != tt.want {
				t.Errorf("Parse(%q) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseStopPriority(t *testing.T) {
	for _, in := range []string{
		"stop now",
		"stop moving left 90 degrees",
		"halt",
		"please stop and then turn right",
	} {
		got := Parse(in)
		if !got.IsSingle() || got[0].Intent != "stop" || got.String() != `["stop",null,null,null]` {
			t.Errorf("Parse(%q) = %s, want a lone stop", in, got)
		}
	}
}

func TestParseStopEndsUtterance(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"move forward 50 cm and stop", `[["move","forward","50","cm"],["stop",null,null,null]]`},
		{"move forward 50 cm then stop", `[["move","forward","50","cm"],["stop",null,null,null]]`},
		{"turn left then stop then move forward 10 cm", `[["turn","left",null,null],["stop",null,null,null]]`},
		{"move back 20 cm stop turning", `[["move","backward","20","cm"],["stop",null,null,null]]`},
	}
	for _, tt := range tests {
		if got := Parse(tt.in).String(); got != tt.want {
			t.Errorf("Parse(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestParseStopAsNoun(t *testing.T) {
	got := Parse("drive to the bus stop")
	for _, inst := range got {
		if inst.Intent == "stop" {
			t.Errorf("Parse = %s, want no stop order", got)
		}
	}
}

func TestParseCompoundOrder(t *testing.T) {
	got := Parse("turn right, move forward 10 cm after that scan")
	want := `[["turn","right",null,null],["move","forward","10","cm"],["scan",null,null,null]]`
	if got.String() != want {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestParseFailures(t *testing.T) {
	for _, in := range []string{
		"",
		"   ",
		"hello there",
		"what time is it",
		"move forward 2 meters",
	} {
		if got := Parse(in); !got.IsError() {
			t.Errorf("Parse(%q) = %s, want error sentinel", in, got)
		}
	}
}

func TestParseResultsValidate(t *testing.T) {
	for _, in := range []string{
		"go ahead 30 cm then turn left 90 degrees",
		"rotate to the right 45",
		"nonsense words",
	} {
		if err := Parse(in).Validate(); err != nil {
			t.Errorf("Parse(%q) produced invalid batch: %v", in, err)
		}
	}
}

func TestTranscript(t *testing.T) {
	prompt := "rules...\nCommand: example\n\nCommand: move forward 5 cm\nOutput:"
	if got := Transcript(prompt); got != "move forward 5 cm" {
		t.Errorf("Transcript = %q", got)
	}
	if got := Transcript("  turn left "); got != "turn left" {
		t.Errorf("Transcript without marker = %q", got)
	}
}

func TestOracle(t *testing.T) {
	var o inference.Oracle = NewOracle()

	resp, err := o.Complete(context.Background(), &inference.CompletionRequest{
		Prompt: "Command: stop now\nOutput:",
	})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if resp.Text != `["stop",null,null,null]` {
		t.Errorf("Unexpected text: %s", resp.Text)
	}
	if o.Name() != "grammar" {
		t.Errorf("Unexpected name: %s", o.Name())
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := o.Complete(ctx, &inference.CompletionRequest{Prompt: "stop"}); err == nil {
		t.Error("Expected error for cancelled context")
	}
}
