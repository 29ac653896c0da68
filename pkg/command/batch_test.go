package command

import (
	"errors"
	"testing"
)

func TestBatchMarshal(t *testing.T) {
	single := Single(New(IntentMove, DirectionForward, "50", UnitCM))
	got, err := single.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON failed: %v", err)
	}
	if string(got) != `["move","forward","50","cm"]` {
		t.Errorf("single batch should encode flat, got %s", got)
	}

	compound := Batch{
		New(IntentMove, DirectionForward, "30", UnitCM),
		New(IntentTurn, DirectionLeft, "90", UnitDegree),
	}
	got, err = compound.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON failed: %v", err)
	}
	want := `[["move","forward","30","cm"],["turn","left","90","degree"]]`
	if string(got) != want {
		t.Errorf("got %s, want %s", got, want)
	}

	if _, err := (Batch{}).MarshalJSON(); !errors.Is(err, ErrEmptyBatch) {
		t.Errorf("Expected ErrEmptyBatch, got %v", err)
	}
}

func TestParseBatch(t *testing.T) {
	b, err := ParseBatch([]byte(`["stop", null, null, null]`))
	if err != nil {
		t.Fatalf("ParseBatch failed: %v", err)
	}
	if !b.IsSingle() || b[0] != Stop() {
		t.Errorf("Unexpected batch: %v", b)
	}

	b, err = ParseBatch([]byte(` [["move","forward","30","cm"], ["turn","left","90","degree"]] `))
	if err != nil {
		t.Fatalf("ParseBatch failed: %v", err)
	}
	if len(b) != 2 {
		t.Fatalf("Expected 2 instructions, got %d", len(b))
	}
	if b[0].Intent != IntentMove || b[1].Intent != IntentTurn {
		t.Errorf("Order not preserved: %v", b)
	}

	bad := []string{
		``,
		`[]`,
		`{"intent":"move"}`,
		`[["move","forward"]]`,
		`["move","forward","30"]`,
		`[["move","forward","30","cm"], "turn"]`,
	}
	for _, in := range bad {
		if _, err := ParseBatch([]byte(in)); err == nil {
			t.Errorf("ParseBatch(%q) should fail", in)
		}
	}
}

func TestBatchRoundTrip(t *testing.T) {
	in := Batch{New(IntentMove, DirectionForward, "30", UnitCM), Scan()}

	var out Batch
	if err := out.UnmarshalJSON([]byte(in.String())); err != nil {
		t.Fatalf("UnmarshalJSON failed: %v", err)
	}
	if len(out) != 2 || out[0] != in[0] || out[1] != in[1] {
		t.Errorf("round trip mismatch: %v vs %v", out, in)
	}
}

func TestBatchValidate(t *testing.T) {
	if err := ErrorBatch().Validate(); err != nil {
		t.Errorf("error sentinel alone should validate: %v", err)
	}
	if !ErrorBatch().IsError() {
		t.Error("ErrorBatch should report IsError")
	}

	mixed := Batch{Stop(), Error()}
	if err := mixed.Validate(); err == nil {
		t.Error("error sentinel inside a batch should not validate")
	}
	if mixed.IsError() {
		t.Error("mixed batch is not the sentinel")
	}

	if err := (Batch{}).Validate(); !errors.Is(err, ErrEmptyBatch) {
		t.Errorf("Expected ErrEmptyBatch, got %v", err)
	}
}
