package command

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Batch is an ordered sequence of instructions from one utterance.
// Order is spoken order and must be preserved end to end.
type Batch []Instruction

// Single wraps one instruction.
func Single(i Instruction) Batch { return Batch{i} }

// ErrorBatch is the translation failure sentinel as a batch.
func ErrorBatch() Batch { return Batch{Error()} }

// IsSingle reports whether the batch encodes as a flat instruction.
func (b Batch) IsSingle() bool { return len(b) == 1 }

// IsError reports whether the batch is the failure sentinel.
func (b Batch) IsError() bool { return len(b) == 1 && b[0].IsError() }

// Normalize returns a copy with every instruction normalized.
func (b Batch) Normalize() Batch {
	out := make(Batch, len(b))
	for n, i := range b {
		out[n] = i.Normalize()
	}
	return out
}

// Validate checks every instruction. The error sentinel may only appear alone.
func (b Batch) Validate() error {
	if len(b) == 0 {
		return ErrEmptyBatch
	}
	for n, i := range b {
		if err := i.Validate(); err != nil {
			return fmt.Errorf("instruction %d: %w", n, err)
		}
		if i.IsError() && len(b) > 1 {
			return fmt.Errorf("instruction %d: error sentinel inside a batch", n)
		}
	}
	return nil
}

// MarshalJSON encodes a single instruction flat and several as nested arrays.
func (b Batch) MarshalJSON() ([]byte, error) {
	switch len(b) {
	case 0:
		return nil, ErrEmptyBatch
	case 1:
		return b[0].MarshalJSON()
	}
	return json.Marshal([]Instruction(b))
}

// UnmarshalJSON accepts either wire form.
func (b *Batch) UnmarshalJSON(data []byte) error {
	parsed, err := ParseBatch(data)
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}

// String returns the wire form, for logs.
func (b Batch) String() string {
	data, err := b.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("<invalid batch: %v>", err)
	}
	return string(data)
}

// ParseBatch decodes a flat instruction or an array of instructions.
// It does not normalize or validate.
func ParseBatch(data []byte) (Batch, error) {
	data = bytes.TrimSpace(data)

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("command: decode batch: %w", err)
	}
	if len(raw) == 0 {
		return nil, ErrEmptyBatch
	}

	if !strings.HasPrefix(strings.TrimSpace(string(raw[0])), "[") {
		var i Instruction
		if err := i.UnmarshalJSON(data); err != nil {
			return nil, err
		}
		return Batch{i}, nil
	}

	out := make(Batch, 0, len(raw))
	for n, r := range raw {
		var i Instruction
		if err := i.UnmarshalJSON(r); err != nil {
			return nil, fmt.Errorf("instruction %d: %w", n, err)
		}
		out = append(out, i)
	}
	return out, nil
}
