// Package command defines the canonical robot instruction and its wire format.
//
// An Instruction always has four ordered slots: intent, direction, value and
// unit. Empty Go strings stand for null slots. On the wire an Instruction is a
// JSON array such as ["move","forward","50","cm"] or ["stop",null,null,null],
// and a Batch of several instructions is an array of those arrays. A Batch of
// one is encoded exactly like a lone Instruction.
package command

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// valueRe matches a plain decimal magnitude. Direction carries the sign.
var valueRe = regexp.MustCompile(`^\d+(\.\d+)?$`)

// Intent is the action an instruction asks for.
type Intent string

const (
	IntentMove  Intent = "move"
	IntentTurn  Intent = "turn"
	IntentStop  Intent = "stop"
	IntentScan  Intent = "scan"
	IntentError Intent = "error"
)

// Direction qualifies move and turn instructions.
type Direction string

const (
	DirectionNone     Direction = ""
	DirectionForward  Direction = "forward"
	DirectionBackward Direction = "backward"
	DirectionLeft     Direction = "left"
	DirectionRight    Direction = "right"
)

// Unit is the canonical unit of an instruction value.
type Unit string

const (
	UnitNone   Unit = ""
	UnitCM     Unit = "cm"
	UnitDegree Unit = "degree"
)

// Errors returned by validation and decoding.
var (
	ErrUnknownIntent    = errors.New("command: unknown intent")
	ErrUnknownDirection = errors.New("command: unknown direction")
	ErrUnknownUnit      = errors.New("command: unknown unit")
	ErrInvalidValue     = errors.New("command: value is not numeric")
	ErrExtraSlots       = errors.New("command: intent does not take direction, value or unit")
	ErrArity            = errors.New("command: instruction must have exactly 4 elements")
	ErrEmptyBatch       = errors.New("command: empty batch")
)

// Instruction is one canonical robot command.
type Instruction struct {
	Intent    Intent
	Direction Direction
	Value     string
	Unit      Unit
}

// New builds an instruction and normalizes it.
func New(intent Intent, direction Direction, value string, unit Unit) Instruction {
	return Instruction{
		Intent:    intent,
		Direction: direction,
		Value:     value,
		Unit:      unit,
	}.Normalize()
}

// Stop returns ["stop",null,null,null].
func Stop() Instruction { return Instruction{Intent: IntentStop} }

// Scan returns ["scan",null,null,null]: a fixed 360 degree turn to the right.
func Scan() Instruction { return Instruction{Intent: IntentScan} }

// Error returns the translation failure sentinel ["error",null,null,null].
func Error() Instruction { return Instruction{Intent: IntentError} }

// IsError reports whether this is the failure sentinel.
func (i Instruction) IsError() bool { return i.Intent == IntentError }

// Normalize canonicalizes synonyms and clears slots that the intent forbids.
// Unknown words are left in place so Validate can reject them.
func (i Instruction) Normalize() Instruction {
	out := Instruction{
		Intent:    Intent(clean(string(i.Intent))),
		Direction: Direction(clean(string(i.Direction))),
		Value:     clean(i.Value),
		Unit:      Unit(clean(string(i.Unit))),
	}

	if intent, implied, ok := ParseIntent(string(out.Intent)); ok {
		out.Intent = intent
		if out.Direction == DirectionNone {
			out.Direction = implied
		}
	}
	if d, ok := ParseDirection(string(out.Direction)); ok {
		out.Direction = d
	}
	if u, ok := ParseUnit(string(out.Unit)); ok {
		out.Unit = u
	}

	switch out.Intent {
	case IntentStop, IntentScan, IntentError:
		out.Direction, out.Value, out.Unit = DirectionNone, "", UnitNone
	}
	return out
}

// Validate checks the schema invariants.
func (i Instruction) Validate() error {
	switch i.Intent {
	case IntentMove, IntentTurn:
	case IntentStop, IntentScan, IntentError:
		if i.Direction != DirectionNone || i.Value != "" || i.Unit != UnitNone {
			return fmt.Errorf("%w: %s", ErrExtraSlots, i.Intent)
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownIntent, i.Intent)
	}

	switch i.Direction {
	case DirectionNone, DirectionForward, DirectionBackward, DirectionLeft, DirectionRight:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownDirection, i.Direction)
	}

	switch i.Unit {
	case UnitNone, UnitCM, UnitDegree:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownUnit, i.Unit)
	}

	if i.Value != "" {
		if !valueRe.MatchString(i.Value) {
			return fmt.Errorf("%w: %q", ErrInvalidValue, i.Value)
		}
	}
	return nil
}

// Slots returns the four wire slots; nil marks a null slot.
func (i Instruction) Slots() [4]*string {
	var s [4]*string
	intent := string(i.Intent)
	s[0] = &intent
	if i.Direction != DirectionNone {
		d := string(i.Direction)
		s[1] = &d
	}
	if i.Value != "" {
		v := i.Value
		s[2] = &v
	}
	if i.Unit != UnitNone {
		u := string(i.Unit)
		s[3] = &u
	}
	return s
}

// MarshalJSON encodes the instruction as a 4-element JSON array.
func (i Instruction) MarshalJSON() ([]byte, error) {
	s := i.Slots()
	return json.Marshal(s[:])
}

// UnmarshalJSON decodes a 4-element JSON array. Numbers are accepted in the
// value slot and kept in their literal form. No normalization is applied.
func (i *Instruction) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("command: decode instruction: %w", err)
	}
	if len(raw) != 4 {
		return fmt.Errorf("%w, got %d", ErrArity, len(raw))
	}

	slots := make([]string, 4)
	for n, r := range raw {
		s, err := decodeSlot(r)
		if err != nil {
			return fmt.Errorf("command: slot %d: %w", n, err)
		}
		slots[n] = s
	}

	*i = Instruction{
		Intent:    Intent(slots[0]),
		Direction: Direction(slots[1]),
		Value:     slots[2],
		Unit:      Unit(slots[3]),
	}
	return nil
}

// String returns the wire form, for logs.
func (i Instruction) String() string {
	b, err := i.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("<invalid instruction: %v>", err)
	}
	return string(b)
}

func decodeSlot(r json.RawMessage) (string, error) {
	var v any
	dec := json.NewDecoder(strings.NewReader(string(r)))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return "", err
	}
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	case json.Number:
		return t.String(), nil
	default:
		return "", fmt.Errorf("unexpected %T", v)
	}
}

func clean(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "null" || s == "none" {
		return ""
	}
	return s
}
