package interpreter

import (
	"errors"
	"testing"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`["stop", null, null, null]`, `["stop", null, null, null]`},
		{"```json\n[\"stop\", null, null, null]\n```", `["stop", null, null, null]`},
		{"```\n[\"stop\", null, null, null]\n```", `["stop", null, null, null]`},
		{"```json [\"scan\", null, null, null]```", `["scan", null, null, null]`},
		{`Here you go: [["a","b","c","d"],["e","f","g","h"]] done`, `[["a","b","c","d"],["e","f","g","h"]]`},
		{`["say", "]", null, null] trailing`, `["say", "]", null, null]`},
		{`["quote \" [", null, null, null]`, `["quote \" [", null, null, null]`},
	}

	for _, tt := range tests {
		got, err := Extract(tt.in)
		if err != nil {
			t.Errorf("Extract(%q) failed: %v", tt.in, err)
			continue
		}
		if string(got) != tt.want {
			t.Errorf("Extract(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestExtractNoStructure(t *testing.T) {
	for _, in := range []string{"", "no brackets", "[unterminated", "```json\n```"} {
		if _, err := Extract(in); !errors.Is(err, ErrNoStructure) {
			t.Errorf("Extract(%q) = %v, want ErrNoStructure", in, err)
		}
	}
}

func TestValidateShape(t *testing.T) {
	schema, err := compileSchema()
	if err != nil {
		t.Fatalf("compileSchema failed: %v", err)
	}

	valid := []string{
		`["move","forward","50","cm"]`,
		`["stop",null,null,null]`,
		`["turn","left",90,null]`,
		`[["move","forward","30","cm"],["turn","left","90","degree"]]`,
		`[["scan",null,null,null]]`,
		`[["a",null,null,null],["b",null,null,null],["c",null,null,null],["d",null,null,null]]`,
	}
	for _, in := range valid {
		if err := validateShape(schema, []byte(in)); err != nil {
			t.Errorf("validateShape(%s) = %v", in, err)
		}
	}

	invalid := []string{
		`[]`,
		`["move","forward","50"]`,
		`["move","forward","50","cm",null]`,
		`[null,null,null,null]`,
		`["move",1,null,null]`,
		`[["move","forward","30","cm"],["turn"]]`,
		`{"a":1}`,
	}
	for _, in := range invalid {
		if err := validateShape(schema, []byte(in)); !errors.Is(err, ErrSchema) {
			t.Errorf("validateShape(%s) = %v, want ErrSchema", in, err)
		}
	}
}
