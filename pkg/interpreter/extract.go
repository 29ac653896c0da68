package interpreter

import (
	"errors"
	"strings"
)

// ErrNoStructure is returned when no bracketed region can be found.
var ErrNoStructure = errors.New("interpreter: no JSON array in oracle output")

// Extract isolates the outermost JSON array in raw oracle output. It strips
// markdown fences and any prose around the array. Brackets inside string
// literals are ignored.
func Extract(raw string) ([]byte, error) {
	s := stripFences(strings.TrimSpace(raw))

	start := strings.IndexByte(s, '[')
	if start < 0 {
		return nil, ErrNoStructure
	}

	depth := 0
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return []byte(s[start : i+1]), nil
			}
		}
	}
	return nil, ErrNoStructure
}

func stripFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 && !strings.ContainsAny(s[:nl], "[]") {
		// drop the language tag, e.g. "json"
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	if end := strings.LastIndex(s, "```"); end >= 0 {
		s = s[:end]
	}
	return strings.TrimSpace(s)
}
