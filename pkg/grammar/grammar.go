// Package grammar is an offline, deterministic parser for the robot command
// grammar. It handles the same closed vocabulary the generative oracle is
// prompted with, so it can stand in for the oracle when no network or
// credential is available and serve as the fallback in an oracle chain.
package grammar

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/teslashibe/go-voicecmd/pkg/command"
)

var (
	numberRe    = regexp.MustCompile(`^\d+(\.\d+)?$`)
	gluedRe     = regexp.MustCompile(`^(\d+(?:\.\d+)?)([a-z°]+)$`)
	thousandsRe = regexp.MustCompile(`(\d),(\d{3})\b`)
)

// clause separators; "after that" is handled as a pair.
var connectives = map[string]bool{
	",":          true,
	"then":       true,
	"and":        true,
	"afterwards": true,
	"next":       true,
}

var stopWords = map[string]bool{
	"stop":   true,
	"halt":   true,
	"freeze": true,
}

// stopNouns precede "stop" when it names a place rather than an order.
var stopNouns = map[string]bool{
	"the":  true,
	"bus":  true,
	"this": true,
	"that": true,
	"next": true,
	"last": true,
}

var scanWords = map[string]bool{
	"scan":     true,
	"scanning": true,
	"survey":   true,
}

// foreignUnits are units outside the grammar. A clause that uses one cannot
// be expressed and fails the whole utterance.
var foreignUnits = map[string]bool{
	"m":       true,
	"meter":   true,
	"meters":  true,
	"metre":   true,
	"metres":  true,
	"mm":      true,
	"inch":    true,
	"inches":  true,
	"foot":    true,
	"feet":    true,
	"radian":  true,
	"radians": true,
}

var smallNumbers = map[string]int{
	"zero": 0, "one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
	"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
	"eleven": 11, "twelve": 12, "thirteen": 13, "fourteen": 14,
	"fifteen": 15, "sixteen": 16, "seventeen": 17, "eighteen": 18,
	"nineteen": 19, "twenty": 20, "thirty": 30, "forty": 40,
	"fifty": 50, "sixty": 60, "seventy": 70, "eighty": 80, "ninety": 90,
}

// Parse translates a transcript into instructions. It never fails: input
// that does not match the grammar yields the error sentinel batch.
func Parse(text string) command.Batch {
	tokens := tokenize(text)
	if len(tokens) == 0 {
		return command.ErrorBatch()
	}

	var out command.Batch
	for _, clause := range splitClauses(tokens) {
		at := stopIndex(clause)
		if at >= 0 {
			clause = clause[:at]
		}
		inst, ok, bad := parseClause(clause)
		if bad {
			return command.ErrorBatch()
		}
		if ok {
			out = append(out, inst)
		}
		// Nothing said after a stop is executed.
		if at >= 0 {
			out = append(out, command.Stop())
			break
		}
	}

	if len(out) == 0 {
		return command.ErrorBatch()
	}
	return out
}

// tokenize lowercases, strips punctuation and splits glued values like "45cm".
func tokenize(text string) []string {
	text = strings.ToLower(text)
	for thousandsRe.MatchString(text) {
		text = thousandsRe.ReplaceAllString(text, "$1$2")
	}
	text = strings.ReplaceAll(text, ",", " , ")
	text = strings.ReplaceAll(text, "-", " ")

	var tokens []string
	for _, f := range strings.Fields(text) {
		f = strings.Trim(f, ".!?;:\"'()")
		if f == "" {
			continue
		}
		if m := gluedRe.FindStringSubmatch(f); m != nil {
			tokens = append(tokens, m[1], m[2])
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}

func splitClauses(tokens []string) [][]string {
	var clauses [][]string
	var cur []string

	flush := func() {
		if len(cur) > 0 {
			clauses = append(clauses, cur)
			cur = nil
		}
	}

	for i := 0; i < len(tokens); i++ {
		t := tokens[i]
		if t == "after" && i+1 < len(tokens) && tokens[i+1] == "that" {
			flush()
			i++
			continue
		}
		if t == "and" && i > 0 && i+1 < len(tokens) && isNumberWord(tokens[i-1]) && isNumberWord(tokens[i+1]) {
			// "one hundred and twenty" is a single number.
			continue
		}
		if connectives[t] {
			flush()
			continue
		}
		cur = append(cur, t)
	}
	flush()
	return clauses
}

func isNumberWord(t string) bool {
	_, small := smallNumbers[t]
	return small || t == "hundred" || t == "thousand"
}

// stopIndex returns the position of a spoken stop order in clause, or -1.
func stopIndex(clause []string) int {
	for i, t := range clause {
		if !stopWords[t] {
			continue
		}
		if i > 0 && stopNouns[clause[i-1]] {
			continue
		}
		return i
	}
	return -1
}

// parseClause returns ok=false for clauses with no command in them and
// bad=true for clauses the grammar cannot express.
func parseClause(tokens []string) (inst command.Instruction, ok, bad bool) {
	for i, t := range tokens {
		if scanWords[t] || (t == "look" && i+1 < len(tokens) && tokens[i+1] == "around") {
			return command.Scan(), true, false
		}
	}

	var (
		intent    command.Intent
		implied   command.Direction
		direction command.Direction
		value     string
		unit      command.Unit
	)

	for i := 0; i < len(tokens); i++ {
		t := tokens[i]

		if intent == "" {
			if in, dir, found := command.ParseIntent(t); found && (in == command.IntentMove || in == command.IntentTurn) {
				intent, implied = in, dir
				continue
			}
		}
		if direction == command.DirectionNone {
			if d, found := command.ParseDirection(t); found {
				direction = d
				continue
			}
		}
		if value == "" {
			if v, n := readNumber(tokens[i:]); n > 0 {
				value = v
				i += n - 1
				continue
			}
		}
		if unit == command.UnitNone {
			if u, found := command.ParseUnit(t); found {
				unit = u
				continue
			}
		}
		if foreignUnits[t] && value != "" {
			return command.Instruction{}, false, true
		}
	}

	if intent == "" {
		switch direction {
		case command.DirectionLeft, command.DirectionRight:
			intent = command.IntentTurn
		case command.DirectionForward, command.DirectionBackward:
			intent = command.IntentMove
		default:
			return command.Instruction{}, false, false
		}
	}
	if direction == command.DirectionNone {
		direction = implied
	}

	return command.New(intent, direction, value, unit), true, false
}

// readNumber consumes a numeral at the head of tokens, either digits or
// number words ("forty five", "one hundred twenty"). It returns the value in
// literal form and the count of tokens consumed.
func readNumber(tokens []string) (string, int) {
	if len(tokens) == 0 {
		return "", 0
	}
	if numberRe.MatchString(tokens[0]) {
		return tokens[0], 1
	}

	total, current, n := 0, 0, 0
	seen := false
loop:
	for ; n < len(tokens); n++ {
		t := tokens[n]
		if v, found := smallNumbers[t]; found {
			current += v
			seen = true
			continue
		}
		switch t {
		case "a":
			if n+1 < len(tokens) && tokens[n+1] == "hundred" {
				continue
			}
			break loop
		case "hundred":
			if current == 0 {
				current = 1
			}
			current *= 100
			seen = true
		case "thousand":
			if current == 0 {
				current = 1
			}
			total += current * 1000
			current = 0
			seen = true
		default:
			break loop
		}
	}
	if !seen {
		return "", 0
	}
	return strconv.Itoa(total + current), n
}
