package command

import "strings"

// intentWords maps spoken verbs to an intent and the direction they imply.
var intentWords = map[string]struct {
	intent    Intent
	direction Direction
}{
	"move":    {IntentMove, DirectionNone},
	"drive":   {IntentMove, DirectionNone},
	"go":      {IntentMove, DirectionForward},
	"advance": {IntentMove, DirectionForward},
	"back":    {IntentMove, DirectionBackward},
	"retreat": {IntentMove, DirectionBackward},
	"reverse": {IntentMove, DirectionBackward},
	"turn":    {IntentTurn, DirectionNone},
	"rotate":  {IntentTurn, DirectionNone},
	"stop":    {IntentStop, DirectionNone},
	"halt":    {IntentStop, DirectionNone},
	"scan":    {IntentScan, DirectionNone},
	"error":   {IntentError, DirectionNone},
}

var directionWords = map[string]Direction{
	"forward":   DirectionForward,
	"forwards":  DirectionForward,
	"ahead":     DirectionForward,
	"straight":  DirectionForward,
	"backward":  DirectionBackward,
	"backwards": DirectionBackward,
	"back":      DirectionBackward,
	"left":      DirectionLeft,
	"right":     DirectionRight,
}

var unitWords = map[string]Unit{
	"cm":          UnitCM,
	"cms":         UnitCM,
	"centimeter":  UnitCM,
	"centimeters": UnitCM,
	"centimetre":  UnitCM,
	"centimetres": UnitCM,
	"degree":      UnitDegree,
	"degrees":     UnitDegree,
	"deg":         UnitDegree,
	"°":           UnitDegree,
}

// ParseIntent resolves a verb to its intent and implied direction.
func ParseIntent(word string) (Intent, Direction, bool) {
	e, ok := intentWords[strings.ToLower(strings.TrimSpace(word))]
	return e.intent, e.direction, ok
}

// ParseDirection resolves a direction word.
func ParseDirection(word string) (Direction, bool) {
	d, ok := directionWords[strings.ToLower(strings.TrimSpace(word))]
	return d, ok
}

// ParseUnit resolves a unit word to its canonical short form.
func ParseUnit(word string) (Unit, bool) {
	u, ok := unitWords[strings.ToLower(strings.TrimSpace(word))]
	return u, ok
}
