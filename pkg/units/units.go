// Package units normalizes heterogeneous scale readings into canonical gram
// values. Scales on the floor report bare numbers (kilograms by convention),
// JSON records, or free text like "Weight: 1.2 KG"; everything downstream
// works in grams only.
package units

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/Ramsey-B/sage/pkg/errors"
)

// Unit is a weight unit the normalizer can convert from.
type Unit string

const (
	Gram     Unit = "g"
	Kilogram Unit = "kg"
	Pound    Unit = "lb"
)

const (
	gramsPerKilogram = 1000
	gramsPerPound    = 453.592
)

// Reading is a normalized weight sample.
type Reading struct {
	// Grams is the canonical value, rounded to 5 decimals.
	Grams float64
	// Value is the number as originally reported, in Unit.
	Value float64
	// Unit is the resolved source unit.
	Unit Unit
	// UnitAssumed is true when no unit token was supplied, or the supplied
	// token was unknown and the kilogram default was applied. Callers log a
	// warning for unknown tokens; it is not an error.
	UnitAssumed bool
}

var (
	// unitPattern matches the first decimal number followed by a known unit
	// token. Longer synonyms come first so "grams" is not cut short at "g".
	unitPattern = regexp.MustCompile(`(?i)(\d+\.?\d*)\s*(kilograms?|kg|grams?|gr|g|pounds?|lbs?)\b`)
	// numberPattern matches the first bare decimal number.
	numberPattern = regexp.MustCompile(`(\d+\.?\d*)`)
)

// ResolveUnit maps a unit token (any case, singular or plural) to its
// canonical Unit. Unknown tokens resolve to the kilogram default with
// ok=false.
func ResolveUnit(token string) (Unit, bool) {
	switch strings.ToLower(strings.TrimSpace(token)) {
	case "kg", "kilogram", "kilograms":
		return Kilogram, true
	case "g", "gr", "gram", "grams":
		return Gram, true
	case "lb", "lbs", "pound", "pounds":
		return Pound, true
	default:
		return Kilogram, false
	}
}

// ToGrams converts a value in the given unit to grams.
func ToGrams(value float64, u Unit) float64 {
	switch u {
	case Kilogram:
		return value * gramsPerKilogram
	case Pound:
		return value * gramsPerPound
	default:
		return value
	}
}

// Round trims a gram value to 5 decimal places.
func Round(grams float64) float64 {
	return math.Round(grams*1e5) / 1e5
}

// Normalize converts a raw reading into grams. The resolution order is fixed
// and load-bearing:
//
//  1. the whole input is numeric: value in kilograms
//  2. the input is JSON with a "weight" field: weight in the given "unit",
//     kilograms when absent or unknown
//  3. a number followed by a known unit token appears in the text
//  4. a bare number appears in the text: value in kilograms
//  5. otherwise the reading is rejected
//
// Non-positive results are rejected.
func Normalize(raw string) (Reading, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Reading{}, errors.NewValidationError("empty weight reading")
	}

	if value, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return build(value, Kilogram, true)
	}

	if reading, ok := normalizeStructured(trimmed); ok {
		return reading.value, reading.err
	}

	if m := unitPattern.FindStringSubmatch(trimmed); m != nil {
		value, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return Reading{}, errors.NewValidationError("unparseable weight reading '%s'", raw)
		}
		unit, _ := ResolveUnit(m[2])
		return build(value, unit, false)
	}

	if m := numberPattern.FindStringSubmatch(trimmed); m != nil {
		value, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return Reading{}, errors.NewValidationError("unparseable weight reading '%s'", raw)
		}
		return build(value, Kilogram, true)
	}

	return Reading{}, errors.NewValidationError("unparseable weight reading '%s'", raw)
}

type structuredResult struct {
	value Reading
	err   error
}

// normalizeStructured handles JSON payloads carrying a "weight" field. The
// second return value is false when the input is not a structured record at
// all, so the caller can fall through to text matching.
func normalizeStructured(raw string) (structuredResult, bool) {
	var record map[string]any
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return structuredResult{}, false
	}

	weightField, ok := record["weight"]
	if !ok {
		return structuredResult{}, false
	}

	var value float64
	switch v := weightField.(type) {
	case float64:
		value = v
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return structuredResult{err: errors.NewValidationError("unparseable weight field '%s'", v)}, true
		}
		value = parsed
	default:
		return structuredResult{err: errors.NewValidationError("unparseable weight field")}, true
	}

	unitToken, _ := record["unit"].(string)
	unit, known := ResolveUnit(unitToken)
	assumed := unitToken == "" || !known

	reading, err := build(value, unit, assumed)
	return structuredResult{value: reading, err: err}, true
}

func build(value float64, unit Unit, assumed bool) (Reading, error) {
	if value <= 0 || math.IsNaN(value) || math.IsInf(value, 0) {
		return Reading{}, errors.NewValidationError("weight must be positive, got %v", value)
	}

	return Reading{
		Grams:       Round(ToGrams(value, unit)),
		Value:       value,
		Unit:        unit,
		UnitAssumed: assumed,
	}, nil
}
