package plugins

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// UnitsTool converts between common length, weight, data-size, and
// temperature units without calling any external service.
type UnitsTool struct{}

// ToolName overrides the registry name.
func (UnitsTool) ToolName() string { return "units" }

type unitEntry struct {
	aliases []string
	base    string
	mult    float64
}

var unitTables = func() []unitEntry {
	length := []unitEntry{
		{[]string{"mm", "millimeter", "millimeters", "millimetre", "millimetres"}, "mm", 1},
		{[]string{"cm", "centimeter", "centimeters", "centimetre", "centimetres"}, "mm", 10},
		{[]string{"m", "meter", "meters", "metre", "metres"}, "mm", 1000},
		{[]string{"km", "kilometer", "kilometers", "kilometre", "kilometres"}, "mm", 1_000_000},
		{[]string{"in", "inch", "inches"}, "mm", 25.4},
		{[]string{"ft", "foot", "feet"}, "mm", 304.8},
		{[]string{"yd", "yard", "yards"}, "mm", 914.4},
		{[]string{"mi", "mile", "miles"}, "mm", 1_609_344},
	}
	weight := []unitEntry{
		{[]string{"mg", "milligram", "milligrams"}, "mg", 1},
		{[]string{"g", "gram", "grams"}, "mg", 1000},
		{[]string{"kg", "kilogram", "kilograms"}, "mg", 1_000_000},
		{[]string{"oz", "ounce", "ounces"}, "mg", 28_349.5},
		{[]string{"lb", "lbs", "pound", "pounds"}, "mg", 453_592},
		{[]string{"t", "tonne", "tonnes", "metric ton"}, "mg", 1e9},
	}
	data := []unitEntry{
		{[]string{"b", "byte", "bytes"}, "b", 1},
		{[]string{"kb", "kilobyte", "kilobytes"}, "b", 1024},
		{[]string{"mb", "megabyte", "megabytes"}, "b", 1024 * 1024},
		{[]string{"gb", "gigabyte", "gigabytes"}, "b", 1024 * 1024 * 1024},
		{[]string{"tb", "terabyte", "terabytes"}, "b", 1024 * 1024 * 1024 * 1024},
	}
	all := append([]unitEntry{}, length...)
	all = append(all, weight...)
	all = append(all, data...)
	return all
}()

func findUnit(token string) (string, float64, bool) {
	lower := strings.ToLower(token)
	singular := strings.TrimSuffix(lower, "s")
	for _, e := range unitTables {
		for _, a := range e.aliases {
			if lower == a || singular == a {
				return e.base, e.mult, true
			}
		}
	}
	return "", 0, false
}

func convertUnits(value float64, fromTok, toTok string) string {
	fromBase, fromMult, ok := findUnit(fromTok)
	if !ok {
		return fmt.Sprintf("Unknown unit: '%s'", fromTok)
	}
	toBase, toMult, ok := findUnit(toTok)
	if !ok {
		return fmt.Sprintf("Unknown unit: '%s'", toTok)
	}
	if fromBase != toBase {
		return fmt.Sprintf("Can't convert between incompatible units: '%s' and '%s'", fromTok, toTok)
	}
	result := value * fromMult / toMult
	return fmt.Sprintf("%s %s = **%s %s**", trimFloat(value), fromTok, trimFloat(result), toTok)
}

var (
	celsiusNames    = map[string]bool{"c": true, "celsius": true}
	fahrenheitNames = map[string]bool{"f": true, "fahrenheit": true}
	kelvinNames     = map[string]bool{"k": true, "kelvin": true}
)

func toCelsius(v float64, unit string) (float64, bool) {
	u := strings.ToLower(unit)
	switch {
	case celsiusNames[u]:
		return v, true
	case fahrenheitNames[u]:
		return (v - 32) * 5 / 9, true
	case kelvinNames[u]:
		return v - 273.15, true
	}
	return 0, false
}

func fromCelsius(v float64, unit string) (float64, bool) {
	u := strings.ToLower(unit)
	switch {
	case celsiusNames[u]:
		return v, true
	case fahrenheitNames[u]:
		return v*9/5 + 32, true
	case kelvinNames[u]:
		return v + 273.15, true
	}
	return 0, false
}

func convertTemperature(value float64, fromUnit, toUnit string) string {
	celsius, ok := toCelsius(value, fromUnit)
	if !ok {
		return fmt.Sprintf("Unknown temperature unit: '%s'", fromUnit)
	}
	result, ok := fromCelsius(celsius, toUnit)
	if !ok {
		return fmt.Sprintf("Unknown temperature unit: '%s'", toUnit)
	}
	return fmt.Sprintf("%s°%s = **%.2f°%s**", trimFloat(value), strings.ToUpper(fromUnit), result, strings.ToUpper(toUnit))
}

var (
	tempPattern = regexp.MustCompile(`(?i)([-\d.]+)\s*°?\s*(celsius|fahrenheit|kelvin|[cfk])\b.*?\b(celsius|fahrenheit|kelvin|[cfk])\b`)
	generalPattern = regexp.MustCompile(`(?i)([-\d.]+)\s+(\w+)\s+(?:to|in|into|as)\s+(\w+)`)
)

// Run implements tools.Tool.
func (UnitsTool) Run(_ context.Context, query string) (string, error) {
	q := strings.TrimSpace(query)

	if m := tempPattern.FindStringSubmatch(q); m != nil {
		v, err := strconv.ParseFloat(m[1], 64)
		if err == nil {
			return convertTemperature(v, m[2], m[3]), nil
		}
	}

	if m := generalPattern.FindStringSubmatch(q); m != nil {
		v, err := strconv.ParseFloat(m[1], 64)
		if err == nil {
			return convertUnits(v, m[2], m[3]), nil
		}
	}

	return "Usage: 'convert 100 miles to km', '72°F in Celsius', '500 MB to GB'.\n" +
		"Supports: length, weight, data size, temperature.", nil
}

// trimFloat drops trailing zeros, matching the donor's "%g"-style display.
func trimFloat(v float64) string {
	if v == float64(int64(v)) {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'g', 6, 64)
}
