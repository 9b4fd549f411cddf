// Package fields implements the field metadata catalog and the bidirectional
// value coercion rules that every editing surface goes through: raw user input
// is coerced to a typed stored value according to the field's declared data
// type, and stored values are rendered back to display strings the same way.
package fields

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/project-registry/project-registry/internal/db/models"
)

// Stored timestamp layout for date fields: the UI edits a calendar date, the
// store keeps a full timestamp at midnight UTC.
const (
	dateInputLayout  = "2006-01-02"
	dateStoredLayout = "2006-01-02T15:04:05.000Z"
)

// Values equal to these literals render as "-" but are preserved verbatim in
// storage; they are never rewritten unless the user explicitly edits the field.
var notApplicable = map[string]bool{
	"N/A":            true,
	"Not Applicable": true,
}

// Coerce converts a raw input string to the typed stored value for the given
// data type. Empty input yields nil for every numeric and date type. Text and
// dropdown values pass through unchanged — a phone number is never silently
// turned into a number.
func Coerce(dataType, raw string) (any, error) {
	switch dataType {
	case models.TypeNumber:
		return coerceNumber(raw)
	case models.TypePercentage:
		return coercePercentage(raw)
	case models.TypeCurrency:
		return coerceCurrency(raw)
	case models.TypeDate:
		return coerceDate(raw)
	case models.TypeDropdown, models.TypeText:
		return raw, nil
	default:
		return raw, nil
	}
}

// Display renders a stored value back to its display string. Nil, empty, and
// the not-applicable literals all render as "-".
func Display(dataType string, v any) string {
	if v == nil {
		return "-"
	}
	if s, ok := v.(string); ok {
		if s == "" || notApplicable[s] {
			return "-"
		}
	}

	switch dataType {
	case models.TypeNumber:
		if f, ok := toFloat(v); ok {
			return displayNumber(f)
		}
	case models.TypePercentage:
		if f, ok := toFloat(v); ok {
			return strconv.FormatFloat(f, 'f', -1, 64)
		}
	case models.TypeCurrency:
		if f, ok := toFloat(v); ok {
			return "$" + addThousands(strconv.FormatFloat(f, 'f', -1, 64))
		}
	case models.TypeDate:
		return displayDate(v)
	}
	return fmt.Sprintf("%v", v)
}

func coerceNumber(raw string) (any, error) {
	raw = strings.TrimSpace(strings.ReplaceAll(raw, ",", ""))
	if raw == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid number %q: %w", raw, err)
	}
	return f, nil
}

// coercePercentage clamps to [0,100] during interactive edit: values above
// 100 are capped, values below 0 floored.
func coercePercentage(raw string) (any, error) {
	v, err := coerceNumber(raw)
	if err != nil || v == nil {
		return nil, err
	}
	f := v.(float64)
	if f > 100 {
		f = 100
	}
	if f < 0 {
		f = 0
	}
	return f, nil
}

func coerceCurrency(raw string) (any, error) {
	raw = strings.ReplaceAll(raw, "$", "")
	return coerceNumber(raw)
}

func coerceDate(raw string) (any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	// Accept a stored timestamp as well so values round-trip unchanged.
	if t, err := time.Parse(dateStoredLayout, raw); err == nil {
		return t.UTC().Format(dateStoredLayout), nil
	}
	t, err := time.Parse(dateInputLayout, raw)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q: %w", raw, err)
	}
	return t.UTC().Format(dateStoredLayout), nil
}

func displayDate(v any) string {
	switch d := v.(type) {
	case time.Time:
		return d.UTC().Format(dateInputLayout)
	case string:
		if len(d) >= len(dateInputLayout) {
			return d[:len(dateInputLayout)]
		}
		return d
	}
	return fmt.Sprintf("%v", v)
}

// displayNumber adds thousands separators only when |value| > 9999.
func displayNumber(f float64) string {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if math.Abs(f) > 9999 {
		return addThousands(s)
	}
	return s
}

// addThousands inserts comma separators into the integer part of a formatted
// numeric string, leaving any sign and fractional part untouched.
func addThousands(s string) string {
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign = "-"
		s = s[1:]
	}
	intPart, fracPart := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, fracPart = s[:i], s[i:]
	}
	if len(intPart) <= 3 {
		return sign + intPart + fracPart
	}
	var b strings.Builder
	lead := len(intPart) % 3
	if lead > 0 {
		b.WriteString(intPart[:lead])
	}
	for i := lead; i < len(intPart); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(intPart[i : i+3])
	}
	return sign + b.String() + fracPart
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.ReplaceAll(n, ",", ""), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}
