// datevalue.go models milestone dates as a single paired value so the date and
// its estimate/actual marker can never drift apart. Earlier data kept these as
// two independently-named fields callers had to remember to update together.
package fields

import "fmt"

// Confidence marks whether a milestone date is a forecast or a recorded fact.
type Confidence string

const (
	ConfidenceEstimated Confidence = "Estimated"
	ConfidenceActual    Confidence = "Actual"
)

// DateValue pairs a stored-format date with its confidence marker.
type DateValue struct {
	Date       string     `json:"date"`
	Confidence Confidence `json:"confidence"`
}

// CoerceDateValue validates and coerces both halves of a milestone date as one
// unit. An empty date with a confidence marker is rejected: the marker is
// meaningless without a date.
func CoerceDateValue(rawDate string, confidence string) (*DateValue, error) {
	c := Confidence(confidence)
	if c != ConfidenceEstimated && c != ConfidenceActual && confidence != "" {
		return nil, fmt.Errorf("invalid date confidence %q (must be %s or %s)",
			confidence, ConfidenceEstimated, ConfidenceActual)
	}
	coerced, err := coerceDate(rawDate)
	if err != nil {
		return nil, err
	}
	if coerced == nil {
		if confidence != "" {
			return nil, fmt.Errorf("date confidence %q supplied without a date", confidence)
		}
		return nil, nil
	}
	if c == "" {
		c = ConfidenceEstimated
	}
	return &DateValue{Date: coerced.(string), Confidence: c}, nil
}
