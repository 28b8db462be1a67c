package domain

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

const (
	// MinLineLength is the shortest row, in characters, treated as data.
	// Anything shorter is a header, footer or separator.
	MinLineLength = 50

	// MinFields is the number of structured tokens a row must carry.
	MinFields = 8

	// magnitudePlaceholder marks an unreported magnitude.
	magnitudePlaceholder = "-.-"
)

// layout maps bulletin token positions to record fields. Format drift in the
// upstream table is a change here and nowhere else.
var layout = struct {
	Date, Time, Latitude, Longitude, Depth, Magnitude, LocationStart int
}{
	Date:          0,
	Time:          1,
	Latitude:      2,
	Longitude:     3,
	Depth:         4,
	Magnitude:     6, // ML; 5 is MD
	LocationStart: 8, // 7 is Mw
}

// RejectReason classifies why a bulletin row produced no record.
type RejectReason string

const (
	ReasonShortLine    RejectReason = "short_line"
	ReasonTooFewFields RejectReason = "too_few_fields"
	ReasonInvalidField RejectReason = "invalid_field"
)

// Sentinel errors matched by errors.Is against a *RejectError.
var (
	ErrLineTooShort = errors.New("line too short")
	ErrTooFewFields = errors.New("too few fields")
	ErrInvalidField = errors.New("invalid field")
)

// RejectError reports a row that was dropped and why.
type RejectError struct {
	Reason RejectReason
	Field  string // set for ReasonInvalidField
	Value  string
}

func (e *RejectError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("reject line: %s: %s %q", e.Reason, e.Field, e.Value)
	}
	return fmt.Sprintf("reject line: %s", e.Reason)
}

// Unwrap maps the reason to its sentinel error.
func (e *RejectError) Unwrap() error {
	switch e.Reason {
	case ReasonShortLine:
		return ErrLineTooShort
	case ReasonTooFewFields:
		return ErrTooFewFields
	default:
		return ErrInvalidField
	}
}

// ParseLine converts one bulletin row into a Record. Any failure returns a
// *RejectError and a zero Record; no partial records are produced.
func ParseLine(line string) (Record, error) {
	if utf8.RuneCountInString(line) < MinLineLength {
		return Record{}, &RejectError{Reason: ReasonShortLine}
	}

	parts := strings.Fields(line)
	if len(parts) < MinFields {
		return Record{}, &RejectError{Reason: ReasonTooFewFields}
	}

	latitude, err := parseField("latitude", parts[layout.Latitude])
	if err != nil {
		return Record{}, err
	}
	longitude, err := parseField("longitude", parts[layout.Longitude])
	if err != nil {
		return Record{}, err
	}
	depth, err := parseField("depth", parts[layout.Depth])
	if err != nil {
		return Record{}, err
	}
	magnitude, err := parseField("magnitude",
		strings.ReplaceAll(parts[layout.Magnitude], magnitudePlaceholder, "0.0"))
	if err != nil {
		return Record{}, err
	}

	return Record{
		Timestamp: parts[layout.Date] + " " + parts[layout.Time],
		Latitude:  latitude,
		Longitude: longitude,
		Depth:     depth,
		Magnitude: magnitude,
		Location:  strings.Join(parts[layout.LocationStart:], " "),
	}, nil
}

// parseField converts a numeric token. NaN and infinities are rejected
// because they cannot be represented in the JSON export.
func parseField(name, value string) (float64, error) {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, &RejectError{Reason: ReasonInvalidField, Field: name, Value: value}
	}
	return v, nil
}
