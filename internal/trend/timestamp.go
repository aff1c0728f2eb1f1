package trend

import (
	"fmt"
	"strings"
	"time"
)

// naiveLayout matches log timestamps emitted without a zone designator.
const naiveLayout = "2006-01-02T15:04:05"

// TimestampError reports a record timestamp that does not match the
// expected grammar. Callers drop the record and continue the batch.
type TimestampError struct {
	Raw string
	Err error
}

func (e *TimestampError) Error() string {
	return fmt.Sprintf("unparseable timestamp %q: %v", e.Raw, e.Err)
}

func (e *TimestampError) Unwrap() error { return e.Err }

// NormalizeTimestamp parses the gateway's heterogeneous timestamp
// encodings into an absolute instant. Strings carrying an explicit Z
// or numeric offset keep their zone; naive strings are assumed UTC,
// which is how the upstream logger is configured. Deployments with
// local-time loggers must adjust at the configuration layer.
func NormalizeTimestamp(raw string) (time.Time, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return time.Time{}, &TimestampError{Raw: raw, Err: fmt.Errorf("empty string")}
	}

	if hasExplicitZone(trimmed) {
		parsed, err := time.Parse(time.RFC3339, trimmed)
		if err != nil {
			return time.Time{}, &TimestampError{Raw: raw, Err: err}
		}
		return parsed, nil
	}

	// Naive local form: strip a fractional-second suffix, then attach UTC.
	if dot := strings.IndexByte(trimmed, '.'); dot >= 0 {
		trimmed = trimmed[:dot]
	}

	parsed, err := time.ParseInLocation(naiveLayout, trimmed, time.UTC)
	if err != nil {
		return time.Time{}, &TimestampError{Raw: raw, Err: err}
	}
	return parsed, nil
}

// hasExplicitZone reports whether the string carries a Z suffix or a
// numeric offset after the time portion.
func hasExplicitZone(s string) bool {
	if strings.HasSuffix(s, "Z") || strings.HasSuffix(s, "z") {
		return true
	}
	t := strings.IndexByte(s, 'T')
	if t < 0 {
		return false
	}
	rest := s[t+1:]
	return strings.ContainsRune(rest, '+') || strings.ContainsRune(rest, '-')
}
