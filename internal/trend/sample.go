package trend

import "time"

// Sample is one observed or synthesized trend point.
type Sample struct {
	// Timestamp is the absolute instant of the measurement.
	Timestamp time.Time
	// Raw preserves the gateway's original timestamp string for
	// observed samples; empty for interpolated ones.
	Raw string
	// Value is the measurement in the point's engineering unit.
	Value float64
	// Interpolated is true only for gap-filled samples.
	Interpolated bool
}
