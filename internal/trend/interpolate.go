package trend

import (
	"math"
	"time"
)

// DefaultMaxGapSamples bounds gap filling at 48 expected-interval
// steps, about four hours at a five-minute logging interval. Longer
// outages stay visibly unfilled instead of fabricating history.
const DefaultMaxGapSamples = 48

// FillGaps scans a timestamp-sorted sequence and synthesizes linearly
// interpolated samples across gaps strictly wider than twice the
// expected interval. A gap spanning N interval steps gains N-1 evenly
// spaced points; gaps needing more than maxGapSamples steps are left
// untouched. Real samples are never modified or dropped.
func FillGaps(samples []Sample, expectedInterval time.Duration, maxGapSamples int) []Sample {
	if len(samples) < 2 || expectedInterval <= 0 {
		return samples
	}
	if maxGapSamples <= 0 {
		maxGapSamples = DefaultMaxGapSamples
	}

	filled := make([]Sample, 0, len(samples))
	for i := 0; i < len(samples)-1; i++ {
		lo, hi := samples[i], samples[i+1]
		filled = append(filled, lo)

		delta := hi.Timestamp.Sub(lo.Timestamp)
		if delta <= 2*expectedInterval {
			continue
		}

		steps := int(math.Round(float64(delta) / float64(expectedInterval)))
		if steps < 2 || steps > maxGapSamples {
			continue
		}

		span := hi.Value - lo.Value
		for step := 1; step < steps; step++ {
			offset := time.Duration(int64(delta) * int64(step) / int64(steps))
			filled = append(filled, Sample{
				Timestamp:    lo.Timestamp.Add(offset),
				Value:        lo.Value + span*float64(step)/float64(steps),
				Interpolated: true,
			})
		}
	}

	return append(filled, samples[len(samples)-1])
}
