package trend

// DefaultMaxPoints bounds how many samples the dashboard is asked to
// plot for any range.
const DefaultMaxPoints = 300

// Downsample reduces an oversized sequence by uniform stride
// decimation: stride = len/max, keeping every stride-th sample from
// index 0. No averaging or binning is done; this is display-only
// reduction and deliberately lossy. Sequences already within the bound
// are returned unchanged, which also makes the operation idempotent.
func Downsample(samples []Sample, maxPoints int) []Sample {
	if maxPoints <= 0 || len(samples) <= maxPoints {
		return samples
	}

	stride := len(samples) / maxPoints
	if stride < 2 {
		return samples
	}

	kept := make([]Sample, 0, len(samples)/stride+1)
	for i := 0; i < len(samples); i += stride {
		kept = append(kept, samples[i])
	}
	return kept
}
