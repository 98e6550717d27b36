package health

import (
	"math"

	"github.com/stridesync/stridesync/internal/model"
)

// DefaultMaxSamples bounds the heart-rate payload attached to a
// finished activity.
const DefaultMaxSamples = 5000

// Downsample reduces an oversized series to at most max samples while
// keeping the first and last sample. Interior samples are picked at
// evenly spaced, rounded indices, which preserves the overall trend
// shape without full curve simplification.
func Downsample(samples []model.HeartRateSample, max int) []model.HeartRateSample {
	n := len(samples)
	if max <= 0 || n <= max {
		return samples
	}
	if max == 1 {
		return samples[:1:1]
	}

	out := make([]model.HeartRateSample, 0, max)
	out = append(out, samples[0])

	step := float64(n-2) / float64(max-2)
	for i := 0; i < max-2; i++ {
		idx := 1 + int(math.Round(float64(i)*step))
		if idx > n-2 {
			idx = n - 2
		}
		out = append(out, samples[idx])
	}

	out = append(out, samples[n-1])
	return out
}
