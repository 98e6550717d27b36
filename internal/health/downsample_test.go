package health

import (
	"testing"
	"time"

	"github.com/stridesync/stridesync/internal/model"
)

func syntheticSamples(n int) []model.HeartRateSample {
	base := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	out := make([]model.HeartRateSample, n)
	for i := range out {
		out[i] = model.HeartRateSample{Time: base.Add(time.Duration(i) * time.Second), BPM: 60 + i%120}
	}
	return out
}

func TestDownsampleBoundsAndEndpoints(t *testing.T) {
	in := syntheticSamples(12000)
	out := Downsample(in, 5000)

	if len(out) != 5000 {
		t.Fatalf("len(out) = %d, want 5000", len(out))
	}
	if out[0] != in[0] {
		t.Fatalf("first sample not preserved: %+v", out[0])
	}
	if out[4999] != in[11999] {
		t.Fatalf("last sample not preserved: %+v", out[4999])
	}
}

func TestDownsampleMonotonicTimestamps(t *testing.T) {
	out := Downsample(syntheticSamples(9731), 500)
	if len(out) != 500 {
		t.Fatalf("len(out) = %d, want 500", len(out))
	}
	for i := 1; i < len(out); i++ {
		if out[i].Time.Before(out[i-1].Time) {
			t.Fatalf("timestamps not non-decreasing at %d", i)
		}
	}
}

func TestDownsampleNoOpWhenUnderCap(t *testing.T) {
	in := syntheticSamples(100)
	out := Downsample(in, 5000)
	if len(out) != 100 {
		t.Fatalf("len(out) = %d, want 100", len(out))
	}
}

func TestDownsampleTinyCaps(t *testing.T) {
	in := syntheticSamples(50)

	out := Downsample(in, 2)
	if len(out) != 2 || out[0] != in[0] || out[1] != in[49] {
		t.Fatalf("cap=2: got %d samples %v", len(out), out)
	}

	out = Downsample(in, 1)
	if len(out) != 1 || out[0] != in[0] {
		t.Fatalf("cap=1: got %d samples", len(out))
	}

	if out := Downsample(nil, 10); len(out) != 0 {
		t.Fatalf("empty input produced %d samples", len(out))
	}
}
