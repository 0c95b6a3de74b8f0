package bench

import (
	"math"
	"time"
)

// Stats summarizes trial latencies.
type Stats struct {
	Mean    time.Duration
	Min     time.Duration
	Max     time.Duration
	StdDev  time.Duration
	Samples int
}

// accumulator keeps a running mean and variance (Welford).
type accumulator struct {
	count int
	mean  float64
	m2    float64
	min   time.Duration
	max   time.Duration
}

func (a *accumulator) add(d time.Duration) {
	if a.count == 0 || d < a.min {
		a.min = d
	}
	if a.count == 0 || d > a.max {
		a.max = d
	}

	value := float64(d)
	a.count++
	delta := value - a.mean
	a.mean += delta / float64(a.count)
	delta2 := value - a.mean
	a.m2 += delta * delta2
}

func (a *accumulator) stats() Stats {
	if a.count == 0 {
		return Stats{}
	}

	stddev := time.Duration(0)
	if a.count > 1 {
		stddev = time.Duration(math.Sqrt(a.m2 / float64(a.count-1)))
	}

	return Stats{
		Mean:    time.Duration(a.mean),
		Min:     a.min,
		Max:     a.max,
		StdDev:  stddev,
		Samples: a.count,
	}
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
