// Package bench drives a probe through warm-up and timed trials and
// aggregates the results.
package bench

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hipsterbrown/acquisition-probe/probe"
)

const (
	DefaultWarmup         = 3
	DefaultWarmupDelay    = 10 * time.Millisecond
	DefaultTrials         = 50
	DefaultDelay          = 5 * time.Millisecond
	DefaultBaselineMillis = 140.0
	DefaultTargetMillis   = 100.0
	DefaultKeepFailures   = 5
)

// Trialer runs one timed exchange. *probe.Probe implements it.
type Trialer interface {
	Trial() probe.Result
}

// Config controls a benchmark run.
type Config struct {
	// Warmup trials are run first and discarded.
	Warmup      int
	WarmupDelay time.Duration

	// Trials is the number of measured trials. Default is 50.
	Trials int
	// Delay is the pause after each measured trial.
	Delay time.Duration

	// BaselineMillis is the reference latency the mean is compared
	// against. Zero disables the comparison.
	BaselineMillis float64
	// TargetMillis is the mean latency a run must stay under. Zero disables it.
	TargetMillis float64

	// KeepFailures is how many failures are recorded in detail. Default is 5.
	KeepFailures int

	Logger *slog.Logger
}

// DefaultConfig returns the stock benchmark settings.
func DefaultConfig() Config {
	return Config{
		Warmup:         DefaultWarmup,
		WarmupDelay:    DefaultWarmupDelay,
		Trials:         DefaultTrials,
		Delay:          DefaultDelay,
		BaselineMillis: DefaultBaselineMillis,
		TargetMillis:   DefaultTargetMillis,
		KeepFailures:   DefaultKeepFailures,
	}
}

func (c Config) validate() error {
	if c.Warmup < 0 {
		return fmt.Errorf("warmup must be >= 0, got %d", c.Warmup)
	}
	if c.Trials < 0 {
		return fmt.Errorf("trials must be >= 0, got %d", c.Trials)
	}
	if c.WarmupDelay < 0 || c.Delay < 0 {
		return errors.New("delays must be >= 0")
	}
	if c.BaselineMillis < 0 || c.TargetMillis < 0 {
		return errors.New("baseline and target must be >= 0")
	}
	return nil
}

// Failure records one failed measured trial.
type Failure struct {
	Trial   int
	Elapsed time.Duration
	Err     error
}

// Report aggregates the measured trials of a run.
type Report struct {
	RunID   string
	Started time.Time
	Wall    time.Duration

	Results   []probe.Result
	Stats     Stats
	Successes int
	Failures  []Failure

	BaselineMillis float64
	TargetMillis   float64
}

// SuccessRate returns the percentage of successful trials.
func (r *Report) SuccessRate() float64 {
	if len(r.Results) == 0 {
		return 0
	}
	return float64(r.Successes) / float64(len(r.Results)) * 100
}

// Throughput returns successful acquisitions per second of wall time.
func (r *Report) Throughput() float64 {
	if r.Wall <= 0 {
		return 0
	}
	return float64(r.Successes) / r.Wall.Seconds()
}

// Improvement returns how many times faster the mean is than the baseline.
func (r *Report) Improvement() float64 {
	mean := millis(r.Stats.Mean)
	if r.BaselineMillis <= 0 || mean <= 0 {
		return 0
	}
	return r.BaselineMillis / mean
}

// MeetsTarget reports whether the mean latency is under the target.
func (r *Report) MeetsTarget() bool {
	if r.TargetMillis <= 0 || r.Stats.Samples == 0 {
		return false
	}
	return millis(r.Stats.Mean) < r.TargetMillis
}

// Summary writes a human-readable summary.
func (r *Report) Summary(w io.Writer) {
	fmt.Fprintf(w, "Run %s: %d trials\n", r.RunID, len(r.Results))
	fmt.Fprintf(w, "Mean time: %.3f ms\n", millis(r.Stats.Mean))
	fmt.Fprintf(w, "Min/max time: %.3f/%.3f ms\n", millis(r.Stats.Min), millis(r.Stats.Max))
	fmt.Fprintf(w, "Std dev: %.3f ms\n", millis(r.Stats.StdDev))
	fmt.Fprintf(w, "Success: %.1f%% (%d/%d)\n", r.SuccessRate(), r.Successes, len(r.Results))
	fmt.Fprintf(w, "Throughput: %.2f acquisitions/s\n", r.Throughput())
	if imp := r.Improvement(); imp > 0 {
		fmt.Fprintf(w, "Improvement vs %.0f ms baseline: %.2fx\n", r.BaselineMillis, imp)
	}
	if r.TargetMillis > 0 && r.Stats.Samples > 0 {
		if r.MeetsTarget() {
			fmt.Fprintf(w, "Under %.0f ms target\n", r.TargetMillis)
		} else {
			fmt.Fprintf(w, "Above %.0f ms target, likely a hardware limit\n", r.TargetMillis)
		}
	}
	for _, f := range r.Failures {
		fmt.Fprintf(w, "  trial %d failed after %.3f ms: %v\n", f.Trial, millis(f.Elapsed), f.Err)
	}
}

// Run executes the warm-up and measured trials. Cancellation is checked
// between trials only; a cancelled run returns the partial report along
// with ctx.Err().
func Run(ctx context.Context, t Trialer, cfg Config) (*Report, error) {
	if cfg.Trials == 0 {
		cfg.Trials = DefaultTrials
	}
	if cfg.KeepFailures == 0 {
		cfg.KeepFailures = DefaultKeepFailures
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	for i := 0; i < cfg.Warmup; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		t.Trial()
		if err := sleep(ctx, cfg.WarmupDelay); err != nil {
			return nil, err
		}
	}
	cfg.Logger.Debug("warm-up complete", "trials", cfg.Warmup)

	report := &Report{
		RunID:          uuid.NewString(),
		Started:        time.Now(),
		Results:        make([]probe.Result, 0, cfg.Trials),
		BaselineMillis: cfg.BaselineMillis,
		TargetMillis:   cfg.TargetMillis,
	}
	var acc accumulator

	finish := func() {
		report.Wall = time.Since(report.Started)
		report.Stats = acc.stats()
	}

	for i := 0; i < cfg.Trials; i++ {
		if err := ctx.Err(); err != nil {
			finish()
			return report, err
		}

		res := t.Trial()
		report.Results = append(report.Results, res)
		acc.add(res.Elapsed)
		if res.Success {
			report.Successes++
		} else if len(report.Failures) < cfg.KeepFailures {
			report.Failures = append(report.Failures, Failure{Trial: i, Elapsed: res.Elapsed, Err: res.Err})
		}

		if err := sleep(ctx, cfg.Delay); err != nil {
			finish()
			return report, err
		}
	}

	finish()
	cfg.Logger.Info("benchmark complete",
		"run", report.RunID,
		"trials", len(report.Results),
		"success_rate", report.SuccessRate(),
		"mean_ms", millis(report.Stats.Mean))

	return report, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
