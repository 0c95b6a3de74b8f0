package bench

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

type trialJSON struct {
	Trial     int     `json:"trial"`
	Success   bool    `json:"success"`
	ElapsedMs float64 `json:"elapsed_ms"`
	Error     string  `json:"error,omitempty"`
}

type reportJSON struct {
	RunID          string      `json:"run_id"`
	Started        time.Time   `json:"started"`
	WallSeconds    float64     `json:"wall_seconds"`
	Trials         int         `json:"trials"`
	Successes      int         `json:"successes"`
	SuccessRate    float64     `json:"success_rate"`
	Throughput     float64     `json:"throughput"`
	MeanMs         float64     `json:"mean_ms"`
	MinMs          float64     `json:"min_ms"`
	MaxMs          float64     `json:"max_ms"`
	StdDevMs       float64     `json:"stddev_ms"`
	BaselineMs     float64     `json:"baseline_ms,omitempty"`
	Improvement    float64     `json:"improvement,omitempty"`
	TargetMs       float64     `json:"target_ms,omitempty"`
	MeetsTarget    bool        `json:"meets_target"`
	FirstFailures  []trialJSON `json:"first_failures,omitempty"`
	IndividualRuns []trialJSON `json:"results"`
}

func toTrialJSON(i int, success bool, elapsed time.Duration, err error) trialJSON {
	t := trialJSON{Trial: i, Success: success, ElapsedMs: millis(elapsed)}
	if err != nil {
		t.Error = err.Error()
	}
	return t
}

// WriteJSON writes the report as indented JSON.
func (r *Report) WriteJSON(w io.Writer) error {
	out := reportJSON{
		RunID:       r.RunID,
		Started:     r.Started,
		WallSeconds: r.Wall.Seconds(),
		Trials:      len(r.Results),
		Successes:   r.Successes,
		SuccessRate: r.SuccessRate(),
		Throughput:  r.Throughput(),
		MeanMs:      millis(r.Stats.Mean),
		MinMs:       millis(r.Stats.Min),
		MaxMs:       millis(r.Stats.Max),
		StdDevMs:    millis(r.Stats.StdDev),
		BaselineMs:  r.BaselineMillis,
		Improvement: r.Improvement(),
		TargetMs:    r.TargetMillis,
		MeetsTarget: r.MeetsTarget(),
	}
	for _, f := range r.Failures {
		out.FirstFailures = append(out.FirstFailures, toTrialJSON(f.Trial, false, f.Elapsed, f.Err))
	}
	out.IndividualRuns = make([]trialJSON, 0, len(r.Results))
	for i, res := range r.Results {
		out.IndividualRuns = append(out.IndividualRuns, toTrialJSON(i, res.Success, res.Elapsed, res.Err))
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// WriteCSV writes one row per measured trial.
func (r *Report) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"trial", "success", "elapsed_ms", "error"}); err != nil {
		return err
	}
	for i, res := range r.Results {
		errText := ""
		if res.Err != nil {
			errText = res.Err.Error()
		}
		row := []string{
			strconv.Itoa(i),
			strconv.FormatBool(res.Success),
			strconv.FormatFloat(res.Millis(), 'f', 3, 64),
			errText,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Filename returns the export base name, stamped with the run start.
func (r *Report) Filename(ext string) string {
	return fmt.Sprintf("%s_benchmark_m127.%s", r.Started.Format("20060102_150405"), ext)
}

// ExportFiles writes the JSON and CSV exports into dir and returns their paths.
func (r *Report) ExportFiles(dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create export directory: %w", err)
	}

	writers := []struct {
		ext   string
		write func(io.Writer) error
	}{
		{"json", r.WriteJSON},
		{"csv", r.WriteCSV},
	}

	paths := make([]string, 0, len(writers))
	for _, wr := range writers {
		path := filepath.Join(dir, r.Filename(wr.ext))
		if err := writeFile(path, wr.write); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}
