// Package storage persists simulation runs as a directory per run holding
// metadata, per-frame diagnostics and the final particle positions.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/google/uuid"
	"github.com/san-kum/viscosim/internal/config"
	"github.com/san-kum/viscosim/internal/dynamo"
	"github.com/san-kum/viscosim/internal/sim"
)

const (
	metadataFile    = "metadata.json"
	diagnosticsFile = "diagnostics.csv"
	snapshotFile    = "snapshot.csv"
)

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID        string             `json:"id"`
	Variant   string             `json:"variant"`
	Preset    string             `json:"preset,omitempty"`
	Timestamp time.Time          `json:"timestamp"`
	Particles int                `json:"particles"`
	Frames    int                `json:"frames"`
	SimTime   float64            `json:"sim_time"`
	WallTime  float64            `json:"wall_time_seconds"`
	Config    *config.Config     `json:"config"`
	Metrics   map[string]float64 `json:"metrics"`
	Errors    []string           `json:"errors,omitempty"`
}

// DiagnosticRow is one frame of diagnostics as written to diagnostics.csv.
type DiagnosticRow struct {
	Frame         int     `csv:"frame"`
	Time          float64 `csv:"time"`
	CostMs        float64 `csv:"cost_ms"`
	KineticEnergy float64 `csv:"kinetic_energy"`
	MeanSpeed     float64 `csv:"mean_speed"`
	Stability     float64 `csv:"stability"`
	Containment   float64 `csv:"containment"`
	MeanNeighbors float64 `csv:"mean_neighbors"`
	Extent        float64 `csv:"extent"`
	YieldRatio    float64 `csv:"yield_ratio"`
}

// ParticleRow is one particle of the final snapshot.
type ParticleRow struct {
	Index int     `csv:"index"`
	X     float64 `csv:"x"`
	Y     float64 `csv:"y"`
	Z     float64 `csv:"z"`
}

// Run bundles what Save needs besides the simulation result.
type Run struct {
	Config   *config.Config
	Preset   string
	WallTime time.Duration
}

// Save writes a run under a fresh ID and returns that ID.
func (s *Store) Save(run Run, result *sim.Result) (string, error) {
	if result == nil {
		return "", fmt.Errorf("%w: nil result", dynamo.ErrInvalidParameter)
	}
	runID := uuid.NewString()
	runDir := filepath.Join(s.baseDir, runID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	meta := RunMetadata{
		ID:        runID,
		Preset:    run.Preset,
		Timestamp: time.Now().UTC(),
		Particles: len(result.Final),
		Frames:    result.FramesTaken,
		WallTime:  run.WallTime.Seconds(),
		Config:    run.Config,
		Metrics:   result.Metrics,
	}
	if run.Config != nil {
		meta.Variant = run.Config.Variant
	}
	if n := len(result.Samples); n > 0 {
		meta.SimTime = result.Samples[n-1].Time
	}
	for _, err := range result.Errors {
		meta.Errors = append(meta.Errors, err.Error())
	}

	if err := writeJSON(filepath.Join(runDir, metadataFile), meta); err != nil {
		return "", err
	}
	if err := writeCSV(filepath.Join(runDir, diagnosticsFile), Diagnostics(result.Samples)); err != nil {
		return "", err
	}
	if err := writeCSV(filepath.Join(runDir, snapshotFile), Snapshot(result.Final)); err != nil {
		return "", err
	}
	return runID, nil
}

// Diagnostics flattens metric samples into CSV rows. Metrics that were not
// collected are left at zero.
func Diagnostics(samples []sim.Sample) []*DiagnosticRow {
	rows := make([]*DiagnosticRow, len(samples))
	for i, s := range samples {
		v := s.Values
		rows[i] = &DiagnosticRow{
			Frame:         s.Frame,
			Time:          s.Time,
			CostMs:        float64(s.Cost.Microseconds()) / 1000,
			KineticEnergy: v["kinetic_energy"],
			MeanSpeed:     v["mean_speed"],
			Stability:     v["stability"],
			Containment:   v["containment"],
			MeanNeighbors: v["mean_neighbors"],
			Extent:        v["extent"],
			YieldRatio:    v["yield_ratio"],
		}
	}
	return rows
}

func Snapshot(positions []dynamo.Coord) []*ParticleRow {
	rows := make([]*ParticleRow, len(positions))
	for i, p := range positions {
		rows[i] = &ParticleRow{Index: i, X: p.X, Y: p.Y, Z: p.Z}
	}
	return rows
}

// List returns every readable run, newest first.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.After(runs[j].Timestamp) })
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: run %s", dynamo.ErrNotFound, runID)
		}
		return nil, err
	}
	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("storage: run %s: %w", runID, err)
	}
	return &meta, nil
}

func (s *Store) LoadDiagnostics(runID string) ([]*DiagnosticRow, error) {
	var rows []*DiagnosticRow
	if err := readCSV(filepath.Join(s.baseDir, runID, diagnosticsFile), &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *Store) LoadSnapshot(runID string) ([]dynamo.Coord, error) {
	var rows []*ParticleRow
	if err := readCSV(filepath.Join(s.baseDir, runID, snapshotFile), &rows); err != nil {
		return nil, err
	}
	out := make([]dynamo.Coord, len(rows))
	for i, r := range rows {
		out[i] = dynamo.Coord{X: r.X, Y: r.Y, Z: r.Z}
	}
	return out, nil
}

// ExportJSON writes a run's metadata together with its diagnostics.
func (s *Store) ExportJSON(w io.Writer, runID string) error {
	meta, err := s.Load(runID)
	if err != nil {
		return err
	}
	rows, err := s.LoadDiagnostics(runID)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		*RunMetadata
		Diagnostics []*DiagnosticRow `json:"diagnostics"`
	}{meta, rows})
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeCSV(path string, rows any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := gocsv.MarshalFile(rows, f); err != nil {
		return fmt.Errorf("storage: writing %s: %w", filepath.Base(path), err)
	}
	return nil
}

func readCSV(path string, out any) error {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", dynamo.ErrNotFound, path)
		}
		return err
	}
	defer f.Close()
	if err := gocsv.UnmarshalFile(f, out); err != nil {
		return fmt.Errorf("storage: reading %s: %w", filepath.Base(path), err)
	}
	return nil
}
