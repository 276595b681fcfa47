// Package telemetry writes one CSV row per simulation tick.
package telemetry

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gocarina/gocsv"

	"github.com/jiri/constellation/core"
	"github.com/jiri/constellation/internal/logging"
)

// TickRecord is one CSV row.
type TickRecord struct {
	Tick         uint64  `csv:"tick"`
	SimTime      string  `csv:"sim_time"`
	Connections  int     `csv:"connections"`
	Wiring       int     `csv:"wiring"`
	Wireless     int     `csv:"wireless"`
	Manual       int     `csv:"manual"`
	EnergyPooled float64 `csv:"energy_pooled"`
	DurationMs   float64 `csv:"duration_ms"`
	Error        string  `csv:"error"`
}

// EnergyGauge reports the total energy held in pools.
type EnergyGauge interface {
	TotalPooled() float64
}

// Recorder appends tick records to a CSV stream.
type Recorder struct {
	mu            sync.Mutex
	w             io.Writer
	closer        io.Closer
	headerWritten bool

	registry *core.Registry
	energy   EnergyGauge
	log      logging.Logger
}

// NewRecorder writes to w. energy may be nil.
func NewRecorder(w io.Writer, registry *core.Registry, energy EnergyGauge, log logging.Logger) *Recorder {
	if log == nil {
		log = logging.Noop()
	}
	return &Recorder{w: w, registry: registry, energy: energy, log: log}
}

// Create opens path for writing, creating parent directories. Returns nil
// if path is empty (output disabled).
func Create(path string, registry *core.Registry, energy EnergyGauge, log logging.Logger) (*Recorder, error) {
	if path == "" {
		return nil, nil
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating telemetry directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", path, err)
	}
	r := NewRecorder(f, registry, energy, log)
	r.closer = f
	return r, nil
}

// Observe is a core.TickListener.
func (r *Recorder) Observe(ctx context.Context, report core.TickReport) {
	if r == nil {
		return
	}
	rec := TickRecord{
		Tick:        report.Tick,
		SimTime:     report.Time.UTC().Format(time.RFC3339Nano),
		Connections: report.Connections,
		DurationMs:  float64(report.Duration) / float64(time.Millisecond),
	}
	if r.registry != nil {
		counts := r.registry.Counts()
		rec.Wiring = counts[core.AuthorityWiring]
		rec.Wireless = counts[core.AuthorityWireless]
		rec.Manual = counts[core.AuthorityManual]
	}
	if r.energy != nil {
		rec.EnergyPooled = r.energy.TotalPooled()
	}
	if report.Err != nil {
		rec.Error = report.Err.Error()
	}
	if err := r.Write(rec); err != nil {
		r.log.Warn(ctx, "telemetry write failed", logging.Err(err))
	}
}

// Write appends one record, emitting the header first.
func (r *Recorder) Write(rec TickRecord) error {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	records := []TickRecord{rec}
	if !r.headerWritten {
		if err := gocsv.Marshal(records, r.w); err != nil {
			return fmt.Errorf("writing telemetry: %w", err)
		}
		r.headerWritten = true
		return nil
	}
	if err := gocsv.MarshalWithoutHeaders(records, r.w); err != nil {
		return fmt.Errorf("writing telemetry: %w", err)
	}
	return nil
}

// Close closes the underlying file, if the recorder opened one.
func (r *Recorder) Close() error {
	if r == nil || r.closer == nil {
		return nil
	}
	return r.closer.Close()
}
