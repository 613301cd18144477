package telemetry

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"

	"github.com/pthm-cable/flowfield/config"
	"github.com/pthm-cable/flowfield/systems"
)

// OutputManager handles bake output: CSV logs, config snapshot and images.
type OutputManager struct {
	dir        string
	buildsFile *os.File
	perfFile   *os.File

	// Track if headers have been written
	buildsHeaderWritten bool
	perfHeaderWritten   bool
}

// NewOutputManager creates a new output manager and initializes the output directory.
// Returns nil if dir is empty (output disabled).
func NewOutputManager(dir string) (*OutputManager, error) {
	if dir == "" {
		return nil, nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	om := &OutputManager{dir: dir}

	f, err := os.Create(filepath.Join(dir, "builds.csv"))
	if err != nil {
		return nil, fmt.Errorf("creating builds.csv: %w", err)
	}
	om.buildsFile = f

	f, err = os.Create(filepath.Join(dir, "perf.csv"))
	if err != nil {
		om.buildsFile.Close()
		return nil, fmt.Errorf("creating perf.csv: %w", err)
	}
	om.perfFile = f

	return om, nil
}

// WriteConfig saves the configuration the bake used as YAML.
func (om *OutputManager) WriteConfig(cfg *config.Config) error {
	if om == nil {
		return nil
	}
	return cfg.WriteYAML(filepath.Join(om.dir, "config.yaml"))
}

// WriteBuild appends a record to builds.csv.
func (om *OutputManager) WriteBuild(rec BuildRecord) error {
	if om == nil {
		return nil
	}
	if err := writeRecords(om.buildsFile, []BuildRecord{rec}, &om.buildsHeaderWritten); err != nil {
		return fmt.Errorf("writing build: %w", err)
	}
	return nil
}

// WritePerf appends a performance record to perf.csv.
func (om *OutputManager) WritePerf(stats PerfStats) error {
	if om == nil {
		return nil
	}
	if err := writeRecords(om.perfFile, []PerfStatsCSV{stats.ToCSV()}, &om.perfHeaderWritten); err != nil {
		return fmt.Errorf("writing perf: %w", err)
	}
	return nil
}

// WriteCells dumps every cell of the field to cells.csv, replacing any
// previous dump.
func (om *OutputManager) WriteCells(field *systems.FlowField) error {
	if om == nil {
		return nil
	}
	f, err := os.Create(filepath.Join(om.dir, "cells.csv"))
	if err != nil {
		return fmt.Errorf("creating cells.csv: %w", err)
	}
	defer f.Close()

	if err := gocsv.MarshalFile(CellRecords(field), f); err != nil {
		return fmt.Errorf("writing cells: %w", err)
	}
	return nil
}

// Path returns the location of a named file in the output directory.
func (om *OutputManager) Path(name string) string {
	if om == nil {
		return ""
	}
	return filepath.Join(om.dir, name)
}

// Dir returns the output directory path.
func (om *OutputManager) Dir() string {
	if om == nil {
		return ""
	}
	return om.dir
}

// Close flushes and closes all output files.
func (om *OutputManager) Close() error {
	if om == nil {
		return nil
	}

	var firstErr error
	for _, f := range []*os.File{om.buildsFile, om.perfFile} {
		if f == nil {
			continue
		}
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// writeRecords writes a header only on the first call per file.
func writeRecords(f *os.File, records any, headerWritten *bool) error {
	if !*headerWritten {
		if err := gocsv.Marshal(records, f); err != nil {
			return err
		}
		*headerWritten = true
		return nil
	}
	return gocsv.MarshalWithoutHeaders(records, f)
}
