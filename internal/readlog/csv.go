// Package readlog persists validated plate reads.
//
// The primary store is a CSV file created once per run with a fixed header.
// Each accepted read is written by its own open/write/close cycle so that a
// crash can lose at most the row being written.
package readlog

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// TimestampLayout is the row timestamp format (YYYY-MM-DD HH:MM:SS).
const TimestampLayout = "2006-01-02 15:04:05"

// Header is the first row of every log file.
var Header = []string{"Plate Number", "Timestamp"}

// PlateRead is a validated read: the only entity that outlives a frame.
type PlateRead struct {
	Text      string
	Timestamp time.Time
}

// Row returns the CSV row for the read.
func (r PlateRead) Row() []string {
	return []string{r.Text, r.Timestamp.Format(TimestampLayout)}
}

// PathFor returns the log path for a run started on day.
func PathFor(dir string, day time.Time) string {
	return filepath.Join(dir, fmt.Sprintf("plates_%s.csv", day.Format("2006-01-02")))
}

// CSVLog is an append-only CSV file of plate reads.
type CSVLog struct {
	path string
}

// Initialize creates or truncates the file at path and writes the header.
// The handle is released before returning.
func Initialize(path string) (*CSVLog, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to create read log: %w", err)
	}

	if err := writeRow(f, Header); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write read log header: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close read log: %w", err)
	}

	return &CSVLog{path: path}, nil
}

// Path returns the file backing the log.
func (l *CSVLog) Path() string {
	return l.path
}

// Append writes one row for read. The file is opened in append mode and
// closed again before returning; there is no buffering across calls.
func (l *CSVLog) Append(read PlateRead) error {
	f, err := os.OpenFile(l.path, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open read log: %w", err)
	}

	if err := writeRow(f, read.Row()); err != nil {
		f.Close()
		return fmt.Errorf("failed to append read: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close read log: %w", err)
	}
	return nil
}

func writeRow(f *os.File, row []string) error {
	w := csv.NewWriter(f)
	w.UseCRLF = true
	if err := w.Write(row); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}
