package readlog

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func readRows(t *testing.T, path string) [][]string {
	t.Helper()

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Failed to open log: %v", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("Failed to parse log: %v", err)
	}
	return rows
}

func TestPathFor(t *testing.T) {
	day := time.Date(2026, time.October, 18, 23, 59, 0, 0, time.Local)
	got := PathFor("logs", day)
	want := filepath.Join("logs", "plates_2026-10-18.csv")
	if got != want {
		t.Errorf("PathFor() = %q, want %q", got, want)
	}
}

func TestInitializeWritesHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plates.csv")

	if _, err := Initialize(path); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}

	rows := readRows(t, path)
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want header only", len(rows))
	}
	if rows[0][0] != "Plate Number" || rows[0][1] != "Timestamp" {
		t.Errorf("header = %v, want %v", rows[0], Header)
	}
}

func TestInitializeTruncatesExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plates.csv")
	if err := os.WriteFile(path, []byte("stale,row\nother,row\n"), 0o644); err != nil {
		t.Fatalf("Failed to seed file: %v", err)
	}

	if _, err := Initialize(path); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}

	if rows := readRows(t, path); len(rows) != 1 {
		t.Errorf("got %d rows after Initialize, want 1", len(rows))
	}
}

func TestInitializeCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "plates.csv")

	if _, err := Initialize(path); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("log file should exist: %v", err)
	}
}

func TestAppendPreservesOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plates.csv")
	log, err := Initialize(path)
	if err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}

	base := time.Date(2026, time.October, 18, 8, 30, 5, 0, time.Local)
	reads := []PlateRead{
		{Text: "XY-78-9Z", Timestamp: base},
		{Text: "AB 1234", Timestamp: base.Add(time.Second)},
		{Text: "XY-78-9Z", Timestamp: base.Add(2 * time.Second)},
	}
	for _, r := range reads {
		if err := log.Append(r); err != nil {
			t.Fatalf("Append(%v) error = %v", r, err)
		}
	}

	rows := readRows(t, path)
	if len(rows) != len(reads)+1 {
		t.Fatalf("got %d rows, want %d", len(rows), len(reads)+1)
	}
	for i, r := range reads {
		row := rows[i+1]
		if row[0] != r.Text {
			t.Errorf("row %d text = %q, want %q", i, row[0], r.Text)
		}
		if row[1] != r.Timestamp.Format(TimestampLayout) {
			t.Errorf("row %d timestamp = %q, want %q", i, row[1], r.Timestamp.Format(TimestampLayout))
		}
	}
	if rows[1][1] != "2026-10-18 08:30:05" {
		t.Errorf("timestamp format = %q, want %q", rows[1][1], "2026-10-18 08:30:05")
	}
}

func TestAppendNeverRewritesPriorRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plates.csv")
	log, err := Initialize(path)
	if err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}

	if err := log.Append(PlateRead{Text: "AB1234", Timestamp: time.Now()}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	before, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}

	if err := log.Append(PlateRead{Text: "CD5678", Timestamp: time.Now()}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	after, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}

	if !strings.HasPrefix(string(after), string(before)) {
		t.Errorf("existing content changed:\nbefore %q\nafter  %q", before, after)
	}
}

func TestAppendQuotesEmbeddedSeparators(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plates.csv")
	log, err := Initialize(path)
	if err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}

	text := `AB,12"34`
	if err := log.Append(PlateRead{Text: text, Timestamp: time.Now()}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	rows := readRows(t, path)
	if rows[1][0] != text {
		t.Errorf("text = %q, want %q", rows[1][0], text)
	}
}

func TestAppendFailsWhenFileRemoved(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plates.csv")
	log, err := Initialize(path)
	if err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if err := os.Remove(path); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}

	if err := log.Append(PlateRead{Text: "AB1234", Timestamp: time.Now()}); err == nil {
		t.Error("Append() should fail when the log file is gone")
	}
}
