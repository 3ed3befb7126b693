package etl

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
)

func TestProcessFile_CSV(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "corpus.csv")
	out := filepath.Join(dir, "corrected.csv")

	input := [][]string{
		{"id", "title", "artist", "lyrics"},
		{"1", "Song A", "Artist A", "Dont stop ma-"},
		{"2", "Song B", "Artist B", "got 15 cats"},
		{"3", "Song C", "Artist C", ""},
	}
	f, err := os.Create(in)
	if err != nil {
		t.Fatalf("Create input failed: %v", err)
	}
	w := csv.NewWriter(f)
	if err := w.WriteAll(input); err != nil {
		t.Fatalf("Write input failed: %v", err)
	}
	f.Close()

	cfg := DefaultConfig()
	cfg.Settings.Contractions = true
	cfg.Settings.NumberToText = true
	cfg.WorkerCount = 2

	p := NewPipeline(nil, cfg, zap.NewNop())
	result, err := p.ProcessFile(context.Background(), in, out)
	if err != nil {
		t.Fatalf("ProcessFile failed: %v", err)
	}

	// The empty-lyrics record is dropped by validation.
	if result.TotalRecords != 2 || result.ProcessedOK != 2 {
		t.Errorf("Result = %+v", result)
	}
	if result.Changed != 2 {
		t.Errorf("Changed = %d, want 2", result.Changed)
	}

	of, err := os.Open(out)
	if err != nil {
		t.Fatalf("Open output failed: %v", err)
	}
	defer of.Close()
	rows, err := csv.NewReader(of).ReadAll()
	if err != nil {
		t.Fatalf("Read output failed: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("Output rows = %d, want header + 2", len(rows))
	}
	if rows[1][3] != "Don't stop ma—" {
		t.Errorf("Row 1 lyrics = %q", rows[1][3])
	}
	if rows[2][3] != "got fifteen cats" {
		t.Errorf("Row 2 lyrics = %q", rows[2][3])
	}
}

func TestProcessFile_JSONLines(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "corpus.json")
	out := filepath.Join(dir, "corrected.json")

	f, err := os.Create(in)
	if err != nil {
		t.Fatalf("Create input failed: %v", err)
	}
	enc := json.NewEncoder(f)
	for _, rec := range []LyricsRecord{
		{ID: "1", Title: "A", Artist: "X", Lyrics: "cant stop"},
		{ID: "2", Title: "B", Artist: "Y", Lyrics: "(unclosed verse"},
	} {
		if err := enc.Encode(rec); err != nil {
			t.Fatalf("Encode input failed: %v", err)
		}
	}
	f.Close()

	cfg := DefaultConfig()
	cfg.Settings.Contractions = true

	p := NewPipeline(nil, cfg, zap.NewNop())
	result, err := p.ProcessFile(context.Background(), in, out)
	if err != nil {
		t.Fatalf("ProcessFile failed: %v", err)
	}
	if result.TotalRecords != 2 {
		t.Fatalf("TotalRecords = %d", result.TotalRecords)
	}

	of, err := os.Open(out)
	if err != nil {
		t.Fatalf("Open output failed: %v", err)
	}
	defer of.Close()
	dec := json.NewDecoder(of)

	var first, second LyricsRecord
	if err := dec.Decode(&first); err != nil {
		t.Fatalf("Decode output failed: %v", err)
	}
	if err := dec.Decode(&second); err != nil {
		t.Fatalf("Decode output failed: %v", err)
	}
	if first.Lyrics != "can't stop" {
		t.Errorf("First lyrics = %q", first.Lyrics)
	}
	if second.Lyrics != "⚠(⚠unclosed verse" {
		t.Errorf("Second lyrics = %q", second.Lyrics)
	}
}

func TestDetectFileFormat(t *testing.T) {
	tests := []struct {
		name string
		want FileFormat
	}{
		{"corpus.csv", FormatCSV},
		{"corpus.parquet", FormatParquet},
		{"corpus.json", FormatJSON},
		{"corpus.txt", FormatCSV},
	}
	for _, tt := range tests {
		if got := DetectFileFormat(tt.name); got != tt.want {
			t.Errorf("DetectFileFormat(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}
