package etl

import (
	"time"

	"github.com/raaihank/lyricsmith/internal/pipeline"
)

// LyricsRecord represents a single song in an input corpus.
type LyricsRecord struct {
	ID     string `csv:"id" parquet:"id" json:"id"`
	Title  string `csv:"title" parquet:"title" json:"title"`
	Artist string `csv:"artist" parquet:"artist" json:"artist"`
	Lyrics string `csv:"lyrics" parquet:"lyrics" json:"lyrics"`
}

// ProcessingResult represents the result of processing a corpus
type ProcessingResult struct {
	TotalRecords    int64         `json:"total_records"`
	ProcessedOK     int64         `json:"processed_ok"`
	ProcessedFailed int64         `json:"processed_failed"`
	Changed         int64         `json:"changed"`
	Duration        time.Duration `json:"duration"`
	CorrectionTime  time.Duration `json:"correction_time"`
	WriteTime       time.Duration `json:"write_time"`
	Errors          []string      `json:"errors,omitempty"`
}

// Config contains ETL pipeline configuration
type Config struct {
	BatchSize       int               `yaml:"batch_size" mapstructure:"batch_size"`               // 1000
	WorkerCount     int               `yaml:"worker_count" mapstructure:"worker_count"`           // 4
	ValidateData    bool              `yaml:"validate_data" mapstructure:"validate_data"`         // true
	ProgressReport  int               `yaml:"progress_report" mapstructure:"progress_report"`     // 1000
	MaxLyricsLength int               `yaml:"max_lyrics_length" mapstructure:"max_lyrics_length"` // 100000
	Settings        pipeline.Settings `yaml:"settings" mapstructure:"settings"`
}

// DefaultConfig returns the standard batch configuration.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:       1000,
		WorkerCount:     4,
		ValidateData:    true,
		ProgressReport:  1000,
		MaxLyricsLength: 100000,
		Settings:        pipeline.DefaultSettings(),
	}
}

// ProcessingStats tracks real-time processing statistics
type ProcessingStats struct {
	StartTime      time.Time `json:"start_time"`
	RecordsRead    int64     `json:"records_read"`
	RecordsValid   int64     `json:"records_valid"`
	RecordsInvalid int64     `json:"records_invalid"`
	RecordsChanged int64     `json:"records_changed"`
	CurrentBatch   int64     `json:"current_batch"`
	ProcessingRate float64   `json:"processing_rate"` // records per second
}

// FileFormat represents supported file formats
type FileFormat string

const (
	FormatCSV     FileFormat = "csv"
	FormatParquet FileFormat = "parquet"
	FormatJSON    FileFormat = "json"
)

// DetectFileFormat detects file format from extension
func DetectFileFormat(filename string) FileFormat {
	switch {
	case len(filename) >= 4 && filename[len(filename)-4:] == ".csv":
		return FormatCSV
	case len(filename) >= 8 && filename[len(filename)-8:] == ".parquet":
		return FormatParquet
	case len(filename) >= 5 && filename[len(filename)-5:] == ".json":
		return FormatJSON
	default:
		return FormatCSV // Default to CSV
	}
}
