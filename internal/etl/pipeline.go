// Package etl runs the correction pipeline over whole lyric corpora: read a
// CSV, JSON-lines or Parquet file, correct every song with a worker pool,
// and write the result in the same layout.
package etl

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/segmentio/parquet-go"
	"go.uber.org/zap"

	"github.com/raaihank/lyricsmith/internal/pipeline"
	"github.com/raaihank/lyricsmith/internal/rules"
)

// Pipeline handles batch correction of lyric corpora.
type Pipeline struct {
	corrector *pipeline.Corrector
	userRules []rules.Rule
	config    *Config
	logger    *zap.Logger
	stats     *ProcessingStats
	mu        sync.RWMutex
}

// NewPipeline creates a new ETL pipeline. userRules are applied after the
// built-ins for every record, same as the interactive path.
func NewPipeline(userRules []rules.Rule, config *Config, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		corrector: pipeline.NewCorrector(logger),
		userRules: userRules,
		config:    config,
		logger:    logger,
		stats: &ProcessingStats{
			StartTime: time.Now(),
		},
	}
}

// recordWriter abstracts the three output encodings.
type recordWriter interface {
	write(rec *LyricsRecord) error
	close() error
}

// ProcessFile corrects every record in inputPath and writes the corrected
// corpus to outputPath. Input and output formats are detected independently
// from the file extensions.
func (p *Pipeline) ProcessFile(ctx context.Context, inputPath, outputPath string) (*ProcessingResult, error) {
	p.logger.Info("Starting ETL pipeline",
		zap.String("input", inputPath),
		zap.String("output", outputPath),
		zap.Int("batch_size", p.config.BatchSize),
		zap.Int("workers", p.config.WorkerCount))

	start := time.Now()
	result := &ProcessingResult{}
	p.resetStats()

	writer, err := p.newWriter(outputPath)
	if err != nil {
		return result, err
	}
	defer writer.close()

	format := DetectFileFormat(inputPath)
	p.logger.Info("Detected input format", zap.String("format", string(format)))

	switch format {
	case FormatCSV:
		err = p.processCSV(ctx, inputPath, writer, result)
	case FormatParquet:
		err = p.processParquet(ctx, inputPath, writer, result)
	case FormatJSON:
		err = p.processJSON(ctx, inputPath, writer, result)
	default:
		return result, fmt.Errorf("unsupported file format: %s", format)
	}
	if err != nil {
		return result, fmt.Errorf("%s processing failed: %w", format, err)
	}

	if err := writer.close(); err != nil {
		return result, fmt.Errorf("failed to finalize output: %w", err)
	}

	result.Duration = time.Since(start)
	p.logger.Info("ETL pipeline completed",
		zap.Int64("total_records", result.TotalRecords),
		zap.Int64("processed_ok", result.ProcessedOK),
		zap.Int64("processed_failed", result.ProcessedFailed),
		zap.Int64("changed", result.Changed),
		zap.Duration("total_duration", result.Duration),
		zap.Duration("correction_time", result.CorrectionTime))

	return result, nil
}

// processCSV processes CSV files with an id,title,artist,lyrics header.
func (p *Pipeline) processCSV(ctx context.Context, filePath string, writer recordWriter, result *ProcessingResult) error {
	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = 4

	header, err := reader.Read()
	if err != nil {
		return fmt.Errorf("failed to read CSV header: %w", err)
	}
	p.logger.Info("CSV header detected", zap.Strings("columns", header))

	return p.processBatches(ctx, func() ([]*LyricsRecord, error) {
		var batch []*LyricsRecord
		for len(batch) < p.config.BatchSize {
			record, err := reader.Read()
			if err == io.EOF {
				break
			}
			if err != nil {
				p.logger.Warn("Failed to read CSV record", zap.Error(err))
				continue
			}
			if len(record) != 4 {
				p.logger.Warn("Invalid CSV record length", zap.Int("length", len(record)))
				continue
			}

			rec := &LyricsRecord{
				ID:     strings.TrimSpace(record[0]),
				Title:  strings.TrimSpace(record[1]),
				Artist: strings.TrimSpace(record[2]),
				Lyrics: record[3],
			}
			if p.validateRecord(rec) {
				batch = append(batch, rec)
			}
		}
		return batch, nil
	}, writer, result)
}

// processParquet processes Parquet files
func (p *Pipeline) processParquet(ctx context.Context, filePath string, writer recordWriter, result *ProcessingResult) error {
	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("failed to open Parquet file: %w", err)
	}
	defer file.Close()

	reader := parquet.NewReader(file)
	defer reader.Close()

	return p.processBatches(ctx, func() ([]*LyricsRecord, error) {
		var batch []*LyricsRecord
		for len(batch) < p.config.BatchSize {
			var record LyricsRecord
			err := reader.Read(&record)
			if err == io.EOF {
				break
			}
			if err != nil {
				p.logger.Warn("Failed to read Parquet record", zap.Error(err))
				continue
			}
			if p.validateRecord(&record) {
				batch = append(batch, &record)
			}
		}
		return batch, nil
	}, writer, result)
}

// processJSON processes JSON files (one JSON object per line)
func (p *Pipeline) processJSON(ctx context.Context, filePath string, writer recordWriter, result *ProcessingResult) error {
	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("failed to open JSON file: %w", err)
	}
	defer file.Close()

	decoder := json.NewDecoder(file)

	return p.processBatches(ctx, func() ([]*LyricsRecord, error) {
		var batch []*LyricsRecord
		for len(batch) < p.config.BatchSize {
			var record LyricsRecord
			err := decoder.Decode(&record)
			if err == io.EOF {
				break
			}
			if err != nil {
				p.logger.Warn("Failed to read JSON record", zap.Error(err))
				continue
			}
			if p.validateRecord(&record) {
				batch = append(batch, &record)
			}
		}
		return batch, nil
	}, writer, result)
}

// processBatches drains the reader function batch by batch.
func (p *Pipeline) processBatches(ctx context.Context, readBatch func() ([]*LyricsRecord, error), writer recordWriter, result *ProcessingResult) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		batch, err := readBatch()
		if err != nil {
			return fmt.Errorf("failed to read batch: %w", err)
		}
		if len(batch) == 0 {
			break // End of file
		}

		if err := p.processBatch(ctx, batch, writer, result); err != nil {
			p.logger.Error("Batch processing failed", zap.Error(err))
			result.ProcessedFailed += int64(len(batch))
			result.Errors = append(result.Errors, err.Error())
			continue
		}

		result.TotalRecords += int64(len(batch))
		result.ProcessedOK += int64(len(batch))

		if p.config.ProgressReport > 0 && result.TotalRecords%int64(p.config.ProgressReport) == 0 {
			p.reportProgress(result)
		}
	}
	return nil
}

// processBatch corrects one batch with a worker pool, then writes the batch
// in input order.
func (p *Pipeline) processBatch(ctx context.Context, batch []*LyricsRecord, writer recordWriter, result *ProcessingResult) error {
	correctStart := time.Now()

	workers := p.config.WorkerCount
	if workers <= 0 {
		workers = 1
	}
	jobs := make(chan int)
	var changed int64
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				rec := batch[i]
				out := p.corrector.Correct(rec.Lyrics, p.config.Settings, p.userRules)
				if out.Text != rec.Lyrics {
					atomic.AddInt64(&changed, 1)
				}
				rec.Lyrics = out.Text
			}
		}()
	}

	for i := range batch {
		select {
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return ctx.Err()
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	result.CorrectionTime += time.Since(correctStart)
	result.Changed += changed

	writeStart := time.Now()
	for _, rec := range batch {
		if err := writer.write(rec); err != nil {
			return fmt.Errorf("failed to write record %q: %w", rec.ID, err)
		}
	}
	result.WriteTime += time.Since(writeStart)

	p.mu.Lock()
	p.stats.RecordsRead += int64(len(batch))
	p.stats.RecordsValid += int64(len(batch))
	p.stats.RecordsChanged += changed
	p.stats.CurrentBatch++
	p.mu.Unlock()

	return nil
}

// validateRecord validates a corpus record
func (p *Pipeline) validateRecord(record *LyricsRecord) bool {
	if !p.config.ValidateData {
		return true
	}
	if strings.TrimSpace(record.Lyrics) == "" {
		p.logger.Debug("Invalid record: empty lyrics", zap.String("id", record.ID))
		return false
	}
	if p.config.MaxLyricsLength > 0 && len(record.Lyrics) > p.config.MaxLyricsLength {
		p.logger.Debug("Invalid record: lyrics too long",
			zap.String("id", record.ID),
			zap.Int("length", len(record.Lyrics)))
		return false
	}
	return true
}

// reportProgress reports current processing progress
func (p *Pipeline) reportProgress(result *ProcessingResult) {
	elapsed := time.Since(p.stats.StartTime)
	rate := float64(result.TotalRecords) / elapsed.Seconds()

	p.logger.Info("Processing progress",
		zap.Int64("records_processed", result.TotalRecords),
		zap.Int64("records_ok", result.ProcessedOK),
		zap.Int64("records_changed", result.Changed),
		zap.Float64("rate_per_sec", rate),
		zap.Duration("elapsed", elapsed))
}

// resetStats resets processing statistics
func (p *Pipeline) resetStats() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stats = &ProcessingStats{StartTime: time.Now()}
}

// GetStats returns current processing statistics
func (p *Pipeline) GetStats() *ProcessingStats {
	p.mu.RLock()
	defer p.mu.RUnlock()
	stats := *p.stats
	elapsed := time.Since(stats.StartTime).Seconds()
	if elapsed > 0 {
		stats.ProcessingRate = float64(stats.RecordsRead) / elapsed
	}
	return &stats
}

// newWriter opens outputPath with the encoding its extension selects.
func (p *Pipeline) newWriter(outputPath string) (recordWriter, error) {
	file, err := os.Create(outputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}

	switch DetectFileFormat(outputPath) {
	case FormatParquet:
		return &parquetWriter{file: file, writer: parquet.NewWriter(file)}, nil
	case FormatJSON:
		return &jsonWriter{file: file, encoder: json.NewEncoder(file)}, nil
	default:
		w := csv.NewWriter(file)
		if err := w.Write([]string{"id", "title", "artist", "lyrics"}); err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to write CSV header: %w", err)
		}
		return &csvWriter{file: file, writer: w}, nil
	}
}

type csvWriter struct {
	file   *os.File
	writer *csv.Writer
	closed bool
}

func (w *csvWriter) write(rec *LyricsRecord) error {
	return w.writer.Write([]string{rec.ID, rec.Title, rec.Artist, rec.Lyrics})
}

func (w *csvWriter) close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	w.writer.Flush()
	if err := w.writer.Error(); err != nil {
		w.file.Close()
		return err
	}
	return w.file.Close()
}

type jsonWriter struct {
	file    *os.File
	encoder *json.Encoder
	closed  bool
}

func (w *jsonWriter) write(rec *LyricsRecord) error {
	return w.encoder.Encode(rec)
}

func (w *jsonWriter) close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	return w.file.Close()
}

type parquetWriter struct {
	file   *os.File
	writer *parquet.Writer
	closed bool
}

func (w *parquetWriter) write(rec *LyricsRecord) error {
	return w.writer.Write(rec)
}

func (w *parquetWriter) close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	if err := w.writer.Close(); err != nil {
		w.file.Close()
		return err
	}
	return w.file.Close()
}
