package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ppiankov/clinsum/internal/export"
	"github.com/ppiankov/clinsum/internal/extract"
	"github.com/ppiankov/clinsum/internal/logger"
	"github.com/ppiankov/clinsum/internal/model"
	"github.com/ppiankov/clinsum/internal/render"
	"github.com/ppiankov/clinsum/internal/session"
	"github.com/sirupsen/logrus"
)

// Summarizer turns one note into a summary
type Summarizer interface {
	Summarize(ctx context.Context, note string) (*model.ClinicalSummary, error)
}

// Options tunes a batch run
type Options struct {
	Workers           int
	RequestsPerSecond float64 // per backend host; 0 = unlimited
	Burst             int
	Endpoint          string  // backend base URL, the rate limiting key
	OutDir            string  // empty writes results next to each note
	WritePDF          bool
	Scale             float64
}

// NoteJob summarizes one note file
type NoteJob struct {
	Path      string
	Processor *BatchProcessor
}

// Execute executes the note job
func (j *NoteJob) Execute(ctx context.Context) Result {
	return j.Processor.processNote(ctx, j.Path)
}

// NoteResult is the outcome for one note file
type NoteResult struct {
	Path     string
	Summary  *model.ClinicalSummary
	JSONPath string
	PDFPath  string
	Duration time.Duration
	Error    error
}

// GetError returns the error from the note result
func (r *NoteResult) GetError() error {
	return r.Error
}

// BatchProcessor summarizes a directory of notes concurrently.
// Each note gets exactly one summarization attempt.
type BatchProcessor struct {
	summarizer Summarizer
	limiter    *Limiter
	opts       Options
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(summarizer Summarizer, opts Options) *BatchProcessor {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	return &BatchProcessor{
		summarizer: summarizer,
		limiter:    NewLimiter(opts.RequestsPerSecond, opts.Burst),
		opts:       opts,
	}
}

// ProcessDir summarizes every note file in dir (not recursive)
func (b *BatchProcessor) ProcessDir(ctx context.Context, dir string) ([]*NoteResult, error) {
	paths, err := ListNotes(dir)
	if err != nil {
		return nil, err
	}
	return b.ProcessFiles(ctx, paths)
}

// ProcessFiles summarizes the given note files; results are sorted by path
func (b *BatchProcessor) ProcessFiles(ctx context.Context, paths []string) ([]*NoteResult, error) {
	if len(paths) == 0 {
		return []*NoteResult{}, nil
	}

	if b.opts.OutDir != "" {
		if err := os.MkdirAll(b.opts.OutDir, 0o755); err != nil {
			return nil, fmt.Errorf("create output dir: %w", err)
		}
	}

	pool := NewPool(ctx, b.opts.Workers)
	pool.Start()

	var noteResults []*NoteResult
	owners := make(map[string]string, len(paths))
	for _, path := range paths {
		base := b.outputBase(path)
		if owner, taken := owners[base]; taken {
			noteResults = append(noteResults, &NoteResult{
				Path:  path,
				Error: fmt.Errorf("output %s.json already belongs to %s", base, owner),
			})
			continue
		}
		owners[base] = path

		if !pool.Submit(&NoteJob{Path: path, Processor: b}) {
			break
		}
	}

	for _, result := range pool.Wait() {
		noteResults = append(noteResults, result.(*NoteResult))
	}
	sort.Slice(noteResults, func(i, j int) bool {
		return noteResults[i].Path < noteResults[j].Path
	})

	if err := ctx.Err(); err != nil {
		return noteResults, err
	}
	return noteResults, nil
}

func (b *BatchProcessor) processNote(ctx context.Context, path string) *NoteResult {
	start := time.Now()
	result := &NoteResult{Path: path}
	log := logger.WithField("note", filepath.Base(path))

	defer func() {
		result.Duration = time.Since(start)
		if result.Error != nil {
			log.WithError(result.Error).Warn("Note failed")
			return
		}
		log.WithFields(logrus.Fields{
			"is_emergency": result.Summary.IsEmergency,
			"duration_ms":  result.Duration.Milliseconds(),
		}).Info("Note summarized")
	}()

	note, err := extract.ReadNote(path)
	if err != nil {
		result.Error = err
		return result
	}
	if strings.TrimSpace(note) == "" {
		result.Error = errors.New(session.EmptyNoteMessage)
		return result
	}

	if err := b.limiter.Wait(ctx, b.opts.Endpoint); err != nil {
		result.Error = fmt.Errorf("rate limit: %w", err)
		return result
	}

	st, err := session.NewController(b.summarizer).RequestNote(ctx, note)
	if err != nil {
		result.Error = err
		return result
	}
	if st.Phase != session.Succeeded {
		result.Error = errors.New(st.Err)
		return result
	}
	result.Summary = st.Summary

	base := b.outputBase(path)
	result.JSONPath = base + ".json"
	if err := WriteSummaryJSON(result.JSONPath, st.Summary); err != nil {
		result.Error = err
		return result
	}

	if b.opts.WritePDF {
		result.PDFPath = base + ".pdf"
		// one exporter per note: the export guard is per document
		exporter := export.NewExporter(b.opts.Scale)
		if err := exporter.ExportFile(ctx, render.BuildSummary(st.Summary), result.PDFPath); err != nil {
			result.Error = fmt.Errorf("export pdf: %w", err)
			return result
		}
	}

	return result
}

// outputBase is the result path for a note before the .json/.pdf suffix.
// The note's own extension is kept so visit.txt and visit.html stay apart.
func (b *BatchProcessor) outputBase(path string) string {
	dir := filepath.Dir(path)
	if b.opts.OutDir != "" {
		dir = b.opts.OutDir
	}
	return filepath.Join(dir, filepath.Base(path))
}

// ListNotes returns the note files in dir, sorted
func ListNotes(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read notes dir: %w", err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		if extract.IsNoteFile(entry.Name()) {
			paths = append(paths, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// WriteSummaryJSON writes the summary as indented JSON
func WriteSummaryJSON(path string, summary *model.ClinicalSummary) error {
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
