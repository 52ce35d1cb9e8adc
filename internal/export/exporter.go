package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ppiankov/clinsum/internal/logger"
	"github.com/ppiankov/clinsum/internal/metrics"
	"github.com/ppiankov/clinsum/internal/render"
	"github.com/sirupsen/logrus"
)

// Filename is the fixed name of the exported document
const Filename = "clinical-summary.pdf"

var (
	// ErrExportInProgress is returned when an export overlaps a running one
	ErrExportInProgress = errors.New("an export is already in progress")

	// ErrNoSummary is returned when there is no summary view to capture
	ErrNoSummary = errors.New("no summary to export")
)

// Exporter turns the summary view into a one-page PDF.
// At most one export runs at a time.
type Exporter struct {
	scale     float64
	rasterize func(*render.SummaryView, float64) (image.Image, error)

	mu        sync.Mutex
	exporting bool
	lastErr   string
}

// NewExporter creates an exporter rendering at scale (DefaultScale when <= 0)
func NewExporter(scale float64) *Exporter {
	if scale <= 0 {
		scale = DefaultScale
	}
	return &Exporter{scale: scale, rasterize: Rasterize}
}

// Status reports whether an export is running and how the last one failed
func (e *Exporter) Status() render.ExportStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	return render.ExportStatus{InProgress: e.exporting, Err: e.lastErr}
}

func (e *Exporter) acquire() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.exporting {
		return false
	}
	e.exporting = true
	return true
}

func (e *Exporter) release(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.exporting = false
	if err != nil {
		e.lastErr = err.Error()
	} else {
		e.lastErr = ""
	}
}

// Export rasterizes sv and writes the PDF to w. Nothing is written to w
// unless the document was built completely.
func (e *Exporter) Export(ctx context.Context, sv *render.SummaryView, w io.Writer) (err error) {
	if sv == nil {
		return ErrNoSummary
	}
	if !e.acquire() {
		return ErrExportInProgress
	}

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("export panicked: %v", r)
		}
		e.release(err)

		outcome := "success"
		if err != nil {
			outcome = "error"
			logger.WithError(err).Error("Failed to export PDF")
		}
		metrics.Default.ObserveExport(outcome, time.Since(start))
	}()

	img, err := e.rasterize(sv, e.scale)
	if err != nil {
		return fmt.Errorf("rasterize summary: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var buf bytes.Buffer
	placement, err := BuildPDF(&buf, img)
	if err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{
		"width_px":  img.Bounds().Dx(),
		"height_px": img.Bounds().Dy(),
		"overflow":  placement.Overflow,
		"bytes":     buf.Len(),
	}).Info("PDF export built")

	if _, err := buf.WriteTo(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

// ExportFile exports to path, replacing it only once the document is complete
func (e *Exporter) ExportFile(ctx context.Context, sv *render.SummaryView, path string) error {
	var buf bytes.Buffer
	if err := e.Export(ctx, sv, &buf); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".clinsum-*.pdf")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := buf.WriteTo(tmp); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename to %s: %w", path, err)
	}
	return nil
}
