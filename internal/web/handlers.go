package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/ppiankov/clinsum/internal/cache"
	"github.com/ppiankov/clinsum/internal/export"
	"github.com/ppiankov/clinsum/internal/logger"
	"github.com/ppiankov/clinsum/internal/render"
	"github.com/ppiankov/clinsum/internal/session"
)

// maxNoteBytes bounds request bodies carrying a note
const maxNoteBytes = 1 << 20

type summarizeRequest struct {
	Note string `json:"note"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.WithError(err).Warn("Failed to encode response")
	}
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) view() render.View {
	return render.Build(s.session.State(), s.exporter.Status())
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := render.WriteHTML(&buf, s.view(), s.cfg.RefreshSeconds); err != nil {
		logger.WithError(err).Error("Failed to render page")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

// handleSummarizeForm starts a summary in the background and sends the
// browser back to the page, which shows the loading state until it settles.
func (s *Server) handleSummarizeForm(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxNoteBytes)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	// the input is disabled while loading; a stale form is dropped and the note kept
	if _, _, err := s.session.SubmitNote(s.ctx, r.PostFormValue("note")); err != nil && !errors.Is(err, session.ErrBusy) {
		logger.WithError(err).Error("Failed to submit note")
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.session.State())
}

// handleSummarizeAPI runs one attempt and answers with the settled state
func (s *Server) handleSummarizeAPI(w http.ResponseWriter, r *http.Request) {
	var req summarizeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxNoteBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid request"})
		return
	}

	st, err := s.session.RequestNote(r.Context(), req.Note)
	if errors.Is(err, session.ErrBusy) {
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
		return
	}

	status := http.StatusOK
	switch {
	case st.Phase == session.Failed && st.Err == session.EmptyNoteMessage:
		status = http.StatusUnprocessableEntity
	case st.Phase == session.Failed:
		status = http.StatusBadGateway
	}
	writeJSON(w, status, st)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	st := s.session.State()
	if st.Phase != session.Succeeded || st.Summary == nil {
		http.Error(w, export.ErrNoSummary.Error(), http.StatusConflict)
		return
	}

	var buf bytes.Buffer
	err := s.exporter.Export(r.Context(), render.BuildSummary(st.Summary), &buf)
	switch {
	case errors.Is(err, export.ErrExportInProgress), errors.Is(err, export.ErrNoSummary):
		http.Error(w, err.Error(), http.StatusConflict)
		return
	case err != nil:
		http.Error(w, fmt.Sprintf("%s: %v", render.ExportErrorTitle, err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", s.filename))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	_, _ = buf.WriteTo(w)
}

// handleReady reports whether the configured backend answers, reusing a
// recent probe while it is fresh.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	name, endpoint := s.backend.ProviderName(), s.backend.Endpoint()

	probe, cached := s.probes.Check(r.Context(), cache.ProbeKey(name, endpoint), func(ctx context.Context) cache.Probe {
		p := cache.Probe{Provider: name, Endpoint: endpoint}
		provider, err := s.backend.Provider()
		if err != nil {
			p.Error = err.Error()
			return p
		}
		p.Available = provider.IsAvailable(ctx)
		if !p.Available {
			p.Error = "provider did not answer"
		}
		return p
	})

	w.Header().Set("X-Probe-Cached", strconv.FormatBool(cached))
	status := http.StatusOK
	if !probe.Available {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, probe)
}
