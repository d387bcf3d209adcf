package web

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/JonMunkholm/tickets/internal/app"
	"github.com/JonMunkholm/tickets/internal/apperr"
	"github.com/JonMunkholm/tickets/internal/logging"
	"github.com/JonMunkholm/tickets/internal/store"
	"github.com/JonMunkholm/tickets/internal/table"
	"github.com/JonMunkholm/tickets/internal/validate"
)

// maxFormMemory is how much of a multipart form is buffered in memory;
// larger parts spill to temporary files.
const maxFormMemory = 32 << 20

// defaultListLimit is the number of runs listed when no limit is given.
const defaultListLimit = 50

// RunResponse is the JSON report of a completed run.
type RunResponse struct {
	ID             uuid.UUID                  `json:"id"`
	Status         string                     `json:"status"`
	StartedAt      time.Time                  `json:"started_at"`
	FinishedAt     time.Time                  `json:"finished_at"`
	BarcodeRows    int                        `json:"barcode_rows"`
	OrderRows      int                        `json:"order_rows"`
	DuplicateCount int                        `json:"duplicate_count"`
	OrphanCount    int                        `json:"orphan_count"`
	Findings       []validate.ValidationError `json:"findings"`
	Aggregated     []table.Record             `json:"aggregated"`
	TopN           int                        `json:"top_n"`
	TopCustomers   []store.CustomerTotal      `json:"top_customers"`
	UnusedBarcodes int                        `json:"unused_barcodes"`
	OutputFile     string                     `json:"output_file"`
	Warnings       []string                   `json:"warnings,omitempty"`
}

func newRunResponse(out *app.Outcome, topN int) RunResponse {
	resp := RunResponse{
		ID:             out.RunID,
		Status:         store.StatusCompleted,
		StartedAt:      out.StartedAt,
		FinishedAt:     out.FinishedAt,
		BarcodeRows:    out.BarcodeRows,
		OrderRows:      out.OrderRows,
		DuplicateCount: out.DuplicateCount,
		OrphanCount:    out.OrphanCount,
		Findings:       out.Findings,
		TopN:           topN,
		TopCustomers:   out.TopCustomers,
		UnusedBarcodes: out.Unused,
		OutputFile:     filepath.Base(out.OutputFile),
		Warnings:       out.Warnings,
	}
	if resp.Findings == nil {
		resp.Findings = []validate.ValidationError{}
	}
	if resp.TopCustomers == nil {
		resp.TopCustomers = []store.CustomerTotal{}
	}
	resp.Aggregated = out.Aggregated.Records()
	return resp
}

// handleCreateRun runs the pipeline on the uploaded "barcodes" and
// "orders" files. An optional "top_n" form value overrides the default.
func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	// Two files plus form overhead.
	r.Body = http.MaxBytesReader(w, r.Body, 2*s.cfg.Run.MaxFileSize+1<<20)
	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, r, fmt.Errorf("file too large: %w", err), http.StatusRequestEntityTooLarge)
			return
		}
		respondError(w, r, apperr.Configf("invalid option: multipart form expected: %v", err), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	topN, err := s.parseTopN(r)
	if err != nil {
		respondError(w, r, err, http.StatusBadRequest)
		return
	}

	if err := s.limiter.Acquire(r.Context()); err != nil {
		respondError(w, r, err, 0)
		return
	}
	defer s.limiter.Release()

	dir, err := os.MkdirTemp("", "tickets-upload-*")
	if err != nil {
		respondError(w, r, fmt.Errorf("create upload directory: %w", err), http.StatusInternalServerError)
		return
	}
	defer os.RemoveAll(dir)

	barcodesPath, err := saveUpload(r, "barcodes", dir)
	if err != nil {
		respondError(w, r, err, http.StatusBadRequest)
		return
	}
	ordersPath, err := saveUpload(r, "orders", dir)
	if err != nil {
		respondError(w, r, err, http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.Run.Timeout)
	defer cancel()

	out, err := s.app.Run(ctx, app.Inputs{
		BarcodesPath: barcodesPath,
		OrdersPath:   ordersPath,
		OutputDir:    s.cfg.Run.OutputDir,
		TopN:         topN,
		PerRunOutput: true,
	})
	if err != nil {
		respondRunError(w, r, err, 0, out.RunID.String())
		return
	}

	logging.WithFields(r.Context(), "run_id", out.RunID).Info("run served",
		"findings", len(out.Findings),
		"aggregated", out.Aggregated.Len(),
	)
	writeJSON(w, http.StatusCreated, newRunResponse(out, topN))
}

func (s *Server) parseTopN(r *http.Request) (int, error) {
	raw := strings.TrimSpace(r.FormValue("top_n"))
	if raw == "" {
		return s.cfg.Run.TopN, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, apperr.Configf("invalid option: top_n must be a non-negative integer, got %q", raw)
	}
	return n, nil
}

// saveUpload copies the form file field into its own directory under dir,
// keeping the client's base name so output files are named after it.
func saveUpload(r *http.Request, field, dir string) (string, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		return "", fmt.Errorf("no file provided: %s", field)
	}
	defer file.Close()

	target := filepath.Join(dir, field)
	if err := os.MkdirAll(target, 0o755); err != nil {
		return "", fmt.Errorf("create upload directory: %w", err)
	}

	path := filepath.Join(target, uploadName(header, field))
	dst, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("store upload: %w", err)
	}
	if _, err := io.Copy(dst, file); err != nil {
		dst.Close()
		return "", fmt.Errorf("store upload: %w", err)
	}
	if err := dst.Close(); err != nil {
		return "", fmt.Errorf("store upload: %w", err)
	}
	return path, nil
}

// uploadName returns a safe file name for an uploaded part.
func uploadName(h *multipart.FileHeader, field string) string {
	name := filepath.Base(filepath.Clean("/" + strings.ReplaceAll(h.Filename, `\`, "/")))
	if name == "/" || name == "." || name == "" {
		return field + ".csv"
	}
	return name
}

// handleListRuns returns the most recent runs. ?limit=N caps the count.
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := parseIntParam(r, "limit", defaultListLimit)

	runs, err := s.store.ListRuns(r.Context(), limit)
	if err != nil {
		respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []store.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

// handleGetRun returns one stored run.
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.lookupRun(r)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// handleRunOutput downloads the aggregated CSV of a completed run.
func (s *Server) handleRunOutput(w http.ResponseWriter, r *http.Request) {
	run, err := s.lookupRun(r)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	if run.OutputFile == "" {
		respondError(w, r, fmt.Errorf("run %s has no output: %w", run.ID, store.ErrRunNotFound), http.StatusNotFound)
		return
	}

	f, err := os.Open(run.OutputFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			err = fmt.Errorf("output of run %s was removed: %w", run.ID, store.ErrRunNotFound)
		}
		respondError(w, r, err, 0)
		return
	}
	defer f.Close()

	name := filepath.Base(run.OutputFile)
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	http.ServeContent(w, r, name, run.FinishedAt, f)
}

func (s *Server) lookupRun(r *http.Request) (*store.Run, error) {
	id, err := uuid.Parse(chi.URLParam(r, "runID"))
	if err != nil {
		return nil, fmt.Errorf("invalid run id %q: %w", chi.URLParam(r, "runID"), store.ErrRunNotFound)
	}
	return s.store.GetRun(r.Context(), id)
}

// handleHealth reports liveness and run capacity.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"runs":   s.limiter.Status(),
	})
}

// parseIntParam parses a positive integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}
