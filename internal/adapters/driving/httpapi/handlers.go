package httpapi

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/archivista/lore-ingest/internal/core/domain"
	"github.com/archivista/lore-ingest/internal/core/ports/driving"
)

// maxUploadBytes caps multipart uploads read into the spool directory.
const maxUploadBytes = 256 << 20

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if err := s.pinger.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "store unreachable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleProfiles(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"profiles": s.pipeline.Profiles()})
}

func (s *Server) handleExtractors(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"extensions": s.pipeline.Extractors()})
}

// ingestRequest is the JSON body for POST /v1/ingest when the source file is
// already on disk. Multipart requests carry the same fields as form values.
type ingestRequest struct {
	Path        string `json:"path"`
	Title       string `json:"title,omitempty"`
	Author      string `json:"author,omitempty"`
	Profile     string `json:"profile,omitempty"`
	WindowChars int    `json:"window_chars,omitempty"`
	StrideChars int    `json:"stride_chars,omitempty"`
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid content type")
		return
	}

	var req ingestRequest
	var cleanup func()
	switch mediaType {
	case "multipart/form-data":
		req, cleanup, err = s.spoolUpload(r)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		defer cleanup()
	case "application/json":
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
	default:
		writeError(w, http.StatusUnsupportedMediaType, "expected application/json or multipart/form-data")
		return
	}

	if req.Path == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}

	result, err := s.pipeline.Ingest(r.Context(), driving.IngestRequest{
		Path:        req.Path,
		Title:       req.Title,
		Author:      req.Author,
		Profile:     req.Profile,
		WindowChars: req.WindowChars,
		StrideChars: req.StrideChars,
		Ingestor:    "api",
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	status := http.StatusCreated
	if result.Duplicate {
		status = http.StatusOK
	}
	writeJSON(w, status, result)
}

// spoolUpload writes the multipart file part into the spool directory,
// preserving the client's base name so extension-based extractor selection
// still works. The returned cleanup removes the spool directory.
func (s *Server) spoolUpload(r *http.Request) (ingestRequest, func(), error) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return ingestRequest{}, nil, fmt.Errorf("%w: parsing multipart form: %s", domain.ErrInvalidInput, err)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return ingestRequest{}, nil, fmt.Errorf("%w: file part is required", domain.ErrInvalidInput)
	}
	defer file.Close() //nolint:errcheck

	name := filepath.Base(header.Filename)
	if name == "." || name == string(filepath.Separator) {
		return ingestRequest{}, nil, fmt.Errorf("%w: upload has no usable filename", domain.ErrInvalidInput)
	}

	dir, err := os.MkdirTemp(s.uploadDir, "upload-")
	if err != nil {
		return ingestRequest{}, nil, fmt.Errorf("creating upload dir: %w", err)
	}
	cleanup := func() { os.RemoveAll(dir) } //nolint:errcheck

	path := filepath.Join(dir, name)
	dst, err := os.Create(path)
	if err != nil {
		cleanup()
		return ingestRequest{}, nil, fmt.Errorf("creating upload file: %w", err)
	}
	if _, err := io.Copy(dst, file); err != nil {
		dst.Close() //nolint:errcheck
		cleanup()
		return ingestRequest{}, nil, fmt.Errorf("writing upload file: %w", err)
	}
	if err := dst.Close(); err != nil {
		cleanup()
		return ingestRequest{}, nil, fmt.Errorf("closing upload file: %w", err)
	}

	req := ingestRequest{
		Path:    path,
		Title:   r.FormValue("title"),
		Author:  r.FormValue("author"),
		Profile: r.FormValue("profile"),
	}
	if v := r.FormValue("window_chars"); v != "" {
		if req.WindowChars, err = strconv.Atoi(v); err != nil {
			cleanup()
			return ingestRequest{}, nil, fmt.Errorf("%w: window_chars must be an integer", domain.ErrInvalidInput)
		}
	}
	if v := r.FormValue("stride_chars"); v != "" {
		if req.StrideChars, err = strconv.Atoi(v); err != nil {
			cleanup()
			return ingestRequest{}, nil, fmt.Errorf("%w: stride_chars must be an integer", domain.ErrInvalidInput)
		}
	}
	return req, cleanup, nil
}

type resegmentRequest struct {
	Profile     string `json:"profile,omitempty"`
	WindowChars int    `json:"window_chars,omitempty"`
	StrideChars int    `json:"stride_chars,omitempty"`
}

func (s *Server) handleResegment(w http.ResponseWriter, r *http.Request) {
	var req resegmentRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
	}

	result, err := s.pipeline.Resegment(r.Context(), chi.URLParam(r, "workID"), req.Profile, req.WindowChars, req.StrideChars)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// workResponse is the work representation returned by the API. Canonical
// text is never inlined; clients read spans through the slice endpoint.
type workResponse struct {
	ID          string                `json:"id"`
	Title       string                `json:"title"`
	Author      string                `json:"author,omitempty"`
	Source      string                `json:"source,omitempty"`
	CharCount   int                   `json:"char_count"`
	Fingerprint string                `json:"content_sha1"`
	IngestRunID string                `json:"ingest_run_id"`
	CreatedAt   time.Time             `json:"created_at"`
	Sizes       *domain.SegmentCounts `json:"sizes,omitempty"`
}

func workToResponse(w *domain.Work) workResponse {
	return workResponse{
		ID:          w.ID,
		Title:       w.Title,
		Author:      w.Author,
		Source:      w.Source,
		CharCount:   w.CharCount,
		Fingerprint: w.Fingerprint,
		IngestRunID: w.IngestRunID,
		CreatedAt:   w.CreatedAt,
	}
}

func (s *Server) handleListWorks(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	works, err := s.store.ListWorks(r.Context(), strings.TrimSpace(r.URL.Query().Get("q")), limit)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	items := make([]workResponse, len(works))
	for i := range works {
		items[i] = workToResponse(&works[i])
	}
	writeJSON(w, http.StatusOK, map[string]any{"works": items})
}

func (s *Server) handleGetWork(w http.ResponseWriter, r *http.Request) {
	workID := chi.URLParam(r, "workID")
	work, err := s.store.GetWork(r.Context(), workID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	resp := workToResponse(work)
	if counts, err := s.store.Counts(r.Context(), workID); err == nil {
		resp.Sizes = counts
	}
	writeJSON(w, http.StatusOK, resp)
}

type sceneResponse struct {
	ID        string  `json:"id"`
	Index     int     `json:"index"`
	Start     int     `json:"start"`
	End       int     `json:"end"`
	Heading   string  `json:"heading,omitempty"`
	ChapterID *string `json:"chapter_id,omitempty"`
}

func (s *Server) handleListScenes(w http.ResponseWriter, r *http.Request) {
	workID := chi.URLParam(r, "workID")
	scenes, err := s.store.ListScenes(r.Context(), workID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	items := make([]sceneResponse, len(scenes))
	for i, sc := range scenes {
		items[i] = sceneResponse{
			ID:        sc.ID,
			Index:     sc.Index,
			Start:     sc.Start,
			End:       sc.End,
			Heading:   sc.Heading,
			ChapterID: sc.ChapterID,
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"work_id": workID, "scenes": items})
}

type chunkResponse struct {
	ID          string `json:"id"`
	SceneID     string `json:"scene_id"`
	Index       int    `json:"index"`
	Start       int    `json:"start"`
	End         int    `json:"end"`
	Text        string `json:"text"`
	Fingerprint string `json:"content_sha1"`
}

func (s *Server) handleListChunks(w http.ResponseWriter, r *http.Request) {
	workID := chi.URLParam(r, "workID")
	chunks, err := s.store.ListChunks(r.Context(), workID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	items := make([]chunkResponse, len(chunks))
	for i, c := range chunks {
		items[i] = chunkResponse{
			ID:          c.ID,
			SceneID:     c.SceneID,
			Index:       c.Index,
			Start:       c.Start,
			End:         c.End,
			Text:        c.Text,
			Fingerprint: c.Fingerprint,
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"work_id": workID, "chunks": items})
}

func (s *Server) handleSlice(w http.ResponseWriter, r *http.Request) {
	workID := chi.URLParam(r, "workID")
	start, err := strconv.Atoi(r.URL.Query().Get("start"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "start must be an integer")
		return
	}
	end, err := strconv.Atoi(r.URL.Query().Get("end"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "end must be an integer")
		return
	}

	text, err := s.pipeline.Slice(r.Context(), workID, start, end)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"work_id": workID,
		"start":   start,
		"end":     end,
		"text":    text,
	})
}
