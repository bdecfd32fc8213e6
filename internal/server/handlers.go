// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/aleopantest/aleopantest/internal/catalog"
	"github.com/aleopantest/aleopantest/internal/export"
	"github.com/aleopantest/aleopantest/internal/security"
	"github.com/aleopantest/aleopantest/internal/session"
	"github.com/aleopantest/aleopantest/internal/storage"
	"github.com/aleopantest/aleopantest/internal/tools"
)

// ============================================================================
// ADMIN AND CATALOG
// ============================================================================

func (s *Server) handleAdmin(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.orch.Identity.Refreshed())
}

// SessionResponse reports the governor and orchestrator counters.
type SessionResponse struct {
	Session session.Status `json:"session"`
	Stats   tools.Stats    `json:"stats"`
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	resp := SessionResponse{Stats: s.orch.Stats()}
	if s.orch.Governor != nil {
		resp.Session = s.orch.Governor.GetStatus()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleTools(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.orch.Registry.ByCategory())
}

// ============================================================================
// RUN
// ============================================================================

// RunRequest is the body of POST /run.
type RunRequest struct {
	ToolID string       `json:"tool_id"`
	Target string       `json:"target,omitempty"`
	Params tools.Params `json:"params,omitempty"`
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.ToolID = strings.TrimSpace(req.ToolID)
	if req.ToolID == "" {
		writeError(w, http.StatusBadRequest, "tool_id is required")
		return
	}

	env, err := s.orch.Execute(r.Context(), tools.Request{
		ToolID: req.ToolID,
		Target: req.Target,
		Params: req.Params,
	})
	if err != nil {
		if errors.Is(err, tools.ErrToolNotFound) {
			writeError(w, http.StatusNotFound, "Tool not found: "+req.ToolID)
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if env.ToolID == "" {
		env.ToolID = req.ToolID
	}
	s.remember(env)
	writeJSON(w, http.StatusOK, env)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxRequestBodySize))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

func (s *Server) remember(env *tools.Envelope) {
	s.mu.Lock()
	s.latest[env.ToolID] = env
	s.mu.Unlock()
}

// latestEnvelope prefers results seen by this process, then the history
// store.
func (s *Server) latestEnvelope(ctx context.Context, toolID string) (*tools.Envelope, error) {
	s.mu.RLock()
	env, ok := s.latest[toolID]
	s.mu.RUnlock()
	if ok {
		return env, nil
	}
	if s.history == nil {
		return nil, storage.ErrNotFound
	}
	return s.history.Latest(ctx, toolID)
}

// ============================================================================
// REPORT BRIDGE
// ============================================================================

// ReportsResponse is the body of GET /reports.
type ReportsResponse struct {
	Count   int               `json:"count"`
	Reports []*tools.Envelope `json:"reports"`
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	var env tools.Envelope
	if err := decodeBody(w, r, &env); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if env.ToolID == "" {
		env.ToolID = env.ToolInfo.ID
	}
	if env.ToolID == "" && env.ToolInfo.Name == "" {
		writeError(w, http.StatusBadRequest, "report has no tool_id or tool_info.name")
		return
	}
	if env.Execution.Status == "" {
		writeError(w, http.StatusBadRequest, "report has no execution.status")
		return
	}

	n := s.reports.Push(&env)
	if env.ToolID != "" {
		s.remember(&env)
	}
	l := s.requestLogger()
	l.Info().Str("tool", env.ToolID).Str("status", string(env.Execution.Status)).Msg("report received")
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "count": n})
}

func (s *Server) handleReports(w http.ResponseWriter, r *http.Request) {
	list := s.reports.List()
	writeJSON(w, http.StatusOK, ReportsResponse{Count: len(list), Reports: list})
}

func (s *Server) handleClearReports(w http.ResponseWriter, r *http.Request) {
	n := s.reports.Clear()
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "cleared": n})
}

// ============================================================================
// UPLOAD
// ============================================================================

// multipart framing allowance on top of the file limit
const multipartSlack = 1 << 20

var exifTypes = map[string]bool{"jpg": true, "jpeg": true, "tif": true, "tiff": true}

// UploadResponse is the body of a successful POST /upload.
type UploadResponse struct {
	Status   string            `json:"status"`
	Filename string            `json:"filename"`
	Path     string            `json:"path"`
	Size     int64             `json:"size"`
	Type     string            `json:"type"`
	EXIF     *catalog.EXIFInfo `json:"exif,omitempty"`
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	rules := s.upload
	s.mu.RUnlock()

	r.Body = http.MaxBytesReader(w, r.Body, rules.maxBytes+multipartSlack)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("upload exceeds %d bytes", rules.maxBytes))
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	maxBytes := rules.maxBytes
	if declared := strings.TrimSpace(r.FormValue("max_size")); declared != "" {
		n, err := strconv.ParseInt(declared, 10, 64)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "max_size must be a positive byte count")
			return
		}
		maxBytes = min(maxBytes, n)
	}
	allowed := rules.allowed
	if declared := strings.TrimSpace(r.FormValue("allowed_types")); declared != "" {
		allowed = slices.DeleteFunc(normalizeTypes(strings.Split(declared, ",")), func(t string) bool {
			return !slices.Contains(rules.allowed, t)
		})
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "no file provided")
		return
	}
	defer file.Close()

	if err := security.CheckFilename(header.Filename); err != nil {
		writeError(w, http.StatusBadRequest, "invalid filename: "+err.Error())
		return
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(header.Filename), "."))
	if !slices.Contains(allowed, ext) {
		writeError(w, http.StatusUnsupportedMediaType, fmt.Sprintf("file type %q not allowed (allowed: %s)", ext, strings.Join(allowed, ", ")))
		return
	}
	if header.Size > maxBytes {
		writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("upload exceeds %d bytes", maxBytes))
		return
	}

	name := fmt.Sprintf("%d_%s", time.Now().Unix(), security.SafeFilename(header.Filename))
	path := filepath.Join(rules.dir, name)
	size, err := saveUpload(path, file, maxBytes)
	if err != nil {
		if errors.Is(err, errTooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("upload exceeds %d bytes", maxBytes))
			return
		}
		writeError(w, http.StatusInternalServerError, "store upload: "+err.Error())
		return
	}

	resp := UploadResponse{Status: "ok", Filename: name, Path: path, Size: size, Type: ext}
	if exifTypes[ext] {
		resp.EXIF = readEXIF(path, name)
	}
	l := s.requestLogger()
	l.Info().Str("file", name).Int64("size", size).Bool("exif", resp.EXIF != nil).Msg("upload stored")
	writeJSON(w, http.StatusOK, resp)
}

var errTooLarge = errors.New("upload too large")

func saveUpload(path string, src io.Reader, maxBytes int64) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return 0, err
	}
	dst, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(dst, io.LimitReader(src, maxBytes+1))
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err == nil && n > maxBytes {
		err = errTooLarge
	}
	if err != nil {
		os.Remove(path)
		return 0, err
	}
	return n, nil
}

// readEXIF returns nil for images without readable EXIF.
func readEXIF(path, name string) (info *catalog.EXIFInfo) {
	defer func() {
		if recover() != nil {
			info = nil
		}
	}()
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	x, err := catalog.ExtractEXIF(f)
	if err != nil {
		return nil
	}
	x.File = name
	return &x
}

// ============================================================================
// DOWNLOAD
// ============================================================================

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	toolID := r.PathValue("tool_id")
	exp, err := export.ForFormat(r.PathValue("format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	env, err := s.latestEnvelope(r.Context(), toolID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no results for "+toolID)
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	data, err := exp.Export(env)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", exp.MimeType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename(toolID, exp, time.Now())))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
