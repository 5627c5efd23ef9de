// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/veragate/internal/audit"
	"github.com/pdiddy/veragate/internal/logging"
	"github.com/pdiddy/veragate/internal/runstore"
	"github.com/pdiddy/veragate/internal/stream"
	"github.com/pdiddy/veragate/pkg/types"
)

// Multipart field names of the analyze form.
const (
	FieldVideo = "video"
	FieldPDF   = "pdf"
)

// multipartMemory is the part of a submission held in memory; the rest
// spills to temporary files.
const multipartMemory = 32 << 20

const errHistoryDisabled = "run history is not enabled"

func (s *Server) analyze(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("submission exceeds %d bytes", tooLarge.Limit))
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	video, vok, err := readPart(r, FieldVideo, types.ArtifactVideo)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	doc, dok, err := readPart(r, FieldPDF, types.ArtifactDocument)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !vok || !dok {
		writeError(w, http.StatusBadRequest, audit.ErrMissingArtifact.Error())
		return
	}
	if !strings.HasPrefix(video.MediaType, "video/") {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("video part has unsupported type %q", video.MediaType))
		return
	}
	if doc.MediaType != "application/pdf" {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("pdf part has unsupported type %q", doc.MediaType))
		return
	}

	runID := s.newID()
	log := s.log.With(zap.String("run_id", runID))
	log.Info("analysis requested",
		zap.String("video", video.Name), zap.Int64("video_bytes", video.Size()),
		zap.String("document", doc.Name), zap.Int64("document_bytes", doc.Size()))

	record := types.Run{
		ID:            runID,
		Status:        types.RunRunning,
		StartedAt:     time.Now().UTC(),
		Video:         info(video),
		Document:      info(doc),
		PromptVersion: audit.PromptVersion,
	}
	// Persistence outlives a disconnected client.
	storeCtx := context.WithoutCancel(r.Context())
	if s.store != nil {
		if err := s.store.Create(storeCtx, record); err != nil {
			log.Warn("recording run start", zap.Error(err))
		}
	}

	w.Header().Set("X-Run-ID", runID)
	sse := stream.NewSSE(w)
	out := s.pipeline.Run(logging.WithLogger(r.Context(), s.log), runID, video, doc, sse)

	if s.store == nil {
		return
	}
	finished := time.Now().UTC()
	record.Status = out.Status()
	record.FinishedAt = &finished
	record.ProcessingMS = out.Elapsed.Milliseconds()
	record.ThinkingLog = out.Thinking
	record.Result = out.Result
	record.ParseFallback = out.ParseFallback
	if out.Err != nil {
		record.Error = out.Err.Error()
	}
	if err := s.store.Finish(storeCtx, record); err != nil {
		log.Warn("recording run outcome", zap.Error(err))
	}
}

// readPart loads one file field. ok is false when the field is absent or
// empty.
func readPart(r *http.Request, field string, kind types.ArtifactKind) (types.EvidenceArtifact, bool, error) {
	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return types.EvidenceArtifact{}, false, nil
	}
	if err != nil {
		return types.EvidenceArtifact{}, false, fmt.Errorf("reading %s part: %w", field, err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return types.EvidenceArtifact{}, false, fmt.Errorf("reading %s part: %w", field, err)
	}
	if len(data) == 0 {
		return types.EvidenceArtifact{}, false, nil
	}
	return types.EvidenceArtifact{
		Kind:      kind,
		Name:      header.Filename,
		MediaType: mediaType(header),
		Data:      data,
	}, true, nil
}

// mediaType returns the declared type of a part, falling back to the
// filename extension when the client sent none or a generic one.
func mediaType(h *multipart.FileHeader) string {
	declared := h.Header.Get("Content-Type")
	if mt, _, err := mime.ParseMediaType(declared); err == nil && mt != "application/octet-stream" {
		return mt
	}
	return types.MediaTypeByName(h.Filename)
}

func info(a types.EvidenceArtifact) types.ArtifactInfo {
	return types.ArtifactInfo{Name: a.Name, MediaType: a.MediaType, Size: a.Size()}
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusNotFound, errHistoryDisabled)
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	runs, err := s.store.List(r.Context(), limit)
	if err != nil {
		s.log.Error("listing runs", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "listing runs failed")
		return
	}
	if runs == nil {
		runs = []types.RunSummary{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusNotFound, errHistoryDisabled)
		return
	}
	run, err := s.store.Get(r.Context(), r.PathValue("id"))
	if errors.Is(err, runstore.ErrNotFound) {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		s.log.Error("loading run", zap.String("run_id", r.PathValue("id")), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "loading run failed")
		return
	}
	writeJSON(w, http.StatusOK, run)
}
