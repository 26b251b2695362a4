package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/hushdrop/hushdrop/internal/common"
	"github.com/hushdrop/hushdrop/internal/server/models"
	"github.com/hushdrop/hushdrop/internal/server/services"
)

// deletionTokenHeader carries the capability secret for DELETE requests.
const deletionTokenHeader = "X-Deletion-Token"

type errorResponse struct {
	Error string `json:"error"`
}

type healthResponse struct {
	Status          string `json:"status"`
	MaxUploadSizeMB int    `json:"max_upload_size_mb"`
	WipeEnabled     bool   `json:"wipe_enabled"`
}

type adminMOTDResponse struct {
	Message  string `json:"message"`
	NextWipe string `json:"next_wipe,omitempty"`
}

type uploadResponse struct {
	ID            string `json:"id"`
	Kind          string `json:"kind"`
	DeletionToken string `json:"deletion_token,omitempty"`
	AppendKey     string `json:"append_key,omitempty"`
	ExpiresAt     string `json:"expires_at"`
	Permanent     bool   `json:"permanent"`
	Deduplicated  bool   `json:"deduplicated"`
}

type appendRequest struct {
	AppendKey     string `json:"append_key"`
	Content       string `json:"content"`
	ContentType   string `json:"content_type,omitempty"`
	MimeType      string `json:"mime_type,omitempty"`
	FileExtension string `json:"file_extension,omitempty"`
}

type appendResponse struct {
	Order int64 `json:"order"`
}

type postEntryView struct {
	Order         int64  `json:"order"`
	Content       string `json:"content"`
	ContentType   string `json:"content_type"`
	MimeType      string `json:"mime_type,omitempty"`
	FileExtension string `json:"file_extension,omitempty"`
	AppendedAt    string `json:"appended_at"`
}

type postViewResponse struct {
	ID        string          `json:"id"`
	ViewCount int64           `json:"view_count"`
	ExpiresAt string          `json:"expires_at"`
	Permanent bool            `json:"permanent"`
	Entries   []postEntryView `json:"entries"`
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, common.ErrorNotFound):
		return http.StatusNotFound
	case errors.Is(err, common.ErrorForbidden):
		return http.StatusForbidden
	case errors.Is(err, common.ErrorSizeLimitExceeded):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, common.ErrorEntryLimitExceeded):
		return http.StatusUnprocessableEntity
	case errors.Is(err, common.ErrorWrongKind):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrorConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error(context.Background(), "failed to encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	msg := http.StatusText(status)
	if status != http.StatusInternalServerError {
		msg = err.Error()
	}
	s.writeJSON(w, status, errorResponse{Error: msg})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, healthResponse{
		Status:          "ok",
		MaxUploadSizeMB: s.config.MaxUploadSizeMB,
		WipeEnabled:     s.config.WipePeriodHours > 0,
	})
}

func (s *Server) adminMOTD(w http.ResponseWriter, r *http.Request) {
	resp := adminMOTDResponse{Message: s.config.AdminMessage}
	if s.wipes != nil {
		if next, ok := s.wipes.NextWipe(); ok {
			resp.NextWipe = next.UTC().Format(time.RFC3339)
		}
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) upload(w http.ResponseWriter, r *http.Request) {
	// A small allowance on top of the payload cap covers multipart framing.
	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxUploadSizeBytes()+1024*1024)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		s.writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "upload too large or malformed"})
		return
	}
	defer r.MultipartForm.RemoveAll()

	kind := models.KindFile
	if v := r.FormValue("kind"); v != "" {
		parsed, err := models.ParseKind(v)
		if err != nil {
			s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
		kind = parsed
	}

	req := &services.UploadRequest{Kind: kind}

	if v := r.FormValue("expiry_hours"); v != "" {
		hours, err := strconv.Atoi(v)
		if err != nil || hours < 0 {
			s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid expiry_hours"})
			return
		}
		req.ExpiryHours = hours
	}
	if v := r.FormValue("permanent"); v != "" {
		permanent, err := strconv.ParseBool(v)
		if err != nil {
			s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid permanent flag"})
			return
		}
		req.Permanent = permanent
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing file part"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "failed to read upload"})
		return
	}
	req.Data = data
	req.MimeType = header.Header.Get("Content-Type")
	if ext := filepath.Ext(header.Filename); ext != "" {
		req.FileExtension = strings.TrimPrefix(ext, ".")
	}

	res, err := s.service.Upload(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}

	rec := res.Record
	resp := uploadResponse{
		ID:           rec.ID,
		Kind:         rec.Kind.String(),
		ExpiresAt:    rec.ExpiresAt.UTC().Format(time.RFC3339),
		Permanent:    rec.IsPermanent,
		Deduplicated: res.Deduplicated,
	}
	// Capability secrets are returned only to the uploader who minted the
	// record; a dedup hit reuses someone else's record.
	if !res.Deduplicated {
		resp.DeletionToken = rec.DeletionToken
		resp.AppendKey = rec.AppendKey
	}

	status := http.StatusCreated
	if res.Deduplicated {
		status = http.StatusOK
	}
	s.writeJSON(w, status, resp)
}

func (s *Server) downloadFile(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	rec, data, err := s.service.Download(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}

	contentType := rec.MimeType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.FormatInt(int64(len(data)), 10))

	filename := rec.ID
	if rec.FileExtension != "" {
		filename += "." + rec.FileExtension
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	if _, err := w.Write(data); err != nil {
		s.logger.Warn(r.Context(), "failed to stream blob", "record_id", rec.ID, "error", err)
	}
}

func (s *Server) deleteRecord(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	token := r.Header.Get(deletionTokenHeader)

	if err := s.service.Delete(r.Context(), id, token); err != nil {
		s.writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) viewPost(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	rec, entries, err := s.service.ViewPost(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}

	resp := postViewResponse{
		ID:        rec.ID,
		ViewCount: rec.ViewCount,
		ExpiresAt: rec.ExpiresAt.UTC().Format(time.RFC3339),
		Permanent: rec.IsPermanent,
		Entries:   make([]postEntryView, 0, len(entries)),
	}
	for _, e := range entries {
		resp.Entries = append(resp.Entries, postEntryView{
			Order:         e.Order,
			Content:       e.Content,
			ContentType:   e.ContentType.String(),
			MimeType:      e.MimeType,
			FileExtension: e.FileExtension,
			AppendedAt:    e.AppendedAt.UTC().Format(time.RFC3339),
		})
	}

	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) appendToPost(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxUploadSizeBytes()+1024*1024)

	var body appendRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid json body"})
		return
	}

	entry, err := s.service.AppendToPost(r.Context(), &services.AppendRequest{
		RecordID:      id,
		AppendKey:     body.AppendKey,
		Content:       body.Content,
		ContentType:   body.ContentType,
		MimeType:      body.MimeType,
		FileExtension: body.FileExtension,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, appendResponse{Order: entry.Order})
}
