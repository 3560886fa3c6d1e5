package http

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/example/calendar-manager/internal/application"
)

const (
	msgFileNotFound       = "file not found"
	msgUnsupportedType    = "unsupported Content-Type, use multipart/form-data or application/json"
	msgMissingFileField   = "missing file field 'file'"
	msgMissingUploadField = "filename and content are required"
	msgInvalidBase64      = "content is not valid base64"

	// multipartOverhead allows for boundaries and part headers on top of
	// the file itself.
	multipartOverhead = 1 << 20
)

type fileService interface {
	MaxBytes() int64
	List(ctx context.Context) ([]application.FileInfo, error)
	Delete(ctx context.Context, name string) error
	CheckSize(size int64) error
	Store(ctx context.Context, originalName string, data []byte) (application.StoredFile, error)
}

// UploadHandler serves the upload listing, ingestion and deletion routes.
type UploadHandler struct {
	service   fileService
	location  *time.Location
	responder responder
	logger    *slog.Logger
}

func NewUploadHandler(service fileService, location *time.Location, now func() time.Time, logger *slog.Logger) *UploadHandler {
	base := defaultLogger(logger)
	if location == nil {
		location = time.Local
	}
	return &UploadHandler{
		service:   service,
		location:  location,
		responder: newResponder(base, now),
		logger:    base,
	}
}

func (h *UploadHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return handlerLogger(ctx, h.logger, "UploadHandler", operation, attrs...)
}

type fileDTO struct {
	Name     string `json:"name"`
	Size     int64  `json:"size"`
	Created  string `json:"created"`
	Modified string `json:"modified"`
	Type     string `json:"type"`
	URL      string `json:"url"`
}

type storedFileDTO struct {
	Filename         string `json:"filename"`
	OriginalFilename string `json:"original_filename"`
	Size             int64  `json:"size"`
	URL              string `json:"url"`
	UploadedAt       string `json:"uploaded_at"`
}

type base64UploadRequest struct {
	Filename *string `json:"filename"`
	Content  *string `json:"content"`
}

// List returns the stored files, newest first.
func (h *UploadHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	files, err := h.service.List(ctx)
	if err != nil {
		h.responder.handleServiceError(ctx, w, err, msgFileNotFound)
		return
	}

	out := make([]fileDTO, 0, len(files))
	for _, f := range files {
		out = append(out, fileDTO{
			Name:     f.Name,
			Size:     f.Size,
			Created:  application.FormatTimestamp(f.CreatedAt, h.location),
			Modified: application.FormatTimestamp(f.ModifiedAt, h.location),
			Type:     string(f.Kind),
			URL:      f.URL,
		})
	}
	h.responder.respond(ctx, w, http.StatusOK, "files retrieved", out)
}

// Delete removes one stored file. The mux has already percent-decoded the name.
func (h *UploadHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	name := r.PathValue("name")
	if err := h.service.Delete(ctx, name); err != nil {
		h.responder.handleServiceError(ctx, w, err, msgFileNotFound)
		return
	}
	h.responder.respond(ctx, w, http.StatusOK, "file deleted", map[string]any{
		"filename": name,
		"deleted":  true,
	})
}

// Upload dispatches on Content-Type between multipart and base64 JSON.
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	mediaType, params, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "multipart/form-data":
		h.uploadMultipart(w, r, params["boundary"])
	case "application/json":
		h.UploadBase64(w, r)
	default:
		h.responder.fail(r.Context(), w, http.StatusBadRequest, msgUnsupportedType)
	}
}

func (h *UploadHandler) uploadMultipart(w http.ResponseWriter, r *http.Request, boundary string) {
	ctx := r.Context()
	if boundary == "" {
		h.responder.fail(ctx, w, http.StatusBadRequest, msgBadRequestBody)
		return
	}
	if limit := h.service.MaxBytes(); limit > 0 {
		if r.ContentLength > limit+multipartOverhead {
			h.responder.handleServiceError(ctx, w, h.service.CheckSize(r.ContentLength-multipartOverhead), msgFileNotFound)
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, limit+multipartOverhead)
	}

	reader, err := r.MultipartReader()
	if err != nil {
		h.responder.fail(ctx, w, http.StatusBadRequest, msgBadRequestBody)
		return
	}

	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			h.responder.fail(ctx, w, http.StatusBadRequest, msgMissingFileField)
			return
		}
		if err != nil {
			h.readFailed(ctx, w, err)
			return
		}
		if part.FormName() != "file" {
			_ = part.Close()
			continue
		}

		filename := part.FileName()
		if strings.TrimSpace(filename) == "" {
			_ = part.Close()
			h.responder.handleServiceError(ctx, w, application.NewValidationError("filename", "filename is required"), msgFileNotFound)
			return
		}

		data, err := readLimited(part, h.service.MaxBytes())
		_ = part.Close()
		if err != nil {
			h.readFailed(ctx, w, err)
			return
		}
		if err := h.service.CheckSize(int64(len(data))); err != nil {
			h.responder.handleServiceError(ctx, w, err, msgFileNotFound)
			return
		}
		h.store(w, r, filename, data)
		return
	}
}

// UploadBase64 accepts {"filename","content"} where content is base64,
// optionally as a data URL.
func (h *UploadHandler) UploadBase64(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if limit := h.service.MaxBytes(); limit > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, int64(base64.StdEncoding.EncodedLen(int(limit)))+multipartOverhead)
	}

	var req base64UploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.readFailed(ctx, w, err)
			return
		}
		h.responder.fail(ctx, w, http.StatusBadRequest, msgBadRequestBody)
		return
	}
	if req.Filename == nil || req.Content == nil {
		h.responder.fail(ctx, w, http.StatusBadRequest, msgMissingUploadField)
		return
	}

	encoded := *req.Content
	if strings.HasPrefix(encoded, "data:") {
		if idx := strings.IndexByte(encoded, ','); idx >= 0 {
			encoded = encoded[idx+1:]
		}
	}
	encoded = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' || r == ' ' || r == '\t' {
			return -1
		}
		return r
	}, encoded)

	if err := h.service.CheckSize(int64(base64.StdEncoding.DecodedLen(len(encoded))) - int64(padding(encoded))); err != nil {
		h.responder.handleServiceError(ctx, w, err, msgFileNotFound)
		return
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		h.responder.fail(ctx, w, http.StatusBadRequest, msgInvalidBase64)
		return
	}
	h.store(w, r, *req.Filename, data)
}

func (h *UploadHandler) store(w http.ResponseWriter, r *http.Request, filename string, data []byte) {
	ctx := r.Context()
	stored, err := h.service.Store(ctx, filename, data)
	if err != nil {
		h.responder.handleServiceError(ctx, w, err, msgFileNotFound)
		return
	}
	h.responder.respond(ctx, w, http.StatusCreated, "file uploaded", storedFileDTO{
		Filename:         stored.Name,
		OriginalFilename: stored.OriginalName,
		Size:             stored.Size,
		URL:              stored.URL,
		UploadedAt:       application.FormatTimestamp(stored.UploadedAt, h.location),
	})
}

func (h *UploadHandler) readFailed(ctx context.Context, w http.ResponseWriter, err error) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) || errors.Is(err, application.ErrPayloadTooLarge) {
		h.responder.handleServiceError(ctx, w, &application.PayloadTooLargeError{Size: -1, Limit: h.service.MaxBytes()}, msgFileNotFound)
		return
	}
	h.log(ctx, "Upload", "error_kind", "bad_request").WarnContext(ctx, "failed to read upload", "error", err)
	h.responder.fail(ctx, w, http.StatusBadRequest, msgBadRequestBody)
}

// readLimited reads at most limit+1 bytes so an oversized part is detected
// without buffering all of it.
func readLimited(r io.Reader, limit int64) ([]byte, error) {
	if limit <= 0 {
		return io.ReadAll(r)
	}
	return io.ReadAll(io.LimitReader(r, limit+1))
}

func padding(encoded string) int {
	switch {
	case strings.HasSuffix(encoded, "=="):
		return 2
	case strings.HasSuffix(encoded, "="):
		return 1
	}
	return 0
}
