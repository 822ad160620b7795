package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"dental-mentor-service/internal/domain"
	"dental-mentor-service/internal/metrics"
	"github.com/google/uuid"
)

// DocumentStore persists uploaded study documents.
type DocumentStore interface {
	Save(ctx context.Context, doc domain.Document, data []byte) error
	List(ctx context.Context, ownerID string) ([]domain.Document, error)
	Get(ctx context.Context, id string) (domain.Document, []byte, error)
	Delete(ctx context.Context, id, ownerID string) error
}

const maxUploadSize = 10 << 20 // 10MB

var allowedContentTypes = map[string]struct{}{
	"application/pdf": {},
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": {},
	"application/msword": {},
	"text/plain":         {},
	"image/jpeg":         {},
	"image/png":          {},
	"image/gif":          {},
}

// UploadHandler implements the document REST surface. The caller identifies
// itself via the X-Student-ID header; ownership violations surface as 403.
type UploadHandler struct {
	store DocumentStore
}

func NewUploadHandler(store DocumentStore) *UploadHandler {
	return &UploadHandler{store: store}
}

// Register mounts the upload routes on the mux.
func (h *UploadHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/uploads/document", instrument("upload_document", h.create))
	mux.HandleFunc("GET /api/uploads/documents", instrument("list_documents", h.list))
	mux.HandleFunc("GET /api/uploads/documents/{id}/download", instrument("download_document", h.download))
	mux.HandleFunc("DELETE /api/uploads/documents/{id}", instrument("delete_document", h.delete))
}

func (h *UploadHandler) create(w http.ResponseWriter, r *http.Request) {
	ownerID := requireOwner(w, r)
	if ownerID == "" {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "file exceeds the 10MB limit")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable file")
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	if _, ok := allowedContentTypes[contentType]; !ok {
		writeError(w, http.StatusUnsupportedMediaType, "unsupported file type")
		return
	}

	doc := domain.Document{
		ID:          uuid.NewString(),
		OwnerID:     ownerID,
		Name:        header.Filename,
		ContentType: contentType,
		Size:        int64(len(data)),
		CreatedAt:   time.Now().UTC(),
	}
	if err := h.store.Save(r.Context(), doc, data); err != nil {
		log.Printf("save document: %v", err)
		writeError(w, http.StatusInternalServerError, "could not store document")
		return
	}
	writeJSON(w, http.StatusCreated, doc)
}

func (h *UploadHandler) list(w http.ResponseWriter, r *http.Request) {
	ownerID := requireOwner(w, r)
	if ownerID == "" {
		return
	}

	docs, err := h.store.List(r.Context(), ownerID)
	if err != nil {
		log.Printf("list documents: %v", err)
		writeError(w, http.StatusInternalServerError, "could not list documents")
		return
	}
	if docs == nil {
		docs = []domain.Document{}
	}
	writeJSON(w, http.StatusOK, docs)
}

func (h *UploadHandler) download(w http.ResponseWriter, r *http.Request) {
	ownerID := requireOwner(w, r)
	if ownerID == "" {
		return
	}

	doc, data, err := h.store.Get(r.Context(), r.PathValue("id"))
	if errors.Is(err, domain.ErrDocumentNotFound) {
		writeError(w, http.StatusNotFound, "document not found")
		return
	}
	if err != nil {
		log.Printf("get document: %v", err)
		writeError(w, http.StatusInternalServerError, "could not read document")
		return
	}
	if doc.OwnerID != ownerID {
		writeError(w, http.StatusForbidden, "document owned by another user")
		return
	}

	w.Header().Set("Content-Type", doc.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+doc.Name+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	_, _ = w.Write(data)
}

func (h *UploadHandler) delete(w http.ResponseWriter, r *http.Request) {
	ownerID := requireOwner(w, r)
	if ownerID == "" {
		return
	}

	err := h.store.Delete(r.Context(), r.PathValue("id"), ownerID)
	switch {
	case errors.Is(err, domain.ErrDocumentNotFound):
		writeError(w, http.StatusNotFound, "document not found")
	case errors.Is(err, domain.ErrNotOwner):
		writeError(w, http.StatusForbidden, "document owned by another user")
	case err != nil:
		log.Printf("delete document: %v", err)
		writeError(w, http.StatusInternalServerError, "could not delete document")
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func requireOwner(w http.ResponseWriter, r *http.Request) string {
	ownerID := r.Header.Get("X-Student-ID")
	if ownerID == "" {
		writeError(w, http.StatusUnauthorized, "missing X-Student-ID header")
	}
	return ownerID
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// instrument wraps a handler with request counting.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func instrument(endpoint string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(recorder, r)
		metrics.HTTPRequests.WithLabelValues(endpoint, r.Method, strconv.Itoa(recorder.status)).Inc()
	}
}
