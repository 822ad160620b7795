package http

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"dental-mentor-service/internal/domain"
	"dental-mentor-service/internal/infra/memory"
)

func newUploadServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	NewUploadHandler(memory.NewDocumentStore()).Register(mux)
	return httptest.NewServer(mux)
}

func multipartBody(t *testing.T, filename, contentType, content string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	if _, err := io.Copy(part, strings.NewReader(content)); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return body, writer.FormDataContentType()
}

func uploadDocument(t *testing.T, server *httptest.Server, studentID, filename, contentType, content string) *http.Response {
	t.Helper()
	body, formType := multipartBody(t, filename, contentType, content)
	req, err := http.NewRequest(http.MethodPost, server.URL+"/api/uploads/document", body)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", formType)
	if studentID != "" {
		req.Header.Set("X-Student-ID", studentID)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	return resp
}

func TestUploadDocumentSuccess(t *testing.T) {
	server := newUploadServer(t)
	defer server.Close()

	resp := uploadDocument(t, server, "s1", "notes.pdf", "application/pdf", "pdf bytes")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	var doc domain.Document
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if doc.ID == "" || doc.OwnerID != "s1" || doc.Name != "notes.pdf" {
		t.Fatalf("unexpected document: %+v", doc)
	}
	if doc.Size != int64(len("pdf bytes")) {
		t.Fatalf("expected size %d, got %d", len("pdf bytes"), doc.Size)
	}
}

func TestUploadDocumentRejectsUnsupportedType(t *testing.T) {
	server := newUploadServer(t)
	defer server.Close()

	resp := uploadDocument(t, server, "s1", "payload.exe", "application/x-msdownload", "MZ")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnsupportedMediaType {
		t.Fatalf("expected 415, got %d", resp.StatusCode)
	}
}

func TestUploadDocumentRequiresStudentHeader(t *testing.T) {
	server := newUploadServer(t)
	defer server.Close()

	resp := uploadDocument(t, server, "", "notes.txt", "text/plain", "hello")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestListDocumentsReturnsOnlyOwn(t *testing.T) {
	server := newUploadServer(t)
	defer server.Close()

	uploadDocument(t, server, "s1", "a.txt", "text/plain", "a").Body.Close()
	uploadDocument(t, server, "s1", "b.txt", "text/plain", "b").Body.Close()
	uploadDocument(t, server, "s2", "c.txt", "text/plain", "c").Body.Close()

	req, _ := http.NewRequest(http.MethodGet, server.URL+"/api/uploads/documents", nil)
	req.Header.Set("X-Student-ID", "s1")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var docs []domain.Document
	if err := json.NewDecoder(resp.Body).Decode(&docs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 documents for s1, got %d", len(docs))
	}
	for _, doc := range docs {
		if doc.OwnerID != "s1" {
			t.Fatalf("foreign document leaked: %+v", doc)
		}
	}
}

func TestDownloadForeignDocumentForbidden(t *testing.T) {
	server := newUploadServer(t)
	defer server.Close()

	created := uploadDocument(t, server, "s1", "secret.txt", "text/plain", "mine")
	var doc domain.Document
	if err := json.NewDecoder(created.Body).Decode(&doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	created.Body.Close()

	req, _ := http.NewRequest(http.MethodGet, server.URL+"/api/uploads/documents/"+doc.ID+"/download", nil)
	req.Header.Set("X-Student-ID", "s2")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
}

func TestDownloadOwnDocument(t *testing.T) {
	server := newUploadServer(t)
	defer server.Close()

	created := uploadDocument(t, server, "s1", "notes.txt", "text/plain", "study hard")
	var doc domain.Document
	if err := json.NewDecoder(created.Body).Decode(&doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	created.Body.Close()

	req, _ := http.NewRequest(http.MethodGet, server.URL+"/api/uploads/documents/"+doc.ID+"/download", nil)
	req.Header.Set("X-Student-ID", "s1")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	data, _ := io.ReadAll(resp.Body)
	if string(data) != "study hard" {
		t.Fatalf("unexpected body: %q", data)
	}
	if got := resp.Header.Get("Content-Type"); got != "text/plain" {
		t.Fatalf("unexpected content type: %q", got)
	}
}

func TestDeleteForeignDocumentForbidden(t *testing.T) {
	server := newUploadServer(t)
	defer server.Close()

	created := uploadDocument(t, server, "s1", "notes.txt", "text/plain", "mine")
	var doc domain.Document
	if err := json.NewDecoder(created.Body).Decode(&doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	created.Body.Close()

	req, _ := http.NewRequest(http.MethodDelete, server.URL+"/api/uploads/documents/"+doc.ID, nil)
	req.Header.Set("X-Student-ID", "s2")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}

	// Still downloadable by the owner.
	req, _ = http.NewRequest(http.MethodGet, server.URL+"/api/uploads/documents/"+doc.ID+"/download", nil)
	req.Header.Set("X-Student-ID", "s1")
	resp2, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp2.Body.Close()
	if resp2.StatusCode != http.StatusOK {
		t.Fatalf("expected owner download to still succeed, got %d", resp2.StatusCode)
	}
}

func TestDeleteOwnDocument(t *testing.T) {
	server := newUploadServer(t)
	defer server.Close()

	created := uploadDocument(t, server, "s1", "old.txt", "text/plain", "stale")
	var doc domain.Document
	if err := json.NewDecoder(created.Body).Decode(&doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	created.Body.Close()

	req, _ := http.NewRequest(http.MethodDelete, server.URL+"/api/uploads/documents/"+doc.ID, nil)
	req.Header.Set("X-Student-ID", "s1")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}

	req, _ = http.NewRequest(http.MethodGet, server.URL+"/api/uploads/documents/"+doc.ID+"/download", nil)
	req.Header.Set("X-Student-ID", "s1")
	resp2, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp2.Body.Close()
	if resp2.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", resp2.StatusCode)
	}
}
