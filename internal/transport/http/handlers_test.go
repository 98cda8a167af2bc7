package http

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ivolkova/luthier/internal/auth"
	"github.com/ivolkova/luthier/internal/config"
	"github.com/ivolkova/luthier/internal/job"
	"github.com/ivolkova/luthier/internal/memq"
	"github.com/ivolkova/luthier/internal/storage"
)

// newTestHandlers wires the routes over an in-memory queue and storage
// backend. Repo and Redis stay nil, so these tests cover routing, auth, and
// request validation, not persistence.
func newTestHandlers(t *testing.T) (*Handlers, http.Handler) {
	t.Helper()

	cfg := config.Config{
		JWTSecret: "test-secret",
		JWTIssuer: "luthier-test",
	}

	h := &Handlers{
		Q: memq.NewMemoryQueue(16, time.Second),
		Storage: storage.NewMemoryStorage(storage.Config{
			Type:        storage.TypeLocal,
			BasePrefix:  "uploads",
			MaxFileSize: storage.DefaultMaxFileSize,
		}),
		Config: cfg,
	}

	r := chi.NewRouter()
	h.Routers(r)
	return h, r
}

func bearerToken(t *testing.T, h *Handlers, userID string, roles ...string) string {
	t.Helper()
	token, err := auth.NewToken(h.Config.JWTSecret, h.Config.JWTIssuer, userID, roles, time.Minute)
	if err != nil {
		t.Fatalf("NewToken error: %v", err)
	}
	return token
}

func doJSON(t *testing.T, router http.Handler, method, target, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	_, router := newTestHandlers(t)

	rec := doJSON(t, router, http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var status HealthStatus
	if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
		t.Fatalf("decode health response: %v", err)
	}
	if status.Status != StatusHealthy {
		t.Errorf("expected healthy, got %s", status.Status)
	}
}

func TestReadyReportsMissingDependencies(t *testing.T) {
	_, router := newTestHandlers(t)

	rec := doJSON(t, router, http.MethodGet, "/ready", "", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without a database, got %d", rec.Code)
	}

	var status HealthStatus
	if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
		t.Fatalf("decode ready response: %v", err)
	}
	if status.Status != StatusUnhealthy {
		t.Errorf("expected unhealthy, got %s", status.Status)
	}
	if status.Checks["database"].Status != StatusUnhealthy {
		t.Errorf("expected database check unhealthy, got %s", status.Checks["database"].Status)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	_, router := newTestHandlers(t)

	targets := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/v1/attachments"},
		{http.MethodGet, "/v1/attachments/" + uuid.New().String()},
		{http.MethodDelete, "/v1/attachments/" + uuid.New().String()},
		{http.MethodGet, "/v1/jobs/" + uuid.New().String()},
		{http.MethodPost, "/v1/auth/logout"},
	}

	for _, tt := range targets {
		rec := doJSON(t, router, tt.method, tt.path, "", nil)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s %s: expected 401, got %d", tt.method, tt.path, rec.Code)
		}
	}
}

func TestDeleteAttachmentNeedsDeletePermission(t *testing.T) {
	h, router := newTestHandlers(t)
	token := bearerToken(t, h, uuid.New().String(), "technician")

	rec := doJSON(t, router, http.MethodDelete, "/v1/attachments/"+uuid.New().String(), token, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for technician delete, got %d", rec.Code)
	}
}

func multipartBody(t *testing.T, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write form field %s: %v", k, err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func TestUploadRejectsUnknownEntityType(t *testing.T) {
	h, router := newTestHandlers(t)
	token := bearerToken(t, h, uuid.New().String(), "technician")

	body, contentType := multipartBody(t, map[string]string{
		"entity_type": "spaceship",
		"entity_id":   uuid.New().String(),
	})

	req := httptest.NewRequest(http.MethodPost, "/v1/attachments", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+token)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "unknown entity type") {
		t.Errorf("expected entity type error, got %q", rec.Body.String())
	}
}

func TestUploadRejectsBadEntityID(t *testing.T) {
	h, router := newTestHandlers(t)
	token := bearerToken(t, h, uuid.New().String(), "technician")

	body, contentType := multipartBody(t, map[string]string{
		"entity_type": "instrument",
		"entity_id":   "not-a-uuid",
	})

	req := httptest.NewRequest(http.MethodPost, "/v1/attachments", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+token)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestPresignPut_Validation(t *testing.T) {
	h, router := newTestHandlers(t)
	token := bearerToken(t, h, uuid.New().String(), "technician")

	// Missing content_type fails DTO validation.
	rec := doJSON(t, router, http.MethodPost, "/v1/attachments/presign/put", token, map[string]string{
		"filename": "invoice.jpg",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing content_type, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "validation failed") {
		t.Errorf("expected validation details, got %q", rec.Body.String())
	}

	// Executables are not in the upload allowlist.
	rec = doJSON(t, router, http.MethodPost, "/v1/attachments/presign/put", token, map[string]string{
		"filename":     "tool.exe",
		"content_type": "application/x-msdownload",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for disallowed content type, got %d", rec.Code)
	}
}

func TestPresign_NotSupportedOnMemoryBackend(t *testing.T) {
	h, router := newTestHandlers(t)
	token := bearerToken(t, h, uuid.New().String(), "technician")

	req := map[string]string{
		"filename":     "invoice.jpg",
		"content_type": "image/jpeg",
	}

	rec := doJSON(t, router, http.MethodPost, "/v1/attachments/presign/put", token, req)
	if rec.Code != http.StatusNotImplemented {
		t.Fatalf("presign put: expected 501, got %d", rec.Code)
	}

	rec = doJSON(t, router, http.MethodPost, "/v1/attachments/presign/post", token, req)
	if rec.Code != http.StatusNotImplemented {
		t.Fatalf("presign post: expected 501, got %d", rec.Code)
	}
}

func TestGetJob_OwnershipEnforced(t *testing.T) {
	h, router := newTestHandlers(t)

	ownerID := uuid.New().String()
	j := &job.Job{
		Type:    job.TypeAttachmentProcess,
		Payload: json.RawMessage(`{}`),
		UserID:  ownerID,
	}
	jobID, err := h.Q.Enqueue(context.Background(), j)
	if err != nil {
		t.Fatalf("Enqueue error: %v", err)
	}

	// The owner sees their job.
	rec := doJSON(t, router, http.MethodGet, "/v1/jobs/"+jobID.String(), bearerToken(t, h, ownerID, "technician"), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("owner: expected 200, got %d", rec.Code)
	}

	// Another technician does not.
	rec = doJSON(t, router, http.MethodGet, "/v1/jobs/"+jobID.String(), bearerToken(t, h, uuid.New().String(), "technician"), nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("other technician: expected 403, got %d", rec.Code)
	}

	// Managers read any job.
	rec = doJSON(t, router, http.MethodGet, "/v1/jobs/"+jobID.String(), bearerToken(t, h, uuid.New().String(), "manager"), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("manager: expected 200, got %d", rec.Code)
	}

	rec = doJSON(t, router, http.MethodGet, "/v1/jobs/not-a-uuid", bearerToken(t, h, ownerID, "technician"), nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad id: expected 400, got %d", rec.Code)
	}

	rec = doJSON(t, router, http.MethodGet, "/v1/jobs/"+uuid.New().String(), bearerToken(t, h, ownerID, "technician"), nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown id: expected 404, got %d", rec.Code)
	}
}

func TestServeFilesRejectsTraversal(t *testing.T) {
	_, router := newTestHandlers(t)

	req := httptest.NewRequest(http.MethodGet, "/files/../secrets.txt", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for traversal path, got %d", rec.Code)
	}
}
