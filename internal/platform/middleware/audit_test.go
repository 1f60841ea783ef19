package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clinicore/clinicore/internal/platform/auth"
)

// mockRecorder collects audit entries for assertions.
type mockRecorder struct {
	mu      sync.Mutex
	entries []AuditEntry
	err     error // if set, RecordAccess returns this error
}

func (m *mockRecorder) RecordAccess(entry AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return m.err
}

func (m *mockRecorder) last() AuditEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries[len(m.entries)-1]
}

func (m *mockRecorder) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// newTestContext creates an echo context with optional request mutations.
func newTestContext(method, path string, opts ...func(*http.Request)) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, path, nil)
	for _, opt := range opts {
		opt(req)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	return c, rec
}

func withPrincipal(p auth.Principal) func(*http.Request) {
	return func(req *http.Request) {
		*req = *req.WithContext(auth.WithPrincipal(req.Context(), p))
	}
}

func okHandler(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func TestAudit_PatientRead(t *testing.T) {
	logger := zerolog.New(os.Stderr)
	rec := &mockRecorder{}
	patientID := uuid.New().String()
	userID := uuid.New()
	clinicID := uuid.New()

	c, _ := newTestContext(http.MethodGet,
		fmt.Sprintf("/api/v1/patients/%s", patientID),
		withPrincipal(auth.Principal{UserID: userID, ClinicID: clinicID, Role: auth.RoleDoctor}),
	)
	c.Set("request_id", "req-abc")

	mw := Audit(logger, rec)
	h := mw(okHandler)
	if err := h(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.count() != 1 {
		t.Fatalf("expected 1 audit entry, got %d", rec.count())
	}
	entry := rec.last()
	if entry.UserID != userID.String() {
		t.Errorf("expected user_id %q, got %q", userID, entry.UserID)
	}
	if entry.ClinicID != clinicID.String() {
		t.Errorf("expected clinic_id %q, got %q", clinicID, entry.ClinicID)
	}
	if entry.Resource != "patients" {
		t.Errorf("expected resource 'patients', got %q", entry.Resource)
	}
	if entry.PatientID != patientID {
		t.Errorf("expected patient_id %q, got %q", patientID, entry.PatientID)
	}
	if entry.Action != "read" {
		t.Errorf("expected action 'read', got %q", entry.Action)
	}
	if entry.RequestID != "req-abc" {
		t.Errorf("expected request_id 'req-abc', got %q", entry.RequestID)
	}
	if entry.StatusCode != http.StatusOK {
		t.Errorf("expected status 200, got %d", entry.StatusCode)
	}
}

func TestAudit_InvoiceCreate(t *testing.T) {
	logger := zerolog.New(os.Stderr)
	rec := &mockRecorder{}

	c, _ := newTestContext(http.MethodPost, "/api/v1/invoices",
		withPrincipal(auth.Principal{UserID: uuid.New(), ClinicID: uuid.New(), Role: auth.RoleReceptionist}),
	)

	mw := Audit(logger, rec)
	h := mw(okHandler)
	if err := h(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	entry := rec.last()
	if entry.Resource != "invoices" {
		t.Errorf("expected resource 'invoices', got %q", entry.Resource)
	}
	if entry.Action != "create" {
		t.Errorf("expected action 'create', got %q", entry.Action)
	}
	if entry.Role != string(auth.RoleReceptionist) {
		t.Errorf("expected receptionist role, got %q", entry.Role)
	}
}

func TestAudit_SkipsNonAuditablePaths(t *testing.T) {
	logger := zerolog.New(os.Stderr)
	rec := &mockRecorder{}

	for _, path := range []string{"/health", "/metrics", "/"} {
		c, _ := newTestContext(http.MethodGet, path)
		mw := Audit(logger, rec)
		h := mw(okHandler)
		if err := h(c); err != nil {
			t.Fatalf("unexpected error for %s: %v", path, err)
		}
	}
	if rec.count() != 0 {
		t.Errorf("expected no audit entries for non-API paths, got %d", rec.count())
	}
}

func TestAudit_DeleteAction(t *testing.T) {
	logger := zerolog.New(os.Stderr)
	rec := &mockRecorder{}

	c, _ := newTestContext(http.MethodDelete, "/api/v1/appointments/"+uuid.New().String())
	mw := Audit(logger, rec)
	h := mw(okHandler)
	if err := h(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry := rec.last(); entry.Action != "delete" {
		t.Errorf("expected action 'delete', got %q", entry.Action)
	}
}

func TestAudit_RecorderError_DoesNotBreakRequest(t *testing.T) {
	logger := zerolog.New(os.Stderr)
	rec := &mockRecorder{err: errors.New("storage down")}

	c, resp := newTestContext(http.MethodGet, "/api/v1/patients")
	mw := Audit(logger, rec)
	h := mw(okHandler)
	if err := h(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Code != http.StatusOK {
		t.Errorf("expected 200 despite recorder error, got %d", resp.Code)
	}
}

func TestAudit_NoRecorder_LogOnly(t *testing.T) {
	logger := zerolog.New(os.Stderr)

	c, resp := newTestContext(http.MethodGet, "/api/v1/inventory")
	mw := Audit(logger)
	h := mw(okHandler)
	if err := h(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.Code)
	}
}

func TestAudit_PatientIDFromQuery(t *testing.T) {
	logger := zerolog.New(os.Stderr)
	rec := &mockRecorder{}
	patientID := uuid.New().String()

	c, _ := newTestContext(http.MethodGet, "/api/v1/appointments?patient="+patientID)
	mw := Audit(logger, rec)
	h := mw(okHandler)
	if err := h(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry := rec.last(); entry.PatientID != patientID {
		t.Errorf("expected patient_id %q, got %q", patientID, entry.PatientID)
	}
}

func TestAudit_CapturesIPAndUserAgent(t *testing.T) {
	logger := zerolog.New(os.Stderr)
	rec := &mockRecorder{}

	c, _ := newTestContext(http.MethodGet, "/api/v1/patients", func(req *http.Request) {
		req.Header.Set("User-Agent", "clinic-app/2.1")
	})
	mw := Audit(logger, rec)
	h := mw(okHandler)
	if err := h(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	entry := rec.last()
	if entry.UserAgent != "clinic-app/2.1" {
		t.Errorf("expected user agent, got %q", entry.UserAgent)
	}
	if entry.IPAddress == "" {
		t.Error("expected IP address to be captured")
	}
}

func TestIsAuditablePath(t *testing.T) {
	cases := []struct {
		path string
		want bool
	}{
		{"/api/v1/patients", true},
		{"/api/v1/invoices/123", true},
		{"/health", false},
		{"/api/v2/patients", false},
		{"/", false},
	}
	for _, tc := range cases {
		if got := isAuditablePath(tc.path); got != tc.want {
			t.Errorf("isAuditablePath(%q) = %v, want %v", tc.path, got, tc.want)
		}
	}
}

func TestHttpMethodToAction(t *testing.T) {
	cases := map[string]string{
		http.MethodGet:    "read",
		http.MethodHead:   "read",
		http.MethodPost:   "create",
		http.MethodPut:    "update",
		http.MethodPatch:  "update",
		http.MethodDelete: "delete",
		"OPTIONS":         "read",
	}
	for method, want := range cases {
		if got := httpMethodToAction(method); got != want {
			t.Errorf("httpMethodToAction(%q) = %q, want %q", method, got, want)
		}
	}
}

func TestExtractResource(t *testing.T) {
	cases := []struct {
		path string
		want string
	}{
		{"/api/v1/patients", "patients"},
		{"/api/v1/patients/123", "patients"},
		{"/api/v1/inventory/items", "inventory"},
		{"/api/v1/", "unknown"},
	}
	for _, tc := range cases {
		if got := extractResource(tc.path); got != tc.want {
			t.Errorf("extractResource(%q) = %q, want %q", tc.path, got, tc.want)
		}
	}
}

func TestIsUUIDLike(t *testing.T) {
	if !isUUIDLike(uuid.New().String()) {
		t.Error("expected valid UUID to match")
	}
	if isUUIDLike("queue") {
		t.Error("expected non-UUID path segment to not match")
	}
	if isUUIDLike("") {
		t.Error("expected empty string to not match")
	}
}

func TestAuditRecorderFunc(t *testing.T) {
	var got AuditEntry
	f := AuditRecorderFunc(func(entry AuditEntry) error {
		got = entry
		return nil
	})
	if err := f.RecordAccess(AuditEntry{UserID: "u1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.UserID != "u1" {
		t.Errorf("expected entry to pass through, got %+v", got)
	}
}
