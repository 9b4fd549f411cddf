package audit_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/project-registry/project-registry/internal/audit"
	"github.com/project-registry/project-registry/internal/db/models"
)

// countingServer returns a test HTTP server that replies with status and
// signals on ch for every request it handles.
func countingServer(t *testing.T, status int, ch chan<- struct{}) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
		if ch != nil {
			ch <- struct{}{}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func awaitShipment(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(3 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
}

func TestNewMultiShipper_NoConfigs(t *testing.T) {
	ms, err := audit.NewMultiShipper(nil)
	if err != nil {
		t.Fatalf("NewMultiShipper(nil) error: %v", err)
	}
	if err := ms.Ship(context.Background(), &models.AuditEntry{ActionType: models.ActionUpdate}); err != nil {
		t.Errorf("Ship on empty shipper = %v, want nil", err)
	}
	if err := ms.Close(); err != nil {
		t.Errorf("Close on empty shipper = %v, want nil", err)
	}
}

func TestNewMultiShipper_DisabledEntryIgnored(t *testing.T) {
	ms, err := audit.NewMultiShipper([]audit.ShipperConfig{
		{Enabled: false, Type: "webhook", Webhook: &audit.WebhookConfig{URL: "http://example.com"}},
	})
	if err != nil {
		t.Fatalf("NewMultiShipper error: %v", err)
	}
	if err := ms.Ship(context.Background(), &models.AuditEntry{ActionType: models.ActionUpdate}); err != nil {
		t.Errorf("Ship = %v, want nil with all destinations disabled", err)
	}
}

func TestNewMultiShipper_ConfigErrors(t *testing.T) {
	cases := []struct {
		name string
		cfg  audit.ShipperConfig
	}{
		{"unknown type", audit.ShipperConfig{Enabled: true, Type: "kafka"}},
		{"webhook without settings", audit.ShipperConfig{Enabled: true, Type: "webhook"}},
		{"file without settings", audit.ShipperConfig{Enabled: true, Type: "file"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := audit.NewMultiShipper([]audit.ShipperConfig{tc.cfg}); err == nil {
				t.Error("expected constructor error, got nil")
			}
		})
	}
}

func TestMultiShipper_FailureDoesNotStopRemaining(t *testing.T) {
	failing := countingServer(t, http.StatusInternalServerError, nil)
	delivered := make(chan struct{}, 1)
	healthy := countingServer(t, http.StatusOK, delivered)

	ms, err := audit.NewMultiShipper([]audit.ShipperConfig{
		{Enabled: true, Type: "webhook", Webhook: &audit.WebhookConfig{URL: failing.URL, Timeout: time.Second}},
		{Enabled: true, Type: "webhook", Webhook: &audit.WebhookConfig{URL: healthy.URL, Timeout: time.Second}},
	})
	if err != nil {
		t.Fatalf("NewMultiShipper error: %v", err)
	}
	defer ms.Close()

	if err := ms.Ship(context.Background(), &models.AuditEntry{ActionType: models.ActionDelete}); err == nil {
		t.Error("Ship = nil, want error from the failing destination")
	}
	awaitShipment(t, delivered, "delivery to the healthy destination")
}

func TestWebhookShipper_PostsEntryAsJSON(t *testing.T) {
	var body bytes.Buffer
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q, want application/json", ct)
		}
		body.ReadFrom(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ws, err := audit.NewWebhookShipper(&audit.WebhookConfig{URL: srv.URL, Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("NewWebhookShipper error: %v", err)
	}
	defer ws.Close()

	entry := &models.AuditEntry{
		ActionType: models.ActionUpdate,
		UserName:   "analyst@example.com",
		ModuleName: "Financing",
		SubModule:  "DSCR",
		FieldName:  "DSCR Value",
	}
	if err := ws.Ship(context.Background(), entry); err != nil {
		t.Fatalf("Ship error: %v", err)
	}

	var got models.AuditEntry
	if err := json.Unmarshal(body.Bytes(), &got); err != nil {
		t.Fatalf("decode posted body: %v", err)
	}
	if got.ActionType != entry.ActionType || got.UserName != entry.UserName || got.FieldName != entry.FieldName {
		t.Errorf("posted entry = %+v, want fields from %+v", got, entry)
	}
}

func TestWebhookShipper_Non2xxIsError(t *testing.T) {
	srv := countingServer(t, http.StatusBadGateway, nil)

	ws, _ := audit.NewWebhookShipper(&audit.WebhookConfig{URL: srv.URL, Timeout: 5 * time.Second})
	defer ws.Close()

	if err := ws.Ship(context.Background(), &models.AuditEntry{ActionType: models.ActionUpdate}); err == nil {
		t.Error("Ship = nil, want error for 502 response")
	}
}

func TestWebhookShipper_SendsConfiguredHeaders(t *testing.T) {
	var token string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token = r.Header.Get("X-Auth-Token")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ws, _ := audit.NewWebhookShipper(&audit.WebhookConfig{
		URL:     srv.URL,
		Timeout: 5 * time.Second,
		Headers: map[string]string{"X-Auth-Token": "secret"},
	})
	defer ws.Close()

	ws.Ship(context.Background(), &models.AuditEntry{ActionType: models.ActionUpdate})
	if token != "secret" {
		t.Errorf("X-Auth-Token = %q, want secret", token)
	}
}

func TestWebhookShipper_CloseIsIdempotent(t *testing.T) {
	ws, err := audit.NewWebhookShipper(&audit.WebhookConfig{URL: "http://localhost:0", Timeout: time.Second})
	if err != nil {
		t.Fatalf("NewWebhookShipper: %v", err)
	}
	if err := ws.Close(); err != nil {
		t.Errorf("Close = %v, want nil", err)
	}
	if err := ws.Close(); err != nil {
		t.Errorf("second Close = %v, want nil", err)
	}
}

func TestWebhookShipper_FlushesWhenBatchFills(t *testing.T) {
	delivered := make(chan struct{}, 10)
	srv := countingServer(t, http.StatusOK, delivered)

	ws, err := audit.NewWebhookShipper(&audit.WebhookConfig{
		URL:           srv.URL,
		Timeout:       5 * time.Second,
		BatchSize:     1,
		FlushInterval: 5 * time.Second,
	})
	if err != nil {
		t.Fatalf("NewWebhookShipper error: %v", err)
	}
	defer ws.Close()

	if err := ws.Ship(context.Background(), &models.AuditEntry{ActionType: models.ActionUpdate}); err != nil {
		t.Fatalf("Ship error: %v", err)
	}
	awaitShipment(t, delivered, "size-triggered flush")
}

func TestWebhookShipper_FlushesOnInterval(t *testing.T) {
	delivered := make(chan struct{}, 10)
	srv := countingServer(t, http.StatusOK, delivered)

	ws, _ := audit.NewWebhookShipper(&audit.WebhookConfig{
		URL:           srv.URL,
		Timeout:       5 * time.Second,
		BatchSize:     100,
		FlushInterval: 50 * time.Millisecond,
	})
	defer ws.Close()

	ws.Ship(context.Background(), &models.AuditEntry{ActionType: models.ActionUpdate})
	awaitShipment(t, delivered, "interval flush")
}

func TestWebhookShipper_FlushesOnClose(t *testing.T) {
	delivered := make(chan struct{}, 10)
	srv := countingServer(t, http.StatusOK, delivered)

	ws, _ := audit.NewWebhookShipper(&audit.WebhookConfig{
		URL:           srv.URL,
		Timeout:       5 * time.Second,
		BatchSize:     100,
		FlushInterval: 5 * time.Second,
	})

	ws.Ship(context.Background(), &models.AuditEntry{ActionType: models.ActionUpdate})
	// Let the flush loop pick the entry off the channel before closing.
	time.Sleep(50 * time.Millisecond)
	ws.Close()

	awaitShipment(t, delivered, "close-triggered flush")
}

func TestFileShipper_AppendsJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")

	fs, err := audit.NewFileShipper(&audit.FileConfig{Path: path})
	if err != nil {
		t.Fatalf("NewFileShipper error: %v", err)
	}

	entry := &models.AuditEntry{
		ActionType: models.ActionCreate,
		UserName:   "pm@example.com",
		SubModule:  "Lender Commitment",
	}
	if err := fs.Ship(context.Background(), entry); err != nil {
		t.Fatalf("Ship error: %v", err)
	}
	if err := fs.Close(); err != nil {
		t.Errorf("Close error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	var got models.AuditEntry
	if err := json.Unmarshal(bytes.TrimRight(data, "\n"), &got); err != nil {
		t.Fatalf("decode line: %v", err)
	}
	if got.ActionType != entry.ActionType || got.SubModule != entry.SubModule {
		t.Errorf("logged entry = %+v, want fields from %+v", got, entry)
	}
}

func TestFileShipper_OneLinePerEntry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "multi.log")

	fs, _ := audit.NewFileShipper(&audit.FileConfig{Path: path})
	for i := 0; i < 5; i++ {
		fs.Ship(context.Background(), &models.AuditEntry{ActionType: models.ActionUpdate})
	}
	fs.Close()

	data, _ := os.ReadFile(path)
	lines := 0
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		lines++
	}
	if lines != 5 {
		t.Errorf("file has %d lines, want 5", lines)
	}
}

func TestNewFileShipper_MissingParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nodir", "audit.log")
	if _, err := audit.NewFileShipper(&audit.FileConfig{Path: path}); err == nil {
		t.Error("expected error for path with nonexistent parent, got nil")
	}
}

func TestFileShipper_RotatesPastSizeLimit(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "audit.log")

	// Seed the file just past the 1 MB limit so the next write rotates.
	if err := os.WriteFile(logPath, make([]byte, 1<<20+1), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	fs, err := audit.NewFileShipper(&audit.FileConfig{
		Path:       logPath,
		MaxSizeMB:  1,
		MaxBackups: 2,
	})
	if err != nil {
		t.Fatalf("NewFileShipper: %v", err)
	}
	defer fs.Close()

	if err := fs.Ship(context.Background(), &models.AuditEntry{ActionType: models.ActionUpdate}); err != nil {
		t.Fatalf("Ship error: %v", err)
	}

	if _, err := os.Stat(logPath); err != nil {
		t.Errorf("log file missing after rotation: %v", err)
	}
	if _, err := os.Stat(logPath + ".1"); err != nil {
		t.Errorf("backup .1 missing after rotation: %v", err)
	}
}
