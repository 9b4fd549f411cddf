// Package audit builds and persists the field-level change trail for project
// record saves. Audit entries are kept apart from application logs: logs are
// ephemeral debug output for on-call engineers, while the trail is an
// immutable record read by asset managers and auditors under multi-year
// retention. Beyond the audit_log table, entries can be routed to external
// destinations (file, webhook) through the Shipper interface so the trail
// reaches a SIEM or aggregator independently of the database.
package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/project-registry/project-registry/internal/db/models"
)

// Shipper sends audit entries to an external destination.
type Shipper interface {
	Ship(ctx context.Context, entry *models.AuditEntry) error
	Close() error
}

// ShipperConfig declares one external destination.
type ShipperConfig struct {
	Enabled bool   `json:"enabled"`
	Type    string `json:"type"` // "webhook" or "file"

	Webhook *WebhookConfig `json:"webhook,omitempty"`
	File    *FileConfig    `json:"file,omitempty"`
}

// WebhookConfig configures the HTTP destination. BatchSize 0 disables
// batching; entries then post one request each.
type WebhookConfig struct {
	URL           string            `json:"url"`
	Headers       map[string]string `json:"headers,omitempty"`
	Timeout       time.Duration     `json:"timeout"`
	BatchSize     int               `json:"batch_size"`
	FlushInterval time.Duration     `json:"flush_interval"`
}

// FileConfig configures the append-only JSONL destination with size-based
// rotation.
type FileConfig struct {
	Path       string `json:"path"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
}

// MultiShipper fans one entry out to every enabled destination.
type MultiShipper struct {
	mu       sync.RWMutex
	shippers []Shipper
}

// NewMultiShipper builds the enabled shippers from config. A misconfigured
// destination fails construction rather than silently dropping the trail.
func NewMultiShipper(configs []ShipperConfig) (*MultiShipper, error) {
	ms := &MultiShipper{}
	for _, cfg := range configs {
		if !cfg.Enabled {
			continue
		}

		var (
			shipper Shipper
			err     error
		)
		switch cfg.Type {
		case "webhook":
			if cfg.Webhook == nil {
				return nil, fmt.Errorf("webhook shipper declared without webhook config")
			}
			shipper, err = NewWebhookShipper(cfg.Webhook)
		case "file":
			if cfg.File == nil {
				return nil, fmt.Errorf("file shipper declared without file config")
			}
			shipper, err = NewFileShipper(cfg.File)
		default:
			return nil, fmt.Errorf("unknown shipper type %q", cfg.Type)
		}
		if err != nil {
			return nil, fmt.Errorf("create %s shipper: %w", cfg.Type, err)
		}
		ms.shippers = append(ms.shippers, shipper)
	}
	return ms, nil
}

// Ship delivers to every destination. One failing destination does not stop
// the others; the last error is returned for the caller's log line.
func (ms *MultiShipper) Ship(ctx context.Context, entry *models.AuditEntry) error {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	var lastErr error
	for _, s := range ms.shippers {
		if err := s.Ship(ctx, entry); err != nil {
			lastErr = err
			slog.Warn("audit shipper delivery failed", "error", err)
		}
	}
	return lastErr
}

// Close closes every destination, flushing pending batches.
func (ms *MultiShipper) Close() error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	var lastErr error
	for _, s := range ms.shippers {
		if err := s.Close(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// WebhookShipper posts entries as JSON, optionally batched.
type WebhookShipper struct {
	cfg       *WebhookConfig
	client    *http.Client
	batchCh   chan *models.AuditEntry
	batchMu   sync.Mutex
	batch     []*models.AuditEntry
	closeCh   chan struct{}
	closeOnce sync.Once
}

// NewWebhookShipper creates the shipper and, when batching is configured,
// starts its flush loop.
func NewWebhookShipper(cfg *WebhookConfig) (*WebhookShipper, error) {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	ws := &WebhookShipper{
		cfg:     cfg,
		client:  &http.Client{Timeout: timeout},
		batchCh: make(chan *models.AuditEntry, 1000),
		closeCh: make(chan struct{}),
	}
	if cfg.BatchSize > 0 {
		go ws.flushLoop()
	}
	return ws, nil
}

func (ws *WebhookShipper) flushLoop() {
	interval := ws.cfg.FlushInterval
	if interval == 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case entry := <-ws.batchCh:
			ws.batchMu.Lock()
			ws.batch = append(ws.batch, entry)
			if len(ws.batch) >= ws.cfg.BatchSize {
				ws.flushLocked()
			}
			ws.batchMu.Unlock()
		case <-ticker.C:
			ws.batchMu.Lock()
			ws.flushLocked()
			ws.batchMu.Unlock()
		case <-ws.closeCh:
			ws.batchMu.Lock()
			ws.flushLocked()
			ws.batchMu.Unlock()
			return
		}
	}
}

// flushLocked posts the pending batch. Caller holds batchMu.
func (ws *WebhookShipper) flushLocked() {
	if len(ws.batch) == 0 {
		return
	}
	data, err := json.Marshal(ws.batch)
	ws.batch = ws.batch[:0]
	if err != nil {
		slog.Error("marshal audit batch failed", "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), ws.client.Timeout)
	defer cancel()
	if err := ws.post(ctx, data); err != nil {
		slog.Warn("audit batch delivery failed", "error", err)
	}
}

// Ship queues the entry when batching is on; a full queue falls back to a
// direct post so entries are never dropped on the floor.
func (ws *WebhookShipper) Ship(ctx context.Context, entry *models.AuditEntry) error {
	if ws.cfg.BatchSize > 0 {
		select {
		case ws.batchCh <- entry:
			return nil
		default:
		}
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal audit entry: %w", err)
	}
	return ws.post(ctx, data)
}

func (ws *WebhookShipper) post(ctx context.Context, data []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ws.cfg.URL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range ws.cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := ws.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// Close stops the flush loop after a final flush.
func (ws *WebhookShipper) Close() error {
	ws.closeOnce.Do(func() { close(ws.closeCh) })
	return nil
}

// FileShipper appends entries as JSON lines with size-based rotation.
type FileShipper struct {
	cfg  *FileConfig
	mu   sync.Mutex
	file *os.File
}

// NewFileShipper opens (or creates) the destination file in append mode.
func NewFileShipper(cfg *FileConfig) (*FileShipper, error) {
	file, err := os.OpenFile(cfg.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("open audit log file: %w", err)
	}
	return &FileShipper{cfg: cfg, file: file}, nil
}

// Ship appends one JSON line, rotating first when the file is over size.
func (fs *FileShipper) Ship(_ context.Context, entry *models.AuditEntry) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if fs.cfg.MaxSizeMB > 0 {
		if info, err := fs.file.Stat(); err == nil && info.Size() > int64(fs.cfg.MaxSizeMB)*1024*1024 {
			if err := fs.rotate(); err != nil {
				slog.Warn("audit log rotation failed", "path", fs.cfg.Path, "error", err)
			}
		}
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal audit entry: %w", err)
	}
	if _, err := fs.file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write audit entry: %w", err)
	}
	return nil
}

// rotate shifts path.N to path.N+1, moves the live file to path.1, and
// reopens. Rename failures on missing backups are expected and ignored.
func (fs *FileShipper) rotate() error {
	if err := fs.file.Close(); err != nil {
		return err
	}
	for i := fs.cfg.MaxBackups - 1; i >= 1; i-- {
		_ = os.Rename(fmt.Sprintf("%s.%d", fs.cfg.Path, i), fmt.Sprintf("%s.%d", fs.cfg.Path, i+1))
	}
	_ = os.Rename(fs.cfg.Path, fs.cfg.Path+".1")
	if fs.cfg.MaxBackups > 0 {
		_ = os.Remove(fmt.Sprintf("%s.%d", fs.cfg.Path, fs.cfg.MaxBackups+1))
	}

	file, err := os.OpenFile(fs.cfg.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	fs.file = file
	return nil
}

func (fs *FileShipper) Close() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.file.Close()
}
