package app

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"ArticleDesk/internal/config"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		Storage:  config.StorageConfig{DataDir: filepath.Join(t.TempDir(), "data"), Mirror: config.MirrorPostgres},
		Database: config.DatabaseConfig{DSN: "postgres://invalid host/none?connect_timeout=1"},
		Sheets:   config.SheetsConfig{Sheet: "not a sheet ref", CredentialsFile: filepath.Join(t.TempDir(), "missing.json")},
		HTTP:     config.HTTPConfig{Addr: "127.0.0.1:0", ShutdownTimeout: 5 * time.Second},
	}
}

func TestNewDegradesWithoutRemotes(t *testing.T) {
	a, err := New(context.Background(), testConfig(t), slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if a.store == nil || a.pipeline == nil || a.syncer == nil {
		t.Fatalf("application not fully wired: %+v", a)
	}
	if a.scheduler != nil {
		t.Fatalf("scheduler must stay off when disabled")
	}
	if got := a.syncer.Connectors(); len(got) != 2 || got[0] != "email" || got[1] != "sheets" {
		t.Fatalf("unexpected connectors: %v", got)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.Mirror = config.MirrorNone
	cfg.Scheduler = config.SchedulerConfig{Enabled: true, Interval: time.Hour}

	a, err := New(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("Run did not return after cancel")
	}
}

func TestSyncTimeoutCoversCycle(t *testing.T) {
	cfg := config.Config{
		Pipeline: config.PipelineConfig{CycleDeadline: 15 * time.Minute},
		HTTP:     config.HTTPConfig{RequestTimeout: 3 * time.Minute},
	}
	if got := syncTimeout(cfg); got != 16*time.Minute {
		t.Fatalf("unexpected sync timeout: %s", got)
	}
	cfg.Pipeline.CycleDeadline = 0
	if got := syncTimeout(cfg); got != 0 {
		t.Fatalf("no cycle deadline must fall back to the router default, got %s", got)
	}
}

func TestMirrorDialerPerKind(t *testing.T) {
	cfg := testConfig(t)
	a := &Application{cfg: cfg, logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	if a.mirrorDialer(nil, "") == nil {
		t.Fatalf("postgres mirror must get a dialer")
	}

	a.cfg.Storage.Mirror = config.MirrorSheets
	if a.mirrorDialer(nil, "sheet") != nil {
		t.Fatalf("sheets mirror without a backend must be skipped")
	}

	a.cfg.Storage.Mirror = config.MirrorNone
	if a.mirrorDialer(nil, "") != nil {
		t.Fatalf("no mirror configured must return nil")
	}
}
