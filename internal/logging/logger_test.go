package logging_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"dubsync/internal/config"
	"dubsync/internal/logging"
	"dubsync/internal/services"
)

func TestNewFromConfigWritesRunLog(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()

	logger, logPath, err := logging.NewFromConfig(&cfg, "test")
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Info("hello from test")

	if filepath.Base(logPath) != "dubsync-test.log" {
		t.Fatalf("unexpected log path %q", logPath)
	}
	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), "hello from test") {
		t.Fatalf("expected message in run log, got %q", content)
	}
}

func TestConsoleLoggerRendersSubject(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	ctx := services.WithJobID(context.Background(), "0123456789abcdef")
	ctx = services.WithSegmentIndex(ctx, 4)
	ctx = services.WithStage(ctx, "assemble")
	component := logging.NewComponentLogger(logger, "timeline")
	logging.WithContext(ctx, component).Info("clip rendered", logging.String("strategy", "PAD"))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	line := string(content)
	for _, fragment := range []string{"INFO [timeline]", "job 01234567 seg 4 (assemble)", "clip rendered", "strategy=PAD"} {
		if !strings.Contains(line, fragment) {
			t.Fatalf("expected %q in %q", fragment, line)
		}
	}
	if strings.Contains(line, ".go:") {
		t.Fatalf("expected no caller information in info logs, got %q", line)
	}
}

func TestJSONLoggerUsesShortKeys(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "json.log")
	logger, err := logging.New(logging.Options{Format: "json", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Warn("drift high", logging.Millis("drift_ms", 608.6956))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var payload map[string]any
	if err := json.Unmarshal(content, &payload); err != nil {
		t.Fatalf("decode json log: %v", err)
	}
	if payload["level"] != "warn" || payload["msg"] != "drift high" {
		t.Fatalf("unexpected payload: %v", payload)
	}
	if _, ok := payload["ts"]; !ok {
		t.Fatalf("expected ts key, got %v", payload)
	}
	if payload["drift_ms"] != 608.7 {
		t.Fatalf("expected rounded drift, got %v", payload["drift_ms"])
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestJobLoggerTeesIntoJobDir(t *testing.T) {
	dir := t.TempDir()
	logger, closeFn, err := logging.JobLogger(logging.NewNop(), dir)
	if err != nil {
		t.Fatalf("JobLogger failed: %v", err)
	}
	logger.Debug("segment queued", logging.Int("segment_index", 2))
	if err := closeFn(); err != nil {
		t.Fatalf("close job log: %v", err)
	}
	content, err := os.ReadFile(filepath.Join(dir, "job.log"))
	if err != nil {
		t.Fatalf("read job log: %v", err)
	}
	if !strings.Contains(string(content), "segment queued") {
		t.Fatalf("expected debug record in job log, got %q", content)
	}
}

func TestCleanupOldLogsRemovesExpiredFiles(t *testing.T) {
	dir := t.TempDir()
	oldPath := filepath.Join(dir, "dubsync-old.log")
	newPath := filepath.Join(dir, "dubsync-new.log")
	keepPath := filepath.Join(dir, "dubsync-current.log")
	for _, p := range []string{oldPath, newPath, keepPath} {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", p, err)
		}
	}
	past := time.Now().AddDate(0, 0, -10)
	for _, p := range []string{oldPath, keepPath} {
		if err := os.Chtimes(p, past, past); err != nil {
			t.Fatalf("chtimes: %v", err)
		}
	}

	logging.CleanupOldLogs(logging.NewNop(), 5, logging.RetentionTarget{Dir: dir, Pattern: "dubsync-*.log", Exclude: []string{keepPath}})

	if _, err := os.Stat(oldPath); !os.IsNotExist(err) {
		t.Fatalf("expected old log removed, stat err=%v", err)
	}
	for _, p := range []string{newPath, keepPath} {
		if _, err := os.Stat(p); err != nil {
			t.Fatalf("expected %s to remain: %v", p, err)
		}
	}
}
