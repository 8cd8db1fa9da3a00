package daemon_test

import (
	"context"
	"os"
	"testing"
	"time"

	"dubsync/internal/api"
	"dubsync/internal/config"
	"dubsync/internal/daemon"
	"dubsync/internal/jobs"
	"dubsync/internal/logging"
	"dubsync/internal/pipeline"
	"dubsync/internal/testsupport"
)

func newDaemon(t *testing.T, cfg *config.Config, store *jobs.Store) *daemon.Daemon {
	t.Helper()
	deps, err := pipeline.NewDeps(cfg)
	if err != nil {
		t.Fatalf("pipeline.NewDeps: %v", err)
	}
	engine, err := pipeline.New(cfg, store, deps, logging.NewNop())
	if err != nil {
		t.Fatalf("pipeline.New: %v", err)
	}
	d, err := daemon.New(cfg, engine, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	return d
}

func TestDaemonStartStop(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	store := testsupport.MustOpenStore(t, cfg)
	d := newDaemon(t, cfg, store)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(d.Stop)

	status := d.Status(ctx)
	if !status.Running {
		t.Fatal("expected daemon to report running")
	}
	if status.LockFilePath != cfg.LockPath() {
		t.Fatalf("lock path = %q", status.LockFilePath)
	}
	if status.Database == nil || !status.Database.IntegrityOK {
		t.Fatalf("expected healthy database, got %+v", status.Database)
	}

	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}
	other := newDaemon(t, cfg, store)
	if err := other.Start(ctx); err == nil {
		other.Stop()
		t.Fatal("expected second instance to fail on the lock")
	}

	d.Stop()
	if d.Status(ctx).Running {
		t.Fatal("expected daemon to be stopped")
	}
}

func TestDaemonStartFailsInterruptedSegments(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	store := testsupport.MustOpenStore(t, cfg)
	job := testsupport.NewActiveJob(t, store, testsupport.Segments(2, 2000))
	ctx := context.Background()
	if err := store.Claim(ctx, job.ID, 0); err != nil {
		t.Fatalf("Claim: %v", err)
	}

	d := newDaemon(t, cfg, store)
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(d.Stop)

	for i := range 2 {
		seg, err := store.Segment(ctx, job.ID, i)
		if err != nil {
			t.Fatalf("Segment(%d): %v", i, err)
		}
		if seg.Status != jobs.SegmentFailed {
			t.Fatalf("segment %d status = %s, want failed", i, seg.Status)
		}
	}
}

func TestDaemonServesStatusOverHTTP(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries(), testsupport.WithAPIToken("tok"))
	store := testsupport.MustOpenStore(t, cfg)
	d := newDaemon(t, cfg, store)
	ctx := context.Background()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(d.Stop)

	client, err := api.NewClient(d.Addr(), "tok")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	status, err := client.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !status.Running || len(status.Dependencies) == 0 || len(status.Checks) == 0 {
		t.Fatalf("unexpected status: %+v", status)
	}
	for _, dep := range status.Dependencies {
		if !dep.Available {
			t.Fatalf("dependency %s unavailable: %s", dep.Name, dep.Detail)
		}
	}

	unauth, _ := api.NewClient(d.Addr(), "")
	if _, err := unauth.ListJobs(ctx, 0); !api.IsStatus(err, 401) {
		t.Fatalf("expected 401, got %v", err)
	}
}

func TestDaemonStartSweepsIdleStaging(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	cfg.Jobs.StagingRetentionHours = 1
	store := testsupport.MustOpenStore(t, cfg)

	stale := cfg.JobStagingDir("old-job")
	if err := os.MkdirAll(stale, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	past := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(stale, past, past); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	fresh := cfg.JobStagingDir("new-job")
	if err := os.MkdirAll(fresh, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	d := newDaemon(t, cfg, store)
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(d.Stop)

	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Fatalf("stale staging dir should be removed, stat err = %v", err)
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Fatalf("fresh staging dir should remain: %v", err)
	}
}
