package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"dubsync/internal/api"
)

func TestNewClientEmptyBind(t *testing.T) {
	client, err := api.NewClient("", "")
	if err != nil {
		t.Fatalf("NewClient error: %v", err)
	}
	if client != nil {
		t.Fatal("expected nil client for empty bind")
	}
	if _, err := client.Status(context.Background()); !errors.Is(err, api.ErrAPIUnavailable) {
		t.Fatalf("expected ErrAPIUnavailable, got %v", err)
	}
}

func TestClientSendsTokenAndDecodesJob(t *testing.T) {
	var gotAuth, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(api.Job{
			ID:     "job-1",
			Status: "in_progress",
			Segments: []api.Segment{
				{Index: 0, Status: "ready", MediaURL: "http://host/media/job-1/seg_0000.mp4"},
				{Index: 1, Status: "processing"},
			},
		})
	}))
	defer srv.Close()

	client, err := api.NewClient(srv.URL, "secret")
	if err != nil {
		t.Fatalf("NewClient error: %v", err)
	}
	job, err := client.GetJob(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("GetJob error: %v", err)
	}
	if gotAuth != "Bearer secret" {
		t.Fatalf("authorization = %q", gotAuth)
	}
	if gotPath != "/api/jobs/job-1" {
		t.Fatalf("path = %q", gotPath)
	}
	if len(job.Segments) != 2 || job.Segments[0].MediaURL == "" {
		t.Fatalf("unexpected job: %+v", job)
	}
}

func TestClientSubmitPostsBody(t *testing.T) {
	var got api.SubmitRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(api.SubmitResponse{JobID: "job-9"})
	}))
	defer srv.Close()

	client, _ := api.NewClient(srv.URL, "")
	resp, err := client.Submit(context.Background(), api.SubmitRequest{SourcePath: "/media/a.mp4", Mode: "dub", TargetLang: "es"})
	if err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	if resp.JobID != "job-9" {
		t.Fatalf("job id = %q", resp.JobID)
	}
	if got.SourcePath != "/media/a.mp4" || got.TargetLang != "es" {
		t.Fatalf("request body = %+v", got)
	}
}

func TestClientRetryPaths(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		_ = json.NewEncoder(w).Encode(api.RetryResponse{JobID: "j"})
	}))
	defer srv.Close()

	client, _ := api.NewClient(srv.URL, "")
	if _, err := client.Retry(context.Background(), "j", 3); err != nil {
		t.Fatalf("Retry error: %v", err)
	}
	if _, err := client.Retry(context.Background(), "j", -1); err != nil {
		t.Fatalf("Retry all error: %v", err)
	}
	want := []string{"/api/jobs/j/segments/3/retry", "/api/jobs/j/retry"}
	if len(paths) != 2 || paths[0] != want[0] || paths[1] != want[1] {
		t.Fatalf("paths = %v, want %v", paths, want)
	}
}

func TestClientStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(api.ErrorResponse{Error: "job is running", Kind: "conflict"})
	}))
	defer srv.Close()

	client, _ := api.NewClient(srv.URL, "")
	_, err := client.Cancel(context.Background(), "j")
	if !api.IsStatus(err, http.StatusConflict) {
		t.Fatalf("expected 409 status error, got %v", err)
	}
	var statusErr *api.StatusError
	if !errors.As(err, &statusErr) || statusErr.Message != "job is running" {
		t.Fatalf("unexpected error: %v", err)
	}
	if api.IsAPIUnavailable(err) {
		t.Fatal("status error should not count as unavailable")
	}
}

func TestIsAPIUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	addr := srv.URL
	srv.Close()

	client, _ := api.NewClient(addr, "")
	_, err := client.ListJobs(context.Background(), 5)
	if !api.IsAPIUnavailable(err) {
		t.Fatalf("expected unavailable error, got %v", err)
	}
}
