package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ErrAPIUnavailable reports that no daemon API is configured or reachable.
var ErrAPIUnavailable = errors.New("daemon API unavailable")

// StatusError is returned for non-2xx replies.
type StatusError struct {
	Code    int
	Message string
	Kind    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api returned status %d", e.Code)
	}
	return fmt.Sprintf("api returned status %d: %s", e.Code, e.Message)
}

// Client talks to the daemon HTTP API.
type Client struct {
	base  *url.URL
	token string
	http  *http.Client
}

// NewClient builds a client for bind, which may omit the scheme. An empty
// bind yields a nil client whose methods return ErrAPIUnavailable.
func NewClient(bind, token string) (*Client, error) {
	bind = strings.TrimSpace(bind)
	if bind == "" {
		return nil, nil
	}
	if !strings.Contains(bind, "://") {
		bind = "http://" + bind
	}
	base, err := url.Parse(bind)
	if err != nil {
		return nil, err
	}
	base.Path = ""
	base.RawQuery = ""
	base.Fragment = ""

	return &Client{
		base:  base,
		token: strings.TrimSpace(token),
		http:  &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// Status fetches daemon health.
func (c *Client) Status(ctx context.Context) (DaemonStatus, error) {
	var out DaemonStatus
	err := c.do(ctx, http.MethodGet, "/api/status", nil, nil, &out)
	return out, err
}

// ListJobs returns recent jobs, newest first. limit <= 0 uses the server default.
func (c *Client) ListJobs(ctx context.Context, limit int) ([]Job, error) {
	values := url.Values{}
	if limit > 0 {
		values.Set("limit", strconv.Itoa(limit))
	}
	var out JobListResponse
	if err := c.do(ctx, http.MethodGet, "/api/jobs", values, nil, &out); err != nil {
		return nil, err
	}
	return out.Jobs, nil
}

// GetJob fetches one job with its segments.
func (c *Client) GetJob(ctx context.Context, jobID string) (Job, error) {
	var out Job
	err := c.do(ctx, http.MethodGet, "/api/jobs/"+url.PathEscape(jobID), nil, nil, &out)
	return out, err
}

// Submit creates a job and starts it asynchronously.
func (c *Client) Submit(ctx context.Context, req SubmitRequest) (SubmitResponse, error) {
	var out SubmitResponse
	err := c.do(ctx, http.MethodPost, "/api/jobs", nil, req, &out)
	return out, err
}

// Cancel stops a job.
func (c *Client) Cancel(ctx context.Context, jobID string) (CancelResponse, error) {
	var out CancelResponse
	err := c.do(ctx, http.MethodPost, "/api/jobs/"+url.PathEscape(jobID)+"/cancel", nil, nil, &out)
	return out, err
}

// Retry resets one failed segment, or every failed segment when index < 0.
func (c *Client) Retry(ctx context.Context, jobID string, index int) (RetryResponse, error) {
	path := "/api/jobs/" + url.PathEscape(jobID) + "/retry"
	if index >= 0 {
		path = "/api/jobs/" + url.PathEscape(jobID) + "/segments/" + strconv.Itoa(index) + "/retry"
	}
	var out RetryResponse
	err := c.do(ctx, http.MethodPost, path, nil, nil, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	if c == nil {
		return ErrAPIUnavailable
	}
	endpoint := c.base.ResolveReference(&url.URL{Path: path, RawQuery: query.Encode()})

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		statusErr := &StatusError{Code: resp.StatusCode}
		var payload ErrorResponse
		if json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&payload) == nil {
			statusErr.Message = payload.Error
			statusErr.Kind = payload.Kind
		}
		return statusErr
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// IsAPIUnavailable reports whether err means the daemon could not be reached.
func IsAPIUnavailable(err error) bool {
	if err == nil {
		return false
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		err = urlErr.Err
	}
	var opErr *net.OpError
	return errors.Is(err, ErrAPIUnavailable) || errors.As(err, &opErr)
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.Code == code
}
