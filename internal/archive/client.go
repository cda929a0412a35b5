// Package archive talks to the ESO dataportal request-handler: batch
// submission, completion polling, and download-script retrieval.
package archive

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/orchestra-survey/harps-pipeline/internal/config"
	"github.com/orchestra-survey/harps-pipeline/internal/retry"
)

// StatusError is a non-success HTTP status from the portal. Submission
// treats it as fatal: resubmitting a half-accepted batch risks duplicate
// requests on the archive side, which is worse than failing loudly.
type StatusError struct {
	Endpoint string
	Code     int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("archive returned %d for %s", e.Code, e.Endpoint)
}

// Client is an ESO dataportal client bound to one archive account.
type Client struct {
	base string
	user string
	hc   *http.Client
	log  *slog.Logger
}

// NewClient creates a dataportal client from configuration.
func NewClient(cfg config.ArchiveConfig) *Client {
	return &Client{
		base: strings.TrimRight(cfg.BaseURL, "/"),
		user: cfg.Username,
		hc:   &http.Client{Timeout: cfg.Timeout},
		log:  slog.With("component", "archive"),
	}
}

// Submit performs the two-step submission of one dataset batch: a
// confirmation POST carrying the identifier list, then a submission POST
// carrying the delivery metadata. It returns the request number assigned
// by the portal.
func (c *Client) Submit(ctx context.Context, datasets []string) (int, error) {
	form := url.Values{}
	for _, ds := range datasets {
		form.Add("dataset", ds)
	}

	if _, err := c.postForm(ctx, c.base+"/rh/confirmation", form); err != nil {
		return 0, fmt.Errorf("confirmation: %w", err)
	}

	// The submission step repeats the dataset list with delivery metadata.
	form.Add("requestDescription", "")
	form.Add("deliveryMediaType", "WEB")
	form.Add("requestCommand", "SELECTIVE_HOTFLY")
	form.Add("submit", "Submit")

	endpoint := fmt.Sprintf("%s/rh/requests/%s/submission", c.base, c.user)
	body, err := c.postForm(ctx, endpoint, form)
	if err != nil {
		return 0, fmt.Errorf("submission: %w", err)
	}

	return ParseRequestNumber(body)
}

// scriptRetryPolicy builds the backoff for download-script GETs. A fresh
// policy per request: the exponential backoff is stateful and must not be
// shared between calls.
var scriptRetryPolicy = func() retry.Policy {
	return retry.Exponential(2*time.Second, 30*time.Second, 5)
}

// FetchPaths retrieves the generated download script for a completed
// request and extracts the remote file paths from it. Transport failures
// are retried with exponential backoff; a script that fetches but does
// not parse is a format change and fails immediately.
func (c *Client) FetchPaths(ctx context.Context, requestNumber int) ([]string, error) {
	endpoint := fmt.Sprintf("%s/rh/requests/%s/%d/script", c.base, c.user, requestNumber)
	policy := scriptRetryPolicy()

	for attempt := 1; ; attempt++ {
		body, err := c.get(ctx, endpoint)
		if err == nil {
			return ParseScriptPaths(body)
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		c.log.Warn("download script fetch failed, will retry",
			"request_number", requestNumber, "error", err)
		if werr := retry.Wait(ctx, policy, attempt); werr != nil {
			return nil, fmt.Errorf("fetch download script: %w", err)
		}
	}
}

func (c *Client) postForm(ctx context.Context, endpoint string, form url.Values) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint,
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	return c.do(req, endpoint)
}

func (c *Client) get(ctx context.Context, endpoint string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	return c.do(req, endpoint)
}

func (c *Client) do(req *http.Request, endpoint string) (string, error) {
	resp, err := c.hc.Do(req)
	if err != nil {
		return "", fmt.Errorf("request %s: %w", endpoint, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response from %s: %w", endpoint, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &StatusError{Endpoint: endpoint, Code: resp.StatusCode}
	}

	return string(body), nil
}
