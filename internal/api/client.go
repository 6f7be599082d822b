package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Error is returned for non-2xx responses.
type Error struct {
	Method     string
	Path       string
	StatusCode int
	Detail     string
}

func (e *Error) Error() string {
	detail := e.Detail
	if detail == "" {
		detail = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, detail)
}

// IsStatus reports whether err is an *Error with the given status code.
func IsStatus(err error, code int) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.StatusCode == code
}

// Client talks to the insights backend.
type Client struct {
	baseURL    string
	http       *http.Client
	limiter    *rate.Limiter
	maxRetries uint64
	retryBase  time.Duration
	logger     logrus.FieldLogger
}

// Option mutates the Client during New().
type Option func(*Client) error

// WithHTTPClient injects a custom *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) error {
		if hc == nil {
			return fmt.Errorf("nil http client")
		}
		c.http = hc
		return nil
	}
}

// WithRateLimit bounds outgoing requests to rps with the given burst.
// rps <= 0 disables limiting.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) error {
		if rps <= 0 {
			c.limiter = nil
			return nil
		}
		if burst <= 0 {
			burst = int(rps)
			if burst < 1 {
				burst = 1
			}
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
		return nil
	}
}

// WithRetry configures retries of idempotent GET requests.
func WithRetry(maxRetries int, base time.Duration) Option {
	return func(c *Client) error {
		if maxRetries < 0 {
			return fmt.Errorf("negative retry count")
		}
		c.maxRetries = uint64(maxRetries)
		if base > 0 {
			c.retryBase = base
		}
		return nil
	}
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Client) error {
		if l != nil {
			c.logger = l.WithField("component", "api")
		}
		return nil
	}
}

// New constructs a Client for baseURL (e.g. http://localhost:8000).
func New(baseURL string, opts ...Option) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("api: base url required")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("api: invalid base url: %w", err)
	}
	discard := logrus.New()
	discard.SetOutput(io.Discard)
	c := &Client{
		baseURL:    base,
		http:       &http.Client{Timeout: 60 * time.Second},
		maxRetries: 2,
		retryBase:  250 * time.Millisecond,
		logger:     discard,
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// BaseURL returns the configured backend root.
func (c *Client) BaseURL() string { return c.baseURL }

// ListReports returns every report (GET /api/reports).
func (c *Client) ListReports(ctx context.Context) ([]Report, error) {
	var body struct {
		Reports []Report `json:"reports"`
	}
	if err := c.getJSON(ctx, "/api/reports", &body); err != nil {
		return nil, err
	}
	if body.Reports == nil {
		body.Reports = []Report{}
	}
	return body.Reports, nil
}

// GetReport fetches a single report (GET /api/reports/{id}).
func (c *Client) GetReport(ctx context.Context, id string) (*Report, error) {
	var r Report
	if err := c.getJSON(ctx, "/api/reports/"+url.PathEscape(id), &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// DeleteReport deletes a report (DELETE /api/reports/{id}).
func (c *Client) DeleteReport(ctx context.Context, id string) error {
	resp, err := c.do(ctx, http.MethodDelete, "/api/reports/"+url.PathEscape(id), nil, "")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// UploadReports posts files as multipart field "files". The server processes
// each file independently; the response lists both created reports and
// per-file errors.
func (c *Client) UploadReports(ctx context.Context, files []UploadFile) (*UploadResponse, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("upload: no files")
	}
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, f := range files {
		if err := writeFilePart(mw, f); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("upload: close multipart: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, "/api/reports/upload", &buf, mw.FormDataContentType())
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out UploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("upload: decode response: %w", err)
	}
	if out.Reports == nil {
		out.Reports = []Report{}
	}
	if out.Errors == nil {
		out.Errors = []string{}
	}
	return &out, nil
}

func writeFilePart(mw *multipart.Writer, f UploadFile) error {
	name := f.Name
	if name == "" {
		name = filepath.Base(f.Path)
	}
	mimeType := f.MIME
	if mimeType == "" {
		mimeType = "application/pdf"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="files"; filename="%s"`, escapeQuotes(name)))
	h.Set("Content-Type", mimeType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return fmt.Errorf("upload: create part for %s: %w", name, err)
	}
	src, err := os.Open(f.Path)
	if err != nil {
		return fmt.Errorf("upload: open %s: %w", f.Path, err)
	}
	defer src.Close()
	if _, err := io.Copy(part, src); err != nil {
		return fmt.Errorf("upload: read %s: %w", f.Path, err)
	}
	return nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string { return quoteEscaper.Replace(s) }

// GenerateStoryboard asks the backend to synthesize a storyboard across all
// reports (POST /api/generate-storyboard).
func (c *Client) GenerateStoryboard(ctx context.Context) (*Storyboard, error) {
	var sb Storyboard
	if err := c.postJSON(ctx, "/api/generate-storyboard", nil, "", &sb); err != nil {
		return nil, err
	}
	return &sb, nil
}

// GenerateNarrative returns a markdown narrative for one report.
func (c *Client) GenerateNarrative(ctx context.Context, reportID string) (string, error) {
	var body struct {
		Narrative string `json:"narrative"`
	}
	if err := c.postJSON(ctx, "/api/generate-narrative/"+url.PathEscape(reportID), nil, "", &body); err != nil {
		return "", err
	}
	return body.Narrative, nil
}

// Chat sends one user message about a report and returns the model response.
func (c *Client) Chat(ctx context.Context, reportID, message string) (string, error) {
	form := url.Values{}
	form.Set("message", message)
	var body struct {
		Response string `json:"response"`
	}
	err := c.postJSON(ctx, "/api/chat/"+url.PathEscape(reportID),
		strings.NewReader(form.Encode()), "application/x-www-form-urlencoded", &body)
	if err != nil {
		return "", err
	}
	return body.Response, nil
}

// Timeline returns the highlights timeline.
func (c *Client) Timeline(ctx context.Context) ([]TimelineItem, error) {
	var body struct {
		Timeline []TimelineItem `json:"timeline"`
	}
	if err := c.getJSON(ctx, "/api/timeline", &body); err != nil {
		return nil, err
	}
	if body.Timeline == nil {
		body.Timeline = []TimelineItem{}
	}
	return body.Timeline, nil
}

// Stats returns backend database statistics.
func (c *Client) Stats(ctx context.Context) (*Stats, error) {
	var s Stats
	if err := c.getJSON(ctx, "/api/stats", &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Backup asks the backend to back up its database and returns the server
// message.
func (c *Client) Backup(ctx context.Context) (string, error) {
	var body struct {
		Message string `json:"message"`
	}
	if err := c.postJSON(ctx, "/api/backup", nil, "", &body); err != nil {
		return "", err
	}
	return body.Message, nil
}

// Health returns the backend health report.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var h Health
	if err := c.getJSON(ctx, "/api/health", &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// getJSON performs an idempotent GET, retrying transport errors and 5xx
// responses with exponential backoff.
func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = c.retryBase
	exp.Multiplier = 2
	exp.MaxInterval = 5 * time.Second
	exp.Reset()
	policy := backoff.WithContext(backoff.WithMaxRetries(exp, c.maxRetries), ctx)

	attempt := 0
	op := func() error {
		attempt++
		resp, err := c.do(ctx, http.MethodGet, path, nil, "")
		if err != nil {
			var apiErr *Error
			if errors.As(err, &apiErr) && apiErr.StatusCode < 500 {
				return backoff.Permanent(err)
			}
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			c.logger.WithError(err).WithField("attempt", attempt).Debugf("GET %s failed", path)
			return err
		}
		defer resp.Body.Close()
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return backoff.Permanent(fmt.Errorf("decode %s: %w", path, err))
		}
		return nil
	}
	return backoff.Retry(op, policy)
}

func (c *Client) postJSON(ctx context.Context, path string, body io.Reader, contentType string, out interface{}) error {
	resp, err := c.do(ctx, http.MethodPost, path, body, contentType)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// do sends one request and converts non-2xx responses into *Error. The
// caller owns the returned body.
func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%s %s: rate limit: %w", method, path, err)
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("%s %s: build request: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	c.logger.WithFields(logrus.Fields{
		"method":   method,
		"path":     path,
		"status":   resp.StatusCode,
		"duration": time.Since(start).String(),
	}).Debug("request complete")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, &Error{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Detail:     readDetail(resp.Body),
		}
	}
	return resp, nil
}

// readDetail extracts FastAPI-style {"detail": "..."} bodies, falling back to
// the raw text.
func readDetail(r io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(r, 64*1024))
	if err != nil || len(raw) == 0 {
		return ""
	}
	var body struct {
		Detail interface{} `json:"detail"`
		Error  string      `json:"error"`
	}
	if json.Unmarshal(raw, &body) == nil {
		switch d := body.Detail.(type) {
		case string:
			if d != "" {
				return d
			}
		case nil:
		default:
			if b, err := json.Marshal(d); err == nil {
				return string(b)
			}
		}
		if body.Error != "" {
			return body.Error
		}
	}
	return strings.TrimSpace(string(raw))
}
