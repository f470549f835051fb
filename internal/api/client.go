// internal/api/client.go
//
// REST backend client.
//
// Context
// -------
// Every record the forms edit lives in the Spring backend.  Client speaks its
// contract: multipart uploads for posts, progress entries, and blogs, JSON for
// profiles and learning plans, and owner-scoped read and delete endpoints.
// Client implements form.Backend so a controller can drive it directly.
//
// Workflow
// --------
//   - New builds a pooled go-cleanhttp client with a per-request timeout.
//   - Submit encodes a form.Submission (payload.go) and decodes the Receipt.
//   - Fetch and List decode server records onto draft field names
//     (records.go).  Concurrent Fetches for the same record share one request
//     through singleflight.
//   - Non-2xx responses become *Error carrying the server’s message.
//
// Notes
// -----
// • Oxford commas, two spaces after periods.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/yanizio/studyhub/internal/form"
	"github.com/yanizio/studyhub/internal/metrics"
)

// maxBody caps how much of a response is read.
const maxBody = 1 << 20

// ErrNotFound matches a 404 from any endpoint via errors.Is.
var ErrNotFound = errors.New("api: record not found")

// Error is a non-2xx backend response.
type Error struct {
	Op      string
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api %s: status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("api %s: status %d: %s", e.Op, e.Status, e.Message)
}

// UserMessage exposes the server’s text to form.SubmitError.
func (e *Error) UserMessage() string { return e.Message }

// Is lets errors.Is(err, ErrNotFound) match 404 responses.
func (e *Error) Is(target error) bool { return target == ErrNotFound && e.Status == http.StatusNotFound }

// Client talks to the REST backend.  It is safe for concurrent use.
type Client struct {
	base *url.URL
	hc   *http.Client
	log  *zap.SugaredLogger
	sf   singleflight.Group
}

// New returns a Client for baseURL.  timeout bounds every request on top of
// any context deadline.
func New(baseURL string, timeout time.Duration, log *zap.SugaredLogger) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("api: parse base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("api: base URL %q must be http or https", baseURL)
	}
	if log == nil {
		log = zap.S()
	}
	hc := cleanhttp.DefaultPooledClient()
	hc.Timeout = timeout
	return &Client{base: u, hc: hc, log: log}, nil
}

var _ form.Backend = (*Client)(nil)

// -----------------------------------------------------------------------------
// form.Backend
// -----------------------------------------------------------------------------

// Submit sends a create or update.
func (c *Client) Submit(ctx context.Context, sub form.Submission) (form.Receipt, error) {
	req, err := c.encode(ctx, sub)
	if err != nil {
		return form.Receipt{}, err
	}
	body, err := c.do(req, sub.Mode.String(), sub.Kind)
	if err != nil {
		return form.Receipt{}, err
	}
	return parseReceipt(body), nil
}

// Fetch loads one record.  actorID scopes the lookup where the backend
// requires it.
func (c *Client) Fetch(ctx context.Context, kind form.Kind, id, actorID string) (form.Snapshot, error) {
	key := string(kind) + "/" + id + "/" + actorID
	v, err, _ := c.sf.Do(key, func() (any, error) {
		path, q, err := getRoute(kind, id, actorID)
		if err != nil {
			return nil, err
		}
		req, err := c.newRequest(ctx, http.MethodGet, path, q, nil)
		if err != nil {
			return nil, err
		}
		body, err := c.do(req, "fetch", kind)
		if err != nil {
			return nil, err
		}
		return decodeRecord(kind, body)
	})
	if err != nil {
		return form.Snapshot{}, err
	}
	return v.(form.Snapshot), nil
}

// Delete removes one record.
func (c *Client) Delete(ctx context.Context, kind form.Kind, id, actorID string) (form.Receipt, error) {
	path, q, err := deleteRoute(kind, id, actorID)
	if err != nil {
		return form.Receipt{}, err
	}
	req, err := c.newRequest(ctx, http.MethodDelete, path, q, nil)
	if err != nil {
		return form.Receipt{}, err
	}
	body, err := c.do(req, "delete", kind)
	if err != nil {
		return form.Receipt{}, err
	}
	return parseReceipt(body), nil
}

// List returns the actor’s records of kind.
func (c *Client) List(ctx context.Context, kind form.Kind, actorID string) ([]form.Snapshot, error) {
	path, q, err := listRoute(kind, actorID)
	if err != nil {
		return nil, err
	}
	req, err := c.newRequest(ctx, http.MethodGet, path, q, nil)
	if err != nil {
		return nil, err
	}
	body, err := c.do(req, "list", kind)
	if err != nil {
		return nil, err
	}
	return decodeList(kind, body)
}

// -----------------------------------------------------------------------------
// Login
// -----------------------------------------------------------------------------

type loginResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	ID      string `json:"id"`
}

// Login exchanges credentials for the actor id.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	payload, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return "", err
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/login", nil, strings.NewReader(string(payload)))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	body, err := c.do(req, "login", "")
	if err != nil {
		return "", err
	}
	var lr loginResponse
	if err := json.Unmarshal(body, &lr); err != nil {
		return "", fmt.Errorf("api login: decode: %w", err)
	}
	if !lr.Success || lr.ID == "" {
		msg := lr.Message
		if msg == "" {
			msg = "Invalid credentials"
		}
		return "", &Error{Op: "login", Status: http.StatusUnauthorized, Message: msg}
	}
	return lr.ID, nil
}

// -----------------------------------------------------------------------------
// Transport helpers
// -----------------------------------------------------------------------------

func (c *Client) newRequest(ctx context.Context, method, path string, q url.Values, body io.Reader) (*http.Request, error) {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + path
	if len(q) > 0 {
		u.RawQuery = q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("api: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// do executes req and returns the body of a 2xx response.
func (c *Client) do(req *http.Request, op string, kind form.Kind) ([]byte, error) {
	start := time.Now()
	resp, err := c.hc.Do(req)
	metrics.BackendRequestSeconds.WithLabelValues(op, string(kind)).Observe(time.Since(start).Seconds())
	if err != nil {
		c.log.Warnw("backend request failed", "op", op, "kind", kind, "url", req.URL.String(), "error", err)
		return nil, fmt.Errorf("api %s: %w", op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("api %s: read body: %w", op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		e := &Error{Op: op, Status: resp.StatusCode, Message: errorMessage(body)}
		c.log.Infow("backend rejected request",
			"op", op, "kind", kind, "status", resp.StatusCode, "message", e.Message)
		return nil, e
	}
	c.log.Debugw("backend request", "op", op, "kind", kind, "status", resp.StatusCode,
		"elapsed", time.Since(start))
	return body, nil
}

// errorMessage extracts a user-facing message from an error body: the
// `error` or `message` key of a JSON object, or short plain text.
func errorMessage(body []byte) string {
	var obj map[string]any
	if json.Unmarshal(body, &obj) == nil {
		for _, k := range []string{"error", "message"} {
			if s, ok := obj[k].(string); ok && strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s)
			}
		}
		return ""
	}
	text := strings.TrimSpace(string(body))
	if text == "" || len(text) > 300 || strings.HasPrefix(text, "<") {
		return ""
	}
	return text
}

// parseReceipt reads an id and message from a success body.  Plain-text
// bodies become the message.
func parseReceipt(body []byte) form.Receipt {
	var obj map[string]any
	dec := json.NewDecoder(strings.NewReader(string(body)))
	dec.UseNumber()
	if err := dec.Decode(&obj); err != nil {
		text := strings.TrimSpace(string(body))
		if len(text) > 300 || strings.HasPrefix(text, "<") || strings.HasPrefix(text, "[") {
			text = ""
		}
		return form.Receipt{Message: text}
	}
	r := form.Receipt{ID: scalar(obj["id"])}
	if m, ok := obj["message"].(string); ok {
		r.Message = m
	}
	return r
}
