package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"noe/internal/infra/obs"
)

const defaultTimeout = 5 * time.Second

// ErrUnauthorized matches any *Error carrying a 401 status.
var ErrUnauthorized = errors.New("api: unauthorized")

// Config defines REST client settings.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// TokenSource yields the bearer token attached to every request.
// An empty token sends the request anonymously.
type TokenSource interface {
	Token() string
}

// StaticToken is a fixed TokenSource.
type StaticToken string

func (t StaticToken) Token() string { return string(t) }

// Client wraps the marketplace REST backend.
type Client struct {
	baseURL     string
	http        *http.Client
	tokens      TokenSource
	callTimeout time.Duration
	logger      *slog.Logger
}

// Error is returned when the backend answers with an unexpected status.
type Error struct {
	Op        string
	Status    int
	Message   string
	RequestID string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api: %s: status %d: %s", e.Op, e.Status, e.Message)
	}
	return fmt.Sprintf("api: %s: status %d", e.Op, e.Status)
}

func (e *Error) Is(target error) bool {
	return target == ErrUnauthorized && e.Status == http.StatusUnauthorized
}

// NewClient builds a client. No request is ever retried.
func NewClient(cfg Config, tokens TokenSource, logger *slog.Logger) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("api: base url required")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("api: invalid base url: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if tokens == nil {
		tokens = StaticToken("")
	}
	if logger == nil {
		logger = obs.Discard()
	}
	return &Client{
		baseURL:     base,
		http:        &http.Client{},
		tokens:      tokens,
		callTimeout: timeout,
		logger:      logger,
	}, nil
}

type request struct {
	op          string
	method      string
	path        string
	query       url.Values
	body        any
	rawBody     io.Reader
	contentType string
	want        int
	// alt is a second accepted status, zero when only want is valid.
	alt int
}

func (c *Client) do(ctx context.Context, req request, out any) error {
	callCtx, cancel := c.wrapCall(ctx)
	defer cancel()

	target := c.baseURL + req.path
	if len(req.query) > 0 {
		target += "?" + req.query.Encode()
	}

	var body io.Reader
	contentType := req.contentType
	switch {
	case req.rawBody != nil:
		body = req.rawBody
	case req.body != nil:
		payload, err := json.Marshal(req.body)
		if err != nil {
			return fmt.Errorf("api: %s: encode request: %w", req.op, err)
		}
		body = bytes.NewReader(payload)
		contentType = "application/json"
	}

	httpReq, err := http.NewRequestWithContext(callCtx, req.method, target, body)
	if err != nil {
		return fmt.Errorf("api: %s: build request: %w", req.op, err)
	}
	requestID := obs.RequestIDFromContext(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	httpReq.Header.Set(obs.HeaderRequestID, requestID)
	httpReq.Header.Set("Accept", "application/json")
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	if token := c.tokens.Token(); token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.logger.Warn("api request failed", "op", req.op, "error", err, "request_id", requestID)
		return fmt.Errorf("api: %s: %w", req.op, err)
	}
	defer resp.Body.Close()
	c.logger.Debug("api request", "op", req.op, "method", req.method, "path", req.path, "status", resp.StatusCode, "duration", time.Since(start), "request_id", requestID)

	if resp.StatusCode != req.want && (req.alt == 0 || resp.StatusCode != req.alt) {
		return &Error{
			Op:        req.op,
			Status:    resp.StatusCode,
			Message:   readErrorMessage(resp.Body),
			RequestID: requestID,
		}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("api: %s: read response: %w", req.op, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("api: %s: decode response: %w", req.op, err)
	}
	return nil
}

func (c *Client) wrapCall(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	timeout := c.callTimeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return context.WithTimeout(ctx, timeout)
}

func readErrorMessage(r io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(r, 4096))
	var payload struct {
		Message json.RawMessage `json:"message"`
		Error   string          `json:"error"`
	}
	if err := json.Unmarshal(data, &payload); err == nil {
		var text string
		if json.Unmarshal(payload.Message, &text) == nil && text != "" {
			return text
		}
		var list []string
		if json.Unmarshal(payload.Message, &list) == nil && len(list) > 0 {
			return strings.Join(list, "; ")
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	return strings.TrimSpace(string(data))
}

func pathID(id string) string {
	return url.PathEscape(strings.TrimSpace(id))
}
