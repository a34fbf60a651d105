package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"cipherlink/internal/domain"
)

const (
	// RequestIDHeader correlates client requests with server access logs.
	RequestIDHeader = "X-Request-ID"

	maxResponseBytes = 1 << 20
	maxErrorBody     = 512

	defaultPublishRetries = 5
	defaultRetryInterval  = 250 * time.Millisecond
)

// HTTPError is a non-2xx answer from the directory.
type HTTPError struct {
	Method     string
	Path       string
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPError) Error() string {
	msg := fmt.Sprintf("directory %s %s: %s", e.Method, e.Path, e.Status)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// Temporary reports whether retrying the same request may succeed.
func (e *HTTPError) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// Client talks to the key directory over HTTP+JSON.
//
// Publish is idempotent and retried with exponential backoff on network
// errors and 5xx answers. Fetch is never retried: the directory hands out a
// one-time pre-key on every successful fetch, and a retry after a lost
// response would burn another one.
type Client struct {
	base          string
	http          *http.Client
	maxRetries    uint64
	retryInterval time.Duration
	logger        *zap.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces http.DefaultClient.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.http = hc }
}

// WithPublishRetries bounds how many times Publish is retried and the first
// backoff interval. A non-positive initial keeps the default.
func WithPublishRetries(retries uint64, initial time.Duration) ClientOption {
	return func(c *Client) {
		c.maxRetries = retries
		if initial > 0 {
			c.retryInterval = initial
		}
	}
}

// WithLogger sets the client logger.
func WithLogger(l *zap.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

func NewClient(base string, opts ...ClientOption) *Client {
	c := &Client{
		base:          strings.TrimRight(base, "/"),
		http:          http.DefaultClient,
		maxRetries:    defaultPublishRetries,
		retryInterval: defaultRetryInterval,
		logger:        zap.NewNop(),
	}
	for _, o := range opts {
		o(c)
	}
	c.logger = c.logger.With(zap.Namespace("directory"), zap.String("base", c.base))
	return c
}

// Publish uploads the bundle for account. Retrying is safe: the directory
// ignores one-time pre-key ids it has already accepted.
func (c *Client) Publish(ctx context.Context, account domain.AccountID, bundle domain.PublicKeyBundle) error {
	body, err := json.Marshal(bundle)
	if err != nil {
		return err
	}
	path := "/keys/upload/" + url.PathEscape(string(account))

	op := func() error {
		err := c.do(ctx, http.MethodPost, path, body, nil)
		if err == nil {
			return nil
		}
		var he *HTTPError
		if errors.As(err, &he) && !he.Temporary() {
			return backoff.Permanent(err)
		}
		if ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		return err
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = c.retryInterval
	policy := backoff.WithContext(backoff.WithMaxRetries(eb, c.maxRetries), ctx)

	notify := func(err error, next time.Duration) {
		c.logger.Debug("publish failed, retrying",
			zap.Stringer("account", account),
			zap.Duration("backoff", next),
			zap.Error(err))
	}
	return backoff.RetryNotify(op, policy, notify)
}

// Fetch returns account's bundle with at most one one-time pre-key.
// A 404 maps to domain.ErrPeerNotFound.
func (c *Client) Fetch(ctx context.Context, account domain.AccountID) (domain.PublicKeyBundle, error) {
	var out domain.PublicKeyBundle
	err := c.do(ctx, http.MethodGet, "/keys/"+url.PathEscape(string(account)), nil, &out)
	var he *HTTPError
	if errors.As(err, &he) && he.StatusCode == http.StatusNotFound {
		return domain.PublicKeyBundle{}, fmt.Errorf("%w: %q", domain.ErrPeerNotFound, account)
	}
	if err != nil {
		return domain.PublicKeyBundle{}, err
	}
	// Only the single fetched one-time pre-key is meaningful to the initiator.
	out.OneTimePreKeys = nil
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, in []byte, out any) error {
	var body io.Reader
	if in != nil {
		body = bytes.NewReader(in)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, uuid.NewString())

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("directory %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &HTTPError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       strings.TrimSpace(string(msg)),
		}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return nil
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(out); err != nil {
		return fmt.Errorf("directory %s %s: decode: %w", method, path, err)
	}
	return nil
}

var _ domain.DirectoryClient = (*Client)(nil)
