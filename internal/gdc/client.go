// Package gdc is a client for the open-access endpoints of the GDC API.
package gdc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// DefaultBaseURL is the public GDC API.
const DefaultBaseURL = "https://api.gdc.cancer.gov"

const (
	defaultTimeout       = 30 * time.Second
	defaultStatusTimeout = 10 * time.Second
	defaultChunkSize     = 8192
)

var (
	// ErrStatus is returned when the API status endpoint is unreachable or unhealthy.
	ErrStatus = errors.New("GDC API unavailable")
	// ErrIdleTimeout is returned when a download receives no data for longer
	// than the client timeout.
	ErrIdleTimeout = errors.New("download stalled")
)

// HTTPError is returned for a non-2xx response.
type HTTPError struct {
	StatusCode int
	URL        string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("GET %s: %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// Temporary reports whether the request may succeed if retried.
func (e *HTTPError) Temporary() bool {
	return e.StatusCode == http.StatusRequestTimeout ||
		e.StatusCode == http.StatusTooManyRequests ||
		e.StatusCode >= http.StatusInternalServerError
}

// Status is the body of GET /status.
type Status struct {
	Commit      string `json:"commit"`
	DataRelease string `json:"data_release"`
	Status      string `json:"status"`
	Tag         string `json:"tag"`
	Version     int    `json:"version"`
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	userAgent  string
	chunkSize  int
}

type Option func(*Client)

// WithBaseURL overrides DefaultBaseURL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithHTTPClient replaces the HTTP client and its transport timeouts. The
// idle timeout of Download still applies.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithTimeout bounds connecting, waiting for the response headers and every
// pause between two reads of a download body. A download that keeps
// receiving data is never cut. Zero means no limit.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
	}
}

func WithUserAgent(userAgent string) Option {
	return func(c *Client) {
		c.userAgent = userAgent
	}
}

// WithChunkSize sets the copy buffer used by Download.
func WithChunkSize(size int) Option {
	return func(c *Client) {
		if size > 0 {
			c.chunkSize = size
		}
	}
}

func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:   DefaultBaseURL,
		timeout:   defaultTimeout,
		userAgent: "gdcpq",
		chunkSize: defaultChunkSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = newHTTPClient(c.timeout)
	}

	return c
}

// newHTTPClient has no overall deadline, so large files can take as long as
// they need.
func newHTTPClient(timeout time.Duration) *http.Client {
	transport, _ := http.DefaultTransport.(*http.Transport)
	transport = transport.Clone()
	if timeout > 0 {
		transport.DialContext = (&net.Dialer{Timeout: timeout, KeepAlive: 30 * time.Second}).DialContext
		transport.TLSHandshakeTimeout = timeout
		transport.ResponseHeaderTimeout = timeout
	}

	return &http.Client{Transport: transport}
}

func (c *Client) get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, http.NoBody)
	if err != nil {
		return nil, errors.Wrap(err, "unable to create request")
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to get %s", path)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// drain so that the connection can be reused
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()

		return nil, &HTTPError{StatusCode: resp.StatusCode, URL: req.URL.String()}
	}

	return resp, nil
}

// Status checks that the API answers. Any failure wraps ErrStatus.
func (c *Client) Status(ctx context.Context) (*Status, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultStatusTimeout)
	defer cancel()

	resp, err := c.get(ctx, "/status")
	if err != nil {
		return nil, errors.Wrap(ErrStatus, err.Error())
	}
	defer resp.Body.Close()

	status := &Status{}
	err = json.NewDecoder(resp.Body).Decode(status)
	if err != nil {
		return nil, errors.Wrapf(ErrStatus, "unable to decode status: %s", err)
	}

	return status, nil
}

// idleReader pushes back the watchdog timer every time data arrives.
type idleReader struct {
	r       io.Reader
	timer   *time.Timer
	timeout time.Duration
}

func (r *idleReader) Read(p []byte) (int, error) {
	n, err := r.r.Read(p)
	if n > 0 {
		r.timer.Reset(r.timeout)
	}

	return n, err
}

// Download streams the file fileID into w and returns the number of bytes
// written. It fails with ErrIdleTimeout when no data arrives for longer than
// the client timeout.
func (c *Client) Download(ctx context.Context, fileID string, w io.Writer) (int64, error) {
	var timer *time.Timer
	if c.timeout > 0 {
		var cancel context.CancelCauseFunc
		ctx, cancel = context.WithCancelCause(ctx)
		defer cancel(nil)

		timer = time.AfterFunc(c.timeout, func() { cancel(ErrIdleTimeout) })
		defer timer.Stop()
	}

	resp, err := c.get(ctx, "/data/"+url.PathEscape(fileID))
	if err != nil {
		return 0, stalled(ctx, err)
	}
	defer resp.Body.Close()

	var body io.Reader = resp.Body
	if timer != nil {
		timer.Reset(c.timeout)
		body = &idleReader{r: resp.Body, timer: timer, timeout: c.timeout}
	}

	n, err := io.CopyBuffer(w, body, make([]byte, c.chunkSize))
	if err != nil {
		return n, errors.Wrapf(stalled(ctx, err), "unable to read file %s", fileID)
	}

	return n, nil
}

// stalled replaces err with ErrIdleTimeout when the watchdog cancelled ctx.
func stalled(ctx context.Context, err error) error {
	if errors.Is(context.Cause(ctx), ErrIdleTimeout) {
		return errors.Wrap(ErrIdleTimeout, err.Error())
	}

	return err
}
