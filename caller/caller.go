// Package caller issues single HTTP calls for apitest, retrying GET calls
// that hit a read timeout.
package caller

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/phux/apiunit/internal/logger"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	// MaxAttempts includes the initial attempt.
	MaxAttempts = 3

	baseTimeout   = 10 * time.Second
	timeoutFactor = 5

	// DefaultConnectTimeout and DefaultReadTimeout are 50s each.
	DefaultConnectTimeout = timeoutFactor * baseTimeout
	DefaultReadTimeout    = timeoutFactor * baseTimeout

	RequestIDHeader = "X-Request-ID"
)

var allowedMethods = map[string]bool{
	http.MethodGet:    true,
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodPatch:  true,
	http.MethodDelete: true,
}

type limiter interface {
	Wait(context.Context) error
}

// Call describes one request. The zero values of NoRedirects and
// SkipTLSVerify follow redirects and verify certificates.
type Call struct {
	Method        string
	URL           string
	Headers       map[string]string
	Body          any
	NoRedirects   bool
	SkipTLSVerify bool
}

type Caller struct {
	connectTimeout time.Duration
	readTimeout    time.Duration
	skipTLSVerify  bool
	transport      http.RoundTripper
	limiter        limiter
	log            *logrus.Entry

	mu         sync.Mutex
	transports map[bool]*http.Transport
}

type Option func(*Caller)

// WithTimeouts overrides the connect and read timeouts.
func WithTimeouts(connect, read time.Duration) Option {
	return func(c *Caller) {
		c.connectTimeout = connect
		c.readTimeout = read
	}
}

// WithSkipTLSVerify disables certificate verification for every call,
// whatever the per-call flag says.
func WithSkipTLSVerify(skip bool) Option {
	return func(c *Caller) {
		c.skipTLSVerify = skip
	}
}

// WithTransport replaces the transport. Connect, header and TLS settings are
// then the transport's responsibility; the body read timeout still applies.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Caller) {
		c.transport = rt
	}
}

// WithRateLimit caps outgoing attempts per second. Zero or less means unlimited.
func WithRateLimit(perSecond float64) Option {
	return func(c *Caller) {
		if perSecond <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)

			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
}

func WithLogger(log *logrus.Entry) Option {
	return func(c *Caller) {
		c.log = log
	}
}

func New(opts ...Option) *Caller {
	c := &Caller{
		connectTimeout: DefaultConnectTimeout,
		readTimeout:    DefaultReadTimeout,
		limiter:        rate.NewLimiter(rate.Inf, 1),
		log:            logrus.NewEntry(logger.Logger()),
		transports:     map[bool]*http.Transport{},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Do performs call. A read timeout on a GET is retried up to MaxAttempts
// attempts in total; every other error is returned at once. Responses are
// returned whatever their status code.
func (c *Caller) Do(ctx context.Context, call Call) (*Response, error) {
	method := strings.ToUpper(call.Method)
	if !allowedMethods[method] {
		return nil, fmt.Errorf("%w: unsupported method %q", ErrInvalidCall, call.Method)
	}

	body, isJSON, err := encodeBody(call.Body)
	if err != nil {
		return nil, err
	}

	headers := make(map[string]string, len(call.Headers)+2)
	for key, value := range call.Headers {
		headers[key] = value
	}
	if isJSON {
		for key := range headers {
			if strings.EqualFold(key, "Content-Type") {
				delete(headers, key)
			}
		}
		headers["Content-Type"] = contentTypeJSON
	}
	if _, ok := lookupHeader(headers, RequestIDHeader); !ok {
		headers[RequestIDHeader] = uuid.NewString()
	}

	client := &http.Client{
		Transport: c.roundTripper(c.skipTLSVerify || call.SkipTLSVerify),
	}
	if call.NoRedirects {
		client.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	log := c.log.WithFields(logrus.Fields{
		"method":    method,
		"url":       call.URL,
		"requestId": headers[RequestIDHeader],
	})
	if len(body) > 0 {
		log.WithField("body", string(body)).Debug("request body")
	}

	var lastErr error
	for attempt := 1; attempt <= MaxAttempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("error while rate limiting: %w", err)
		}

		log.WithField("attempt", attempt).Infof("calling %s %s", method, call.URL)

		res, err := c.attempt(ctx, client, method, call.URL, headers, body)
		if err == nil {
			return res, nil
		}
		lastErr = err

		if !IsReadTimeout(err) || ctx.Err() != nil {
			return nil, err
		}

		log.WithError(err).Warn("read timeout")
		if method != http.MethodGet {
			log.Info("not a GET, not retrying")

			return nil, err
		}
		if attempt < MaxAttempts {
			log.Warn("call was a GET, retrying")
		}
	}

	return nil, lastErr
}

func (c *Caller) attempt(
	ctx context.Context,
	client *http.Client,
	method, url string,
	headers map[string]string,
	body []byte,
) (*Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("%w: could not create request: %s", ErrInvalidCall, err)
	}

	for key, value := range headers {
		req.Header.Set(key, value)
	}

	res, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	watched := watchBody(res.Body, c.readTimeout, cancel)
	data, err := io.ReadAll(watched)
	watched.stop()
	if err != nil {
		if watched.stalled.Load() {
			return nil, &bodyTimeoutError{url: url}
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("could not read response body: %w", ctxErr)
		}

		return nil, err
	}

	finalURL := req.URL
	if res.Request != nil && res.Request.URL != nil {
		finalURL = res.Request.URL
	}

	return &Response{
		StatusCode: res.StatusCode,
		Header:     res.Header,
		Body:       data,
		URL:        finalURL,
	}, nil
}

// roundTripper picks the transport for one call. When something other than a
// *http.Transport has been installed as http.DefaultTransport (an HTTP mock,
// for instance) it is used as-is.
func (c *Caller) roundTripper(skipTLSVerify bool) http.RoundTripper {
	if c.transport != nil {
		return c.transport
	}

	base, ok := http.DefaultTransport.(*http.Transport)
	if !ok {
		return http.DefaultTransport
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if t, ok := c.transports[skipTLSVerify]; ok {
		return t
	}

	t := base.Clone()
	t.DialContext = (&net.Dialer{
		Timeout:   c.connectTimeout,
		KeepAlive: 30 * time.Second,
	}).DialContext
	t.TLSHandshakeTimeout = c.connectTimeout
	t.ResponseHeaderTimeout = c.readTimeout
	if skipTLSVerify {
		t.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: true, //nolint:gosec // opt-in via NO_SSL_CHECK or per call
		}
	}
	c.transports[skipTLSVerify] = t

	return t
}

// CloseIdleConnections releases connections kept by the caller's transports.
func (c *Caller) CloseIdleConnections() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, t := range c.transports {
		t.CloseIdleConnections()
	}
}

func lookupHeader(headers map[string]string, key string) (string, bool) {
	for k, v := range headers {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}

	return "", false
}

// stallWatcher cancels the attempt when no body bytes arrive for timeout.
// The timer restarts on every read that returns data. A timeout of zero or
// less never fires.
type stallWatcher struct {
	r       io.Reader
	timeout time.Duration
	timer   *time.Timer
	stalled atomic.Bool
}

func watchBody(r io.Reader, timeout time.Duration, cancel context.CancelFunc) *stallWatcher {
	w := &stallWatcher{r: r, timeout: timeout}
	if timeout <= 0 {
		return w
	}
	w.timer = time.AfterFunc(timeout, func() {
		w.stalled.Store(true)
		cancel()
	})

	return w
}

func (w *stallWatcher) Read(p []byte) (int, error) {
	n, err := w.r.Read(p)
	if n > 0 && w.timer != nil && !w.stalled.Load() {
		w.timer.Reset(w.timeout)
	}

	return n, err
}

func (w *stallWatcher) stop() {
	if w.timer != nil {
		w.timer.Stop()
	}
}
