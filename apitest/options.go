package apitest

import "net/http"

// CallOption tunes a single assertion call.
type CallOption func(*callConfig)

type callConfig struct {
	status        int
	auth          string
	noRedirects   bool
	skipTLSVerify bool
	port          int
	quiet         bool
	allowError    bool
	headers       map[string]string
}

func newCallConfig(opts []CallOption) callConfig {
	cfg := callConfig{
		status:  http.StatusOK,
		headers: map[string]string{},
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return cfg
}

// WithStatus sets the expected status code. Default: 200.
func WithStatus(status int) CallOption {
	return func(c *callConfig) {
		c.status = status
	}
}

// WithAuth sets the raw Authorization header. An empty value sends none.
func WithAuth(auth string) CallOption {
	return func(c *callConfig) {
		c.auth = auth
	}
}

// WithoutRedirects stops at the first response instead of following redirects.
func WithoutRedirects() CallOption {
	return func(c *callConfig) {
		c.noRedirects = true
	}
}

// WithoutTLSVerify skips certificate verification for this call.
func WithoutTLSVerify() CallOption {
	return func(c *callConfig) {
		c.skipTLSVerify = true
	}
}

// OnPort calls port instead of the target's port.
func OnPort(port int) CallOption {
	return func(c *callConfig) {
		c.port = port
	}
}

// Quiet suppresses logging of the response body.
func Quiet() CallOption {
	return func(c *callConfig) {
		c.quiet = true
	}
}

// AllowError skips the status check when the response is not a 200.
func AllowError() CallOption {
	return func(c *callConfig) {
		c.allowError = true
	}
}

func WithHeader(key, value string) CallOption {
	return func(c *callConfig) {
		c.headers[key] = value
	}
}
