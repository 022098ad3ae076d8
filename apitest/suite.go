// Package apitest provides assertion helpers for exercising HTTP/JSON APIs
// from tests.
//
// A Suite wraps a resolved target.Target and a TestingT. Each Assert* helper
// issues one call, fails the test when the status or payload does not match,
// and returns the decoded content:
//
//	func TestItems(t *testing.T) {
//		s := apitest.FromSource(t, target.CurrentEnv())
//		s.AssertHasPing()
//		item := s.AssertPostReturnDict("v1/items", map[string]any{"name": "x"}, map[string]any{"name": "x"})
//		s.AssertGetReturnError("v1/items/unknown", 404, "NOT_FOUND")
//	}
package apitest

import (
	"github.com/phux/apiunit/apis"
	"github.com/phux/apiunit/caller"
	"github.com/phux/apiunit/internal/logger"
	"github.com/phux/apiunit/target"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

// TestingT is the subset of *testing.T the helpers need.
type TestingT interface {
	Errorf(format string, args ...any)
	FailNow()
	Helper()
	Logf(format string, args ...any)
}

type Suite struct {
	t       TestingT
	target  target.Target
	caller  *caller.Caller
	headers map[string]string
	apis    *apis.Registry
	log     *logrus.Entry
}

type Option func(*suiteConfig)

type suiteConfig struct {
	callerOpts []caller.Option
	headers    map[string]string
	registry   *apis.Registry
	log        *logrus.Entry
}

// WithCallerOptions passes options to the underlying caller.Caller.
func WithCallerOptions(opts ...caller.Option) Option {
	return func(c *suiteConfig) {
		c.callerOpts = append(c.callerOpts, opts...)
	}
}

// WithHeaders adds headers to every call of the suite.
func WithHeaders(headers map[string]string) Option {
	return func(c *suiteConfig) {
		for key, value := range headers {
			c.headers[key] = value
		}
	}
}

// WithRegistry sets where LoadAPI finds API descriptions. apis.Default is used otherwise.
func WithRegistry(r *apis.Registry) Option {
	return func(c *suiteConfig) {
		c.registry = r
	}
}

func WithLogger(log *logrus.Entry) Option {
	return func(c *suiteConfig) {
		c.log = log
	}
}

// New returns a Suite for tgt. The target's SkipTLSVerify applies to every call.
func New(t TestingT, tgt target.Target, opts ...Option) *Suite {
	cfg := suiteConfig{
		headers:  map[string]string{},
		registry: apis.Default,
		log:      logrus.NewEntry(logger.Logger()),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	log := cfg.log.WithField("target", tgt.String())
	callerOpts := append([]caller.Option{
		caller.WithSkipTLSVerify(tgt.SkipTLSVerify),
		caller.WithLogger(log),
	}, cfg.callerOpts...)

	return &Suite{
		t:       t,
		target:  tgt,
		caller:  caller.New(callerOpts...),
		headers: cfg.headers,
		apis:    cfg.registry,
		log:     log,
	}
}

// FromSource resolves the target from src and fails the test when it cannot.
func FromSource(t TestingT, src target.Source, opts ...Option) *Suite {
	t.Helper()

	tgt, err := target.Resolve(src)
	require.NoError(t, err, "could not resolve the target server")

	return New(t, tgt, opts...)
}

func (s *Suite) Target() target.Target {
	return s.target
}

// Caller exposes the underlying caller for calls the helpers do not cover.
func (s *Suite) Caller() *caller.Caller {
	return s.caller
}
