package apitest

import (
	"net/http"
	"strings"

	"github.com/stretchr/testify/require"
)

const (
	contentTypeHTML = "text/html; charset=utf-8"
	contentTypeText = "text/plain; charset=utf-8"
)

func (s *Suite) AssertGetReturnJSON(path string, opts ...CallOption) any {
	s.t.Helper()

	return s.methodReturnJSON(http.MethodGet, path, nil, newCallConfig(opts))
}

func (s *Suite) AssertDeleteReturnJSON(path string, opts ...CallOption) any {
	s.t.Helper()

	return s.methodReturnJSON(http.MethodDelete, path, nil, newCallConfig(opts))
}

func (s *Suite) AssertPostReturnJSON(path string, body any, opts ...CallOption) any {
	s.t.Helper()

	return s.methodReturnJSON(http.MethodPost, path, body, newCallConfig(opts))
}

func (s *Suite) AssertGetReturnDict(path string, kv map[string]any, opts ...CallOption) map[string]any {
	s.t.Helper()

	return s.methodReturnDict(http.MethodGet, path, nil, kv, newCallConfig(opts))
}

func (s *Suite) AssertPostReturnDict(path string, body any, kv map[string]any, opts ...CallOption) map[string]any {
	s.t.Helper()

	return s.methodReturnDict(http.MethodPost, path, body, kv, newCallConfig(opts))
}

// AssertGetReturnOK expects a 200 with an empty JSON object.
func (s *Suite) AssertGetReturnOK(path string, opts ...CallOption) {
	s.t.Helper()

	s.AssertCallReturnOK(http.MethodGet, path, nil, opts...)
}

// AssertPostReturnOK expects a 200 with an empty JSON object.
func (s *Suite) AssertPostReturnOK(path string, body any, opts ...CallOption) {
	s.t.Helper()

	s.AssertCallReturnOK(http.MethodPost, path, body, opts...)
}

// AssertGetReturnError expects status and a {"status": status, "error": code} body.
func (s *Suite) AssertGetReturnError(path string, status int, code string, opts ...CallOption) map[string]any {
	s.t.Helper()

	return s.AssertCallReturnError(http.MethodGet, path, nil, status, code, opts...)
}

func (s *Suite) AssertPostReturnError(path string, body any, status int, code string, opts ...CallOption) map[string]any {
	s.t.Helper()

	return s.AssertCallReturnError(http.MethodPost, path, body, status, code, opts...)
}

func (s *Suite) AssertCallReturnJSON(method, path string, body any, opts ...CallOption) any {
	s.t.Helper()

	return s.methodReturnJSON(method, path, body, newCallConfig(opts))
}

func (s *Suite) AssertCallReturnDict(method, path string, body any, kv map[string]any, opts ...CallOption) map[string]any {
	s.t.Helper()

	return s.methodReturnDict(method, path, body, kv, newCallConfig(opts))
}

// AssertCallReturnOK expects a 200 with an empty JSON object, whatever
// status option was passed.
func (s *Suite) AssertCallReturnOK(method, path string, body any, opts ...CallOption) {
	s.t.Helper()

	cfg := newCallConfig(append(opts[:len(opts):len(opts)], WithStatus(http.StatusOK)))
	s.assertEmptyObject(s.methodReturnJSON(method, path, body, cfg))
}

// AssertCallReturnError expects status and the {"status", "error"} error envelope.
func (s *Suite) AssertCallReturnError(
	method, path string,
	body any,
	status int,
	code string,
	opts ...CallOption,
) map[string]any {
	s.t.Helper()

	cfg := newCallConfig(append(opts[:len(opts):len(opts)], WithStatus(status)))

	return s.methodReturnDict(method, path, body, map[string]any{
		"status": status,
		"error":  code,
	}, cfg)
}

// AssertCallReturnHTML expects a text/html; charset=utf-8 response and returns its body.
func (s *Suite) AssertCallReturnHTML(method, path string, body any, opts ...CallOption) string {
	s.t.Helper()

	return s.callReturnTyped(method, path, body, contentTypeHTML, opts)
}

// AssertCallReturnText expects a text/plain; charset=utf-8 response and returns its body.
func (s *Suite) AssertCallReturnText(method, path string, body any, opts ...CallOption) string {
	s.t.Helper()

	return s.callReturnTyped(method, path, body, contentTypeText, opts)
}

// AssertCallReturnRedirect expects a redirect (302 unless WithStatus says
// otherwise), does not follow it, and returns the resolved target URL.
func (s *Suite) AssertCallReturnRedirect(method, path string, body any, opts ...CallOption) string {
	s.t.Helper()

	opts = append([]CallOption{WithStatus(http.StatusFound), WithoutRedirects()}, opts...)
	res := s.methodReturnContent(method, path, body, "", newCallConfig(opts))

	require.Truef(s.t, res.IsRedirect(), "expected a redirect, got %d with Location %q", res.StatusCode, res.Header.Get("Location"))

	location, err := res.Location()
	require.NoError(s.t, err)

	return location
}

func (s *Suite) callReturnTyped(method, path string, body any, contentType string, opts []CallOption) string {
	s.t.Helper()

	res := s.methodReturnContent(method, path, body, "", newCallConfig(opts))

	got := res.ContentType()
	require.Truef(
		s.t,
		strings.EqualFold(got, contentType),
		"expected Content-Type %q, got %q",
		contentType,
		got,
	)

	return res.Text()
}
