package apitest

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/goccy/go-json"
	jd "github.com/josephburnett/jd/lib"
	"github.com/phux/apiunit/caller"
	"github.com/stretchr/testify/require"
)

const contentTypeJSON = "application/json"

var allowedMethods = map[string]bool{
	http.MethodGet:    true,
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodPatch:  true,
	http.MethodDelete: true,
}

// AssertMethodReturnContent calls path and asserts the expected status,
// unless AllowError is set and the response is not a 200. contentType, when
// not empty, is sent as the request Content-Type.
func (s *Suite) AssertMethodReturnContent(
	method, path string,
	body any,
	contentType string,
	opts ...CallOption,
) *caller.Response {
	s.t.Helper()

	return s.methodReturnContent(method, path, body, contentType, newCallConfig(opts))
}

// AssertMethodReturnJSON is AssertMethodReturnContent plus JSON decoding of the body.
func (s *Suite) AssertMethodReturnJSON(method, path string, body any, opts ...CallOption) any {
	s.t.Helper()

	return s.methodReturnJSON(method, path, body, newCallConfig(opts))
}

// AssertMethodReturnDict asserts that every key of kv is in the returned JSON
// object with an equal value. Extra keys in the response are ignored.
func (s *Suite) AssertMethodReturnDict(
	method, path string,
	body any,
	kv map[string]any,
	opts ...CallOption,
) map[string]any {
	s.t.Helper()

	return s.methodReturnDict(method, path, body, kv, newCallConfig(opts))
}

func (s *Suite) methodReturnContent(
	method, path string,
	body any,
	contentType string,
	cfg callConfig,
) *caller.Response {
	s.t.Helper()

	require.Falsef(s.t, s.target.IsZero(), "target host|port undefined (%+v). Did you resolve the target?", s.target)

	return s.callURL(method, s.target.URL(cfg.port, path), body, contentType, cfg)
}

// callURL calls an absolute url and checks the status like methodReturnContent.
func (s *Suite) callURL(
	method, url string,
	body any,
	contentType string,
	cfg callConfig,
) *caller.Response {
	s.t.Helper()

	method = strings.ToUpper(method)
	require.Truef(s.t, allowedMethods[method], "unsupported method %q", method)

	headers := make(map[string]string, len(s.headers)+len(cfg.headers)+2)
	for key, value := range s.headers {
		headers[key] = value
	}
	for key, value := range cfg.headers {
		headers[key] = value
	}
	if contentType != "" {
		headers["Content-Type"] = contentType
	}
	if cfg.auth != "" {
		headers["Authorization"] = cfg.auth
	}

	s.t.Logf("calling %s %s", method, url)

	res, err := s.caller.Do(context.Background(), caller.Call{
		Method:        method,
		URL:           url,
		Headers:       headers,
		Body:          body,
		NoRedirects:   cfg.noRedirects,
		SkipTLSVerify: cfg.skipTLSVerify,
	})
	require.NoErrorf(s.t, err, "%s %s", method, url)

	if !cfg.quiet {
		s.t.Logf("r: %s", renderBody(res, contentType))
	}

	if cfg.allowError && res.StatusCode != http.StatusOK {
		return res
	}

	require.Equalf(
		s.t,
		cfg.status,
		res.StatusCode,
		"%s %s: unexpected status code: expected %d, got %d; body: %s",
		method,
		url,
		cfg.status,
		res.StatusCode,
		res.Text(),
	)

	return res
}

func (s *Suite) methodReturnJSON(method, path string, body any, cfg callConfig) any {
	s.t.Helper()

	return s.decodeJSON(method, s.methodReturnContent(method, path, body, contentTypeJSON, cfg))
}

func (s *Suite) decodeJSON(method string, res *caller.Response) any {
	s.t.Helper()

	v, err := res.JSON()
	require.NoErrorf(s.t, err, "%s %s", strings.ToUpper(method), res.URL)

	return v
}

func (s *Suite) methodReturnDict(method, path string, body any, kv map[string]any, cfg callConfig) map[string]any {
	s.t.Helper()

	require.NotNil(s.t, kv, "expected key/values must not be nil")

	v := s.methodReturnJSON(method, path, body, cfg)
	obj, ok := v.(map[string]any)
	require.Truef(s.t, ok, "%v: expected a JSON object, got %T: %s", caller.ErrMalformedResponse, v, mustJSON(v))

	for key, want := range kv {
		got, ok := obj[key]
		require.Truef(s.t, ok, "%s in json %s", key, mustJSON(obj))

		diff, err := jsonDiff(want, got)
		require.NoError(s.t, err)
		require.Emptyf(s.t, diff, "json[%q]: expected %s, got %s\n%s", key, mustJSON(want), mustJSON(got), diff)
	}

	return obj
}

// assertEmptyObject fails unless v is exactly {}.
func (s *Suite) assertEmptyObject(v any) {
	s.t.Helper()

	diff, err := jsonDiff(map[string]any{}, v)
	require.NoError(s.t, err)
	require.Emptyf(s.t, diff, "expected an empty JSON object, got %s\n%s", mustJSON(v), diff)
}

// jsonDiff renders the structural difference between two JSON-encodable values.
// Numbers compare by value, so 401 and 401.0 are equal.
func jsonDiff(expected, actual any) (string, error) {
	a, err := json.Marshal(expected)
	if err != nil {
		return "", fmt.Errorf("could not encode expected value: %w", err)
	}
	b, err := json.Marshal(actual)
	if err != nil {
		return "", fmt.Errorf("could not encode actual value: %w", err)
	}

	first, err := jd.ReadJsonString(string(a))
	if err != nil {
		return "", fmt.Errorf("could not read expected value: %w", err)
	}
	second, err := jd.ReadJsonString(string(b))
	if err != nil {
		return "", fmt.Errorf("could not read actual value: %w", err)
	}

	return first.Diff(second).Render(), nil
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}

	return string(b)
}

func renderBody(res *caller.Response, contentType string) string {
	if contentType != contentTypeJSON {
		return res.Text()
	}

	var out bytes.Buffer
	if err := json.Indent(&out, res.Body, "", "    "); err != nil {
		return res.Text()
	}

	return out.String()
}
