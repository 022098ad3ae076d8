package apitest

import (
	"net/http"
	"strings"
	"sync"

	"github.com/stretchr/testify/require"
	"github.com/xeipuuv/gojsonschema"
)

const (
	ErrorAuthorizationHeaderMissing = "AUTHORIZATION_HEADER_MISSING"
	ErrorTokenInvalid               = "TOKEN_INVALID"
)

const versionSchema = `{
	"type": "object",
	"required": ["name", "version"],
	"properties": {
		"name": {"type": "string", "minLength": 1},
		"version": {"type": "string", "minLength": 1},
		"container": {"type": "string"},
		"pym_env": {"type": "string"}
	}
}`

var (
	versionSchemaOnce sync.Once
	versionSchemaC    *gojsonschema.Schema
	versionSchemaErr  error
)

func compiledVersionSchema() (*gojsonschema.Schema, error) {
	versionSchemaOnce.Do(func() {
		versionSchemaC, versionSchemaErr = gojsonschema.NewSchema(gojsonschema.NewStringLoader(versionSchema))
	})

	return versionSchemaC, versionSchemaErr
}

// badAuthCases are Authorization headers /secured/version must reject.
var badAuthCases = []struct {
	header string
	status int
	code   string
}{
	{"", http.StatusUnauthorized, ErrorAuthorizationHeaderMissing},
	{"Bearer1234567890", http.StatusUnauthorized, ErrorTokenInvalid},
	{"bearer foo bar", http.StatusUnauthorized, ErrorTokenInvalid},
	{"Bearer 1234567890", http.StatusUnauthorized, ErrorTokenInvalid},
}

// AssertHasPing expects GET /ping to answer 200 with {}.
func (s *Suite) AssertHasPing(opts ...CallOption) {
	s.t.Helper()

	s.AssertGetReturnOK("ping", opts...)
}

// AssertHasVersion expects GET /version to answer 200 with a version payload.
func (s *Suite) AssertHasVersion(opts ...CallOption) {
	s.t.Helper()

	s.AssertIsVersion(s.AssertGetReturnJSON("version", opts...))
}

// AssertHasAuthVersion checks that /secured/version rejects missing and
// malformed bearer tokens and accepts the target's token.
func (s *Suite) AssertHasAuthVersion(opts ...CallOption) {
	s.t.Helper()

	require.NotEmpty(s.t, s.target.Token, "a bearer token is needed to check secured/version")

	s.AssertGetReturnError("secured/version", http.StatusUnauthorized, ErrorAuthorizationHeaderMissing, opts...)

	for _, tc := range badAuthCases {
		s.log.WithField("authorization", tc.header).Debug("checking rejected token")
		s.AssertGetReturnError(
			"secured/version",
			tc.status,
			tc.code,
			append(opts[:len(opts):len(opts)], WithAuth(tc.header))...,
		)
	}

	j := s.AssertGetReturnJSON(
		"secured/version",
		append(opts[:len(opts):len(opts)], WithAuth(s.target.BearerAuth()))...,
	)
	s.AssertIsVersion(j)
}

// AssertIsVersion fails unless v is an object with string name and version fields.
func (s *Suite) AssertIsVersion(v any) {
	s.t.Helper()

	schema, err := compiledVersionSchema()
	require.NoError(s.t, err)

	result, err := schema.Validate(gojsonschema.NewGoLoader(v))
	require.NoError(s.t, err)

	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		require.Failf(s.t, "not a version payload", "%s: %s", mustJSON(v), strings.Join(msgs, "; "))
	}
}
