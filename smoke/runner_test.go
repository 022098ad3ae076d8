package smoke_test

import (
	"testing"

	"github.com/phux/apiunit/paths"
	"github.com/phux/apiunit/smoke"
	"github.com/phux/apiunit/target"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/h2non/gock.v1"
)

const baseURL = "http://1.2.3.4:8080"

func newRunner(token string) *smoke.Runner {
	return smoke.NewRunner(target.Target{Host: "1.2.3.4", Port: 8080, Token: token}, 0, map[string]string{"X-Client": "apiunit"})
}

func stringPointer(s string) *string {
	return &s
}

func TestRunner_Run_Builtins(t *testing.T) {
	defer gock.Off()

	gock.New(baseURL).Get("/ping").MatchHeader("X-Client", "apiunit").Reply(200).JSON(map[string]any{})
	gock.New(baseURL).Get("/version").Reply(200).JSON(map[string]any{"name": "items"})

	r := newRunner("")
	err := r.Run(smoke.Checks{Ping: true, Version: true}, smoke.Plan{})
	require.NoError(t, err)

	require.Len(t, r.Results.Findings, 1)
	assert.Equal(t, baseURL+"/version", r.Results.Findings[0].URL)
	assert.Contains(t, r.Results.Findings[0].Error, "not a version payload")
	assert.True(t, gock.IsDone())
}

func TestRunner_Run_AuthVersionWithoutToken(t *testing.T) {
	r := newRunner("")
	require.NoError(t, r.Run(smoke.Checks{AuthVersion: true}, smoke.Plan{}))

	require.Len(t, r.Results.Findings, 1)
	assert.Equal(t, baseURL+"/secured/version", r.Results.Findings[0].URL)
}

func TestRunner_Run_ContinuesAfterFailures(t *testing.T) {
	defer gock.Off()

	gock.New(baseURL).Get("/ping").Reply(503).JSON(map[string]any{"status": 503, "error": "DOWN"})
	gock.New(baseURL).Get("/v1/items/1").Reply(200).JSON(map[string]any{"kind": "item", "id": 1})
	gock.New(baseURL).Get("/v1/items/2").Reply(200).JSON(map[string]any{"kind": "user", "id": 2})
	gock.New(baseURL).Get("/v1/items/3").Reply(404).JSON(map[string]any{"status": 404, "error": "NOT_FOUND"})

	r := newRunner("")
	err := r.Run(smoke.Checks{Ping: true}, smoke.Plan{Endpoints: []smoke.Endpoint{
		{
			RelativePath:       "/v1/items/{1-3}",
			ExpectedStatusCode: 200,
			ExpectedBody:       map[string]any{"kind": "item"},
		},
	}})
	require.NoError(t, err)

	require.Len(t, r.Results.Findings, 3)
	assert.Equal(t, baseURL+"/ping", r.Results.Findings[0].URL)
	assert.Contains(t, r.Results.Findings[0].Error, "expected 200, got 503")

	assert.Equal(t, baseURL+"/v1/items/2", r.Results.Findings[1].URL)
	assert.Equal(t, smoke.ErrJSONMismatch.Error(), r.Results.Findings[1].Error)
	assert.Contains(t, r.Results.Findings[1].Diff, `"item"`)
	assert.Contains(t, r.Results.Findings[1].Diff, `"user"`)

	assert.Equal(t, baseURL+"/v1/items/3", r.Results.Findings[2].URL)
	assert.Contains(t, r.Results.Findings[2].Error, "expected 200, got 404")
	assert.True(t, gock.IsDone())
}

func TestRunner_CheckEndpoint(t *testing.T) {
	defer gock.Off()

	gock.New(baseURL).
		Post("/v1/items").
		MatchHeader("X-Tenant", "se").
		MatchHeader("X-Client", "apiunit").
		MatchType("json").
		JSON(map[string]any{"name": "book"}).
		Reply(201).
		JSON(map[string]any{"id": "1", "name": "book"})

	r := newRunner("")
	checked, count, err := r.CheckEndpoint(smoke.Endpoint{
		RelativePath:       "v1/items",
		HTTPMethod:         "post",
		ExpectedStatusCode: 201,
		RequestBody:        map[string]any{"name": "book"},
		RequestHeaders:     map[string]string{"X-Tenant": "se"},
		ExpectedBody:       map[string]any{"name": "book"},
	})

	require.NoError(t, err)
	assert.Equal(t, 1, checked)
	assert.Equal(t, 1, count)
	assert.Empty(t, r.Results.Findings)
	assert.True(t, gock.IsDone())
}

func TestRunner_CheckEndpoint_BodyFile(t *testing.T) {
	defer gock.Off()

	gock.New(baseURL).
		Put("/v1/items/7").
		BodyString(`{"name": "pen"}`).
		Reply(200).
		JSON(map[string]any{})

	r := newRunner("")
	checked, count, err := r.CheckEndpoint(smoke.Endpoint{
		RelativePath:    "/v1/items/7",
		HTTPMethod:      "PUT",
		RequestBodyFile: stringPointer("testdata/item.json"),
	})

	require.NoError(t, err)
	assert.Equal(t, 1, checked)
	assert.Equal(t, 1, count)
	assert.True(t, gock.IsDone())
}

func TestRunner_CheckEndpoint_CustomPattern(t *testing.T) {
	defer gock.Off()

	gock.New(baseURL).Get("/v1/items/3").Reply(200).JSON(map[string]any{})
	gock.New(baseURL).Get("/v1/items/4").Reply(200).JSON(map[string]any{})

	r := newRunner("")
	checked, count, err := r.CheckEndpoint(smoke.Endpoint{
		RelativePath:  "/v1/items/%3,4%",
		PatternPrefix: stringPointer("%"),
		PatternSuffix: stringPointer("%"),
	})

	require.NoError(t, err)
	assert.Equal(t, 2, checked)
	assert.Equal(t, 2, count)
	assert.True(t, gock.IsDone())
}

func TestRunner_CheckEndpoint_Errors(t *testing.T) {
	tests := []struct {
		name     string
		endpoint smoke.Endpoint
		wantErr  error
	}{
		{
			name:     "prefix without suffix",
			endpoint: smoke.Endpoint{RelativePath: "/foo", PatternPrefix: stringPointer("{")},
			wantErr:  smoke.ErrPrefixFilledButSuffixNot,
		},
		{
			name:     "suffix without prefix",
			endpoint: smoke.Endpoint{RelativePath: "/foo", PatternSuffix: stringPointer("}")},
			wantErr:  smoke.ErrSuffixFilledButPrefixNot,
		},
		{
			name:     "descending range",
			endpoint: smoke.Endpoint{RelativePath: "/foo/{3-1}"},
			wantErr:  paths.ErrInvalidRange,
		},
		{
			name:     "missing body file",
			endpoint: smoke.Endpoint{RelativePath: "/foo", RequestBodyFile: stringPointer("testdata/nope.json")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRunner("")

			_, _, err := r.CheckEndpoint(tt.endpoint)

			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			assert.Empty(t, r.Results.Findings)
		})
	}
}

func TestRunner_Run_StopsOnMalformedPlan(t *testing.T) {
	r := newRunner("")

	err := r.Run(smoke.Checks{}, smoke.Plan{Endpoints: []smoke.Endpoint{
		{RelativePath: "/foo", PatternPrefix: stringPointer("{")},
	}})

	assert.ErrorIs(t, err, smoke.ErrPrefixFilledButSuffixNot)
}

func TestRunner_Run_StopsOnInvalidRange(t *testing.T) {
	r := newRunner("")

	err := r.Run(smoke.Checks{}, smoke.Plan{Endpoints: []smoke.Endpoint{
		{RelativePath: "/v1/items/{3-1}"},
	}})

	assert.ErrorIs(t, err, paths.ErrInvalidRange)
	assert.Empty(t, r.Results.Findings)
}

func TestRunner_CheckEndpoint_NotAnObject(t *testing.T) {
	defer gock.Off()

	gock.New(baseURL).Get("/v1/items").Reply(200).JSON([]any{})

	r := newRunner("")
	checked, _, err := r.CheckEndpoint(smoke.Endpoint{
		RelativePath: "/v1/items",
		ExpectedBody: map[string]any{"kind": "item"},
	})

	require.NoError(t, err)
	assert.Equal(t, 0, checked)
	require.Len(t, r.Results.Findings, 1)
	assert.Contains(t, r.Results.Findings[0].Error, smoke.ErrJSONMismatch.Error())
}
