package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/goccy/go-json"
	"github.com/phux/apiunit/apis"
	"github.com/phux/apiunit/smoke"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/h2non/gock.v1"
)

const baseURL = "http://1.2.3.4:8080"

func lookupFrom(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]

		return v, ok
	}
}

func currentEnv() map[string]string {
	return map[string]string{
		"PYM_SERVER_HOST": "http://1.2.3.4",
		"PYM_SERVER_PORT": "8080",
		"PYM_JWT_TOKEN":   "secret-token",
	}
}

func mockHealthy() {
	gock.New(baseURL).Get("/ping").Reply(200).JSON(map[string]any{})
	gock.New(baseURL).Get("/version").Reply(200).JSON(map[string]any{"name": "items", "version": "1.0"})
}

func TestRunCheck_AllPassed(t *testing.T) {
	defer gock.Off()

	mockHealthy()
	gock.New(baseURL).Get("/v1/items/1").Reply(200).JSON(map[string]any{"id": 1})
	gock.New(baseURL).Get("/v1/items/2").Reply(200).JSON(map[string]any{"id": 2})

	out := &bytes.Buffer{}
	err := runCheck(checkOptions{
		gets:   []string{"/v1/items/{1,2}"},
		lookup: lookupFrom(currentEnv()),
	}, out)

	require.NoError(t, err)
	assert.Contains(t, out.String(), "All checks passed!")
	assert.True(t, gock.IsDone())
}

func TestRunCheck_Legacy(t *testing.T) {
	defer gock.Off()

	mockHealthy()

	out := &bytes.Buffer{}
	err := runCheck(checkOptions{
		legacy: true,
		lookup: lookupFrom(map[string]string{
			"KLUE_SERVER_HOST": "1.2.3.4",
			"KLUE_SERVER_PORT": "8080",
		}),
	}, out)

	require.NoError(t, err)
	assert.True(t, gock.IsDone())
}

func TestRunCheck_UnresolvedTarget(t *testing.T) {
	err := runCheck(checkOptions{legacy: true, lookup: lookupFrom(currentEnv())}, &bytes.Buffer{})

	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrFindings)
}

func TestRunCheck_FindingsPrinted(t *testing.T) {
	defer gock.Off()

	mockHealthy()
	gock.New(baseURL).Get("/v1/items/1").Reply(500).JSON(map[string]any{"status": 500, "error": "BOOM"})

	out := &bytes.Buffer{}
	err := runCheck(checkOptions{
		gets:   []string{"/v1/items/1"},
		lookup: lookupFrom(currentEnv()),
	}, out)

	assert.ErrorIs(t, err, ErrFindings)
	assert.Contains(t, out.String(), "Findings:")
	assert.Contains(t, out.String(), baseURL+"/v1/items/1")
	assert.Contains(t, out.String(), "Finished - 1 findings")
}

func TestRunCheck_FindingsWrittenToFile(t *testing.T) {
	defer gock.Off()

	mockHealthy()
	gock.New(baseURL).Get("/v1/items/1").Reply(200).JSON(map[string]any{"kind": "user"})

	dir := t.TempDir()
	urlFile := filepath.Join(dir, "urls.json")
	require.NoError(t, os.WriteFile(urlFile, []byte(`{"endpoints": [
		{"relativePath": "/v1/items/1", "expectedBody": {"kind": "item"}}
	]}`), 0o600))
	outputFile := filepath.Join(dir, "findings.json")

	out := &bytes.Buffer{}
	err := runCheck(checkOptions{
		urlFile:    urlFile,
		outputFile: outputFile,
		lookup:     lookupFrom(currentEnv()),
	}, out)

	assert.ErrorIs(t, err, ErrFindings)
	assert.Contains(t, out.String(), "Written findings to "+outputFile)

	content, err := os.ReadFile(outputFile)
	require.NoError(t, err)

	var findings []smoke.Finding
	require.NoError(t, json.Unmarshal(content, &findings))
	require.Len(t, findings, 1)
	assert.Equal(t, baseURL+"/v1/items/1", findings[0].URL)
	assert.Equal(t, smoke.ErrJSONMismatch.Error(), findings[0].Error)
	assert.NotEmpty(t, findings[0].Diff)
}

func TestRunCheck_HeaderFile(t *testing.T) {
	defer gock.Off()

	gock.New(baseURL).Get("/ping").MatchHeader("X-Client", "^apiunit$").Reply(200).JSON(map[string]any{})
	gock.New(baseURL).Get("/version").MatchHeader("X-Client", "^apiunit$").Reply(200).JSON(map[string]any{"name": "items", "version": "1.0"})

	headerFile := filepath.Join(t.TempDir(), "headers.json")
	require.NoError(t, os.WriteFile(headerFile, []byte(`{"X-Client": "apiunit"}`), 0o600))

	err := runCheck(checkOptions{headerFile: headerFile, lookup: lookupFrom(currentEnv())}, &bytes.Buffer{})

	require.NoError(t, err)
	assert.True(t, gock.IsDone())
}

func TestRunCheck_MissingFiles(t *testing.T) {
	err := runCheck(checkOptions{headerFile: "nope.json", lookup: lookupFrom(currentEnv())}, &bytes.Buffer{})
	assert.Error(t, err)

	err = runCheck(checkOptions{urlFile: "nope.json", lookup: lookupFrom(currentEnv())}, &bytes.Buffer{})
	assert.Error(t, err)
}

func TestListOperations(t *testing.T) {
	registry := apis.NewRegistry(apis.Manifest{
		"items": filepath.Join("..", "apis", "testdata", "items.yaml"),
		"login": "login.yaml",
	})

	out := &bytes.Buffer{}
	require.NoError(t, listOperations(context.Background(), registry, "", out))
	assert.Equal(t, "items\nlogin\n", out.String())

	out.Reset()
	require.NoError(t, listOperations(context.Background(), registry, "items", out))
	assert.Contains(t, out.String(), "getItem")
	assert.Contains(t, out.String(), "/v1/items/{id}")
	assert.Contains(t, out.String(), "DELETE")

	err := listOperations(context.Background(), registry, "unknown", out)
	assert.ErrorIs(t, err, apis.ErrUnknownAPI)
}

func TestCheckCmd_Flags(t *testing.T) {
	cmd := newCheckCmd()

	require.NoError(t, cmd.ParseFlags([]string{"--get", "/a", "--get", "/b/{1-2}", "--auth", "--rateLimit", "0"}))

	gets, err := cmd.Flags().GetStringArray("get")
	require.NoError(t, err)
	assert.Equal(t, []string{"/a", "/b/{1-2}"}, gets)

	auth, err := cmd.Flags().GetBool("auth")
	require.NoError(t, err)
	assert.True(t, auth)
}
