package smoke

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

var (
	ErrPrefixFilledButSuffixNot = errors.New("PatternPrefix is filled but PatternSuffix is not")
	ErrSuffixFilledButPrefixNot = errors.New("PatternSuffix is filled but PatternPrefix is not")
)

// Plan lists the endpoints to call. It is read from a JSON or YAML file:
//
//	{"endpoints": [{"relativePath": "/v1/items/{1-3}", "expectedStatusCode": 200}]}
type Plan struct {
	Endpoints []Endpoint `json:"endpoints" yaml:"endpoints"`
}

type Endpoint struct {
	RelativePath       string            `json:"relativePath" yaml:"relativePath"`
	HTTPMethod         string            `json:"httpMethod" yaml:"httpMethod"`
	ExpectedStatusCode int               `json:"expectedStatusCode" yaml:"expectedStatusCode"`
	RequestBody        any               `json:"requestBody" yaml:"requestBody"`
	RequestBodyFile    *string           `json:"requestBodyFile" yaml:"requestBodyFile"`
	RequestHeaders     map[string]string `json:"requestHeaders" yaml:"requestHeaders"`
	ExpectedBody       map[string]any    `json:"expectedBody,omitempty" yaml:"expectedBody,omitempty"`
	PatternPrefix      *string           `json:"patternPrefix,omitempty" yaml:"patternPrefix,omitempty"`
	PatternSuffix      *string           `json:"patternSuffix,omitempty" yaml:"patternSuffix,omitempty"`
}

// GetEndpoint is a GET expecting a 200 JSON response.
func GetEndpoint(path string) Endpoint {
	return Endpoint{
		RelativePath:       path,
		HTTPMethod:         http.MethodGet,
		ExpectedStatusCode: http.StatusOK,
	}
}

func (e Endpoint) method() string {
	if e.HTTPMethod == "" {
		return http.MethodGet
	}

	return strings.ToUpper(e.HTTPMethod)
}

func (e Endpoint) status() int {
	if e.ExpectedStatusCode == 0 {
		return http.StatusOK
	}

	return e.ExpectedStatusCode
}

func (e Endpoint) validatePatternPrefixAndSuffixMatch() error {
	if e.PatternPrefix != nil && e.PatternSuffix == nil {
		return fmt.Errorf("%s: %w", e.RelativePath, ErrPrefixFilledButSuffixNot)
	}

	if e.PatternPrefix == nil && e.PatternSuffix != nil {
		return fmt.Errorf("%s: %w", e.RelativePath, ErrSuffixFilledButPrefixNot)
	}

	return nil
}

// body returns the request body, read from RequestBodyFile when set.
func (e Endpoint) body() (any, error) {
	if e.RequestBodyFile == nil {
		return e.RequestBody, nil
	}

	content, err := os.ReadFile(*e.RequestBodyFile)
	if err != nil {
		return nil, fmt.Errorf("could not read request body file: %w", err)
	}

	return content, nil
}

// LoadPlan reads a plan file. Files ending in .yaml or .yml are read as YAML,
// anything else as JSON.
func LoadPlan(path string) (*Plan, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s file: %w", path, err)
	}

	var plan Plan
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(content, &plan)
	default:
		err = json.Unmarshal(content, &plan)
	}
	if err != nil {
		return nil, fmt.Errorf("cannot unmarshal %s file: %w", path, err)
	}

	return &plan, nil
}

// LoadHeaders reads a JSON object of header names to values. An empty path
// means no headers.
func LoadHeaders(path string) (map[string]string, error) {
	if path == "" {
		return map[string]string{}, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var headers map[string]string
	if err := json.Unmarshal(content, &headers); err != nil {
		return nil, fmt.Errorf("cannot unmarshal %s file: %w", path, err)
	}

	return headers, nil
}
