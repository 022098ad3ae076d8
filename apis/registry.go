// Package apis keeps a registry of API descriptions (OpenAPI documents)
// addressed by logical service name, such as "login" or "search".
package apis

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/phux/apiunit/internal/logger"
	"github.com/sirupsen/logrus"
)

var (
	ErrUnknownAPI       = errors.New("unknown API")
	ErrUnknownOperation = errors.New("unknown operation")
)

// Default is the process-wide registry, reading descriptions from ./apis.
var Default = NewRegistry(DefaultManifest("apis"))

// API is a loaded description bound to the server it will be called on.
type API struct {
	Name   string
	Doc    *openapi3.T
	Scheme string
	Host   string
	Port   int
	// BasePath is the path of the first server URL, without a trailing slash.
	BasePath      string
	SkipTLSVerify bool
}

// BaseURL is scheme://host[:port].
func (a *API) BaseURL() string {
	host := a.Host
	if a.Port != 0 {
		host += ":" + strconv.Itoa(a.Port)
	}

	return a.Scheme + "://" + host
}

// URL joins BaseURL, BasePath and path.
func (a *API) URL(path string) string {
	return a.BaseURL() + a.BasePath + "/" + strings.TrimLeft(path, "/")
}

// Endpoint returns the method and path template of operationID.
func (a *API) Endpoint(operationID string) (string, string, error) {
	if a.Doc != nil && a.Doc.Paths != nil {
		for path, item := range a.Doc.Paths.Map() {
			for method, op := range item.Operations() {
				if op != nil && op.OperationID == operationID {
					return strings.ToUpper(method), path, nil
				}
			}
		}
	}

	return "", "", fmt.Errorf("%s: %w: %s", a.Name, ErrUnknownOperation, operationID)
}

// Path is Endpoint with {param} placeholders replaced by params.
func (a *API) Path(operationID string, params map[string]string) (string, string, error) {
	method, path, err := a.Endpoint(operationID)
	if err != nil {
		return "", "", err
	}

	for key, value := range params {
		path = strings.ReplaceAll(path, "{"+key+"}", url.PathEscape(value))
	}

	return method, path, nil
}

// Operations lists the operation ids of the description, sorted.
func (a *API) Operations() []string {
	ids := []string{}
	if a.Doc == nil || a.Doc.Paths == nil {
		return ids
	}

	for _, item := range a.Doc.Paths.Map() {
		for _, op := range item.Operations() {
			if op != nil && op.OperationID != "" {
				ids = append(ids, op.OperationID)
			}
		}
	}
	sort.Strings(ids)

	return ids
}

type addConfig struct {
	host          string
	port          int
	scheme        string
	skipTLSVerify bool
}

type AddOption func(*addConfig)

func WithHost(host string) AddOption {
	return func(c *addConfig) {
		c.host = host
	}
}

// WithPort sets the port. Ports 80 and 8080 force plain http.
func WithPort(port int) AddOption {
	return func(c *addConfig) {
		c.port = port
	}
}

func WithScheme(scheme string) AddOption {
	return func(c *addConfig) {
		c.scheme = scheme
	}
}

func WithSkipTLSVerify(skip bool) AddOption {
	return func(c *addConfig) {
		c.skipTLSVerify = skip
	}
}

type Registry struct {
	mu       sync.RWMutex
	manifest Manifest
	apis     map[string]*API
	log      *logrus.Entry
}

func NewRegistry(manifest Manifest) *Registry {
	return &Registry{
		manifest: manifest,
		apis:     map[string]*API{},
		log:      logrus.NewEntry(logger.Logger()).WithField("component", "apis"),
	}
}

// Add loads the description registered under name and stores it, replacing
// any API previously added under that name.
func (r *Registry) Add(ctx context.Context, name string, opts ...AddOption) (*API, error) {
	r.mu.RLock()
	file, ok := r.manifest[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: don't know service %q", ErrUnknownAPI, name)
	}

	r.log.WithField("api", name).Infof("loading client api for %s from %s", name, file)

	loader := openapi3.NewLoader()
	loader.IsExternalRefsAllowed = true
	loader.Context = ctx

	doc, err := loader.LoadFromFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to load API description %s: %w", file, err)
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("invalid API description %s: %w", file, err)
	}

	cfg := addConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	api := &API{
		Name:          name,
		Doc:           doc,
		Scheme:        "https",
		Host:          cfg.host,
		Port:          cfg.port,
		SkipTLSVerify: cfg.skipTLSVerify,
	}
	applyServer(api, doc)
	if cfg.scheme != "" {
		api.Scheme = cfg.scheme
	}
	if api.Port == 80 || api.Port == 8080 {
		api.Scheme = "http"
	}

	r.mu.Lock()
	r.apis[name] = api
	r.mu.Unlock()

	return api, nil
}

// applyServer fills scheme, base path and any missing host/port from the
// first server entry.
func applyServer(api *API, doc *openapi3.T) {
	if len(doc.Servers) == 0 || doc.Servers[0] == nil {
		return
	}

	u, err := url.Parse(doc.Servers[0].URL)
	if err != nil {
		return
	}

	api.BasePath = strings.TrimRight(u.Path, "/")
	if u.Host == "" {
		return
	}

	if u.Scheme != "" {
		api.Scheme = u.Scheme
	}
	if api.Host == "" {
		api.Host = u.Hostname()
	}
	if api.Port == 0 && u.Port() != "" {
		api.Port, _ = strconv.Atoi(u.Port())
	}
}

func (r *Registry) Get(name string) (*API, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	api, ok := r.apis[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q was not added", ErrUnknownAPI, name)
	}

	return api, nil
}

// Names lists the services the manifest knows, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.manifest))
	for name := range r.manifest {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// SetManifest replaces the name to file mapping. Loaded APIs are kept.
func (r *Registry) SetManifest(m Manifest) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.manifest = m
}
