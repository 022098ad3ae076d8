package caller

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/goccy/go-json"
	"github.com/tidwall/gjson"
)

// Response is the raw outcome of one call. The body is fully read.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	// URL is the URL of the request that produced this response,
	// after any followed redirects.
	URL *url.URL
}

func (r *Response) Text() string {
	return string(r.Body)
}

// JSON decodes the body. Decode failures wrap ErrMalformedResponse.
func (r *Response) JSON() (any, error) {
	var v any
	if err := json.Unmarshal(r.Body, &v); err != nil {
		return nil, fmt.Errorf("%w: body is not JSON: %s", ErrMalformedResponse, err)
	}

	return v, nil
}

// Object decodes the body as a JSON object.
func (r *Response) Object() (map[string]any, error) {
	v, err := r.JSON()
	if err != nil {
		return nil, err
	}

	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: expected a JSON object, got %T", ErrMalformedResponse, v)
	}

	return m, nil
}

// Get looks up a gjson path in the body.
func (r *Response) Get(path string) gjson.Result {
	return gjson.GetBytes(r.Body, path)
}

func (r *Response) ContentType() string {
	return r.Header.Get("Content-Type")
}

// IsRedirect reports a redirect status carrying a Location header.
func (r *Response) IsRedirect() bool {
	switch r.StatusCode {
	case http.StatusMovedPermanently,
		http.StatusFound,
		http.StatusSeeOther,
		http.StatusTemporaryRedirect,
		http.StatusPermanentRedirect:
		return r.Header.Get("Location") != ""
	default:
		return false
	}
}

// Location resolves the Location header against the request URL.
func (r *Response) Location() (string, error) {
	loc := r.Header.Get("Location")
	if loc == "" {
		return "", fmt.Errorf("%w: no Location header", ErrMalformedResponse)
	}

	u, err := url.Parse(loc)
	if err != nil {
		return "", fmt.Errorf("%w: bad Location %q: %s", ErrMalformedResponse, loc, err)
	}

	if r.URL == nil {
		return u.String(), nil
	}

	return r.URL.ResolveReference(u).String(), nil
}
