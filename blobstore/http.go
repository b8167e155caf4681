package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hupe1980/volcache/resource"
)

// StatusError is returned by HTTPStore for unexpected response codes.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("blobstore: GET %s: %d %s", e.URL, e.Code, http.StatusText(e.Code))
}

// HTTPStore reads blobs with HTTP GET requests relative to a base URL.
type HTTPStore struct {
	base   *url.URL
	client *http.Client
	header http.Header
	rc     *resource.Controller
}

// HTTPOption configures an HTTPStore.
type HTTPOption func(*HTTPStore)

// WithHTTPClient sets the client used for requests.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(s *HTTPStore) {
		s.client = c
	}
}

// WithTimeout sets an overall timeout on every request.
func WithTimeout(d time.Duration) HTTPOption {
	return func(s *HTTPStore) {
		c := *s.client
		c.Timeout = d
		s.client = &c
	}
}

// WithHeader adds a header sent with every request.
func WithHeader(key, value string) HTTPOption {
	return func(s *HTTPStore) {
		s.header.Add(key, value)
	}
}

// WithReadLimit charges response bodies against the IO limit of rc.
func WithReadLimit(rc *resource.Controller) HTTPOption {
	return func(s *HTTPStore) {
		s.rc = rc
	}
}

// NewHTTPStore creates a store rooted at baseURL.
func NewHTTPStore(baseURL string, opts ...HTTPOption) (*HTTPStore, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("blobstore: invalid base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("blobstore: unsupported url scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/")

	s := &HTTPStore{
		base:   u,
		client: &http.Client{},
		header: make(http.Header),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// URL returns the absolute URL of key.
func (s *HTTPStore) URL(key string) string {
	u := *s.base
	u.Path = u.Path + "/" + strings.TrimPrefix(key, "/")
	return u.String()
}

// Get fetches a blob. 404 and 410 responses map to ErrNotFound.
func (s *HTTPStore) Get(ctx context.Context, key string) ([]byte, error) {
	target := s.URL(key)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	for k, v := range s.header {
		req.Header[k] = v
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return nil, fmt.Errorf("%s: %w", target, ErrNotFound)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, &StatusError{URL: target, Code: resp.StatusCode}
	}

	var body io.Reader = resp.Body
	if s.rc != nil {
		body = resource.NewRateLimitedReader(ctx, body, s.rc)
	}
	data, err := io.ReadAll(body)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return data, nil
}
