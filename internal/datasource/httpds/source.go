package httpds

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"bulkimport/internal/datasource"
	"bulkimport/internal/datasource/file"
)

var _ datasource.Source = (*Source)(nil)

// StatusError is returned for a response that is neither 2xx nor retried
// into success.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("httpds: GET %s: %d %s", e.URL, e.Code, http.StatusText(e.Code))
}

// Source downloads one URL and decodes the body like a local file.
type Source struct {
	client *Client
	url    string
	opt    file.Options
}

// NewSource returns a Source for rawURL.
func NewSource(rawURL string, cfg Config, opt file.Options) *Source {
	return &Source{client: NewClient(cfg), url: rawURL, opt: opt}
}

// Open implements datasource.Source. The body is streamed; nothing is
// buffered beyond the decoder's read-ahead.
func (s *Source) Open(ctx context.Context) (io.ReadCloser, error) {
	resp, err := s.client.Get(ctx, s.url)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_ = resp.Body.Close()
		return nil, &StatusError{URL: s.url, Code: resp.StatusCode}
	}
	return file.Decode(resp.Body, decodeName(s.url), s.opt)
}

// decodeName is the URL path, which carries the extension used for
// compression detection; the query string is ignored.
func decodeName(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return u.Path
}
