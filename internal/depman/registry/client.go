// Package registry talks to the Elm package registry and persists its answers between runs.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"martianoff/elmdeps/internal/depman/mod"
	"martianoff/elmdeps/internal/depman/version"
	"martianoff/elmdeps/internal/metrics"
)

// DefaultURL is the public Elm package registry.
const DefaultURL = "https://package.elm-lang.org"

const (
	defaultConnectTimeout = 10 * time.Second
	defaultTimeout        = 60 * time.Second
	maxBodySize           = 8 << 20
)

// ErrNotFound is returned when the registry answers 404.
var ErrNotFound = errors.New("not found in the package registry")

// IsNotFound reports whether err means the registry does not know the requested resource.
func IsNotFound(err error) bool {
	return errors.Cause(err) == ErrNotFound
}

// FetchError is a registry request that failed for any reason other than absence.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Client fetches package metadata over HTTP.
type Client struct {
	BaseURL string
	http    *http.Client
}

// NewClient creates a Client with the given connect and overall request timeouts.
// Zero durations select the defaults, 10s to connect and 60s per request.
func NewClient(baseURL string, connectTimeout, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	if connectTimeout <= 0 {
		connectTimeout = defaultConnectTimeout
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{Timeout: connectTimeout}).DialContext
	return &Client{
		BaseURL: baseURL,
		http:    &http.Client{Transport: transport, Timeout: timeout},
	}
}

// ReleasesURL returns the endpoint listing every published version of pkg.
func (c *Client) ReleasesURL(pkg mod.Pkg) string {
	return fmt.Sprintf("%s/packages/%s/%s/releases.json", c.BaseURL, pkg.Author, pkg.Name)
}

// ElmJSONURL returns the endpoint serving the elm.json of a published version.
func (c *Client) ElmJSONURL(pkg mod.Pkg, v version.Version) string {
	return fmt.Sprintf("%s/packages/%s/%s/%s/elm.json", c.BaseURL, pkg.Author, pkg.Name, v)
}

// Releases returns the published versions of pkg, sorted ascending.
// The registry answers with an object mapping each version to its publication time.
func (c *Client) Releases(ctx context.Context, pkg mod.Pkg) ([]version.Version, error) {
	url := c.ReleasesURL(pkg)
	body, err := c.get(ctx, url)
	if err != nil {
		return nil, err
	}

	var releases map[string]int64
	if err := json.Unmarshal(body, &releases); err != nil {
		return nil, &FetchError{URL: url, Err: errors.Wrap(err, "decode releases")}
	}

	versions := make([]version.Version, 0, len(releases))
	for raw := range releases {
		v, err := version.Parse(raw)
		if err != nil {
			return nil, &FetchError{URL: url, Err: err}
		}
		versions = append(versions, v)
	}
	version.Sort(versions)
	return versions, nil
}

// ElmJSON returns the raw elm.json of a published package version.
func (c *Client) ElmJSON(ctx context.Context, pkg mod.Pkg, v version.Version) ([]byte, error) {
	return c.get(ctx, c.ElmJSONURL(pkg, v))
}

func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.RegistryRequestsTotal.WithLabelValues("error").Inc()
		return nil, &FetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()
	metrics.RegistryRequestsTotal.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, errors.Wrapf(ErrNotFound, "GET %s", url)
	case resp.StatusCode != http.StatusOK:
		return nil, &FetchError{URL: url, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	return body, nil
}
