// Package mwapi provides the shared MediaWiki action=query HTTP
// client used by the Loader and RetryFetcher: a retryablehttp.Client
// configured with KockaLogger's User-Agent and a cache-busting query
// parameter, per spec.md §6.
package mwapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

// Client performs action=query requests against a wiki's api.php.
type Client struct {
	http      *retryablehttp.Client
	userAgent string
	now       func() time.Time
}

// NewClient builds a Client. product and description feed the
// User-Agent string "<product> v<version>: <description>" required by
// spec.md §6.
func NewClient(logger zerolog.Logger, product, version, description string) *Client {
	httpClient := retryablehttp.NewClient()
	httpClient.Logger = nil // KockaLogger logs at the call site with structured fields instead.
	httpClient.RetryMax = 3 //nolint:mnd

	return &Client{
		http:      httpClient,
		userAgent: fmt.Sprintf("%s v%s: %s", product, version, description),
		now:       time.Now,
	}
}

// Query performs an action=query request against baseURL (a wiki's
// api.php, or the community wiki for cross-wiki meta queries) with
// the given query parameters, and unmarshals the JSON response into
// v.
func (c *Client) Query(ctx context.Context, baseURL string, params url.Values, v interface{}) errors.E {
	params = cloneValues(params)
	params.Set("action", "query")
	params.Set("format", "json")
	params.Set("cb", strconv.FormatInt(c.now().UnixMilli(), 10))

	fullURL := baseURL + "?" + params.Encode()

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return errors.WithStack(err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.WithStack(err)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.WithStack(err)
	}

	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("bad response status (%s) from %s", resp.Status, baseURL)
	}

	if err := json.Unmarshal(body, v); err != nil {
		return errors.WithDetails(errors.WithStack(err), "body", truncate(body, 256)) //nolint:mnd
	}
	return nil
}

// RawQuery is like Query but returns the raw response body, for
// callers (the RetryFetcher) that need to distinguish "not JSON at
// all" (a captive portal HTML page) from "valid JSON missing the
// expected field".
func (c *Client) RawQuery(ctx context.Context, baseURL string, params url.Values) ([]byte, errors.E) {
	params = cloneValues(params)
	params.Set("action", "query")
	params.Set("format", "json")
	params.Set("cb", strconv.FormatInt(c.now().UnixMilli(), 10))

	fullURL := baseURL + "?" + params.Encode()

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return body, nil
}

func cloneValues(v url.Values) url.Values {
	out := make(url.Values, len(v)+3) //nolint:mnd
	for k, vals := range v {
		out[k] = append([]string(nil), vals...)
	}
	return out
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
