// =============================================================================
// NaPTAN Import - Reference Data Fetcher
// =============================================================================
//
// This module downloads registry documents from the NaPTAN service and the
// locality reference listing.
//
// REGISTRY DOWNLOAD:
//   POST <base_url>/Download/MultipleLa
//   Content-Type: application/x-www-form-urlencoded
//
//     selectedLasNames=<local authority name>&fileTypeSelect=xml
//
//   The response body is the registry document for that authority.
//
// FAILURES:
//   Transport errors and non-2xx responses wrap types.ErrReferenceFetch.
//   Every request is bounded by the client timeout and the caller's context.
//
// =============================================================================

package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ginjaninja78/naptan-xml-import/internal/types"
)

// downloadPath is the NaPTAN endpoint that serves per-authority documents.
const downloadPath = "/Download/MultipleLa"

// snippetLen bounds the response text quoted in an error.
const snippetLen = 200

// Client fetches remote reference data.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a Client for the NaPTAN service at baseURL. A zero timeout
// leaves requests bounded only by their context.
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// DownloadAuthority requests the registry document of one local authority.
//
// PARAMETERS:
//   - ctx: Cancels the request.
//   - authority: The authority name exactly as the download form lists it.
//
// RETURNS:
//   - The document body. The caller must close it.
//   - An error wrapping types.ErrReferenceFetch.
func (c *Client) DownloadAuthority(ctx context.Context, authority string) (io.ReadCloser, error) {
	form := url.Values{}
	form.Set("selectedLasNames", authority)
	form.Set("fileTypeSelect", "xml")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+downloadPath, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrReferenceFetch, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	return c.do(req, authority)
}

// Get fetches an arbitrary reference resource, such as the locality listing.
func (c *Client) Get(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrReferenceFetch, err)
	}
	return c.do(req, rawURL)
}

func (c *Client) do(req *http.Request, what string) (io.ReadCloser, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", types.ErrReferenceFetch, what, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, snippetLen))
		return nil, fmt.Errorf("%w: %s: %s: %s", types.ErrReferenceFetch, what, resp.Status, strings.TrimSpace(string(body)))
	}
	return resp.Body, nil
}
