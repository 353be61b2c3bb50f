package shopify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
)

// FetchError indicates the external catalog API could not be reached or
// refused the request. It is fatal for the page it occurred on.
type FetchError struct {
	ShopDomain string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("catalog fetch from %s failed with status %d", e.ShopDomain, e.StatusCode)
	}
	return fmt.Sprintf("catalog fetch from %s failed: %v", e.ShopDomain, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Client fetches catalog pages from the admin REST API using cursor-based
// pagination. Transient failures (429 and 5xx) are retried with backoff.
type Client struct {
	httpClient *http.Client
	apiVersion string
	pageSize   int
	baseURL    string // overrides shop-domain URLs in tests
	logger     *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL routes all requests to a fixed base URL instead of the shop
// domain. Used by tests against httptest servers.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a catalog API client.
func NewClient(apiVersion string, pageSize int, logger *zap.Logger, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		apiVersion: apiVersion,
		pageSize:   pageSize,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// linkNextRe extracts the page_info cursor from the Link response header,
// e.g. <https://shop/admin/api/2024-01/products.json?page_info=abc&limit=50>; rel="next"
var linkNextRe = regexp.MustCompile(`<[^>]*[?&]page_info=([^&>]+)[^>]*>;\s*rel="next"`)

// FetchProducts fetches one page of products. An empty cursor fetches the
// first page; the returned cursor is empty on the last page.
func (c *Client) FetchProducts(ctx context.Context, shopDomain, accessToken, cursor string) (*Page, error) {
	endpoint := c.productsURL(shopDomain, cursor)

	var page *Page
	backoff := retry.WithMaxRetries(3, retry.NewExponential(500*time.Millisecond))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return err
		}
		req.Header.Set("X-Shopify-Access-Token", accessToken)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return retry.RetryableError(err)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusOK:
			// fallthrough to decode below
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			io.Copy(io.Discard, resp.Body)
			c.logger.Warn("Retryable catalog API response",
				zap.String("shop_domain", shopDomain),
				zap.Int("status", resp.StatusCode),
			)
			return retry.RetryableError(&FetchError{ShopDomain: shopDomain, StatusCode: resp.StatusCode})
		default:
			io.Copy(io.Discard, resp.Body)
			return &FetchError{ShopDomain: shopDomain, StatusCode: resp.StatusCode}
		}

		var body struct {
			Products []Product `json:"products"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return &FetchError{ShopDomain: shopDomain, Err: fmt.Errorf("decode products page: %w", err)}
		}

		page = &Page{
			Products:   body.Products,
			NextCursor: nextCursor(resp.Header.Get("Link")),
		}
		return nil
	})
	if err != nil {
		var fe *FetchError
		if errors.As(err, &fe) {
			return nil, fe
		}
		return nil, &FetchError{ShopDomain: shopDomain, Err: err}
	}

	return page, nil
}

func (c *Client) productsURL(shopDomain, cursor string) string {
	base := c.baseURL
	if base == "" {
		base = fmt.Sprintf("https://%s", shopDomain)
	}

	q := url.Values{}
	q.Set("limit", fmt.Sprintf("%d", c.pageSize))
	if cursor != "" {
		q.Set("page_info", cursor)
	}

	return fmt.Sprintf("%s/admin/api/%s/products.json?%s", base, c.apiVersion, q.Encode())
}

func nextCursor(linkHeader string) string {
	if linkHeader == "" {
		return ""
	}
	m := linkNextRe.FindStringSubmatch(linkHeader)
	if m == nil {
		return ""
	}
	return m[1]
}
