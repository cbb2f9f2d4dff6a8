// Package transfer implements the pull side of content transfer: a small
// HTTP client for the admin content API of a remote source site.
package transfer

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/torchbox-forks/wagtail-transfer/pkg/config"
	"github.com/torchbox-forks/wagtail-transfer/pkg/httputil"
)

// Digest signs a message with a source key. The remote side recomputes the
// same HMAC-SHA1 hex digest over the urlencoded query string to authenticate
// pull requests.
func Digest(key, message string) string {
	mac := hmac.New(sha1.New, []byte(key))
	mac.Write([]byte(message))
	return hex.EncodeToString(mac.Sum(nil))
}

// Client pulls content listings from one configured source.
type Client struct {
	source  config.SourceConfig
	logger  *zap.Logger
	timeout time.Duration
}

func NewClient(source config.SourceConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{source: source, logger: logger, timeout: 10 * time.Second}
}

// Clients builds one client per configured source, keyed by source name.
func Clients(cfg *config.Config, logger *zap.Logger) map[string]*Client {
	clients := make(map[string]*Client, len(cfg.Sources))
	for _, source := range cfg.Sources {
		clients[source.Name] = NewClient(source, logger)
	}
	return clients
}

func (c *Client) Source() config.SourceConfig { return c.source }

// Listing is the common response envelope of the content API.
type Listing struct {
	Meta  ListingMeta      `json:"meta"`
	Items []map[string]any `json:"items"`
}

type ListingMeta struct {
	TotalCount int `json:"total_count"`
}

// Pages fetches a page listing. query carries the API's standard parameters
// (fields, child_of, order, ...) and may be nil.
func (c *Client) Pages(ctx context.Context, query url.Values) (*Listing, error) {
	return c.listing(ctx, "pages/", query)
}

// Page fetches a single page by id.
func (c *Client) Page(ctx context.Context, id int, query url.Values) (map[string]any, error) {
	return c.detail(ctx, fmt.Sprintf("pages/%d/", id), query)
}

// FindPage resolves a page by its public URL path. The remote find view
// answers with a redirect to the detail view, which the client follows.
func (c *Client) FindPage(ctx context.Context, htmlPath string) (map[string]any, error) {
	query := url.Values{}
	query.Set("html_path", htmlPath)
	return c.detail(ctx, "pages/find/", query)
}

// Models fetches the listing of transferable snippet models.
func (c *Client) Models(ctx context.Context) (*Listing, error) {
	return c.listing(ctx, "models/", nil)
}

// ModelObjects fetches all objects of one snippet model, e.g. "demo.advert".
func (c *Client) ModelObjects(ctx context.Context, label string, query url.Values) (*Listing, error) {
	return c.listing(ctx, "models/"+label+"/", query)
}

func (c *Client) listing(ctx context.Context, path string, query url.Values) (*Listing, error) {
	body, err := c.get(ctx, path, query)
	if err != nil {
		return nil, err
	}
	var listing Listing
	if err := json.Unmarshal(body, &listing); err != nil {
		return nil, fmt.Errorf("source %s: decode %s: %w", c.source.Name, path, err)
	}
	return &listing, nil
}

func (c *Client) detail(ctx context.Context, path string, query url.Values) (map[string]any, error) {
	body, err := c.get(ctx, path, query)
	if err != nil {
		return nil, err
	}
	var object map[string]any
	if err := json.Unmarshal(body, &object); err != nil {
		return nil, fmt.Errorf("source %s: decode %s: %w", c.source.Name, path, err)
	}
	return object, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	requestURL, err := c.requestURL(path, query)
	if err != nil {
		return nil, err
	}

	reqCfg := httputil.DefaultRequestConfig(http.MethodGet, requestURL)
	reqCfg.Timeout = c.timeout
	reqCfg.Logger = printfLogger{c.logger.Sugar()}
	resp, err := httputil.Request(ctx, reqCfg, nil)
	if err != nil {
		return nil, fmt.Errorf("source %s: GET %s: %w", c.source.Name, path, err)
	}
	return resp.Body, nil
}

func (c *Client) requestURL(path string, query url.Values) (string, error) {
	base, err := url.Parse(c.source.BaseURL)
	if err != nil {
		return "", fmt.Errorf("source %s: invalid base URL: %w", c.source.Name, err)
	}
	u := base.JoinPath(path)
	u.RawQuery = c.signQuery(query)
	return u.String(), nil
}

// signQuery appends the digest parameter computed over the urlencoded query
// string. An unkeyed source sends the query unsigned.
func (c *Client) signQuery(query url.Values) string {
	if query == nil {
		query = url.Values{}
	}
	if c.source.Key == "" {
		return query.Encode()
	}
	signed := url.Values{}
	for k, vs := range query {
		signed[k] = vs
	}
	signed.Set("digest", Digest(c.source.Key, query.Encode()))
	return signed.Encode()
}

// printfLogger adapts zap to the retrying client's logger interface.
type printfLogger struct {
	s *zap.SugaredLogger
}

func (l printfLogger) Printf(format string, v ...interface{}) {
	l.s.Infof(format, v...)
}
