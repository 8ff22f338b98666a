package search

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"codeagent/pkg/logx"
)

const (
	maxRedirects   = 5
	maxContentSize = 2 << 20 // 2 MiB per page
)

// WebProvider queries an HTML search endpoint (for example a self-hosted
// SearxNG instance) and converts the result page to markdown text.
type WebProvider struct {
	endpoint  string
	userAgent string
	client    *http.Client
	converter *Converter
	logger    *logx.Logger
}

// NewWebProvider creates a web search provider against the given
// endpoint. The query is appended as the q parameter.
func NewWebProvider(endpoint, userAgent string, timeout time.Duration) *WebProvider {
	return &WebProvider{
		endpoint:  endpoint,
		userAgent: userAgent,
		converter: NewConverter(),
		logger:    logx.NewLogger("search"),
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("too many redirects (max %d)", maxRedirects)
				}
				return nil
			},
		},
	}
}

// Name implements Provider.
func (p *WebProvider) Name() string {
	return "web"
}

// Search implements Provider. The result page is returned as a single
// raw-text result; downstream summarization handles extraction.
func (p *WebProvider) Search(ctx context.Context, query string) ([]Result, error) {
	if p.endpoint == "" {
		return nil, fmt.Errorf("search endpoint not configured")
	}

	reqURL, err := url.Parse(p.endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid search endpoint %q: %w", p.endpoint, err)
	}
	q := reqURL.Query()
	q.Set("q", query)
	reqURL.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build search request: %w", err)
	}
	req.Header.Set("User-Agent", p.userAgent)
	req.Header.Set("Accept", "text/html")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search endpoint returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxContentSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read search response: %w", err)
	}

	title, markdown, err := p.converter.Convert(body)
	if err != nil {
		return nil, fmt.Errorf("failed to convert search response: %w", err)
	}
	if title == "" {
		title = query
	}

	p.logger.Debug("query %q returned %d bytes of markdown", query, len(markdown))

	return []Result{{
		Title:   title,
		URL:     reqURL.String(),
		Snippet: markdown,
	}}, nil
}
