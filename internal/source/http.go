package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cgast/questcheck/pkg/mission"
)

// HTTP fetches a single catalog document over HTTP(S).
type HTTP struct {
	url            string
	allowedDomains []string
	client         *http.Client
	maxBytes       int64
}

// NewHTTP creates an HTTP source. If allowedDomains is non-empty the URL's
// host must be one of them.
func NewHTTP(rawURL string, allowedDomains []string) *HTTP {
	return &HTTP{
		url:            rawURL,
		allowedDomains: allowedDomains,
		client:         &http.Client{Timeout: 30 * time.Second},
		maxBytes:       maxCatalogBytes,
	}
}

func (h *HTTP) Describe() string { return h.url }

func (h *HTTP) Load(ctx context.Context) (*mission.Catalog, error) {
	if err := checkAllowedDomain(h.url, h.allowedDomains); err != nil {
		return nil, fmt.Errorf("fetch catalog: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.url, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch catalog: create request: %w", err)
	}
	req.Header.Set("Accept", "application/yaml, text/yaml, text/plain")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch catalog: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch catalog: %s returned %d", h.url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, h.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("fetch catalog: read body: %w", err)
	}
	if int64(len(body)) > h.maxBytes {
		return nil, fmt.Errorf("fetch catalog: %s exceeds %d bytes", h.url, h.maxBytes)
	}
	return mission.ParseCatalog(body)
}

// checkAllowedDomain verifies the URL's domain is in the allowlist.
// If no allowed domains are configured, all domains are permitted.
func checkAllowedDomain(rawURL string, allowedDomains []string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", parsed.Scheme)
	}
	if len(allowedDomains) == 0 {
		return nil
	}

	host := parsed.Hostname()
	for _, d := range allowedDomains {
		if host == d {
			return nil
		}
	}
	return fmt.Errorf("domain %q is not in the allowed list", host)
}
