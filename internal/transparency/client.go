package transparency

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/khanhnv2901/certscope/internal/shared/constants"
	apperrors "github.com/khanhnv2901/certscope/internal/shared/errors"
)

// DefaultBaseURL is the public crt.sh endpoint.
const DefaultBaseURL = "https://crt.sh"

// maxBody bounds the response size accepted from the provider.
const maxBody = 64 << 20

// Entry is one certificate record as returned by crt.sh.
type Entry struct {
	ID             int64  `json:"id"`
	IssuerCAID     int64  `json:"issuer_ca_id"`
	IssuerName     string `json:"issuer_name"`
	CommonName     string `json:"common_name"`
	NameValue      string `json:"name_value"`
	EntryTimestamp string `json:"entry_timestamp"`
	NotBefore      string `json:"not_before"`
	NotAfter       string `json:"not_after"`
	SerialNumber   string `json:"serial_number"`
	ResultCount    *int   `json:"result_count"`
}

// Client searches the transparency provider for a domain and its subdomains.
type Client interface {
	Search(ctx context.Context, domain string) ([]Entry, error)
}

// HTTPClient implements Client against the crt.sh JSON output.
type HTTPClient struct {
	baseURL   string
	userAgent string
	http      *http.Client
}

// NewHTTPClient builds a client. Empty values fall back to the defaults.
func NewHTTPClient(baseURL, userAgent string, httpClient *http.Client) *HTTPClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if userAgent == "" {
		userAgent = constants.TransparencyUserAgent
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: constants.TransparencyTimeout}
	}
	return &HTTPClient{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: userAgent,
		http:      httpClient,
	}
}

// Search issues a single wildcard lookup. Timeouts wrap ErrTransparencyTimeout,
// every other failure wraps ErrTransparency. An empty or null body yields no entries.
func (c *HTTPClient) Search(ctx context.Context, domain string) ([]Entry, error) {
	q := url.Values{}
	q.Set("q", "%."+domain)
	q.Set("output", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", apperrors.ErrTransparency, err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, classify(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return nil, fmt.Errorf("%w: Request failed with status code %d", apperrors.ErrTransparency, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, classify(err)
	}
	body = bytes.TrimSpace(body)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return nil, nil
	}

	var entries []Entry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", apperrors.ErrTransparency, err)
	}
	return entries, nil
}

func classify(err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return apperrors.ErrTransparencyTimeout
	}
	return fmt.Errorf("%w: %v", apperrors.ErrTransparency, err)
}
