package grading

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/time/rate"

	apperrors "github.com/khanhnv2901/certscope/internal/shared/errors"
)

// DefaultBaseURL is the public SSL Labs API v3 endpoint.
const DefaultBaseURL = "https://api.ssllabs.com/api/v3"

// maxBody bounds the analyze response accepted from the provider.
const maxBody = 32 << 20

// maxErrorBody bounds how much of a failed response is read for its message.
const maxErrorBody = 4 << 10

// Client issues the provider's "start or resume analysis" call.
type Client interface {
	Analyze(ctx context.Context, host string) (*Host, error)
}

// HTTPClient implements Client against the SSL Labs REST API.
type HTTPClient struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewHTTPClient builds a client. A nil limiter disables outbound rate limiting.
func NewHTTPClient(baseURL string, httpClient *http.Client, limiter *rate.Limiter) *HTTPClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		limiter: limiter,
	}
}

// Analyze calls GET {base}/analyze for host. Every failure wraps ErrProvider.
func (c *HTTPClient) Analyze(ctx context.Context, host string) (*Host, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: rate limiter: %v", apperrors.ErrProvider, err)
		}
	}

	q := url.Values{}
	q.Set("host", host)
	q.Set("all", "done")
	q.Set("ignoreMismatch", "on")
	endpoint := c.baseURL + "/analyze?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", apperrors.ErrProvider, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrProvider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrProvider, statusMessage(resp))
	}

	h, err := decodeHost(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", apperrors.ErrProvider, err)
	}
	return h, nil
}

// statusMessage prefers the provider's own error messages over the bare status line.
func statusMessage(resp *http.Response) string {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var apiErr apiErrors
	if json.Unmarshal(body, &apiErr) == nil && len(apiErr.Errors) > 0 {
		msgs := make([]string, 0, len(apiErr.Errors))
		for _, e := range apiErr.Errors {
			if e.Field != "" {
				msgs = append(msgs, e.Field+": "+e.Message)
				continue
			}
			msgs = append(msgs, e.Message)
		}
		return fmt.Sprintf("status %d: %s", resp.StatusCode, strings.Join(msgs, "; "))
	}
	return fmt.Sprintf("Request failed with status code %d", resp.StatusCode)
}
