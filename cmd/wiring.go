package cmd

import (
	"golang.org/x/time/rate"

	"github.com/khanhnv2901/certscope/internal/analysis"
	"github.com/khanhnv2901/certscope/internal/grading"
	"github.com/khanhnv2901/certscope/internal/httpclient"
	"github.com/khanhnv2901/certscope/internal/metrics"
	"github.com/khanhnv2901/certscope/internal/transparency"
)

// newAnalyzer builds the analysis engine from cfg. The returned analyzer and
// its HTTP clients are shared by every request.
func newAnalyzer(cfg Config, m *metrics.Metrics) *analysis.Analyzer {
	var limiter *rate.Limiter
	if cfg.Grading.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.Grading.RateLimit), cfg.Grading.RateLimit)
	}

	gradingHTTP := httpclient.New(httpclient.Options{Timeout: cfg.Grading.RequestTimeout})
	poller := grading.NewPoller(
		grading.NewHTTPClient(cfg.Grading.BaseURL, gradingHTTP, limiter),
		grading.Config{
			Interval:    cfg.Grading.PollInterval,
			MaxAttempts: cfg.Grading.MaxAttempts,
		},
	)

	// The fetcher applies its own deadline; the client needs none.
	ctHTTP := httpclient.New(httpclient.Options{})
	fetcher := transparency.NewFetcher(
		transparency.NewHTTPClient(cfg.Transparency.BaseURL, cfg.Transparency.UserAgent, ctHTTP),
		cfg.Transparency.Timeout,
	)

	return analysis.NewAnalyzer(poller, fetcher, analysis.Options{
		Deadline: cfg.Analysis.Deadline,
		Metrics:  m,
	})
}
