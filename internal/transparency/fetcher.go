// Package transparency looks up the certificates logged for a domain and
// aggregates them into a report.
package transparency

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/khanhnv2901/certscope/internal/domain/report"
	"github.com/khanhnv2901/certscope/internal/shared/constants"
	apperrors "github.com/khanhnv2901/certscope/internal/shared/errors"
)

// Fetcher performs one lookup per analysis, without retries.
type Fetcher struct {
	client  Client
	timeout time.Duration
	tracer  trace.Tracer

	// Now returns the scan instant. Defaults to time.Now.
	Now func() time.Time
}

// NewFetcher returns a Fetcher bounded by timeout per lookup.
func NewFetcher(client Client, timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = constants.TransparencyTimeout
	}
	return &Fetcher{
		client:  client,
		timeout: timeout,
		tracer:  otel.Tracer("github.com/khanhnv2901/certscope/internal/transparency"),
		Now:     time.Now,
	}
}

// Fetch looks up domain and normalizes the result.
func (f *Fetcher) Fetch(ctx context.Context, domain string, logger *zap.Logger) (*report.TransparencyReport, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, span := f.tracer.Start(ctx, "transparency.Fetch", trace.WithAttributes(attribute.String("domain", domain)))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	query := strings.TrimSuffix(domain, ".")
	entries, err := f.client.Search(ctx, query)
	if err != nil {
		err = classifyFetchError(ctx, err)
		logger.Warn("transparency lookup failed", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	rep := Normalize(query, entries, f.Now())
	span.SetAttributes(attribute.Int("transparency.entries", len(entries)))
	logger.Info("transparency lookup completed",
		zap.Int("certificates", rep.Summary.TotalCertificates),
		zap.Int("active", rep.Summary.ActiveCertificates),
		zap.Int("subdomains", rep.Summary.DiscoveredSubdomains),
	)
	return rep, nil
}

func classifyFetchError(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, apperrors.ErrTransparencyTimeout), errors.Is(err, apperrors.ErrTransparency):
		return err
	case errors.Is(err, context.DeadlineExceeded), errors.Is(ctx.Err(), context.DeadlineExceeded):
		return apperrors.ErrTransparencyTimeout
	default:
		return fmt.Errorf("%w: %w", apperrors.ErrTransparency, err)
	}
}
