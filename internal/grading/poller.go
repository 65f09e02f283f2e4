// Package grading drives the TLS grading provider to a completed assessment.
package grading

import (
	"context"
	"errors"
	"fmt"
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

// ProgressFunc is called after every poll call with its 1-based attempt number
// and the status the provider returned.
type ProgressFunc func(attempt int, status string)

// Config tunes the polling loop. Zero values use the package defaults.
type Config struct {
	Interval    time.Duration
	MaxAttempts int
}

// Poller repeats the analyze call while the provider reports progress.
type Poller struct {
	client      Client
	interval    time.Duration
	maxAttempts int
	tracer      trace.Tracer
}

// NewPoller returns a Poller that issues calls through client.
func NewPoller(client Client, cfg Config) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = constants.GradingPollInterval
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = constants.GradingMaxAttempts
	}
	return &Poller{
		client:      client,
		interval:    cfg.Interval,
		maxAttempts: cfg.MaxAttempts,
		tracer:      otel.Tracer("github.com/khanhnv2901/certscope/internal/grading"),
	}
}

// Result is a completed poll run. Attempts counts the calls issued, also on failure.
type Result struct {
	Report   *report.GradeReport
	Attempts int
}

// Poll runs the analysis for domain to completion.
//
// It returns ErrAnalysisTimeout once MaxAttempts calls have all reported
// progress, without a further call or wait. A provider ERROR status, an
// unknown status and any transport failure return ErrProvider immediately.
func (p *Poller) Poll(ctx context.Context, domain string, logger *zap.Logger, progress ProgressFunc) (Result, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, span := p.tracer.Start(ctx, "grading.Poll", trace.WithAttributes(attribute.String("domain", domain)))
	defer span.End()

	res, err := p.poll(ctx, domain, logger, progress)
	span.SetAttributes(attribute.Int("grading.attempts", res.Attempts))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return res, err
}

func (p *Poller) poll(ctx context.Context, domain string, logger *zap.Logger, progress ProgressFunc) (Result, error) {
	var res Result
	for attempt := 1; ; attempt++ {
		res.Attempts = attempt

		host, err := p.client.Analyze(ctx, domain)
		if err != nil {
			if !errors.Is(err, apperrors.ErrProvider) {
				err = fmt.Errorf("%w: %w", apperrors.ErrProvider, err)
			}
			logger.Warn("grading call failed", zap.Int("attempt", attempt), zap.Error(err))
			return res, err
		}
		if progress != nil {
			progress(attempt, host.Status)
		}
		logger.Debug("grading status", zap.Int("attempt", attempt), zap.String("status", host.Status))

		switch host.Status {
		case report.StatusReady:
			gr, err := Normalize(host)
			if err != nil {
				return res, err
			}
			res.Report = gr
			if len(host.Dropped) > 0 {
				logger.Warn("grading response fields did not match the expected types", zap.Strings("fields", host.Dropped))
			}
			logger.Info("grading completed", zap.Int("attempts", attempt), zap.Int("endpoints", len(gr.Endpoints)))
			return res, nil

		case report.StatusError:
			msg := host.StatusMessage
			if msg == "" {
				msg = "Unknown error"
			}
			return res, fmt.Errorf("%w: SSL Labs analysis failed: %s", apperrors.ErrProvider, msg)

		case report.StatusInProgress, report.StatusDNS:
			if attempt >= p.maxAttempts {
				return res, apperrors.ErrAnalysisTimeout
			}
			if err := p.wait(ctx); err != nil {
				return res, fmt.Errorf("%w: %w", apperrors.ErrProvider, err)
			}

		default:
			return res, fmt.Errorf("%w: unexpected analysis status %q", apperrors.ErrProvider, host.Status)
		}
	}
}

func (p *Poller) wait(ctx context.Context) error {
	timer := time.NewTimer(p.interval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
