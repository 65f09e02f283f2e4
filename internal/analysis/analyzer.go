// Package analysis runs the grading and transparency sources for a domain in
// parallel and merges their outcomes into one report.
package analysis

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/khanhnv2901/certscope/internal/domain/report"
	"github.com/khanhnv2901/certscope/internal/grading"
	"github.com/khanhnv2901/certscope/internal/metrics"
	"github.com/khanhnv2901/certscope/internal/shared/constants"
	apperrors "github.com/khanhnv2901/certscope/internal/shared/errors"
	"github.com/khanhnv2901/certscope/internal/target"
)

// GradeSource drives the grading provider to a completed report.
type GradeSource interface {
	Poll(ctx context.Context, domain string, logger *zap.Logger, progress grading.ProgressFunc) (grading.Result, error)
}

// TransparencySource looks up the certificates logged for a domain.
type TransparencySource interface {
	Fetch(ctx context.Context, domain string, logger *zap.Logger) (*report.TransparencyReport, error)
}

// Source names used in progress events and metrics.
const (
	SourceGrading      = metrics.SourceGrading
	SourceTransparency = metrics.SourceTransparency
)

// Progress is one step reported while an analysis runs. Done marks the end
// of a source, with Err set when it failed.
type Progress struct {
	Source  string
	Attempt int
	Status  string
	Done    bool
	Err     error
}

// ProgressFunc receives progress events. Both sources report from their own
// goroutine, so implementations must be safe for concurrent use. Events may
// still arrive after Analyze returned on deadline.
type ProgressFunc func(Progress)

// Request is one analysis request. Logger is the request-scoped logger and
// defaults to a no-op logger.
type Request struct {
	Domain    string
	RequestID string
	Logger    *zap.Logger
	Progress  ProgressFunc
}

// Options tunes an Analyzer.
type Options struct {
	// Deadline bounds a whole analysis. Defaults to 120s.
	Deadline time.Duration
	Metrics  *metrics.Metrics
}

// Analyzer is safe for concurrent use; it keeps no per-request state.
type Analyzer struct {
	grading      GradeSource
	transparency TransparencySource
	deadline     time.Duration
	metrics      *metrics.Metrics
	tracer       trace.Tracer

	// Now is the clock used for timestamps and durations.
	Now func() time.Time
}

// NewAnalyzer wires the two sources together.
func NewAnalyzer(g GradeSource, t TransparencySource, opts Options) *Analyzer {
	if opts.Deadline <= 0 {
		opts.Deadline = constants.AnalysisDeadline
	}
	return &Analyzer{
		grading:      g,
		transparency: t,
		deadline:     opts.Deadline,
		metrics:      opts.Metrics,
		tracer:       otel.Tracer("github.com/khanhnv2901/certscope/internal/analysis"),
		Now:          time.Now,
	}
}

// Analyze validates the domain, runs both sources concurrently and merges
// their outcomes. A failing source is reported inside the result and never
// affects the other one.
//
// The only errors returned are ErrValidation, ErrOrchestratorTimeout when
// the deadline fires before both sources finish, and the caller's own
// context error. On deadline the sources' context is cancelled and their
// late results are discarded.
func (a *Analyzer) Analyze(ctx context.Context, req Request) (*report.AnalysisResult, error) {
	logger := req.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("domain", req.Domain))

	domain, err := target.Parse(req.Domain)
	if err != nil {
		a.metrics.ObserveAnalysis(metrics.OutcomeInvalid, 0)
		logger.Info("analysis rejected", zap.Error(err))
		return nil, err
	}
	if domain.Registrable != "" {
		logger = logger.With(zap.String("registrable_domain", domain.Registrable))
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("analysis cancelled: %w", err)
	}

	start := a.Now()
	defer a.metrics.TrackInFlight()()

	ctx, span := a.tracer.Start(ctx, "analysis.Analyze", trace.WithAttributes(
		attribute.String("domain", domain.Name),
		attribute.String("request_id", req.RequestID),
	))
	defer span.End()

	logger.Info("analysis started")

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		g        errgroup.Group
		gradeOut report.Outcome[report.GradeReport]
		ctOut    report.Outcome[report.TransparencyReport]
	)

	g.Go(func() error {
		gradeOut = a.runGrading(runCtx, domain.Name, logger, req.Progress)
		return nil
	})
	g.Go(func() error {
		ctOut = a.runTransparency(runCtx, domain.Name, logger, req.Progress)
		return nil
	})

	joined := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(joined)
	}()

	timer := time.NewTimer(a.deadline)
	defer timer.Stop()

	select {
	case <-joined:
	case <-timer.C:
		cancel()
		elapsed := a.Now().Sub(start)
		a.metrics.ObserveAnalysis(metrics.OutcomeTimeout, elapsed)
		logger.Warn("analysis deadline exceeded", zap.Duration("deadline", a.deadline), zap.Duration("elapsed", elapsed))
		span.SetStatus(codes.Error, apperrors.ErrOrchestratorTimeout.Error())
		return nil, apperrors.ErrOrchestratorTimeout
	case <-ctx.Done():
		logger.Warn("analysis cancelled", zap.Error(ctx.Err()))
		span.SetStatus(codes.Error, ctx.Err().Error())
		return nil, fmt.Errorf("analysis cancelled: %w", ctx.Err())
	}

	var gradeReport *report.GradeReport
	if gradeOut.OK() {
		gradeReport = gradeOut.Report
	}
	var ctReport *report.TransparencyReport
	if ctOut.OK() {
		ctReport = ctOut.Report
	}

	end := a.Now()
	elapsed := end.Sub(start)
	result := &report.AnalysisResult{
		Success:      true,
		Domain:       domain.Name,
		Timestamp:    end.UTC(),
		AnalysisTime: fmt.Sprintf("%.2fs", elapsed.Seconds()),
		Duration:     elapsed.Milliseconds(),
		Data: report.SourceData{
			SSLSecurity:             gradeOut,
			CertificateTransparency: ctOut,
		},
		Summary: Summarize(gradeReport, ctReport),
	}

	a.metrics.ObserveAnalysis(metrics.OutcomeCompleted, elapsed)
	span.SetAttributes(
		attribute.Bool("grading.ok", gradeOut.OK()),
		attribute.Bool("transparency.ok", ctOut.OK()),
		attribute.String("overall_grade", result.Summary.OverallGrade),
	)
	logger.Info("analysis completed",
		zap.String("analysis_time", result.AnalysisTime),
		zap.String("overall_grade", result.Summary.OverallGrade),
		zap.Bool("grading_ok", gradeOut.OK()),
		zap.Bool("transparency_ok", ctOut.OK()),
	)
	return result, nil
}

func (a *Analyzer) runGrading(ctx context.Context, domain string, logger *zap.Logger, progress ProgressFunc) report.Outcome[report.GradeReport] {
	logger = logger.With(zap.String("source", SourceGrading))

	var onAttempt grading.ProgressFunc
	if progress != nil {
		onAttempt = func(attempt int, status string) {
			progress(Progress{Source: SourceGrading, Attempt: attempt, Status: status})
		}
	}

	res, err := a.grading.Poll(ctx, domain, logger, onAttempt)
	a.metrics.ObservePollAttempts(res.Attempts)
	if progress != nil {
		progress(Progress{Source: SourceGrading, Attempt: res.Attempts, Done: true, Err: err})
	}
	if err != nil {
		a.metrics.IncrementSourceFailure(SourceGrading, apperrors.Kind(err))
		logger.Warn("source failed", zap.Error(err))
		return report.Failed[report.GradeReport](err)
	}
	return report.Succeeded(res.Report)
}

func (a *Analyzer) runTransparency(ctx context.Context, domain string, logger *zap.Logger, progress ProgressFunc) report.Outcome[report.TransparencyReport] {
	logger = logger.With(zap.String("source", SourceTransparency))

	rep, err := a.transparency.Fetch(ctx, domain, logger)
	if progress != nil {
		progress(Progress{Source: SourceTransparency, Attempt: 1, Done: true, Err: err})
	}
	if err != nil {
		a.metrics.IncrementSourceFailure(SourceTransparency, apperrors.Kind(err))
		logger.Warn("source failed", zap.Error(err))
		return report.Failed[report.TransparencyReport](err)
	}
	return report.Succeeded(rep)
}
