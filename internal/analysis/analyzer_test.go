package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/khanhnv2901/certscope/internal/domain/report"
	"github.com/khanhnv2901/certscope/internal/grading"
	"github.com/khanhnv2901/certscope/internal/metrics"
	apperrors "github.com/khanhnv2901/certscope/internal/shared/errors"
)

type fakeGrading struct {
	report   *report.GradeReport
	err      error
	attempts int
	block    bool

	mu        sync.Mutex
	calls     int
	cancelled chan struct{}
}

func (f *fakeGrading) Poll(ctx context.Context, domain string, logger *zap.Logger, progress grading.ProgressFunc) (grading.Result, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	if f.block {
		<-ctx.Done()
		if f.cancelled != nil {
			close(f.cancelled)
		}
		return grading.Result{Attempts: 1}, fmt.Errorf("%w: %w", apperrors.ErrProvider, ctx.Err())
	}
	for i := 1; i <= f.attempts; i++ {
		if progress != nil {
			progress(i, report.StatusInProgress)
		}
	}
	return grading.Result{Report: f.report, Attempts: f.attempts}, f.err
}

func (f *fakeGrading) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeTransparency struct {
	report *report.TransparencyReport
	err    error
	block  bool
	calls  int
}

func (f *fakeTransparency) Fetch(ctx context.Context, domain string, logger *zap.Logger) (*report.TransparencyReport, error) {
	f.calls++
	if f.block {
		<-ctx.Done()
		return nil, apperrors.ErrTransparencyTimeout
	}
	return f.report, f.err
}

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func gradeReport() *report.GradeReport {
	return &report.GradeReport{
		Host:     "example.com",
		Port:     443,
		Protocol: "HTTP",
		Status:   report.StatusReady,
		Endpoints: []report.Endpoint{
			{IPAddress: "192.0.2.1", Grade: "B", Details: &report.EndpointDetail{Poodle: true, OcspStapling: true, ForwardSecrecy: 2}},
			{IPAddress: "192.0.2.2", Grade: "A", Details: &report.EndpointDetail{}},
			{IPAddress: "192.0.2.3", Grade: "N/A"},
		},
		Certs: []report.CertificateInfo{},
	}
}

func ctReport() *report.TransparencyReport {
	return &report.TransparencyReport{
		Domain:        "example.com",
		ScanTimestamp: fixedNow,
		Summary:       report.TransparencySummary{TotalCertificates: 4, ActiveCertificates: 2, DiscoveredSubdomains: 12},
	}
}

func newTestAnalyzer(g GradeSource, ct TransparencySource, opts Options) *Analyzer {
	a := NewAnalyzer(g, ct, opts)
	a.Now = func() time.Time { return fixedNow }
	return a
}

func TestAnalyzeBothSucceed(t *testing.T) {
	m := metrics.New()
	a := newTestAnalyzer(&fakeGrading{report: gradeReport(), attempts: 3}, &fakeTransparency{report: ctReport()}, Options{Metrics: m})

	res, err := a.Analyze(context.Background(), Request{Domain: "example.com", Logger: zaptest.NewLogger(t)})

	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "example.com", res.Domain)
	assert.Equal(t, "0.00s", res.AnalysisTime)
	assert.True(t, res.Data.SSLSecurity.OK())
	assert.True(t, res.Data.CertificateTransparency.OK())

	assert.Equal(t, "A", res.Summary.OverallGrade)
	assert.Equal(t, []string{"POODLE vulnerability detected"}, res.Summary.SecurityIssues)
	assert.Equal(t, []string{
		"Enable Perfect Forward Secrecy",
		"Enable OCSP Stapling",
		"Review exposed subdomains for security",
	}, res.Summary.Recommendations)
	assert.Equal(t, "Active", res.Summary.CertificateStatus)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.AnalysesTotal.WithLabelValues(metrics.OutcomeCompleted)))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.InFlight))
}

func TestAnalyzeIsolatesSourceFailures(t *testing.T) {
	t.Run("grading fails", func(t *testing.T) {
		g := &fakeGrading{err: apperrors.ErrAnalysisTimeout, attempts: 24}
		a := newTestAnalyzer(g, &fakeTransparency{report: ctReport()}, Options{})

		res, err := a.Analyze(context.Background(), Request{Domain: "example.com"})

		require.NoError(t, err)
		assert.True(t, res.Success)
		require.NotNil(t, res.Data.SSLSecurity.Failure)
		assert.Equal(t, "failed", res.Data.SSLSecurity.Failure.Status)
		assert.Equal(t, "analysis_timeout", res.Data.SSLSecurity.Failure.Kind)
		assert.True(t, res.Data.CertificateTransparency.OK())
		assert.Equal(t, ctReport(), res.Data.CertificateTransparency.Report)
		assert.Equal(t, "Unknown", res.Summary.OverallGrade)
		assert.Equal(t, "Active", res.Summary.CertificateStatus)
	})

	t.Run("transparency fails", func(t *testing.T) {
		ct := &fakeTransparency{err: fmt.Errorf("%w: Request failed with status code 502", apperrors.ErrTransparency)}
		a := newTestAnalyzer(&fakeGrading{report: gradeReport(), attempts: 1}, ct, Options{})

		res, err := a.Analyze(context.Background(), Request{Domain: "example.com"})

		require.NoError(t, err)
		assert.Equal(t, gradeReport(), res.Data.SSLSecurity.Report)
		require.NotNil(t, res.Data.CertificateTransparency.Failure)
		assert.Equal(t, "transparency_error", res.Data.CertificateTransparency.Failure.Kind)
		assert.Equal(t, "Unknown", res.Summary.CertificateStatus)
		assert.Equal(t, "A", res.Summary.OverallGrade)
	})

	t.Run("both fail", func(t *testing.T) {
		m := metrics.New()
		a := newTestAnalyzer(
			&fakeGrading{err: fmt.Errorf("%w: SSL Labs analysis failed: Unknown error", apperrors.ErrProvider), attempts: 1},
			&fakeTransparency{err: apperrors.ErrTransparencyTimeout},
			Options{Metrics: m},
		)

		res, err := a.Analyze(context.Background(), Request{Domain: "example.com"})

		require.NoError(t, err)
		assert.True(t, res.Success)

		raw, err := json.Marshal(res)
		require.NoError(t, err)
		var decoded map[string]any
		require.NoError(t, json.Unmarshal(raw, &decoded))
		data := decoded["data"].(map[string]any)
		assert.Equal(t, map[string]any{
			"status": "failed",
			"kind":   "provider_error",
			"error":  "SSL Labs API error: SSL Labs analysis failed: Unknown error",
		}, data["sslSecurity"])
		assert.Equal(t, map[string]any{
			"status": "failed",
			"kind":   "transparency_timeout",
			"error":  "certificate transparency lookup timeout",
		}, data["certificateTransparency"])

		assert.Equal(t, float64(1), testutil.ToFloat64(m.SourceFailures.WithLabelValues(SourceGrading, "provider_error")))
		assert.Equal(t, float64(1), testutil.ToFloat64(m.SourceFailures.WithLabelValues(SourceTransparency, "transparency_timeout")))
	})
}

func TestAnalyzeRejectsInvalidDomain(t *testing.T) {
	g := &fakeGrading{}
	ct := &fakeTransparency{}
	a := newTestAnalyzer(g, ct, Options{})

	res, err := a.Analyze(context.Background(), Request{Domain: "not a domain"})

	require.ErrorIs(t, err, apperrors.ErrValidation)
	require.ErrorIs(t, err, apperrors.ErrInvalidDomain)
	assert.Nil(t, res)
	assert.Zero(t, g.Calls())
	assert.Zero(t, ct.calls)
}

func TestAnalyzeDeadline(t *testing.T) {
	g := &fakeGrading{block: true, cancelled: make(chan struct{})}
	a := newTestAnalyzer(g, &fakeTransparency{block: true}, Options{Deadline: 30 * time.Millisecond})

	start := time.Now()
	res, err := a.Analyze(context.Background(), Request{Domain: "example.com", Logger: zaptest.NewLogger(t)})

	require.ErrorIs(t, err, apperrors.ErrOrchestratorTimeout)
	assert.Nil(t, res)
	assert.Less(t, time.Since(start), 2*time.Second)

	select {
	case <-g.cancelled:
	case <-time.After(2 * time.Second):
		t.Fatal("grading source was not cancelled after the deadline")
	}
}

func TestAnalyzeDeadlineWithOneSlowSource(t *testing.T) {
	a := newTestAnalyzer(&fakeGrading{block: true}, &fakeTransparency{report: ctReport()}, Options{Deadline: 30 * time.Millisecond})

	_, err := a.Analyze(context.Background(), Request{Domain: "example.com"})

	require.ErrorIs(t, err, apperrors.ErrOrchestratorTimeout)
}

func TestAnalyzeCallerCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	a := newTestAnalyzer(&fakeGrading{block: true}, &fakeTransparency{block: true}, Options{Deadline: time.Minute})

	_, err := a.Analyze(ctx, Request{Domain: "example.com"})

	require.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, apperrors.ErrOrchestratorTimeout)
}

func TestAnalyzeIsIdempotent(t *testing.T) {
	a := newTestAnalyzer(&fakeGrading{report: gradeReport(), attempts: 2}, &fakeTransparency{report: ctReport()}, Options{})

	first, err := a.Analyze(context.Background(), Request{Domain: "example.com"})
	require.NoError(t, err)
	second, err := a.Analyze(context.Background(), Request{Domain: "example.com"})
	require.NoError(t, err)

	first.Timestamp, second.Timestamp = time.Time{}, time.Time{}
	first.Duration, second.Duration = 0, 0
	first.AnalysisTime, second.AnalysisTime = "", ""

	a1, err := json.Marshal(first)
	require.NoError(t, err)
	a2, err := json.Marshal(second)
	require.NoError(t, err)
	assert.JSONEq(t, string(a1), string(a2))
}

func TestAnalyzeReportsProgress(t *testing.T) {
	var (
		mu     sync.Mutex
		events []Progress
	)
	a := newTestAnalyzer(&fakeGrading{report: gradeReport(), attempts: 3}, &fakeTransparency{report: ctReport()}, Options{})

	_, err := a.Analyze(context.Background(), Request{
		Domain: "example.com",
		Progress: func(p Progress) {
			mu.Lock()
			events = append(events, p)
			mu.Unlock()
		},
	})
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()

	var gradingAttempts, done int
	for _, e := range events {
		if e.Done {
			done++
			assert.NoError(t, e.Err)
			continue
		}
		if e.Source == SourceGrading {
			gradingAttempts++
		}
	}
	assert.Equal(t, 3, gradingAttempts)
	assert.Equal(t, 2, done)
}
