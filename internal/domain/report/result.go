package report

import (
	"encoding/json"
	"time"

	apperrors "github.com/khanhnv2901/certscope/internal/shared/errors"
)

// AnalysisResult is the consolidated report for one domain.
type AnalysisResult struct {
	Success      bool            `json:"success"`
	Domain       string          `json:"domain"`
	Timestamp    time.Time       `json:"timestamp"`
	AnalysisTime string          `json:"analysisTime"`
	Duration     int64           `json:"duration"`
	Data         SourceData      `json:"data"`
	Summary      SecuritySummary `json:"summary"`
}

// SourceData holds the per-source outcomes.
type SourceData struct {
	SSLSecurity             Outcome[GradeReport]        `json:"sslSecurity"`
	CertificateTransparency Outcome[TransparencyReport] `json:"certificateTransparency"`
}

// SecuritySummary is derived from both sources.
type SecuritySummary struct {
	OverallGrade      string   `json:"overallGrade"`
	SecurityIssues    []string `json:"securityIssues"`
	Recommendations   []string `json:"recommendations"`
	CertificateStatus string   `json:"certificateStatus"`
}

// Certificate status values.
const (
	CertificateStatusActive   = "Active"
	CertificateStatusNone     = "No active certificates"
	CertificateStatusUnknown  = "Unknown"
	OverallGradeUnknown       = "Unknown"
	errorDescriptorStatusFail = "failed"
)

// ErrorDescriptor replaces a source report when that source failed.
type ErrorDescriptor struct {
	Status string `json:"status"`
	Kind   string `json:"kind"`
	Error  string `json:"error"`
}

// Describe converts a source error into its descriptor.
func Describe(err error) *ErrorDescriptor {
	if err == nil {
		return nil
	}
	return &ErrorDescriptor{
		Status: errorDescriptorStatusFail,
		Kind:   apperrors.Kind(err),
		Error:  err.Error(),
	}
}

// Outcome is either a source report or the descriptor of its failure.
type Outcome[T any] struct {
	Report  *T
	Failure *ErrorDescriptor
}

// Succeeded wraps a source report.
func Succeeded[T any](r *T) Outcome[T] {
	return Outcome[T]{Report: r}
}

// Failed wraps a source error.
func Failed[T any](err error) Outcome[T] {
	return Outcome[T]{Failure: Describe(err)}
}

// OK reports whether the source produced a report.
func (o Outcome[T]) OK() bool {
	return o.Failure == nil && o.Report != nil
}

// MarshalJSON encodes the report, or the failure descriptor in its place.
func (o Outcome[T]) MarshalJSON() ([]byte, error) {
	if o.Failure != nil {
		return json.Marshal(o.Failure)
	}
	return json.Marshal(o.Report)
}
