package errors

import "errors"

// Request-level errors. These are the only failures that reach the caller
// of an analysis as a hard error.
var (
	ErrValidation          = errors.New("validation error")
	ErrInvalidDomain       = errors.New("invalid domain format")
	ErrMissingDomain       = errors.New("domain parameter is required")
	ErrOrchestratorTimeout = errors.New("analysis timeout - request took too long")
)

// Source errors. They are captured per source and embedded in the result.
var (
	// Grading provider
	ErrAnalysisTimeout = errors.New("SSL analysis timeout - analysis taking too long")
	ErrProvider        = errors.New("SSL Labs API error")

	// Certificate transparency provider
	ErrTransparencyTimeout = errors.New("certificate transparency lookup timeout")
	ErrTransparency        = errors.New("certificate transparency API error")
)

// Kind values are stable identifiers exposed in per-source error descriptors.
const (
	KindAnalysisTimeout     = "analysis_timeout"
	KindProvider            = "provider_error"
	KindTransparencyTimeout = "transparency_timeout"
	KindTransparency        = "transparency_error"
	KindInternal            = "internal"
)

// Kind maps an error onto its stable kind string.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAnalysisTimeout):
		return KindAnalysisTimeout
	case errors.Is(err, ErrProvider):
		return KindProvider
	case errors.Is(err, ErrTransparencyTimeout):
		return KindTransparencyTimeout
	case errors.Is(err, ErrTransparency):
		return KindTransparency
	default:
		return KindInternal
	}
}
