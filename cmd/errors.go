package cmd

import (
	"errors"
	"fmt"

	apperrors "github.com/khanhnv2901/certscope/internal/shared/errors"
)

// Process exit codes.
const (
	exitFailure = 1
	exitInvalid = 2
	exitTimeout = 3
)

// AnalysisFailedError indicates an analysis that produced no result.
type AnalysisFailedError struct {
	Domain string
	Err    error
}

func (e *AnalysisFailedError) Error() string {
	return fmt.Sprintf("analysis of %s failed: %v", e.Domain, e.Err)
}

func (e *AnalysisFailedError) Unwrap() error {
	return e.Err
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, apperrors.ErrValidation):
		return exitInvalid
	case errors.Is(err, apperrors.ErrOrchestratorTimeout):
		return exitTimeout
	default:
		return exitFailure
	}
}
