package constants

import "time"

// Grading provider polling.
const (
	// GradingPollInterval is the wait between two in-progress polls.
	GradingPollInterval = 5 * time.Second
	// GradingMaxAttempts caps the number of poll calls per analysis.
	GradingMaxAttempts = 24
	// GradingRequestTimeout bounds a single call to the grading provider.
	GradingRequestTimeout = 120 * time.Second
)

// Certificate transparency lookup.
const (
	TransparencyTimeout   = 15 * time.Second
	TransparencyUserAgent = "SSL-Checker-API/1.0"
	// RecentCertificateDays selects certificates logged in the last 30 days.
	RecentCertificateDays = 30
)

// AnalysisDeadline is the overall per-request circuit breaker.
const AnalysisDeadline = 120 * time.Second

// List caps applied after sorting.
const (
	MaxCipherSuites       = 10
	MaxClientSimulations  = 5
	MaxIssuers            = 10
	MaxSubdomains         = 20
	MaxActiveCertificates = 10
	MaxRecentCertificates = 10
	MaxAllCertificates    = 50
	MaxHistogramMonths    = 12
)

// SubdomainReviewThreshold triggers the subdomain exposure recommendation.
const SubdomainReviewThreshold = 10

// GradeUnavailable is the endpoint grade sentinel excluded from the overall grade.
const GradeUnavailable = "N/A"
