package analysis

import (
	"github.com/khanhnv2901/certscope/internal/domain/report"
	"github.com/khanhnv2901/certscope/internal/shared/constants"
)

// Security issue and recommendation messages.
const (
	IssueHeartbleed = "Heartbleed vulnerability detected"
	IssuePoodle     = "POODLE vulnerability detected"
	IssueFreak      = "FREAK vulnerability detected"
	IssueLogjam     = "Logjam vulnerability detected"
	IssueDrown      = "DROWN vulnerability detected"
	IssueRC4        = "RC4 cipher support detected"

	RecommendForwardSecrecy   = "Enable Perfect Forward Secrecy"
	RecommendOCSPStapling     = "Enable OCSP Stapling"
	RecommendReviewSubdomains = "Review exposed subdomains for security"
)

// Summarize derives the security summary from whichever source reports are
// available. A nil report means that source failed.
//
// The overall grade is the lexicographically smallest endpoint grade, which
// approximates the best grade. Issues and recommendations are reported once
// per affected endpoint and are not deduplicated across endpoints.
func Summarize(grade *report.GradeReport, ct *report.TransparencyReport) report.SecuritySummary {
	summary := report.SecuritySummary{
		OverallGrade:      report.OverallGradeUnknown,
		SecurityIssues:    []string{},
		Recommendations:   []string{},
		CertificateStatus: report.CertificateStatusUnknown,
	}

	if grade != nil {
		best := ""
		for _, ep := range grade.Endpoints {
			if ep.Grade == "" || ep.Grade == constants.GradeUnavailable {
				continue
			}
			if best == "" || ep.Grade < best {
				best = ep.Grade
			}
		}
		if best != "" {
			summary.OverallGrade = best
		}

		for _, ep := range grade.Endpoints {
			if ep.Details == nil {
				continue
			}
			summary.SecurityIssues = append(summary.SecurityIssues, endpointIssues(ep.Details)...)
			if !ep.Details.HasForwardSecrecy() {
				summary.Recommendations = append(summary.Recommendations, RecommendForwardSecrecy)
			}
			if !ep.Details.OcspStapling {
				summary.Recommendations = append(summary.Recommendations, RecommendOCSPStapling)
			}
		}
	}

	if ct != nil {
		summary.CertificateStatus = report.CertificateStatusNone
		if ct.Summary.ActiveCertificates > 0 {
			summary.CertificateStatus = report.CertificateStatusActive
		}
		if ct.Summary.DiscoveredSubdomains > constants.SubdomainReviewThreshold {
			summary.Recommendations = append(summary.Recommendations, RecommendReviewSubdomains)
		}
	}

	return summary
}

func endpointIssues(d *report.EndpointDetail) []string {
	checks := []struct {
		hit   bool
		issue string
	}{
		{d.Heartbleed, IssueHeartbleed},
		{d.Poodle, IssuePoodle},
		{d.Freak, IssueFreak},
		{d.Logjam, IssueLogjam},
		{d.DrownVulnerable, IssueDrown},
		{d.SupportsRc4, IssueRC4},
	}

	var issues []string
	for _, c := range checks {
		if c.hit {
			issues = append(issues, c.issue)
		}
	}
	return issues
}
