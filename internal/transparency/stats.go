package transparency

import (
	"slices"
	"time"

	"github.com/khanhnv2901/certscope/internal/domain/report"
	"github.com/khanhnv2901/certscope/internal/shared/constants"
)

const (
	maxIssuers    = constants.MaxIssuers
	maxSubdomains = constants.MaxSubdomains
	maxActive     = constants.MaxActiveCertificates
	maxRecent     = constants.MaxRecentCertificates
	maxAll        = constants.MaxAllCertificates
	maxMonths     = constants.MaxHistogramMonths
)

type statistics struct {
	active     []report.CertificateRecord
	recent     []report.CertificateRecord
	expired    int
	issuers    []string
	subdomains []string
	byMonth    []report.MonthCount
}

// summarize walks the sorted records once. Issuers and subdomains are
// deduplicated by exact string in first-appearance order.
func summarize(records []report.CertificateRecord, now time.Time) statistics {
	st := statistics{
		active:     []report.CertificateRecord{},
		recent:     []report.CertificateRecord{},
		issuers:    []string{},
		subdomains: []string{},
	}
	recentSince := now.AddDate(0, 0, -constants.RecentCertificateDays)
	seenIssuer := make(map[string]struct{})
	seenSubdomain := make(map[string]struct{})
	months := make(map[string]int)

	for _, r := range records {
		if r.IsActive() {
			st.active = append(st.active, r)
		}
		if r.IsExpired() {
			st.expired++
		}
		if !r.LoggedTime.IsZero() {
			if r.LoggedTime.After(recentSince) {
				st.recent = append(st.recent, r)
			}
			months[r.LoggedTime.UTC().Format("2006-01")]++
		}

		if _, ok := seenIssuer[r.IssuerName]; !ok {
			seenIssuer[r.IssuerName] = struct{}{}
			st.issuers = append(st.issuers, r.IssuerName)
		}
		for _, sub := range r.Subdomains {
			if _, ok := seenSubdomain[sub]; ok {
				continue
			}
			seenSubdomain[sub] = struct{}{}
			st.subdomains = append(st.subdomains, sub)
		}
	}

	st.byMonth = histogram(months)
	return st
}

// histogram orders the monthly buckets newest first and keeps the latest ones.
func histogram(months map[string]int) []report.MonthCount {
	keys := make([]string, 0, len(months))
	for k := range months {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	slices.Reverse(keys)

	out := make([]report.MonthCount, 0, min(len(keys), maxMonths))
	for _, k := range capped(keys, maxMonths) {
		out = append(out, report.MonthCount{Month: k, Count: months[k]})
	}
	return out
}

func capped[T any](s []T, n int) []T {
	if len(s) > n {
		return s[:n]
	}
	return s
}
