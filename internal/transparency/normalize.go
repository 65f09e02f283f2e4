package transparency

import (
	"slices"
	"strings"
	"time"

	"github.com/khanhnv2901/certscope/internal/domain/report"
)

// timestampLayouts are tried in order. crt.sh omits the zone and is read as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func parseTimestamp(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// ExtractSubdomains splits a newline separated name list and keeps the
// non-blank entries that contain domain. Entries are returned as found.
func ExtractSubdomains(nameValue, domain string) []string {
	if nameValue == "" {
		return []string{}
	}
	out := []string{}
	for _, name := range strings.Split(nameValue, "\n") {
		if strings.TrimSpace(name) == "" || !strings.Contains(name, domain) {
			continue
		}
		out = append(out, name)
	}
	return out
}

// toRecords converts entries and orders them newest logged first. Records
// whose log timestamp does not parse sort last, keeping their input order.
func toRecords(entries []Entry, domain string, now time.Time) []report.CertificateRecord {
	records := make([]report.CertificateRecord, 0, len(entries))
	for _, e := range entries {
		records = append(records, report.CertificateRecord{
			ID:            e.ID,
			LoggedAt:      e.EntryTimestamp,
			NotBefore:     e.NotBefore,
			NotAfter:      e.NotAfter,
			CommonName:    e.CommonName,
			NameValue:     e.NameValue,
			IssuerCAID:    e.IssuerCAID,
			IssuerName:    e.IssuerName,
			SerialNumber:  e.SerialNumber,
			ResultCount:   e.ResultCount,
			Subdomains:    ExtractSubdomains(e.NameValue, domain),
			LoggedTime:    parseTimestamp(e.EntryTimestamp),
			NotBeforeTime: parseTimestamp(e.NotBefore),
			NotAfterTime:  parseTimestamp(e.NotAfter),
			ScannedAt:     now,
		})
	}

	slices.SortStableFunc(records, func(a, b report.CertificateRecord) int {
		switch {
		case a.LoggedTime.IsZero() && b.LoggedTime.IsZero():
			return 0
		case a.LoggedTime.IsZero():
			return 1
		case b.LoggedTime.IsZero():
			return -1
		}
		return b.LoggedTime.Compare(a.LoggedTime)
	})
	return records
}

// Normalize builds the transparency report for domain from the raw entries,
// evaluating every time-dependent field against now.
func Normalize(domain string, entries []Entry, now time.Time) *report.TransparencyReport {
	now = now.UTC()
	records := toRecords(entries, domain, now)
	stats := summarize(records, now)

	return &report.TransparencyReport{
		Domain:        domain,
		ScanTimestamp: now,
		Summary: report.TransparencySummary{
			TotalCertificates:    len(entries),
			ActiveCertificates:   len(stats.active),
			ExpiredCertificates:  stats.expired,
			RecentCertificates:   len(stats.recent),
			UniqueIssuers:        len(stats.issuers),
			DiscoveredSubdomains: len(stats.subdomains),
		},
		Statistics: report.TransparencyStatistics{
			Issuers:             capped(stats.issuers, maxIssuers),
			Subdomains:          capped(stats.subdomains, maxSubdomains),
			CertificatesByMonth: stats.byMonth,
		},
		Certificates: report.TransparencyCertificates{
			Active: capped(stats.active, maxActive),
			Recent: capped(stats.recent, maxRecent),
			All:    capped(records, maxAll),
		},
	}
}
