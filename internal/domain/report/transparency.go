package report

import (
	"encoding/json"
	"math"
	"time"
)

// TransparencyReport aggregates the certificate transparency log entries
// observed for a domain and its subdomains.
type TransparencyReport struct {
	Domain        string                   `json:"domain"`
	ScanTimestamp time.Time                `json:"scanTimestamp"`
	Summary       TransparencySummary      `json:"summary"`
	Statistics    TransparencyStatistics   `json:"statistics"`
	Certificates  TransparencyCertificates `json:"certificates"`
}

// TransparencySummary holds the uncapped counters.
type TransparencySummary struct {
	TotalCertificates    int `json:"totalCertificates"`
	ActiveCertificates   int `json:"activeCertificates"`
	ExpiredCertificates  int `json:"expiredCertificates"`
	RecentCertificates   int `json:"recentCertificates"`
	UniqueIssuers        int `json:"uniqueIssuers"`
	DiscoveredSubdomains int `json:"discoveredSubdomains"`
}

// TransparencyStatistics holds the capped aggregate views.
type TransparencyStatistics struct {
	Issuers             []string     `json:"issuers"`
	Subdomains          []string     `json:"subdomains"`
	CertificatesByMonth []MonthCount `json:"certificatesByMonth"`
}

// MonthCount is one bucket of the issuance histogram. Month is "YYYY-MM" in UTC.
type MonthCount struct {
	Month string `json:"month"`
	Count int    `json:"count"`
}

// TransparencyCertificates holds the capped certificate slices, newest logged first.
type TransparencyCertificates struct {
	Active []CertificateRecord `json:"active"`
	Recent []CertificateRecord `json:"recent"`
	All    []CertificateRecord `json:"all"`
}

// CertificateRecord is one logged certificate.
//
// The upstream timestamp strings are kept verbatim. The parsed instants are
// zero when the upstream value could not be parsed; such a record is neither
// active nor expired and has no day counts.
type CertificateRecord struct {
	ID           int64    `json:"id"`
	LoggedAt     string   `json:"loggedAt"`
	NotBefore    string   `json:"notBefore"`
	NotAfter     string   `json:"notAfter"`
	CommonName   string   `json:"commonName"`
	NameValue    string   `json:"nameValue"`
	IssuerCAID   int64    `json:"issuerCaId"`
	IssuerName   string   `json:"issuerName"`
	SerialNumber string   `json:"serialNumber"`
	ResultCount  *int     `json:"resultCount"`
	Subdomains   []string `json:"subdomains"`

	LoggedTime    time.Time `json:"-"`
	NotBeforeTime time.Time `json:"-"`
	NotAfterTime  time.Time `json:"-"`
	// ScannedAt is the instant the derived fields are evaluated against.
	ScannedAt time.Time `json:"-"`
}

// IsExpired reports whether the scan instant is past the end of the validity window.
func (r CertificateRecord) IsExpired() bool {
	if r.NotAfterTime.IsZero() {
		return false
	}
	return r.ScannedAt.After(r.NotAfterTime)
}

// IsActive reports whether the scan instant falls inside the validity window, bounds included.
func (r CertificateRecord) IsActive() bool {
	if r.NotBeforeTime.IsZero() || r.NotAfterTime.IsZero() {
		return false
	}
	return !r.ScannedAt.Before(r.NotBeforeTime) && !r.ScannedAt.After(r.NotAfterTime)
}

// DaysUntilExpiry returns the whole days left until notAfter, rounded up.
// It is negative for expired certificates and nil when notAfter is unknown.
func (r CertificateRecord) DaysUntilExpiry() *int {
	if r.NotAfterTime.IsZero() {
		return nil
	}
	return ceilDays(r.NotAfterTime.Sub(r.ScannedAt))
}

// ValidityPeriod returns the length of the validity window in days, rounded up.
func (r CertificateRecord) ValidityPeriod() *int {
	if r.NotBeforeTime.IsZero() || r.NotAfterTime.IsZero() {
		return nil
	}
	return ceilDays(r.NotAfterTime.Sub(r.NotBeforeTime))
}

func ceilDays(d time.Duration) *int {
	days := int(math.Ceil(float64(d) / float64(24*time.Hour)))
	return &days
}

type certificateRecordFields CertificateRecord

// MarshalJSON emits the stored fields followed by the derived ones.
func (r CertificateRecord) MarshalJSON() ([]byte, error) {
	subdomains := r.Subdomains
	if subdomains == nil {
		subdomains = []string{}
	}
	fields := certificateRecordFields(r)
	fields.Subdomains = subdomains
	return json.Marshal(struct {
		certificateRecordFields
		IsExpired       bool `json:"isExpired"`
		IsActive        bool `json:"isActive"`
		DaysUntilExpiry *int `json:"daysUntilExpiry"`
		ValidityPeriod  *int `json:"validityPeriod"`
	}{
		certificateRecordFields: fields,
		IsExpired:               r.IsExpired(),
		IsActive:                r.IsActive(),
		DaysUntilExpiry:         r.DaysUntilExpiry(),
		ValidityPeriod:          r.ValidityPeriod(),
	})
}
