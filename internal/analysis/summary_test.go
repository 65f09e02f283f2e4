package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/khanhnv2901/certscope/internal/domain/report"
)

func endpoint(grade string, d *report.EndpointDetail) report.Endpoint {
	return report.Endpoint{IPAddress: "192.0.2.1", Grade: grade, Details: d}
}

func secureDetails() *report.EndpointDetail {
	return &report.EndpointDetail{ForwardSecrecy: 4, OcspStapling: true}
}

func TestSummarizeOverallGrade(t *testing.T) {
	tests := []struct {
		name   string
		grades []string
		want   string
	}{
		{name: "smallest wins", grades: []string{"B", "A", "N/A"}, want: "A"},
		{name: "plus sorts after bare letter", grades: []string{"A+", "A"}, want: "A"},
		{name: "only unavailable", grades: []string{"N/A", ""}, want: "Unknown"},
		{name: "no endpoints", grades: nil, want: "Unknown"},
		{name: "failing grade", grades: []string{"T", "F"}, want: "F"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gr := &report.GradeReport{}
			for _, g := range tt.grades {
				gr.Endpoints = append(gr.Endpoints, endpoint(g, nil))
			}
			assert.Equal(t, tt.want, Summarize(gr, nil).OverallGrade)
		})
	}
}

func TestSummarizeIssuesInScanOrderPerEndpoint(t *testing.T) {
	vulnerable := &report.EndpointDetail{
		Heartbleed:      true,
		Poodle:          true,
		Freak:           true,
		Logjam:          true,
		DrownVulnerable: true,
		SupportsRc4:     true,
	}
	gr := &report.GradeReport{Endpoints: []report.Endpoint{
		endpoint("F", vulnerable),
		endpoint("A", secureDetails()),
		endpoint("F", &report.EndpointDetail{Heartbleed: true, ForwardSecrecy: 1, OcspStapling: true}),
		endpoint("", nil),
	}}

	s := Summarize(gr, nil)

	assert.Equal(t, []string{
		"Heartbleed vulnerability detected",
		"POODLE vulnerability detected",
		"FREAK vulnerability detected",
		"Logjam vulnerability detected",
		"DROWN vulnerability detected",
		"RC4 cipher support detected",
		"Heartbleed vulnerability detected",
	}, s.SecurityIssues)
	assert.Equal(t, []string{"Enable Perfect Forward Secrecy", "Enable OCSP Stapling"}, s.Recommendations)
}

func TestSummarizeNoCrossEndpointDedupe(t *testing.T) {
	gr := &report.GradeReport{Endpoints: []report.Endpoint{
		endpoint("B", &report.EndpointDetail{}),
		endpoint("B", &report.EndpointDetail{}),
	}}

	s := Summarize(gr, nil)

	assert.Equal(t, []string{
		"Enable Perfect Forward Secrecy",
		"Enable OCSP Stapling",
		"Enable Perfect Forward Secrecy",
		"Enable OCSP Stapling",
	}, s.Recommendations)
	assert.Empty(t, s.SecurityIssues)
}

func TestSummarizeCertificateStatus(t *testing.T) {
	tests := []struct {
		name       string
		ct         *report.TransparencyReport
		wantStatus string
		wantRecs   []string
	}{
		{name: "no transparency data", ct: nil, wantStatus: "Unknown", wantRecs: []string{}},
		{
			name:       "active certificates",
			ct:         &report.TransparencyReport{Summary: report.TransparencySummary{ActiveCertificates: 3, DiscoveredSubdomains: 10}},
			wantStatus: "Active",
			wantRecs:   []string{},
		},
		{
			name:       "no active certificates",
			ct:         &report.TransparencyReport{Summary: report.TransparencySummary{DiscoveredSubdomains: 11}},
			wantStatus: "No active certificates",
			wantRecs:   []string{"Review exposed subdomains for security"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Summarize(nil, tt.ct)
			assert.Equal(t, tt.wantStatus, s.CertificateStatus)
			assert.Equal(t, tt.wantRecs, s.Recommendations)
			assert.Equal(t, "Unknown", s.OverallGrade)
		})
	}
}

func TestSummarizeSubdomainRecommendationComesLast(t *testing.T) {
	gr := &report.GradeReport{Endpoints: []report.Endpoint{endpoint("A", &report.EndpointDetail{ForwardSecrecy: 2})}}
	ct := &report.TransparencyReport{Summary: report.TransparencySummary{ActiveCertificates: 1, DiscoveredSubdomains: 25}}

	s := Summarize(gr, ct)

	assert.Equal(t, []string{"Enable OCSP Stapling", "Review exposed subdomains for security"}, s.Recommendations)
	assert.Equal(t, "A", s.OverallGrade)
	assert.Equal(t, "Active", s.CertificateStatus)
}
