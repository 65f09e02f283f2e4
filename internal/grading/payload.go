package grading

import (
	"bytes"
	"encoding/json"

	"github.com/khanhnv2901/certscope/internal/domain/report"
)

// Host is the grading provider's analyze response as received on the wire.
type Host struct {
	Host            string                   `json:"host"`
	Port            int                      `json:"port"`
	Protocol        string                   `json:"protocol"`
	IsPublic        bool                     `json:"isPublic"`
	Status          string                   `json:"status"`
	StatusMessage   string                   `json:"statusMessage"`
	StartTime       *int64                   `json:"startTime"`
	TestTime        *int64                   `json:"testTime"`
	EngineVersion   *string                  `json:"engineVersion"`
	CriteriaVersion *string                  `json:"criteriaVersion"`
	Endpoints       []Endpoint               `json:"endpoints"`
	Certs           []report.CertificateInfo `json:"certs"`

	// Dropped lists the fields reset because their JSON type did not match.
	Dropped []string `json:"-"`
}

// Endpoint is one endpoint entry of the analyze response.
type Endpoint struct {
	report.Endpoint
	Details *Details `json:"details"`
}

// Details is the endpoint detail block. Suites is kept raw because API v2
// sends a single object and API v3 sends one object per protocol.
type Details struct {
	report.EndpointDetail
	Suites json.RawMessage `json:"suites"`
}

// apiErrors is the body returned by the provider alongside a non-2xx status.
type apiErrors struct {
	Errors []struct {
		Field   string `json:"field"`
		Message string `json:"message"`
	} `json:"errors"`
}

// decodeSuites accepts both suite shapes and merges the v3 per-protocol
// lists in order.
func decodeSuites(raw json.RawMessage) (*report.SuiteList, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	if raw[0] != '[' {
		var single report.SuiteList
		if err := json.Unmarshal(raw, &single); err != nil {
			return nil, err
		}
		return &single, nil
	}

	var perProtocol []report.SuiteList
	if err := json.Unmarshal(raw, &perProtocol); err != nil {
		return nil, err
	}
	if len(perProtocol) == 0 {
		return nil, nil
	}

	merged := &report.SuiteList{
		Preference: perProtocol[0].Preference,
		List:       []report.CipherSuite{},
	}
	if len(perProtocol) == 1 {
		merged.Protocol = perProtocol[0].Protocol
	}
	for _, s := range perProtocol {
		merged.List = append(merged.List, s.List...)
	}
	return merged, nil
}
