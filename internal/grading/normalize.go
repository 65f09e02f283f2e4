package grading

import (
	"fmt"

	"github.com/khanhnv2901/certscope/internal/domain/report"
	"github.com/khanhnv2901/certscope/internal/shared/constants"
	apperrors "github.com/khanhnv2901/certscope/internal/shared/errors"
)

const (
	defaultPort     = 443
	defaultProtocol = "HTTP"
)

// Normalize maps a provider response onto a GradeReport. Missing flags stay
// false, missing lists become empty and the suite and simulation lists are
// truncated in input order. Suites in neither known shape are left null and
// recorded in h.Dropped.
func Normalize(h *Host) (*report.GradeReport, error) {
	if h == nil {
		return nil, fmt.Errorf("%w: empty analysis response", apperrors.ErrProvider)
	}

	out := &report.GradeReport{
		Host:            h.Host,
		Port:            h.Port,
		Protocol:        h.Protocol,
		IsPublic:        h.IsPublic,
		Status:          h.Status,
		StartTime:       h.StartTime,
		TestTime:        h.TestTime,
		EngineVersion:   h.EngineVersion,
		CriteriaVersion: h.CriteriaVersion,
		Endpoints:       make([]report.Endpoint, 0, len(h.Endpoints)),
		Certs:           make([]report.CertificateInfo, 0, len(h.Certs)),
	}
	if out.Port == 0 {
		out.Port = defaultPort
	}
	if out.Protocol == "" {
		out.Protocol = defaultProtocol
	}

	for i, ep := range h.Endpoints {
		endpoint := ep.Endpoint
		endpoint.Details = nil
		if ep.Details != nil {
			details, err := normalizeDetails(ep.Details)
			if err != nil {
				h.Dropped = append(h.Dropped, fmt.Sprintf("endpoints[%d].details.suites", i))
			}
			endpoint.Details = details
		}
		out.Endpoints = append(out.Endpoints, endpoint)
	}

	out.Certs = append(out.Certs, h.Certs...)
	return out, nil
}

func normalizeDetails(d *Details) (*report.EndpointDetail, error) {
	details := d.EndpointDetail

	suites, suitesErr := decodeSuites(d.Suites)
	if suites != nil {
		if suites.List == nil {
			suites.List = []report.CipherSuite{}
		}
		if len(suites.List) > constants.MaxCipherSuites {
			suites.List = suites.List[:constants.MaxCipherSuites]
		}
	}
	details.Suites = suites

	if details.Sims != nil {
		sims := *details.Sims
		if sims.Results == nil {
			sims.Results = []report.SimulationResult{}
		}
		if len(sims.Results) > constants.MaxClientSimulations {
			sims.Results = sims.Results[:constants.MaxClientSimulations]
		}
		details.Sims = &sims
	}

	if details.CertChains == nil {
		details.CertChains = []report.CertChain{}
	}
	if details.Protocols == nil {
		details.Protocols = []report.Protocol{}
	}
	return &details, suitesErr
}
