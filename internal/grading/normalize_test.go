package grading

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khanhnv2901/certscope/internal/domain/report"
	apperrors "github.com/khanhnv2901/certscope/internal/shared/errors"
)

func loadHost(t *testing.T, name string) *Host {
	t.Helper()
	f, err := os.Open(filepath.Join("testdata", name))
	require.NoError(t, err)
	defer f.Close()

	h, err := decodeHost(f)
	require.NoError(t, err)
	require.Empty(t, h.Dropped)
	return h
}

func TestNormalizeV3Payload(t *testing.T) {
	gr, err := Normalize(loadHost(t, "ready_v3.json"))
	require.NoError(t, err)

	assert.Equal(t, "example.com", gr.Host)
	assert.Equal(t, 443, gr.Port)
	assert.Equal(t, "http", gr.Protocol)
	assert.Equal(t, "READY", gr.Status)
	require.NotNil(t, gr.EngineVersion)
	assert.Equal(t, "2.3.0", *gr.EngineVersion)
	require.Len(t, gr.Endpoints, 2)

	first := gr.Endpoints[0]
	assert.Equal(t, "A+", first.Grade)
	assert.True(t, first.IsExceptional)
	assert.Nil(t, first.ETA)
	require.NotNil(t, first.Details)

	d := first.Details
	require.NotNil(t, d.Suites)
	require.Len(t, d.Suites.List, 10, "v3 per-protocol lists are concatenated then capped")
	assert.Equal(t, "TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256", d.Suites.List[0].Name)
	assert.Equal(t, "TLS_AES_128_GCM_SHA256", d.Suites.List[8].Name)
	assert.Equal(t, "TLS_AES_256_GCM_SHA384", d.Suites.List[9].Name)
	require.NotNil(t, d.Suites.Preference)
	assert.True(t, *d.Suites.Preference)
	assert.Nil(t, d.Suites.Protocol)

	require.NotNil(t, d.Sims)
	require.Len(t, d.Sims.Results, 5)
	assert.Equal(t, "Safari", d.Sims.Results[4].Client.Name)

	assert.True(t, d.HasForwardSecrecy())
	assert.True(t, d.OcspStapling)
	assert.True(t, d.SupportsAlpn)
	assert.False(t, d.VulnBeast)
	assert.False(t, d.DrownVulnerable)
	assert.Nil(t, d.RenegSupport)
	require.Len(t, d.Protocols, 2)
	require.NotNil(t, d.HstsPolicy)
	assert.True(t, d.HstsPolicy.IncludeSubDomains)

	second := gr.Endpoints[1]
	assert.Equal(t, "", second.Grade)
	assert.Nil(t, second.Details)

	require.Len(t, gr.Certs, 1)
	assert.Equal(t, int64(1735689599000), gr.Certs[0].NotAfter)
	assert.False(t, gr.Certs[0].KeyKnownDebianInsecure)
}

func TestNormalizeDefaults(t *testing.T) {
	gr, err := Normalize(&Host{Host: "example.com", Status: "READY"})
	require.NoError(t, err)

	assert.Equal(t, 443, gr.Port)
	assert.Equal(t, "HTTP", gr.Protocol)
	assert.False(t, gr.IsPublic)
	assert.NotNil(t, gr.Endpoints)
	assert.Empty(t, gr.Endpoints)
	assert.NotNil(t, gr.Certs)

	raw, err := json.Marshal(gr)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"endpoints":[]`)
	assert.Contains(t, string(raw), `"engineVersion":null`)
}

func TestNormalizeV2SuitesObject(t *testing.T) {
	raw := `{
		"host": "example.com",
		"status": "READY",
		"endpoints": [{
			"ipAddress": "1.2.3.4",
			"grade": "B",
			"details": {
				"suites": {"protocol": 771, "list": [{"id": 5, "name": "TLS_RSA_WITH_RC4_128_SHA"}]},
				"supportsRc4": true
			}
		}]
	}`
	var h Host
	require.NoError(t, json.Unmarshal([]byte(raw), &h))

	gr, err := Normalize(&h)
	require.NoError(t, err)

	d := gr.Endpoints[0].Details
	require.NotNil(t, d)
	require.NotNil(t, d.Suites)
	require.NotNil(t, d.Suites.Protocol)
	assert.Equal(t, 771, *d.Suites.Protocol)
	require.Len(t, d.Suites.List, 1)
	assert.True(t, d.SupportsRc4)
	assert.False(t, d.HasForwardSecrecy())
	assert.Nil(t, d.Sims)
	assert.NotNil(t, d.CertChains)
	assert.NotNil(t, d.Protocols)
}

func TestNormalizeKeepsEndpointWithMalformedSuites(t *testing.T) {
	h := &Host{
		Status: "READY",
		Endpoints: []Endpoint{{
			Endpoint: report.Endpoint{IPAddress: "192.0.2.1", Grade: "B"},
			Details: &Details{
				EndpointDetail: report.EndpointDetail{Heartbleed: true},
				Suites:         json.RawMessage(`"not suites"`),
			},
		}},
	}

	gr, err := Normalize(h)
	require.NoError(t, err)
	require.Len(t, gr.Endpoints, 1)
	assert.Equal(t, "B", gr.Endpoints[0].Grade)
	require.NotNil(t, gr.Endpoints[0].Details)
	assert.Nil(t, gr.Endpoints[0].Details.Suites)
	assert.True(t, gr.Endpoints[0].Details.Heartbleed)
	assert.Equal(t, []string{"endpoints[0].details.suites"}, h.Dropped)
}

func TestNormalizeNil(t *testing.T) {
	_, err := Normalize(nil)
	require.ErrorIs(t, err, apperrors.ErrProvider)
}

func TestDecodeSuitesEmpty(t *testing.T) {
	for _, raw := range []string{"", "null", " null ", "[]"} {
		got, err := decodeSuites(json.RawMessage(raw))
		require.NoError(t, err, raw)
		assert.Nil(t, got, raw)
	}
}
