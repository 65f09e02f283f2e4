package grading

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeHostToleratesTypeDrift(t *testing.T) {
	body := `{
		"host": "example.com",
		"status": "READY",
		"engineVersion": 2,
		"endpoints": [{
			"ipAddress": "192.0.2.1",
			"grade": "A",
			"eta": "soon",
			"details": {
				"serverSignature": 42,
				"forwardSecrecy": 4,
				"ocspStapling": true,
				"heartbleed": true,
				"hstsPolicy": {"status": "present", "maxAge": "a year"},
				"protocols": [{"id": 771, "name": "TLS", "version": "1.2"}, {"id": "x"}],
				"suites": {"list": [{"id": 49199, "name": "TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256"}]}
			}
		}],
		"certs": [{"id": "c1", "subject": "CN=example.com", "notBefore": 1, "notAfter": 2, "keySize": "2048"}]
	}`

	h, err := decodeHost(strings.NewReader(body))
	require.NoError(t, err)

	assert.Equal(t, "READY", h.Status)
	assert.Nil(t, h.EngineVersion)
	require.Len(t, h.Endpoints, 1)

	ep := h.Endpoints[0]
	assert.Equal(t, "A", ep.Grade)
	assert.Nil(t, ep.ETA)
	require.NotNil(t, ep.Details)
	assert.Nil(t, ep.Details.ServerSignature)
	assert.Equal(t, 4, ep.Details.ForwardSecrecy)
	assert.True(t, ep.Details.OcspStapling)
	assert.True(t, ep.Details.Heartbleed)
	require.NotNil(t, ep.Details.HstsPolicy)
	assert.Equal(t, "present", ep.Details.HstsPolicy.Status)
	assert.Nil(t, ep.Details.HstsPolicy.MaxAge)
	require.Len(t, ep.Details.Protocols, 2)
	assert.Equal(t, "1.2", ep.Details.Protocols[0].Version)
	assert.Zero(t, ep.Details.Protocols[1].ID)

	require.Len(t, h.Certs, 1)
	assert.Equal(t, "CN=example.com", h.Certs[0].Subject)
	assert.Nil(t, h.Certs[0].KeySize)

	assert.ElementsMatch(t, []string{
		"engineVersion",
		"endpoints[0].eta",
		"endpoints[0].details.serverSignature",
		"endpoints[0].details.hstsPolicy.maxAge",
		"endpoints[0].details.protocols[1].id",
		"certs[0].keySize",
	}, h.Dropped)

	gr, err := Normalize(h)
	require.NoError(t, err)
	require.Len(t, gr.Endpoints, 1)
	assert.Equal(t, "A", gr.Endpoints[0].Grade)
	require.NotNil(t, gr.Endpoints[0].Details.Suites)
	assert.Len(t, gr.Endpoints[0].Details.Suites.List, 1)
}

func TestDecodeHostDriftWhileInProgress(t *testing.T) {
	h, err := decodeHost(strings.NewReader(`{"status":"IN_PROGRESS","endpoints":[{"grade":"A","progress":"50%","details":{"serverSignature":42}}]}`))
	require.NoError(t, err)

	assert.Equal(t, "IN_PROGRESS", h.Status)
	require.Len(t, h.Endpoints, 1)
	assert.Nil(t, h.Endpoints[0].Progress)
	assert.ElementsMatch(t, []string{"endpoints[0].progress", "endpoints[0].details.serverSignature"}, h.Dropped)
}

func TestDecodeHostWrongTypeForList(t *testing.T) {
	h, err := decodeHost(strings.NewReader(`{"status":"READY","endpoints":{"grade":"A"},"certs":[]}`))
	require.NoError(t, err)

	assert.Empty(t, h.Endpoints)
	assert.Equal(t, []string{"endpoints"}, h.Dropped)
}

func TestDecodeHostStrictPayloadDropsNothing(t *testing.T) {
	h, err := decodeHost(strings.NewReader(`{"host":"example.com","status":"DNS","statusMessage":"Resolving domain names"}`))
	require.NoError(t, err)

	assert.Equal(t, "DNS", h.Status)
	assert.Equal(t, "Resolving domain names", h.StatusMessage)
	assert.Empty(t, h.Dropped)
}

func TestDecodeHostRejectsNonObjects(t *testing.T) {
	for _, body := range []string{`[]`, `"READY"`, `null`, `<html>`, ``} {
		_, err := decodeHost(strings.NewReader(body))
		assert.Error(t, err, body)
	}
}
