package report

// Grading provider statuses.
const (
	StatusInProgress = "IN_PROGRESS"
	StatusReady      = "READY"
	StatusError      = "ERROR"
	// StatusDNS is reported while the provider is still resolving the host.
	StatusDNS = "DNS"
)

// GradeReport is the normalized grading provider assessment of one host.
type GradeReport struct {
	Host            string            `json:"host"`
	Port            int               `json:"port"`
	Protocol        string            `json:"protocol"`
	IsPublic        bool              `json:"isPublic"`
	Status          string            `json:"status"`
	StartTime       *int64            `json:"startTime"`
	TestTime        *int64            `json:"testTime"`
	EngineVersion   *string           `json:"engineVersion"`
	CriteriaVersion *string           `json:"criteriaVersion"`
	Endpoints       []Endpoint        `json:"endpoints"`
	Certs           []CertificateInfo `json:"certs"`
}

// Endpoint is one resolved server backing the host.
type Endpoint struct {
	IPAddress         string          `json:"ipAddress"`
	ServerName        *string         `json:"serverName"`
	StatusMessage     *string         `json:"statusMessage"`
	Grade             string          `json:"grade"`
	GradeTrustIgnored *string         `json:"gradeTrustIgnored"`
	HasWarnings       bool            `json:"hasWarnings"`
	IsExceptional     bool            `json:"isExceptional"`
	Progress          *int            `json:"progress"`
	Duration          *int64          `json:"duration"`
	ETA               *int            `json:"eta"`
	Delegation        *int            `json:"delegation"`
	Details           *EndpointDetail `json:"details"`
}

// EndpointDetail carries the per-endpoint TLS configuration findings.
//
// Vulnerability and capability flags default to false when the provider
// omits them. Pointer fields are passed through untouched and encode as null
// when absent.
type EndpointDetail struct {
	HostStartTime *int64       `json:"hostStartTime"`
	CertChains    []CertChain  `json:"certChains"`
	Protocols     []Protocol   `json:"protocols"`
	Suites        *SuiteList   `json:"suites"`
	Sims          *Simulations `json:"sims"`

	ServerSignature     *string `json:"serverSignature"`
	PrefixDelegation    *bool   `json:"prefixDelegation"`
	NonPrefixDelegation *bool   `json:"nonPrefixDelegation"`
	RenegSupport        *int    `json:"renegSupport"`
	SessionResumption   *int    `json:"sessionResumption"`
	CompressionMethods  *int    `json:"compressionMethods"`
	SessionTickets      *int    `json:"sessionTickets"`
	HTTPStatusCode      *int    `json:"httpStatusCode"`
	HTTPForwarding      *string `json:"httpForwarding"`

	SupportsNpn   bool    `json:"supportsNpn"`
	NpnProtocols  *string `json:"npnProtocols"`
	SupportsAlpn  bool    `json:"supportsAlpn"`
	AlpnProtocols *string `json:"alpnProtocols"`

	OcspStapling             bool `json:"ocspStapling"`
	StaplingRevocationStatus *int `json:"staplingRevocationStatus"`
	SniRequired              bool `json:"sniRequired"`

	// ForwardSecrecy is the provider's bitmask; zero means no forward secrecy.
	ForwardSecrecy      int  `json:"forwardSecrecy"`
	ProtocolIntolerance *int `json:"protocolIntolerance"`
	MiscIntolerance     *int `json:"miscIntolerance"`

	VulnBeast           bool `json:"vulnBeast"`
	Heartbleed          bool `json:"heartbleed"`
	Heartbeat           bool `json:"heartbeat"`
	OpenSslCcs          *int `json:"openSslCcs"`
	OpenSSLLuckyMinus20 *int `json:"openSSLLuckyMinus20"`
	Poodle              bool `json:"poodle"`
	PoodleTLS           *int `json:"poodleTls"`
	FallbackScsv        bool `json:"fallbackScsv"`
	Freak               bool `json:"freak"`
	HasSct              *int `json:"hasSct"`
	DhUsesKnownPrimes   *int `json:"dhUsesKnownPrimes"`
	DhYsReuse           bool `json:"dhYsReuse"`
	Logjam              bool `json:"logjam"`
	ChaCha20Preference  bool `json:"chaCha20Preference"`
	SupportsRc4         bool `json:"supportsRc4"`
	Rc4WithModern       bool `json:"rc4WithModern"`
	Rc4Only             bool `json:"rc4Only"`
	DrownErrors         bool `json:"drownErrors"`
	DrownVulnerable     bool `json:"drownVulnerable"`

	HstsPolicy *HSTSPolicy `json:"hstsPolicy"`
}

// HasForwardSecrecy reports whether any forward secrecy support was detected.
func (d *EndpointDetail) HasForwardSecrecy() bool {
	return d.ForwardSecrecy != 0
}

// CertChain references the certificates presented by an endpoint.
type CertChain struct {
	ID      string   `json:"id"`
	CertIDs []string `json:"certIds"`
	Issues  *int     `json:"issues"`
	NoSni   bool     `json:"noSni"`
}

// Protocol is one supported TLS/SSL protocol version.
type Protocol struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	Version string `json:"version"`
}

// SuiteList holds the cipher suites offered by an endpoint, capped in input order.
type SuiteList struct {
	Preference *bool         `json:"preference"`
	Protocol   *int          `json:"protocol"`
	List       []CipherSuite `json:"list"`
}

// CipherSuite is one offered cipher suite.
type CipherSuite struct {
	ID             int     `json:"id"`
	Name           string  `json:"name"`
	CipherStrength *int    `json:"cipherStrength"`
	KxType         *string `json:"kxType"`
	KxStrength     *int    `json:"kxStrength"`
}

// Simulations holds the first client handshake simulations.
type Simulations struct {
	Results []SimulationResult `json:"results"`
}

// SimulationResult is the outcome of one simulated client handshake.
type SimulationResult struct {
	Client      *SimClient `json:"client"`
	IsReference bool       `json:"isReference"`
	ProtocolID  *int       `json:"protocolId"`
	SuiteID     *int       `json:"suiteId"`
	SuiteName   *string    `json:"suiteName"`
	ErrorCode   *int       `json:"errorCode"`
}

// SimClient identifies a simulated client.
type SimClient struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Platform string `json:"platform"`
	Version  string `json:"version"`
}

// HSTSPolicy is the observed Strict-Transport-Security policy.
type HSTSPolicy struct {
	Status            string `json:"status"`
	MaxAge            *int64 `json:"maxAge"`
	IncludeSubDomains bool   `json:"includeSubDomains"`
	Preload           bool   `json:"preload"`
}

// CertificateInfo describes one certificate seen by the grading provider.
// NotBefore and NotAfter are copied verbatim (milliseconds since epoch).
type CertificateInfo struct {
	ID                     string   `json:"id"`
	Subject                string   `json:"subject"`
	CommonNames            []string `json:"commonNames"`
	AltNames               []string `json:"altNames"`
	NotBefore              int64    `json:"notBefore"`
	NotAfter               int64    `json:"notAfter"`
	IssuerSubject          string   `json:"issuerSubject"`
	IssuerLabel            *string  `json:"issuerLabel"`
	SigAlg                 *string  `json:"sigAlg"`
	RevocationInfo         *int     `json:"revocationInfo"`
	CRLURIs                []string `json:"crlURIs"`
	OCSPURIs               []string `json:"ocspURIs"`
	KeyAlg                 *string  `json:"keyAlg"`
	KeySize                *int     `json:"keySize"`
	KeyStrength            *int     `json:"keyStrength"`
	KeyKnownDebianInsecure bool     `json:"keyKnownDebianInsecure"`
}
