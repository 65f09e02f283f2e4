// Package target validates the domain an analysis is requested for.
package target

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/idna"
	"golang.org/x/net/publicsuffix"

	apperrors "github.com/khanhnv2901/certscope/internal/shared/errors"
)

// domainPattern is a DNS label followed by one or more alphabetic labels.
var domainPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9-]{0,61}[a-zA-Z0-9]?\.([a-zA-Z]{2,}\.?)+$`)

var lookupProfile = idna.New(idna.MapForLookup(), idna.StrictDomainName(true))

// Domain is a validated analysis target. Name is kept exactly as supplied
// because the transparency subdomain filter matches on it verbatim.
type Domain struct {
	Name string
	// Registrable is the eTLD+1 of Name, empty when it cannot be derived.
	Registrable string
}

func (d Domain) String() string { return d.Name }

// Parse validates raw as an analysis target. Every failure wraps
// ErrValidation together with the specific cause.
func Parse(raw string) (Domain, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return Domain{}, fmt.Errorf("%w: %w", apperrors.ErrValidation, apperrors.ErrMissingDomain)
	}
	if !domainPattern.MatchString(name) {
		return Domain{}, fmt.Errorf("%w: %w", apperrors.ErrValidation, apperrors.ErrInvalidDomain)
	}

	ascii, err := lookupProfile.ToASCII(strings.TrimSuffix(name, "."))
	if err != nil {
		return Domain{}, fmt.Errorf("%w: %w: %v", apperrors.ErrValidation, apperrors.ErrInvalidDomain, err)
	}
	ascii = strings.ToLower(ascii)

	// A bare ICANN suffix such as "co.uk" has no certificates of its own.
	if ps, icann := publicsuffix.PublicSuffix(ascii); icann && ps == ascii {
		return Domain{}, fmt.Errorf("%w: %w: %q is a public suffix", apperrors.ErrValidation, apperrors.ErrInvalidDomain, name)
	}

	registrable, _ := publicsuffix.EffectiveTLDPlusOne(ascii)
	return Domain{Name: name, Registrable: registrable}, nil
}

// ExtractHost strips an optional scheme, port and path so that inputs like
// "https://example.com:443/path" reduce to "example.com". Anything that is
// not URL shaped is returned trimmed.
func ExtractHost(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil || parsed.Scheme == "" || strings.Contains(parsed.Scheme, ".") {
		parsed, err = url.Parse("http://" + raw)
	}
	if err == nil && parsed.Hostname() != "" {
		return parsed.Hostname()
	}

	host := strings.TrimPrefix(raw, "http://")
	host = strings.TrimPrefix(host, "https://")
	host = strings.Split(host, "/")[0]
	return strings.Split(host, ":")[0]
}
