// Package geo maps countries, phone numbers and IP addresses onto data
// residency regions.
package geo

import (
	"context"
	"fmt"
	"net/netip"
	"sort"
	"strings"

	"golang.org/x/text/language"

	"privata/pkg/domain"
)

// Locator resolves an IP address to an ISO 3166 alpha-2 country code.
// ok is false when the address is not covered.
type Locator interface {
	Locate(ctx context.Context, addr netip.Addr) (country string, ok bool, err error)
}

var euMembers = []string{
	"AT", "BE", "BG", "HR", "CY", "CZ", "DK", "EE", "FI", "FR", "DE", "GR", "HU", "IE",
	"IT", "LV", "LT", "LU", "MT", "NL", "PL", "PT", "RO", "SK", "SI", "ES", "SE",
	// EEA members follow GDPR as well.
	"IS", "LI", "NO",
}

// DefaultCountries is the country to region table used when none is configured.
func DefaultCountries() map[string]domain.Region {
	out := map[string]domain.Region{
		"US": domain.RegionUS,
		"PR": domain.RegionUS,
		"GU": domain.RegionUS,
		"VI": domain.RegionUS,
		"GB": domain.RegionUK,
	}
	for _, c := range euMembers {
		out[c] = domain.RegionEU
	}
	return out
}

var countryNames = map[string]string{
	"united states":            "US",
	"united states of america": "US",
	"usa":                      "US",
	"uk":                       "GB",
	"united kingdom":           "GB",
	"great britain":            "GB",
	"england":                  "GB",
	"scotland":                 "GB",
	"wales":                    "GB",
	"northern ireland":         "GB",
	"germany":                  "DE",
	"deutschland":              "DE",
	"france":                   "FR",
	"spain":                    "ES",
	"italy":                    "IT",
	"netherlands":              "NL",
	"ireland":                  "IE",
	"poland":                   "PL",
	"sweden":                   "SE",
	"belgium":                  "BE",
	"austria":                  "AT",
	"portugal":                 "PT",
}

// NormalizeCountry returns the canonical alpha-2 code for an ISO alpha-2,
// alpha-3 or numeric code, or a common English country name.
func NormalizeCountry(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	if code, ok := countryNames[strings.ToLower(s)]; ok {
		return code, true
	}
	r, err := language.ParseRegion(s)
	if err != nil || !r.IsCountry() {
		return "", false
	}
	return r.Canonicalize().String(), true
}

// phonePrefixes maps international calling codes to countries. +1 is the
// whole North American Numbering Plan and resolves to US.
var phonePrefixes = map[string]string{
	"1": "US", "44": "GB",
	"30": "GR", "31": "NL", "32": "BE", "33": "FR", "34": "ES", "351": "PT", "352": "LU",
	"353": "IE", "354": "IS", "356": "MT", "357": "CY", "358": "FI", "359": "BG", "36": "HU",
	"370": "LT", "371": "LV", "372": "EE", "385": "HR", "386": "SI", "39": "IT", "40": "RO",
	"420": "CZ", "421": "SK", "423": "LI", "43": "AT", "45": "DK", "46": "SE", "47": "NO",
	"48": "PL", "49": "DE",
}

// PhoneCountry extracts the country from an international number such as
// "+49 30 1234567" or "0049301234567". National-format numbers carry no
// country and return false.
func PhoneCountry(phone string) (string, bool) {
	digits := make([]byte, 0, len(phone))
	international := false
	for i := 0; i < len(phone); i++ {
		c := phone[i]
		switch {
		case c == '+' && len(digits) == 0:
			international = true
		case c >= '0' && c <= '9':
			digits = append(digits, c)
		}
	}
	if !international {
		if len(digits) > 2 && digits[0] == '0' && digits[1] == '0' {
			digits = digits[2:]
		} else {
			return "", false
		}
	}
	for n := 3; n >= 1; n-- {
		if len(digits) <= n {
			continue
		}
		if country, ok := phonePrefixes[string(digits[:n])]; ok {
			return country, true
		}
	}
	return "", false
}

// AcceptLanguageCountries returns the countries named by an Accept-Language
// header with exact or high confidence, in preference order. Bare language
// tags ("en", "de") name no country.
func AcceptLanguageCountries(header string) []string {
	tags, _, err := language.ParseAcceptLanguage(header)
	if err != nil {
		return nil
	}
	var out []string
	for _, tag := range tags {
		r, conf := tag.Region()
		if conf != language.Exact && conf != language.High {
			continue
		}
		if !r.IsCountry() {
			continue
		}
		out = append(out, r.Canonicalize().String())
	}
	return out
}

// PrefixLocator resolves IPs against a static CIDR table. The most specific
// prefix wins.
type PrefixLocator struct {
	prefixes []prefixEntry
}

type prefixEntry struct {
	prefix  netip.Prefix
	country string
}

// NewPrefixLocator builds a locator from "cidr" -> country entries.
func NewPrefixLocator(table map[string]string) (*PrefixLocator, error) {
	l := &PrefixLocator{}
	for cidr, country := range table {
		p, err := netip.ParsePrefix(cidr)
		if err != nil {
			return nil, fmt.Errorf("parse prefix %q: %w", cidr, err)
		}
		code, ok := NormalizeCountry(country)
		if !ok {
			return nil, fmt.Errorf("unknown country %q for prefix %s", country, cidr)
		}
		l.prefixes = append(l.prefixes, prefixEntry{prefix: p.Masked(), country: code})
	}
	sort.Slice(l.prefixes, func(i, j int) bool {
		if l.prefixes[i].prefix.Bits() != l.prefixes[j].prefix.Bits() {
			return l.prefixes[i].prefix.Bits() > l.prefixes[j].prefix.Bits()
		}
		return l.prefixes[i].prefix.String() < l.prefixes[j].prefix.String()
	})
	return l, nil
}

// Locate implements Locator.
func (l *PrefixLocator) Locate(_ context.Context, addr netip.Addr) (string, bool, error) {
	addr = addr.Unmap()
	for _, e := range l.prefixes {
		if e.prefix.Contains(addr) {
			return e.country, true, nil
		}
	}
	return "", false, nil
}
