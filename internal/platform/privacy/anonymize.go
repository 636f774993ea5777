// Package privacy holds the irreversible transforms applied to personal data:
// IP truncation for logs and keyed pseudonymization for erased subjects.
package privacy

import (
	"fmt"
	"net/netip"
)

// AnonymizeIP truncates an address to its /24 (IPv4) or /48 (IPv6) network.
// Returns "unknown" for empty input and "invalid" when the address does not parse.
func AnonymizeIP(ip string) string {
	if ip == "" || ip == "unknown" {
		return "unknown"
	}
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return "invalid"
	}
	addr = addr.Unmap()
	if addr.Is4() {
		prefix, _ := addr.Prefix(24)
		return prefix.Addr().String()
	}
	b := addr.As16()
	return fmt.Sprintf("%02x%02x:%02x%02x:%02x%02x::", b[0], b[1], b[2], b[3], b[4], b[5])
}
