// Package privacy reduces client addresses to network prefixes before they
// reach logs, since therapy records are tied to identifiable patients.
package privacy

import (
	"net/netip"
)

// AnonymizeIP keeps the /24 of an IPv4 address and the /48 of an IPv6
// address. Empty input yields "unknown"; unparseable input yields "invalid".
func AnonymizeIP(ip string) string {
	if ip == "" || ip == "unknown" {
		return "unknown"
	}
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return "invalid"
	}
	addr = addr.Unmap()

	bits := 48
	if addr.Is4() {
		bits = 24
	}
	prefix, err := addr.Prefix(bits)
	if err != nil {
		return "invalid"
	}
	return prefix.Addr().String()
}
