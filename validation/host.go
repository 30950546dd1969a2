package validation

import (
	"net"
	"regexp"
	"strings"
)

// Resolver looks up the addresses of a hostname
type Resolver func(host string) ([]net.IP, error)

var (
	protocolRe       = regexp.MustCompile(`^\w+:\d+\.\d+\.\d+$`)
	legacyProtocolRe = regexp.MustCompile(`^\d+\.\d+$`)
)

// ValidateHostname checks that hostname resolves to clientIp.
// Hosts announcing from a loopback address may use any well formed name.
func ValidateHostname(hostname string, clientIp net.IP, lookup Resolver) *ValidationError {
	if clientIp.IsLoopback() {
		// Empty hostname would mean "use the client IP", which is useless here
		if len(hostname) == 0 {
			return &ValidationError{"host", "is required when announcing from localhost"}
		}
		if strings.ContainsAny(hostname, "/ ") {
			return &ValidationError{"host", "is not a valid hostname"}
		}
		return nil
	}

	// Empty hostname means we use the client IP
	if len(hostname) == 0 {
		return nil
	}

	if strings.ContainsAny(hostname, "/ ") {
		return &ValidationError{"host", "is not a valid hostname"}
	}

	if lookup == nil {
		lookup = net.LookupIP
	}

	ips, err := lookup(hostname)
	if err != nil {
		return &ValidationError{"host", "could not be resolved"}
	}

	for _, ip := range ips {
		if ip.Equal(clientIp) {
			return nil
		}
	}

	return &ValidationError{"host", "does not match your IP address"}
}

func IsValidProtocol(protocol string, whitelist []string) bool {
	if len(whitelist) > 0 {
		return IsHostInList(protocol, whitelist)
	}

	// namespace:server.major.minor, or the pre-2.0 major.minor
	return protocolRe.MatchString(protocol) || legacyProtocolRe.MatchString(protocol)
}

// IsHostInList reports whether host is one of the list entries
func IsHostInList(host string, list []string) bool {
	for _, v := range list {
		if host == v {
			return true
		}
	}
	return false
}

// IsNamedHost reports whether host is a DNS name rather than an IP address
func IsNamedHost(host string) bool {
	return net.ParseIP(host) == nil
}

func IsIpv6Address(host string) bool {
	ip := net.ParseIP(host)
	return ip != nil && ip.To4() == nil
}
