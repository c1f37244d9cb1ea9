package node

import (
	"encoding"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
)

var (
	// ErrInvalidAddress is the error returned when a network endpoint is
	// invalid.
	ErrInvalidAddress = errors.New("node: invalid network address")
	// ErrInvalidPort is the error returned when an endpoint port is invalid.
	ErrInvalidPort = errors.New("node: invalid port")

	unroutableNetworks []net.IPNet

	// Domain suffixes that never resolve on the public internet.
	unroutableSuffixes = []string{
		".local",
		".intranet",
		".internal",
		".private",
		".corp",
		".home",
		".lan",
		".localhost",
	}

	_ encoding.TextMarshaler   = Endpoint{}
	_ encoding.TextUnmarshaler = (*Endpoint)(nil)
)

// Endpoint is a network endpoint a node advertises.
//
// The host is kept verbatim, it may be an IPv4 or IPv6 literal or a
// domain name.
type Endpoint struct {
	Host string
	Port uint16
}

// Equal compares vs another endpoint for equality.
func (e Endpoint) Equal(other Endpoint) bool {
	return e.Port == other.Port && strings.EqualFold(e.Host, other.Host)
}

// IsZero returns true iff the endpoint is unset.
func (e Endpoint) IsZero() bool {
	return e == Endpoint{}
}

// Validate checks that the endpoint is well formed.
func (e Endpoint) Validate() error {
	if e.Host == "" {
		return fmt.Errorf("%w: empty host", ErrInvalidAddress)
	}
	if strings.ContainsAny(e.Host, " \t\r\n/@") {
		return fmt.Errorf("%w: prohibited character in host '%s'", ErrInvalidAddress, e.Host)
	}
	if e.Port == 0 {
		return fmt.Errorf("%w: port 0", ErrInvalidPort)
	}
	return nil
}

// IP returns the host as an IP address, or nil if the host is a name.
func (e Endpoint) IP() net.IP {
	return net.ParseIP(e.Host)
}

// IsRoutable returns true iff the endpoint is likely to be globally
// routable.
func (e Endpoint) IsRoutable() bool {
	ip := e.IP()
	if ip == nil {
		host := strings.ToLower(e.Host)
		if !strings.Contains(host, ".") || host == "localhost" {
			return false
		}
		for _, suffix := range unroutableSuffixes {
			if strings.HasSuffix(host, suffix) {
				return false
			}
		}
		return true
	}
	for _, v := range unroutableNetworks {
		if v.Contains(ip) {
			return false
		}
	}
	return true
}

// MarshalText implements the encoding.TextMarshaler interface.
func (e Endpoint) MarshalText() ([]byte, error) {
	return []byte(e.String()), nil
}

// UnmarshalText implements the encoding.TextUnmarshaler interface.
func (e *Endpoint) UnmarshalText(text []byte) error {
	parsed, err := ParseEndpoint(string(text))
	if err != nil {
		return err
	}
	*e = parsed
	return nil
}

// String returns the host:port representation of an endpoint.
func (e Endpoint) String() string {
	return net.JoinHostPort(e.Host, strconv.FormatUint(uint64(e.Port), 10))
}

// ParseEndpoint parses a host:port string.
func ParseEndpoint(s string) (Endpoint, error) {
	host, portStr, err := net.SplitHostPort(strings.TrimSpace(s))
	if err != nil {
		return Endpoint{}, fmt.Errorf("%w: '%s': %s", ErrInvalidAddress, s, err)
	}
	port, err := ParsePort(portStr)
	if err != nil {
		return Endpoint{}, err
	}
	ep := Endpoint{Host: host, Port: port}
	if err = ep.Validate(); err != nil {
		return Endpoint{}, err
	}
	return ep, nil
}

// ParsePort parses a decimal port number in the range [1, 65535].
func ParsePort(s string) (uint16, error) {
	port, err := strconv.ParseUint(s, 10, 16)
	if err != nil || port == 0 {
		return 0, fmt.Errorf("%w: '%s' must be in [1-65535]", ErrInvalidPort, s)
	}
	return uint16(port), nil
}

// IsNumeric returns true iff the input is a bare decimal number.
func IsNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func init() {
	// List taken from RFC 6890.
	for _, v := range []string{
		"0.0.0.0/8",          // RFC 1122
		"10.0.0.0/8",         // RFC 1918: Private-Use
		"100.64.0.0/10",      // RFC 6598: Shared Address Space
		"127.0.0.0/8",        // RFC 1122: Loopback
		"169.254.0.0/16",     // RFC 3927: Link Local
		"172.16.0.0/12",      // RFC 1918: Private-Use
		"192.0.0.0/24",       // RFC 6890
		"192.0.2.0/24",       // RFC 5737: Documentation (TEST-NET-1)
		"192.168.0.0/16",     // RFC 1918: Private-Use
		"198.18.0.0/15",      // RFC 2544: Benchmarking
		"198.51.100.0/24",    // RFC 5737: TEST-NET-2
		"203.0.113.0/24",     // RFC 5737: TEST-NET-3
		"240.0.0.0/4",        // RFC 1112: Reserved
		"255.255.255.255/32", // RFC 919: Limited Broadcast
		"::1/128",            // RFC 4291: Loopback Address
		"::/128",             // RFC 4291: Unspecified Address
		"100::/64",           // RFC 6666: Discard-Only Address Block
		"2001::/32",          // RFC 4380: TEREDO
		"2001:2::/48",        // RFC 5180: Benchmarking
		"2001:db8::/32",      // RFC 3849: Documentation
		"2001:10::/28",       // RFC 4843: ORCHID
		"2002::/16",          // RFC 3056: 6to4
		"fc00::/7",           // RFC 4193: Unique-Local
		"fe80::/10",          // RFC 4291: Linked-Scoped Unicast
	} {
		_, ipNet, err := net.ParseCIDR(v)
		if err != nil {
			panic("node: failed to parse reserved net: " + err.Error())
		}
		unroutableNetworks = append(unroutableNetworks, *ipNet)
	}
}
