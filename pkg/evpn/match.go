package evpn

import (
	"fmt"
	"net/netip"
	"strconv"
	"strings"
)

// MatchMode selects how an expected IP is compared with a route prefix.
type MatchMode string

const (
	// MatchSubstring matches when the IP text occurs in the prefix text.
	// "10.0.0.1" also matches "10.0.0.10/32".
	MatchSubstring MatchMode = "substring"

	// MatchAddress matches when an address embedded in the prefix equals the IP.
	MatchAddress MatchMode = "address"

	// MatchContains is MatchAddress plus containment in a network prefix.
	MatchContains MatchMode = "contains"
)

// DefaultMatchMode is used when no mode is configured.
const DefaultMatchMode = MatchSubstring

// ParseMatchMode parses a mode name; "" yields DefaultMatchMode.
func ParseMatchMode(s string) (MatchMode, error) {
	switch MatchMode(strings.ToLower(s)) {
	case "":
		return DefaultMatchMode, nil
	case MatchSubstring:
		return MatchSubstring, nil
	case MatchAddress:
		return MatchAddress, nil
	case MatchContains:
		return MatchContains, nil
	}
	return "", fmt.Errorf("unknown match mode %q (want substring, address or contains)", s)
}

// matcher tests one expected IP against prefix strings.
type matcher func(prefix string) bool

func newMatcher(mode MatchMode, ip string) (matcher, error) {
	if mode == MatchSubstring {
		return func(prefix string) bool { return strings.Contains(prefix, ip) }, nil
	}

	addr, err := netip.ParseAddr(strings.TrimSpace(ip))
	if err != nil {
		return nil, fmt.Errorf("expected IP %q is not an address", ip)
	}
	addr = addr.Unmap()

	return func(prefix string) bool {
		for _, p := range prefixNetworks(prefix) {
			if p.Addr() == addr {
				return true
			}
			if mode == MatchContains && p.Contains(addr) {
				return true
			}
		}
		return false
	}, nil
}

// prefixNetworks extracts the addresses carried in a route prefix string.
// It understands plain "a.b.c.d/len" and the EVPN bracket form
// "[2]:[0]:[48]:[aa:bb:cc:dd:ee:ff]:[32]:[10.1.1.5]", where a bracketed
// length immediately before a bracketed address gives the address's mask.
// Addresses without a mask are returned as host prefixes.
func prefixNetworks(prefix string) []netip.Prefix {
	prefix = strings.TrimSpace(prefix)
	if !strings.HasPrefix(prefix, "[") {
		if p, err := netip.ParsePrefix(prefix); err == nil {
			return []netip.Prefix{unmapPrefix(p)}
		}
		if a, err := netip.ParseAddr(prefix); err == nil {
			a = a.Unmap()
			return []netip.Prefix{netip.PrefixFrom(a, a.BitLen())}
		}
		return nil
	}

	var out []netip.Prefix
	prevLen := -1
	for _, tok := range bracketTokens(prefix) {
		if n, err := strconv.Atoi(tok); err == nil {
			prevLen = n
			continue
		}
		a, err := netip.ParseAddr(tok)
		if err != nil {
			prevLen = -1
			continue
		}
		a = a.Unmap()
		bits := a.BitLen()
		if prevLen >= 0 && prevLen <= bits {
			bits = prevLen
		}
		out = append(out, netip.PrefixFrom(a, bits))
		prevLen = -1
	}
	return out
}

func unmapPrefix(p netip.Prefix) netip.Prefix {
	if !p.Addr().Is4In6() {
		return p
	}
	bits := p.Bits() - 96
	if bits < 0 {
		bits = 0
	}
	return netip.PrefixFrom(p.Addr().Unmap(), bits)
}

// bracketTokens returns the contents of each [...] group in s.
func bracketTokens(s string) []string {
	var out []string
	for {
		start := strings.IndexByte(s, '[')
		if start < 0 {
			return out
		}
		end := strings.IndexByte(s[start:], ']')
		if end < 0 {
			return out
		}
		out = append(out, s[start+1:start+end])
		s = s[start+end+1:]
	}
}
