// Package evpn navigates parsed "show bgp l2vpn evpn" output and checks
// expected VNI/IP pairs against the advertised route prefixes.
package evpn

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/newtron-network/vnicheck/pkg/util"
)

// Snapshot is one device's parsed BGP EVPN state.
type Snapshot map[string]any

// RDPath is the key sequence from the snapshot root to the RD table.
var RDPath = []string{"instance", "default", "vrf", "default", "address_family", "l2vpn evpn", "rd"}

// PathError reports the first segment of RDPath missing from a snapshot.
type PathError struct {
	Path string // walked path including the missing segment, e.g. "/instance/default/vrf"
}

func (e *PathError) Error() string {
	return "missing or invalid key in path " + e.Path
}

func (e *PathError) Unwrap() error {
	return util.ErrNotFound
}

// RDEntry is one route-distinguisher entry of the EVPN table.
type RDEntry struct {
	RD       string
	VNI      string   // rd_vrf, normalised to text
	Prefixes []string // advertised prefixes, in scan order
}

// RouteDistinguishers walks RDPath and returns the RD entries sorted by RD.
func RouteDistinguishers(s Snapshot) ([]RDEntry, error) {
	var cur any = map[string]any(s)
	path := ""
	for _, key := range RDPath {
		path += "/" + key
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, &PathError{Path: path}
		}
		next, ok := m[key]
		if !ok {
			return nil, &PathError{Path: path}
		}
		cur = next
	}

	table, ok := cur.(map[string]any)
	if !ok {
		return nil, &PathError{Path: path}
	}

	rds := make([]string, 0, len(table))
	for rd := range table {
		rds = append(rds, rd)
	}
	sort.Strings(rds)

	entries := make([]RDEntry, 0, len(rds))
	for _, rd := range rds {
		info, ok := table[rd].(map[string]any)
		if !ok {
			continue
		}
		entries = append(entries, RDEntry{
			RD:       rd,
			VNI:      scalarText(info["rd_vrf"]),
			Prefixes: prefixList(info["prefix"]),
		})
	}
	return entries, nil
}

// CountRDs returns the number of RD entries, or 0 if the path is missing.
func CountRDs(s Snapshot) int {
	entries, err := RouteDistinguishers(s)
	if err != nil {
		return 0
	}
	return len(entries)
}

// prefixList flattens a prefix collection: an object keyed by prefix (keys
// sorted) or a list of strings.
func prefixList(v any) []string {
	switch p := v.(type) {
	case map[string]any:
		out := make([]string, 0, len(p))
		for k := range p {
			out = append(out, k)
		}
		sort.Strings(out)
		return out
	case []any:
		out := make([]string, 0, len(p))
		for _, item := range p {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return append([]string(nil), p...)
	}
	return nil
}

// scalarText renders a decoded JSON/YAML scalar as text. Integral numbers
// lose their fractional part so 10100.0 compares equal to "10100".
func scalarText(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		if x == float64(int64(x)) {
			return strconv.FormatInt(int64(x), 10)
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case uint64:
		return strconv.FormatUint(x, 10)
	default:
		return strings.TrimSpace(fmt.Sprint(x))
	}
}
