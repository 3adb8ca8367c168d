package device

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// ConvertFRREVPN converts the JSON of FRR's "show bgp l2vpn evpn json" into
// the snapshot layout the checks walk:
//
//	instance/default/vrf/default/address_family/"l2vpn evpn"/rd/<rd>/{rd, rd_vrf, prefix}
//
// FRR keys each route distinguisher at the top level. An RD's VNI is taken
// from the first path carrying a "vni" field, otherwise from the first
// "RT:<asn>:<vni>" extended community.
func ConvertFRREVPN(data []byte) (map[string]any, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decoding FRR EVPN JSON: %w", err)
	}

	rds := make(map[string]any)
	for _, key := range sortedAnyKeys(raw) {
		obj, ok := raw[key].(map[string]any)
		if !ok {
			continue
		}
		rd, ok := obj["rd"].(string)
		if !ok {
			continue
		}

		prefixes := make(map[string]any)
		vni := ""
		for _, pk := range sortedAnyKeys(obj) {
			route, ok := obj[pk].(map[string]any)
			if !ok {
				continue
			}
			prefixes[pk] = routeSummary(route)
			if vni == "" {
				vni = routeVNI(route)
			}
		}

		rds[rd] = map[string]any{
			"rd":     rd,
			"rd_vrf": vni,
			"prefix": prefixes,
		}
	}

	af := map[string]any{"rd": rds}
	vrf := map[string]any{
		"address_family": map[string]any{"l2vpn evpn": af},
	}
	if id, ok := raw["bgpLocalRouterId"]; ok {
		vrf["router_id"] = id
	}
	if as, ok := raw["localAS"]; ok {
		vrf["local_as"] = as
	}

	return map[string]any{
		"instance": map[string]any{
			"default": map[string]any{
				"vrf": map[string]any{"default": vrf},
			},
		},
	}, nil
}

// routeSummary keeps the per-prefix fields useful in a snapshot dump.
func routeSummary(route map[string]any) map[string]any {
	out := make(map[string]any)
	if v, ok := route["prefixLen"]; ok {
		out["prefix_len"] = v
	}
	var nexthops []string
	for _, p := range routePaths(route) {
		for _, nh := range asList(p["nexthops"]) {
			if m, ok := nh.(map[string]any); ok {
				if ip, ok := m["ip"].(string); ok {
					nexthops = append(nexthops, ip)
				}
			}
		}
	}
	if len(nexthops) > 0 {
		out["nexthops"] = nexthops
	}
	return out
}

func routeVNI(route map[string]any) string {
	paths := routePaths(route)
	for _, p := range paths {
		switch v := p["vni"].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return fmt.Sprintf("%d", int64(v))
		}
	}
	for _, p := range paths {
		ec, ok := p["extendedCommunity"].(map[string]any)
		if !ok {
			continue
		}
		s, _ := ec["string"].(string)
		if vni := routeTargetVNI(s); vni != "" {
			return vni
		}
	}
	return ""
}

// routeTargetVNI returns the local part of the first "RT:<asn>:<n>" in an
// extended community string such as "RT:65001:10100 ET:8".
func routeTargetVNI(communities string) string {
	for _, c := range strings.Fields(communities) {
		if !strings.HasPrefix(c, "RT:") {
			continue
		}
		parts := strings.Split(c, ":")
		if len(parts) == 3 && parts[2] != "" {
			return parts[2]
		}
	}
	return ""
}

// routePaths flattens "paths", which FRR emits either as a list of path
// objects or as a list of lists of path objects.
func routePaths(route map[string]any) []map[string]any {
	var out []map[string]any
	for _, p := range asList(route["paths"]) {
		switch v := p.(type) {
		case map[string]any:
			out = append(out, v)
		case []any:
			for _, inner := range v {
				if m, ok := inner.(map[string]any); ok {
					out = append(out, m)
				}
			}
		}
	}
	return out
}

func asList(v any) []any {
	l, _ := v.([]any)
	return l
}

func sortedAnyKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
