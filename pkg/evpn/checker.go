package evpn

import (
	"fmt"
	"sort"
)

// IPResult is the outcome for one expected IP.
type IPResult struct {
	IP      string
	Found   bool
	Prefix  string // matched prefix when Found
	Message string // reason when not Found
}

// VNIResult is the outcome for one expected VNI on one device.
type VNIResult struct {
	Layer    string
	Device   string
	VNI      string
	RD       string // matched RD entry, empty when the VNI was not found
	VNIFound bool
	IPs      []IPResult
	Err      error // set when the device's EVPN table could not be walked
}

// Passed returns the number of IPs found.
func (r *VNIResult) Passed() int {
	n := 0
	for _, ip := range r.IPs {
		if ip.Found {
			n++
		}
	}
	return n
}

// OK reports whether the VNI was found and every IP matched.
func (r *VNIResult) OK() bool {
	return r.Err == nil && r.VNIFound && r.Passed() == len(r.IPs)
}

// Summary aggregates IP check counts across a run.
type Summary struct {
	Total  int
	Passed int
}

// Add folds one VNI result into the summary.
func (s *Summary) Add(r *VNIResult) {
	s.Total += len(r.IPs)
	s.Passed += r.Passed()
}

// Failed returns Total - Passed.
func (s Summary) Failed() int {
	return s.Total - s.Passed
}

// OK is the overall verdict: every check passed.
func (s Summary) OK() bool {
	return s.Passed == s.Total
}

// Checker correlates expected IPs with advertised EVPN prefixes.
type Checker struct {
	Mode MatchMode
}

// NewChecker returns a Checker using mode, or DefaultMatchMode if empty.
func NewChecker(mode MatchMode) *Checker {
	if mode == "" {
		mode = DefaultMatchMode
	}
	return &Checker{Mode: mode}
}

// CheckVNI finds the first RD entry whose VNI equals vni and looks for each
// IP among its prefixes. Later entries with the same VNI are never
// consulted. When no entry matches, every IP fails.
func (c *Checker) CheckVNI(entries []RDEntry, vni string, ips []string) VNIResult {
	res := VNIResult{VNI: vni, IPs: make([]IPResult, len(ips))}
	for i, ip := range ips {
		res.IPs[i] = IPResult{IP: ip}
	}

	var matched *RDEntry
	for i := range entries {
		if entries[i].VNI == vni {
			matched = &entries[i]
			break
		}
	}
	if matched == nil {
		for i := range res.IPs {
			res.IPs[i].Message = fmt.Sprintf("VNI %s not found", vni)
		}
		return res
	}

	res.VNIFound = true
	res.RD = matched.RD
	for i, ip := range ips {
		match, err := newMatcher(c.Mode, ip)
		if err != nil {
			res.IPs[i].Message = err.Error()
			continue
		}
		for _, prefix := range matched.Prefixes {
			if match(prefix) {
				res.IPs[i].Found = true
				res.IPs[i].Prefix = prefix
				break
			}
		}
		if !res.IPs[i].Found {
			res.IPs[i].Message = "not found in any prefix"
		}
	}
	return res
}

// CheckDevice checks every VNI expected on one device, in sorted VNI order.
// If the snapshot lacks the EVPN RD table, every VNI carries the
// *PathError and all of its IPs fail.
func (c *Checker) CheckDevice(layer, device string, snap Snapshot, vnis map[string][]string) []VNIResult {
	keys := make([]string, 0, len(vnis))
	for vni := range vnis {
		keys = append(keys, vni)
	}
	sort.Strings(keys)

	entries, navErr := RouteDistinguishers(snap)

	results := make([]VNIResult, 0, len(keys))
	for _, vni := range keys {
		var r VNIResult
		if navErr != nil {
			r = failAll(vni, vnis[vni], navErr)
		} else {
			r = c.CheckVNI(entries, vni, vnis[vni])
		}
		r.Layer = layer
		r.Device = device
		results = append(results, r)
	}
	return results
}

// FailVNI builds a result in which every IP failed because of err.
func FailVNI(layer, device, vni string, ips []string, err error) VNIResult {
	r := failAll(vni, ips, err)
	r.Layer = layer
	r.Device = device
	return r
}

func failAll(vni string, ips []string, err error) VNIResult {
	r := VNIResult{VNI: vni, Err: err, IPs: make([]IPResult, len(ips))}
	for i, ip := range ips {
		r.IPs[i] = IPResult{IP: ip, Message: err.Error()}
	}
	return r
}
