// Package mapping loads and validates the expected VNI-to-IP mapping.
//
// The mapping file is JSON of the form
//
//	{"l2": {"leaf1": {"10100": ["10.1.1.5", "10.1.1.6"]}},
//	 "l3": {"leaf1": {"50001": ["10.2.0.1"]}}}
//
// At least one of the two layers must be present.
package mapping

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/newtron-network/vnicheck/pkg/util"
)

// EnvVar names the environment variable holding the mapping file path.
const EnvVar = "VNIS_IPS"

// Layer is an EVPN service layer.
type Layer string

const (
	LayerL2 Layer = "l2"
	LayerL3 Layer = "l3"
)

// Layers lists the valid layers in check order.
var Layers = []Layer{LayerL2, LayerL3}

// ErrEnvNotSet is returned when no path is given and VNIS_IPS is unset.
var ErrEnvNotSet = errors.New(EnvVar + " environment variable not set")

// Mapping is a validated expected mapping: layer -> device -> VNI -> IPs.
type Mapping map[Layer]map[string]map[string][]string

// Entry is one (layer, device, VNI) row of a mapping.
type Entry struct {
	Layer  Layer
	Device string
	VNI    string
	IPs    []string
}

// Path resolves the mapping file path: the explicit path if non-empty,
// otherwise the VNIS_IPS environment variable.
func Path(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if p := os.Getenv(EnvVar); p != "" {
		return p, nil
	}
	return "", ErrEnvNotSet
}

// Load reads the file at path, decodes it as JSON and validates it.
func Load(path string) (Mapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	m, err := Validate(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Validate checks the structure of a decoded JSON value and converts it to
// a Mapping. Keys other than the valid layers are ignored.
func Validate(v any) (Mapping, error) {
	top, ok := v.(map[string]any)
	if !ok {
		return nil, util.NewValidationError(fmt.Sprintf("expected object at top level, got %s", kind(v)))
	}

	present := false
	for _, layer := range Layers {
		if _, ok := top[string(layer)]; ok {
			present = true
		}
	}
	if !present {
		return nil, util.NewValidationError("missing 'l2' or 'l3' keys")
	}

	vb := &util.ValidationBuilder{}
	m := make(Mapping)

	for _, layer := range Layers {
		rawLayer, ok := top[string(layer)]
		if !ok {
			continue
		}
		devices, ok := rawLayer.(map[string]any)
		if !ok {
			vb.AddErrorf("%s: expected object keyed by device, got %s", layer, kind(rawLayer))
			continue
		}

		m[layer] = make(map[string]map[string][]string, len(devices))
		for device, rawVNIs := range devices {
			vnis, ok := rawVNIs.(map[string]any)
			if !ok {
				vb.AddErrorf("%s/%s: expected object keyed by VNI, got %s", layer, device, kind(rawVNIs))
				continue
			}

			m[layer][device] = make(map[string][]string, len(vnis))
			for vni, rawIPs := range vnis {
				list, ok := rawIPs.([]any)
				if !ok {
					vb.AddErrorf("%s/%s/%s: expected list of IPs, got %s", layer, device, vni, kind(rawIPs))
					continue
				}
				ips := make([]string, 0, len(list))
				for i, item := range list {
					s, ok := item.(string)
					if !ok {
						vb.AddErrorf("%s/%s/%s[%d]: expected string, got %s", layer, device, vni, i, kind(item))
						continue
					}
					ips = append(ips, s)
				}
				m[layer][device][vni] = ips
			}
		}
	}

	if err := vb.BuildSorted(); err != nil {
		return nil, err
	}
	return m, nil
}

// Devices returns the sorted set of device names referenced by any layer.
func (m Mapping) Devices() []string {
	seen := make(map[string]bool)
	for _, devices := range m {
		for d := range devices {
			seen[d] = true
		}
	}
	return sortedKeys(seen)
}

// LayerDevices returns the sorted device names of one layer.
func (m Mapping) LayerDevices(layer Layer) []string {
	return sortedKeys(m[layer])
}

// Entries returns every (layer, device, VNI) row in check order: layers in
// Layers order, then devices and VNIs sorted.
func (m Mapping) Entries() []Entry {
	var out []Entry
	for _, layer := range Layers {
		devices, ok := m[layer]
		if !ok {
			continue
		}
		for _, device := range sortedKeys(devices) {
			vnis := devices[device]
			for _, vni := range sortedKeys(vnis) {
				out = append(out, Entry{Layer: layer, Device: device, VNI: vni, IPs: vnis[vni]})
			}
		}
	}
	return out
}

// Count returns the number of devices, VNIs and IPs in one layer.
func (m Mapping) Count(layer Layer) (devices, vnis, ips int) {
	for _, v := range m[layer] {
		devices++
		for _, list := range v {
			vnis++
			ips += len(list)
		}
	}
	return devices, vnis, ips
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// kind names a decoded JSON value's type for error messages.
func kind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "object"
	case []any:
		return "list"
	case string:
		return "string"
	case float64:
		return "number"
	case bool:
		return "boolean"
	default:
		return fmt.Sprintf("%T", v)
	}
}
