// Package testbed loads the YAML description of the devices to check.
//
//	name: dc1
//	defaults:
//	  ssh_user: admin
//	  ssh_pass: YourPaSsWoRd
//	  connect_timeout: 30s
//	devices:
//	  leaf1:
//	    platform: sonic
//	    mgmt_ip: 10.0.0.11
//	  leaf2:
//	    platform: snapshot
//	    snapshot: snapshots/leaf2.json
package testbed

import (
	"fmt"
	"net/netip"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/newtron-network/vnicheck/pkg/util"
)

// Platforms understood by the device layer.
const (
	PlatformSonic    = "sonic"
	PlatformSnapshot = "snapshot"
)

// DefaultConnectTimeout bounds each device connection.
const DefaultConnectTimeout = 30 * time.Second

// Testbed is a named set of devices.
type Testbed struct {
	Name     string             `yaml:"name"`
	Defaults Defaults           `yaml:"defaults"`
	Devices  map[string]*Device `yaml:"devices"`

	path string
}

// Defaults are applied to every device that leaves the field unset.
type Defaults struct {
	SSHUser        string        `yaml:"ssh_user,omitempty"`
	SSHPass        string        `yaml:"ssh_pass,omitempty"`
	SSHPort        int           `yaml:"ssh_port,omitempty"`
	ConnectTimeout time.Duration `yaml:"connect_timeout,omitempty"`
}

// Device is one testbed entry.
type Device struct {
	Name           string        `yaml:"-"`
	Platform       string        `yaml:"platform"`
	MgmtIP         string        `yaml:"mgmt_ip,omitempty"`
	SSHUser        string        `yaml:"ssh_user,omitempty"`
	SSHPass        string        `yaml:"ssh_pass,omitempty"`
	SSHPort        int           `yaml:"ssh_port,omitempty"` // 0 means default (22)
	Snapshot       string        `yaml:"snapshot,omitempty"`
	ConnectTimeout time.Duration `yaml:"connect_timeout,omitempty"`
}

// Load reads, defaults and validates a testbed file. Relative snapshot
// paths are resolved against the testbed file's directory.
func Load(path string) (*Testbed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading testbed %s: %w", path, err)
	}

	tb, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("testbed %s: %w", path, err)
	}
	tb.path = path

	dir := filepath.Dir(path)
	for _, d := range tb.Devices {
		if d.Snapshot != "" && !filepath.IsAbs(d.Snapshot) {
			d.Snapshot = filepath.Join(dir, d.Snapshot)
		}
	}
	return tb, nil
}

// Parse decodes testbed YAML, applies defaults and validates the result.
func Parse(data []byte) (*Testbed, error) {
	var tb Testbed
	if err := yaml.Unmarshal(data, &tb); err != nil {
		return nil, fmt.Errorf("parsing: %w", err)
	}
	tb.applyDefaults()
	if err := tb.Validate(); err != nil {
		return nil, err
	}
	return &tb, nil
}

func (tb *Testbed) applyDefaults() {
	if tb.Defaults.ConnectTimeout == 0 {
		tb.Defaults.ConnectTimeout = DefaultConnectTimeout
	}
	for name, d := range tb.Devices {
		if d == nil {
			continue
		}
		d.Name = name
		if d.Platform == "" {
			d.Platform = PlatformSonic
		}
		if d.SSHUser == "" {
			d.SSHUser = tb.Defaults.SSHUser
		}
		if d.SSHPass == "" {
			d.SSHPass = tb.Defaults.SSHPass
		}
		if d.SSHPort == 0 {
			d.SSHPort = tb.Defaults.SSHPort
		}
		if d.ConnectTimeout == 0 {
			d.ConnectTimeout = tb.Defaults.ConnectTimeout
		}
	}
}

// Validate checks that every device carries what its platform needs.
func (tb *Testbed) Validate() error {
	vb := &util.ValidationBuilder{}
	vb.Add(len(tb.Devices) > 0, "no devices defined")

	for _, name := range tb.DeviceNames() {
		d := tb.Devices[name]
		if d == nil {
			vb.AddErrorf("device %s: empty definition", name)
			continue
		}
		switch d.Platform {
		case PlatformSonic:
			if _, err := netip.ParseAddr(d.MgmtIP); err != nil {
				vb.AddErrorf("device %s: mgmt_ip %q is not an IP address", name, d.MgmtIP)
			}
			vb.Add(d.SSHUser != "", fmt.Sprintf("device %s: ssh_user required for platform sonic", name))
			vb.Add(d.SSHPort >= 0 && d.SSHPort <= 65535, fmt.Sprintf("device %s: ssh_port %d out of range", name, d.SSHPort))
		case PlatformSnapshot:
			vb.Add(d.Snapshot != "", fmt.Sprintf("device %s: snapshot path required for platform snapshot", name))
		default:
			vb.AddErrorf("device %s: unknown platform %q", name, d.Platform)
		}
		vb.Add(d.ConnectTimeout >= 0, fmt.Sprintf("device %s: negative connect_timeout", name))
	}

	if err := vb.Build(); err != nil {
		return fmt.Errorf("%w: %w", util.ErrInvalidConfig, err)
	}
	return nil
}

// DeviceNames returns device names in sorted order.
func (tb *Testbed) DeviceNames() []string {
	names := make([]string, 0, len(tb.Devices))
	for name := range tb.Devices {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Path returns the file the testbed was loaded from, if any.
func (tb *Testbed) Path() string {
	return tb.path
}
