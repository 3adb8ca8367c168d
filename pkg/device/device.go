// Package device provides the network device sessions used to collect BGP
// EVPN state: SONiC switches reached over SSH, and snapshot files replayed
// offline.
package device

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/newtron-network/vnicheck/pkg/testbed"
	"github.com/newtron-network/vnicheck/pkg/util"
)

// CmdShowBGPEVPN is the command whose parsed output feeds the EVPN checks.
const CmdShowBGPEVPN = "show bgp l2vpn evpn"

// Device is a connectable network device that returns structured command
// output.
type Device interface {
	Name() string
	Connect(ctx context.Context, timeout time.Duration) error
	Parse(ctx context.Context, command string) (map[string]any, error)
	Close() error
}

// VNIConfigReader is implemented by devices that can report the VNIs
// present in their configuration, keyed by VNI with the VLAN or VRF it maps to.
type VNIConfigReader interface {
	ConfiguredVNIs() map[string]string
}

// Open builds the Device for a testbed entry. It does not connect.
func Open(d *testbed.Device) (Device, error) {
	switch d.Platform {
	case testbed.PlatformSonic, "":
		return NewSonicDevice(d), nil
	case testbed.PlatformSnapshot:
		return NewSnapshotDevice(d.Name, d.Snapshot), nil
	}
	return nil, fmt.Errorf("device %s: platform %q: %w", d.Name, d.Platform, util.ErrUnsupported)
}

// normalizeCommand lowercases a command and collapses whitespace so that
// "show  bgp L2VPN evpn" finds the same parser.
func normalizeCommand(cmd string) string {
	return strings.Join(strings.Fields(strings.ToLower(cmd)), " ")
}

func unsupportedCommand(device, cmd string) error {
	return fmt.Errorf("device %s: command %q: %w", device, cmd, util.ErrUnsupported)
}
