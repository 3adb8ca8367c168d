package device

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/newtron-network/vnicheck/pkg/testbed"
	"github.com/newtron-network/vnicheck/pkg/util"
)

// commandParser maps a CLI command to what runs on the device and how its
// output becomes structured data.
type commandParser struct {
	remote  string
	convert func([]byte) (map[string]any, error)
}

var sonicParsers = map[string]commandParser{
	CmdShowBGPEVPN: {
		remote:  "sudo vtysh -c 'show bgp l2vpn evpn json'",
		convert: ConvertFRREVPN,
	},
}

// SonicDevice is a SONiC switch reached over SSH. BGP state comes from FRR
// via vtysh; configured VNIs come from CONFIG_DB through the SSH tunnel.
type SonicDevice struct {
	name    string
	profile testbed.Device

	tunnel    *SSHTunnel
	configDB  *ConfigDBClient
	vnis      map[string]string
	connected bool

	mu sync.Mutex
}

// NewSonicDevice creates a SONiC device from its testbed entry.
func NewSonicDevice(d *testbed.Device) *SonicDevice {
	return &SonicDevice{name: d.Name, profile: *d}
}

// Name returns the testbed name of the device.
func (d *SonicDevice) Name() string {
	return d.name
}

// Connect opens the SSH session. CONFIG_DB access is best effort: a failure
// is logged and leaves ConfiguredVNIs empty.
func (d *SonicDevice) Connect(ctx context.Context, timeout time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.connected {
		return nil
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	tun, err := NewSSHTunnel(ctx, d.profile.MgmtIP, d.profile.SSHUser, d.profile.SSHPass, d.profile.SSHPort, timeout)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", d.name, err)
	}
	d.tunnel = tun

	d.configDB = NewConfigDBClient(tun.LocalAddr())
	if err := d.configDB.Connect(ctx); err != nil {
		util.WithDevice(d.name).Warnf("Failed to connect to config_db: %v", err)
		d.configDB.Close()
		d.configDB = nil
	} else if vnis, err := d.configDB.ConfiguredVNIs(ctx); err != nil {
		util.WithDevice(d.name).Warnf("Failed to read VXLAN tables from config_db: %v", err)
	} else {
		d.vnis = vnis
		util.WithDevice(d.name).Debugf("%d VNIs configured in config_db", len(vnis))
	}

	d.connected = true
	util.WithDevice(d.name).Info("Connected")
	return nil
}

// Parse runs command on the device and returns its structured output.
func (d *SonicDevice) Parse(ctx context.Context, command string) (map[string]any, error) {
	d.mu.Lock()
	tun := d.tunnel
	connected := d.connected
	d.mu.Unlock()

	if !connected {
		return nil, fmt.Errorf("device %s: %w", d.name, util.ErrNotConnected)
	}

	p, ok := sonicParsers[normalizeCommand(command)]
	if !ok {
		return nil, unsupportedCommand(d.name, command)
	}

	out, err := tun.ExecCommand(ctx, p.remote)
	if err != nil {
		return nil, fmt.Errorf("device %s: %w", d.name, err)
	}
	parsed, err := p.convert([]byte(strings.TrimSpace(out)))
	if err != nil {
		return nil, fmt.Errorf("device %s: %s: %w", d.name, command, err)
	}
	return parsed, nil
}

// ConfiguredVNIs returns the VNIs found in CONFIG_DB at connect time.
func (d *SonicDevice) ConfiguredVNIs() map[string]string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.vnis
}

// Close tears down the Redis client and SSH session.
func (d *SonicDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.connected {
		return nil
	}
	if d.configDB != nil {
		d.configDB.Close()
		d.configDB = nil
	}
	var err error
	if d.tunnel != nil {
		err = d.tunnel.Close()
		d.tunnel = nil
	}
	d.connected = false
	util.WithDevice(d.name).Info("Disconnected")
	return err
}
