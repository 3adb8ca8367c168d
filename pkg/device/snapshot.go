package device

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/newtron-network/vnicheck/pkg/util"
)

// SnapshotDevice replays a saved, already-parsed "show bgp l2vpn evpn"
// output from a JSON or YAML file.
type SnapshotDevice struct {
	name string
	path string
	data map[string]any
}

// NewSnapshotDevice creates a device backed by the snapshot file at path.
func NewSnapshotDevice(name, path string) *SnapshotDevice {
	return &SnapshotDevice{name: name, path: path}
}

// Name returns the testbed name of the device.
func (d *SnapshotDevice) Name() string {
	return d.name
}

// Connect loads the snapshot file. The timeout is unused.
func (d *SnapshotDevice) Connect(ctx context.Context, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := LoadSnapshotFile(d.path)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", d.name, err)
	}
	d.data = data
	util.WithDevice(d.name).Debugf("Loaded snapshot %s", d.path)
	return nil
}

// Parse returns the snapshot for CmdShowBGPEVPN.
func (d *SnapshotDevice) Parse(ctx context.Context, command string) (map[string]any, error) {
	if d.data == nil {
		return nil, fmt.Errorf("device %s: %w", d.name, util.ErrNotConnected)
	}
	if normalizeCommand(command) != CmdShowBGPEVPN {
		return nil, unsupportedCommand(d.name, command)
	}
	return d.data, nil
}

// Close releases the loaded snapshot.
func (d *SnapshotDevice) Close() error {
	d.data = nil
	return nil
}

// LoadSnapshotFile decodes a snapshot; ".yaml"/".yml" files are YAML,
// anything else JSON.
func LoadSnapshotFile(path string) (map[string]any, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}

	var data map[string]any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(raw, &data)
	default:
		err = json.Unmarshal(raw, &data)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing snapshot %s: %w", path, err)
	}
	if data == nil {
		data = map[string]any{}
	}
	return data, nil
}
