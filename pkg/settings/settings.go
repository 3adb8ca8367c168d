// Package settings manages persistent user settings for the vnicheck CLI.
package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/newtron-network/vnicheck/pkg/evpn"
)

// Settings holds persistent user preferences
type Settings struct {
	// DefaultTestbed is the testbed file to use when --testbed is not specified
	DefaultTestbed string `json:"default_testbed,omitempty"`

	// DefaultMapping is the VNI/IP mapping file used when neither --vnis-ips
	// nor VNIS_IPS is set
	DefaultMapping string `json:"default_mapping,omitempty"`

	// MatchMode is the default --match value
	MatchMode string `json:"match_mode,omitempty"`

	// ConnectTimeout is the default --timeout, as a Go duration string
	ConnectTimeout string `json:"connect_timeout,omitempty"`
}

// DefaultSettingsPath returns the default path for the settings file
func DefaultSettingsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "vnicheck_settings.json"
	}
	return filepath.Join(home, ".vnicheck", "settings.json")
}

// Load reads settings from the default location
func Load() (*Settings, error) {
	return LoadFrom(DefaultSettingsPath())
}

// LoadFrom reads settings from a specific path
func LoadFrom(path string) (*Settings, error) {
	s := &Settings{}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Return empty settings if file doesn't exist
			return s, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	return s, nil
}

// Save writes settings to the default location
func (s *Settings) Save() error {
	return s.SaveTo(DefaultSettingsPath())
}

// SaveTo writes settings to a specific path
func (s *Settings) SaveTo(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Keys lists the names accepted by Set, in display order.
var Keys = []string{"default_testbed", "default_mapping", "match_mode", "connect_timeout"}

// Set assigns one setting by its JSON name. Match modes and timeouts are
// validated before they are stored.
func (s *Settings) Set(key, value string) error {
	switch key {
	case "default_testbed":
		s.DefaultTestbed = value
	case "default_mapping":
		s.DefaultMapping = value
	case "match_mode":
		mode, err := evpn.ParseMatchMode(value)
		if err != nil {
			return err
		}
		s.MatchMode = string(mode)
	case "connect_timeout":
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid connect_timeout %q: %w", value, err)
		}
		s.ConnectTimeout = value
	default:
		return fmt.Errorf("unknown setting %q (valid: %v)", key, Keys)
	}
	return nil
}

// Values returns the non-empty settings keyed by JSON name.
func (s *Settings) Values() map[string]string {
	all := map[string]string{
		"default_testbed": s.DefaultTestbed,
		"default_mapping": s.DefaultMapping,
		"match_mode":      s.MatchMode,
		"connect_timeout": s.ConnectTimeout,
	}
	out := make(map[string]string)
	for k, v := range all {
		if v != "" {
			out[k] = v
		}
	}
	return out
}

// GetMatchMode returns the stored match mode (with fallback)
func (s *Settings) GetMatchMode() evpn.MatchMode {
	if mode, err := evpn.ParseMatchMode(s.MatchMode); err == nil {
		return mode
	}
	return evpn.DefaultMatchMode
}

// GetConnectTimeout returns the stored connect timeout, or zero when unset
// or unparseable.
func (s *Settings) GetConnectTimeout() time.Duration {
	d, err := time.ParseDuration(s.ConnectTimeout)
	if err != nil {
		return 0
	}
	return d
}

// Clear resets all settings to defaults
func (s *Settings) Clear() {
	*s = Settings{}
}
