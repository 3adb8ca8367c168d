package main

import (
	"errors"
	"testing"
	"time"

	"github.com/newtron-network/vnicheck/pkg/evpn"
	"github.com/newtron-network/vnicheck/pkg/mapping"
	"github.com/newtron-network/vnicheck/pkg/settings"
	"github.com/newtron-network/vnicheck/pkg/testbed"
)

func TestResolveTestbedPath(t *testing.T) {
	s := &settings.Settings{DefaultTestbed: "/etc/vnicheck/testbed.yaml"}

	if got, _ := resolveTestbedPath("lab.yaml", s); got != "lab.yaml" {
		t.Errorf("flag should win, got %q", got)
	}
	if got, _ := resolveTestbedPath("", s); got != "/etc/vnicheck/testbed.yaml" {
		t.Errorf("settings fallback = %q", got)
	}
	if _, err := resolveTestbedPath("", &settings.Settings{}); err == nil {
		t.Error("expected error with no testbed configured")
	}
}

func TestResolveMappingPath(t *testing.T) {
	s := &settings.Settings{DefaultMapping: "/etc/vnicheck/vnis_ips.json"}

	t.Setenv(mapping.EnvVar, "/env/vnis_ips.json")
	if got := resolveMappingPath("flag.json", s); got != "flag.json" {
		t.Errorf("flag should win, got %q", got)
	}
	if got := resolveMappingPath("", s); got != "/env/vnis_ips.json" {
		t.Errorf("env should beat settings, got %q", got)
	}

	t.Setenv(mapping.EnvVar, "")
	if got := resolveMappingPath("", s); got != "/etc/vnicheck/vnis_ips.json" {
		t.Errorf("settings fallback = %q", got)
	}
	if got := resolveMappingPath("", &settings.Settings{}); got != "" {
		t.Errorf("nothing configured should give empty path, got %q", got)
	}
}

func TestResolveMatchMode(t *testing.T) {
	s := &settings.Settings{MatchMode: "contains"}

	tests := []struct {
		flag    string
		s       *settings.Settings
		want    evpn.MatchMode
		wantErr bool
	}{
		{"substring", s, evpn.MatchSubstring, false},
		{"", s, evpn.MatchContains, false},
		{"", &settings.Settings{}, evpn.MatchSubstring, false},
		{"regex", s, "", true},
	}
	for _, tt := range tests {
		got, err := resolveMatchMode(tt.flag, tt.s)
		if (err != nil) != tt.wantErr {
			t.Errorf("resolveMatchMode(%q) error = %v, wantErr %v", tt.flag, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("resolveMatchMode(%q) = %q, want %q", tt.flag, got, tt.want)
		}
	}
}

func TestResolveTimeout(t *testing.T) {
	s := &settings.Settings{ConnectTimeout: "45s"}

	if got := resolveTimeout(5*time.Second, s); got != 5*time.Second {
		t.Errorf("flag should win, got %v", got)
	}
	if got := resolveTimeout(0, s); got != 45*time.Second {
		t.Errorf("settings fallback = %v", got)
	}
	if got := resolveTimeout(0, &settings.Settings{}); got != 0 {
		t.Errorf("unset should be 0, got %v", got)
	}
}

func TestFillPasswords(t *testing.T) {
	tb := &testbed.Testbed{Devices: map[string]*testbed.Device{
		"leaf1":  {Name: "leaf1", Platform: testbed.PlatformSonic, SSHUser: "admin"},
		"leaf2":  {Name: "leaf2", Platform: testbed.PlatformSonic, SSHUser: "admin"},
		"spine1": {Name: "spine1", Platform: testbed.PlatformSonic, SSHUser: "ops", SSHPass: "set"},
		"lab":    {Name: "lab", Platform: testbed.PlatformSnapshot, Snapshot: "lab.json"},
	}}

	var prompts []string
	read := func(prompt string) (string, error) {
		prompts = append(prompts, prompt)
		return "secret", nil
	}

	if err := fillPasswords(tb, tb.DeviceNames(), read); err != nil {
		t.Fatalf("fillPasswords() error: %v", err)
	}
	if len(prompts) != 1 || prompts[0] != "SSH password for admin@leaf1: " {
		t.Errorf("prompts = %q, want one prompt for admin@leaf1", prompts)
	}
	if tb.Devices["leaf2"].SSHPass != "secret" {
		t.Error("leaf2 should reuse the admin password")
	}
	if tb.Devices["spine1"].SSHPass != "set" {
		t.Error("existing password must not be replaced")
	}
	if tb.Devices["lab"].SSHPass != "" {
		t.Error("snapshot devices need no password")
	}

	t.Run("reader error", func(t *testing.T) {
		tb := &testbed.Testbed{Devices: map[string]*testbed.Device{
			"leaf1": {Name: "leaf1", Platform: testbed.PlatformSonic, SSHUser: "admin"},
		}}
		want := errors.New("no tty")
		err := fillPasswords(tb, tb.DeviceNames(), func(string) (string, error) { return "", want })
		if !errors.Is(err, want) {
			t.Errorf("fillPasswords() = %v, want %v", err, want)
		}
	})
}

func TestJoinIPs(t *testing.T) {
	if got := joinIPs(nil); got != "(none)" {
		t.Errorf("joinIPs(nil) = %q", got)
	}
	if got := joinIPs([]string{"10.0.0.1", "10.0.0.2"}); got != "10.0.0.1, 10.0.0.2" {
		t.Errorf("joinIPs() = %q", got)
	}
}
