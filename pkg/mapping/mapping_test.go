package mapping

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/newtron-network/vnicheck/pkg/util"
)

func decode(t *testing.T, s string) any {
	t.Helper()
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		t.Fatalf("bad test JSON %q: %v", s, err)
	}
	return v
}

// ============================================================================
// Validate Tests
// ============================================================================

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantMsg string
	}{
		{"top level list", `[]`, "expected object at top level, got list"},
		{"top level string", `"l2"`, "expected object at top level, got string"},
		{"no layers", `{"l4": {}}`, "missing 'l2' or 'l3' keys"},
		{"empty object", `{}`, "missing 'l2' or 'l3' keys"},
		{"layer not object", `{"l2": ["leaf1"]}`, "l2: expected object keyed by device, got list"},
		{"device not object", `{"l3": {"leaf1": ["10100"]}}`, "l3/leaf1: expected object keyed by VNI, got list"},
		{"ips not list", `{"l2": {"leaf1": {"10100": "10.0.0.1"}}}`, "l2/leaf1/10100: expected list of IPs, got string"},
		{"non-string ip", `{"l2": {"leaf1": {"10100": ["10.0.0.1", 42]}}}`, "l2/leaf1/10100[1]: expected string, got number"},
		{"null ip", `{"l2": {"leaf1": {"10100": [null]}}}`, "l2/leaf1/10100[0]: expected string, got null"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Validate(decode(t, tt.input))
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !errors.Is(err, util.ErrValidationFailed) {
				t.Errorf("error %v should wrap ErrValidationFailed", err)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error = %q, want it to contain %q", err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestValidate_ReportsAllProblems(t *testing.T) {
	_, err := Validate(decode(t, `{
		"l2": {"leaf1": {"10100": [1]}, "leaf2": "bad"},
		"l3": 7
	}`))

	var verr *util.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	want := []string{
		"l2/leaf1/10100[0]: expected string, got number",
		"l2/leaf2: expected object keyed by VNI, got string",
		"l3: expected object keyed by device, got number",
	}
	if diff := cmp.Diff(want, verr.Errors); diff != "" {
		t.Errorf("errors mismatch (-want +got):\n%s", diff)
	}
}

func TestValidate_OK(t *testing.T) {
	m, err := Validate(decode(t, `{
		"l2": {"leaf1": {"10100": ["10.1.1.5", "10.1.1.6"]}},
		"l3": {"leaf1": {"50001": []}, "leaf2": {}},
		"comment": "ignored"
	}`))
	if err != nil {
		t.Fatalf("Validate() error: %v", err)
	}

	want := Mapping{
		LayerL2: {"leaf1": {"10100": {"10.1.1.5", "10.1.1.6"}}},
		LayerL3: {"leaf1": {"50001": {}}, "leaf2": {}},
	}
	if diff := cmp.Diff(want, m); diff != "" {
		t.Errorf("mapping mismatch (-want +got):\n%s", diff)
	}
}

func TestValidate_SingleLayer(t *testing.T) {
	m, err := Validate(decode(t, `{"l3": {"leaf1": {"50001": ["10.2.0.1"]}}}`))
	if err != nil {
		t.Fatalf("Validate() error: %v", err)
	}
	if _, ok := m[LayerL2]; ok {
		t.Error("l2 should be absent")
	}
	if got := m[LayerL3]["leaf1"]["50001"]; len(got) != 1 || got[0] != "10.2.0.1" {
		t.Errorf("l3/leaf1/50001 = %v", got)
	}
}

// ============================================================================
// Mapping Accessor Tests
// ============================================================================

func TestEntries_Order(t *testing.T) {
	m := Mapping{
		LayerL3: {"leaf2": {"50001": {"10.2.0.1"}}},
		LayerL2: {
			"leaf2": {"10200": {"10.1.2.1"}},
			"leaf1": {"10200": {"10.1.2.2"}, "10100": {"10.1.1.1"}},
		},
	}

	var got []string
	for _, e := range m.Entries() {
		got = append(got, string(e.Layer)+"/"+e.Device+"/"+e.VNI)
	}
	want := []string{
		"l2/leaf1/10100",
		"l2/leaf1/10200",
		"l2/leaf2/10200",
		"l3/leaf2/50001",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Entries() order mismatch (-want +got):\n%s", diff)
	}

	if diff := cmp.Diff([]string{"leaf1", "leaf2"}, m.Devices()); diff != "" {
		t.Errorf("Devices() mismatch (-want +got):\n%s", diff)
	}
}

func TestCount(t *testing.T) {
	m := Mapping{
		LayerL2: {
			"leaf1": {"10100": {"a", "b"}, "10200": {"c"}},
			"leaf2": {"10100": {}},
		},
	}
	d, v, i := m.Count(LayerL2)
	if d != 2 || v != 3 || i != 3 {
		t.Errorf("Count(l2) = %d,%d,%d, want 2,3,3", d, v, i)
	}
	d, v, i = m.Count(LayerL3)
	if d != 0 || v != 0 || i != 0 {
		t.Errorf("Count(l3) = %d,%d,%d, want 0,0,0", d, v, i)
	}
}

// ============================================================================
// Path / Load Tests
// ============================================================================

func TestPath(t *testing.T) {
	t.Setenv(EnvVar, "")
	if _, err := Path(""); !errors.Is(err, ErrEnvNotSet) {
		t.Errorf("Path(\"\") with unset env = %v, want ErrEnvNotSet", err)
	}

	t.Setenv(EnvVar, "/tmp/from-env.json")
	if got, _ := Path(""); got != "/tmp/from-env.json" {
		t.Errorf("Path(\"\") = %q, want env value", got)
	}
	if got, _ := Path("/tmp/flag.json"); got != "/tmp/flag.json" {
		t.Errorf("Path(flag) = %q, want flag value", got)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(dir, "nope.json"))
		if !errors.Is(err, os.ErrNotExist) {
			t.Errorf("Load(missing) = %v, want os.ErrNotExist", err)
		}
	})

	t.Run("malformed json", func(t *testing.T) {
		path := filepath.Join(dir, "bad.json")
		os.WriteFile(path, []byte(`{"l2": {`), 0o644)
		_, err := Load(path)
		if err == nil || !strings.Contains(err.Error(), "parsing") {
			t.Errorf("Load(malformed) = %v, want parse error", err)
		}
	})

	t.Run("invalid structure", func(t *testing.T) {
		path := filepath.Join(dir, "invalid.json")
		os.WriteFile(path, []byte(`{"l2": {"leaf1": {"10100": [1]}}}`), 0o644)
		_, err := Load(path)
		if !errors.Is(err, util.ErrValidationFailed) {
			t.Errorf("Load(invalid) = %v, want ErrValidationFailed", err)
		}
	})

	t.Run("valid", func(t *testing.T) {
		path := filepath.Join(dir, "ok.json")
		os.WriteFile(path, []byte(`{"l2": {"leaf1": {"10100": ["10.1.1.5"]}}}`), 0o644)
		m, err := Load(path)
		if err != nil {
			t.Fatalf("Load() error: %v", err)
		}
		if len(m.Entries()) != 1 {
			t.Errorf("Entries() = %d, want 1", len(m.Entries()))
		}
	})
}

func TestLayerDevices(t *testing.T) {
	m := Mapping{LayerL2: {"leaf2": {}, "leaf1": {}}}
	if diff := cmp.Diff([]string{"leaf1", "leaf2"}, m.LayerDevices(LayerL2)); diff != "" {
		t.Errorf("LayerDevices(l2) mismatch (-want +got):\n%s", diff)
	}
	if got := m.LayerDevices(LayerL3); len(got) != 0 {
		t.Errorf("LayerDevices(l3) = %v, want empty", got)
	}
}
