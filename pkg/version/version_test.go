package version

import "testing"

func TestDefaults(t *testing.T) {
	if Version != "dev" {
		t.Errorf("default Version = %q, want %q", Version, "dev")
	}
	if GitCommit != "unknown" {
		t.Errorf("default GitCommit = %q, want %q", GitCommit, "unknown")
	}
	if got := Info(); got != "dev build" {
		t.Errorf("Info() = %q, want %q", got, "dev build")
	}
}

func TestInfoRelease(t *testing.T) {
	v, c, d := Version, GitCommit, BuildDate
	defer func() { Version, GitCommit, BuildDate = v, c, d }()

	Version, GitCommit, BuildDate = "v1.2.0", "abc1234", "2026-01-01"
	if got, want := Info(), "v1.2.0 (abc1234) built 2026-01-01"; got != want {
		t.Errorf("Info() = %q, want %q", got, want)
	}
}
