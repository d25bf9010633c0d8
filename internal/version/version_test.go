package version

import (
	"strings"
	"testing"
)

func withBuild(t *testing.T, v, c, d string) {
	t.Helper()
	prevVersion, prevCommit, prevDate := version, commit, date
	version, commit, date = v, c, d
	t.Cleanup(func() { version, commit, date = prevVersion, prevCommit, prevDate })
}

func TestCurrent_Defaults(t *testing.T) {
	b := Current()
	if b.Version == "" || b.Commit == "" || b.Date == "" {
		t.Fatalf("build fields must never be empty: %+v", b)
	}
	if b.Version != GetVersion() {
		t.Errorf("GetVersion (%s) must match Current (%s)", GetVersion(), b.Version)
	}
}

func TestBuild_IsRelease(t *testing.T) {
	tests := []struct {
		version string
		want    bool
	}{
		{"dev", false},
		{"", false},
		{"v1.4.0", true},
	}
	for _, tt := range tests {
		if got := (Build{Version: tt.version}).IsRelease(); got != tt.want {
			t.Errorf("IsRelease(%q) = %v, want %v", tt.version, got, tt.want)
		}
	}
}

func TestString_ReflectsLdflags(t *testing.T) {
	withBuild(t, "v1.4.0", "abc123", "2026-10-01")

	s := String()
	for _, part := range []string{"sales-service", "version=v1.4.0", "commit=abc123", "date=2026-10-01"} {
		if !strings.Contains(s, part) {
			t.Errorf("String() = %q, missing %q", s, part)
		}
	}

	labels := Current().Labels()
	if labels["version"] != "v1.4.0" || labels["commit"] != "abc123" || labels["date"] != "2026-10-01" {
		t.Errorf("unexpected labels: %v", labels)
	}
}
