package version

import (
	"runtime/debug"
	"testing"
)

func TestInfoString(t *testing.T) {
	t.Parallel()

	if got := (Info{Version: "dev"}).String(); got != "dev" {
		t.Fatalf("unexpected dev string %q", got)
	}
	if got := (Info{Version: "v1.0.0", Commit: "0123456789abcdef"}).String(); got != "v1.0.0 (0123456)" {
		t.Fatalf("unexpected release string %q", got)
	}
}

func TestFromBuildInfoKeepsLdflags(t *testing.T) {
	t.Parallel()

	settings := []debug.BuildSetting{
		{Key: "vcs.revision", Value: "fromvcs"},
		{Key: "vcs.time", Value: "2026-01-02T03:04:05Z"},
	}
	got := fromBuildInfo(Info{Version: "v1", Commit: "fromldflags"}, settings)
	if got.Commit != "fromldflags" {
		t.Fatalf("ldflags commit overwritten: %q", got.Commit)
	}
	if got.BuildTime != "2026-01-02T03:04:05Z" {
		t.Fatalf("expected build time from vcs, got %q", got.BuildTime)
	}
}
