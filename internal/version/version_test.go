package version

import (
	"strings"
	"testing"
)

func TestGetInfoShortensCommit(t *testing.T) {
	Get()
	oldVersion, oldCommit := Version, CommitHash
	t.Cleanup(func() { Version, CommitHash = oldVersion, oldCommit })

	Version, CommitHash = "1.4.0", "0123456789abcdef"
	if got := GetInfo(); got != "1.4.0 (0123456)" {
		t.Fatalf("GetInfo() = %q", got)
	}

	CommitHash = ""
	if got := GetInfo(); got != "1.4.0" {
		t.Fatalf("GetInfo() = %q", got)
	}
	if b := Get(); b.Version != "1.4.0" || strings.TrimSpace(b.Commit) != "" {
		t.Fatalf("Get() = %+v", b)
	}
}
