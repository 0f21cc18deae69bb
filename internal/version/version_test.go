package version

import (
	"runtime/debug"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func withBuildInfo(t *testing.T, info *debug.BuildInfo) {
	t.Helper()
	prev := readBuildInfo
	readBuildInfo = func() (*debug.BuildInfo, bool) { return info, info != nil }
	t.Cleanup(func() { readBuildInfo = prev })
}

func withVars(t *testing.T, version, commit, built string) {
	t.Helper()
	pv, pc, pb := Version, GitCommit, BuildTime
	Version, GitCommit, BuildTime = version, commit, built
	t.Cleanup(func() { Version, GitCommit, BuildTime = pv, pc, pb })
}

func testBuildInfo() *debug.BuildInfo {
	return &debug.BuildInfo{
		Main: debug.Module{Path: "github.com/conneroisu/lazyns", Version: "(devel)"},
		Deps: []*debug.Module{
			{Path: "github.com/spf13/cobra", Version: "v1.9.1"},
			{Path: "github.com/spf13/cobra/doc", Version: "v0.0.1"},
			{Path: "gopkg.in/yaml.v3", Version: "v3.0.1"},
			{Path: "example.com/replaced", Version: "v1.0.0", Replace: &debug.Module{Path: "../local"}},
			{Path: "example.com/forked", Version: "v1.0.0", Replace: &debug.Module{Path: "example.com/fork", Version: "v1.0.1"}},
		},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "0123456789abcdef"},
			{Key: "vcs.modified", Value: "true"},
		},
	}
}

func TestModuleVersion(t *testing.T) {
	withBuildInfo(t, testBuildInfo())

	tests := []struct {
		path   string
		want   string
		wantOK bool
	}{
		{"github.com/spf13/cobra", "v1.9.1", true},
		{"github.com/spf13/cobra/internal/x", "v1.9.1", true},
		{"github.com/spf13/cobra/doc", "v0.0.1", true},
		{"github.com/spf13/cobrax", "", false},
		{"gopkg.in/yaml.v3", "v3.0.1", true},
		{"example.com/replaced", "v1.0.0", true},
		{"example.com/forked", "v1.0.1", true},
		{"github.com/conneroisu/lazyns", "", false},
		{"nowhere", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, ok := ModuleVersion(tt.path)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestModuleVersionWithoutBuildInfo(t *testing.T) {
	withBuildInfo(t, nil)
	_, ok := ModuleVersion("github.com/spf13/cobra")
	assert.False(t, ok)
	assert.False(t, IsDirty())
}

func TestGetVersion(t *testing.T) {
	withBuildInfo(t, testBuildInfo())

	withVars(t, "v1.2.3", "abcdef0123", "2025-01-02T03:04:05Z")
	assert.Equal(t, "v1.2.3", GetVersion())
	assert.Equal(t, "abcdef0123", GetGitCommit())
	assert.Equal(t, "v1.2.3 (abcdef0)", GetShortVersion())

	withVars(t, "dev", "unknown", "unknown")
	assert.Equal(t, "dev-0123456", GetVersion())
	assert.Equal(t, "0123456789abcdef", GetGitCommit())
	assert.Equal(t, "dev-0123456 (0123456)", GetShortVersion())
	assert.True(t, IsDirty())
}

func TestGetDetailedVersion(t *testing.T) {
	withBuildInfo(t, nil)
	withVars(t, "v1.0.0", "unknown", "2025-01-02T03:04:05Z")

	detailed := GetDetailedVersion()
	assert.True(t, strings.HasPrefix(detailed, "Version: v1.0.0"))
	assert.NotContains(t, detailed, "Commit:")
	assert.Contains(t, detailed, "Built: 2025-01-02T03:04:05Z")
	assert.Contains(t, detailed, "Go: ")
	assert.Contains(t, detailed, "Platform: ")
}

func TestParseISOTime(t *testing.T) {
	want := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	assert.True(t, parseISOTime("2025-01-02T03:04:05Z").Equal(want))
	assert.True(t, parseISOTime("2025-01-02 03:04:05").Equal(want))
	assert.True(t, parseISOTime("unknown").IsZero())
	assert.True(t, parseISOTime("garbage").IsZero())
}
