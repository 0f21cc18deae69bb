package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
	"time"
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string    `json:"version" yaml:"version"`
	GitCommit string    `json:"git_commit" yaml:"git_commit"`
	BuildTime time.Time `json:"build_time" yaml:"build_time"`
	GoVersion string    `json:"go_version" yaml:"go_version"`
	Platform  string    `json:"platform" yaml:"platform"`
}

// These variables are set at build time using -ldflags
var (
	// Version is the semantic version of the application
	Version = "dev"

	// GitCommit is the git commit hash when the binary was built
	GitCommit = "unknown"

	// BuildTime is the time when the binary was built (RFC3339 format)
	BuildTime = "unknown"
)

// readBuildInfo is swapped in tests.
var readBuildInfo = debug.ReadBuildInfo

// GetBuildInfo returns comprehensive build information
func GetBuildInfo() *BuildInfo {
	return &BuildInfo{
		Version:   GetVersion(),
		GitCommit: GetGitCommit(),
		BuildTime: parseISOTime(BuildTime),
		GoVersion: runtime.Version(),
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
}

// GetVersion returns the application version
func GetVersion() string {
	if Version != "" && Version != "dev" {
		return Version
	}

	if info, ok := readBuildInfo(); ok {
		if info.Main.Version != "(devel)" && info.Main.Version != "" {
			return info.Main.Version
		}

		for _, setting := range info.Settings {
			if setting.Key == "vcs.revision" && len(setting.Value) >= 7 {
				return fmt.Sprintf("dev-%s", setting.Value[:7])
			}
		}
	}

	return "dev"
}

// GetGitCommit returns the git commit hash
func GetGitCommit() string {
	if GitCommit != "" && GitCommit != "unknown" {
		return GitCommit
	}

	if info, ok := readBuildInfo(); ok {
		for _, setting := range info.Settings {
			if setting.Key == "vcs.revision" {
				return setting.Value
			}
		}
	}

	return "unknown"
}

// GetShortVersion returns a short version string suitable for display
func GetShortVersion() string {
	version := GetVersion()
	commit := GetGitCommit()

	if commit != "unknown" && len(commit) >= 7 {
		shortCommit := commit[:7]
		if version != "dev" {
			return fmt.Sprintf("%s (%s)", version, shortCommit)
		}
		return fmt.Sprintf("dev-%s", shortCommit)
	}

	return version
}

// GetDetailedVersion returns a detailed version string with all build info
func GetDetailedVersion() string {
	info := GetBuildInfo()

	var parts []string
	parts = append(parts, fmt.Sprintf("Version: %s", info.Version))

	if info.GitCommit != "unknown" {
		parts = append(parts, fmt.Sprintf("Commit: %s", info.GitCommit))
	}

	if !info.BuildTime.IsZero() {
		parts = append(parts, fmt.Sprintf("Built: %s", info.BuildTime.Format(time.RFC3339)))
	}

	parts = append(parts, fmt.Sprintf("Go: %s", info.GoVersion))
	parts = append(parts, fmt.Sprintf("Platform: %s", info.Platform))

	return strings.Join(parts, "\n")
}

// IsDirty returns true if the working directory was dirty when built
func IsDirty() bool {
	if info, ok := readBuildInfo(); ok {
		for _, setting := range info.Settings {
			if setting.Key == "vcs.modified" {
				return setting.Value == "true"
			}
		}
	}
	return false
}

// ModuleVersion returns the version of the Go module providing path, as
// recorded in the running binary's build info. A package path resolves to
// the longest module path that prefixes it. Modules built from source
// ("(devel)") and paths not linked into the binary report false.
func ModuleVersion(path string) (string, bool) {
	info, ok := readBuildInfo()
	if !ok {
		return "", false
	}
	return lookupModule(info, path)
}

func lookupModule(info *debug.BuildInfo, path string) (string, bool) {
	best := ""
	version := ""
	consider := func(m *debug.Module) {
		if m == nil {
			return
		}
		if m.Replace != nil && m.Replace.Version != "" {
			m = &debug.Module{Path: m.Path, Version: m.Replace.Version}
		}
		if path != m.Path && !strings.HasPrefix(path, m.Path+"/") {
			return
		}
		if len(m.Path) > len(best) {
			best = m.Path
			version = m.Version
		}
	}

	consider(&info.Main)
	for _, dep := range info.Deps {
		consider(dep)
	}

	if best == "" || version == "" || version == "(devel)" {
		return "", false
	}
	return version, true
}

// parseISOTime parses an ISO 8601 time string, returns zero time on error
func parseISOTime(timeStr string) time.Time {
	if timeStr == "" || timeStr == "unknown" {
		return time.Time{}
	}

	formats := []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
	}

	for _, format := range formats {
		if t, err := time.Parse(format, timeStr); err == nil {
			return t
		}
	}

	return time.Time{}
}
