// Package version holds build metadata for the archdoc binary.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/Masterminds/semver/v3"
)

// Stamped at release time with
//
//	-ldflags "-X archdoc/internal/version.Version=0.5.0 -X archdoc/internal/version.Commit=$(git rev-parse HEAD)"
var (
	Version   = "0.4.0"
	Commit    = ""
	BuildDate = ""
)

// readBuildInfo is replaced in tests.
var readBuildInfo = debug.ReadBuildInfo

// revision prefers the stamped commit and falls back to the VCS data the Go
// toolchain embeds in module builds.
func revision() (commit, date string) {
	commit, date = Commit, BuildDate
	if commit != "" && date != "" {
		return commit, date
	}
	info, ok := readBuildInfo()
	if !ok {
		return commit, date
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			if commit == "" {
				commit = s.Value
			}
		case "vcs.time":
			if date == "" {
				date = s.Value
			}
		}
	}
	return commit, date
}

// Info is the version with an abbreviated commit, e.g. "0.4.0 (3f2a9c1)".
func Info() string {
	commit, _ := revision()
	if len(commit) < 7 {
		return Version
	}
	return fmt.Sprintf("%s (%s)", Version, commit[:7])
}

// Full is the multi-line output of `archdoc version`.
func Full() string {
	commit, date := revision()
	if commit == "" {
		commit = "unknown"
	}
	if date == "" {
		date = "unknown"
	}
	return fmt.Sprintf("archdoc version %s\nCommit: %s\nBuilt: %s\nGo: %s",
		Version, commit, date, runtime.Version())
}

// Semver parses Version. Builds stamped with a non-semver string return an error.
func Semver() (*semver.Version, error) {
	return semver.NewVersion(Version)
}

// UserAgent is sent with outbound HTTP requests.
func UserAgent() string {
	return "archdoc/" + Version
}
