/*
Package version holds the taptalk build information.

Values are set via ldflags during build:

	go build -ldflags "-X github.com/taptalk/commlog/internal/version.Version=v1.2.0 ..."

The version is recorded as appVersion in every session_start event, and
UserAgent fills the userAgent field.
*/
package version

import (
	"fmt"
	"runtime"
)

var (
	// Version is the release tag, "dev" for local builds.
	Version = "dev"
	// Commit is the short git hash.
	Commit = "none"
	// Date is the UTC build date.
	Date = "unknown"
)

// GetVersion returns the version line shown by --version.
func GetVersion() string {
	return FormatVersion(Version, Commit, Date)
}

// FormatVersion formats version components into a display string.
func FormatVersion(version, commit, date string) string {
	if version == "dev" {
		return version + " (development build)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date)
}

// GetVersionComponents returns individual version components.
func GetVersionComponents() (version, commit, date string) {
	return Version, Commit, Date
}

// UserAgent describes this build and platform, e.g.
// "taptalk/v1.2.0 (linux; arm64)".
func UserAgent(appVersion string) string {
	return fmt.Sprintf("taptalk/%s (%s; %s)", appVersion, runtime.GOOS, runtime.GOARCH)
}
