package version

import (
	"fmt"
	"runtime"
)

// Set at build time with
// -ldflags "-X github.com/hostwatch/hostwatch/internal/version.Version=..."
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// GetVersion returns the version string
func GetVersion() string {
	return Version
}

// GetCommit returns the commit hash
func GetCommit() string {
	return Commit
}

// GetFullVersion returns the multi-line output of `hostwatch version`
func GetFullVersion() string {
	return fmt.Sprintf("hostwatch %s\n  commit: %s\n  built:  %s\n  go:     %s %s/%s",
		Version, Commit, BuildDate, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
