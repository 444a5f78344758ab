// Package version exposes build metadata injected at link time.
package version

import "fmt"

// Set via -ldflags at build time.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// String returns a single-line human readable version string.
func String() string {
	return fmt.Sprintf("pia-provision %s (commit %s, built %s)", Version, Commit, Date)
}
