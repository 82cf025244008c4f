// Package version carries build identification injected via ldflags.
package version

var (
	Version   = "development"
	CommitSHA = "unknown"
)

// String returns the full version string.
func String() string {
	return Version + " (" + CommitSHA + ")"
}
