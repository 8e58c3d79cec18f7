// Package buildinfo exposes compile-time metadata for the monzokit binary.
package buildinfo

// These are overridden via ldflags on release builds; the defaults identify
// a local development build.
var (
	// Version is the semantic version or git describe output of the binary.
	Version = "dev"

	// Commit is the git commit SHA baked into the binary.
	Commit = "none"

	// BuildDate records when the binary was built in UTC.
	BuildDate = "unknown"
)
