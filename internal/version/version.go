package version

import "fmt"

var (
	// Version is the current application version
	Version = "dev"
	// GitSHA is the git commit SHA
	GitSHA = "unknown"
	// BuildTime is the build timestamp
	BuildTime = "unknown"
)

// String returns a single-line version banner suitable for -version output.
func String() string {
	return fmt.Sprintf("trajlab %s (%s, built %s)", Version, GitSHA, BuildTime)
}
