package common

import "fmt"

// Version variables injected at build time via ldflags:
//
//	-X github.com/bobmcallan/folio/internal/common.Version=1.2.0
var (
	Version   = "dev"
	Build     = "unknown"
	GitCommit = "unknown"
)

// GetFullVersion returns a formatted version string with all build info
func GetFullVersion() string {
	return fmt.Sprintf("%s (build: %s, commit: %s)", Version, Build, GitCommit)
}

// UserAgent identifies folio to upstream market data providers.
func UserAgent() string {
	if GitCommit == "unknown" {
		return "folio/" + Version
	}
	return fmt.Sprintf("folio/%s (%s)", Version, GitCommit)
}
