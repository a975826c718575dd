package version

// Build information. Populated at build time via -ldflags.
var (
	Version = "dev"
	Commit  = "unknown"
)
