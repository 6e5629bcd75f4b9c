package version

// Set at build time via -ldflags "-X github.com/stakewell/stakedash/internal/version.Version=..."
var (
	Version = "unknown"
	Commit  = "unknown"
)

func GetVersion() string {
	return Version
}

func GetCommit() string {
	return Commit
}
