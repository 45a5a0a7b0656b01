package model

// GitContext represents repository state derived at trigger time
type GitContext struct {
	Repository string // Repository slug, e.g. "cloudforet-io/console"
	CommitSHA  string // Commit the release is built from
	Branch     string // Branch name, empty for detached HEAD
	RemoteURL  string // URL of the configured remote
}
