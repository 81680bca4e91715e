package conventions

import (
	"path/filepath"
	"time"
)

const (
	// DefaultDataDir is the default glexport data directory name (relative to home).
	DefaultDataDir = ".glexport"
	// HistoryDBFile is the run history database filename.
	HistoryDBFile = "glexport.db"
	// DefaultEnvFile is the dotenv file loaded by default from the working directory.
	DefaultEnvFile = ".env"

	// Run directory naming.

	// RunDirPrefix is the prefix of every run directory.
	RunDirPrefix = "gitlab-export-"
	// RunDirTimeLayout is the timestamp layout of the run directory name.
	RunDirTimeLayout = "2006-01-02-15-04-05"

	// Environment variables shared with other GitLab export tooling.

	// EnvGitLabInstance is the GitLab instance URL env var.
	EnvGitLabInstance = "GBPE_GITLAB_INSTANCE"
	// EnvGitLabAccessToken is the GitLab access token env var.
	EnvGitLabAccessToken = "GBPE_GITLAB_ACCESS_TOKEN"
	// EnvOutputDir is the output directory env var.
	EnvOutputDir = "GBPE_OUTPUT_DIR"
)

// HistoryDBPath returns the default run history database path.
func HistoryDBPath(homeDir string) string {
	return filepath.Join(homeDir, DefaultDataDir, HistoryDBFile)
}

// RunDirName returns the run directory name for a run started at t.
func RunDirName(t time.Time) string {
	return RunDirPrefix + t.Format(RunDirTimeLayout)
}

// ProjectDir returns the directory where the archive of a project is placed.
// The namespaced path uses `/` as separator regardless of the OS.
func ProjectDir(runDir, pathNamespaced string) string {
	return filepath.Join(runDir, filepath.FromSlash(pathNamespaced))
}

// ArtifactPath returns the full path of a project archive.
func ArtifactPath(runDir, pathNamespaced, filename string) string {
	return filepath.Join(ProjectDir(runDir, pathNamespaced), filename)
}
