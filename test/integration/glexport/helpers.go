package glexport

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/slok/glexport/test/integration/testutils"
)

// Config holds integration test configuration loaded from environment variables.
type Config struct {
	Binary string
}

func (c *Config) defaults() error {
	if c.Binary == "" {
		c.Binary = "glexport"
	}

	// go test changes the CWD to the test package directory, a relative path
	// would not point to the built binary.
	if !filepath.IsAbs(c.Binary) {
		return fmt.Errorf("GLEXPORT_INTEGRATION_BINARY must be an absolute path, got %q", c.Binary)
	}
	if _, err := os.Stat(c.Binary); err != nil {
		return fmt.Errorf("glexport binary not found at %q: %w", c.Binary, err)
	}

	return nil
}

// NewConfig loads integration test configuration from environment variables.
// If the config is invalid or the activation env var is not set, the test is skipped.
func NewConfig(t *testing.T) Config {
	t.Helper()

	const (
		envActivation = "GLEXPORT_INTEGRATION"
		envBinary     = "GLEXPORT_INTEGRATION_BINARY"
	)

	if os.Getenv(envActivation) != "true" {
		t.Skipf("Skipping integration test: %s is not set to 'true'", envActivation)
	}

	c := Config{Binary: os.Getenv(envBinary)}
	if err := c.defaults(); err != nil {
		t.Skipf("Skipping due to invalid config: %s", err)
	}

	return c
}

// Instance is the GitLab instance the commands run against.
type Instance struct {
	URL   string
	Token string
}

// RunCmd runs a glexport command against a GitLab instance with a specific db path.
// The GitLab settings are passed with the environment like the shell scripts
// that usually wrap glexport do. It suppresses logging output and ignores any
// dotenv file of the working directory.
func RunCmd(ctx context.Context, config Config, gl Instance, dbPath, cmdArgs string) (stdout, stderr []byte, err error) {
	args := fmt.Sprintf("--no-log --db-path %s --env-file %s %s", dbPath, filepath.Join(filepath.Dir(dbPath), "missing.env"), cmdArgs)
	env := []string{
		"GBPE_GITLAB_INSTANCE=" + gl.URL,
		"GBPE_GITLAB_ACCESS_TOKEN=" + gl.Token,
	}

	return testutils.RunGLExport(ctx, env, config.Binary, args, true)
}

// RunExport runs a full export into outDir with a fast completion wait.
func RunExport(ctx context.Context, config Config, gl Instance, dbPath, outDir string) (stdout, stderr []byte, err error) {
	return RunCmd(ctx, config, gl, dbPath, fmt.Sprintf("export --output-dir %s --poll-unit 10ms --no-retries", outDir))
}

// RunDryRun runs an export dry run.
func RunDryRun(ctx context.Context, config Config, gl Instance, dbPath string) (stdout, stderr []byte, err error) {
	return RunCmd(ctx, config, gl, dbPath, "export --dry-run --no-retries")
}

// RunProjects lists the projects in JSON format.
func RunProjects(ctx context.Context, config Config, gl Instance, dbPath, namespace string) (stdout, stderr []byte, err error) {
	args := "projects --format json --no-retries"
	if namespace != "" {
		args += " --namespace " + namespace
	}
	return RunCmd(ctx, config, gl, dbPath, args)
}

// RunHistoryList lists the runs in JSON format.
func RunHistoryList(ctx context.Context, config Config, gl Instance, dbPath string) (stdout, stderr []byte, err error) {
	return RunCmd(ctx, config, gl, dbPath, "history list --format json")
}

// RunHistoryShow shows a run in JSON format.
func RunHistoryShow(ctx context.Context, config Config, gl Instance, dbPath, runID string) (stdout, stderr []byte, err error) {
	return RunCmd(ctx, config, gl, dbPath, fmt.Sprintf("history show %s --format json", runID))
}
