package commands

import (
	"bufio"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/glexport/internal/model"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func testPrompter(input, password string) *prompter {
	return &prompter{
		in:           bufio.NewReader(strings.NewReader(input)),
		out:          &strings.Builder{},
		readPassword: func() (string, error) { return password, nil },
	}
}

func TestConfigResolverResolve(t *testing.T) {
	tests := map[string]struct {
		flags      model.ExportConfig
		dotenv     string
		configYAML string
		prompter   *prompter
		expCfg     model.ExportConfig
		expErr     bool
	}{
		"Flags only should resolve.": {
			flags:  model.ExportConfig{Instance: "https://gitlab.com", AccessToken: "glpat-flag", OutputDir: "/out"},
			expCfg: model.ExportConfig{Instance: "https://gitlab.com", AccessToken: "glpat-flag", OutputDir: "/out"},
		},

		"The dotenv file should fill the missing settings.": {
			flags:  model.ExportConfig{AccessToken: "glpat-flag"},
			dotenv: "GBPE_GITLAB_INSTANCE=https://gitlab.example.com\nGBPE_GITLAB_ACCESS_TOKEN=glpat-dotenv\nGBPE_OUTPUT_DIR=/backups\n",
			expCfg: model.ExportConfig{Instance: "https://gitlab.example.com", AccessToken: "glpat-flag", OutputDir: "/backups"},
		},

		"The config file should have the lowest precedence.": {
			flags:  model.ExportConfig{OutputDir: "/out"},
			dotenv: "GBPE_GITLAB_ACCESS_TOKEN=glpat-dotenv\n",
			configYAML: `gitlab:
  instance: https://gitlab.yaml.com
  access_token: glpat-yaml
  per_page: 20
output_dir: /yaml
wait:
  max_sweeps: 5
`,
			expCfg: model.ExportConfig{
				Instance:    "https://gitlab.yaml.com",
				AccessToken: "glpat-dotenv",
				OutputDir:   "/out",
				PerPage:     20,
				MaxSweeps:   5,
			},
		},

		"Missing settings should be prompted.": {
			flags:    model.ExportConfig{},
			prompter: testPrompter("https://gitlab.prompt.com\n/prompted\n", " glpat-prompt \n"),
			expCfg:   model.ExportConfig{Instance: "https://gitlab.prompt.com", AccessToken: "glpat-prompt", OutputDir: "/prompted"},
		},

		"Dry run should not prompt the output dir.": {
			flags:    model.ExportConfig{AccessToken: "glpat-flag", DryRun: true},
			prompter: testPrompter("https://gitlab.prompt.com\n", ""),
			expCfg:   model.ExportConfig{Instance: "https://gitlab.prompt.com", AccessToken: "glpat-flag", DryRun: true},
		},

		"Missing settings without prompt should fail.": {
			flags:  model.ExportConfig{Instance: "https://gitlab.com"},
			expErr: true,
		},

		"An invalid config file should fail.": {
			flags:      model.ExportConfig{Instance: "https://gitlab.com", AccessToken: "glpat-flag", OutputDir: "/out"},
			configYAML: "gitlab: [",
			expErr:     true,
		},

		"Invalid merged settings should fail.": {
			flags:  model.ExportConfig{Instance: "https://gitlab.com", AccessToken: "glpat-flag", OutputDir: "/out", MaxWait: -time.Second},
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			r := configResolver{
				envFile:  filepath.Join(dir, "missing.env"),
				prompter: test.prompter,
			}
			if test.dotenv != "" {
				r.envFile = writeFile(t, dir, ".env", test.dotenv)
			}
			if test.configYAML != "" {
				r.configFile = writeFile(t, dir, "glexport.yaml", test.configYAML)
			}

			cfg, err := r.resolve(context.Background(), test.flags)
			if test.expErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, test.expCfg, cfg)
		})
	}
}

func TestReadDotenv(t *testing.T) {
	dir := t.TempDir()

	env, err := readDotenv(filepath.Join(dir, "missing.env"))
	require.NoError(t, err)
	assert.Empty(t, env)

	path := writeFile(t, dir, ".env", "# GitLab\nGBPE_GITLAB_INSTANCE=\"https://gitlab.com\"\nexport GBPE_OUTPUT_DIR=/tmp/out\n")
	env, err = readDotenv(path)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"GBPE_GITLAB_INSTANCE": "https://gitlab.com",
		"GBPE_OUTPUT_DIR":      "/tmp/out",
	}, env)
}

func TestPrompterReadPasswordError(t *testing.T) {
	p := testPrompter("https://gitlab.com\n", "")
	p.readPassword = func() (string, error) { return "", errors.New("not a terminal") }

	_, err := p.complete(model.ExportConfig{})
	assert.Error(t, err)
}
