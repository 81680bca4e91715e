package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"
	"golang.org/x/term"

	"github.com/slok/glexport/internal/conventions"
	"github.com/slok/glexport/internal/model"
	storageio "github.com/slok/glexport/internal/storage/io"
)

// gitlabFlags are the flags of the commands that talk with a GitLab instance.
type gitlabFlags struct {
	cfg        model.ExportConfig
	configFile string
	noRetries  bool
}

func registerGitLabFlags(cmd *kingpin.CmdClause) *gitlabFlags {
	f := &gitlabFlags{}

	cmd.Flag("gitlab-instance", "GitLab instance URL (e.g. https://gitlab.com).").Short('i').Envar(conventions.EnvGitLabInstance).StringVar(&f.cfg.Instance)
	cmd.Flag("access-token", "GitLab personal access token with API scope.").Short('t').Envar(conventions.EnvGitLabAccessToken).StringVar(&f.cfg.AccessToken)
	cmd.Flag("config", "YAML config file, the lowest precedence settings layer.").StringVar(&f.configFile)
	cmd.Flag("all-projects", "Export every visible project, not only the ones where the token user is member.").BoolVar(&f.cfg.AllProjects)
	cmd.Flag("per-page", "Projects per listing page, max 100 (default 100).").IntVar(&f.cfg.PerPage)
	cmd.Flag("retries", "Retries of every failed request (default 10).").IntVar(&f.cfg.Retries)
	cmd.Flag("no-retries", "Disable the request retries.").BoolVar(&f.noRetries)
	cmd.Flag("backoff-factor", "Retry exponential backoff factor (default 3s).").DurationVar(&f.cfg.BackoffFactor)
	cmd.Flag("rps", "Max requests per second, 0 is unlimited.").Float64Var(&f.cfg.RequestsPerSecond)

	return f
}

// configResolver resolves the export configuration from all the settings layers,
// the highest precedence first: flags and env vars, dotenv file, YAML config file and
// finally the interactive prompt.
type configResolver struct {
	envFile    string
	configFile string
	prompter   *prompter
}

func (c configResolver) resolve(ctx context.Context, flags model.ExportConfig) (model.ExportConfig, error) {
	cfg := flags

	// Dotenv.
	dotenv, err := readDotenv(c.envFile)
	if err != nil {
		return model.ExportConfig{}, err
	}
	cfg = cfg.Merge(model.ExportConfig{
		Instance:    dotenv[conventions.EnvGitLabInstance],
		AccessToken: dotenv[conventions.EnvGitLabAccessToken],
		OutputDir:   dotenv[conventions.EnvOutputDir],
	})

	// Config file.
	if c.configFile != "" {
		fsys, name := fileFS(c.configFile)
		fileCfg, err := storageio.NewConfigYAMLRepository(fsys).GetConfig(ctx, name)
		if err != nil {
			return model.ExportConfig{}, fmt.Errorf("could not load config file %s: %w", c.configFile, err)
		}
		cfg = cfg.Merge(fileCfg)
	}

	// Prompt.
	if c.prompter != nil {
		cfg, err = c.prompter.complete(cfg)
		if err != nil {
			return model.ExportConfig{}, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return model.ExportConfig{}, err
	}

	return cfg, nil
}

func readDotenv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}

	fsys, name := fileFS(path)
	f, err := fsys.Open(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("could not open env file: %w", err)
	}
	defer f.Close()

	env, err := godotenv.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("could not parse env file %s: %w", path, err)
	}
	return env, nil
}

// fileFS returns the filesystem of the directory of a file and the file name in it.
func fileFS(path string) (fs.FS, string) {
	return os.DirFS(filepath.Dir(path)), filepath.Base(path)
}

// prompter asks the operator for the missing required settings.
type prompter struct {
	in           *bufio.Reader
	out          io.Writer
	readPassword func() (string, error)
}

func newTerminalPrompter(stdin *os.File, out io.Writer) *prompter {
	return &prompter{
		in:  bufio.NewReader(stdin),
		out: out,
		readPassword: func() (string, error) {
			b, err := term.ReadPassword(int(stdin.Fd()))
			fmt.Fprintln(out)
			return string(b), err
		},
	}
}

func (p *prompter) complete(cfg model.ExportConfig) (model.ExportConfig, error) {
	var err error
	if cfg.Instance == "" {
		cfg.Instance, err = p.ask("GitLab instance URL: ")
		if err != nil {
			return cfg, err
		}
	}
	if cfg.AccessToken == "" {
		fmt.Fprint(p.out, "GitLab access token: ")
		cfg.AccessToken, err = p.readPassword()
		if err != nil {
			return cfg, fmt.Errorf("could not read access token: %w", err)
		}
		cfg.AccessToken = strings.TrimSpace(cfg.AccessToken)
	}
	if cfg.OutputDir == "" && !cfg.DryRun {
		cfg.OutputDir, err = p.ask("Output directory: ")
		if err != nil {
			return cfg, err
		}
	}
	return cfg, nil
}

func (p *prompter) ask(question string) (string, error) {
	fmt.Fprint(p.out, question)
	answer, err := p.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("could not read answer: %w", err)
	}
	return strings.TrimSpace(answer), nil
}
