package io

import (
	"context"
	"fmt"
	"io/fs"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/slok/glexport/internal/model"
)

// ConfigYAMLRepository loads export configuration from YAML files.
type ConfigYAMLRepository struct {
	fs fs.FS
}

// NewConfigYAMLRepository creates a new YAML config repository.
func NewConfigYAMLRepository(filesystem fs.FS) *ConfigYAMLRepository {
	return &ConfigYAMLRepository{fs: filesystem}
}

// GetConfig loads an export configuration from a YAML file. The returned config can be
// partial, it is the lowest precedence layer and it's validated once all the layers are merged.
func (r *ConfigYAMLRepository) GetConfig(ctx context.Context, path string) (model.ExportConfig, error) {
	data, err := fs.ReadFile(r.fs, path)
	if err != nil {
		return model.ExportConfig{}, fmt.Errorf("reading config file: %w", err)
	}

	if ctx.Err() != nil {
		return model.ExportConfig{}, ctx.Err()
	}

	var cfg ExportConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return model.ExportConfig{}, fmt.Errorf("parsing YAML: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return model.ExportConfig{}, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg.toModel(), nil
}

// ExportConfig represents the YAML structure for export configuration.
type ExportConfig struct {
	GitLab    GitLabConfig `yaml:"gitlab"`
	OutputDir string       `yaml:"output_dir"`
	Wait      WaitConfig   `yaml:"wait"`
	HTTP      HTTPConfig   `yaml:"http"`
}

// GitLabConfig represents the YAML structure for the GitLab instance configuration.
type GitLabConfig struct {
	Instance    string `yaml:"instance"`
	AccessToken string `yaml:"access_token"`
	AllProjects bool   `yaml:"all_projects"`
	PerPage     int    `yaml:"per_page"`
}

// WaitConfig represents the YAML structure for the export completion wait.
type WaitConfig struct {
	PollUnit  time.Duration `yaml:"poll_unit"`
	MaxSweeps int           `yaml:"max_sweeps"`
	MaxWait   time.Duration `yaml:"max_wait"`
}

// HTTPConfig represents the YAML structure for the HTTP client tuning.
type HTTPConfig struct {
	Retries           int           `yaml:"retries"`
	BackoffFactor     time.Duration `yaml:"backoff_factor"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
}

func (c ExportConfig) validate() error {
	if c.GitLab.PerPage < 0 || c.GitLab.PerPage > 100 {
		return fmt.Errorf("gitlab per_page must be between 1 and 100, got: %d", c.GitLab.PerPage)
	}
	if c.Wait.PollUnit < 0 {
		return fmt.Errorf("wait poll_unit can't be negative, got: %s", c.Wait.PollUnit)
	}
	if c.Wait.MaxSweeps < 0 {
		return fmt.Errorf("wait max_sweeps can't be negative, got: %d", c.Wait.MaxSweeps)
	}
	if c.Wait.MaxWait < 0 {
		return fmt.Errorf("wait max_wait can't be negative, got: %s", c.Wait.MaxWait)
	}
	if c.HTTP.Retries < 0 {
		return fmt.Errorf("http retries can't be negative, got: %d", c.HTTP.Retries)
	}
	if c.HTTP.BackoffFactor < 0 {
		return fmt.Errorf("http backoff_factor can't be negative, got: %s", c.HTTP.BackoffFactor)
	}
	if c.HTTP.RequestsPerSecond < 0 {
		return fmt.Errorf("http requests_per_second can't be negative, got: %v", c.HTTP.RequestsPerSecond)
	}
	return nil
}

func (c ExportConfig) toModel() model.ExportConfig {
	return model.ExportConfig{
		Instance:          c.GitLab.Instance,
		AccessToken:       c.GitLab.AccessToken,
		AllProjects:       c.GitLab.AllProjects,
		PerPage:           c.GitLab.PerPage,
		OutputDir:         c.OutputDir,
		PollUnit:          c.Wait.PollUnit,
		MaxSweeps:         c.Wait.MaxSweeps,
		MaxWait:           c.Wait.MaxWait,
		Retries:           c.HTTP.Retries,
		BackoffFactor:     c.HTTP.BackoffFactor,
		RequestsPerSecond: c.HTTP.RequestsPerSecond,
	}
}
