package model

import (
	"fmt"
	"net/url"
	"time"
)

// ExportConfig is the configuration of an export run.
type ExportConfig struct {
	// Instance is the GitLab base URL (e.g. https://gitlab.com).
	Instance    string
	AccessToken string
	OutputDir   string
	DryRun      bool
	// AllProjects lists every visible project instead of only the ones the caller is member of.
	AllProjects bool
	PerPage     int

	// PollUnit is the time unit of the linear completion wait backoff.
	PollUnit time.Duration
	// MaxSweeps stops waiting after this number of sweeps, 0 means unbounded.
	MaxSweeps int
	// MaxWait stops waiting after this accumulated wait, 0 means unbounded.
	MaxWait time.Duration

	Retries           int
	BackoffFactor     time.Duration
	RequestsPerSecond float64
}

// Validate validates the export configuration.
func (c ExportConfig) Validate() error {
	if c.Instance == "" {
		return fmt.Errorf("gitlab instance is required: %w", ErrNotValid)
	}
	u, err := url.Parse(c.Instance)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("gitlab instance %q is not a valid URL: %w", c.Instance, ErrNotValid)
	}
	if c.AccessToken == "" {
		return fmt.Errorf("access token is required: %w", ErrNotValid)
	}
	if c.OutputDir == "" && !c.DryRun {
		return fmt.Errorf("output dir is required: %w", ErrNotValid)
	}
	if c.PerPage < 0 || c.PerPage > 100 {
		return fmt.Errorf("per page must be between 1 and 100: %w", ErrNotValid)
	}
	if c.MaxSweeps < 0 {
		return fmt.Errorf("max sweeps can't be negative: %w", ErrNotValid)
	}
	if c.MaxWait < 0 || c.PollUnit < 0 || c.BackoffFactor < 0 {
		return fmt.Errorf("durations can't be negative: %w", ErrNotValid)
	}
	if c.Retries < 0 {
		return fmt.Errorf("retries can't be negative: %w", ErrNotValid)
	}
	if c.RequestsPerSecond < 0 {
		return fmt.Errorf("requests per second can't be negative: %w", ErrNotValid)
	}
	return nil
}

// Merge returns the config with the unset fields filled from the lower precedence config.
// Booleans are enabled when any of the layers enables them.
func (c ExportConfig) Merge(lower ExportConfig) ExportConfig {
	if c.Instance == "" {
		c.Instance = lower.Instance
	}
	if c.AccessToken == "" {
		c.AccessToken = lower.AccessToken
	}
	if c.OutputDir == "" {
		c.OutputDir = lower.OutputDir
	}
	c.DryRun = c.DryRun || lower.DryRun
	c.AllProjects = c.AllProjects || lower.AllProjects
	if c.PerPage == 0 {
		c.PerPage = lower.PerPage
	}
	if c.PollUnit == 0 {
		c.PollUnit = lower.PollUnit
	}
	if c.MaxSweeps == 0 {
		c.MaxSweeps = lower.MaxSweeps
	}
	if c.MaxWait == 0 {
		c.MaxWait = lower.MaxWait
	}
	if c.Retries == 0 {
		c.Retries = lower.Retries
	}
	if c.BackoffFactor == 0 {
		c.BackoffFactor = lower.BackoffFactor
	}
	if c.RequestsPerSecond == 0 {
		c.RequestsPerSecond = lower.RequestsPerSecond
	}
	return c
}
