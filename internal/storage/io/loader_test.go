package io

import (
	"context"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/glexport/internal/model"
)

func TestConfigYAMLRepositoryGetConfig(t *testing.T) {
	tests := map[string]struct {
		fs     fstest.MapFS
		path   string
		expCfg model.ExportConfig
		expErr bool
		errMsg string
	}{
		"A complete config should load successfully": {
			fs: fstest.MapFS{
				"glexport.yaml": &fstest.MapFile{
					Data: []byte(`gitlab:
  instance: https://gitlab.example.com
  access_token: glpat-xxx
  all_projects: true
  per_page: 50
output_dir: /backups/gitlab
wait:
  poll_unit: 2s
  max_sweeps: 20
  max_wait: 1h
http:
  retries: 5
  backoff_factor: 500ms
  requests_per_second: 10
`),
				},
			},
			path: "glexport.yaml",
			expCfg: model.ExportConfig{
				Instance:          "https://gitlab.example.com",
				AccessToken:       "glpat-xxx",
				AllProjects:       true,
				PerPage:           50,
				OutputDir:         "/backups/gitlab",
				PollUnit:          2 * time.Second,
				MaxSweeps:         20,
				MaxWait:           time.Hour,
				Retries:           5,
				BackoffFactor:     500 * time.Millisecond,
				RequestsPerSecond: 10,
			},
		},
		"A partial config should load successfully": {
			fs: fstest.MapFS{
				"glexport.yaml": &fstest.MapFile{
					Data: []byte(`gitlab:
  instance: https://gitlab.com
`),
				},
			},
			path:   "glexport.yaml",
			expCfg: model.ExportConfig{Instance: "https://gitlab.com"},
		},
		"An empty config should load successfully": {
			fs: fstest.MapFS{
				"empty.yaml": &fstest.MapFile{
					Data: []byte(`---
`),
				},
			},
			path:   "empty.yaml",
			expCfg: model.ExportConfig{},
		},
		"Missing file should return error": {
			fs:     fstest.MapFS{},
			path:   "nonexistent.yaml",
			expErr: true,
			errMsg: "reading config file",
		},
		"Invalid YAML should return error": {
			fs: fstest.MapFS{
				"invalid.yaml": &fstest.MapFile{
					Data: []byte(`invalid: yaml: content: {}`),
				},
			},
			path:   "invalid.yaml",
			expErr: true,
			errMsg: "parsing YAML",
		},
		"Invalid duration should return error": {
			fs: fstest.MapFS{
				"glexport.yaml": &fstest.MapFile{
					Data: []byte(`wait:
  poll_unit: soon
`),
				},
			},
			path:   "glexport.yaml",
			expErr: true,
			errMsg: "parsing YAML",
		},
		"Per page over the API limit should return error": {
			fs: fstest.MapFS{
				"glexport.yaml": &fstest.MapFile{
					Data: []byte(`gitlab:
  per_page: 500
`),
				},
			},
			path:   "glexport.yaml",
			expErr: true,
			errMsg: "per_page must be between 1 and 100",
		},
		"Negative retries should return error": {
			fs: fstest.MapFS{
				"glexport.yaml": &fstest.MapFile{
					Data: []byte(`http:
  retries: -1
`),
				},
			},
			path:   "glexport.yaml",
			expErr: true,
			errMsg: "retries can't be negative",
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			repo := NewConfigYAMLRepository(tc.fs)
			cfg, err := repo.GetConfig(context.Background(), tc.path)

			if tc.expErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.errMsg)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.expCfg, cfg)
		})
	}
}

func TestConfigYAMLRepositoryGetConfigContextCancellation(t *testing.T) {
	fs := fstest.MapFS{
		"glexport.yaml": &fstest.MapFile{
			Data: []byte(`output_dir: /tmp
`),
		},
	}

	repo := NewConfigYAMLRepository(fs)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := repo.GetConfig(ctx, "glexport.yaml")
	require.Error(t, err)
	assert.Equal(t, context.Canceled, err)
}
