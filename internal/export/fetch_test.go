package export_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/slok/glexport/internal/export"
	"github.com/slok/glexport/internal/gitlab"
	"github.com/slok/glexport/internal/gitlab/gitlabmock"
	"github.com/slok/glexport/internal/model"
)

func newDownload(filename, data string) *gitlab.Download {
	return &gitlab.Download{
		Filename: filename,
		Size:     int64(len(data)),
		Body:     io.NopCloser(strings.NewReader(data)),
	}
}

func TestFetcherFetch(t *testing.T) {
	tests := map[string]struct {
		project     model.Project
		setup       func(t *testing.T, runDir string)
		mock        func(m *gitlabmock.MockAPI)
		expFilename string
		expRelPath  string
		expData     string
		expErr      error
		expAnyErr   bool
	}{
		"An advertised filename should be used.": {
			project: testProject(1, "acme/backend/api"),
			mock: func(m *gitlabmock.MockAPI) {
				m.On("DownloadExport", mock.Anything, int64(1)).Once().Return(newDownload("2024-05-03_api_export.tar.gz", "data-api"), nil)
			},
			expFilename: "2024-05-03_api_export.tar.gz",
			expRelPath:  "acme/backend/api/2024-05-03_api_export.tar.gz",
			expData:     "data-api",
		},
		"Without an advertised filename the fallback name should be used.": {
			project: testProject(7, "acme/web"),
			mock: func(m *gitlabmock.MockAPI) {
				m.On("DownloadExport", mock.Anything, int64(7)).Once().Return(newDownload("", "data-web"), nil)
			},
			expFilename: "web_7.tar.gz",
			expRelPath:  "acme/web/web_7.tar.gz",
			expData:     "data-web",
		},
		"An existing project directory should fail without writing.": {
			project: testProject(1, "acme/api"),
			setup: func(t *testing.T, runDir string) {
				require.NoError(t, os.MkdirAll(filepath.Join(runDir, "acme", "api"), 0o755))
			},
			mock: func(m *gitlabmock.MockAPI) {
				m.On("DownloadExport", mock.Anything, int64(1)).Once().Return(newDownload("x.tar.gz", "data"), nil)
			},
			expErr: model.ErrAlreadyExists,
		},
		"An existing namespace directory should not fail.": {
			project: testProject(2, "acme/api"),
			setup: func(t *testing.T, runDir string) {
				require.NoError(t, os.MkdirAll(filepath.Join(runDir, "acme", "web"), 0o755))
			},
			mock: func(m *gitlabmock.MockAPI) {
				m.On("DownloadExport", mock.Anything, int64(2)).Once().Return(newDownload("", "data"), nil)
			},
			expFilename: "api_2.tar.gz",
			expRelPath:  "acme/api/api_2.tar.gz",
			expData:     "data",
		},
		"A fallback name that is not a file name should fail.": {
			project: model.Project{ID: 3, Path: "a/b", PathNamespaced: "acme/b"},
			mock: func(m *gitlabmock.MockAPI) {
				m.On("DownloadExport", mock.Anything, int64(3)).Once().Return(newDownload("", "data"), nil)
			},
			expErr: model.ErrNotValid,
		},
		"A failing download should fail.": {
			project: testProject(1, "acme/api"),
			mock: func(m *gitlabmock.MockAPI) {
				m.On("DownloadExport", mock.Anything, int64(1)).Once().Return(nil, errors.New("something"))
			},
			expAnyErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			require := require.New(t)
			assert := assert.New(t)

			runDir := t.TempDir()
			if test.setup != nil {
				test.setup(t, runDir)
			}

			m := &gitlabmock.MockAPI{}
			test.mock(m)

			f, err := export.NewFetcher(export.FetcherConfig{API: m})
			require.NoError(err)

			gotArtifact, err := f.Fetch(context.Background(), runDir, test.project, 2)

			switch {
			case test.expErr != nil:
				assert.ErrorIs(err, test.expErr)
			case test.expAnyErr:
				assert.Error(err)
			default:
				require.NoError(err)
				expPath := filepath.Join(runDir, filepath.FromSlash(test.expRelPath))
				assert.Equal(&model.Artifact{
					ProjectID:      test.project.ID,
					PathNamespaced: test.project.PathNamespaced,
					Filename:       test.expFilename,
					Path:           expPath,
					SizeBytes:      int64(len(test.expData)),
					Sweep:          2,
				}, gotArtifact)

				data, err := os.ReadFile(expPath)
				require.NoError(err)
				assert.Equal(test.expData, string(data))
			}

			m.AssertExpectations(t)
		})
	}
}

func TestFetcherFetchProgress(t *testing.T) {
	m := &gitlabmock.MockAPI{}
	m.On("DownloadExport", mock.Anything, int64(1)).Once().Return(newDownload("a.tar.gz", "some archive data"), nil)

	var status bytes.Buffer
	f, err := export.NewFetcher(export.FetcherConfig{API: m, StatusWriter: &status})
	require.NoError(t, err)

	_, err = f.Fetch(context.Background(), t.TempDir(), testProject(1, "acme/a"), 1)
	require.NoError(t, err)

	assert.Contains(t, status.String(), "acme/a")
	assert.Contains(t, status.String(), "100%")
}

func TestFetcherFetchTwiceShouldNotOverwrite(t *testing.T) {
	require := require.New(t)

	m := &gitlabmock.MockAPI{}
	m.On("DownloadExport", mock.Anything, int64(1)).Once().Return(newDownload("a.tar.gz", "first"), nil)
	m.On("DownloadExport", mock.Anything, int64(1)).Once().Return(newDownload("a.tar.gz", "second"), nil)

	f, err := export.NewFetcher(export.FetcherConfig{API: m})
	require.NoError(err)

	runDir := t.TempDir()
	p := testProject(1, "acme/a")
	_, err = f.Fetch(context.Background(), runDir, p, 1)
	require.NoError(err)
	_, err = f.Fetch(context.Background(), runDir, p, 2)
	require.ErrorIs(err, model.ErrAlreadyExists)

	data, err := os.ReadFile(filepath.Join(runDir, "acme", "a", "a.tar.gz"))
	require.NoError(err)
	assert.Equal(t, "first", string(data))
}
