package projectexport_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/slok/glexport/internal/app/projectexport"
	"github.com/slok/glexport/internal/clock/fake"
	"github.com/slok/glexport/internal/export"
	"github.com/slok/glexport/internal/gitlab"
	"github.com/slok/glexport/internal/gitlab/gitlabfake"
	"github.com/slok/glexport/internal/gitlab/gitlabmock"
	"github.com/slok/glexport/internal/model"
	"github.com/slok/glexport/internal/storage/memory"
	"github.com/slok/glexport/internal/storage/storagemock"
)

var t0 = time.Date(2024, 5, 3, 10, 0, 0, 0, time.UTC)

func intPtr(i int) *int { return &i }

func newRepo(t *testing.T) *memory.Repository {
	t.Helper()
	repo, err := memory.NewRepository(memory.RepositoryConfig{})
	require.NoError(t, err)
	return repo
}

func newFakeAPI(t *testing.T, projects ...gitlabfake.Project) (*gitlabfake.Server, gitlab.API, *fake.Clock) {
	t.Helper()
	gl := gitlabfake.New(gitlabfake.Config{Token: "glpat-test", Projects: projects})
	srv := httptest.NewServer(gl)
	t.Cleanup(srv.Close)

	clk := fake.NewClock(t0)
	api, err := gitlab.NewClient(gitlab.ClientConfig{BaseURL: srv.URL, Token: "glpat-test", PerPage: 2, Clock: clk})
	require.NoError(t, err)

	return gl, api, clk
}

type cancelReporter struct {
	export.Reporter
	cancel func()
}

func (c cancelReporter) SweepFinished(sweep, pending int, wait time.Duration) { c.cancel() }

func TestNewService(t *testing.T) {
	tests := map[string]struct {
		cfg    projectexport.ServiceConfig
		expErr bool
		errMsg string
	}{
		"Valid config with all fields": {
			cfg: projectexport.ServiceConfig{
				API:        &gitlabmock.MockAPI{},
				Repository: &storagemock.MockRepository{},
			},
		},
		"Missing API returns error": {
			cfg: projectexport.ServiceConfig{
				Repository: &storagemock.MockRepository{},
			},
			expErr: true,
			errMsg: "gitlab API is required",
		},
		"Missing repository returns error": {
			cfg: projectexport.ServiceConfig{
				API: &gitlabmock.MockAPI{},
			},
			expErr: true,
			errMsg: "repository is required",
		},
		"Negative wait settings return error": {
			cfg: projectexport.ServiceConfig{
				API:        &gitlabmock.MockAPI{},
				Repository: &storagemock.MockRepository{},
				MaxSweeps:  -1,
			},
			expErr: true,
			errMsg: "wait settings can't be negative",
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			svc, err := projectexport.NewService(tt.cfg)

			if tt.expErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				assert.Nil(t, svc)
			} else {
				require.NoError(t, err)
				assert.NotNil(t, svc)
			}
		})
	}
}

func TestServiceRunDryRun(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)

	projects := []model.Project{
		{ID: 1, Name: "A", Path: "a", PathNamespaced: "acme/a"},
		{ID: 2, Name: "B", Path: "b", PathNamespaced: "acme/b"},
	}
	m := &gitlabmock.MockAPI{}
	m.On("ListProjects", mock.Anything, 1).Once().Return(&gitlab.ProjectPage{Projects: projects, Page: intPtr(1), TotalPages: intPtr(1)}, nil)

	repo := newRepo(t)
	svc, err := projectexport.NewService(projectexport.ServiceConfig{
		API:        m,
		Repository: repo,
		Clock:      fake.NewClock(t0),
	})
	require.NoError(err)

	out := filepath.Join(t.TempDir(), "out")
	resp, err := svc.Run(context.Background(), projectexport.Request{Instance: "https://gitlab.example.com", OutputDir: out, DryRun: true})
	require.NoError(err)

	assert.Equal(projects, resp.Projects)
	assert.Nil(resp.Schedule)
	assert.Empty(resp.Artifacts)
	assert.Equal(model.RunStatusSucceeded, resp.Run.Status)
	assert.True(resp.Run.DryRun)
	assert.Equal(2, resp.Run.Enumerated)
	assert.Empty(resp.Run.Dir)

	// Nothing is written on disk.
	_, err = os.Stat(out)
	assert.True(os.IsNotExist(err))

	// The run is recorded.
	stored, err := repo.GetRun(context.Background(), resp.Run.ID)
	require.NoError(err)
	assert.Equal(resp.Run, *stored)
	results, err := repo.ListProjectResults(context.Background(), resp.Run.ID)
	require.NoError(err)
	assert.Empty(results)

	// Only the listing was requested.
	m.AssertExpectations(t)
	m.AssertNotCalled(t, "StartExport", mock.Anything, mock.Anything)
}

func TestServiceRunEndToEnd(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)

	gl, api, clk := newFakeAPI(t,
		gitlabfake.Project{ID: 11, Name: "A", Path: "a", PathNamespaced: "acme/a", FinishAfter: 0, ArchiveFilename: "acme_a_export.tar.gz"},
		gitlabfake.Project{ID: 12, Name: "B", Path: "b", PathNamespaced: "acme/tools/b", FinishAfter: 2},
		gitlabfake.Project{ID: 13, Name: "C", Path: "c", PathNamespaced: "acme/c", ScheduleError: "Export already in progress"},
	)

	repo := newRepo(t)
	svc, err := projectexport.NewService(projectexport.ServiceConfig{API: api, Repository: repo, Clock: clk})
	require.NoError(err)

	out := t.TempDir()
	resp, err := svc.Run(context.Background(), projectexport.Request{Instance: "https://gitlab.example.com", OutputDir: out})
	require.NoError(err)

	// Run.
	assert.Equal(model.RunStatusSucceeded, resp.Run.Status)
	assert.Equal(filepath.Join(out, "gitlab-export-2024-05-03-10-00-00"), resp.Run.Dir)
	assert.Equal(3, resp.Run.Enumerated)
	assert.Equal(2, resp.Run.Scheduled)
	assert.Equal(1, resp.Run.ScheduleFailed)
	assert.Equal(2, resp.Run.Exported)
	assert.Equal(3, resp.Run.Sweeps)
	assert.Empty(resp.Run.Error)
	require.NotNil(resp.Run.FinishedAt)
	assert.Equal(t0.Add(9*time.Second), *resp.Run.FinishedAt)
	assert.Equal([]time.Duration{3 * time.Second, 6 * time.Second}, clk.Sleeps())

	// Archives.
	require.Len(resp.Artifacts, 2)
	data, err := os.ReadFile(filepath.Join(resp.Run.Dir, "acme", "a", "acme_a_export.tar.gz"))
	require.NoError(err)
	assert.Equal("export archive of acme/a", string(data))
	data, err = os.ReadFile(filepath.Join(resp.Run.Dir, "acme", "tools", "b", "b_12.tar.gz"))
	require.NoError(err)
	assert.Equal("export archive of acme/tools/b", string(data))

	// History.
	results, err := repo.ListProjectResults(context.Background(), resp.Run.ID)
	require.NoError(err)
	assert.Equal([]model.ProjectResult{
		{RunID: resp.Run.ID, ProjectID: 13, PathNamespaced: "acme/c", Outcome: model.ProjectOutcomeScheduleFailed, Reason: "Export already in progress"},
		{RunID: resp.Run.ID, ProjectID: 11, PathNamespaced: "acme/a", Outcome: model.ProjectOutcomeExported, ArtifactPath: resp.Artifacts[0].Path, SizeBytes: int64(len("export archive of acme/a"))},
		{RunID: resp.Run.ID, ProjectID: 12, PathNamespaced: "acme/tools/b", Outcome: model.ProjectOutcomeExported, ArtifactPath: resp.Artifacts[1].Path, SizeBytes: int64(len("export archive of acme/tools/b"))},
	}, results)

	assert.Equal(0, gl.StatusQueries(13))
}

func TestServiceRunNothingScheduled(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)

	gl, api, clk := newFakeAPI(t,
		gitlabfake.Project{ID: 1, Name: "A", Path: "a", PathNamespaced: "acme/a", ScheduleError: "Export already in progress"},
	)

	svc, err := projectexport.NewService(projectexport.ServiceConfig{API: api, Repository: newRepo(t), Clock: clk})
	require.NoError(err)

	out := filepath.Join(t.TempDir(), "out")
	resp, err := svc.Run(context.Background(), projectexport.Request{OutputDir: out})
	require.NoError(err)

	assert.Equal(model.RunStatusSucceeded, resp.Run.Status)
	assert.Equal(1, resp.Run.ScheduleFailed)
	assert.Empty(resp.Run.Dir)
	assert.Empty(clk.Sleeps())
	assert.Equal(0, gl.StatusQueries(1))

	_, err = os.Stat(out)
	assert.True(os.IsNotExist(err))
}

func TestServiceRunWaitLimit(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)

	_, api, clk := newFakeAPI(t,
		gitlabfake.Project{ID: 1, Name: "A", Path: "a", PathNamespaced: "acme/a", FinishAfter: 0},
		gitlabfake.Project{ID: 2, Name: "B", Path: "b", PathNamespaced: "acme/b", FinishAfter: 10},
	)

	repo := newRepo(t)
	svc, err := projectexport.NewService(projectexport.ServiceConfig{API: api, Repository: repo, Clock: clk, MaxSweeps: 2})
	require.NoError(err)

	resp, err := svc.Run(context.Background(), projectexport.Request{OutputDir: t.TempDir()})
	var wErr *model.WaitLimitError
	require.ErrorAs(err, &wErr)
	assert.Equal([]int64{2}, wErr.Pending)

	assert.Equal(model.RunStatusFailed, resp.Run.Status)
	assert.Contains(resp.Run.Error, "gave up waiting for 1 exports after 2 sweeps")
	assert.Equal(1, resp.Run.Exported)
	assert.Equal(2, resp.Run.Sweeps)

	results, err := repo.ListProjectResults(context.Background(), resp.Run.ID)
	require.NoError(err)
	require.Len(results, 2)
	assert.Equal(model.ProjectOutcomeExported, results[0].Outcome)
	assert.Equal(int64(1), results[0].ProjectID)
	assert.Equal(model.ProjectOutcomePending, results[1].Outcome)
	assert.Equal(int64(2), results[1].ProjectID)

	stored, err := repo.GetRun(context.Background(), resp.Run.ID)
	require.NoError(err)
	assert.Equal(model.RunStatusFailed, stored.Status)
}

func TestServiceRunCancelled(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)

	_, api, clk := newFakeAPI(t,
		gitlabfake.Project{ID: 1, Name: "A", Path: "a", PathNamespaced: "acme/a", FinishAfter: 5},
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repo := newRepo(t)
	svc, err := projectexport.NewService(projectexport.ServiceConfig{
		API:        api,
		Repository: repo,
		Clock:      clk,
		Reporter:   cancelReporter{Reporter: export.NoopReporter, cancel: cancel},
	})
	require.NoError(err)

	resp, err := svc.Run(ctx, projectexport.Request{OutputDir: t.TempDir()})
	require.ErrorIs(err, context.Canceled)

	stored, err := repo.GetRun(context.Background(), resp.Run.ID)
	require.NoError(err)
	assert.Equal(model.RunStatusFailed, stored.Status)
	assert.NotNil(stored.FinishedAt)

	results, err := repo.ListProjectResults(context.Background(), resp.Run.ID)
	require.NoError(err)
	require.Len(results, 1)
	assert.Equal(model.ProjectOutcomePending, results[0].Outcome)
}

func TestServiceRunErrors(t *testing.T) {
	tests := map[string]struct {
		req    projectexport.Request
		mock   func(api *gitlabmock.MockAPI, repo *storagemock.MockRepository)
		expErr error
		errMsg string
	}{
		"Missing output dir should fail.": {
			req:    projectexport.Request{},
			mock:   func(api *gitlabmock.MockAPI, repo *storagemock.MockRepository) {},
			expErr: model.ErrNotValid,
		},
		"Failing to record the run should fail before calling GitLab.": {
			req: projectexport.Request{OutputDir: "/tmp/out"},
			mock: func(api *gitlabmock.MockAPI, repo *storagemock.MockRepository) {
				repo.On("CreateRun", mock.Anything, mock.Anything).Once().Return(errors.New("something"))
			},
			errMsg: "could not record run",
		},
		"Failing enumeration should mark the run as failed.": {
			req: projectexport.Request{OutputDir: "/tmp/out"},
			mock: func(api *gitlabmock.MockAPI, repo *storagemock.MockRepository) {
				repo.On("CreateRun", mock.Anything, mock.Anything).Once().Return(nil)
				api.On("ListProjects", mock.Anything, 1).Once().Return(nil, &model.APIError{StatusCode: 401, Message: "401 Unauthorized"})
				repo.On("UpdateRun", mock.Anything, mock.MatchedBy(func(r model.Run) bool {
					return r.Status == model.RunStatusFailed && r.FinishedAt != nil
				})).Once().Return(nil)
			},
			errMsg: "could not enumerate projects",
		},
		"Failing scheduling request should mark the run as failed.": {
			req: projectexport.Request{OutputDir: "/tmp/out"},
			mock: func(api *gitlabmock.MockAPI, repo *storagemock.MockRepository) {
				repo.On("CreateRun", mock.Anything, mock.Anything).Once().Return(nil)
				api.On("ListProjects", mock.Anything, 1).Once().Return(&gitlab.ProjectPage{
					Projects:   []model.Project{{ID: 1, Name: "A", Path: "a", PathNamespaced: "acme/a"}},
					Page:       intPtr(1),
					TotalPages: intPtr(1),
				}, nil)
				api.On("StartExport", mock.Anything, int64(1)).Once().Return(nil, &model.TransportError{Method: "POST", Attempts: 11, Err: errors.New("connection refused")})
				repo.On("UpdateRun", mock.Anything, mock.MatchedBy(func(r model.Run) bool {
					return r.Status == model.RunStatusFailed && r.Enumerated == 1
				})).Once().Return(nil)
			},
			errMsg: "could not schedule exports",
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			api := &gitlabmock.MockAPI{}
			repo := &storagemock.MockRepository{}
			test.mock(api, repo)

			svc, err := projectexport.NewService(projectexport.ServiceConfig{API: api, Repository: repo, Clock: fake.NewClock(t0)})
			require.NoError(t, err)

			_, err = svc.Run(context.Background(), test.req)
			require.Error(t, err)
			if test.expErr != nil {
				assert.ErrorIs(t, err, test.expErr)
			}
			if test.errMsg != "" {
				assert.Contains(t, err.Error(), test.errMsg)
			}

			api.AssertExpectations(t)
			repo.AssertExpectations(t)
		})
	}
}
