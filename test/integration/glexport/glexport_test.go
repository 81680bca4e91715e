package glexport_test

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/glexport/internal/gitlab/gitlabfake"
	intglexport "github.com/slok/glexport/test/integration/glexport"
)

const testToken = "glpat-integration"

// newTestDB returns a fresh SQLite database path for test isolation.
func newTestDB(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "test-glexport.db")
}

// newTestInstance starts a fake GitLab instance serving the test projects.
func newTestInstance(t *testing.T) intglexport.Instance {
	t.Helper()

	srv := httptest.NewServer(gitlabfake.New(gitlabfake.Config{
		Token: testToken,
		Projects: []gitlabfake.Project{
			{ID: 1, Name: "API", Path: "api", PathNamespaced: "acme/backend/api", FinishAfter: 2, ArchiveFilename: "api_export.tar.gz"},
			{ID: 2, Name: "Worker", Path: "worker", PathNamespaced: "acme/backend/worker"},
			{ID: 3, Name: "Site", Path: "site", PathNamespaced: "acme/site", ScheduleError: "Export already in progress"},
		},
	}))
	t.Cleanup(srv.Close)

	return intglexport.Instance{URL: srv.URL, Token: testToken}
}

// projectItem matches the JSON output of `glexport projects --format json`.
type projectItem struct {
	ID             int64  `json:"id"`
	PathNamespaced string `json:"path_with_namespace"`
}

// runItem matches the JSON output of `glexport history list --format json`.
type runItem struct {
	ID             string `json:"id"`
	Dir            string `json:"dir"`
	DryRun         bool   `json:"dry_run"`
	Status         string `json:"status"`
	Enumerated     int    `json:"enumerated"`
	Scheduled      int    `json:"scheduled"`
	ScheduleFailed int    `json:"schedule_failed"`
	Exported       int    `json:"exported"`
}

// runDetails matches the JSON output of `glexport history show --format json`.
type runDetails struct {
	runItem
	Projects []struct {
		ID           int64  `json:"id"`
		Outcome      string `json:"outcome"`
		Reason       string `json:"reason"`
		ArtifactPath string `json:"artifact_path"`
	} `json:"projects"`
}

func TestProjects(t *testing.T) {
	tests := map[string]struct {
		namespace string
		expIDs    []int64
	}{
		"Listing all the projects should return every project.": {
			expIDs: []int64{1, 2, 3},
		},

		"Listing a namespace should only return the projects under it.": {
			namespace: "acme/backend",
			expIDs:    []int64{1, 2},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			config := intglexport.NewConfig(t)
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			gl := newTestInstance(t)
			stdout, stderr, err := intglexport.RunProjects(ctx, config, gl, newTestDB(t), test.namespace)
			require.NoError(t, err, "stderr: %s", stderr)

			var items []projectItem
			require.NoError(t, json.Unmarshal(stdout, &items))
			gotIDs := []int64{}
			for _, it := range items {
				gotIDs = append(gotIDs, it.ID)
			}
			assert.Equal(t, test.expIDs, gotIDs)
		})
	}
}

func TestProjectsWrongToken(t *testing.T) {
	config := intglexport.NewConfig(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	gl := newTestInstance(t)
	gl.Token = "wrong"

	_, stderr, err := intglexport.RunProjects(ctx, config, gl, newTestDB(t), "")
	require.Error(t, err)
	assert.Contains(t, string(stderr), "401")
}

func TestExportAndHistory(t *testing.T) {
	config := intglexport.NewConfig(t)
	require := require.New(t)
	assert := assert.New(t)
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	gl := newTestInstance(t)
	dbPath := newTestDB(t)
	outDir := filepath.Join(t.TempDir(), "backups")

	// Dry run.
	stdout, stderr, err := intglexport.RunDryRun(ctx, config, gl, dbPath)
	require.NoError(err, "stderr: %s", stderr)
	assert.Contains(string(stdout), "Trying to export the following (3) projects:")
	assert.Contains(string(stdout), "Dry Run: Quit! Nothing was exported.")
	_, err = os.Stat(outDir)
	assert.True(os.IsNotExist(err))

	// Export.
	stdout, stderr, err = intglexport.RunExport(ctx, config, gl, dbPath, outDir)
	require.NoError(err, "stderr: %s", stderr)
	assert.Contains(string(stdout), "WARNING: Export for following projects could not be scheduled:")
	assert.Contains(string(stdout), "Site (3): Export already in progress")
	assert.Contains(string(stdout), "Exported 2 projects!")

	// History list.
	stdout, stderr, err = intglexport.RunHistoryList(ctx, config, gl, dbPath)
	require.NoError(err, "stderr: %s", stderr)
	var runs []runItem
	require.NoError(json.Unmarshal(stdout, &runs))
	require.Len(runs, 2)

	exportRun := runs[0]
	assert.False(exportRun.DryRun)
	assert.Equal("succeeded", exportRun.Status)
	assert.Equal(3, exportRun.Enumerated)
	assert.Equal(2, exportRun.Scheduled)
	assert.Equal(1, exportRun.ScheduleFailed)
	assert.Equal(2, exportRun.Exported)
	assert.True(runs[1].DryRun)

	// History show.
	stdout, stderr, err = intglexport.RunHistoryShow(ctx, config, gl, dbPath, exportRun.ID)
	require.NoError(err, "stderr: %s", stderr)
	var details runDetails
	require.NoError(json.Unmarshal(stdout, &details))
	require.Len(details.Projects, 3)

	outcomes := map[int64]string{}
	for _, p := range details.Projects {
		outcomes[p.ID] = p.Outcome
		if p.Outcome == "exported" {
			_, err := os.Stat(p.ArtifactPath)
			assert.NoError(err)
		}
	}
	assert.Equal(map[int64]string{1: "exported", 2: "exported", 3: "schedule_failed"}, outcomes)

	// Archives layout.
	_, err = os.Stat(filepath.Join(details.Dir, "acme", "backend", "api", "api_export.tar.gz"))
	assert.NoError(err)
	_, err = os.Stat(filepath.Join(details.Dir, "acme", "backend", "worker", "worker_2.tar.gz"))
	assert.NoError(err)
}

func TestHistoryShowMissingRun(t *testing.T) {
	config := intglexport.NewConfig(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	gl := newTestInstance(t)
	_, stderr, err := intglexport.RunHistoryShow(ctx, config, gl, newTestDB(t), "01HZZZZZZZZZZZZZZZZZZZZZZZ")
	require.Error(t, err)
	assert.Contains(t, string(stderr), "not found")
}
