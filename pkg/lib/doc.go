// Package lib provides a Go SDK for exporting all the projects of a GitLab
// instance programmatically.
//
// This package allows applications to run bulk project exports and inspect
// the run history without shelling out to the glexport CLI binary. It is
// useful for scheduled backups and building tools on top of glexport.
//
// # Quick Start
//
// Create a client and export every project visible to an access token:
//
//	client, err := lib.New(ctx, lib.Config{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	res, err := client.Export(ctx, lib.ExportOpts{
//	    GitLab: lib.GitLabConfig{
//	        Instance:    "https://gitlab.example.com",
//	        AccessToken: os.Getenv("GBPE_GITLAB_ACCESS_TOKEN"),
//	    },
//	    OutputDir: "/backups/gitlab",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("Exported %d projects into %s\n", res.Run.Exported, res.Run.Dir)
//
// An export run goes through these phases:
//
//  1. All the visible projects are enumerated page by page.
//  2. An export is requested for every project. Rejected requests are reported
//     in [ExportResult].ScheduleFailed and don't stop the run.
//  3. The export status of the pending projects is checked in sweeps, waiting
//     3*k poll units after sweep k. Finished exports are downloaded to
//     <OutputDir>/gitlab-export-<timestamp>/<namespace>/<project>/<archive>.
//
// Use [ExportOpts].MaxSweeps or [ExportOpts].MaxWait to bound the wait, by
// default it waits until every export finishes or the context is cancelled.
//
// # Listing Projects
//
// List the projects an export would include, optionally under a namespace:
//
//	projects, _ := client.ListProjects(ctx, lib.ListProjectsOpts{
//	    GitLab:    gl,
//	    Namespace: "acme/backend",
//	})
//
// # Run History
//
// Every export is recorded with the outcome of each project:
//
//	runs, _ := client.ListRuns(ctx, &lib.ListRunsOpts{Limit: 10})
//	details, _ := client.GetRun(ctx, runs[0].ID)
//	for _, r := range details.Results {
//	    fmt.Printf("%s: %s\n", r.PathNamespaced, r.Outcome)
//	}
//
// Set [Config].NoHistory to keep the history in memory for the client lifetime.
//
// # Error Handling
//
// All methods return errors that can be inspected with [errors.Is]:
//
//   - [ErrNotFound]: Resource does not exist.
//   - [ErrAlreadyExists]: Resource already exists (e.g. an archive directory).
//   - [ErrNotValid]: Invalid input (e.g. missing instance or access token).
//
// Waiting limits are reported with [*WaitLimitError] and exhausted request
// retries with [*TransportError], use [errors.As] to get them.
//
// # Thread Safety
//
// A [Client] is safe for concurrent use from multiple goroutines. The underlying
// storage uses SQLite with WAL mode, and GitLab clients are created per-operation.
package lib
