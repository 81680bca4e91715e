// Package gitlab is the boundary with the GitLab REST API (v4). It only knows
// about the handful of endpoints needed to export projects.
package gitlab

import (
	"context"
	"io"

	"github.com/slok/glexport/internal/model"
)

// API is the GitLab API used to export projects.
type API interface {
	// ListProjects returns a page (1-indexed) of the projects visible to the caller.
	ListProjects(ctx context.Context, page int) (*ProjectPage, error)
	// StartExport requests the creation of an export job for a project. A rejection
	// by the server is not an error, it's reported in the result.
	StartExport(ctx context.Context, projectID int64) (*StartExportResult, error)
	// ExportStatus returns the current export job status of a project.
	ExportStatus(ctx context.Context, projectID int64) (*model.ExportStatus, error)
	// DownloadExport starts the download of a finished export, the caller
	// is responsible of closing the body.
	DownloadExport(ctx context.Context, projectID int64) (*Download, error)
}

//go:generate mockery --name API --output gitlabmock --outpkg gitlabmock --structname MockAPI --filename api.go

// ProjectPage is a page of projects and the pagination information the server sent.
// Pagination fields are nil when the server didn't send the header.
type ProjectPage struct {
	Projects   []model.Project
	Page       *int
	TotalPages *int
	// NextPage is 0 when the header was sent empty (last page).
	NextPage *int
}

// StartExportResult is the server answer to an export request.
type StartExportResult struct {
	Accepted   bool
	StatusCode int
	// Message is the server reason when the export was not accepted.
	Message string
}

// Download is an export archive being downloaded.
type Download struct {
	// Filename is the filename advertised by the server, empty if none.
	Filename string
	// Size is the content length, -1 when unknown.
	Size int64
	Body io.ReadCloser
}
