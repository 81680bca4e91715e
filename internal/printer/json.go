package printer

import (
	"encoding/json"
	"io"
	"time"

	"github.com/slok/glexport/internal/model"
)

// JSONPrinter prints export information in JSON format.
type JSONPrinter struct {
	writer io.Writer
}

// NewJSONPrinter creates a new JSON printer.
func NewJSONPrinter(w io.Writer) *JSONPrinter {
	return &JSONPrinter{writer: w}
}

// projectOutput represents a project in the list output.
type projectOutput struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	Path           string `json:"path"`
	PathNamespaced string `json:"path_with_namespace"`
}

// runOutput represents an export run.
type runOutput struct {
	ID             string                `json:"id"`
	Instance       string                `json:"instance"`
	OutputDir      string                `json:"output_dir,omitempty"`
	Dir            string                `json:"dir,omitempty"`
	DryRun         bool                  `json:"dry_run"`
	Status         string                `json:"status"`
	Error          string                `json:"error,omitempty"`
	Enumerated     int                   `json:"enumerated"`
	Scheduled      int                   `json:"scheduled"`
	ScheduleFailed int                   `json:"schedule_failed"`
	Exported       int                   `json:"exported"`
	Sweeps         int                   `json:"sweeps"`
	StartedAt      time.Time             `json:"started_at"`
	FinishedAt     *time.Time            `json:"finished_at"`
	Projects       []projectResultOutput `json:"projects,omitempty"`
}

// projectResultOutput represents the outcome of a project in a run.
type projectResultOutput struct {
	ID             int64  `json:"id"`
	PathNamespaced string `json:"path_with_namespace"`
	Outcome        string `json:"outcome"`
	Reason         string `json:"reason,omitempty"`
	ArtifactPath   string `json:"artifact_path,omitempty"`
	SizeBytes      int64  `json:"size_bytes,omitempty"`
}

// messageOutput represents a simple message output.
type messageOutput struct {
	Message string `json:"message"`
}

// PrintProjects prints projects in JSON format.
func (j *JSONPrinter) PrintProjects(projects []model.Project) error {
	items := make([]projectOutput, len(projects))
	for i, p := range projects {
		items[i] = projectOutput{
			ID:             p.ID,
			Name:           p.Name,
			Path:           p.Path,
			PathNamespaced: p.PathNamespaced,
		}
	}

	return j.encode(items)
}

// PrintRuns prints export runs in JSON format.
func (j *JSONPrinter) PrintRuns(runs []model.Run) error {
	items := make([]runOutput, len(runs))
	for i, r := range runs {
		items[i] = toRunOutput(r)
	}

	return j.encode(items)
}

// PrintRun prints a detailed export run in JSON format.
func (j *JSONPrinter) PrintRun(run model.Run, results []model.ProjectResult) error {
	output := toRunOutput(run)
	for _, r := range results {
		output.Projects = append(output.Projects, projectResultOutput{
			ID:             r.ProjectID,
			PathNamespaced: r.PathNamespaced,
			Outcome:        string(r.Outcome),
			Reason:         r.Reason,
			ArtifactPath:   r.ArtifactPath,
			SizeBytes:      r.SizeBytes,
		})
	}

	return j.encode(output)
}

// PrintMessage prints a simple message in JSON format.
func (j *JSONPrinter) PrintMessage(msg string) error {
	return j.encode(messageOutput{Message: msg})
}

func (j *JSONPrinter) encode(v any) error {
	enc := json.NewEncoder(j.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func toRunOutput(r model.Run) runOutput {
	output := runOutput{
		ID:             r.ID,
		Instance:       r.Instance,
		OutputDir:      r.OutputDir,
		Dir:            r.Dir,
		DryRun:         r.DryRun,
		Status:         string(r.Status),
		Error:          r.Error,
		Enumerated:     r.Enumerated,
		Scheduled:      r.Scheduled,
		ScheduleFailed: r.ScheduleFailed,
		Exported:       r.Exported,
		Sweeps:         r.Sweeps,
		StartedAt:      r.StartedAt.UTC(),
	}

	if r.FinishedAt != nil {
		utcTime := r.FinishedAt.UTC()
		output.FinishedAt = &utcTime
	}

	return output
}
