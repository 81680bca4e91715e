package printer

import "github.com/slok/glexport/internal/model"

// Printer knows how to print export information in different formats.
type Printer interface {
	PrintProjects(projects []model.Project) error
	PrintRuns(runs []model.Run) error
	PrintRun(run model.Run, results []model.ProjectResult) error
	PrintMessage(msg string) error
}

var (
	_ Printer = &TablePrinter{}
	_ Printer = &JSONPrinter{}
)
