package export

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/slok/glexport/internal/conventions"
	"github.com/slok/glexport/internal/model"
)

const maxRunDirAttempts = 100

// CreateRunDir creates the timestamped directory of a run inside the output directory
// and returns its absolute path. Runs started in the same second get a numeric suffix.
func CreateRunDir(outputDir string, startedAt time.Time) (string, error) {
	absOut, err := filepath.Abs(outputDir)
	if err != nil {
		return "", fmt.Errorf("could not resolve output dir %q: %w", outputDir, err)
	}

	if err := os.MkdirAll(absOut, 0o755); err != nil {
		return "", fmt.Errorf("could not create output dir: %w", err)
	}

	base := filepath.Join(absOut, conventions.RunDirName(startedAt))
	dir := base
	for i := 2; i <= maxRunDirAttempts+1; i++ {
		err := os.Mkdir(dir, 0o755)
		if err == nil {
			return dir, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", fmt.Errorf("could not create run dir: %w", err)
		}
		dir = fmt.Sprintf("%s-%d", base, i)
	}

	return "", fmt.Errorf("could not create run dir %s: %w", base, model.ErrAlreadyExists)
}
