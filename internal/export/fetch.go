package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/slok/glexport/internal/conventions"
	"github.com/slok/glexport/internal/gitlab"
	"github.com/slok/glexport/internal/log"
	"github.com/slok/glexport/internal/model"
)

// FetcherConfig is the configuration of the artifact fetcher.
type FetcherConfig struct {
	API gitlab.API
	// StatusWriter receives the download progress, nil disables it.
	StatusWriter io.Writer
	Logger       log.Logger
}

func (c *FetcherConfig) defaults() error {
	if c.API == nil {
		return fmt.Errorf("gitlab API is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "export.Fetcher"})

	return nil
}

// Fetcher downloads finished export archives into the run directory.
type Fetcher struct {
	api          gitlab.API
	statusWriter io.Writer
	logger       log.Logger
}

// NewFetcher returns a new artifact fetcher.
func NewFetcher(cfg FetcherConfig) (*Fetcher, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Fetcher{
		api:          cfg.API,
		statusWriter: cfg.StatusWriter,
		logger:       cfg.Logger,
	}, nil
}

// Fetch downloads the export archive of a project to `<runDir>/<path_with_namespace>/<filename>`.
// The project directory and the archive must not exist, an archive is never overwritten.
func (f *Fetcher) Fetch(ctx context.Context, runDir string, p model.Project, sweep int) (*model.Artifact, error) {
	dl, err := f.api.DownloadExport(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("could not download export of project %d (%s): %w", p.ID, p.PathNamespaced, err)
	}
	defer dl.Body.Close()

	filename := dl.Filename
	if filename == "" {
		filename = p.FallbackArchiveName()
	}
	if strings.ContainsAny(filename, `/\`) || filename == "." || filename == ".." {
		return nil, fmt.Errorf("archive name %q of project %d is not a valid file name: %w", filename, p.ID, model.ErrNotValid)
	}

	projectDir := conventions.ProjectDir(runDir, p.PathNamespaced)
	if err := os.MkdirAll(filepath.Dir(projectDir), 0o755); err != nil {
		return nil, fmt.Errorf("could not create namespace dir of project %d: %w", p.ID, err)
	}
	if err := os.Mkdir(projectDir, 0o755); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil, fmt.Errorf("project dir %s: %w", projectDir, model.ErrAlreadyExists)
		}
		return nil, fmt.Errorf("could not create project dir %s: %w", projectDir, err)
	}

	dstPath := filepath.Join(projectDir, filename)
	size, err := f.writeArchive(dstPath, p, dl)
	if err != nil {
		return nil, err
	}

	f.logger.Debugf("Export of project %d written to %s (%d bytes)", p.ID, dstPath, size)
	return &model.Artifact{
		ProjectID:      p.ID,
		PathNamespaced: p.PathNamespaced,
		Filename:       filename,
		Path:           dstPath,
		SizeBytes:      size,
		Sweep:          sweep,
	}, nil
}

func (f *Fetcher) writeArchive(dstPath string, p model.Project, dl *gitlab.Download) (int64, error) {
	file, err := os.OpenFile(dstPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return 0, fmt.Errorf("archive %s: %w", dstPath, model.ErrAlreadyExists)
		}
		return 0, fmt.Errorf("creating file %s: %w", dstPath, err)
	}
	defer file.Close()

	meter := newDownloadMeter(file, f.statusWriter, p.PathNamespaced, dl.Size)
	defer meter.done()

	if _, err := io.Copy(meter, dl.Body); err != nil {
		file.Close()
		os.Remove(dstPath)
		return 0, fmt.Errorf("writing file %s: %w", dstPath, err)
	}

	if err := file.Close(); err != nil {
		return 0, fmt.Errorf("closing file %s: %w", dstPath, err)
	}

	return meter.written, nil
}
