package export

import (
	"context"
	"fmt"

	"github.com/slok/glexport/internal/gitlab"
	"github.com/slok/glexport/internal/log"
	"github.com/slok/glexport/internal/model"
)

// SchedulerConfig is the configuration of the export scheduler.
type SchedulerConfig struct {
	API    gitlab.API
	Logger log.Logger
}

func (c *SchedulerConfig) defaults() error {
	if c.API == nil {
		return fmt.Errorf("gitlab API is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "export.Scheduler"})

	return nil
}

// Scheduler requests the server side export of projects.
type Scheduler struct {
	api    gitlab.API
	logger log.Logger
}

// NewScheduler returns a new export scheduler.
func NewScheduler(cfg SchedulerConfig) (*Scheduler, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Scheduler{api: cfg.API, logger: cfg.Logger}, nil
}

// Schedule requests one export per project in order. A project rejected by the server
// is reported as failed and the batch continues, only request level errors abort it.
func (s *Scheduler) Schedule(ctx context.Context, projects []model.Project) (*model.ScheduleReport, error) {
	report := &model.ScheduleReport{}
	for _, p := range projects {
		res, err := s.api.StartExport(ctx, p.ID)
		if err != nil {
			return nil, fmt.Errorf("could not schedule export of project %d (%s): %w", p.ID, p.PathNamespaced, err)
		}

		if !res.Accepted {
			s.logger.Warningf("Export of project %d (%s) rejected with HTTP %d: %s", p.ID, p.PathNamespaced, res.StatusCode, res.Message)
			report.Failed = append(report.Failed, model.ScheduleResult{
				Project: p,
				Status:  model.ScheduleStatusFailed,
				Reason:  res.Message,
			})
			continue
		}

		s.logger.Debugf("Export of project %d (%s) scheduled", p.ID, p.PathNamespaced)
		report.Scheduled = append(report.Scheduled, p)
	}

	return report, nil
}
