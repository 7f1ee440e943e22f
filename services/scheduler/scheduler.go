package schedulersvc

import (
	"context"
	"fmt"
	"time"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"

	"github.com/trezcool/minerva/core"
	"github.com/trezcool/minerva/core/course"
)

// repairTimeout bounds a single repair run.
const repairTimeout = 30 * time.Minute

type Repairer interface {
	Repair(ctx context.Context, courseIDs ...string) (course.RepairReport, error)
}

// Scheduler runs the periodic maintenance jobs of the API.
type Scheduler struct {
	cron     *cron.Cron
	logger   core.Logger
	repairer Repairer
}

func New(conf *core.Config, logger core.Logger, repairer Repairer) (*Scheduler, error) {
	vala.BeginValidation().Validate(
		vala.IsNotNil(conf, "conf"),
		vala.IsNotNil(logger, "logger"),
		vala.IsNotNil(repairer, "repairer"),
	).CheckAndPanic()

	s := &Scheduler{
		cron:     cron.New(),
		logger:   logger,
		repairer: repairer,
	}
	if spec := conf.Courses.RepairSchedule; spec != "" {
		if _, err := s.cron.AddFunc(spec, s.RunRepair); err != nil {
			return nil, errors.Wrapf(err, "scheduling repair %q", spec)
		}
	}
	return s, nil
}

// RunRepair re-sequences and recounts every course. Drift found is logged as a warning.
func (s *Scheduler) RunRepair() {
	ctx, cancel := context.WithTimeout(context.Background(), repairTimeout)
	defer cancel()

	report, err := s.repairer.Repair(ctx)
	switch {
	case err != nil:
		s.logger.Error(fmt.Sprintf("repairing courses: %v", err), err)
	case report.Moved > 0:
		s.logger.Warn(fmt.Sprintf("repair moved %d item(s) across %d course(s)", report.Moved, report.Courses))
	default:
		s.logger.Info(fmt.Sprintf("repair checked %d course(s)", report.Courses))
	}
}

func (s *Scheduler) Jobs() int { return len(s.cron.Entries()) }

func (s *Scheduler) Start() { s.cron.Start() }

// Stop waits for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
