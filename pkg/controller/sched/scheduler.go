package sched

import (
	"context"

	"github.com/go-co-op/gocron/v2"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"

	"github.com/m-mizutani/catapult/pkg/domain/interfaces"
	"github.com/m-mizutani/catapult/pkg/domain/model"
	"github.com/m-mizutani/catapult/pkg/domain/types"
)

// Scheduler fires periodic release triggers based on the manifest schedule
type Scheduler struct {
	scheduler gocron.Scheduler
	triggerUC interfaces.TriggerUseCase
	schedule  model.Schedule
}

// NewScheduler creates a scheduler that dispatches a release trigger on
// every interval of the given schedule
func NewScheduler(triggerUC interfaces.TriggerUseCase, schedule model.Schedule) (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create scheduler", goerr.T(types.ErrTagConfig))
	}

	return &Scheduler{
		scheduler: s,
		triggerUC: triggerUC,
		schedule:  schedule,
	}, nil
}

// Start registers the release job and begins ticking
func (x *Scheduler) Start(ctx context.Context) error {
	_, err := x.scheduler.NewJob(
		gocron.DurationJob(x.schedule.Interval.Duration()),
		gocron.NewTask(x.Fire, ctx),
		gocron.WithName("scheduled-release"),
	)
	if err != nil {
		return goerr.Wrap(err, "failed to register release job", goerr.T(types.ErrTagConfig))
	}

	ctxlog.From(ctx).Info("Starting release scheduler",
		"interval", x.schedule.Interval.Duration().String(),
		"version", x.schedule.Version,
		"container_arch", x.schedule.ContainerArch,
	)
	x.scheduler.Start()
	return nil
}

// Stop shuts the scheduler down, waiting for a firing job to return
func (x *Scheduler) Stop(ctx context.Context) error {
	ctxlog.From(ctx).Info("Stopping release scheduler")
	return x.scheduler.Shutdown()
}

// Fire dispatches one scheduled release trigger. Failures are logged and
// the schedule keeps ticking.
func (x *Scheduler) Fire(ctx context.Context) {
	logger := ctxlog.From(ctx)

	run, err := x.triggerUC.Dispatch(ctx, &model.TriggerInput{
		Version:       x.schedule.Version,
		ContainerArch: x.schedule.ContainerArch,
		RequestedBy:   "scheduler",
		Kind:          types.TriggerSchedule,
	})
	if err != nil {
		logger.Error("Failed to dispatch scheduled release", "error", err)
		return
	}

	logger.Info("Dispatched scheduled release",
		"run_id", run.ID,
		"version", run.Request.Version,
	)
}
