package sched_test

import (
	"context"
	"testing"
	"time"

	"github.com/m-mizutani/gt"

	"github.com/m-mizutani/catapult/pkg/controller/sched"
	"github.com/m-mizutani/catapult/pkg/domain/model"
	"github.com/m-mizutani/catapult/pkg/domain/types"
)

// MockTriggerUseCase is a mock implementation of TriggerUseCase
type MockTriggerUseCase struct {
	dispatchFunc func(ctx context.Context, input *model.TriggerInput) (*model.PipelineRun, error)
	inputs       []*model.TriggerInput
}

func (m *MockTriggerUseCase) Dispatch(ctx context.Context, input *model.TriggerInput) (*model.PipelineRun, error) {
	m.inputs = append(m.inputs, input)
	if m.dispatchFunc != nil {
		return m.dispatchFunc(ctx, input)
	}
	return model.NewPipelineRun(model.ReleaseRequest{
		Version:    "2.0.0",
		Platforms:  model.Platforms{model.PlatformAMD64},
		Repository: "cloudforet-io/console",
		CommitSHA:  "fedcba9876543210fedcba9876543210fedcba98",
	}, input.Kind), nil
}

func TestScheduler_Fire(t *testing.T) {
	ctx := context.Background()
	trigger := &MockTriggerUseCase{}

	scheduler, err := sched.NewScheduler(trigger, model.Schedule{
		Interval:      model.Duration(24 * time.Hour),
		Version:       "2.1.0",
		ContainerArch: "linux/amd64,linux/arm64",
	})
	gt.NoError(t, err)

	scheduler.Fire(ctx)

	gt.Number(t, len(trigger.inputs)).Equal(1)
	input := trigger.inputs[0]
	gt.Equal(t, input.Kind, types.TriggerSchedule)
	gt.Equal(t, input.Version, "2.1.0")
	gt.Equal(t, input.ContainerArch, "linux/amd64,linux/arm64")
	gt.Equal(t, input.RequestedBy, "scheduler")
}

func TestScheduler_FireWithScheduleDefaults(t *testing.T) {
	ctx := context.Background()
	trigger := &MockTriggerUseCase{}

	scheduler, err := sched.NewScheduler(trigger, model.Schedule{
		Interval: model.Duration(time.Hour),
	})
	gt.NoError(t, err)

	// The trigger use case fills in version and platform defaults
	scheduler.Fire(ctx)

	gt.Number(t, len(trigger.inputs)).Equal(1)
	gt.Equal(t, trigger.inputs[0].Version, "")
	gt.Equal(t, trigger.inputs[0].ContainerArch, "")
}

func TestScheduler_StartStop(t *testing.T) {
	ctx := context.Background()
	trigger := &MockTriggerUseCase{}

	scheduler, err := sched.NewScheduler(trigger, model.Schedule{
		Interval: model.Duration(time.Hour),
	})
	gt.NoError(t, err)

	gt.NoError(t, scheduler.Start(ctx))
	gt.NoError(t, scheduler.Stop(ctx))

	// Nothing fired within the interval
	gt.Number(t, len(trigger.inputs)).Equal(0)
}
