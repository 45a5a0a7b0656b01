package model_test

import (
	"testing"

	"github.com/m-mizutani/catapult/pkg/domain/model"
	"github.com/m-mizutani/catapult/pkg/domain/types"
	"github.com/m-mizutani/gt"
)

func TestPipelineRunLifecycle(t *testing.T) {
	run := model.NewPipelineRun(validRequest(), types.TriggerManual)

	gt.V(t, run.ID).NotEqual(types.RunID(""))
	gt.Equal(t, run.Status, model.RunStatusCreated)
	gt.V(t, run.Finished()).Equal(false)
	gt.Equal(t, run.Duration(), 0)

	run.MarkRunning()
	gt.Equal(t, run.Status, model.RunStatusRunning)
	gt.V(t, run.StartedAt).NotNil()

	run.MarkFinished(model.RunStatusSucceeded)
	gt.Equal(t, run.Status, model.RunStatusSucceeded)
	gt.V(t, run.Finished()).Equal(true)
	gt.V(t, run.FinishedAt).NotNil()
}

func TestStagesSucceeded(t *testing.T) {
	run := model.NewPipelineRun(validRequest(), types.TriggerManual)
	run.Stages = []model.StageResult{
		{Name: types.StageTag, Status: model.StageStatusSucceeded},
		{Name: types.StagePublish, Status: model.StageStatusDisabled},
	}

	gt.V(t, run.StagesSucceeded(nil)).Equal(true)
	gt.V(t, run.StagesSucceeded([]types.StageName{types.StageTag})).Equal(true)
	gt.V(t, run.StagesSucceeded([]types.StageName{types.StagePublish})).Equal(false)
	gt.V(t, run.StagesSucceeded([]types.StageName{types.StageImage})).Equal(false)
	gt.V(t, run.StagesSucceeded([]types.StageName{types.StageTag, types.StagePublish})).Equal(false)
}

func TestNewRunReport(t *testing.T) {
	t.Run("finished run", func(t *testing.T) {
		run := model.NewPipelineRun(validRequest(), types.TriggerAPI)
		run.MarkRunning()
		run.Stages = []model.StageResult{
			{Name: types.StageImage, Status: model.StageStatusSucceeded},
		}
		run.Image = &model.ImageRef{Registry: "ghcr.io", Repository: "cloudforet-io/console", Tag: "abc123"}
		run.MarkFinished(model.RunStatusSucceeded)

		report := model.NewRunReport(run)
		gt.Equal(t, report.Status, model.RunStatusSucceeded)
		gt.Equal(t, report.Image, "ghcr.io/cloudforet-io/console:abc123")
		gt.Equal(t, report.Version, model.DefaultVersion)
		gt.Equal(t, report.RunID, run.ID)
	})

	t.Run("in-flight run derives status from stages", func(t *testing.T) {
		run := model.NewPipelineRun(validRequest(), types.TriggerManual)
		run.MarkRunning()
		run.Stages = []model.StageResult{
			{Name: types.StageTag, Status: model.StageStatusFailed, ErrorKind: "push"},
		}

		report := model.NewRunReport(run)
		gt.Equal(t, report.Status, model.RunStatusFailed)
	})

	t.Run("in-flight run with no failure reports success", func(t *testing.T) {
		run := model.NewPipelineRun(validRequest(), types.TriggerManual)
		run.MarkRunning()
		run.Stages = []model.StageResult{
			{Name: types.StageImage, Status: model.StageStatusSucceeded},
			{Name: types.StageTag, Status: model.StageStatusDisabled},
		}

		report := model.NewRunReport(run)
		gt.Equal(t, report.Status, model.RunStatusSucceeded)
	})
}
