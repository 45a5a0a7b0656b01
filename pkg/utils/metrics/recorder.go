package metrics

import (
	"time"

	"github.com/m-mizutani/catapult/pkg/domain/model"
	"github.com/m-mizutani/catapult/pkg/domain/types"
)

// Recorder receives pipeline events for metric collection
type Recorder interface {
	// RecordTrigger counts an accepted release trigger
	RecordTrigger(kind types.TriggerKind)

	// RecordStage records the outcome and duration of one stage
	RecordStage(name types.StageName, status model.StageStatus, d time.Duration)

	// RecordRun records the final status and duration of a run
	RecordRun(status model.RunStatus, d time.Duration)
}

type nopRecorder struct{}

// Nop returns a recorder that discards all events
func Nop() Recorder {
	return &nopRecorder{}
}

func (x *nopRecorder) RecordTrigger(types.TriggerKind)                               {}
func (x *nopRecorder) RecordStage(types.StageName, model.StageStatus, time.Duration) {}
func (x *nopRecorder) RecordRun(model.RunStatus, time.Duration)                      {}
