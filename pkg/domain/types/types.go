package types

import "github.com/google/uuid"

// ServiceName is used for client identification and metric namespaces
const ServiceName = "catapult"

// Version is the application version, overwritten by -ldflags at release build
var Version = "v0.1.0"

// RunID identifies a single pipeline run
type RunID string

// NewRunID issues a new random run ID
func NewRunID() RunID {
	return RunID(uuid.NewString())
}

func (x RunID) String() string {
	return string(x)
}

// StageName identifies a pipeline stage
type StageName string

const (
	StageTag     StageName = "tag"
	StagePublish StageName = "publish"
	StageImage   StageName = "image"
	StageNotify  StageName = "notify"
)

// KnownStage checks if the name is one of the stages the runner can execute
func KnownStage(name StageName) bool {
	switch name {
	case StageTag, StagePublish, StageImage, StageNotify:
		return true
	default:
		return false
	}
}

// TriggerKind represents how a pipeline run was requested
type TriggerKind string

const (
	TriggerManual   TriggerKind = "manual"
	TriggerAPI      TriggerKind = "api"
	TriggerQueue    TriggerKind = "queue"
	TriggerSchedule TriggerKind = "schedule"
)
