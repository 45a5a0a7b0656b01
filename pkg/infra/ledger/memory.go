package ledger

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/m-mizutani/catapult/pkg/domain/interfaces"
	"github.com/m-mizutani/catapult/pkg/domain/model"
	"github.com/m-mizutani/catapult/pkg/domain/types"
	"github.com/m-mizutani/goerr/v2"
)

// memoryLedger keeps runs in process memory. Records are stored as JSON
// snapshots so a run held by the caller cannot mutate ledger state.
type memoryLedger struct {
	mutex sync.RWMutex
	runs  map[types.RunID][]byte
}

// NewMemory creates an in-memory RunLedger for one-shot runs and tests
func NewMemory() interfaces.RunLedger {
	return &memoryLedger{
		runs: map[types.RunID][]byte{},
	}
}

func (x *memoryLedger) Put(_ context.Context, run *model.PipelineRun) error {
	raw, err := json.Marshal(run)
	if err != nil {
		return goerr.Wrap(err, "failed to marshal run", goerr.V("run_id", run.ID))
	}

	x.mutex.Lock()
	defer x.mutex.Unlock()
	x.runs[run.ID] = raw
	return nil
}

func (x *memoryLedger) Get(_ context.Context, id types.RunID) (*model.PipelineRun, error) {
	x.mutex.RLock()
	raw, ok := x.runs[id]
	x.mutex.RUnlock()
	if !ok {
		return nil, goerr.Wrap(types.ErrRunNotFound, "no such run in memory ledger", goerr.V("run_id", id))
	}

	var run model.PipelineRun
	if err := json.Unmarshal(raw, &run); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal run", goerr.V("run_id", id))
	}
	return &run, nil
}

func (x *memoryLedger) List(_ context.Context, limit int) ([]*model.PipelineRun, error) {
	x.mutex.RLock()
	snapshots := make([][]byte, 0, len(x.runs))
	for _, raw := range x.runs {
		snapshots = append(snapshots, raw)
	}
	x.mutex.RUnlock()

	runs := make([]*model.PipelineRun, 0, len(snapshots))
	for _, raw := range snapshots {
		var run model.PipelineRun
		if err := json.Unmarshal(raw, &run); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal run")
		}
		runs = append(runs, &run)
	}

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].CreatedAt.After(runs[j].CreatedAt)
	})

	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

func (x *memoryLedger) Close() error {
	return nil
}
