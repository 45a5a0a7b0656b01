package queue

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/nats-io/nats.go"

	"github.com/m-mizutani/catapult/pkg/domain/interfaces"
	"github.com/m-mizutani/catapult/pkg/domain/model"
	"github.com/m-mizutani/catapult/pkg/domain/types"
)

// Consumer executes queued release runs on a worker process
type Consumer struct {
	ledger   interfaces.RunLedger
	pipeline interfaces.PipelineUseCase
}

// NewConsumer creates a new queue consumer
func NewConsumer(ledger interfaces.RunLedger, pipeline interfaces.PipelineUseCase) *Consumer {
	return &Consumer{
		ledger:   ledger,
		pipeline: pipeline,
	}
}

// Handler returns the callback to register on the queue subscription.
// Errors are logged, not redelivered: a failed run stays in the ledger
// with its failure recorded.
func (x *Consumer) Handler(ctx context.Context) nats.MsgHandler {
	return func(msg *nats.Msg) {
		if err := x.Consume(ctx, msg.Data); err != nil {
			ctxlog.From(ctx).Error("Failed to process queued run", "error", err)
		}
	}
}

// Consume processes one queued release message
func (x *Consumer) Consume(ctx context.Context, data []byte) error {
	logger := ctxlog.From(ctx)

	var run model.PipelineRun
	if err := json.Unmarshal(data, &run); err != nil {
		return goerr.Wrap(err, "failed to decode queued run")
	}
	if run.ID == "" {
		return goerr.New("queued run has no ID")
	}

	logger = logger.With("run_id", run.ID)
	ctx = ctxlog.With(ctx, logger)

	// Seed the ledger when this worker has not seen the run yet. A ledger
	// shared with the dispatching process already holds it, possibly in a
	// later state that must not be reverted.
	if _, err := x.ledger.Get(ctx, run.ID); err != nil {
		if !errors.Is(err, types.ErrRunNotFound) {
			return goerr.Wrap(err, "failed to look up queued run", goerr.V("run_id", run.ID))
		}
		if err := x.ledger.Put(ctx, &run); err != nil {
			return goerr.Wrap(err, "failed to record queued run", goerr.V("run_id", run.ID))
		}
	}

	logger.Info("Processing queued run",
		"trigger", run.Trigger,
		"version", run.Request.Version,
	)

	if _, err := x.pipeline.Execute(ctx, run.ID); err != nil {
		// Another worker in the queue group may have started the run first
		if types.ErrorKind(err) == "bad_request" {
			logger.Warn("Queued run already started, skipping", "error", err)
			return nil
		}
		return goerr.Wrap(err, "queued run failed", goerr.V("run_id", run.ID))
	}

	return nil
}
