package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/m-mizutani/catapult/pkg/domain/interfaces"
	"github.com/m-mizutani/catapult/pkg/domain/model"
	"github.com/m-mizutani/catapult/pkg/domain/types"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/nats-io/nats.go"
)

// DefaultSubject is the NATS subject carrying dispatched runs
const DefaultSubject = "catapult.release"

const flushTimeout = 3 * time.Second

// Client publishes dispatched runs to NATS and lets a worker process
// subscribe to them. The run is fully persisted in the ledger before it
// is published, so the message itself only needs at-most-once delivery.
type Client struct {
	conn    *nats.Conn
	subject string
	group   string
}

type Option func(*Client)

// WithSubject overrides the subject runs are published to
func WithSubject(subject string) Option {
	return func(x *Client) {
		x.subject = subject
	}
}

// WithQueueGroup sets the queue group name shared by worker processes
func WithQueueGroup(group string) Option {
	return func(x *Client) {
		x.group = group
	}
}

// New connects to the NATS server at url
func New(url string, options ...Option) (*Client, error) {
	client := &Client{
		subject: DefaultSubject,
		group:   types.ServiceName,
	}
	for _, opt := range options {
		opt(client)
	}

	conn, err := nats.Connect(url, nats.Name(types.ServiceName))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to connect to nats",
			goerr.T(types.ErrTagConfig), goerr.V("url", url))
	}
	client.conn = conn

	return client, nil
}

var _ interfaces.QueuePublisher = &Client{}

// Publish sends the run to the release subject and flushes the
// connection so the message is on the wire before the caller replies
func (x *Client) Publish(ctx context.Context, run *model.PipelineRun) error {
	raw, err := json.Marshal(run)
	if err != nil {
		return goerr.Wrap(err, "failed to marshal run", goerr.V("run_id", run.ID))
	}

	if err := x.conn.Publish(x.subject, raw); err != nil {
		return goerr.Wrap(err, "failed to publish run",
			goerr.V("run_id", run.ID), goerr.V("subject", x.subject))
	}
	if err := x.conn.FlushTimeout(flushTimeout); err != nil {
		return goerr.Wrap(err, "failed to flush nats connection", goerr.V("run_id", run.ID))
	}

	ctxlog.From(ctx).Info("Published run to queue",
		"run_id", run.ID,
		"subject", x.subject,
	)
	return nil
}

// Subscribe registers handler for dispatched runs. Workers sharing the
// same queue group split the messages between them.
func (x *Client) Subscribe(handler nats.MsgHandler) (*nats.Subscription, error) {
	sub, err := x.conn.QueueSubscribe(x.subject, x.group, handler)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to subscribe",
			goerr.V("subject", x.subject), goerr.V("group", x.group))
	}
	return sub, nil
}

// Close drains the connection, letting in-flight messages finish
func (x *Client) Close() error {
	if x.conn == nil || x.conn.IsClosed() {
		return nil
	}
	if err := x.conn.Drain(); err != nil {
		x.conn.Close()
		return goerr.Wrap(err, "failed to drain nats connection")
	}
	return nil
}
