package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/catapult/pkg/domain/interfaces"
	"github.com/m-mizutani/catapult/pkg/domain/model"
	"github.com/m-mizutani/catapult/pkg/domain/types"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const defaultCollection = "runs"

// runRecord is the Firestore document layout. The run itself is stored
// as a JSON snapshot so the document schema does not chase the model.
type runRecord struct {
	ID        string    `firestore:"id"`
	Status    string    `firestore:"status"`
	CreatedAt time.Time `firestore:"created_at"`
	Data      []byte    `firestore:"data"`
}

type firestoreLedger struct {
	client     *firestore.Client
	collection string
}

type FirestoreOption func(*firestoreLedger)

// WithCollection overrides the collection name holding run documents
func WithCollection(name string) FirestoreOption {
	return func(x *firestoreLedger) {
		x.collection = name
	}
}

// NewFirestore creates a Firestore-backed RunLedger
func NewFirestore(ctx context.Context, projectID, databaseID string, options ...FirestoreOption) (interfaces.RunLedger, error) {
	if databaseID == "" {
		databaseID = firestore.DefaultDatabaseID
	}

	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client",
			goerr.T(types.ErrTagConfig),
			goerr.V("project_id", projectID),
			goerr.V("database_id", databaseID),
		)
	}

	ledger := &firestoreLedger{
		client:     client,
		collection: defaultCollection,
	}
	for _, opt := range options {
		opt(ledger)
	}
	return ledger, nil
}

func (x *firestoreLedger) Put(ctx context.Context, run *model.PipelineRun) error {
	raw, err := json.Marshal(run)
	if err != nil {
		return goerr.Wrap(err, "failed to marshal run", goerr.V("run_id", run.ID))
	}

	record := runRecord{
		ID:        string(run.ID),
		Status:    string(run.Status),
		CreatedAt: run.CreatedAt,
		Data:      raw,
	}
	if _, err := x.client.Collection(x.collection).Doc(record.ID).Set(ctx, record); err != nil {
		return goerr.Wrap(err, "failed to put run document", goerr.V("run_id", run.ID))
	}
	return nil
}

func (x *firestoreLedger) Get(ctx context.Context, id types.RunID) (*model.PipelineRun, error) {
	doc, err := x.client.Collection(x.collection).Doc(string(id)).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, goerr.Wrap(types.ErrRunNotFound, "no such run document", goerr.V("run_id", id))
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get run document", goerr.V("run_id", id))
	}

	var record runRecord
	if err := doc.DataTo(&record); err != nil {
		return nil, goerr.Wrap(err, "failed to read run document", goerr.V("run_id", id))
	}

	var run model.PipelineRun
	if err := json.Unmarshal(record.Data, &run); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal run", goerr.V("run_id", id))
	}
	return &run, nil
}

func (x *firestoreLedger) List(ctx context.Context, limit int) ([]*model.PipelineRun, error) {
	query := x.client.Collection(x.collection).OrderBy("created_at", firestore.Desc)
	if limit > 0 {
		query = query.Limit(limit)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	var runs []*model.PipelineRun
	for {
		doc, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate run documents")
		}

		var record runRecord
		if err := doc.DataTo(&record); err != nil {
			return nil, goerr.Wrap(err, "failed to read run document")
		}
		var run model.PipelineRun
		if err := json.Unmarshal(record.Data, &run); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal run")
		}
		runs = append(runs, &run)
	}

	return runs, nil
}

func (x *firestoreLedger) Close() error {
	return x.client.Close()
}
