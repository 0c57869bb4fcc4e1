// Package mongosink stores analytics snapshots in MongoDB.
package mongosink

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/teranos/postpulse/errors"
	"github.com/teranos/postpulse/pulse/analytics"
)

// CollectionName is where snapshots are written.
const CollectionName = "analytics_snapshots"

// collection is the part of *mongo.Collection the sink uses.
type collection interface {
	UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
}

// Sink upserts snapshots keyed by content_id and snapshot_date.
type Sink struct {
	coll collection
}

var _ analytics.Sink = (*Sink)(nil)

// Connect opens a client for uri, verifies it with a ping and returns a
// sink over database.analytics_snapshots. Callers disconnect the client.
func Connect(ctx context.Context, uri, database string) (*Sink, *mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to connect MongoDB")
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, errors.WithHint(errors.Wrap(err, "failed to ping MongoDB"), "check mongo.uri")
	}
	return New(client.Database(database).Collection(CollectionName)), client, nil
}

// New wraps a collection.
func New(coll collection) *Sink {
	return &Sink{coll: coll}
}

// document is the stored shape of a snapshot.
type document struct {
	ContentID    string            `bson:"content_id"`
	AccountID    string            `bson:"account_id"`
	SnapshotDate string            `bson:"snapshot_date"`
	Metrics      analytics.Metrics `bson:"metrics"`
	FetchedAt    time.Time         `bson:"fetched_at"`
	UpdatedAt    time.Time         `bson:"updated_at"`
}

// UpsertSnapshot implements analytics.Sink.
func (s *Sink) UpsertSnapshot(ctx context.Context, snap analytics.Snapshot) error {
	filter := bson.D{
		{Key: "content_id", Value: snap.ContentID},
		{Key: "snapshot_date", Value: snap.SnapshotDate},
	}
	update := bson.D{{Key: "$set", Value: document{
		ContentID:    snap.ContentID,
		AccountID:    snap.AccountID,
		SnapshotDate: snap.SnapshotDate,
		Metrics:      snap.Metrics,
		FetchedAt:    snap.FetchedAt.UTC(),
		UpdatedAt:    snap.UpdatedAt.UTC(),
	}}}

	if _, err := s.coll.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true)); err != nil {
		return errors.Wrapf(err, "failed to upsert snapshot for %s on %s", snap.ContentID, snap.SnapshotDate)
	}
	return nil
}
