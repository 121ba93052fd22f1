package logstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoOptions struct {
	URI        string
	Database   string
	Collection string
	Timeout    time.Duration
}

// MongoStore keeps audit logs in a MongoDB collection. MongoDB stores
// timestamps with millisecond precision, so inserts truncate to match.
type MongoStore struct {
	client  *mongo.Client
	coll    *mongo.Collection
	timeout time.Duration
}

type mongoLog struct {
	ID               string    `bson:"_id"`
	Action           string    `bson:"action"`
	TargetID         string    `bson:"targetId"`
	PerformedBy      string    `bson:"performedBy"`
	PerformedByEmail string    `bson:"performedByEmail"`
	Timestamp        time.Time `bson:"timestamp"`
	Details          string    `bson:"details"`
	IP               string    `bson:"ip"`
}

func NewMongoStore(ctx context.Context, opts MongoOptions) (*MongoStore, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	connectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	client, err := mongo.Connect(connectCtx, options.Client().
		ApplyURI(opts.URI).
		SetConnectTimeout(timeout).
		SetAppName("auditdesk"))
	if err != nil {
		return nil, fmt.Errorf("failed to create mongo client: %w", err)
	}

	// Connect does no I/O, so verify the server is reachable here
	pingCtx, cancelPing := context.WithTimeout(ctx, timeout)
	defer cancelPing()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo is unpingable: %w", err)
	}

	return &MongoStore{
		client:  client,
		coll:    client.Database(opts.Database).Collection(opts.Collection),
		timeout: timeout,
	}, nil
}

func (s *MongoStore) Insert(ctx context.Context, rec *Record) error {
	rec.ID = uuid.NewString()
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	rec.Timestamp = rec.Timestamp.UTC().Truncate(time.Millisecond)

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if _, err := s.coll.InsertOne(ctx, toDocument(*rec)); err != nil {
		return fmt.Errorf("audit log insert failed: %w", err)
	}
	return nil
}

func (s *MongoStore) Find(ctx context.Context, q Query) ([]Record, error) {
	findOpts := options.Find().SetSort(bson.D{
		{Key: "timestamp", Value: -1},
		{Key: "_id", Value: -1},
	})
	if q.Limit > 0 {
		findOpts.SetLimit(int64(q.Limit))
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	cur, err := s.coll.Find(ctx, mongoFilter(q), findOpts)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("timeout[%v] on find", s.timeout)
		}
		return nil, fmt.Errorf("find failed: %w", err)
	}
	defer cur.Close(ctx)

	var docs []mongoLog
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode failed: %w", err)
	}

	out := make([]Record, len(docs))
	for i, d := range docs {
		out[i] = fromDocument(d)
	}
	return out, nil
}

func (s *MongoStore) Count(ctx context.Context, q Query) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	n, err := s.coll.CountDocuments(ctx, mongoFilter(q))
	if err != nil {
		return 0, fmt.Errorf("count failed: %w", err)
	}
	return n, nil
}

func (s *MongoStore) NewBatch() Batch {
	return &mongoBatch{store: s}
}

func (s *MongoStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.client.Ping(ctx, nil)
}

func (s *MongoStore) Close(ctx context.Context) error {
	if err := s.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to disconnect mongo: %w", err)
	}
	return nil
}

type mongoBatch struct {
	store *MongoStore
	ids   []string
}

func (b *mongoBatch) Delete(id string) { b.ids = append(b.ids, id) }
func (b *mongoBatch) Len() int         { return len(b.ids) }

// Commit sends the staged deletes as one DeleteMany request.
func (b *mongoBatch) Commit(ctx context.Context) error {
	if len(b.ids) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, b.store.timeout)
	defer cancel()
	if _, err := b.store.coll.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": b.ids}}); err != nil {
		return fmt.Errorf("delete failed: %w", err)
	}
	return nil
}

// mongoFilter translates q into a bson filter. Conditions are combined with
// $and because several of them constrain the same timestamp field.
func mongoFilter(q Query) bson.M {
	var conds bson.A
	if q.Action != "" {
		conds = append(conds, bson.M{"action": q.Action})
	}
	if q.PerformedBy != "" {
		conds = append(conds, bson.M{"performedBy": q.PerformedBy})
	}
	if q.Since != nil {
		conds = append(conds, bson.M{"timestamp": bson.M{"$gte": q.Since.UTC()}})
	}
	if q.Until != nil {
		conds = append(conds, bson.M{"timestamp": bson.M{"$lte": q.Until.UTC()}})
	}
	if q.Before != nil {
		conds = append(conds, bson.M{"timestamp": bson.M{"$lt": q.Before.UTC()}})
	}
	if q.After != nil {
		ts := q.After.Timestamp.UTC()
		conds = append(conds, bson.M{"$or": bson.A{
			bson.M{"timestamp": bson.M{"$lt": ts}},
			bson.M{"timestamp": ts, "_id": bson.M{"$lt": q.After.ID}},
		}})
	}
	if len(conds) == 0 {
		return bson.M{}
	}
	return bson.M{"$and": conds}
}

func toDocument(r Record) mongoLog {
	return mongoLog{
		ID:               r.ID,
		Action:           r.Action,
		TargetID:         r.TargetID,
		PerformedBy:      r.PerformedBy,
		PerformedByEmail: r.PerformedByEmail,
		Timestamp:        r.Timestamp,
		Details:          r.Details,
		IP:               r.IP,
	}
}

func fromDocument(d mongoLog) Record {
	return Record{
		ID:               d.ID,
		Action:           d.Action,
		TargetID:         d.TargetID,
		PerformedBy:      d.PerformedBy,
		PerformedByEmail: d.PerformedByEmail,
		Timestamp:        d.Timestamp,
		Details:          d.Details,
		IP:               d.IP,
	}
}
