// Package mongo stores each model in its own collection of a region's
// database. Record ids map to _id.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"

	"privata/internal/storage"
	"privata/pkg/platform/sentinel"
)

// Adapter is the document storage adapter.
type Adapter struct {
	db *mongo.Database
}

// New creates an adapter over one regional database.
func New(db *mongo.Database) *Adapter {
	if db == nil {
		panic("mongo adapter: database is required")
	}
	return &Adapter{db: db}
}

func (a *Adapter) collection(model string, c storage.Consistency) *mongo.Collection {
	if c == storage.ConsistencyStrong {
		return a.db.Collection(model, options.Collection().
			SetReadPreference(readpref.Primary()).
			SetReadConcern(readconcern.Majority()))
	}
	return a.db.Collection(model, options.Collection().SetReadPreference(readpref.SecondaryPreferred()))
}

func (a *Adapter) FindByID(ctx context.Context, model, id string, opts storage.Options) (storage.Record, error) {
	return findByID(ctx, a.collection(model, opts.Consistency), model, id, opts)
}

func (a *Adapter) FindMany(ctx context.Context, q storage.Query, opts storage.Options) ([]storage.Record, error) {
	return findMany(ctx, a.collection(q.Model, opts.Consistency), q, opts)
}

func (a *Adapter) Create(ctx context.Context, model string, data storage.Record, _ storage.Options) (storage.Record, error) {
	return create(ctx, a.db.Collection(model), model, data)
}

func (a *Adapter) Update(ctx context.Context, model, id string, data storage.Record, _ storage.Options) (storage.Record, error) {
	return update(ctx, a.db.Collection(model), model, id, data)
}

func (a *Adapter) Delete(ctx context.Context, model, id string, _ storage.Options) error {
	return remove(ctx, a.db.Collection(model), model, id)
}

// Begin starts a multi-document transaction. Requires a replica set.
func (a *Adapter) Begin(ctx context.Context, _ storage.Options) (storage.Tx, error) {
	sess, err := a.db.Client().StartSession()
	if err != nil {
		return nil, wrap("start session", err)
	}
	txOpts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())
	if err := sess.StartTransaction(txOpts); err != nil {
		sess.EndSession(ctx)
		return nil, wrap("start transaction", err)
	}
	return &Tx{db: a.db, sess: sess}, nil
}

// Tx runs operations inside a session transaction.
type Tx struct {
	db   *mongo.Database
	sess mongo.Session
	done bool
}

func (t *Tx) ctx(ctx context.Context) context.Context {
	return mongo.NewSessionContext(ctx, t.sess)
}

func (t *Tx) FindByID(ctx context.Context, model, id string, opts storage.Options) (storage.Record, error) {
	return findByID(t.ctx(ctx), t.db.Collection(model), model, id, opts)
}

func (t *Tx) FindMany(ctx context.Context, q storage.Query, opts storage.Options) ([]storage.Record, error) {
	return findMany(t.ctx(ctx), t.db.Collection(q.Model), q, opts)
}

func (t *Tx) Create(ctx context.Context, model string, data storage.Record, _ storage.Options) (storage.Record, error) {
	return create(t.ctx(ctx), t.db.Collection(model), model, data)
}

func (t *Tx) Update(ctx context.Context, model, id string, data storage.Record, _ storage.Options) (storage.Record, error) {
	return update(t.ctx(ctx), t.db.Collection(model), model, id, data)
}

func (t *Tx) Delete(ctx context.Context, model, id string, _ storage.Options) error {
	return remove(t.ctx(ctx), t.db.Collection(model), model, id)
}

func (t *Tx) Commit(ctx context.Context) error {
	if t.done {
		return fmt.Errorf("transaction finished: %w", sentinel.ErrInvalidState)
	}
	t.done = true
	defer t.sess.EndSession(ctx)
	if err := t.sess.CommitTransaction(ctx); err != nil {
		return wrap("commit", err)
	}
	return nil
}

func (t *Tx) Rollback(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	defer t.sess.EndSession(ctx)
	if err := t.sess.AbortTransaction(ctx); err != nil {
		return wrap("abort", err)
	}
	return nil
}

func findByID(ctx context.Context, coll *mongo.Collection, model, id string, opts storage.Options) (storage.Record, error) {
	var doc bson.M
	err := coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%s %s: %w", model, id, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, wrap("find record", err)
	}
	return fromDocument(doc).Project(opts.Fields), nil
}

func findMany(ctx context.Context, coll *mongo.Collection, q storage.Query, opts storage.Options) ([]storage.Record, error) {
	if err := q.Where.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", sentinel.ErrInvalidInput, err)
	}
	findOpts := options.Find()
	sort := bson.D{}
	for _, s := range q.Sort {
		dir := 1
		if s.Desc {
			dir = -1
		}
		sort = append(sort, bson.E{Key: s.Field, Value: dir})
	}
	sort = append(sort, bson.E{Key: "_id", Value: 1})
	findOpts.SetSort(sort)
	if q.Limit > 0 {
		findOpts.SetLimit(int64(q.Limit))
	}
	if q.Offset > 0 {
		findOpts.SetSkip(int64(q.Offset))
	}

	cur, err := coll.Find(ctx, translate(q.Where), findOpts)
	if err != nil {
		return nil, wrap("query records", err)
	}
	defer cur.Close(ctx)

	sel := q.Select
	if len(sel) == 0 {
		sel = opts.Fields
	}
	var out []storage.Record
	for cur.Next(ctx) {
		var doc bson.M
		if err := cur.Decode(&doc); err != nil {
			return nil, wrap("decode record", err)
		}
		out = append(out, fromDocument(doc).Project(sel))
	}
	if err := cur.Err(); err != nil {
		return nil, wrap("iterate records", err)
	}
	return out, nil
}

func create(ctx context.Context, coll *mongo.Collection, model string, data storage.Record) (storage.Record, error) {
	r := data.Clone()
	id := r.ID()
	if id == "" {
		id = uuid.NewString()
		r[storage.FieldID] = id
	}
	_, err := coll.InsertOne(ctx, toDocument(r))
	if mongo.IsDuplicateKeyError(err) {
		return nil, fmt.Errorf("%s %s: %w", model, id, sentinel.ErrConflict)
	}
	if err != nil {
		return nil, wrap("insert record", err)
	}
	return r, nil
}

func update(ctx context.Context, coll *mongo.Collection, model, id string, data storage.Record) (storage.Record, error) {
	set := bson.M{}
	for k, v := range data {
		if k != storage.FieldID {
			set[k] = v
		}
	}
	if len(set) == 0 {
		return findByID(ctx, coll, model, id, storage.Options{})
	}
	var doc bson.M
	err := coll.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%s %s: %w", model, id, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, wrap("update record", err)
	}
	return fromDocument(doc), nil
}

func remove(ctx context.Context, coll *mongo.Collection, model, id string) error {
	res, err := coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return wrap("delete record", err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("%s %s: %w", model, id, sentinel.ErrNotFound)
	}
	return nil
}

// translate converts a filter tree to a query document. Contains with a
// string value is a literal substring match.
func translate(f storage.Filter) bson.M {
	var parts []bson.M
	if f.Field != "" {
		parts = append(parts, cond(f))
	}
	for _, c := range f.And {
		parts = append(parts, translate(c))
	}
	if len(f.Or) > 0 {
		ors := make(bson.A, 0, len(f.Or))
		for _, c := range f.Or {
			ors = append(ors, translate(c))
		}
		parts = append(parts, bson.M{"$or": ors})
	}
	switch len(parts) {
	case 0:
		return bson.M{}
	case 1:
		return parts[0]
	}
	and := make(bson.A, 0, len(parts))
	for _, p := range parts {
		and = append(and, p)
	}
	return bson.M{"$and": and}
}

func cond(f storage.Filter) bson.M {
	field := f.Field
	if field == storage.FieldID {
		field = "_id"
	}
	switch f.Op {
	case storage.OpEq:
		return bson.M{field: bson.M{"$eq": f.Value}}
	case storage.OpNe:
		return bson.M{field: bson.M{"$ne": f.Value}}
	case storage.OpGt:
		return bson.M{field: bson.M{"$gt": f.Value}}
	case storage.OpGte:
		return bson.M{field: bson.M{"$gte": f.Value}}
	case storage.OpLt:
		return bson.M{field: bson.M{"$lt": f.Value}}
	case storage.OpLte:
		return bson.M{field: bson.M{"$lte": f.Value}}
	case storage.OpIn:
		return bson.M{field: bson.M{"$in": f.Value}}
	case storage.OpContains:
		if s, ok := f.Value.(string); ok {
			return bson.M{"$or": bson.A{
				bson.M{field: bson.M{"$elemMatch": bson.M{"$eq": s}}},
				bson.M{field: bson.M{"$regex": regexp.QuoteMeta(s)}},
			}}
		}
		return bson.M{field: bson.M{"$elemMatch": bson.M{"$eq": f.Value}}}
	}
	// Unknown operators match nothing.
	return bson.M{"_id": bson.M{"$exists": false}}
}

func toDocument(r storage.Record) bson.M {
	doc := make(bson.M, len(r))
	for k, v := range r {
		if k == storage.FieldID {
			doc["_id"] = v
			continue
		}
		doc[k] = v
	}
	return doc
}

func fromDocument(doc bson.M) storage.Record {
	r := make(storage.Record, len(doc))
	for k, v := range doc {
		if k == "_id" {
			r[storage.FieldID] = fmt.Sprint(v)
			continue
		}
		r[k] = plain(v)
	}
	return r
}

// plain converts driver types to the JSON-like values the engine works with.
func plain(v any) any {
	switch t := v.(type) {
	case primitive.A:
		out := make([]any, len(t))
		for i, x := range t {
			out[i] = plain(x)
		}
		return out
	case bson.M:
		out := make(map[string]any, len(t))
		for k, x := range t {
			out[k] = plain(x)
		}
		return out
	case bson.D:
		out := make(map[string]any, len(t))
		for _, e := range t {
			out[e.Key] = plain(e.Value)
		}
		return out
	case primitive.DateTime:
		return t.Time().UTC()
	case int32:
		return int64(t)
	case time.Time:
		return t.UTC()
	}
	return v
}

func wrap(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	if mongo.IsNetworkError(err) || mongo.IsTimeout(err) {
		return fmt.Errorf("%s: %w: %w", op, sentinel.ErrUnavailable, err)
	}
	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) && cmdErr.HasErrorLabel("TransientTransactionError") {
		return fmt.Errorf("%s: %w: %w", op, sentinel.ErrUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
