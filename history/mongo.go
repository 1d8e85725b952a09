package history

import (
	"context"
	"fmt"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
	"go.mongodb.org/mongo-driver/v2/mongo/writeconcern"
)

const (
	sessionColl = "sessions"
	counterColl = "counters"
	counterName = "sessions"
)

var _ Recorder = (*MongoRecorder)(nil)

// MongoRecorder stores sessions in a collection, numbered by an increment-id document.
type MongoRecorder struct {
	sessions *mongo.Collection
	counters *mongo.Collection
}

func NewMongoRecorder(o Options) (rec *MongoRecorder, cleanup func(), err error) {
	if len(o.MongoDB) == 0 || len(o.MongoDSN) == 0 {
		err = errors.Errorf("mongo history config is empty")
		return
	}
	applyDefaults(&o)

	var cli *mongo.Client
	cli, err = mongo.Connect(
		options.Client().ApplyURI(fmt.Sprintf("mongodb://%s", o.MongoDSN)),
		options.Client().SetWriteConcern(writeconcern.Majority()),
		options.Client().SetTimeout(o.DialTimeout),
	)
	if err != nil {
		err = errors.Wrapf(err, "connect to mongo failed")
		return
	}

	cleanup = func() {
		if err0 := cli.Disconnect(context.Background()); err0 != nil {
			log.Errorf("%+v", errors.Wrap(err0, "mongo disconnect failed"))
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), o.DialTimeout)
	defer cancel()

	if err = cli.Ping(ctx, readpref.Primary()); err != nil {
		cleanup()
		err = errors.Wrapf(err, "mongo ping failed")
		return
	}

	db := cli.Database(o.MongoDB)
	rec = &MongoRecorder{
		sessions: db.Collection(sessionColl),
		counters: db.Collection(counterColl),
	}
	if err = initIncrementIDDoc(ctx, rec.counters, counterName); err != nil {
		cleanup()
		return
	}
	return
}

func (m *MongoRecorder) Append(ctx context.Context, rec *Record) error {
	seq, err := incrementID(ctx, m.counters, counterName)
	if err != nil {
		return err
	}
	if err = assign(rec, seq); err != nil {
		return err
	}

	if _, err = m.sessions.InsertOne(ctx, rec); err != nil {
		return errors.Wrapf(err, "mongo insert session failed. id=%s", rec.ID)
	}
	return nil
}

func (m *MongoRecorder) Recent(ctx context.Context, n int64) ([]*Record, error) {
	if n <= 0 {
		return nil, nil
	}

	opts := options.Find().SetSort(bson.D{{Key: "seq", Value: -1}}).SetLimit(n)
	cur, err := m.sessions.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, errors.Wrapf(err, "mongo find sessions failed")
	}

	var records []*Record
	if err = cur.All(ctx, &records); err != nil {
		return nil, errors.Wrapf(err, "mongo decode sessions failed")
	}
	return records, nil
}

type incrementIDDoc struct {
	Name   string `bson:"name"`
	NextID int64  `bson:"next_id"`
}

func incrementID(ctx context.Context, coll *mongo.Collection, name string) (int64, error) {
	result := &incrementIDDoc{}
	if err := coll.FindOneAndUpdate(
		ctx,
		bson.M{"name": name},
		bson.M{"$inc": bson.M{"next_id": 1}}).
		Decode(result); err != nil {
		return 0, errors.Wrapf(err, "mongo increment id failed. name=%s", name)
	}

	return result.NextID, nil
}

func initIncrementIDDoc(ctx context.Context, coll *mongo.Collection, name string) error {
	err := coll.FindOne(ctx, bson.M{"name": name}).Err()
	if err == nil {
		return nil
	}

	if !errors.Is(err, mongo.ErrNoDocuments) {
		return errors.Wrapf(err, "mongo find one failed. name=%s", name)
	}

	if _, err = coll.InsertOne(ctx, &incrementIDDoc{
		Name:   name,
		NextID: 1,
	}); err != nil {
		return errors.Wrapf(err, "mongo insert one failed. name=%s", name)
	}
	log.Infof("mongo increment id doc created. name=%s", name)
	return nil
}
