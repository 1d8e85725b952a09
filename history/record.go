package history

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/vulcan-frame/vtime/xtime"
)

// Backends accepted by Open.
const (
	BackendNone  = "none"
	BackendRedis = "redis"
	BackendMongo = "mongo"
)

// Record is one finished timer or alarm session.
type Record struct {
	Seq       int64     `json:"seq" bson:"seq"`
	ID        string    `json:"id" bson:"id"`
	Kind      string    `json:"kind" bson:"kind"`
	Target    string    `json:"target" bson:"target"`
	Outcome   string    `json:"outcome" bson:"outcome"`
	StartedAt time.Time `json:"started_at" bson:"started_at"`
	EndedAt   time.Time `json:"ended_at" bson:"ended_at"`
}

func (r *Record) String() string {
	return fmt.Sprintf("%s  %s  %-5s %-9s %s  %s",
		r.ID, xtime.DateTimeString(r.StartedAt), r.Kind, r.Outcome, r.Target, r.EndedAt.Sub(r.StartedAt).Round(time.Second))
}

// Recorder is an append-only log of finished sessions.
type Recorder interface {
	// Append assigns r its sequence number and ID and stores it.
	Append(ctx context.Context, r *Record) error
	// Recent returns up to n records, newest first.
	Recent(ctx context.Context, n int64) ([]*Record, error)
}

// Options selects and configures a Recorder backend.
type Options struct {
	Backend     string
	RedisAddr   string
	RedisKey    string
	MongoDSN    string
	MongoDB     string
	Limit       int64
	DialTimeout time.Duration
}

// Open connects the backend named in o. The returned cleanup must be called
// once the recorder is no longer needed.
func Open(o Options) (rec Recorder, cleanup func(), err error) {
	switch o.Backend {
	case "", BackendNone:
		return Nop{}, func() {}, nil
	case BackendRedis:
		return NewRedisRecorder(o)
	case BackendMongo:
		return NewMongoRecorder(o)
	default:
		return nil, nil, errors.Errorf("unknown history backend %q", o.Backend)
	}
}

// Nop records nothing.
type Nop struct{}

func (Nop) Append(context.Context, *Record) error { return nil }

func (Nop) Recent(context.Context, int64) ([]*Record, error) { return nil, nil }

func assign(r *Record, seq int64) error {
	id, err := EncodeID(seq)
	if err != nil {
		return err
	}
	r.Seq, r.ID = seq, id
	return nil
}
