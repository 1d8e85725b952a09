package history

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const (
	defaultRedisKey    = "vtime:history"
	defaultLimit       = 100
	defaultDialTimeout = 2 * time.Second
)

var _ Recorder = (*RedisRecorder)(nil)

// RedisRecorder keeps the latest sessions in a capped redis list.
// The sequence counter lives next to it under "<key>:seq".
type RedisRecorder struct {
	rdb   redis.Cmdable
	key   string
	limit int64
}

func NewRedisRecorder(o Options) (rec *RedisRecorder, cleanup func(), err error) {
	if len(o.RedisAddr) == 0 {
		err = errors.Errorf("redis history config is empty")
		return
	}
	applyDefaults(&o)

	cli := redis.NewClient(&redis.Options{
		Addr:        o.RedisAddr,
		DialTimeout: o.DialTimeout,
	})

	cleanup = func() {
		if err0 := cli.Close(); err0 != nil {
			log.Errorf("redis close failed. %+v", err0)
		} else {
			log.Debugf("redis close success")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), o.DialTimeout)
	defer cancel()

	if err = cli.Ping(ctx).Err(); err != nil {
		cleanup()
		err = errors.Wrapf(err, "redis ping failed. addr=%s", o.RedisAddr)
		return
	}

	rec = &RedisRecorder{rdb: cli, key: o.RedisKey, limit: o.Limit}
	return
}

func applyDefaults(o *Options) {
	if o.RedisKey == "" {
		o.RedisKey = defaultRedisKey
	}
	if o.Limit <= 0 {
		o.Limit = defaultLimit
	}
	if o.DialTimeout <= 0 {
		o.DialTimeout = defaultDialTimeout
	}
}

func (r *RedisRecorder) Append(ctx context.Context, rec *Record) error {
	seq, err := r.rdb.Incr(ctx, r.key+":seq").Result()
	if err != nil {
		return errors.Wrapf(err, "redis incr failed. key=%s", r.key)
	}
	if err = assign(rec, seq); err != nil {
		return err
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrapf(err, "history record marshal failed. id=%s", rec.ID)
	}

	pipe := r.rdb.TxPipeline()
	pipe.LPush(ctx, r.key, data)
	pipe.LTrim(ctx, r.key, 0, r.limit-1)
	if _, err = pipe.Exec(ctx); err != nil {
		return errors.Wrapf(err, "redis append failed. key=%s", r.key)
	}
	return nil
}

func (r *RedisRecorder) Recent(ctx context.Context, n int64) ([]*Record, error) {
	if n <= 0 {
		return nil, nil
	}

	items, err := r.rdb.LRange(ctx, r.key, 0, n-1).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "redis lrange failed. key=%s", r.key)
	}

	records := make([]*Record, 0, len(items))
	for _, item := range items {
		rec := &Record{}
		if err := json.Unmarshal([]byte(item), rec); err != nil {
			return nil, errors.Wrapf(err, "history record unmarshal failed. key=%s", r.key)
		}
		records = append(records, rec)
	}
	return records, nil
}
