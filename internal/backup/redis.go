package backup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/and161185/timekeeper/internal/errs"
)

// DefaultRedisPrefix namespaces snapshot keys.
const DefaultRedisPrefix = "timekeeper:backup"

// RedisStore keeps snapshots in Redis: "<prefix>:latest", "<prefix>:snap:<ts>"
// and a sorted set "<prefix>:history" scored by timestamp.
type RedisStore struct {
	rdb    redis.Cmdable
	prefix string
	keep   int
}

// NewRedisStore wraps rdb. keep <= 0 means DefaultKeep.
func NewRedisStore(rdb redis.Cmdable, prefix string, keep int) *RedisStore {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	if keep <= 0 {
		keep = DefaultKeep
	}
	return &RedisStore{rdb: rdb, prefix: prefix, keep: keep}
}

func (r *RedisStore) latestKey() string        { return r.prefix + ":latest" }
func (r *RedisStore) historyKey() string       { return r.prefix + ":history" }
func (r *RedisStore) snapKey(ts string) string { return r.prefix + ":snap:" + ts }

// Save writes the snapshot as latest and as a timestamped copy, then prunes.
func (r *RedisStore) Save(ctx context.Context, s Snapshot) error {
	const op = "backup.redis.save"
	if s.LastBackup.IsZero() {
		s.LastBackup = time.Now().UTC()
	}
	b, err := Encode(s)
	if err != nil {
		return errs.E(errs.KindStorage, op, err)
	}
	ts := stamp(s.LastBackup)
	payload := string(b)

	if err := r.rdb.Set(ctx, r.latestKey(), payload, 0).Err(); err != nil {
		return classify(op, err)
	}
	if err := r.rdb.Set(ctx, r.snapKey(ts), payload, 0).Err(); err != nil {
		return classify(op, err)
	}
	z := redis.Z{Score: float64(s.LastBackup.UnixNano()), Member: ts}
	if err := r.rdb.ZAdd(ctx, r.historyKey(), z).Err(); err != nil {
		return classify(op, err)
	}
	return r.prune(ctx)
}

func (r *RedisStore) prune(ctx context.Context) error {
	const op = "backup.redis.prune"
	old, err := r.rdb.ZRevRange(ctx, r.historyKey(), int64(r.keep), -1).Result()
	if err != nil {
		return classify(op, err)
	}
	if len(old) == 0 {
		return nil
	}
	keys := make([]string, 0, len(old))
	members := make([]any, 0, len(old))
	for _, ts := range old {
		keys = append(keys, r.snapKey(ts))
		members = append(members, ts)
	}
	if err := r.rdb.Del(ctx, keys...).Err(); err != nil {
		return classify(op, err)
	}
	if err := r.rdb.ZRem(ctx, r.historyKey(), members...).Err(); err != nil {
		return classify(op, err)
	}
	return nil
}

// Latest loads the most recent snapshot.
func (r *RedisStore) Latest(ctx context.Context) (Snapshot, error) {
	return r.get(ctx, r.latestKey())
}

// History lists retained copies, newest first.
func (r *RedisStore) History(ctx context.Context) ([]time.Time, error) {
	const op = "backup.redis.history"
	members, err := r.rdb.ZRevRange(ctx, r.historyKey(), 0, -1).Result()
	if err != nil {
		return nil, classify(op, err)
	}
	out := make([]time.Time, 0, len(members))
	for _, m := range members {
		ts, err := parseStamp(m)
		if err != nil {
			continue
		}
		out = append(out, ts)
	}
	return out, nil
}

// At loads the copy taken at ts.
func (r *RedisStore) At(ctx context.Context, ts time.Time) (Snapshot, error) {
	return r.get(ctx, r.snapKey(stamp(ts)))
}

func (r *RedisStore) get(ctx context.Context, key string) (Snapshot, error) {
	const op = "backup.redis.get"
	b, err := r.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Snapshot{}, errs.E(errs.KindNotFound, op, fmt.Errorf("%s: %w", key, errs.ErrNotFound))
		}
		return Snapshot{}, classify(op, err)
	}
	return Decode(b)
}

// classify keeps transport failures distinguishable from storage ones.
func classify(op string, err error) error {
	if errs.IsConnectivity(err) {
		return errs.E(errs.KindConnectivity, op, err)
	}
	return errs.E(errs.KindStorage, op, err)
}
