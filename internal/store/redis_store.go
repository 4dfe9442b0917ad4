package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	redisFieldAlgorithm  = "algorithm"
	redisFieldCreatedAt  = "created_at"
	redisFieldPrivateKey = "private_key"

	redisLockRetryInterval = 50 * time.Millisecond
)

var redisUnlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// redisStore keeps every key in a hash and indexes the ids in a sorted set
// scored by creation time.
type redisStore struct {
	client  redis.UniversalClient
	prefix  string
	lockTTL time.Duration
}

func NewRedisStore(client redis.UniversalClient, prefix string, lockTTL time.Duration) *redisStore {
	return &redisStore{
		client:  client,
		prefix:  prefix,
		lockTTL: lockTTL,
	}
}

func (r *redisStore) indexKey() string           { return r.prefix + "keys" }
func (r *redisStore) recordKey(id string) string { return r.prefix + "key:" + id }
func (r *redisStore) lockKey() string            { return r.prefix + "rotation-lock" }

func (r *redisStore) Load(ctx context.Context) ([]Record, error) {
	ids, err := r.client.ZRevRange(ctx, r.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list key ids: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	pipe := r.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, r.recordKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to read keys: %w", err)
	}

	out := make([]Record, 0, len(ids))
	for i, cmd := range cmds {
		rec, err := parseRedisRecord(ids[i], cmd.Val())
		if err != nil {
			logrus.WithError(err).WithField("id", ids[i]).Debug("unreadable key hash")
		}
		out = append(out, rec)
	}
	return out, nil
}

// parseRedisRecord always returns a record carrying id and the fields that
// could be read.
func parseRedisRecord(id string, fields map[string]string) (Record, error) {
	rec := Record{ID: id}
	if len(fields) == 0 {
		return rec, fmt.Errorf("key hash is missing")
	}
	rec.Algorithm = fields[redisFieldAlgorithm]
	rec.PrivateKey = []byte(fields[redisFieldPrivateKey])
	createdAt, err := time.Parse(time.RFC3339Nano, fields[redisFieldCreatedAt])
	if err != nil {
		return rec, fmt.Errorf("failed to parse creation time: %w", err)
	}
	rec.CreatedAt = createdAt
	return rec, nil
}

// Save writes the hash and the index entry in one MULTI/EXEC transaction.
func (r *redisStore) Save(ctx context.Context, rec Record) error {
	if err := rec.validate(); err != nil {
		return err
	}

	key := r.recordKey(rec.ID)
	n, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("failed to check key id: %w", err)
	}
	if n > 0 {
		return fmt.Errorf("%w: %s", ErrDuplicateKeyID, rec.ID)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, map[string]any{
			redisFieldAlgorithm:  rec.Algorithm,
			redisFieldCreatedAt:  rec.CreatedAt.UTC().Format(time.RFC3339Nano),
			redisFieldPrivateKey: rec.PrivateKey,
		})
		pipe.ZAdd(ctx, r.indexKey(), redis.Z{
			Score:  float64(rec.CreatedAt.UnixMilli()),
			Member: rec.ID,
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save key: %w", err)
	}
	return nil
}

// Lock spins on SET NX until the lock is taken or ctx is done. The lock
// expires after lockTTL in case the holder dies.
func (r *redisStore) Lock(ctx context.Context) (func(), error) {
	token := uuid.NewString()
	ticker := time.NewTicker(redisLockRetryInterval)
	defer ticker.Stop()

	for {
		ok, err := r.client.SetNX(ctx, r.lockKey(), token, r.lockTTL).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to take rotation lock: %w", err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}

	return func() {
		if err := redisUnlockScript.Run(context.Background(), r.client, []string{r.lockKey()}, token).Err(); err != nil {
			logrus.WithError(err).Error("failed to release rotation lock")
		}
	}, nil
}
