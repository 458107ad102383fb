package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/Skotchmaster/blog_auth/internal/models"
)

// RedisRefreshRepo keeps the live refresh token per user in redis.
// Two keys exist per user: owner -> token hash and token hash -> owner;
// the Lua scripts keep them consistent. The scripts derive the second key at
// run time, so both keys must live on one node: cluster clients are not
// accepted.
type RedisRefreshRepo struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisRefreshRepo(rdb *redis.Client, prefix string, ttl time.Duration) *RedisRefreshRepo {
	if prefix == "" {
		prefix = "auth"
	}
	return &RedisRefreshRepo{rdb: rdb, prefix: prefix, ttl: ttl}
}

const putRefreshScript = `
local old = redis.call("GET", KEYS[1])
if old then
  redis.call("DEL", ARGV[4] .. old)
end
redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
redis.call("SET", ARGV[4] .. ARGV[2], ARGV[1], "PX", ARGV[3])
return 1
`

const rotateRefreshScript = `
local cur = redis.call("GET", KEYS[1])
if cur ~= ARGV[2] then
  return 0
end
redis.call("DEL", ARGV[5] .. cur)
redis.call("SET", KEYS[1], ARGV[3], "PX", ARGV[4])
redis.call("SET", ARGV[5] .. ARGV[3], ARGV[1], "PX", ARGV[4])
return 1
`

const deleteRefreshScript = `
local owner = redis.call("GET", KEYS[1])
if not owner then
  return 0
end
redis.call("DEL", KEYS[1])
local ownerKey = ARGV[2] .. owner
if redis.call("GET", ownerKey) == ARGV[1] then
  redis.call("DEL", ownerKey)
end
return 1
`

var (
	putRefreshLua    = redis.NewScript(putRefreshScript)
	rotateRefreshLua = redis.NewScript(rotateRefreshScript)
	deleteRefreshLua = redis.NewScript(deleteRefreshScript)
)

func (r *RedisRefreshRepo) ownerPrefix() string { return r.prefix + ":refresh:owner:" }
func (r *RedisRefreshRepo) tokenPrefix() string { return r.prefix + ":refresh:token:" }

func (r *RedisRefreshRepo) ownerKey(ownerID uuid.UUID) string {
	return r.ownerPrefix() + ownerID.String()
}

func (r *RedisRefreshRepo) ttlMillis() int64 {
	ttl := r.ttl
	if ttl <= 0 {
		ttl = time.Hour
	}
	return ttl.Milliseconds()
}

func (r *RedisRefreshRepo) Put(ctx context.Context, ownerID uuid.UUID, token string) error {
	err := putRefreshLua.Run(ctx, r.rdb,
		[]string{r.ownerKey(ownerID)},
		ownerID.String(), Sha256Hex(token), r.ttlMillis(), r.tokenPrefix(),
	).Err()
	if err != nil {
		return fmt.Errorf("redis put refresh token: %w", err)
	}
	return nil
}

func (r *RedisRefreshRepo) FindByOwnerAndToken(ctx context.Context, ownerID uuid.UUID, token string) (*models.RefreshToken, error) {
	stored, err := r.rdb.Get(ctx, r.ownerKey(ownerID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("redis find refresh token: %w", err)
	}
	hash := Sha256Hex(token)
	if stored != hash {
		return nil, ErrNotFound
	}
	return &models.RefreshToken{UserID: ownerID, TokenHash: hash}, nil
}

func (r *RedisRefreshRepo) Rotate(ctx context.Context, ownerID uuid.UUID, oldToken, newToken string) error {
	swapped, err := rotateRefreshLua.Run(ctx, r.rdb,
		[]string{r.ownerKey(ownerID)},
		ownerID.String(), Sha256Hex(oldToken), Sha256Hex(newToken), r.ttlMillis(), r.tokenPrefix(),
	).Int()
	if err != nil {
		return fmt.Errorf("redis rotate refresh token: %w", err)
	}
	if swapped == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *RedisRefreshRepo) DeleteByToken(ctx context.Context, token string) error {
	hash := Sha256Hex(token)
	err := deleteRefreshLua.Run(ctx, r.rdb,
		[]string{r.tokenPrefix() + hash},
		hash, r.ownerPrefix(),
	).Err()
	if err != nil {
		return fmt.Errorf("redis delete refresh token: %w", err)
	}
	return nil
}
