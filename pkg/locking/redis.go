package locking

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Lease parameters for Redis-backed locks. The lease keeps a crashed holder
// from blocking other processes forever; the refresh loop extends it while
// the lock is held.
const (
	redisLeaseTTL     = 30 * time.Second
	redisRetryDelay   = 100 * time.Millisecond
	redisRefreshEvery = redisLeaseTTL / 3
)

// releaseScript deletes the lock key only when it still carries our token,
// so an expired lease reclaimed by another process is never released by us.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// refreshScript extends the lease only while we still hold it.
var refreshScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
end
return 0
`)

// RedisProvider implements Provider on a Redis lease (SET NX PX), making
// locks effective across processes sharing one local repository. Redis
// leases have no shared mode, so every acquisition is exclusive; in-process
// read concurrency is handled by the MemoryProvider layered per process.
type RedisProvider struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisProvider creates a provider on the given client. Keys are
// prefixed with "quarry:lock:".
func NewRedisProvider(client redis.UniversalClient) *RedisProvider {
	return &RedisProvider{client: client, prefix: "quarry:lock:"}
}

// Acquire implements Provider.
func (p *RedisProvider) Acquire(ctx context.Context, name string, _ bool) (func(), error) {
	key := p.prefix + name
	token := uuid.NewString()

	for {
		ok, err := p.client.SetNX(ctx, key, token, redisLeaseTTL).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(redisRetryDelay):
		}
	}

	stop := make(chan struct{})
	go p.refresh(key, token, stop)
	return func() {
		close(stop)
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = releaseScript.Run(releaseCtx, p.client, []string{key}, token).Err()
	}, nil
}

func (p *RedisProvider) refresh(key, token string, stop <-chan struct{}) {
	ticker := time.NewTicker(redisRefreshEvery)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			_ = refreshScript.Run(ctx, p.client, []string{key}, token, redisLeaseTTL.Milliseconds()).Err()
			cancel()
		}
	}
}
