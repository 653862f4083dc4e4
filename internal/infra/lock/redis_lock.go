package lock

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// 自分が取ったロックだけ消す
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// 照合ジョブの多重起動を防ぐロック（SET NX PX）。
// TTLはジョブの最長実行時間より長くしておく。
type RedisLock struct {
	client *redis.Client
	key    string
	ttl    time.Duration
	log    *slog.Logger
}

func NewRedisLock(client *redis.Client, key string, ttl time.Duration, log *slog.Logger) *RedisLock {
	return &RedisLock{client: client, key: key, ttl: ttl, log: log}
}

func NewRedisClient(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: addr})
}

func Key(service, name string) string {
	return fmt.Sprintf("%s:lock:%s", service, name)
}

func (l *RedisLock) Acquire(ctx context.Context) (func(), bool, error) {
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("redis setnx %s: %w", l.key, err)
	}
	if !ok {
		return nil, false, nil
	}

	release := func() {
		//呼び出し元のctxが切れていても解放はする
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := releaseScript.Run(rctx, l.client, []string{l.key}, token).Err(); err != nil {
			l.log.WarnContext(rctx, "release sweep lock failed", "key", l.key, "err", err)
		}
	}
	return release, true, nil
}
