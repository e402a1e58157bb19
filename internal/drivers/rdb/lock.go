package rdb

import (
	"context"
	"time"
)

// Compare-and-delete so a worker can only release its own lock,
// never one that expired and was re-acquired by someone else.
const unlockScript = `
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`

// TryLock attempts to acquire a lock without blocking.
// It sets key-value ONLY if the key doesn't exist and
// informs the caller if it was successful or not.
func (rs *Service) TryLock(ctx context.Context, key, value string, expiry time.Duration) (bool, error) {
	return rs.Client.SetNX(ctx, key, value, expiry).Result()
}

// Unlock deletes the key-value from Redis
// ONLY if the value is the correct value using LUA atomic script.
func (rs *Service) Unlock(ctx context.Context, key, value string) error {
	_, err := rs.Client.Eval(ctx, unlockScript, []string{key}, value).Result()
	return err
}
