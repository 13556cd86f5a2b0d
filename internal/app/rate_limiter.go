package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// purchaseWindowScript admits or rejects one purchase attempt inside a fixed
// window. The decision is made in Redis so concurrent API instances agree:
// the counter and its expiry move atomically, and a rejected attempt reports
// how long the caller must wait for the window to roll over.
var purchaseWindowScript = redis.NewScript(`
local hits = redis.call("INCR", KEYS[1])
if hits == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
if hits <= tonumber(ARGV[2]) then
  return {1, 0}
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
  ttl = tonumber(ARGV[1])
end
return {0, ttl}
`)

// RedisPurchaseRateLimiter throttles purchase attempts per subject across
// all running instances.
type RedisPurchaseRateLimiter struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisPurchaseRateLimiter(client redis.UniversalClient, prefix string) *RedisPurchaseRateLimiter {
	trimmedPrefix := strings.TrimSpace(prefix)
	if trimmedPrefix == "" {
		trimmedPrefix = "paynest:rate_limit"
	}
	trimmedPrefix = strings.TrimSuffix(trimmedPrefix, ":")

	return &RedisPurchaseRateLimiter{
		client: client,
		prefix: trimmedPrefix,
	}
}

// Allow consumes one slot for the subject. A nil or unconfigured limiter
// admits everything; a Redis error is returned so the caller can decide to
// fail open.
func (r *RedisPurchaseRateLimiter) Allow(
	ctx context.Context,
	scope string,
	subject string,
	limit int,
	window time.Duration,
) (allowed bool, retryAfterSeconds int, err error) {
	if r == nil || r.client == nil || limit <= 0 || window <= 0 {
		return true, 0, nil
	}

	normalizedScope := strings.TrimSpace(scope)
	normalizedSubject := strings.TrimSpace(subject)
	if normalizedScope == "" || normalizedSubject == "" {
		return true, 0, nil
	}

	windowMs := window.Milliseconds()
	if windowMs < 1000 {
		windowMs = 1000
	}

	key := fmt.Sprintf("%s:%s:%s", r.prefix, normalizedScope, normalizedSubject)
	rawResult, err := purchaseWindowScript.Run(ctx, r.client, []string{key}, windowMs, limit).Result()
	if err != nil {
		return false, 0, err
	}

	values, ok := rawResult.([]interface{})
	if !ok || len(values) != 2 {
		return false, 0, fmt.Errorf("unexpected redis limiter response shape: %T", rawResult)
	}
	verdict, ok := values[0].(int64)
	if !ok {
		return false, 0, fmt.Errorf("unexpected redis limiter verdict type: %T", values[0])
	}
	if verdict == 1 {
		return true, 0, nil
	}

	ttlMs, ok := values[1].(int64)
	if !ok {
		return false, 0, fmt.Errorf("unexpected redis limiter ttl type: %T", values[1])
	}
	if ttlMs < 0 {
		ttlMs = windowMs
	}
	retryAfter := int((ttlMs + 999) / 1000)
	if retryAfter < 1 {
		retryAfter = 1
	}
	return false, retryAfter, nil
}
