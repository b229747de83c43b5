// Package redis provides Redis client initialization and health checking.
//
// It wraps go-redis with URL validation and an exponential backoff ping loop
// so services survive a Redis that is still starting up.
//
//	cfg := redis.Config{
//		ConnectionURL:  "redis://localhost:6379/0",
//		RetryAttempts:  3,
//		RetryInterval:  5 * time.Second,
//		ConnectTimeout: 30 * time.Second,
//	}
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer client.Close()
//
// Only redis:// and rediss:// URLs are accepted. Errors are stable sentinels
// (ErrEmptyConnectionURL, ErrFailedToParseRedisConnString, ErrRedisNotReady,
// ErrHealthcheckFailed) joined with the underlying client error; match them
// with errors.Is.
//
// Healthcheck(client) returns a func(context.Context) error suitable for
// readiness probes.
package redis
