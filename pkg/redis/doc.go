// Package redis connects to Redis and provides the distributed lock used to
// keep sweep workers on different hosts from advancing the same tenant at
// once.
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	locker := redis.NewLocker(client, cfg.LockPrefix)
//	release, ok, err := locker.TryLock(ctx, tenantID.String(), time.Minute)
//
// Healthcheck adapts a client to the readiness probe of the sweeper.
package redis
