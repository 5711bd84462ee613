// Package httpserver runs the small HTTP listener of background processes:
// liveness and readiness probes built on chi, with graceful shutdown bound to
// the process context.
//
// Server wraps net/http.Server with the address and timeouts of Config
// (HTTP_ADDR, HTTP_READ_TIMEOUT, HTTP_WRITE_TIMEOUT, HTTP_SHUTDOWN_TIMEOUT).
// Run serves until ctx is cancelled and then shuts down within the configured
// deadline. Signals are not handled here; the binary cancels ctx.
//
// # Probes
//
// Probes mounts GET /healthz, which always answers, and GET /readyz, which
// runs every Check, each under CheckTimeout, and answers 503 with a per-check
// status map when any of them fails:
//
//	handler := httpserver.Probes(log, cfg.CheckTimeout,
//		httpserver.Check{Name: "postgres", Fn: pg.Healthcheck(pool)},
//		httpserver.Check{Name: "redis", Fn: redis.Healthcheck(client)},
//	)
//	srv := httpserver.New(cfg, httpserver.WithLogger(log))
//	if err := srv.Run(ctx, handler); err != nil {
//		return err
//	}
//
// # Errors
//
// Listen failures are wrapped with ErrStart and shutdown failures with
// ErrShutdown. Use errors.Is to tell them apart.
package httpserver
