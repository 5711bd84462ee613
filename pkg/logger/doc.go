// Package logger builds the structured slog.Logger used by every component of
// the billing core.
//
// New assembles a JSON or text handler from functional options and wraps it in
// a decorator that pulls request-scoped values (tenant ID, billing event ID)
// out of the context on every record, so components only log what is specific
// to them:
//
//	log := logger.New(
//		logger.WithEnvironment("production", "sweeper"),
//		logger.WithContextExtractors(tenant.LoggerExtractor(), logger.EventIDExtractor()),
//	)
//	log.InfoContext(ctx, "subscription transitioned",
//		logger.Status("past_due"), logger.Component("subscription"))
//
// Attribute helpers in attr.go keep key names consistent across packages.
package logger
