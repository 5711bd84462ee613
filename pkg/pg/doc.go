// Package pg bootstraps the PostgreSQL layer of the billing core on top of
// pgx/v5: a retrying pool constructor, goose migrations read from an embedded
// filesystem, a health probe, a transaction helper and classifiers for the
// SQLSTATE codes the stores react to.
//
// Typical start-up:
//
//	var cfg pg.Config
//	config.MustLoad(&cfg)
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer pool.Close()
//
//	if err := pg.Migrate(ctx, pool, pgstore.Migrations, pgstore.MigrationsDir, cfg, log); err != nil {
//		return err
//	}
package pg
