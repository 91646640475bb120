// Package migration applies versioned SQL schema files to a database.
//
// Files are read from an fs.FS (normally an embedded directory) and must be
// named {version}_{description}.sql. Applied versions are tracked in the
// schema_migrations table together with their checksum, and each file runs in
// its own transaction.
//
//	manager := migration.NewManager(migration.NewScanner(files, "migrations/sqlite"),
//		migration.NewExecutor(db, nil), logger)
//	if err := manager.Run(ctx); err != nil {
//		return err
//	}
package migration
