// Package database provides the SQLite connection behind the gateway's
// local snapshot history.
//
// The connection runs with a single writer, an optional WAL journal and a
// busy timeout. Schema changes are forward-only migrations named
// YYYYMMDD_HHMMSS_description.up.sql, embedded by the migrations package
// and applied by Migrate at startup.
//
// Usage:
//
//	db, err := database.Open(database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
package database
