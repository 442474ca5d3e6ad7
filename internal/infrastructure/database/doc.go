// Package database provides the in-memory SQLite store used for the
// session journal.
//
// Nothing is written to disk. The database is created by Open, migrated
// from embedded SQL files, and discarded when Close releases the last
// connection.
//
// Usage:
//
//	db, err := database.Open(database.Config{Name: "homysync"})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if _, err := db.Migrate(ctx, migrations.Source()); err != nil {
//	    return err
//	}
//
// Migration files are named YYYYMMDD_HHMMSS_description.up.sql. Matching
// .down.sql files may sit alongside but are not applied.
package database
