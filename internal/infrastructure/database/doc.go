// Package database provides the SQLite connection behind FilaCore's
// command history.
//
// The history is an append-only log of bridge executions. Printers and
// filaments stay in their flat JSON collections; SQLite only records what
// was sent to which printer and how it ended.
//
// Migrations are plain "<YYYYMMDD>_<HHMMSS>_<name>.up.sql" files passed in as
// an fs.FS (see the migrations package). There are no down migrations.
//
// Usage:
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
package database
