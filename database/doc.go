// Package database stores proof records in SQL.
//
// Two backends are supported:
//
//   - PostgreSQL, using a pgx connection pool
//   - SQLite, using modernc.org/sqlite, for single-node hubs
//
// The proof table name is configurable through hubstore.Tables so several
// hubs can share one database.
//
// # Usage
//
//	db, err := database.Open(ctx, database.Config{
//	    Type:   "sqlite",
//	    DSN:    "hubstore.db",
//	    Tables: hubstore.Tables{Proofs: "hubstore_proofs"},
//	}, true)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	checker, err := proofs.NewChecker(policy, db.GetRepo())
//
// The returned repo is a proofs.Source and can back a proofs.Checker directly
// or sit behind a proofs.CachedSource.
package database
