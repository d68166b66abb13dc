// Package store provides persistent storage for the admin using SQLite.
//
// # Architecture
//
// SQLiteStore implements three interfaces in a single struct:
//
//   - UserStore: admin users and cookie sessions
//   - PermissionStore: per-user permission codes and principal loading
//   - RecordStore: read access to the tables behind registered models
//
// # Model Data
//
// The store does not own the tables it exports from. Registered models name
// an existing table; DescribeTable reads its columns from pragma_table_info
// and Records/ListRecords return lazy model.QuerySet sequences that open a
// cursor on first iteration and close it when iteration ends:
//
//	for rec, err := range s.Records(ctx, meta, []string{"1", "2"}) {
//		...
//	}
//
// Identifiers are validated by model.Meta.Validate before they are quoted
// into SQL; record values are always bound as parameters.
//
// # SQLite Configuration
//
// Two drivers are supported:
//
//   - "sqlite": modernc.org/sqlite, pure Go (default)
//   - "sqlite3": github.com/mattn/go-sqlite3, requires cgo
//
// File databases run with WAL mode and foreign keys enabled. The special
// path ":memory:" pins the pool to a single connection.
//
// # Errors
//
//   - ErrNotFound: requested entity or table does not exist
//   - ErrUserNotFound: no admin user with that ID or username
//   - ErrSessionNotFound: session missing or expired
//   - ErrUsernameExists: username already taken
package store
