// Package trackstore contains the SQLite persistence layer for tracking
// runs: run metadata, per-track summaries, per-frame observations and
// per-frame association stats.
//
// All database read/write operations belong here rather than in the
// tracking packages. This keeps the frame loop free of SQL noise and
// makes it easier to swap storage backends for testing. The schema is
// managed by embedded golang-migrate migrations; Open applies session
// pragmas only and leaves schema setup to MigrateUp.
package trackstore
