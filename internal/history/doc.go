// Package history keeps a SQLite journal of conversion runs.
//
// Each run gets a row when it starts and is completed with its counts when
// it ends; every file outcome is stored as an item of its run. A run that
// never finished (the process died) keeps a zero end time.
//
// The database uses WAL mode and creates its schema on open.
package history
