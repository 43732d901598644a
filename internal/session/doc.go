// Package session owns the current list of video records and the one
// background operation, a scan or a conversion, that may run at a time.
//
// Records are addressed by path. A new scan replaces the list; records
// stream in from the status bus while the scan runs and the list is
// settled from the scan result when it finishes. Conversion status
// changes are applied by path as the pipeline reports them.
package session
