// Package scanner finds video files under a source folder and collects the
// metadata the converter needs for each.
//
// The walk runs on its own goroutine and hands discovered paths to a small
// probe pool in fixed-size batches. Files at or above the large-file
// threshold are not probed during the scan; their format stays "Unknown"
// until conversion. Finished records are published on the status bus in
// groups, each group in discovery order, and a single completion event
// follows the last group.
//
// Cancelling the context stops the walk and the publishing of records at
// once. Workers still blocked in ffprobe are left to finish on their own.
package scanner
