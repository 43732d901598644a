// Package converter turns source videos into iPhone-compatible H.264/AAC
// MP4 files with ffmpeg.
//
// A Pipeline converts one file at a time. Each transcode writes to a
// ".part" file next to its destination and is renamed into place only when
// ffmpeg exits cleanly, so a failed or killed transcode never leaves a file
// at the destination path. A destination that already exists is skipped.
//
// Three limits stop a transcode: the per-file timeout, cancellation of the
// run context, and the watchdog, which cancels the whole run when ffmpeg
// has printed no progress for the idle limit. A cancelled or stalled run
// stops before the next file; files that never started keep their Ready
// status.
//
// When originals are deleted they are first copied to a backup next to the
// source and removed only after the copy has been verified.
package converter
