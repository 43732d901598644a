// Package probe extracts container and codec metadata from video files with
// ffprobe.
//
// Only a few fields of ffprobe's JSON are used: format.format_name, the
// first non-cover-art video stream's codec_name and dimensions, and the
// duration (for progress reporting). A file is compatible when it already
// holds H.264 video in an MP4 container with an .mp4 or .m4v extension.
//
// Probing never fails from the caller's point of view. A timeout, a
// non-zero exit status or unparseable output yields [Failed], whose Format
// is "Unknown", with the cause in Result.Err.
//
// [Cached] sits in front of [FFprobe] so that re-scanning a folder does not
// re-run ffprobe for files that have not changed.
package probe
