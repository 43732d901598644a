// Command video-converter scans folders for videos and converts them to
// iPhone-compatible H.264/AAC MP4 files with ffmpeg.
//
// Usage:
//
//	video-converter scan [dir]        list the videos in dir
//	video-converter convert [dir]     scan dir and convert every video
//	video-converter serve             run the control API and event stream
//	video-converter check             report ffmpeg and ffprobe status
//	video-converter config <cmd>      inspect or edit the settings file
//	video-converter history           list past conversion runs
//
// Settings are read from $XDG_CONFIG_HOME/video-converter/settings.toml
// unless --config or VIDEO_CONVERTER_CONFIG names another file.
package main
