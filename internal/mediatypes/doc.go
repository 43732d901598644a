// Package mediatypes holds the video extension allow-list and the
// compatible container set shared by the scanner, the prober and the
// conversion pipeline.
package mediatypes
