// Package media defines the record types shared by the scanner, the
// conversion pipeline, the session and the presentation layers.
//
// A [VideoRecord] is created by the scanner with Format set to
// [UnknownFormat], Selected set and Status [StatusReady]. Only the session
// (on behalf of the user) changes Selected, and only the conversion pipeline
// moves Status forward.
package media
