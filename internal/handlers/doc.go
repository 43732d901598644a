// Package handlers provides the HTTP control API of the converter.
//
// It includes handlers for:
//   - Listing videos and changing their selection
//   - Starting scans and conversions, and cancelling them
//   - The visible log, effective settings and run history
//   - A websocket stream of status bus events
//   - Health checks, version and Prometheus metrics
//
// Invalid folders are rejected with 400 before any work starts; a request
// made while another operation runs gets 409.
package handlers
