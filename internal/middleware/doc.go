// Package middleware provides HTTP middleware for the control API.
//
// It includes:
//   - Request logging in W3C Extended Log Format
//   - Prometheus request metrics labelled by route template
//
// Both wrappers keep http.Hijacker working so the event stream can upgrade
// to a websocket behind them.
package middleware
