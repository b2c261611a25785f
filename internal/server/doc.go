// Package server exposes the bridge to invoking runtimes: an HTTP router with health
// and metrics endpoints, and an adapter for the function runtime.
package server
