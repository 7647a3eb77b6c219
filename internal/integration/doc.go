// Package integration provides cross-package integration tests for Loom.
// These tests wire the full stack: coordinator, worker pool, tool router,
// remote endpoint manager, and the SQLite store, with only the model
// provider and endpoint transports faked.
//
// Build tag: integration
// Run with: go test -tags integration ./internal/integration/...
package integration
