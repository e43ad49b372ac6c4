// Package integration provides cross-package integration tests for forge.
// These tests wire configuration, storage, the ledger, agents and the
// orchestrators the way the forge command does, and exercise behavior that
// spans process restarts.
//
// Build tag: integration
// Run with: go test -tags integration ./internal/integration/...
package integration
