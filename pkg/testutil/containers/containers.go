//go:build integration

// Package containers starts throwaway databases for integration tests.
package containers

import (
	"sync"
	"testing"
)

var (
	sharedMu sync.Mutex
	sharedPG *PostgresContainer
)

// Postgres returns the container shared by every suite in the test binary,
// starting it on first use. Suites isolate themselves with TruncateAll.
func Postgres(t *testing.T) *PostgresContainer {
	t.Helper()
	sharedMu.Lock()
	defer sharedMu.Unlock()
	if sharedPG == nil {
		sharedPG = NewPostgresContainer(t)
	}
	return sharedPG
}
