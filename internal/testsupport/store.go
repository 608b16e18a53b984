package testsupport

import (
	"testing"

	"engram/internal/store"
)

// MustOpenStore opens a store.Store backed by a fresh temp directory and
// registers cleanup to close it.
func MustOpenStore(t testing.TB) *store.Store {
	t.Helper()

	st, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}
