//go:build !sqlite

package storage

import "dilemma/internal/game"

// DefaultStoreKind is the backend used when none is requested.
func DefaultStoreKind() string {
	return string(BackendMemory)
}

func newSQLiteStore(string) (Store, error) {
	return nil, game.ConfigErrorf("sqlite run store unavailable in this build; rebuild with -tags sqlite")
}
