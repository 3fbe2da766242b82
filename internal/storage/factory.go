package storage

import (
	"strings"

	"dilemma/internal/game"
)

// Backend names a Store implementation selectable from config or the CLI.
type Backend string

const (
	BackendMemory Backend = "memory"
	BackendSQLite Backend = "sqlite"
)

// NewStore opens the run store named by kind. An empty kind selects the
// in-memory store; sqlite needs a database path and a build with -tags sqlite.
func NewStore(kind, sqlitePath string) (Store, error) {
	switch Backend(strings.ToLower(strings.TrimSpace(kind))) {
	case "", BackendMemory:
		return NewMemoryStore(), nil
	case BackendSQLite:
		if strings.TrimSpace(sqlitePath) == "" {
			return nil, game.ConfigErrorf("sqlite run store needs a database path")
		}
		return newSQLiteStore(sqlitePath)
	default:
		return nil, game.ConfigErrorf("unknown run store backend %q (want %s or %s)", kind, BackendMemory, BackendSQLite)
	}
}

// CloseIfSupported releases stores that hold resources, such as an open
// database handle.
func CloseIfSupported(store Store) error {
	if closer, ok := store.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}
