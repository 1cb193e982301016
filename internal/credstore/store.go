// Package credstore persists the client's credential between runs.
//
// A Store is a small string key/value map. The session layer keeps exactly one
// entry in it, TokenKey; its absence is the only signal for "never logged in".
package credstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// TokenKey is the name under which the bearer token is stored.
const TokenKey = "token"

// ErrNotFound is returned by Get when the key has no value.
var ErrNotFound = errors.New("credstore: not found")

// Store is a persistent key/value map.
type Store interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)
	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error
	// Remove deletes key. Removing a missing key is not an error.
	Remove(ctx context.Context, key string) error
}

// Kind names a Store backend.
type Kind string

const (
	KindFile   Kind = "file"
	KindSQLite Kind = "sqlite"
	KindMemory Kind = "memory"
)

// Open returns the backend named by kind. An empty path selects the default
// location for that backend. The returned close func is never nil.
func Open(kind Kind, path string) (Store, func() error, error) {
	noop := func() error { return nil }
	switch kind {
	case KindFile, "":
		if path == "" {
			path = DefaultPath("credentials.json")
		}
		return NewFileStore(path), noop, nil
	case KindSQLite:
		if path == "" {
			path = DefaultPath("credentials.db")
		}
		s, err := OpenSQLite(path)
		if err != nil {
			return nil, noop, err
		}
		return s, s.Close, nil
	case KindMemory:
		return NewMemoryStore(), noop, nil
	default:
		return nil, noop, fmt.Errorf("credstore: unknown backend %q", kind)
	}
}

// DefaultPath returns name inside the per-user config directory:
// $XDG_CONFIG_HOME/mindvswild, falling back to ~/.config/mindvswild.
func DefaultPath(name string) string {
	configDirectory := os.Getenv("XDG_CONFIG_HOME")
	if configDirectory == "" {
		homeDirectory, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(os.TempDir(), "mindvswild-"+name)
		}
		configDirectory = filepath.Join(homeDirectory, ".config")
	}
	return filepath.Join(configDirectory, "mindvswild", name)
}
