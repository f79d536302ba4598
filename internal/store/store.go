package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// ErrUnknownDriver is returned by Open for an unsupported backend name.
var ErrUnknownDriver = errors.New("store: unknown driver")

// Store persists the set of discovered repository identifiers.
// Implementations are append-only: an identifier is never deleted or rewritten.
type Store interface {
	// Load returns every identifier persisted so far.
	Load(ctx context.Context) (Set, error)
	// Save appends ids and returns only once they are durable.
	Save(ctx context.Context, ids []string) error
	Close() error
}

// Set is a set of repository identifiers ("owner/name").
type Set map[string]struct{}

// NewSet builds a Set from ids.
func NewSet(ids ...string) Set {
	s := make(Set, len(ids))
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

// Has reports whether id is in the set.
func (s Set) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Add inserts id and reports whether it was absent.
func (s Set) Add(id string) bool {
	if _, ok := s[id]; ok {
		return false
	}
	s[id] = struct{}{}
	return true
}

// Len returns the number of identifiers.
func (s Set) Len() int {
	return len(s)
}

// Sorted returns the identifiers in lexical order.
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Open returns the backend named by driver, rooted at path.
func Open(driver, path string) (Store, error) {
	switch driver {
	case "", "file":
		return NewFile(path), nil
	case "sqlite":
		return OpenSQLite(path)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
}
