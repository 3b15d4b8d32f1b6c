// Package store persists entity collections as ordered flat records.
//
// Every collection is loaded and saved whole. A Collection serialises
// read-modify-write cycles behind a mutex (and, when configured, a
// distributed lock) and each Backend guarantees a save is observed either
// completely or not at all.
package store

import "context"

// Backend loads and replaces whole collections of flat records. Rows never
// include the header.
type Backend interface {
	Load(ctx context.Context, collection string) ([][]string, error)
	Save(ctx context.Context, collection string, header []string, rows [][]string) error
}

// Locker guards a critical section across processes sharing one backend.
type Locker interface {
	WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

func cloneRows(rows [][]string) [][]string {
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = append([]string(nil), r...)
	}
	return out
}
