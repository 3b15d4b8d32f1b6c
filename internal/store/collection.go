package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/hackgods/clinic-scheduling/internal/apperr"
)

// Codec maps an entity to and from one flat record.
type Codec[T any] interface {
	Header() []string
	Encode(v T) []string
	Decode(fields []string) (T, error)
}

// Collection is one persisted entity collection. Update runs
// load -> mutate -> save as a single critical section.
type Collection[T any] struct {
	name    string
	backend Backend
	codec   Codec[T]
	locker  Locker

	mu sync.Mutex
}

type Option func(*options)

type options struct {
	locker Locker
}

// WithLocker adds a cross-process lock around every Update.
func WithLocker(l Locker) Option {
	return func(o *options) { o.locker = l }
}

func NewCollection[T any](name string, backend Backend, codec Codec[T], opts ...Option) *Collection[T] {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return &Collection[T]{
		name:    name,
		backend: backend,
		codec:   codec,
		locker:  o.locker,
	}
}

func (c *Collection[T]) Name() string { return c.name }

// Load returns the full collection in stored order.
func (c *Collection[T]) Load(ctx context.Context) ([]T, error) {
	rows, err := c.backend.Load(ctx, c.name)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w: %w", c.name, apperr.ErrPersistence, err)
	}

	items := make([]T, 0, len(rows))
	for i, row := range rows {
		v, err := c.codec.Decode(row)
		if err != nil {
			return nil, fmt.Errorf("decode %s row %d: %w: %w", c.name, i+1, apperr.ErrPersistence, err)
		}
		items = append(items, v)
	}
	return items, nil
}

// Update loads the collection, hands it to fn and saves what fn returns.
// Nothing is written when fn fails.
func (c *Collection[T]) Update(ctx context.Context, fn func(items []T) ([]T, error)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	run := func(ctx context.Context) error {
		items, err := c.Load(ctx)
		if err != nil {
			return err
		}

		next, err := fn(items)
		if err != nil {
			return err
		}

		return c.save(ctx, next)
	}

	if c.locker == nil {
		return run(ctx)
	}
	return c.locker.WithLock(ctx, "collection:"+c.name, run)
}

func (c *Collection[T]) save(ctx context.Context, items []T) error {
	rows := make([][]string, len(items))
	for i, v := range items {
		rows[i] = c.codec.Encode(v)
	}
	if err := c.backend.Save(ctx, c.name, c.codec.Header(), rows); err != nil {
		return fmt.Errorf("save %s: %w: %w", c.name, apperr.ErrPersistence, err)
	}
	return nil
}

// ExpectFields checks a decoded record's width.
func ExpectFields(fields []string, n int) error {
	if len(fields) != n {
		return fmt.Errorf("expected %d fields, got %d", n, len(fields))
	}
	return nil
}
