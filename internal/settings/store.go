package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"
)

// DefaultPollInterval bounds how long a write made through another Store
// sharing the same backend takes to reach this Store's subscribers.
const DefaultPollInterval = 100 * time.Millisecond

// Change is delivered to subscribers. Value is the value now in effect,
// the default if the key was removed.
type Change struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// Store is a typed, observable view over a Backend. Writes through Set are
// visible to Get and to local subscribers immediately; writes made through
// other Stores on the same backend are picked up by Watch within one poll
// interval.
type Store struct {
	schema   *Schema
	backend  Backend
	interval time.Duration

	// writeMu orders local writes against Poll so a write is never seen
	// both as a local change and as a remote one.
	writeMu sync.Mutex

	mu      sync.Mutex
	seen    map[string]string
	subs    map[int]func(Change)
	nextSub int
}

// NewStore creates a Store over backend, recording what is persisted now as
// the baseline for change detection.
func NewStore(ctx context.Context, backend Backend, pollInterval time.Duration) (*Store, error) {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	snap, err := backend.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading settings: %w", err)
	}
	return &Store{
		schema:   DefaultSchema(),
		backend:  backend,
		interval: pollInterval,
		seen:     snap,
		subs:     make(map[int]func(Change)),
	}, nil
}

// Schema returns the key schema.
func (s *Store) Schema() *Schema { return s.schema }

// Get returns the value of key, or its default when nothing valid is stored.
func (s *Store) Get(ctx context.Context, key string) (any, error) {
	f, ok := s.schema.Field(key)
	if !ok {
		return nil, &InvalidValueError{Key: key, Err: ErrUnknownKey}
	}
	raw, ok, err := s.backend.Load(ctx, key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return f.Default, nil
	}
	return decodeStored(f, raw), nil
}

// decodeStored falls back to the default when the stored text is not valid,
// for example after a schema change.
func decodeStored(f Field, raw string) any {
	v, err := f.Decode(json.RawMessage(raw))
	if err != nil {
		log.Printf("settings: ignoring stored %s: %v", f.Key, err)
		return f.Default
	}
	return v
}

// All returns every key with its effective value.
func (s *Store) All(ctx context.Context) (map[string]any, error) {
	snap, err := s.backend.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, len(s.schema.order))
	for _, k := range s.schema.order {
		f := s.schema.fields[k]
		if raw, ok := snap[k]; ok {
			out[k] = decodeStored(f, raw)
		} else {
			out[k] = f.Default
		}
	}
	return out, nil
}

// Bool returns a boolean setting.
func (s *Store) Bool(ctx context.Context, key string) (bool, error) { return getAs[bool](ctx, s, key) }

// Point returns a position setting.
func (s *Store) Point(ctx context.Context, key string) (Point, error) {
	return getAs[Point](ctx, s, key)
}

// Int returns a whole-number setting.
func (s *Store) Int(ctx context.Context, key string) (int, error) { return getAs[int](ctx, s, key) }

// String returns a string setting.
func (s *Store) String(ctx context.Context, key string) (string, error) {
	return getAs[string](ctx, s, key)
}

func getAs[T any](ctx context.Context, s *Store, key string) (T, error) {
	var zero T
	v, err := s.Get(ctx, key)
	if err != nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("setting %s is %T, not %T", key, v, zero)
	}
	return t, nil
}

// Set validates value against the schema and persists its canonical form.
// Invalid values return an error matching ErrInvalidValue and leave the
// stored value untouched. value may be a Go value or a json.RawMessage.
func (s *Store) Set(ctx context.Context, key string, value any) error {
	f, ok := s.schema.Field(key)
	if !ok {
		return &InvalidValueError{Key: key, Err: ErrUnknownKey}
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return &InvalidValueError{Key: key, Err: err}
	}
	v, err := f.Decode(raw)
	if err != nil {
		return &InvalidValueError{Key: key, Err: err}
	}
	canonical, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}

	s.writeMu.Lock()
	if err := s.backend.Save(ctx, key, string(canonical)); err != nil {
		s.writeMu.Unlock()
		return err
	}
	s.mu.Lock()
	prev, had := s.seen[key]
	s.seen[key] = string(canonical)
	s.mu.Unlock()
	s.writeMu.Unlock()

	if !had || prev != string(canonical) {
		s.notify([]Change{{Key: key, Value: v}})
	}
	return nil
}

// Reset deletes keys so that they fall back to their defaults, and notifies
// subscribers right away. With no keys it resets everything.
func (s *Store) Reset(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		keys = s.schema.Keys()
	}
	for _, k := range keys {
		if _, ok := s.schema.Field(k); !ok {
			return &InvalidValueError{Key: k, Err: ErrUnknownKey}
		}
	}

	s.writeMu.Lock()
	if err := s.backend.Delete(ctx, keys...); err != nil {
		s.writeMu.Unlock()
		return err
	}
	changes := make([]Change, 0, len(keys))
	s.mu.Lock()
	for _, k := range keys {
		delete(s.seen, k)
		changes = append(changes, Change{Key: k, Value: s.schema.fields[k].Default})
	}
	s.mu.Unlock()
	s.writeMu.Unlock()

	s.notify(changes)
	return nil
}

// Subscribe registers fn for every change. Callbacks run on the goroutine
// that made or detected the change and must not block. The returned func
// unregisters fn.
func (s *Store) Subscribe(fn func(Change)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

func (s *Store) notify(changes []Change) {
	if len(changes) == 0 {
		return
	}
	s.mu.Lock()
	subs := make([]func(Change), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, c := range changes {
		for _, fn := range subs {
			fn(c)
		}
	}
}

// Poll compares the backend with the last values this Store saw and
// notifies subscribers of every difference.
func (s *Store) Poll(ctx context.Context) error {
	s.writeMu.Lock()
	snap, err := s.backend.Snapshot(ctx)
	if err != nil {
		s.writeMu.Unlock()
		return err
	}

	var changes []Change
	s.mu.Lock()
	for _, k := range s.schema.order {
		f := s.schema.fields[k]
		now, has := snap[k]
		prev, had := s.seen[k]
		if has == had && now == prev {
			continue
		}
		if has {
			s.seen[k] = now
			changes = append(changes, Change{Key: k, Value: decodeStored(f, now)})
		} else {
			delete(s.seen, k)
			changes = append(changes, Change{Key: k, Value: f.Default})
		}
	}
	s.mu.Unlock()
	s.writeMu.Unlock()

	s.notify(changes)
	return nil
}

// Watch polls until ctx is cancelled.
func (s *Store) Watch(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Poll(ctx); err != nil && ctx.Err() == nil {
				log.Printf("settings: poll: %v", err)
			}
		}
	}
}
