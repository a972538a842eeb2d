// Package metadata persists user tags and notes per event in BadgerDB.
//
// Keys are "event:<event id>" where the event id is the path of the event's
// first segment. Values are JSON-encoded Annotations.
package metadata

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
)

const keyPrefix = "event:"

// ErrNotFound is returned when an event has no stored annotation.
var ErrNotFound = errors.New("annotation not found")

// Annotation is the user-owned metadata carried alongside an event.
type Annotation struct {
	Tags      []string  `json:"tags,omitempty"`
	Notes     string    `json:"notes,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Empty reports whether the annotation carries no tags or notes.
func (a Annotation) Empty() bool {
	return len(a.Tags) == 0 && strings.TrimSpace(a.Notes) == ""
}

// Store reads and writes annotations.
type Store struct {
	db     *badger.DB
	ownsDB bool
}

// Open opens (or creates) a store at dir. An empty dir opens an in-memory store.
func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open metadata store: %w", err)
	}
	return &Store{db: db, ownsDB: true}, nil
}

// NewStore wraps an already open database. Close does not close db.
func NewStore(db *badger.DB) *Store {
	return &Store{db: db}
}

// Close releases the database if the store opened it.
func (s *Store) Close() error {
	if !s.ownsDB {
		return nil
	}
	return s.db.Close()
}

func key(id string) []byte {
	return []byte(keyPrefix + id)
}

// Get returns the annotation for an event, or ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (Annotation, error) {
	if err := ctx.Err(); err != nil {
		return Annotation{}, err
	}

	var a Annotation
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &a)
		})
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Annotation{}, err
		}
		return Annotation{}, fmt.Errorf("load annotation %s: %w", id, err)
	}
	return a, nil
}

// Put stores an annotation, normalizing tags. An empty annotation deletes the key.
func (s *Store) Put(ctx context.Context, id string, a Annotation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if id == "" {
		return fmt.Errorf("event id cannot be empty")
	}

	a.Tags = NormalizeTags(a.Tags)
	if a.Empty() {
		return s.Delete(ctx, id)
	}
	a.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal annotation: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key(id), data)
	})
}

// Delete removes an annotation. Deleting a missing key is not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete(key(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return err
	})
}

// Update applies fn to the current annotation (zero value when absent) and stores the result.
func (s *Store) Update(ctx context.Context, id string, fn func(*Annotation)) (Annotation, error) {
	a, err := s.Get(ctx, id)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return Annotation{}, err
	}
	fn(&a)
	if err := s.Put(ctx, id, a); err != nil {
		return Annotation{}, err
	}
	a.Tags = NormalizeTags(a.Tags)
	return a, nil
}

// All returns every stored annotation keyed by event id.
func (s *Store) All(ctx context.Context) (map[string]Annotation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make(map[string]Annotation)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			id := strings.TrimPrefix(string(item.Key()), keyPrefix)
			var a Annotation
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &a)
			}); err != nil {
				return fmt.Errorf("decode %s: %w", id, err)
			}
			out[id] = a
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list annotations: %w", err)
	}
	return out, nil
}

// NormalizeTags trims, drops empties, dedupes and sorts tags.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	var out []string
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
