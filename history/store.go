package history

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/nvr-ai/filterbench/storage"
)

// KeyPrefix is prepended to the backend identifier to form the storage key.
const KeyPrefix = "benchmarkHistory."

// ContentType is the media type of ExportCSV output.
const ContentType = "text/csv; charset=utf-8"

// ErrEmpty is returned by ExportCSV when there is nothing to export.
var ErrEmpty = errors.New("history is empty")

// PersistenceError reports a failed read or write of the durable snapshot. It is logged,
// never returned to callers of Add or Clear.
type PersistenceError struct {
	Op  string
	Key string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("history %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Key returns the storage key of a backend's history.
func Key(backendID string) string {
	return KeyPrefix + backendID
}

// ExportFileName returns the suggested file name of a CSV export.
func ExportFileName(backendID string, now time.Time) string {
	return fmt.Sprintf("benchmark-%s-%d.csv", backendID, now.UnixMilli())
}

// Store is the ordered, append-only history of one backend. Every mutation writes the
// full snapshot. After the first persistence failure the store keeps working in memory
// only for the rest of the session.
type Store struct {
	mu       sync.RWMutex
	st       storage.Storage
	key      string
	logger   *slog.Logger
	entries  []Entry
	degraded bool
	lastErr  error
}

// Load reads the persisted history of backendID. A missing or unreadable snapshot gives
// an empty history.
//
// Arguments:
//   - ctx: Bounds the storage read.
//   - st: The durable store. Nil keeps the history in memory.
//   - backendID: The backend the history belongs to.
//   - logger: Receives persistence warnings. Nil discards them.
//
// Returns:
//   - *Store: The loaded history.
func Load(ctx context.Context, st storage.Storage, backendID string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Store{
		st:     st,
		key:    Key(backendID),
		logger: logger.With("history", backendID),
	}
	if st == nil {
		s.degraded = true
		return s
	}

	data, err := st.Get(ctx, s.key)
	switch {
	case errors.Is(err, storage.ErrNotFound):
	case err != nil:
		s.fail("load", err)
	default:
		var entries []Entry
		if err := json.Unmarshal(data, &entries); err != nil {
			s.logger.Warn("discarding corrupt history snapshot", "key", s.key, "error", err)
		} else {
			s.entries = entries
		}
	}
	return s
}

// fail records a persistence failure and switches to in-memory mode.
func (s *Store) fail(op string, err error) {
	perr := &PersistenceError{Op: op, Key: s.key, Err: err}
	s.lastErr = perr
	s.degraded = true
	s.logger.Warn("history persistence failed, continuing in memory", "error", perr)
}

// persist writes the current snapshot. Callers hold s.mu.
func (s *Store) persist(ctx context.Context) {
	if s.degraded {
		return
	}
	if len(s.entries) == 0 {
		if err := s.st.Delete(ctx, s.key); err != nil {
			s.fail("delete", err)
		}
		return
	}
	data, err := json.Marshal(s.entries)
	if err != nil {
		s.fail("encode", err)
		return
	}
	if err := s.st.Put(ctx, s.key, data); err != nil {
		s.fail("save", err)
	}
}

// Add appends e and persists the snapshot.
func (s *Store) Add(ctx context.Context, e Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
	s.persist(ctx)
}

// Clear removes every entry and the persisted snapshot.
func (s *Store) Clear(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
	s.persist(ctx)
}

// Len returns the number of entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Entries returns a copy of the history in insertion order.
func (s *Store) Entries() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.entries)
}

// Recent returns a copy of the history, most recent first.
func (s *Store) Recent() []Entry {
	out := s.Entries()
	slices.Reverse(out)
	return out
}

// Degraded reports whether the store stopped persisting.
func (s *Store) Degraded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.degraded
}

// Err returns the persistence failure that degraded the store, if any.
func (s *Store) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// ExportCSV renders the history as CSV in insertion order.
//
// Returns:
//   - string: Header line followed by one row per entry.
//   - error: ErrEmpty when there are no entries.
func (s *Store) ExportCSV() (string, error) {
	entries := s.Entries()
	if len(entries) == 0 {
		return "", ErrEmpty
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(Header()); err != nil {
		return "", errors.Wrap(err, "write csv header")
	}
	for _, e := range entries {
		if err := w.Write(e.Fields()); err != nil {
			return "", errors.Wrap(err, "write csv row")
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", errors.Wrap(err, "flush csv")
	}
	return buf.String(), nil
}
