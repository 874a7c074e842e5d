// Package history keeps a bounded, persisted record of fills, newest first.
package history

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// DefaultCapacity is the ring size used when none is configured.
const DefaultCapacity = 200

// Record is an immutable fill entry.
type Record struct {
	OrderID   string    `json:"order_id,omitempty"`
	Symbol    string    `json:"symbol"`
	Side      string    `json:"side"`
	Qty       float64   `json:"qty"`
	Price     float64   `json:"price"`
	Mode      string    `json:"mode"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"ts"`
}

// Persister stores and restores the whole ring as one document.
type Persister interface {
	Load() ([]Record, error)
	Save(records []Record) error
}

// Store is a fixed-capacity ring of records. Not safe for concurrent use.
type Store struct {
	records   []Record
	capacity  int
	persister Persister
	now       func() time.Time
	log       zerolog.Logger
}

// NewStore restores prior state from persister. A missing or unreadable document yields an empty history.
func NewStore(persister Persister, capacity int, log zerolog.Logger) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	s := &Store{
		records:   make([]Record, 0, capacity),
		capacity:  capacity,
		persister: persister,
		now:       func() time.Time { return time.Now().UTC() },
		log:       log.With().Str("component", "history").Logger(),
	}
	if persister == nil {
		return s
	}
	loaded, err := persister.Load()
	if err != nil {
		s.log.Warn().Err(err).Msg("history load failed, starting empty")
		return s
	}
	if len(loaded) > capacity {
		loaded = loaded[:capacity]
	}
	s.records = append(s.records, loaded...)
	s.log.Debug().Int("orders", len(s.records)).Msg("history restored")
	return s
}

// Add stamps and prepends a record, evicting the oldest beyond capacity, then persists the ring.
func (s *Store) Add(symbol, side string, qty, price float64, mode, status, orderID string) (Record, error) {
	rec := Record{
		OrderID:   orderID,
		Symbol:    symbol,
		Side:      side,
		Qty:       qty,
		Price:     price,
		Mode:      mode,
		Status:    status,
		Timestamp: s.now(),
	}
	if len(s.records) < s.capacity {
		s.records = append(s.records, Record{})
	}
	copy(s.records[1:], s.records[:len(s.records)-1])
	s.records[0] = rec

	if s.persister == nil {
		return rec, nil
	}
	if err := s.persister.Save(s.records); err != nil {
		return rec, fmt.Errorf("persist history: %w", err)
	}
	return rec, nil
}

// List returns up to limit records, newest first. A non-positive limit returns all of them.
func (s *Store) List(limit int) []Record {
	if limit <= 0 || limit > len(s.records) {
		limit = len(s.records)
	}
	out := make([]Record, limit)
	copy(out, s.records[:limit])
	return out
}

// Len reports the number of retained records.
func (s *Store) Len() int { return len(s.records) }
