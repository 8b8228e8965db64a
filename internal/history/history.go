// Package history keeps a bounded, in-memory record of answered requests.
//
// Entries get monotonically increasing ids that survive eviction: evicting
// old entries never causes an id to be reused, so clients can cache entries
// by id safely. Only finalized answers are recorded; a request that failed
// hard leaves no history behind.
package history

import (
	"sync"
	"time"
)

// Entry is one recorded interaction.
type Entry struct {
	ID        uint64         `json:"id"`
	Type      string         `json:"type"`
	Title     string         `json:"title"`
	Input     string         `json:"input"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

// Store is a bounded newest-first history of entries.
type Store struct {
	mu         sync.RWMutex
	entries    []Entry
	nextID     uint64
	maxEntries int
}

// DefaultMaxEntries is the retention bound used when none is configured.
const DefaultMaxEntries = 50

// NewStore creates a history store retaining at most maxEntries entries.
func NewStore(maxEntries int) *Store {
	if maxEntries < 1 {
		maxEntries = DefaultMaxEntries
	}
	return &Store{nextID: 1, maxEntries: maxEntries}
}

// Append records an entry, assigning its id and timestamp, and returns the
// stored entry. The oldest entry is evicted when the store is full.
func (s *Store) Append(entryType, input string, data map[string]any) Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := Entry{
		ID:        s.nextID,
		Type:      entryType,
		Title:     MakeTitle(entryType, input),
		Input:     input,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
	s.nextID++

	s.entries = append([]Entry{entry}, s.entries...)
	if len(s.entries) > s.maxEntries {
		s.entries = s.entries[:s.maxEntries]
	}
	return entry
}

// Recent returns up to limit entries, newest first. A non-positive limit
// returns all retained entries.
func (s *Store) Recent(limit int) []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.entries)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]Entry, n)
	copy(out, s.entries[:n])
	return out
}

// Get returns the entry with the given id.
func (s *Store) Get(id uint64) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.entries {
		if e.ID == id {
			return e, true
		}
	}
	return Entry{}, false
}

// Len returns the number of retained entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Entry types recorded by the orchestrator.
const (
	TypeTrends = "trends"
	TypeChat   = "chat"
)

const maxTitleLen = 60

// MakeTitle derives a display title from the entry type and the raw input.
// Long inputs are truncated to fit maxTitleLen including the ellipsis.
func MakeTitle(entryType, input string) string {
	var prefix string
	switch entryType {
	case TypeTrends:
		prefix = "Trends: "
	case TypeChat:
		prefix = "Chat: "
	}

	title := prefix + input
	if len(title) > maxTitleLen {
		title = title[:maxTitleLen-3] + "..."
	}
	return title
}
