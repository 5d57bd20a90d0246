package session

import (
	"sync"

	"github.com/google/uuid"

	"github.com/quorvus/datachat/memory"
)

// Store is a volatile process-wide session map. Each identifier owns exactly
// one TokenMemory; memories are never shared across identifiers. Sessions are
// created lazily on first reference and live until process exit; there is no
// whole-session eviction, so the map grows with distinct identifiers.
//
// GetOrCreate holds the store lock across lookup and insert, so concurrent
// first accesses to the same unknown identifier observe a single Memory
// (strict single-creation guarantee).
type Store struct {
	mu       sync.Mutex
	sessions map[string]*memory.TokenMemory
	memOpts  []func(o *memory.Options)
}

// NewStore constructs an empty store. The memory option functions are applied
// to every memory the store allocates.
func NewStore(memOpts ...func(o *memory.Options)) *Store {
	return &Store{sessions: make(map[string]*memory.TokenMemory), memOpts: memOpts}
}

// GetOrCreate resolves a session identifier to its memory. An empty id yields
// a freshly generated identifier bound to a new empty memory; an unknown id
// is bound to a new empty memory; a known id returns its existing memory
// unchanged.
func (s *Store) GetOrCreate(id string) (string, *memory.TokenMemory) {
	if id == "" {
		id = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	mem, ok := s.sessions[id]
	if !ok {
		mem = memory.NewTokenMemory(s.memOpts...)
		s.sessions[id] = mem
	}
	return id, mem
}

// Len returns the number of sessions currently held.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
