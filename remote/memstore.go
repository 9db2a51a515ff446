package remote

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/tidemark/tidemark/series"
)

// MemStore is an in-process BlobStore: the reference implementation of
// the hook contract, used by tests and as a standalone backend for
// single-process setups. All operations are serialized by one mutex.
type MemStore struct {
	mu   sync.Mutex
	maps map[MapID]*memMap
}

type memMap struct {
	version   uint64
	chunks    map[int64][]byte
	chunkVers map[int64]uint64
	locks     map[int64]string
}

// NewMemStore constructs an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{maps: make(map[MapID]*memMap)}
}

func (s *MemStore) mapFor(id MapID) *memMap {
	m, ok := s.maps[id]
	if !ok {
		m = &memMap{
			chunks:    make(map[int64][]byte),
			chunkVers: make(map[int64]uint64),
			locks:     make(map[int64]string),
		}
		s.maps[id] = m
	}
	return m
}

func (s *MemStore) Keys(_ context.Context, id MapID, sinceVersion uint64) (uint64, map[int64]uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.mapFor(id)
	if m.version == sinceVersion {
		return m.version, nil, nil
	}
	out := make(map[int64]uint64, len(m.chunkVers))
	for ck, cv := range m.chunkVers {
		out[ck] = cv
	}
	return m.version, out, nil
}

func (s *MemStore) Get(_ context.Context, id MapID, chunkKey int64) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.mapFor(id)
	payload, ok := m.chunks[chunkKey]
	if !ok {
		return nil, ErrChunkNotFound
	}
	out := make([]byte, len(payload))
	copy(out, payload)
	return out, nil
}

func (s *MemStore) Put(_ context.Context, id MapID, chunkKey int64, payload []byte) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.mapFor(id)
	cp := make([]byte, len(payload))
	copy(cp, payload)
	m.version++
	m.chunks[chunkKey] = cp
	m.chunkVers[chunkKey] = m.version
	return m.version, nil
}

func (s *MemStore) Del(_ context.Context, id MapID, chunkKey int64, dir series.Lookup) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.mapFor(id)

	matches := func(ck int64) bool {
		switch dir {
		case series.EQ:
			return ck == chunkKey
		case series.LT:
			return ck < chunkKey
		case series.LE:
			return ck <= chunkKey
		case series.GT:
			return ck > chunkKey
		case series.GE:
			return ck >= chunkKey
		}
		return false
	}

	removed := false
	for ck := range m.chunks {
		if matches(ck) {
			delete(m.chunks, ck)
			delete(m.chunkVers, ck)
			removed = true
		}
	}
	if removed {
		m.version++
	}
	return m.version, nil
}

func (s *MemStore) Lock(_ context.Context, id MapID, chunkKey int64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.mapFor(id)
	if m.locks[chunkKey] != "" {
		return "", ErrLockHeld
	}
	token := uuid.NewString()
	m.locks[chunkKey] = token
	return token, nil
}

func (s *MemStore) Unlock(_ context.Context, id MapID, chunkKey int64, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.mapFor(id)
	if m.locks[chunkKey] != token {
		return ErrLockLost
	}
	delete(m.locks, chunkKey)
	return nil
}

var _ BlobStore = (*MemStore)(nil)
