package memory

import (
	"context"
	"sync"

	"github.com/TheusHen/idms/idms/directory"
)

// Store is an in-memory key directory.
// It is safe for concurrent use, so several session guards may share one instance.
type Store[ID comparable] struct {
	mu    sync.RWMutex
	peers map[ID]directory.PeerRecord
}

func New[ID comparable]() *Store[ID] {
	return &Store[ID]{peers: map[ID]directory.PeerRecord{}}
}

func (s *Store[ID]) SetKey(_ context.Context, id ID, rec directory.PeerRecord) (directory.PeerRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.peers[id]
	s.peers[id] = rec.Clone()
	return prev, ok, nil
}

func (s *Store[ID]) GetKey(_ context.Context, id ID) (directory.PeerRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.peers[id]
	if !ok {
		return directory.PeerRecord{}, false, nil
	}
	return rec.Clone(), true, nil
}

func (s *Store[ID]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.peers)
}
