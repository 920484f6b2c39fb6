package history

import (
	"sync"

	"github.com/postmux/postmux/model"
)

// Store is the durable record of terminated runs. A run is appended exactly
// once, when it leaves the running state, and never updated afterward.
type Store interface {
	Append(run *model.Run) error
	List() ([]model.Run, error)
}

// InMemoryStore keeps run records in process memory. Default store for
// tests and single node development.
type InMemoryStore struct {
	m    sync.RWMutex
	runs []model.Run
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(run *model.Run) error {
	s.m.Lock()
	defer s.m.Unlock()
	s.runs = append(s.runs, *run)
	return nil
}

// List returns terminated runs, most recently started first.
func (s *InMemoryStore) List() ([]model.Run, error) {
	s.m.RLock()
	defer s.m.RUnlock()

	out := make([]model.Run, len(s.runs))
	for idx := range s.runs {
		out[len(s.runs)-1-idx] = s.runs[idx]
	}
	return out, nil
}
