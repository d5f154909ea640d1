package storage

import "sync"

// MemoryStore keeps everything in process memory. Used by tests and when
// no durable store is available.
type MemoryStore struct {
	mu     sync.RWMutex
	data   map[string]string
	failAt map[string]error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]string)}
}

func (s *MemoryStore) Init() error  { return nil }
func (s *MemoryStore) Load() error  { return nil }
func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) GetConfigPath() string { return MemoryPath }

// FailWith makes every Put and Delete on key return err until cleared with nil.
func (s *MemoryStore) FailWith(key string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAt == nil {
		s.failAt = make(map[string]error)
	}
	if err == nil {
		delete(s.failAt, key)
		return
	}
	s.failAt[key] = err
}

func (s *MemoryStore) Get(key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (s *MemoryStore) Put(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failAt[key]; err != nil {
		return err
	}
	s.data[key] = value
	return nil
}

func (s *MemoryStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failAt[key]; err != nil {
		return err
	}
	delete(s.data, key)
	return nil
}
