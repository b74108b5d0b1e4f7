package backend

import (
	"encoding/json"
	"os"
	"strconv"
	"sync"
)

// Store is the durable key-value surface used for play-state resume and
// cache snapshots. Keys are grouped so unrelated preferences don't collide.
type Store interface {
	GetString(group, key string) (string, bool)
	SetString(group, key, value string) error
	GetInt(group, key string) (int, bool)
	SetInt(group, key string, value int) error
	Delete(group, key string) error
}

// FileStore persists the key-value pairs as a JSON file, written out on
// every mutation.
type FileStore struct {
	mu     sync.Mutex
	path   string
	groups map[string]map[string]string
}

func NewFileStore(path string) (*FileStore, error) {
	s := &FileStore{
		path:   path,
		groups: make(map[string]map[string]string),
	}
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(b, &s.groups); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileStore) GetString(group, key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.groups[group][key]
	return v, ok
}

func (s *FileStore) SetString(group, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.groups[group] == nil {
		s.groups[group] = make(map[string]string)
	}
	s.groups[group][key] = value
	return s.write()
}

func (s *FileStore) GetInt(group, key string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.groups[group][key]
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func (s *FileStore) SetInt(group, key string, value int) error {
	return s.SetString(group, key, strconv.Itoa(value))
}

func (s *FileStore) Delete(group, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if g, ok := s.groups[group]; ok {
		delete(g, key)
	}
	return s.write()
}

// caller must hold s.mu
func (s *FileStore) write() error {
	b, err := json.Marshal(s.groups)
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, b, 0644)
}

// MemoryStore is a Store kept entirely in memory, used when no durable
// path is configured and by tests.
type MemoryStore struct {
	mu     sync.Mutex
	groups map[string]map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{groups: make(map[string]map[string]string)}
}

func (s *MemoryStore) GetString(group, key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.groups[group][key]
	return v, ok
}

func (s *MemoryStore) SetString(group, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.groups[group] == nil {
		s.groups[group] = make(map[string]string)
	}
	s.groups[group][key] = value
	return nil
}

func (s *MemoryStore) GetInt(group, key string) (int, bool) {
	v, ok := s.GetString(group, key)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func (s *MemoryStore) SetInt(group, key string, value int) error {
	return s.SetString(group, key, strconv.Itoa(value))
}

func (s *MemoryStore) Delete(group, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if g, ok := s.groups[group]; ok {
		delete(g, key)
	}
	return nil
}
