package sisapi

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/quadra-edu/sisapi/internal/constants"
)

// KeyPath is a composite (server, account) identifier into a KeyStore,
// e.g. ["sis", "live", "demoschool"].
type KeyPath []string

func (p KeyPath) String() string {
	return MakeID(p...)
}

// KeyStore holds API keys by composite path. Implementations must be
// safe for concurrent use; the client writes a key back to the store
// after every verified-successful request.
type KeyStore interface {
	Get(path KeyPath) (string, bool)
	Set(path KeyPath, apiKey string) error
}

// MemoryKeyStore is an in-memory KeyStore. Keys live for the process
// lifetime only.
type MemoryKeyStore struct {
	mu   sync.RWMutex
	keys map[string]string
}

// NewMemoryKeyStore creates an empty in-memory key store.
func NewMemoryKeyStore() *MemoryKeyStore {
	return &MemoryKeyStore{keys: make(map[string]string)}
}

func (s *MemoryKeyStore) Get(path KeyPath) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key, ok := s.keys[path.String()]

	return key, ok
}

func (s *MemoryKeyStore) Set(path KeyPath, apiKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.keys[path.String()] = apiKey

	return nil
}

// FileKeyStore persists keys to a YAML file so they survive process
// restarts. The file maps composite path strings to keys.
type FileKeyStore struct {
	mu   sync.Mutex
	path string
	keys map[string]string
}

// NewFileKeyStore opens (or creates on first Set) a file-backed key
// store at path.
func NewFileKeyStore(path string) (*FileKeyStore, error) {
	store := &FileKeyStore{
		path: path,
		keys: make(map[string]string),
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return store, nil
	}

	if err != nil {
		return nil, fmt.Errorf("reading key store: %w", err)
	}

	err = yaml.Unmarshal(data, &store.keys)
	if err != nil {
		return nil, fmt.Errorf("parsing key store: %w", err)
	}

	if store.keys == nil {
		store.keys = make(map[string]string)
	}

	return store, nil
}

func (s *FileKeyStore) Get(path KeyPath) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, ok := s.keys[path.String()]

	return key, ok
}

func (s *FileKeyStore) Set(path KeyPath, apiKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.keys[path.String()]; ok && existing == apiKey {
		return nil
	}

	s.keys[path.String()] = apiKey

	return s.persist()
}

func (s *FileKeyStore) persist() error {
	data, err := yaml.Marshal(s.keys)
	if err != nil {
		return fmt.Errorf("encoding key store: %w", err)
	}

	dir := filepath.Dir(s.path)

	err = os.MkdirAll(dir, constants.KeyStoreDirPerm)
	if err != nil {
		return fmt.Errorf("creating key store directory: %w", err)
	}

	err = os.WriteFile(s.path, data, constants.KeyStoreFilePerm)
	if err != nil {
		return fmt.Errorf("writing key store: %w", err)
	}

	return nil
}
