package kvstore

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

const (
	DriverMemory   = "memory"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Store is the key-value blob persistence boundary used by the catalog.
type Store interface {
	// Load returns the value stored at key; found is false when the key was never written.
	Load(ctx context.Context, key string) (value string, found bool, err error)
	Save(ctx context.Context, key, value string) error
}

// Pinger exposes the readiness check surface of a backend.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Memory keeps blobs in process memory.
type Memory struct {
	mu     sync.RWMutex
	values map[string]string
}

var _ Store = (*Memory)(nil)

// NewMemory builds an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{values: map[string]string{}}
}

// Load implements Store.
func (m *Memory) Load(ctx context.Context, key string) (string, bool, error) {
	if err := validateKey(key); err != nil {
		return "", false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.values[key]
	return value, ok, nil
}

// Save implements Store.
func (m *Memory) Save(ctx context.Context, key, value string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.values == nil {
		m.values = map[string]string{}
	}
	m.values[key] = value
	return nil
}

// Ping implements Pinger.
func (m *Memory) Ping(context.Context) error {
	return nil
}

func validateKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("kvstore: key is required")
	}
	return nil
}
