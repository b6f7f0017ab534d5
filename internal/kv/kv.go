// Package kv defines the opaque string key-value store the tree snapshots into.
package kv

import (
	"fmt"
	"sync"
)

// Drivers accepted by Open.
const (
	DriverMemory   = "memory"
	DriverFile     = "file"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Store is a string key-value store. Get reports ok=false for absent keys;
// Remove of an absent key is not an error.
type Store interface {
	Get(key string) (value string, ok bool, err error)
	Set(key, value string) error
	Remove(key string) error
	Close() error
}

// Open returns the store for driver. location is a directory for the file
// driver, a database path for sqlite, and a DSN for postgres.
func Open(driver, location string) (Store, error) {
	switch driver {
	case DriverMemory:
		return NewMemory(), nil
	case DriverFile:
		return NewFS(location)
	case DriverSQLite:
		return OpenSQLite(location)
	case DriverPostgres:
		return OpenPostgres(location)
	default:
		return nil, fmt.Errorf("kv: unknown driver %q", driver)
	}
}

// Memory is an in-process Store.
type Memory struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string]string)}
}

func (m *Memory) Get(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *Memory) Set(key, value string) error {
	m.mu.Lock()
	m.data[key] = value
	m.mu.Unlock()
	return nil
}

func (m *Memory) Remove(key string) error {
	m.mu.Lock()
	delete(m.data, key)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Close() error { return nil }
