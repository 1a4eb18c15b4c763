// Package registry maps host display names to their session endpoints. It is
// the single authoritative copy of the name table; the discovery service only
// reads it.
package registry

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrHostTaken is returned when a username is already registered.
	// Duplicate registrations are rejected rather than reassigned so an
	// active session name cannot be hijacked.
	ErrHostTaken = errors.New("host name already registered")
	// ErrHostNotFound is returned when looking up an unregistered username.
	ErrHostNotFound = errors.New("host not found")
)

// Registration is one host entry: where a named session is listening.
type Registration struct {
	Username string `json:"username"`
	Address  string `json:"address"`
	Port     int    `json:"port"`
}

// Registry is the host name table. Implementations are safe for concurrent
// use; registrations race with client join attempts.
type Registry interface {
	// Register claims a username. A zero port requests the default session
	// port; the assigned port is returned.
	Register(ctx context.Context, username, address string, port int) (int, error)
	Lookup(ctx context.Context, username string) (Registration, error)
	Unregister(ctx context.Context, username string) error
	// Hosts lists the currently registered host names.
	Hosts(ctx context.Context) ([]string, error)
}

// Memory is the in-process registry used when no Redis address is configured.
type Memory struct {
	mu          sync.RWMutex
	hosts       map[string]Registration
	defaultPort int
}

// NewMemory creates an empty in-memory registry.
func NewMemory(defaultPort int) *Memory {
	return &Memory{
		hosts:       make(map[string]Registration),
		defaultPort: defaultPort,
	}
}

// Register claims a username, rejecting duplicates.
func (m *Memory) Register(ctx context.Context, username, address string, port int) (int, error) {
	if port == 0 {
		port = m.defaultPort
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.hosts[username]; exists {
		return 0, ErrHostTaken
	}
	m.hosts[username] = Registration{Username: username, Address: address, Port: port}
	return port, nil
}

// Lookup resolves a host username to its session endpoint.
func (m *Memory) Lookup(ctx context.Context, username string) (Registration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	reg, ok := m.hosts[username]
	if !ok {
		return Registration{}, ErrHostNotFound
	}
	return reg, nil
}

// Unregister removes a host entry. Removing an absent entry is not an error.
func (m *Memory) Unregister(ctx context.Context, username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.hosts, username)
	return nil
}

// Hosts lists registered host names.
func (m *Memory) Hosts(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.hosts))
	for name := range m.hosts {
		names = append(names, name)
	}
	return names, nil
}
