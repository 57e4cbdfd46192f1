package auth

import (
	"sync"
)

// MockStore implements TokenStore in memory for tests
type MockStore struct {
	creds map[string]*Credential
	mu    sync.RWMutex

	// Error injection for testing
	StoreError    error
	RetrieveError error
	DeleteError   error
}

// NewMockStore creates a new mock store
func NewMockStore() *MockStore {
	return &MockStore{
		creds: make(map[string]*Credential),
	}
}

// Name implements TokenStore
func (m *MockStore) Name() string {
	return "mock"
}

// Store saves the credential
func (m *MockStore) Store(cred *Credential) error {
	if m.StoreError != nil {
		return m.StoreError
	}
	if cred == nil || cred.Account == "" {
		return ErrInvalidToken
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	c := *cred
	m.creds[cred.Account] = &c
	return nil
}

// Retrieve gets the credential
func (m *MockStore) Retrieve(account string) (*Credential, error) {
	if m.RetrieveError != nil {
		return nil, m.RetrieveError
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	cred, ok := m.creds[account]
	if !ok {
		return nil, ErrTokenNotFound
	}
	c := *cred
	return &c, nil
}

// Delete removes the credential
func (m *MockStore) Delete(account string) error {
	if m.DeleteError != nil {
		return m.DeleteError
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.creds[account]; !ok {
		return ErrTokenNotFound
	}
	delete(m.creds, account)
	return nil
}

// Exists checks if a credential exists
func (m *MockStore) Exists(account string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.creds[account]
	return ok
}

// Count returns the number of stored credentials
func (m *MockStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.creds)
}

// NewMockManager creates a Manager over a single mock store
func NewMockManager() (*Manager, *MockStore) {
	store := NewMockStore()
	return NewManagerWithStores(store), store
}
