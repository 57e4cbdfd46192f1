package auth

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"famlysync/pkg/config"
)

// DefaultAccount is the keychain entry used when no account name is given
const DefaultAccount = "default"

// Credential is a stored Famly access token
type Credential struct {
	Account      string    `json:"account"`
	Token        string    `json:"token"`
	LastModified time.Time `json:"last_modified"`
}

// TokenStore is the interface for storing and retrieving access tokens
type TokenStore interface {
	// Name identifies the store in status output
	Name() string

	// Store saves the token for an account
	Store(cred *Credential) error

	// Retrieve gets the token for an account
	Retrieve(account string) (*Credential, error)

	// Delete removes the token for an account
	Delete(account string) error

	// Exists checks if a token exists for an account
	Exists(account string) bool
}

// Manager handles token storage with fallback across stores. Stores are
// opened on first use.
type Manager struct {
	open   func() []TokenStore
	once   sync.Once
	stores []TokenStore
}

// NewManager creates a manager backed by the system keychain when it is
// reachable, then the environment
func NewManager() *Manager {
	return &Manager{open: defaultStores}
}

// NewManagerWithStores creates a manager over the given stores, tried in order
func NewManagerWithStores(stores ...TokenStore) *Manager {
	return &Manager{open: func() []TokenStore { return stores }}
}

func defaultStores() []TokenStore {
	var stores []TokenStore
	// opening the keychain store writes and deletes a test entry
	if keyringStore, err := NewKeyringStore(); err == nil {
		stores = append(stores, keyringStore)
	}
	return append(stores, NewEnvironmentStore())
}

func (m *Manager) backends() []TokenStore {
	m.once.Do(func() { m.stores = m.open() })
	return m.stores
}

// Store saves the token in the first store that accepts it
func (m *Manager) Store(account, token string) error {
	token = strings.TrimSpace(token)
	if token == "" || token == config.TokenPlaceholder {
		return ErrInvalidToken
	}
	if account == "" {
		account = DefaultAccount
	}

	cred := &Credential{Account: account, Token: token, LastModified: time.Now()}

	var lastErr error
	for _, store := range m.backends() {
		err := store.Store(cred)
		if err == nil {
			return nil
		}
		lastErr = err
	}

	if lastErr != nil {
		return fmt.Errorf("failed to store token: %w", lastErr)
	}
	return ErrStoreUnavailable
}

// Retrieve gets the token from the first store that has it
func (m *Manager) Retrieve(account string) (*Credential, string, error) {
	if account == "" {
		account = DefaultAccount
	}

	for _, store := range m.backends() {
		if cred, err := store.Retrieve(account); err == nil && cred != nil {
			return cred, store.Name(), nil
		}
	}
	return nil, "", ErrTokenNotFound
}

// Delete removes the token from every store that holds it
func (m *Manager) Delete(account string) error {
	if account == "" {
		account = DefaultAccount
	}

	var deleted bool
	var lastErr error
	for _, store := range m.backends() {
		err := store.Delete(account)
		switch {
		case err == nil:
			deleted = true
		case errors.Is(err, ErrStoreUnavailable), errors.Is(err, ErrTokenNotFound):
		default:
			lastErr = err
		}
	}

	if lastErr != nil {
		return fmt.Errorf("failed to delete token: %w", lastErr)
	}
	if !deleted {
		return ErrTokenNotFound
	}
	return nil
}

// Resolve picks the token for a run: the settings value (after env
// overrides) wins unless it is empty or the template placeholder, in which
// case the stored token is used. Stores are not opened when the settings
// token is usable. It returns the token and where it came from.
func (m *Manager) Resolve(cfg *config.Config) (string, string, error) {
	if cfg.HasToken() {
		return strings.TrimSpace(cfg.AccessToken), "settings", nil
	}

	cred, source, err := m.Retrieve(DefaultAccount)
	if err != nil {
		return "", "", fmt.Errorf("no access token in %s and none stored (run `famlysync auth set-token`): %w",
			cfg.Source, err)
	}
	return cred.Token, source, nil
}

// Mask hides all but the first and last 4 characters of a token
func Mask(token string) string {
	if len(token) <= 8 {
		return "********"
	}
	return token[:4] + "..." + token[len(token)-4:]
}

// Errors
var (
	ErrTokenNotFound    = errors.New("access token not found")
	ErrInvalidToken     = errors.New("invalid access token")
	ErrStoreUnavailable = errors.New("token store unavailable")
)
