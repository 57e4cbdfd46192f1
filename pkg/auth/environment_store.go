package auth

import (
	"os"
	"strings"
	"time"
)

// TokenEnv is read by EnvironmentStore. It is only consulted when the
// settings file (including FAMLYSYNC_ACCESS_TOKEN) has no usable token.
const TokenEnv = "FAMLY_ACCESS_TOKEN"

// EnvironmentStore implements TokenStore using an environment variable.
// It is read-only.
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Name implements TokenStore
func (e *EnvironmentStore) Name() string {
	return "environment"
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(cred *Credential) error {
	return ErrStoreUnavailable
}

// Retrieve returns the token from the environment for any account
func (e *EnvironmentStore) Retrieve(account string) (*Credential, error) {
	token := strings.TrimSpace(os.Getenv(TokenEnv))
	if token == "" {
		return nil, ErrTokenNotFound
	}
	if account == "" {
		account = DefaultAccount
	}

	return &Credential{
		Account:      account,
		Token:        token,
		LastModified: time.Now(),
	}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(account string) error {
	return ErrStoreUnavailable
}

// Exists checks if the environment carries a token
func (e *EnvironmentStore) Exists(account string) bool {
	return strings.TrimSpace(os.Getenv(TokenEnv)) != ""
}
