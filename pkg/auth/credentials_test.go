package auth

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"famlysync/pkg/config"
)

func TestManagerStoreAndRetrieve(t *testing.T) {
	manager, store := NewMockManager()

	require.NoError(t, manager.Store("", "  tok-1234567890  "))
	assert.Equal(t, 1, store.Count())
	assert.True(t, store.Exists(DefaultAccount))

	cred, source, err := manager.Retrieve("")
	require.NoError(t, err)
	assert.Equal(t, "tok-1234567890", cred.Token)
	assert.Equal(t, "mock", source)
	assert.False(t, cred.LastModified.IsZero())
}

func TestManagerRejectsPlaceholder(t *testing.T) {
	manager, store := NewMockManager()

	assert.ErrorIs(t, manager.Store("", config.TokenPlaceholder), ErrInvalidToken)
	assert.ErrorIs(t, manager.Store("", "   "), ErrInvalidToken)
	assert.Equal(t, 0, store.Count())
}

func TestManagerFallsBackToNextStore(t *testing.T) {
	broken := NewMockStore()
	broken.StoreError = errors.New("locked")
	second := NewMockStore()
	manager := NewManagerWithStores(broken, second)

	require.NoError(t, manager.Store("", "tok"))
	assert.Equal(t, 0, broken.Count())
	assert.Equal(t, 1, second.Count())
}

func TestManagerDelete(t *testing.T) {
	manager, store := NewMockManager()
	require.NoError(t, manager.Store("", "tok"))

	require.NoError(t, manager.Delete(""))
	assert.Equal(t, 0, store.Count())
	assert.ErrorIs(t, manager.Delete(""), ErrTokenNotFound)

	store.DeleteError = errors.New("denied")
	assert.Error(t, manager.Delete(""))
}

func TestResolve(t *testing.T) {
	t.Setenv(TokenEnv, "")

	tests := []struct {
		name       string
		settings   string
		stored     string
		wantToken  string
		wantSource string
		wantErr    bool
	}{
		{name: "settings wins", settings: "from-settings", stored: "from-store", wantToken: "from-settings", wantSource: "settings"},
		{name: "placeholder falls back", settings: config.TokenPlaceholder, stored: "from-store", wantToken: "from-store", wantSource: "mock"},
		{name: "empty falls back", stored: "from-store", wantToken: "from-store", wantSource: "mock"},
		{name: "nothing anywhere", settings: config.TokenPlaceholder, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			manager, _ := NewMockManager()
			if tt.stored != "" {
				require.NoError(t, manager.Store("", tt.stored))
			}
			cfg := config.DefaultConfig()
			cfg.AccessToken = tt.settings
			cfg.Source = "settings.json"

			token, source, err := manager.Resolve(cfg)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrTokenNotFound)
				assert.Contains(t, err.Error(), "settings.json")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantToken, token)
			assert.Equal(t, tt.wantSource, source)
		})
	}
}

func TestResolveSettingsTokenOpensNoStore(t *testing.T) {
	opened := 0
	manager := &Manager{open: func() []TokenStore {
		opened++
		return []TokenStore{NewMockStore()}
	}}

	cfg := config.DefaultConfig()
	cfg.AccessToken = "from-settings"
	token, source, err := manager.Resolve(cfg)
	require.NoError(t, err)
	assert.Equal(t, "from-settings", token)
	assert.Equal(t, "settings", source)
	assert.Equal(t, 0, opened)

	cfg.AccessToken = ""
	_, _, err = manager.Resolve(cfg)
	assert.ErrorIs(t, err, ErrTokenNotFound)
	_, _, _ = manager.Retrieve("")
	assert.Equal(t, 1, opened, "stores are opened once")
}

func TestEnvironmentStore(t *testing.T) {
	store := NewEnvironmentStore()

	t.Setenv(TokenEnv, "")
	assert.False(t, store.Exists(DefaultAccount))
	_, err := store.Retrieve(DefaultAccount)
	assert.ErrorIs(t, err, ErrTokenNotFound)

	t.Setenv(TokenEnv, "env-token")
	cred, err := store.Retrieve("")
	require.NoError(t, err)
	assert.Equal(t, "env-token", cred.Token)
	assert.Equal(t, DefaultAccount, cred.Account)

	assert.ErrorIs(t, store.Store(cred), ErrStoreUnavailable)
	assert.ErrorIs(t, store.Delete(DefaultAccount), ErrStoreUnavailable)
}

func TestEnvironmentStoreBehindManager(t *testing.T) {
	t.Setenv(TokenEnv, "env-token")
	manager := NewManagerWithStores(NewMockStore(), NewEnvironmentStore())

	cred, source, err := manager.Retrieve("")
	require.NoError(t, err)
	assert.Equal(t, "env-token", cred.Token)
	assert.Equal(t, "environment", source)

	// nothing deletable, the environment is read-only
	assert.ErrorIs(t, manager.Delete(""), ErrTokenNotFound)
}

func TestKeyringStore(t *testing.T) {
	keyring.MockInit()

	store, err := NewKeyringStore()
	require.NoError(t, err)
	assert.Equal(t, "keychain", store.Name())

	assert.False(t, store.Exists(DefaultAccount))
	require.NoError(t, store.Store(&Credential{Account: DefaultAccount, Token: "kc-token"}))
	assert.True(t, store.Exists(DefaultAccount))

	cred, err := store.Retrieve(DefaultAccount)
	require.NoError(t, err)
	assert.Equal(t, "kc-token", cred.Token)

	require.NoError(t, store.Delete(DefaultAccount))
	_, err = store.Retrieve(DefaultAccount)
	assert.ErrorIs(t, err, ErrTokenNotFound)
	assert.ErrorIs(t, store.Delete(DefaultAccount), ErrTokenNotFound)

	assert.ErrorIs(t, store.Store(&Credential{Account: DefaultAccount}), ErrInvalidToken)
}

func TestMask(t *testing.T) {
	assert.Equal(t, "********", Mask("short"))
	assert.Equal(t, "abcd...wxyz", Mask("abcdefghijklmnopqrstuvwxyz"))
}

func TestShowTokenGuide(t *testing.T) {
	var buf bytes.Buffer
	ShowTokenGuide(&buf)
	assert.Contains(t, buf.String(), "x-famly-accesstoken")
	assert.Contains(t, buf.String(), "famlysync auth set-token")
}
