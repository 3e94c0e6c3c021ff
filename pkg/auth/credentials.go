package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"time"
)

// DefaultProfile is the credential name used by the original keys file
const DefaultProfile = "search_tweets_v2"

// Credential is an app-only bearer token for the X API
type Credential struct {
	Name         string    `json:"name" yaml:"-"`
	BearerToken  string    `json:"bearer_token" yaml:"bearer_token"`
	Endpoint     string    `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	LastModified time.Time `json:"last_modified" yaml:"-"`
}

// CredentialStore is the interface for storing and retrieving credentials
type CredentialStore interface {
	// Name identifies the store in status output
	Name() string

	// Store saves a credential under its Name
	Store(cred *Credential) error

	// Retrieve gets the credential called name
	Retrieve(name string) (*Credential, error)

	// List returns all stored credentials
	List() ([]*Credential, error)

	// Delete removes the credential called name
	Delete(name string) error

	// Exists checks if a credential called name exists
	Exists(name string) bool
}

// Manager looks credentials up across several stores, in order
type Manager struct {
	stores []CredentialStore
}

// NewManager creates a credential manager. Lookups try the YAML keys file
// (when keysFile is set), the environment, the system keyring and finally
// the encrypted file store.
func NewManager(keysFile string) (*Manager, error) {
	var stores []CredentialStore

	if keysFile != "" {
		stores = append(stores, NewKeysFileStore(keysFile))
	}
	stores = append(stores, NewEnvironmentStore())

	if keyringStore, err := NewKeyringStore(); err == nil {
		stores = append(stores, keyringStore)
	}

	configDir, err := getConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}

	tokenStore, err := NewTokenFileStore(filepath.Join(configDir, "tokens"))
	if err != nil {
		return nil, fmt.Errorf("failed to create token store: %w", err)
	}
	stores = append(stores, tokenStore)

	return &Manager{stores: stores}, nil
}

// NewManagerWithStores creates a Manager over the given stores
func NewManagerWithStores(stores ...CredentialStore) *Manager {
	return &Manager{stores: stores}
}

// Stores returns the stores in lookup order
func (m *Manager) Stores() []CredentialStore {
	return m.stores
}

// Store saves the credential in the first store that accepts writes
func (m *Manager) Store(cred *Credential) error {
	if cred == nil || cred.Name == "" {
		return errors.New("credential name is required")
	}
	if cred.BearerToken == "" {
		return errors.New("bearer token is required")
	}

	cred.LastModified = time.Now()

	var lastErr error
	for _, store := range m.stores {
		err := store.Store(cred)
		if err == nil {
			return nil
		}
		lastErr = err
	}

	if lastErr != nil {
		return fmt.Errorf("failed to store credentials: %w", lastErr)
	}
	return errors.New("no available credential stores")
}

// Retrieve gets the credential from the first store that has it
func (m *Manager) Retrieve(name string) (*Credential, error) {
	cred, _, err := m.lookup(name)
	return cred, err
}

func (m *Manager) lookup(name string) (*Credential, string, error) {
	for _, store := range m.stores {
		if cred, err := store.Retrieve(name); err == nil && cred != nil && cred.BearerToken != "" {
			return cred, store.Name(), nil
		}
	}
	return nil, "", fmt.Errorf("%w: %s", ErrCredentialsNotFound, name)
}

// BearerToken resolves the token to use. An explicitly configured token wins
// over every store; the second result names where the token came from.
func (m *Manager) BearerToken(configured, name string) (string, string, error) {
	if configured != "" {
		return configured, "config", nil
	}
	cred, source, err := m.lookup(name)
	if err != nil {
		return "", "", err
	}
	return cred.BearerToken, source, nil
}

// List returns the credentials of every store, newest version per name
func (m *Manager) List() ([]*Credential, error) {
	byName := make(map[string]*Credential)

	for _, store := range m.stores {
		creds, err := store.List()
		if err != nil {
			continue
		}
		for _, cred := range creds {
			if existing, ok := byName[cred.Name]; !ok || cred.LastModified.After(existing.LastModified) {
				byName[cred.Name] = cred
			}
		}
	}

	result := make([]*Credential, 0, len(byName))
	for _, cred := range byName {
		result = append(result, cred)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })

	return result, nil
}

// Delete removes the credential from every writable store
func (m *Manager) Delete(name string) error {
	var deleted bool
	var lastErr error

	for _, store := range m.stores {
		if err := store.Delete(name); err == nil {
			deleted = true
		} else {
			lastErr = err
		}
	}

	if !deleted && lastErr != nil && !errors.Is(lastErr, ErrCredentialsNotFound) && !errors.Is(lastErr, ErrStoreUnavailable) {
		return fmt.Errorf("failed to delete credentials: %w", lastErr)
	}
	if !deleted {
		return fmt.Errorf("%w: %s", ErrCredentialsNotFound, name)
	}

	return nil
}

// getConfigDir returns the configuration directory path
func getConfigDir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support", "twdataset")
	case "windows":
		configDir = filepath.Join(os.Getenv("APPDATA"), "twdataset")
	default:
		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
			configDir = filepath.Join(xdgConfig, "twdataset")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			configDir = filepath.Join(home, ".config", "twdataset")
		}
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	return configDir, nil
}

// SanitizeCredential returns a copy with the token masked
func SanitizeCredential(cred *Credential) *Credential {
	if cred == nil {
		return nil
	}

	masked := *cred
	masked.BearerToken = MaskToken(cred.BearerToken)
	return &masked
}

// MaskToken masks all but the first 4 and last 4 characters of a token
func MaskToken(s string) string {
	if len(s) <= 8 {
		return "********"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

// Errors
var (
	ErrCredentialsNotFound = errors.New("credentials not found")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrStoreUnavailable    = errors.New("credential store unavailable")
)
