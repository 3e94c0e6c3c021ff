package auth

import (
	"os"
	"time"
)

// BearerTokenEnv is the variable the environment store reads
const BearerTokenEnv = "TWITTER_BEARER_TOKEN"

// EnvironmentStore implements CredentialStore using environment variables.
// It is read-only and answers for any credential name.
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based credential store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

func (e *EnvironmentStore) Name() string { return "environment" }

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(cred *Credential) error {
	return ErrStoreUnavailable
}

// Retrieve gets the token from TWITTER_BEARER_TOKEN
func (e *EnvironmentStore) Retrieve(name string) (*Credential, error) {
	token := os.Getenv(BearerTokenEnv)
	if token == "" {
		return nil, ErrCredentialsNotFound
	}

	if name == "" {
		name = DefaultProfile
	}

	return &Credential{
		Name:         name,
		BearerToken:  token,
		LastModified: time.Now(),
	}, nil
}

// List returns a single credential if the variable is set
func (e *EnvironmentStore) List() ([]*Credential, error) {
	cred, err := e.Retrieve("")
	if err != nil {
		return []*Credential{}, nil
	}
	return []*Credential{cred}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(name string) error {
	return ErrStoreUnavailable
}

// Exists checks if the variable is set
func (e *EnvironmentStore) Exists(name string) bool {
	return os.Getenv(BearerTokenEnv) != ""
}
