package auth

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// KeysFileStore reads credentials from a YAML keys file of the form
//
//	search_tweets_v2:
//	  endpoint: https://api.twitter.com/2/tweets/search/recent
//	  bearer_token: AAAA...
//
// The file is managed by hand and the store never writes it.
type KeysFileStore struct {
	path string
}

// NewKeysFileStore creates a store over path
func NewKeysFileStore(path string) *KeysFileStore {
	return &KeysFileStore{path: path}
}

func (k *KeysFileStore) Name() string { return "keys file " + k.path }

func (k *KeysFileStore) load() (map[string]*Credential, error) {
	data, err := os.ReadFile(k.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrCredentialsNotFound
		}
		return nil, fmt.Errorf("failed to read keys file: %w", err)
	}

	var entries map[string]*Credential
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse keys file %s: %w", k.path, err)
	}
	for name, cred := range entries {
		if cred == nil {
			delete(entries, name)
			continue
		}
		cred.Name = name
	}
	return entries, nil
}

// Store is not supported; the keys file is edited by hand
func (k *KeysFileStore) Store(cred *Credential) error {
	return ErrStoreUnavailable
}

// Retrieve gets the entry called name
func (k *KeysFileStore) Retrieve(name string) (*Credential, error) {
	entries, err := k.load()
	if err != nil {
		return nil, err
	}

	cred, ok := entries[name]
	if !ok || cred.BearerToken == "" {
		return nil, ErrCredentialsNotFound
	}
	return cred, nil
}

// List returns every entry with a token, sorted by name
func (k *KeysFileStore) List() ([]*Credential, error) {
	entries, err := k.load()
	if err != nil {
		if err == ErrCredentialsNotFound {
			return []*Credential{}, nil
		}
		return nil, err
	}

	creds := make([]*Credential, 0, len(entries))
	for _, cred := range entries {
		if cred.BearerToken != "" {
			creds = append(creds, cred)
		}
	}
	sort.Slice(creds, func(i, j int) bool { return creds[i].Name < creds[j].Name })
	return creds, nil
}

// Delete is not supported; the keys file is edited by hand
func (k *KeysFileStore) Delete(name string) error {
	return ErrStoreUnavailable
}

// Exists checks if the file has a token called name
func (k *KeysFileStore) Exists(name string) bool {
	_, err := k.Retrieve(name)
	return err == nil
}
