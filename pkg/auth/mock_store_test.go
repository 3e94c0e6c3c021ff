package auth

import (
	"sync"
)

// mockStore is an in-memory CredentialStore with error injection
type mockStore struct {
	name  string
	creds map[string]*Credential
	mu    sync.RWMutex

	StoreError error
	ListError  error
}

func newMockStore(name string) *mockStore {
	return &mockStore{name: name, creds: make(map[string]*Credential)}
}

func (m *mockStore) Name() string { return m.name }

func (m *mockStore) Store(cred *Credential) error {
	if m.StoreError != nil {
		return m.StoreError
	}
	if cred == nil || cred.Name == "" {
		return ErrInvalidCredentials
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	c := *cred
	m.creds[cred.Name] = &c
	return nil
}

func (m *mockStore) Retrieve(name string) (*Credential, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cred, ok := m.creds[name]
	if !ok {
		return nil, ErrCredentialsNotFound
	}
	c := *cred
	return &c, nil
}

func (m *mockStore) List() ([]*Credential, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	var creds []*Credential
	for _, cred := range m.creds {
		c := *cred
		creds = append(creds, &c)
	}
	return creds, nil
}

func (m *mockStore) Delete(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.creds[name]; !ok {
		return ErrCredentialsNotFound
	}
	delete(m.creds, name)
	return nil
}

func (m *mockStore) Exists(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.creds[name]
	return ok
}

func (m *mockStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.creds)
}
