package auth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// PassphraseEnv overrides the generated passphrase of the token store
	PassphraseEnv = "TWDATASET_PASSPHRASE"

	tokenExt       = ".token"
	tokenVersion   = "v1"
	passphraseFile = ".passphrase"

	saltLen          = 16
	pbkdf2Iterations = 100000
)

var errMalformedToken = errors.New("malformed token file")

// TokenFileStore keeps one bearer token per credential name, each sealed
// with AES-GCM in its own file <dir>/<name>.token. The key is derived from a
// passphrase with PBKDF2 and the credential name is bound as additional
// data, so a token file renamed to another credential does not open.
type TokenFileStore struct {
	dir        string
	passphrase []byte
}

// NewTokenFileStore creates a store in dir. The passphrase comes from
// TWDATASET_PASSPHRASE, else from dir/.passphrase, which is generated on
// first use.
func NewTokenFileStore(dir string) (*TokenFileStore, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create token directory: %w", err)
	}

	passphrase, err := loadPassphrase(dir)
	if err != nil {
		return nil, err
	}
	return &TokenFileStore{dir: dir, passphrase: passphrase}, nil
}

func (s *TokenFileStore) Name() string { return "encrypted file" }

func (s *TokenFileStore) path(name string) string {
	return filepath.Join(s.dir, name+tokenExt)
}

// Store seals the credential's token into its file, replacing any previous one
func (s *TokenFileStore) Store(cred *Credential) error {
	if cred == nil || cred.Name == "" || strings.ContainsAny(cred.Name, `/\`) {
		return ErrInvalidCredentials
	}

	sealed, err := s.seal(cred.Name, []byte(cred.BearerToken))
	if err != nil {
		return err
	}

	path := s.path(cred.Name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(sealed+"\n"), 0600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write token file: %w", err)
	}
	return nil
}

// Retrieve opens the token stored under name
func (s *TokenFileStore) Retrieve(name string) (*Credential, error) {
	if name == "" {
		return nil, ErrInvalidCredentials
	}

	path := s.path(name)
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrCredentialsNotFound
		}
		return nil, fmt.Errorf("failed to read token file: %w", err)
	}

	token, err := s.open(name, strings.TrimSpace(string(content)))
	if err != nil {
		return nil, fmt.Errorf("token file %s: %w", path, err)
	}

	cred := &Credential{Name: name, BearerToken: string(token)}
	if info, err := os.Stat(path); err == nil {
		cred.LastModified = info.ModTime()
	}
	return cred, nil
}

// List opens every token file in the store directory
func (s *TokenFileStore) List() ([]*Credential, error) {
	paths, err := filepath.Glob(filepath.Join(s.dir, "*"+tokenExt))
	if err != nil {
		return nil, err
	}

	creds := make([]*Credential, 0, len(paths))
	for _, p := range paths {
		cred, err := s.Retrieve(strings.TrimSuffix(filepath.Base(p), tokenExt))
		if err != nil {
			return nil, err
		}
		creds = append(creds, cred)
	}
	return creds, nil
}

// Delete removes the token file of name
func (s *TokenFileStore) Delete(name string) error {
	if name == "" {
		return ErrInvalidCredentials
	}
	if err := os.Remove(s.path(name)); err != nil {
		if os.IsNotExist(err) {
			return ErrCredentialsNotFound
		}
		return fmt.Errorf("failed to delete token file: %w", err)
	}
	return nil
}

// Exists reports whether a token file for name is present
func (s *TokenFileStore) Exists(name string) bool {
	if name == "" {
		return false
	}
	_, err := os.Stat(s.path(name))
	return err == nil
}

// seal encrypts token as "v1:" + base64(salt | nonce | ciphertext)
func (s *TokenFileStore) seal(name string, token []byte) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}
	gcm, err := s.aead(salt)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	blob := append(salt, nonce...)
	blob = gcm.Seal(blob, nonce, token, []byte(name))
	return tokenVersion + ":" + base64.RawStdEncoding.EncodeToString(blob), nil
}

func (s *TokenFileStore) open(name, sealed string) ([]byte, error) {
	version, encoded, ok := strings.Cut(sealed, ":")
	if !ok || version != tokenVersion {
		return nil, errMalformedToken
	}
	blob, err := base64.RawStdEncoding.DecodeString(encoded)
	if err != nil || len(blob) < saltLen {
		return nil, errMalformedToken
	}

	gcm, err := s.aead(blob[:saltLen])
	if err != nil {
		return nil, err
	}
	rest := blob[saltLen:]
	if len(rest) < gcm.NonceSize() {
		return nil, errMalformedToken
	}

	token, err := gcm.Open(nil, rest[:gcm.NonceSize()], rest[gcm.NonceSize():], []byte(name))
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt token: %w", err)
	}
	return token, nil
}

func (s *TokenFileStore) aead(salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key(s.passphrase, salt, pbkdf2Iterations, 32, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func loadPassphrase(dir string) ([]byte, error) {
	if pass := os.Getenv(PassphraseEnv); pass != "" {
		return []byte(pass), nil
	}

	path := filepath.Join(dir, passphraseFile)
	if content, err := os.ReadFile(path); err == nil && len(content) > 0 {
		return content, nil
	}

	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return nil, fmt.Errorf("failed to generate passphrase: %w", err)
	}
	pass := []byte(base64.RawURLEncoding.EncodeToString(raw))
	if err := os.WriteFile(path, pass, 0600); err != nil {
		return nil, fmt.Errorf("failed to save passphrase: %w", err)
	}
	return pass, nil
}
