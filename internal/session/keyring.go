package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/spendbar/spendbar/internal/core"
)

var ErrTokenNotFound = errors.New("token not found")

// Keyring is the secure credential store collaborator. The default
// file-backed implementation keeps tokens in a 0600 JSON file; an OS
// keychain adapter can be substituted without touching the session store.
type Keyring interface {
	Get(provider core.Provider) (string, error)
	Set(provider core.Provider, token string) error
	Delete(provider core.Provider) error
}

type fileKeyring struct {
	mu   sync.Mutex
	path string
}

func NewFileKeyring(path string) Keyring {
	return &fileKeyring{path: path}
}

type credentialsFile struct {
	Tokens map[string]string `json:"tokens"` // provider -> auth token
}

func (k *fileKeyring) Get(provider core.Provider) (string, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	creds, err := k.load()
	if err != nil {
		return "", err
	}
	token, ok := creds.Tokens[string(provider)]
	if !ok || token == "" {
		return "", ErrTokenNotFound
	}
	return token, nil
}

func (k *fileKeyring) Set(provider core.Provider, token string) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	creds, err := k.load()
	if err != nil {
		creds = credentialsFile{Tokens: make(map[string]string)}
	}
	creds.Tokens[string(provider)] = token
	return k.write(creds)
}

func (k *fileKeyring) Delete(provider core.Provider) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	creds, err := k.load()
	if err != nil {
		return err
	}
	delete(creds.Tokens, string(provider))
	return k.write(creds)
}

func (k *fileKeyring) load() (credentialsFile, error) {
	creds := credentialsFile{Tokens: make(map[string]string)}

	data, err := os.ReadFile(k.path)
	if err != nil {
		if os.IsNotExist(err) {
			return creds, nil
		}
		return creds, fmt.Errorf("reading credentials: %w", err)
	}

	if err := json.Unmarshal(data, &creds); err != nil {
		return credentialsFile{Tokens: make(map[string]string)}, fmt.Errorf("parsing credentials %s: %w", k.path, err)
	}
	if creds.Tokens == nil {
		creds.Tokens = make(map[string]string)
	}
	return creds, nil
}

func (k *fileKeyring) write(creds credentialsFile) error {
	if err := os.MkdirAll(filepath.Dir(k.path), 0o755); err != nil {
		return fmt.Errorf("creating credentials dir: %w", err)
	}

	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling credentials: %w", err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(k.path, data, 0o600); err != nil {
		return fmt.Errorf("writing credentials: %w", err)
	}
	return nil
}
