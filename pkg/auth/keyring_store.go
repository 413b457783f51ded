package auth

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

// KeyringService is the keychain service every endpoint password lives under
const KeyringService = "prodfetch"

// KeyringStore reads and writes endpoint passwords in the OS keychain.
// Entries are keyed endpoint_<endpoint>_<username>.
type KeyringStore struct {
	service string
}

func NewKeyringStore() *KeyringStore {
	return &KeyringStore{service: KeyringService}
}

// entry names the keychain item for an endpoint user
func entry(endpoint, username string) (string, error) {
	if endpoint == "" || username == "" {
		return "", ErrInvalidCredentials
	}
	return "endpoint_" + endpoint + "_" + username, nil
}

// keyringErr maps keychain misses onto ErrCredentialsNotFound
func keyringErr(op string, err error) error {
	if errors.Is(err, keyring.ErrNotFound) {
		return ErrCredentialsNotFound
	}
	return fmt.Errorf("keyring %s: %w", op, err)
}

// Password implements PasswordSource
func (k *KeyringStore) Password(endpoint, username string) (string, error) {
	key, err := entry(endpoint, username)
	if err != nil {
		return "", err
	}
	secret, err := keyring.Get(k.service, key)
	if err != nil {
		return "", keyringErr("get", err)
	}
	return secret, nil
}

// Store saves password, replacing any existing entry
func (k *KeyringStore) Store(endpoint, username, password string) error {
	key, err := entry(endpoint, username)
	if err != nil {
		return err
	}
	if password == "" {
		return ErrInvalidCredentials
	}
	if err := keyring.Set(k.service, key, password); err != nil {
		return keyringErr("set", err)
	}
	return nil
}

func (k *KeyringStore) Delete(endpoint, username string) error {
	key, err := entry(endpoint, username)
	if err != nil {
		return err
	}
	if err := keyring.Delete(k.service, key); err != nil {
		return keyringErr("delete", err)
	}
	return nil
}
