package credentials

import (
	"context"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"

	sharederrors "github.com/piatools/pia-provision/internal/shared/errors"
)

// Keyring entries live under this service name in the system keyring.
const (
	keyringService = "pia-provision"
	loginKey       = "login"
	passwordKey    = "password"
)

// Keyring reads credentials previously stored in the system keyring.
type Keyring struct{}

// Credentials implements Provider.
func (k *Keyring) Credentials(_ context.Context) (Credentials, error) {
	login, err := keyring.Get(keyringService, loginKey)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return Credentials{}, fmt.Errorf("%w: run 'pia-provision setup --store-credentials' first", sharederrors.ErrNoCredentials)
		}
		return Credentials{}, fmt.Errorf("keyring access failed: %w", err)
	}

	// A missing password entry is the interactive-at-connect variant.
	password, err := keyring.Get(keyringService, passwordKey)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return Credentials{}, fmt.Errorf("keyring access failed: %w", err)
	}

	creds := Credentials{Login: login, Password: password}
	if err := creds.Validate(); err != nil {
		return Credentials{}, err
	}
	return creds, nil
}

// Store saves credentials into the system keyring. An empty password deletes
// any stored password entry so connect-time prompting takes over.
func (k *Keyring) Store(creds Credentials) error {
	if err := creds.Validate(); err != nil {
		return err
	}

	if err := keyring.Set(keyringService, loginKey, creds.Login); err != nil {
		return fmt.Errorf("failed to store login: %w", err)
	}

	if creds.Password == "" {
		if err := keyring.Delete(keyringService, passwordKey); err != nil && !errors.Is(err, keyring.ErrNotFound) {
			return fmt.Errorf("failed to clear stored password: %w", err)
		}
		return nil
	}

	if err := keyring.Set(keyringService, passwordKey, creds.Password); err != nil {
		return fmt.Errorf("failed to store password: %w", err)
	}
	return nil
}
