// Package credentials abstracts where the PIA login and password come from,
// so the pipeline can be driven by an interactive terminal, the system
// keyring, or a fixed value in tests.
package credentials

import (
	"context"
	"fmt"

	sharederrors "github.com/piatools/pia-provision/internal/shared/errors"
)

// Credentials carries the VPN account login and an optional password.
// When Password is empty, profiles are written so the network-management
// service prompts for it at connect time.
type Credentials struct {
	Login    string
	Password string
}

// Validate checks the credentials are usable for synthesis.
func (c Credentials) Validate() error {
	if c.Login == "" {
		return sharederrors.NewValidationError("login", "must not be empty")
	}
	return nil
}

// Provider obtains credentials. Implementations must not log or otherwise
// echo the password.
type Provider interface {
	Credentials(ctx context.Context) (Credentials, error)
}

// Static is a fixed in-memory provider, used in tests and when the login is
// passed on the command line.
type Static struct {
	Creds Credentials
}

// Credentials returns the fixed credentials.
func (s Static) Credentials(_ context.Context) (Credentials, error) {
	if err := s.Creds.Validate(); err != nil {
		return Credentials{}, err
	}
	return s.Creds, nil
}

// NewProvider selects a provider implementation by configured source name.
func NewProvider(source, login string) (Provider, error) {
	switch source {
	case "prompt":
		return &Terminal{Login: login}, nil
	case "keyring":
		return &Keyring{}, nil
	default:
		return nil, fmt.Errorf("unknown credential source %q", source)
	}
}
