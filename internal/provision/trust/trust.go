// Package trust installs the certificate authority that synthesized
// profiles reference for server verification.
package trust

import (
	"bytes"
	"context"
	_ "embed"
	"os"
	"path/filepath"

	sharederrors "github.com/piatools/pia-provision/internal/shared/errors"
	"github.com/piatools/pia-provision/internal/shared/logger"
)

// anchorPEM is the provider CA, shipped with the binary so provisioning
// never depends on a second download.
//
//go:embed ca.rsa.2048.crt
var anchorPEM []byte

const anchorMode = os.FileMode(0644)

// Anchor manages one trust anchor file on disk.
type Anchor struct {
	path   string
	logger *logger.Logger
}

// New creates an anchor installer targeting path.
func New(path string, log *logger.Logger) *Anchor {
	if log == nil {
		log = logger.NewDevelopment("trust")
	}
	return &Anchor{path: path, logger: log}
}

// Path returns the anchor's target location.
func (a *Anchor) Path() string { return a.path }

// Ensure makes the file at the anchor path byte-identical to the shipped
// certificate. A matching file is left alone; anything else, including a
// stale or corrupted anchor, is overwritten.
func (a *Anchor) Ensure(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	existing, err := os.ReadFile(a.path)
	if err == nil && bytes.Equal(existing, anchorPEM) {
		a.logger.Debug("trust anchor up to date", "path", a.path)
		return nil
	}
	if err != nil && !os.IsNotExist(err) {
		return sharederrors.NewWriteError(a.path, err)
	}

	if err := os.MkdirAll(filepath.Dir(a.path), 0755); err != nil {
		return sharederrors.NewWriteError(a.path, err)
	}
	if err := os.WriteFile(a.path, anchorPEM, anchorMode); err != nil {
		return sharederrors.NewWriteError(a.path, err)
	}

	a.logger.Info("installed trust anchor", "path", a.path)
	return nil
}
