// Package store reconciles the NetworkManager system-connections directory
// with a freshly synthesized profile set.
package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gookit/goutil/fsutil"

	"github.com/piatools/pia-provision/internal/provision/synth"
	sharederrors "github.com/piatools/pia-provision/internal/shared/errors"
	"github.com/piatools/pia-provision/internal/shared/logger"
)

// profileMode is owner read/write only. Files are created with this mode,
// never opened laxer and tightened later.
const profileMode = os.FileMode(0600)

// Report describes what a reconciliation run changed.
type Report struct {
	// Removed lists the stale profile filenames deleted in the cleanup phase.
	Removed []string
	// Written lists the profile filenames committed to disk, in write order.
	// On a partial failure these files exist and are usable.
	Written []string
}

// PartialWriteError is returned when the write phase fails after some
// profiles were already committed. The committed files are left in place:
// a few working connections beat a clean but empty store.
type PartialWriteError struct {
	// Written names the profiles on disk when the failure happened.
	Written []string
	Err     *sharederrors.WriteError
}

func (e *PartialWriteError) Error() string {
	return fmt.Sprintf("%v (profiles already committed: %d)", e.Err, len(e.Written))
}

func (e *PartialWriteError) Unwrap() error {
	return e.Err
}

// Store manages the profile files under one configuration directory.
// The directory is treated as exclusively owned for the duration of a run.
type Store struct {
	dir    string
	prefix string
	logger *logger.Logger
}

// New creates a store over dir, recognizing files with the given prefix as
// this tool's own.
func New(dir, prefix string, log *logger.Logger) *Store {
	if log == nil {
		log = logger.NewDevelopment("store")
	}
	return &Store{dir: dir, prefix: prefix, logger: log}
}

// NewDefault creates a store using the synthesizer's profile naming
// convention.
func NewDefault(dir string, log *logger.Logger) *Store {
	return New(dir, synth.ProfilePrefix, log)
}

// Dir returns the store directory.
func (s *Store) Dir() string { return s.dir }

// List returns the filenames currently in the store that match the naming
// convention, sorted by name.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read store directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.Type().IsRegular() && strings.HasPrefix(entry.Name(), s.prefix) {
			names = append(names, entry.Name())
		}
	}
	return names, nil
}

// Reconcile replaces this tool's profiles with the given set, in two strict
// phases: purge everything matching the naming convention, then write the
// new files. Cleanup failure aborts before any write so old and new profiles
// are never mixed; a write failure partway through surfaces the committed
// subset via PartialWriteError.
func (s *Store) Reconcile(ctx context.Context, docs []*synth.ProfileDocument) (*Report, error) {
	// Cancellation before the first mutation leaves the store untouched.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := fsutil.Mkdir(s.dir, 0755); err != nil {
		return nil, sharederrors.NewWriteError(s.dir, err)
	}

	report := &Report{}

	removed, err := s.purge()
	if err != nil {
		return nil, err
	}
	report.Removed = removed

	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			// Mid-reconciliation cancellation follows the partial-success
			// policy: committed files stay.
			return report, &PartialWriteError{
				Written: report.Written,
				Err:     sharederrors.NewWriteError(s.dir, err),
			}
		}

		path := filepath.Join(s.dir, doc.ID)
		if err := writeRestricted(path, doc.Render()); err != nil {
			s.logger.Error("profile write failed",
				"profile", doc.ID,
				"committed", len(report.Written))
			return report, &PartialWriteError{
				Written: report.Written,
				Err:     sharederrors.NewWriteError(path, err),
			}
		}

		report.Written = append(report.Written, doc.ID)
		s.logger.Debug("installed profile", "profile", doc.ID)
	}

	s.logger.Info("store reconciled",
		"removed", len(report.Removed),
		"written", len(report.Written),
		"dir", s.dir)
	return report, nil
}

// purge removes every regular file matching the naming convention. Files of
// other owners, and non-file entries, are never touched.
func (s *Store) purge() ([]string, error) {
	stale, err := s.List()
	if err != nil {
		return nil, sharederrors.NewDeleteError(s.dir, err)
	}

	var removed []string
	for _, name := range stale {
		path := filepath.Join(s.dir, name)
		if err := os.Remove(path); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, sharederrors.NewDeleteError(path, err)
		}
		removed = append(removed, name)
		s.logger.Debug("removed stale profile", "profile", name)
	}
	return removed, nil
}

// writeRestricted creates the file already owner-only and writes the
// content. There is no window where the file exists with a laxer mode.
func writeRestricted(path string, content []byte) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, profileMode)
	if err != nil {
		return err
	}

	if _, err := f.Write(content); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	// The create mode is filtered through the umask; normalize. chmod only
	// ever moves from stricter to 0600, never through a world-readable state.
	return os.Chmod(path, profileMode)
}
