package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common cases
var (
	ErrEmptyDirectory  = errors.New("server directory is empty")
	ErrNotRoot         = errors.New("root privileges required")
	ErrUnsupportedOS   = errors.New("distribution not supported")
	ErrNoCredentials   = errors.New("no credentials available")
	ErrInvalidConfig   = errors.New("invalid configuration")
	ErrReloadFailed    = errors.New("network service reload failed")
	ErrConcurrentRun   = errors.New("another provisioning run is active")
	ErrInstallDeclined = errors.New("package installation declined")
)

// FetchError indicates the remote server directory could not be retrieved:
// the host is unreachable, the request timed out, or the response was non-2xx.
type FetchError struct {
	URL    string
	Status int // zero when the request never completed
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch failed (url=%s, status=%d): %v", e.URL, e.Status, e.Err)
	}
	return fmt.Sprintf("fetch failed (url=%s): %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// NewFetchError creates a new fetch error
func NewFetchError(url string, status int, err error) *FetchError {
	return &FetchError{URL: url, Status: status, Err: err}
}

// ParseError indicates the remote directory document was retrieved but does
// not match the expected structure.
type ParseError struct {
	URL     string
	Detail  string // e.g. "entry us_east: missing dns"
	Err     error
}

func (e *ParseError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("parse failed (url=%s): %s: %v", e.URL, e.Detail, e.Err)
	}
	return fmt.Sprintf("parse failed (url=%s): %v", e.URL, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// NewParseError creates a new parse error
func NewParseError(url, detail string, err error) *ParseError {
	return &ParseError{URL: url, Detail: detail, Err: err}
}

// ValidationError indicates a decoded record or user input failed a basic
// sanity check before reaching the filesystem.
type ValidationError struct {
	Field  string
	Detail string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed [%s]: %s", e.Field, e.Detail)
}

// NewValidationError creates a new validation error
func NewValidationError(field, detail string) *ValidationError {
	return &ValidationError{Field: field, Detail: detail}
}

// WriteError indicates a filesystem write or permission failure.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write failed (path=%s): %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// NewWriteError creates a new write error
func NewWriteError(path string, err error) *WriteError {
	return &WriteError{Path: path, Err: err}
}

// DeleteError indicates a reconciliation cleanup failure other than
// "file not found".
type DeleteError struct {
	Path string
	Err  error
}

func (e *DeleteError) Error() string {
	return fmt.Sprintf("delete failed (path=%s): %v", e.Path, e.Err)
}

func (e *DeleteError) Unwrap() error {
	return e.Err
}

// NewDeleteError creates a new delete error
func NewDeleteError(path string, err error) *DeleteError {
	return &DeleteError{Path: path, Err: err}
}

// ReloadError indicates the network daemon could not be signalled after the
// profile store changed. The new profiles are on disk regardless.
type ReloadError struct {
	Via string // "system bus connect", "systemctl", ...
	Err error
}

func (e *ReloadError) Error() string {
	return fmt.Sprintf("%v (via=%s): %v", ErrReloadFailed, e.Via, e.Err)
}

func (e *ReloadError) Unwrap() error {
	return e.Err
}

func (e *ReloadError) Is(target error) bool {
	return target == ErrReloadFailed
}

// NewReloadError creates a new reload error
func NewReloadError(via string, err error) *ReloadError {
	return &ReloadError{Via: via, Err: err}
}

// StageError wraps a pipeline failure with the stage it occurred in, so the
// operator sees a single message identifying stage and cause.
type StageError struct {
	Stage string // e.g. "fetch", "synthesize", "reconcile"
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("provisioning failed at %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// NewStageError creates a new stage error
func NewStageError(stage string, err error) *StageError {
	return &StageError{Stage: stage, Err: err}
}
