package errors

import (
	"errors"
	"io/fs"
	"strings"
	"testing"
)

func TestFetchError_Message(t *testing.T) {
	err := NewFetchError("https://example.com/servers", 500, errors.New("server error"))
	if !strings.Contains(err.Error(), "status=500") {
		t.Errorf("expected status in message, got %q", err.Error())
	}
	if !strings.Contains(err.Error(), "https://example.com/servers") {
		t.Errorf("expected url in message, got %q", err.Error())
	}

	// No status when the request never completed
	err = NewFetchError("https://example.com/servers", 0, errors.New("timeout"))
	if strings.Contains(err.Error(), "status=") {
		t.Errorf("did not expect status in message, got %q", err.Error())
	}
}

func TestUnwrapChains(t *testing.T) {
	inner := fs.ErrPermission

	cases := []struct {
		name string
		err  error
	}{
		{"fetch", NewFetchError("u", 0, inner)},
		{"parse", NewParseError("u", "d", inner)},
		{"write", NewWriteError("/p", inner)},
		{"delete", NewDeleteError("/p", inner)},
		{"stage", NewStageError("reconcile", inner)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if !errors.Is(tc.err, inner) {
				t.Errorf("errors.Is failed to find wrapped error in %T", tc.err)
			}
		})
	}
}

func TestStageError_WrapsTypedError(t *testing.T) {
	err := NewStageError("fetch", NewFetchError("u", 404, errors.New("not found")))

	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatal("errors.As failed to find FetchError through StageError")
	}
	if fetchErr.Status != 404 {
		t.Errorf("wrong status: got %d", fetchErr.Status)
	}
}

func TestValidationError_Message(t *testing.T) {
	err := NewValidationError("name", "must not be empty")
	want := "validation failed [name]: must not be empty"
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}
}
