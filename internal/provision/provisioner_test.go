package provision

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/piatools/pia-provision/internal/provision/credentials"
	"github.com/piatools/pia-provision/internal/provision/directory"
	"github.com/piatools/pia-provision/internal/provision/store"
	"github.com/piatools/pia-provision/internal/provision/synth"
	"github.com/piatools/pia-provision/internal/provision/trust"
	sharederrors "github.com/piatools/pia-provision/internal/shared/errors"
	"github.com/piatools/pia-provision/pkg/events"
)

const directoryDocument = `{"info": {"web_ips": ["1.2.3.4"]}, "us_east": {"name": "US East", "dns": "us-east.example.com"}, "sweden": {"name": "Sweden", "dns": "sweden.example.com"}}
junk trailer that must be ignored`

type fakeReloader struct {
	calls int
	err   error
}

func (f *fakeReloader) Reload(_ context.Context) error {
	f.calls++
	return f.err
}

type fixture struct {
	provisioner *Provisioner
	storeDir    string
	caPath      string
	reloader    *fakeReloader
}

func newFixture(t *testing.T, serverURL string) *fixture {
	t.Helper()

	root := t.TempDir()
	f := &fixture{
		storeDir: filepath.Join(root, "system-connections"),
		caPath:   filepath.Join(root, "openvpn", "ca.rsa.2048.crt"),
		reloader: &fakeReloader{},
	}

	f.provisioner = NewWithCollaborators(
		credentials.Static{Creds: credentials.Credentials{Login: "p1234567", Password: "hunter2"}},
		trust.New(f.caPath, nil),
		directory.NewClient(serverURL, 5*time.Second, nil),
		synth.New(synth.DefaultOptions(f.caPath)),
		store.NewDefault(f.storeDir, nil),
		f.reloader,
		nil,
	)
	return f
}

func snapshotStore(t *testing.T, dir string) map[string]string {
	t.Helper()
	snapshot := map[string]string{}
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return snapshot
	}
	require.NoError(t, err)
	for _, entry := range entries {
		content, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		require.NoError(t, err)
		snapshot[entry.Name()] = string(content)
	}
	return snapshot
}

func TestRunProvisionsFromDirectory(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(directoryDocument))
	}))
	defer srv.Close()

	f := newFixture(t, srv.URL)
	result, err := f.provisioner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, result.Endpoints)
	assert.Equal(t, []string{"PIA - Sweden", "PIA - US East"}, result.Written)
	assert.Equal(t, 1, f.reloader.calls)

	for _, name := range result.Written {
		info, err := os.Stat(filepath.Join(f.storeDir, name))
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
	}

	content, err := os.ReadFile(filepath.Join(f.storeDir, "PIA - Sweden"))
	require.NoError(t, err)
	assert.Contains(t, string(content), "remote=sweden.example.com")
	assert.Contains(t, string(content), "ca="+f.caPath)
	assert.Contains(t, string(content), "username=p1234567")

	// Trust anchor installed alongside.
	anchor, err := os.ReadFile(f.caPath)
	require.NoError(t, err)
	assert.Contains(t, string(anchor), "BEGIN CERTIFICATE")
}

func TestRerunReplacesStaleProfilesWithFreshIdentity(t *testing.T) {
	document := directoryDocument
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(document))
	}))
	defer srv.Close()

	f := newFixture(t, srv.URL)
	_, err := f.provisioner.Run(context.Background())
	require.NoError(t, err)

	first, err := os.ReadFile(filepath.Join(f.storeDir, "PIA - Sweden"))
	require.NoError(t, err)

	// Second run: US East was decommissioned.
	document = `{"sweden": {"name": "Sweden", "dns": "sweden.example.com"}}`
	result, err := f.provisioner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"PIA - Sweden"}, result.Written)
	assert.Contains(t, result.Removed, "PIA - US East")

	_, err = os.Stat(filepath.Join(f.storeDir, "PIA - US East"))
	assert.True(t, os.IsNotExist(err))

	// The surviving region's profile carries a new uuid.
	second, err := os.ReadFile(filepath.Join(f.storeDir, "PIA - Sweden"))
	require.NoError(t, err)
	assert.NotEqual(t, string(first), string(second))
}

func TestFetchFailureLeavesStoreUntouched(t *testing.T) {
	status := http.StatusOK
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		w.Write([]byte(directoryDocument))
	}))
	defer srv.Close()

	f := newFixture(t, srv.URL)
	_, err := f.provisioner.Run(context.Background())
	require.NoError(t, err)
	before := snapshotStore(t, f.storeDir)
	reloadsBefore := f.reloader.calls

	status = http.StatusInternalServerError
	_, err = f.provisioner.Run(context.Background())
	require.Error(t, err)

	var stageErr *sharederrors.StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StageFetch, stageErr.Stage)

	var fetchErr *sharederrors.FetchError
	assert.ErrorAs(t, err, &fetchErr)

	assert.Equal(t, before, snapshotStore(t, f.storeDir))
	assert.Equal(t, reloadsBefore, f.reloader.calls)
}

func TestPartialWriteSurfacesCommittedProfiles(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(directoryDocument))
	}))
	defer srv.Close()

	f := newFixture(t, srv.URL)

	// Block the second profile's slot with a directory; cleanup skips it,
	// the write fails on it.
	require.NoError(t, os.MkdirAll(filepath.Join(f.storeDir, "PIA - US East"), 0755))

	result, err := f.provisioner.Run(context.Background())
	require.Error(t, err)

	var partial *store.PartialWriteError
	require.ErrorAs(t, err, &partial)
	assert.Equal(t, []string{"PIA - Sweden"}, partial.Written)
	assert.Equal(t, []string{"PIA - Sweden"}, result.Written)
	assert.Equal(t, 0, f.reloader.calls)
}

func TestReloadFailureIsNotFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(directoryDocument))
	}))
	defer srv.Close()

	f := newFixture(t, srv.URL)
	f.reloader.err = errors.New("dbus unavailable")

	result, err := f.provisioner.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, result.Written, 2)
	require.Error(t, result.ReloadErr)
}

func TestEmptyDirectoryPurgesStore(t *testing.T) {
	document := directoryDocument
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(document))
	}))
	defer srv.Close()

	f := newFixture(t, srv.URL)
	_, err := f.provisioner.Run(context.Background())
	require.NoError(t, err)

	document = `{"info": {"web_ips": []}}`
	result, err := f.provisioner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, result.Endpoints)
	assert.Empty(t, result.Written)
	assert.Len(t, result.Removed, 2)
	assert.Empty(t, snapshotStore(t, f.storeDir))
}

func TestStageEventsPublished(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(directoryDocument))
	}))
	defer srv.Close()

	f := newFixture(t, srv.URL)

	var completed []string
	f.provisioner.Events().Subscribe(EventStageCompleted, func(ev events.Event) error {
		completed = append(completed, ev.Metadata()["stage"].(string))
		return nil
	})

	_, err := f.provisioner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{
		StageCredentials,
		StageTrust,
		StageFetch,
		StageSynthesize,
		StageReconcile,
		StageReload,
	}, completed)
}
