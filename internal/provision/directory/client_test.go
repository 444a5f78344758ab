package directory

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sharederrors "github.com/piatools/pia-provision/internal/shared/errors"
	"github.com/piatools/pia-provision/internal/shared/logger"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, 5*time.Second, logger.NewDevelopment("test")), srv
}

func TestFetch_WellFormedDocument(t *testing.T) {
	body := `{"1":{"name":"US East","dns":"us-east.example.com"},` +
		`"2":{"name":"US West","dns":"us-west.example.com"},` +
		`"info":{"ignored":"yes"}}`

	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	})

	records, err := client.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2, "the info entry must not produce a record")

	// Sorted by name
	assert.Equal(t, "US East", records[0].Name)
	assert.Equal(t, "us-east.example.com", records[0].Address)
	assert.Equal(t, "US West", records[1].Name)
	assert.Equal(t, "us-west.example.com", records[1].Address)
}

func TestFetch_OnlyFirstLineIsParsed(t *testing.T) {
	// The real feed appends a signature blob after the JSON line.
	body := "{\"1\":{\"name\":\"Sweden\",\"dns\":\"sweden.example.com\"}}\nnot json at all"

	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	})

	records, err := client.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Sweden", records[0].Name)
}

func TestFetch_EmptyDocumentYieldsZeroRecords(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"info":{"only":"metadata"}}`))
	})

	records, err := client.Fetch(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestFetch_ServerErrorIsFetchError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	_, err := client.Fetch(context.Background())
	require.Error(t, err)

	var fetchErr *sharederrors.FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Equal(t, http.StatusInternalServerError, fetchErr.Status)
}

func TestFetch_UnreachableHostIsFetchError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := NewClient(url, time.Second, logger.NewDevelopment("test"))
	_, err := client.Fetch(context.Background())

	var fetchErr *sharederrors.FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Zero(t, fetchErr.Status)
}

func TestFetch_MalformedDocumentIsParseError(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"not json", "this is not json"},
		{"not an object", `["a","b"]`},
		{"entry not an object", `{"1":"just a string"}`},
		{"missing dns", `{"1":{"name":"US East"}}`},
		{"missing name", `{"1":{"dns":"us-east.example.com"}}`},
		{"duplicate region name", `{"1":{"name":"US East","dns":"a.example.com"},"2":{"name":"US East","dns":"b.example.com"}}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tc.body))
			})

			_, err := client.Fetch(context.Background())
			require.Error(t, err)

			var parseErr *sharederrors.ParseError
			assert.True(t, errors.As(err, &parseErr), "expected ParseError, got %T: %v", err, err)
		})
	}
}

func TestFetch_ContextCancellation(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.Fetch(ctx)
	var fetchErr *sharederrors.FetchError
	require.True(t, errors.As(err, &fetchErr))
}
