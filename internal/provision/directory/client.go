// Package directory fetches the remote PIA server directory and decodes it
// into normalized endpoint records.
package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	sharederrors "github.com/piatools/pia-provision/internal/shared/errors"
	"github.com/piatools/pia-provision/internal/shared/logger"
)

// EndpointRecord is one VPN server region from the remote directory.
// Records are created fresh on every fetch and discarded after synthesis.
type EndpointRecord struct {
	// Name is the human-readable region label, e.g. "US East".
	Name string
	// Address is the DNS hostname or IP of the VPN gateway.
	Address string
}

// metadataKey is the reserved non-server entry in the directory document.
const metadataKey = "info"

// maxDocumentSize bounds how much of the response we are willing to read.
const maxDocumentSize = 4 << 20

// Client fetches the server directory over HTTP.
type Client struct {
	url        string
	httpClient *http.Client
	logger     *logger.Logger
}

// NewClient creates a directory client for the given URL with a bounded
// request timeout.
func NewClient(url string, timeout time.Duration, log *logger.Logger) *Client {
	if log == nil {
		log = logger.NewDevelopment("directory")
	}

	return &Client{
		url: url,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: log,
	}
}

// directoryEntry is the wire shape of one server entry.
type directoryEntry struct {
	Name string `json:"name"`
	DNS  string `json:"dns"`
}

// Fetch retrieves and decodes the server directory. The result is sorted by
// region name so repeated runs see a deterministic order. Fetch has no side
// effects: nothing is returned unless the whole document decoded cleanly.
func (c *Client) Fetch(ctx context.Context) ([]EndpointRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, sharederrors.NewFetchError(c.url, 0, err)
	}
	req.Header.Set("Accept", "application/json")

	c.logger.Debug("fetching server directory", "url", c.url)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, sharederrors.NewFetchError(c.url, 0, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize))
	if err != nil {
		return nil, sharederrors.NewFetchError(c.url, resp.StatusCode, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Error("directory endpoint returned non-2xx", "status", resp.StatusCode)
		return nil, sharederrors.NewFetchError(c.url, resp.StatusCode,
			fmt.Errorf("unexpected status %s", resp.Status))
	}

	records, err := decode(c.url, body)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("decoded server directory", "endpoints", len(records))
	return records, nil
}

// decode parses the directory document. Only the first line of the body is
// JSON; the remainder is a signature blob and is ignored.
func decode(url string, body []byte) ([]EndpointRecord, error) {
	doc := firstLine(body)

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(doc, &raw); err != nil {
		return nil, sharederrors.NewParseError(url, "document is not a JSON object", err)
	}

	seen := make(map[string]string, len(raw)) // region name -> server id
	records := make([]EndpointRecord, 0, len(raw))

	for id, msg := range raw {
		if id == metadataKey {
			continue
		}

		var entry directoryEntry
		if err := json.Unmarshal(msg, &entry); err != nil {
			return nil, sharederrors.NewParseError(url, fmt.Sprintf("entry %q is not a server object", id), err)
		}
		if entry.Name == "" {
			return nil, sharederrors.NewParseError(url, fmt.Sprintf("entry %q: missing name", id), nil)
		}
		if entry.DNS == "" {
			return nil, sharederrors.NewParseError(url, fmt.Sprintf("entry %q: missing dns", id), nil)
		}
		if prev, dup := seen[entry.Name]; dup {
			return nil, sharederrors.NewParseError(url,
				fmt.Sprintf("entries %q and %q share region name %q", prev, id, entry.Name), nil)
		}
		seen[entry.Name] = id

		records = append(records, EndpointRecord{
			Name:    entry.Name,
			Address: entry.DNS,
		})
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].Name < records[j].Name
	})

	return records, nil
}

func firstLine(body []byte) []byte {
	for i, b := range body {
		if b == '\n' {
			return body[:i]
		}
	}
	return body
}
