// Package synth turns endpoint records into installable NetworkManager
// connection profiles. It performs no I/O.
package synth

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/piatools/pia-provision/internal/provision/credentials"
	"github.com/piatools/pia-provision/internal/provision/directory"
	sharederrors "github.com/piatools/pia-provision/internal/shared/errors"
	"github.com/piatools/pia-provision/pkg/nmkeyfile"
)

// ProfilePrefix is the naming convention marking profiles as ours; the
// reconciler recognizes and replaces only files carrying it.
const ProfilePrefix = "PIA - "

// nmOpenVPNService is the NetworkManager VPN plugin the profiles target.
const nmOpenVPNService = "org.freedesktop.NetworkManager.openvpn"

// Password ownership flags as NetworkManager defines them.
const (
	passwordFlagsSystem = "0" // secret stored in the profile
	passwordFlagsAgent  = "1" // a secret agent prompts at connect time
)

// Options holds the OpenVPN parameters written into every profile.
type Options struct {
	TrustAnchorPath string
	Port            int
	Cipher          string
	Auth            string
	DNS             string
	// EmbedPassword controls whether an available password is written into
	// the profile. When false, or when no password is available, the
	// profile instructs NetworkManager to prompt at connect time.
	EmbedPassword bool
}

// DefaultOptions returns the parameters PIA's OpenVPN endpoints expect.
func DefaultOptions(trustAnchorPath string) Options {
	return Options{
		TrustAnchorPath: trustAnchorPath,
		Port:            1198,
		Cipher:          "AES-128-CBC",
		Auth:            "SHA1",
		DNS:             "209.222.18.222;209.222.18.218;",
		EmbedPassword:   true,
	}
}

// ProfileDocument is one installable connection profile. It is constructed
// per endpoint, written once, and superseded wholesale on the next run.
type ProfileDocument struct {
	// ID is the stable profile identity, ProfilePrefix + region name.
	// It doubles as the filename in the configuration store.
	ID string
	// UUID is freshly generated on every synthesis; the network-management
	// service only needs it unique at load time, not stable across runs.
	UUID string

	Name            string
	RemoteAddress   string
	Login           string
	password        string // unexported: keeps the secret out of %+v and logs
	embedPassword   bool
	TrustAnchorPath string
	Port            int
	Cipher          string
	Auth            string
	DNS             string
}

// Synthesizer builds profile documents.
type Synthesizer struct {
	opts Options
}

// New creates a synthesizer with the given options.
func New(opts Options) *Synthesizer {
	return &Synthesizer{opts: opts}
}

// Synthesize converts one endpoint record plus credentials into a profile
// document. Degenerate records are rejected so they never reach the
// filesystem.
func (s *Synthesizer) Synthesize(rec directory.EndpointRecord, creds credentials.Credentials) (*ProfileDocument, error) {
	if rec.Name == "" {
		return nil, sharederrors.NewValidationError("name", "endpoint record has empty name")
	}
	if rec.Address == "" {
		return nil, sharederrors.NewValidationError("address", fmt.Sprintf("endpoint %q has empty address", rec.Name))
	}
	if err := creds.Validate(); err != nil {
		return nil, err
	}

	// uuid.NewRandom draws from crypto/rand; a collision would silently
	// merge two endpoints inside NetworkManager.
	id, err := uuid.NewRandom()
	if err != nil {
		return nil, fmt.Errorf("failed to generate profile uuid: %w", err)
	}

	return &ProfileDocument{
		ID:              ProfilePrefix + rec.Name,
		UUID:            id.String(),
		Name:            rec.Name,
		RemoteAddress:   rec.Address,
		Login:           creds.Login,
		password:        creds.Password,
		embedPassword:   s.opts.EmbedPassword && creds.Password != "",
		TrustAnchorPath: s.opts.TrustAnchorPath,
		Port:            s.opts.Port,
		Cipher:          s.opts.Cipher,
		Auth:            s.opts.Auth,
		DNS:             s.opts.DNS,
	}, nil
}

// HasEmbeddedPassword reports whether the rendered profile will carry the
// password on disk.
func (p *ProfileDocument) HasEmbeddedPassword() bool {
	return p.embedPassword
}

// Keyfile builds the NetworkManager keyfile document for the profile.
func (p *ProfileDocument) Keyfile() *nmkeyfile.Document {
	doc := nmkeyfile.New()

	doc.AddSection("connection").
		Set("id", p.ID).
		Set("uuid", p.UUID).
		Set("type", "vpn").
		Set("autoconnect", "false")

	vpn := doc.AddSection("vpn").
		Set("service-type", nmOpenVPNService).
		Set("username", p.Login).
		Set("comp-lzo", "yes").
		Set("remote", p.RemoteAddress).
		Set("connection-type", "password")
	if p.embedPassword {
		vpn.Set("password-flags", passwordFlagsSystem)
	} else {
		vpn.Set("password-flags", passwordFlagsAgent)
	}
	vpn.
		Set("ca", p.TrustAnchorPath).
		Set("port", fmt.Sprintf("%d", p.Port)).
		Set("auth", p.Auth).
		Set("cipher", p.Cipher)

	if p.embedPassword {
		doc.AddSection("vpn-secrets").
			Set("password", p.password)
	}

	doc.AddSection("ipv4").
		Set("method", "auto").
		Set("dns", p.DNS).
		Set("ignore-auto-dns", "true")

	doc.AddSection("ipv6").
		Set("method", "ignore")

	return doc
}

// Render serializes the profile to its on-disk keyfile form.
func (p *ProfileDocument) Render() []byte {
	return p.Keyfile().Marshal()
}
