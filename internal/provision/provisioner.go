// Package provision wires the provisioning pipeline together: fetch the
// server directory, synthesize NetworkManager profiles, reconcile the
// connection store and signal the network daemon.
package provision

import (
	"context"
	"time"

	"github.com/piatools/pia-provision/internal/provision/config"
	"github.com/piatools/pia-provision/internal/provision/credentials"
	"github.com/piatools/pia-provision/internal/provision/directory"
	"github.com/piatools/pia-provision/internal/provision/netreload"
	"github.com/piatools/pia-provision/internal/provision/store"
	"github.com/piatools/pia-provision/internal/provision/synth"
	"github.com/piatools/pia-provision/internal/provision/trust"
	sharederrors "github.com/piatools/pia-provision/internal/shared/errors"
	"github.com/piatools/pia-provision/internal/shared/logger"
	"github.com/piatools/pia-provision/pkg/events"
)

// Pipeline stage names, also used as event types.
const (
	StageCredentials = "credentials"
	StageTrust       = "trust"
	StageFetch       = "fetch"
	StageSynthesize  = "synthesize"
	StageReconcile   = "reconcile"
	StageReload      = "reload"
)

// EventStageStarted and EventStageCompleted are published around every
// pipeline stage with a "stage" metadata key.
const (
	EventStageStarted   = "provision.stage.started"
	EventStageCompleted = "provision.stage.completed"
)

// DirectoryFetcher retrieves the current endpoint set.
type DirectoryFetcher interface {
	Fetch(ctx context.Context) ([]directory.EndpointRecord, error)
}

// TrustEnsurer makes the CA the profiles reference present on disk.
type TrustEnsurer interface {
	Ensure(ctx context.Context) error
}

// Reconciler replaces the managed profile set in the connection store.
type Reconciler interface {
	Reconcile(ctx context.Context, docs []*synth.ProfileDocument) (*store.Report, error)
}

// Result summarizes a completed (or partially completed) run.
type Result struct {
	// Endpoints is the number of regions fetched from the directory.
	Endpoints int
	// Removed and Written mirror the store report.
	Removed []string
	Written []string
	// StoreDir is where the profiles live.
	StoreDir string
	// ReloadErr records a failed reload signal. The profiles are on disk;
	// this is surfaced as a warning only.
	ReloadErr error
}

// Provisioner runs the pipeline. Collaborators are interfaces so tests can
// run the full sequence against local fakes.
type Provisioner struct {
	creds    credentials.Provider
	anchor   TrustEnsurer
	fetcher  DirectoryFetcher
	synth    *synth.Synthesizer
	recon    Reconciler
	reloader netreload.Reloader

	bus    *events.Bus
	logger *logger.Logger
}

// New assembles a provisioner from configuration using the default
// collaborators. creds may be pre-built (e.g. a command-line login); when
// nil it is derived from cfg.CredentialSource.
func New(cfg *config.Config, creds credentials.Provider, log *logger.Logger) (*Provisioner, error) {
	if log == nil {
		log = logger.NewDevelopment("provision")
	}

	if creds == nil {
		var err error
		creds, err = credentials.NewProvider(cfg.CredentialSource, "")
		if err != nil {
			return nil, err
		}
	}

	opts := synth.Options{
		TrustAnchorPath: cfg.CAPath,
		Port:            cfg.Port,
		Cipher:          cfg.Cipher,
		Auth:            cfg.Auth,
		DNS:             cfg.DNS,
		EmbedPassword:   cfg.EmbedPassword,
	}

	return &Provisioner{
		creds:    creds,
		anchor:   trust.New(cfg.CAPath, log.WithStage(StageTrust)),
		fetcher:  directory.NewClient(cfg.DirectoryURL, time.Duration(cfg.FetchTimeout)*time.Second, log.WithStage(StageFetch)),
		synth:    synth.New(opts),
		recon:    store.NewDefault(cfg.StoreDir, log.WithStage(StageReconcile)),
		reloader: netreload.ForMode(cfg.ReloadMode, log.WithStage(StageReload)),
		bus:      events.NewBus(),
		logger:   log,
	}, nil
}

// NewWithCollaborators assembles a provisioner from explicit parts.
func NewWithCollaborators(
	creds credentials.Provider,
	anchor TrustEnsurer,
	fetcher DirectoryFetcher,
	synthesizer *synth.Synthesizer,
	recon Reconciler,
	reloader netreload.Reloader,
	log *logger.Logger,
) *Provisioner {
	if log == nil {
		log = logger.NewDevelopment("provision")
	}
	return &Provisioner{
		creds:    creds,
		anchor:   anchor,
		fetcher:  fetcher,
		synth:    synthesizer,
		recon:    recon,
		reloader: reloader,
		bus:      events.NewBus(),
		logger:   log,
	}
}

// Events exposes the progress bus for subscribers.
func (p *Provisioner) Events() *events.Bus {
	return p.bus
}

// Run executes the pipeline once. Any stage failure is terminal and wrapped
// with the stage name, except the final reload signal, which only warns: at
// that point the profiles are already committed. On a partial reconciliation
// the returned Result still lists what was committed alongside the error.
func (p *Provisioner) Run(ctx context.Context) (*Result, error) {
	result := &Result{}

	creds, err := runStage(p, StageCredentials, func() (credentials.Credentials, error) {
		return p.creds.Credentials(ctx)
	})
	if err != nil {
		return result, err
	}

	if _, err := runStage(p, StageTrust, func() (struct{}, error) {
		return struct{}{}, p.anchor.Ensure(ctx)
	}); err != nil {
		return result, err
	}

	records, err := runStage(p, StageFetch, func() ([]directory.EndpointRecord, error) {
		return p.fetcher.Fetch(ctx)
	})
	if err != nil {
		return result, err
	}
	result.Endpoints = len(records)
	if len(records) == 0 {
		// Still reconcile: stale profiles for decommissioned regions must
		// not outlive the directory that no longer lists them.
		p.logger.Warn("server directory is empty, store will be purged")
	}

	docs, err := runStage(p, StageSynthesize, func() ([]*synth.ProfileDocument, error) {
		docs := make([]*synth.ProfileDocument, 0, len(records))
		for _, rec := range records {
			doc, err := p.synth.Synthesize(rec, creds)
			if err != nil {
				return nil, err
			}
			docs = append(docs, doc)
		}
		return docs, nil
	})
	if err != nil {
		return result, err
	}

	report, err := runStage(p, StageReconcile, func() (*store.Report, error) {
		return p.recon.Reconcile(ctx, docs)
	})
	if report != nil {
		result.Removed = report.Removed
		result.Written = report.Written
	}
	if err != nil {
		return result, err
	}

	// Fire-and-forget: a failed reload leaves valid profiles on disk, the
	// operator can reload by hand.
	if _, err := runStage(p, StageReload, func() (struct{}, error) {
		return struct{}{}, p.reloader.Reload(ctx)
	}); err != nil {
		p.logger.Warn("reload signal failed, profiles are installed", "error", err)
		result.ReloadErr = err
	}

	p.logger.Info("provisioning complete",
		"endpoints", result.Endpoints,
		"written", len(result.Written),
		"removed", len(result.Removed))
	return result, nil
}

// runStage wraps one pipeline stage with progress events and stage-tagged
// error wrapping.
func runStage[T any](p *Provisioner, stage string, fn func() (T, error)) (T, error) {
	p.publish(EventStageStarted, stage)

	out, err := fn()
	if err != nil {
		// out is passed through: the reconcile stage reports what it
		// committed even when it fails partway.
		return out, sharederrors.NewStageError(stage, err)
	}

	p.publish(EventStageCompleted, stage)
	return out, nil
}

func (p *Provisioner) publish(eventType, stage string) {
	ev := events.NewBaseEvent(eventType, map[string]any{"stage": stage})
	if err := p.bus.Publish(ev); err != nil {
		p.logger.Debug("event publish failed", "event", eventType, "error", err)
	}
}
