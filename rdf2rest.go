// Package rdf2rest serves a persistent RDF triple store as a navigable REST
// API and carves partitions out of larger datasets.
package rdf2rest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/brunobiangulo/rdf2rest/loader"
	"github.com/brunobiangulo/rdf2rest/notify"
	"github.com/brunobiangulo/rdf2rest/parser"
	"github.com/brunobiangulo/rdf2rest/projector"
	"github.com/brunobiangulo/rdf2rest/rdf"
	"github.com/brunobiangulo/rdf2rest/store"
)

// Engine is the main entry point: it owns the store, loads datasets into it
// and projects stored resources.
type Engine interface {
	// Load merges a serialized graph into the store. Unchanged files are
	// skipped unless WithForce is given; without WithBlocking the load runs
	// in the background until ctx is cancelled.
	Load(ctx context.Context, path string, opts ...LoadOption) (*loader.Job, error)

	// LoadStatus reports the current or last load.
	LoadStatus() loader.Status

	// Resource projects the resource id under the base URL.
	Resource(ctx context.Context, base, id string) (*rdf.Graph, error)

	// Service describes the service at base with links to every partition
	// root.
	Service(ctx context.Context, base string) (*rdf.Graph, error)

	// Stats returns store counts.
	Stats(ctx context.Context) (*store.Stats, error)

	// Namespaces returns the bindings used for serialized output.
	Namespaces() rdf.Namespaces

	// Store returns the underlying store for diagnostic access.
	Store() *store.Store

	// Close cleanly shuts down the engine.
	Close() error
}

// LoadOption configures a load.
type LoadOption func(*loader.Request)

// WithBlocking waits for the load to settle before returning.
func WithBlocking() LoadOption {
	return func(r *loader.Request) { r.Blocking = true }
}

// WithForce reloads a file even if its content hash is unchanged.
func WithForce() LoadOption {
	return func(r *loader.Request) { r.Force = true }
}

// WithFormat overrides the format implied by the file extension.
func WithFormat(format string) LoadOption {
	return func(r *loader.Request) { r.Format = format }
}

type engine struct {
	cfg       Config
	store     *store.Store
	loader    *loader.Loader
	projector *projector.Projector
	notifier  *notify.Publisher
	closed    atomic.Bool
}

// New validates cfg, opens the store and wires the loader and projector.
// Observers receive loader events in addition to the structured log.
func New(cfg Config, observers ...loader.Observer) (Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	pcfg, err := cfg.projectorConfig()
	if err != nil {
		return nil, err
	}

	storePath := cfg.ResolveStorePath()
	s, err := store.Open(storePath)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	p, err := projector.New(s, pcfg)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	obs := append([]loader.Observer{loader.LogObserver{}}, observers...)
	var pub *notify.Publisher
	if cfg.NATS.URL != "" {
		pub, err = notify.Connect(cfg.NATS.URL, cfg.NATS.Subject)
		if err != nil {
			s.Close()
			return nil, err
		}
		obs = append(obs, pub)
	}

	l := loader.New(s, loader.Config{
		PollInterval: time.Duration(cfg.PollInterval),
		BatchSize:    cfg.BatchSize,
		Observers:    obs,
	})

	slog.Info("engine: store opened", "path", storePath)
	return &engine{
		cfg:       cfg,
		store:     s,
		loader:    l,
		projector: p,
		notifier:  pub,
	}, nil
}

func (e *engine) check() error {
	if e.closed.Load() {
		return ErrStoreClosed
	}
	return nil
}

// Load starts or runs a load and maps loader failures onto the package's
// error taxonomy.
func (e *engine) Load(ctx context.Context, path string, opts ...LoadOption) (*loader.Job, error) {
	if err := e.check(); err != nil {
		return nil, err
	}
	req := loader.Request{Source: path}
	for _, o := range opts {
		o(&req)
	}

	job, err := e.loader.Load(ctx, req)
	switch {
	case err == nil:
		return job, nil
	case errors.Is(err, loader.ErrInProgress):
		return nil, &APIError{
			Status:  http.StatusConflict,
			Message: "a dataset is already being loaded",
			Payload: map[string]any{"job_id": e.loader.Status().JobID},
			Err:     errors.Join(ErrConflict, ErrLoadInProgress),
		}
	case errors.Is(err, parser.ErrUnknownFormat):
		return nil, fmt.Errorf("%w: %w", ErrUnsupportedFormat, err)
	case errors.Is(err, loader.ErrParse):
		return job, fmt.Errorf("%w: %w", ErrParsingFailed, err)
	default:
		return job, err
	}
}

func (e *engine) LoadStatus() loader.Status {
	return e.loader.Status()
}

func (e *engine) Resource(ctx context.Context, base, id string) (*rdf.Graph, error) {
	if err := e.check(); err != nil {
		return nil, err
	}
	g, err := e.projector.Resource(ctx, base, id)
	if errors.Is(err, projector.ErrNotFound) {
		return nil, NotFound("Resource "+id+" not found", nil)
	}
	return g, err
}

func (e *engine) Service(ctx context.Context, base string) (*rdf.Graph, error) {
	if err := e.check(); err != nil {
		return nil, err
	}
	return e.projector.Service(ctx, base), nil
}

func (e *engine) Stats(ctx context.Context) (*store.Stats, error) {
	if err := e.check(); err != nil {
		return nil, err
	}
	return e.store.Stats(ctx)
}

func (e *engine) Namespaces() rdf.Namespaces {
	return e.cfg.namespaces()
}

// Store returns the underlying store for diagnostic access.
func (e *engine) Store() *store.Store {
	return e.store
}

// Close shuts down the engine.
func (e *engine) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}
	var errs []error
	if e.notifier != nil {
		errs = append(errs, e.notifier.Close())
	}
	errs = append(errs, e.store.Close())
	return errors.Join(errs...)
}

// ReadGraph parses files into one in-memory graph. Blank-node labels are
// scoped per file and the files' prefix bindings are kept.
func ReadGraph(ctx context.Context, paths ...string) (*rdf.Graph, error) {
	reg := parser.NewRegistry()
	g := rdf.NewGraph()
	for i, path := range paths {
		p, err := reg.ForPath(path)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
		}
		r, err := parser.OpenFile(path)
		if err != nil {
			return nil, fmt.Errorf("opening source: %w", err)
		}
		start := time.Now()
		res, err := parser.ParseGraph(ctx, p, r, parser.Options{BlankScope: "f" + strconv.Itoa(i) + "-"}, g)
		r.Close()
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrParsingFailed, filepath.Base(path), err)
		}
		slog.Info("parsed source", "file", filepath.Base(path), "triples", res.Triples, "elapsed", time.Since(start))
	}
	return g, nil
}
