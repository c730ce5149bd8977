// Package loader parses serialized graphs into the persistent store in the
// background while reporting the store's on-disk growth.
package loader

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/brunobiangulo/rdf2rest/parser"
	"github.com/brunobiangulo/rdf2rest/rdf"
	"github.com/brunobiangulo/rdf2rest/store"
)

// Defaults for Config.
const (
	DefaultPollInterval = 5 * time.Second
	DefaultBatchSize    = 1000
)

var (
	// ErrInProgress is returned when a load is requested while another job
	// is open. A job stays open until its poller settles, which is up to
	// two poll intervals after the merge finished.
	ErrInProgress = errors.New("loader: load already in progress")

	// ErrParse wraps decoding failures of the source file.
	ErrParse = errors.New("loader: malformed source")
)

// Sink is the persistent side of a load. *store.Store implements it.
type Sink interface {
	AddTriples(ctx context.Context, ts []rdf.Triple) (int, error)
	BindNamespaces(ctx context.Context, ns rdf.Namespaces) error
	CreateLoad(ctx context.Context, l store.Load) error
	FinishLoad(ctx context.Context, id, status string, triples int64, duration time.Duration, errMsg string) error
	LatestLoad(ctx context.Context, source, contentHash string) (*store.Load, error)

	// Dir is the directory whose size is polled.
	Dir() string
}

// Config tunes a Loader.
type Config struct {
	PollInterval time.Duration
	BatchSize    int
	Registry     *parser.Registry
	Observers    []Observer
}

// Request describes one load.
type Request struct {
	// Source is the file to parse. Compressed files are recognised by
	// their extension.
	Source string

	// Format overrides the format derived from Source.
	Format string

	// Blocking makes Load wait for both the merge and the poll task.
	Blocking bool

	// Force reloads a file whose content hash matches a finished load.
	Force bool
}

// Loader runs at most one load job at a time against a sink.
type Loader struct {
	sink Sink
	cfg  Config

	mu      sync.Mutex
	current *Job

	dirSize func(dir string) (int64, error)
}

// New creates a loader, filling unset config fields with defaults.
func New(sink Sink, cfg Config) *Loader {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Registry == nil {
		cfg.Registry = parser.NewRegistry()
	}
	return &Loader{sink: sink, cfg: cfg, dirSize: DirSize}
}

// Status returns a snapshot of the most recent job, or a zero Status when
// nothing has been loaded.
func (l *Loader) Status() Status {
	l.mu.Lock()
	j := l.current
	l.mu.Unlock()
	if j == nil {
		return Status{}
	}
	return j.Status()
}

// Load starts a job. Unless req.Blocking is set it returns as soon as both
// tasks are running; readers of the sink observe triples as batches commit.
// The tasks stop when ctx is cancelled.
func (l *Loader) Load(ctx context.Context, req Request) (*Job, error) {
	abs, err := filepath.Abs(req.Source)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}
	format := req.Format
	if format == "" {
		format = parser.FormatOf(abs)
	}
	p, err := l.cfg.Registry.Get(format)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(abs); err != nil {
		return nil, fmt.Errorf("opening source: %w", err)
	}

	l.mu.Lock()
	if l.current != nil && !l.current.finished() {
		l.mu.Unlock()
		return nil, ErrInProgress
	}
	job := newJob(abs, format)
	l.current = job
	l.mu.Unlock()

	size, _ := l.dirSize(l.sink.Dir())
	job.cell.size.Store(size)
	l.emit(EventStarted, job)

	// The poller outlives a failed merge; only ctx stops it early.
	var g errgroup.Group
	g.Go(func() error { return l.merge(ctx, job, p, req.Force) })
	g.Go(func() error { return l.poll(ctx, job) })
	go func() {
		job.err = g.Wait()
		close(job.done)
	}()

	if req.Blocking {
		return job, job.Wait(ctx)
	}
	return job, nil
}

// merge is the parse task. Every return path clears the loading flag.
func (l *Loader) merge(ctx context.Context, job *Job, p parser.Parser, force bool) (err error) {
	start := time.Now()
	recorded := false
	defer func() {
		if err == nil {
			return
		}
		job.cell.finish(err)
		if recorded {
			// The registry entry outlives a cancelled context.
			l.sink.FinishLoad(context.WithoutCancel(ctx), job.ID, store.LoadFailed,
				job.cell.triples.Load(), time.Since(start), err.Error())
		}
		l.emit(EventFailed, job)
	}()

	hash, err := fileHash(job.Source)
	if err != nil {
		return fmt.Errorf("hashing %s: %w", job.Source, err)
	}
	if !force {
		prev, err := l.sink.LatestLoad(ctx, job.Source, hash)
		switch {
		case err == nil:
			job.cell.mu.Lock()
			job.cell.skipped = true
			job.cell.mu.Unlock()
			job.cell.triples.Store(prev.Triples)
			job.cell.finish(nil)
			l.emit(EventSkipped, job)
			return nil
		case !errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("checking previous loads: %w", err)
		}
	}

	if err := l.sink.CreateLoad(ctx, store.Load{
		ID:          job.ID,
		Source:      job.Source,
		ContentHash: hash,
		Format:      job.Format,
	}); err != nil {
		return fmt.Errorf("registering load: %w", err)
	}
	recorded = true

	f, err := parser.OpenFile(job.Source)
	if err != nil {
		return fmt.Errorf("opening %s: %w", job.Source, err)
	}
	defer f.Close()

	batch := make([]rdf.Triple, 0, l.cfg.BatchSize)
	var sinkErr error
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := l.sink.AddTriples(ctx, batch)
		if err != nil {
			sinkErr = fmt.Errorf("merging batch: %w", err)
			return sinkErr
		}
		job.cell.triples.Add(int64(len(batch)))
		job.cell.added.Add(int64(n))
		batch = batch[:0]
		return nil
	}

	res, err := p.Parse(ctx, f, parser.Options{BlankScope: job.blankScope()}, func(t rdf.Triple) error {
		batch = append(batch, t)
		if len(batch) >= l.cfg.BatchSize {
			return flush()
		}
		return nil
	})
	if err != nil {
		if sinkErr != nil || ctx.Err() != nil {
			return err
		}
		return fmt.Errorf("%w: %s: %w", ErrParse, job.Source, err)
	}
	if err := flush(); err != nil {
		return err
	}
	if len(res.Namespaces) > 0 {
		if err := l.sink.BindNamespaces(ctx, res.Namespaces); err != nil {
			return fmt.Errorf("binding namespaces: %w", err)
		}
	}
	if err := l.sink.FinishLoad(ctx, job.ID, store.LoadReady, job.cell.triples.Load(), time.Since(start), ""); err != nil {
		return fmt.Errorf("finishing load: %w", err)
	}

	// Clear the flag before the event so observers see the final state.
	job.cell.finish(nil)
	l.emit(EventFinished, job)
	return nil
}

// poll is the size task. It reports every change of the store directory's
// size and exits after the first unchanged poll once loading has finished,
// whether the merge succeeded or not. Measurement failures skip a tick.
func (l *Loader) poll(ctx context.Context, job *Job) error {
	ticker := time.NewTicker(l.cfg.PollInterval)
	defer ticker.Stop()

	last := job.cell.size.Load()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		// Read the flag first: a cleared flag means every write happened
		// before the measurement.
		loading := job.cell.loading.Load()
		size, err := l.dirSize(l.sink.Dir())
		if err != nil {
			slog.Warn("loader: measuring store", "job", job.ID, "error", err)
			continue
		}
		if size != last {
			last = size
			job.cell.size.Store(size)
			l.emit(EventSize, job)
			continue
		}
		if !loading {
			l.emit(EventSettled, job)
			return nil
		}
	}
}

func (l *Loader) emit(kind EventKind, job *Job) {
	if len(l.cfg.Observers) == 0 {
		return
	}
	ev := Event{Kind: kind, Status: job.Status()}
	for _, o := range l.cfg.Observers {
		o.Observe(ev)
	}
}

// Job is a running or finished load.
type Job struct {
	ID     string
	Source string
	Format string

	cell statusCell
	done chan struct{}
	err  error
}

func newJob(source, format string) *Job {
	j := &Job{
		ID:     uuid.NewString(),
		Source: source,
		Format: format,
		done:   make(chan struct{}),
	}
	j.cell.jobID = j.ID
	j.cell.source = source
	j.cell.format = format
	j.cell.started = time.Now()
	j.cell.loading.Store(true)
	return j
}

// Wait blocks until both tasks have finished and returns the load error.
func (j *Job) Wait(ctx context.Context) error {
	select {
	case <-j.done:
		return j.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed when both tasks have finished.
func (j *Job) Done() <-chan struct{} { return j.done }

// Status returns a snapshot of the job.
func (j *Job) Status() Status { return j.cell.snapshot() }

func (j *Job) finished() bool {
	select {
	case <-j.done:
		return true
	default:
		return false
	}
}

// blankScope prefixes blank-node labels so that "_:b0" in two files never
// names the same node.
func (j *Job) blankScope() string {
	return j.ID[:8] + "-"
}

// DirSize sums the sizes of the regular files under dir.
func DirSize(dir string) (int64, error) {
	var total int64
	err := filepath.WalkDir(dir, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			// Files such as SQLite's -shm may vanish between listing and stat.
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		total += info.Size()
		return nil
	})
	return total, err
}

// fileHash computes the SHA-256 hash of a file's content.
func fileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
