package loader

import (
	"sync"
	"sync/atomic"
	"time"
)

// Status is a snapshot of one load job.
type Status struct {
	JobID    string    `json:"job_id"`
	Source   string    `json:"source"`
	Format   string    `json:"format,omitempty"`
	Loading  bool      `json:"loading"`
	Skipped  bool      `json:"skipped,omitempty"`
	Size     int64     `json:"size"`
	Triples  int64     `json:"triples"`
	Added    int64     `json:"added"`
	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished,omitzero"`
	Error    string    `json:"error,omitempty"`
}

// Elapsed is the job's wall time so far.
func (s Status) Elapsed() time.Duration {
	if s.Started.IsZero() {
		return 0
	}
	if s.Finished.IsZero() {
		return time.Since(s.Started)
	}
	return s.Finished.Sub(s.Started)
}

// statusCell is shared by the merge and poll tasks. The hot fields are
// atomics so that readers never block the loader.
type statusCell struct {
	loading atomic.Bool
	size    atomic.Int64
	triples atomic.Int64
	added   atomic.Int64

	mu       sync.Mutex
	jobID    string
	source   string
	format   string
	skipped  bool
	started  time.Time
	finished time.Time
	err      string
}

func (c *statusCell) finish(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.finished = time.Now()
	if err != nil {
		c.err = err.Error()
	}
	c.loading.Store(false)
}

func (c *statusCell) snapshot() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{
		JobID:    c.jobID,
		Source:   c.source,
		Format:   c.format,
		Loading:  c.loading.Load(),
		Skipped:  c.skipped,
		Size:     c.size.Load(),
		Triples:  c.triples.Load(),
		Added:    c.added.Load(),
		Started:  c.started,
		Finished: c.finished,
		Error:    c.err,
	}
}
