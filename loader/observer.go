package loader

import (
	"log/slog"
)

// EventKind classifies loader signals.
type EventKind string

const (
	EventStarted  EventKind = "started"
	EventSize     EventKind = "size"
	EventSettled  EventKind = "settled"
	EventFinished EventKind = "finished"
	EventSkipped  EventKind = "skipped"
	EventFailed   EventKind = "failed"
)

// Event is emitted by a running job. Status is a snapshot taken when the
// event fired.
type Event struct {
	Kind   EventKind `json:"kind"`
	Status Status    `json:"status"`
}

// Observer receives loader events. Observe is called from the merge and poll
// goroutines concurrently and must not block for long.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) Observe(ev Event) { f(ev) }

// LogObserver writes events to a structured logger.
type LogObserver struct {
	Logger *slog.Logger
}

func (o LogObserver) Observe(ev Event) {
	log := o.Logger
	if log == nil {
		log = slog.Default()
	}
	st := ev.Status
	switch ev.Kind {
	case EventStarted:
		log.Info("loader: parsing file", "job", st.JobID, "source", st.Source, "format", st.Format)
	case EventSize:
		log.Info("loader: store size changed", "job", st.JobID, "bytes", st.Size, "triples", st.Triples)
	case EventSettled:
		log.Info("loader: store settled", "job", st.JobID, "bytes", st.Size)
	case EventFinished:
		log.Info("loader: loaded",
			"job", st.JobID, "source", st.Source,
			"triples", st.Triples, "added", st.Added, "elapsed", st.Elapsed())
	case EventSkipped:
		log.Info("loader: unchanged, skipping", "job", st.JobID, "source", st.Source)
	case EventFailed:
		log.Error("loader: load failed", "job", st.JobID, "source", st.Source, "error", st.Error)
	}
}
