// Package notify publishes loader progress to NATS.
package notify

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/brunobiangulo/rdf2rest/loader"
)

// DefaultSubject is the subject prefix used when none is configured.
const DefaultSubject = "rdf2rest.loader"

// Conn is the subset of *nats.Conn used for publishing.
type Conn interface {
	Publish(subj string, data []byte) error
}

// Publisher sends every loader event to "<subject>.<kind>" as JSON.
type Publisher struct {
	conn    Conn
	subject string
	nc      *nats.Conn
}

// Connect dials a NATS server and returns a publisher owning the connection.
func Connect(url, subject string) (*Publisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("rdf2rest"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	p := New(nc, subject)
	p.nc = nc
	return p, nil
}

// New wraps an existing connection.
func New(conn Conn, subject string) *Publisher {
	if subject == "" {
		subject = DefaultSubject
	}
	return &Publisher{conn: conn, subject: subject}
}

// Subject returns the subject an event kind is published on.
func (p *Publisher) Subject(kind loader.EventKind) string {
	return p.subject + "." + string(kind)
}

// Observe implements loader.Observer. Publish failures are logged; progress
// signals are best effort.
func (p *Publisher) Observe(ev loader.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		slog.Warn("notify: encoding event", "kind", ev.Kind, "error", err)
		return
	}
	if err := p.conn.Publish(p.Subject(ev.Kind), data); err != nil {
		slog.Warn("notify: publishing event", "subject", p.Subject(ev.Kind), "error", err)
	}
}

// Close drains and closes a connection opened by Connect.
func (p *Publisher) Close() error {
	if p.nc == nil {
		return nil
	}
	if err := p.nc.Drain(); err != nil {
		p.nc.Close()
		return err
	}
	return nil
}
