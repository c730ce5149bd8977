// Package store persists RDF triples in a SQLite database kept inside a
// store directory.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/brunobiangulo/rdf2rest/rdf"
)

// DBFile is the database file name inside a store directory.
const DBFile = "store.db"

// ErrClosed is returned when operating on a closed store.
var ErrClosed = errors.New("store: closed")

// Load represents a row in the loads table.
type Load struct {
	ID          string `json:"id"`
	Source      string `json:"source"`
	ContentHash string `json:"content_hash"`
	Format      string `json:"format"`
	Status      string `json:"status"`
	Triples     int64  `json:"triples"`
	DurationMs  int64  `json:"duration_ms"`
	Error       string `json:"error,omitempty"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

// Load statuses.
const (
	LoadPending = "pending"
	LoadReady   = "ready"
	LoadFailed  = "failed"
)

// Stats holds row counts for diagnostics.
type Stats struct {
	Triples    int `json:"triples"`
	Terms      int `json:"terms"`
	Subjects   int `json:"subjects"`
	Roots      int `json:"roots"`
	Namespaces int `json:"namespaces"`
	Loads      int `json:"loads"`
}

// Store wraps the SQLite database holding the triple set.
type Store struct {
	db     *sql.DB
	dir    string
	closed atomic.Bool
}

// Open opens (or creates) the store in dir and initialises the schema.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}

	dbPath := filepath.Join(dir, DBFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Create schema
	if _, err := db.Exec(schemaSQL()); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	// Connection pool settings for SQLite. WAL lets the readers proceed
	// while the single loader connection commits batches.
	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(30 * time.Minute)

	s := &Store{db: db, dir: dir}

	// Run pending migrations.
	if err := s.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying *sql.DB for advanced queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Dir returns the store directory.
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) check() error {
	if s.closed.Load() {
		return ErrClosed
	}
	return nil
}

// --- Triple operations ---

// AddTriples merges ts into the store in one transaction and returns how
// many statements were new.
func (s *Store) AddTriples(ctx context.Context, ts []rdf.Triple) (int, error) {
	if err := s.check(); err != nil {
		return 0, err
	}
	if len(ts) == 0 {
		return 0, nil
	}

	added := 0
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		termStmt, err := tx.PrepareContext(ctx, `
			INSERT INTO terms (kind, value, datatype, lang) VALUES (?, ?, ?, ?)
			ON CONFLICT(kind, value, datatype, lang) DO UPDATE SET kind = excluded.kind
			RETURNING id`)
		if err != nil {
			return fmt.Errorf("preparing term insert: %w", err)
		}
		defer termStmt.Close()

		tripleStmt, err := tx.PrepareContext(ctx, "INSERT OR IGNORE INTO triples (s, p, o) VALUES (?, ?, ?)")
		if err != nil {
			return fmt.Errorf("preparing triple insert: %w", err)
		}
		defer tripleStmt.Close()

		ids := make(map[rdf.Term]int64, len(ts))
		termID := func(t rdf.Term) (int64, error) {
			if id, ok := ids[t]; ok {
				return id, nil
			}
			var id int64
			if err := termStmt.QueryRowContext(ctx, int(t.Kind), t.Value, t.Datatype, t.Lang).Scan(&id); err != nil {
				return 0, fmt.Errorf("inserting term %s: %w", t, err)
			}
			ids[t] = id
			return id, nil
		}

		for _, t := range ts {
			sid, err := termID(t.S)
			if err != nil {
				return err
			}
			pid, err := termID(t.P)
			if err != nil {
				return err
			}
			oid, err := termID(t.O)
			if err != nil {
				return err
			}
			res, err := tripleStmt.ExecContext(ctx, sid, pid, oid)
			if err != nil {
				return fmt.Errorf("inserting triple: %w", err)
			}
			if n, err := res.RowsAffected(); err == nil {
				added += int(n)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return added, nil
}

// Find returns the triples matching pat. Bound positions that name an
// unknown term simply match nothing.
func (s *Store) Find(ctx context.Context, pat rdf.Pattern) ([]rdf.Triple, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	where, args, ok, err := s.patternClause(ctx, pat)
	if err != nil || !ok {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT ts.kind, ts.value, ts.datatype, ts.lang,
			tp.kind, tp.value, tp.datatype, tp.lang,
			tob.kind, tob.value, tob.datatype, tob.lang
		FROM triples t
		JOIN terms ts ON ts.id = t.s
		JOIN terms tp ON tp.id = t.p
		JOIN terms tob ON tob.id = t.o`+where, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []rdf.Triple
	for rows.Next() {
		var t rdf.Triple
		if err := rows.Scan(
			&t.S.Kind, &t.S.Value, &t.S.Datatype, &t.S.Lang,
			&t.P.Kind, &t.P.Value, &t.P.Datatype, &t.P.Lang,
			&t.O.Kind, &t.O.Value, &t.O.Datatype, &t.O.Lang,
		); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Exists reports whether at least one triple matches pat.
func (s *Store) Exists(ctx context.Context, pat rdf.Pattern) (bool, error) {
	if err := s.check(); err != nil {
		return false, err
	}
	where, args, ok, err := s.patternClause(ctx, pat)
	if err != nil || !ok {
		return false, err
	}
	var exists bool
	err = s.db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM triples t"+where+")", args...).Scan(&exists)
	return exists, err
}

// Subjects returns the distinct subjects of (?, p, o) ordered by value.
func (s *Store) Subjects(ctx context.Context, p, o rdf.Term) ([]rdf.Term, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	where, args, ok, err := s.patternClause(ctx, rdf.Pattern{P: &p, O: &o})
	if err != nil || !ok {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT ts.kind, ts.value, ts.datatype, ts.lang
		FROM triples t JOIN terms ts ON ts.id = t.s`+where+`
		ORDER BY ts.kind, ts.value`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []rdf.Term
	for rows.Next() {
		var t rdf.Term
		if err := rows.Scan(&t.Kind, &t.Value, &t.Datatype, &t.Lang); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Graph copies the whole store into memory, namespace bindings included.
func (s *Store) Graph(ctx context.Context) (*rdf.Graph, error) {
	ts, err := s.Find(ctx, rdf.Pattern{})
	if err != nil {
		return nil, err
	}
	ns, err := s.Namespaces(ctx)
	if err != nil {
		return nil, err
	}
	g := rdf.NewGraph()
	g.AddAll(ts)
	g.Namespaces.Merge(ns)
	return g, nil
}

// patternClause turns the bound positions of pat into a WHERE clause over
// the triples table aliased t. ok is false when a bound term is unknown.
func (s *Store) patternClause(ctx context.Context, pat rdf.Pattern) (string, []any, bool, error) {
	var conds []string
	var args []any
	for _, pos := range []struct {
		col  string
		term *rdf.Term
	}{{"t.s", pat.S}, {"t.p", pat.P}, {"t.o", pat.O}} {
		if pos.term == nil {
			continue
		}
		id, found, err := s.lookupTerm(ctx, *pos.term)
		if err != nil {
			return "", nil, false, err
		}
		if !found {
			return "", nil, false, nil
		}
		conds = append(conds, pos.col+" = ?")
		args = append(args, id)
	}
	if len(conds) == 0 {
		return "", nil, true, nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args, true, nil
}

func (s *Store) lookupTerm(ctx context.Context, t rdf.Term) (int64, bool, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		"SELECT id FROM terms WHERE kind = ? AND value = ? AND datatype = ? AND lang = ?",
		int(t.Kind), t.Value, t.Datatype, t.Lang).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

// --- Namespace operations ---

// BindNamespaces records prefix bindings. Existing prefixes keep their IRI.
func (s *Store) BindNamespaces(ctx context.Context, ns rdf.Namespaces) error {
	if err := s.check(); err != nil {
		return err
	}
	if len(ns) == 0 {
		return nil
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, prefix := range ns.Prefixes() {
			if _, err := tx.ExecContext(ctx,
				"INSERT OR IGNORE INTO namespaces (prefix, iri) VALUES (?, ?)",
				prefix, ns[prefix]); err != nil {
				return err
			}
		}
		return nil
	})
}

// Namespaces returns all recorded prefix bindings.
func (s *Store) Namespaces(ctx context.Context) (rdf.Namespaces, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, "SELECT prefix, iri FROM namespaces")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ns := rdf.Namespaces{}
	for rows.Next() {
		var prefix, iri string
		if err := rows.Scan(&prefix, &iri); err != nil {
			return nil, err
		}
		ns[prefix] = iri
	}
	return ns, rows.Err()
}

// --- Load registry ---

// CreateLoad inserts a load record.
func (s *Store) CreateLoad(ctx context.Context, l Load) error {
	if err := s.check(); err != nil {
		return err
	}
	if l.Status == "" {
		l.Status = LoadPending
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO loads (id, source, content_hash, format, status)
		VALUES (?, ?, ?, ?, ?)
	`, l.ID, l.Source, l.ContentHash, l.Format, l.Status)
	return err
}

// FinishLoad records the outcome of a load.
func (s *Store) FinishLoad(ctx context.Context, id, status string, triples int64, duration time.Duration, errMsg string) error {
	if err := s.check(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE loads SET status = ?, triples = ?, duration_ms = ?, error = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, status, triples, duration.Milliseconds(), nullString(errMsg), id)
	return err
}

// LatestLoad returns the most recent successful load of source with the
// given content hash, or sql.ErrNoRows.
func (s *Store) LatestLoad(ctx context.Context, source, contentHash string) (*Load, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	row := s.db.QueryRowContext(ctx, `
		SELECT id, source, content_hash, format, status, triples, duration_ms, error, created_at, updated_at
		FROM loads WHERE source = ? AND content_hash = ? AND status = ?
		ORDER BY created_at DESC LIMIT 1
	`, source, contentHash, LoadReady)
	return scanLoad(row)
}

// ListLoads returns all loads, newest first.
func (s *Store) ListLoads(ctx context.Context) ([]Load, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source, content_hash, format, status, triples, duration_ms, error, created_at, updated_at
		FROM loads ORDER BY created_at DESC, rowid DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var loads []Load
	for rows.Next() {
		l, err := scanLoad(rows)
		if err != nil {
			return nil, err
		}
		loads = append(loads, *l)
	}
	return loads, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLoad(r rowScanner) (*Load, error) {
	l := &Load{}
	var errMsg sql.NullString
	if err := r.Scan(&l.ID, &l.Source, &l.ContentHash, &l.Format, &l.Status,
		&l.Triples, &l.DurationMs, &errMsg, &l.CreatedAt, &l.UpdatedAt); err != nil {
		return nil, err
	}
	l.Error = errMsg.String
	return l, nil
}

// Stats returns row counts.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	stats := &Stats{}
	queries := []struct {
		query string
		dest  *int
	}{
		{"SELECT COUNT(*) FROM triples", &stats.Triples},
		{"SELECT COUNT(*) FROM terms", &stats.Terms},
		{"SELECT COUNT(DISTINCT s) FROM triples", &stats.Subjects},
		{"SELECT COUNT(*) FROM namespaces", &stats.Namespaces},
		{"SELECT COUNT(*) FROM loads", &stats.Loads},
	}
	for _, q := range queries {
		if err := s.db.QueryRowContext(ctx, q.query).Scan(q.dest); err != nil {
			return nil, fmt.Errorf("counting %s: %w", q.query, err)
		}
	}
	roots, err := s.Subjects(ctx, rdf.Type, rdf.PartitionRoot)
	if err != nil {
		return nil, fmt.Errorf("counting roots: %w", err)
	}
	stats.Roots = len(roots)
	return stats, nil
}

// --- helpers ---

func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
