package store

func schemaSQL() string {
	return `
-- Term dictionary: every distinct IRI, literal and blank node once
CREATE TABLE IF NOT EXISTS terms (
    id INTEGER PRIMARY KEY,
    kind INTEGER NOT NULL,
    value TEXT NOT NULL,
    datatype TEXT NOT NULL DEFAULT '',
    lang TEXT NOT NULL DEFAULT '',
    UNIQUE(kind, value, datatype, lang)
);

-- Statements as term ids; the primary key doubles as the SPO index
CREATE TABLE IF NOT EXISTS triples (
    s INTEGER NOT NULL REFERENCES terms(id),
    p INTEGER NOT NULL REFERENCES terms(id),
    o INTEGER NOT NULL REFERENCES terms(id),
    PRIMARY KEY (s, p, o)
) WITHOUT ROWID;

CREATE INDEX IF NOT EXISTS idx_triples_po ON triples(p, o);

-- Prefix bindings collected from loaded files
CREATE TABLE IF NOT EXISTS namespaces (
    prefix TEXT PRIMARY KEY,
    iri TEXT NOT NULL
);

-- Load registry with hash-based change detection
CREATE TABLE IF NOT EXISTS loads (
    id TEXT PRIMARY KEY,
    source TEXT NOT NULL,
    content_hash TEXT NOT NULL,
    format TEXT NOT NULL,
    status TEXT DEFAULT 'pending',
    triples INTEGER DEFAULT 0,
    error TEXT,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_loads_source ON loads(source);
`
}
