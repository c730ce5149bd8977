package partition

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/brunobiangulo/rdf2rest/parser"
	"github.com/brunobiangulo/rdf2rest/rdf"
)

// WriteFile serializes the partition into dir under res.Filename and returns
// the written path. The format follows the extension (.ttl or .nt) and a
// trailing .gz, .zst or .lz4 compresses the output.
func WriteFile(res *Result, dir string) (string, error) {
	path := res.Filename
	if dir != "" && !filepath.IsAbs(path) {
		path = filepath.Join(dir, path)
	}
	slog.Info("partition: serializing", "path", path, "triples", res.Graph.Len())

	w, err := parser.CreateFile(path)
	if err != nil {
		return "", fmt.Errorf("creating %s: %w", path, err)
	}
	if err := rdf.Encode(w, res.Graph, rdf.FormatForPath(path)); err != nil {
		w.Close()
		return "", fmt.Errorf("encoding partition: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("closing %s: %w", path, err)
	}
	return path, nil
}
