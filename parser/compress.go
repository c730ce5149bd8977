package parser

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// compressionOf returns "gz", "zst" or "lz4" when name carries that suffix.
func compressionOf(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".gz":
		return "gz"
	case ".zst":
		return "zst"
	case ".lz4":
		return "lz4"
	}
	return ""
}

// OpenFile opens path for reading, transparently decompressing it when the
// name ends in .gz, .zst or .lz4.
func OpenFile(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	switch compressionOf(path) {
	case "gz":
		zr, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("opening gzip stream: %w", err)
		}
		return &stackedReader{Reader: zr, closers: []io.Closer{zr, f}}, nil
	case "zst":
		zr, err := zstd.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("opening zstd stream: %w", err)
		}
		return &stackedReader{Reader: zr, closers: []io.Closer{zr.IOReadCloser(), f}}, nil
	case "lz4":
		return &stackedReader{Reader: lz4.NewReader(f), closers: []io.Closer{f}}, nil
	default:
		return f, nil
	}
}

// CreateFile creates path for writing, compressing the stream when the name
// ends in .gz, .zst or .lz4. Close flushes the compressor and the file.
func CreateFile(path string) (io.WriteCloser, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating output directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	switch compressionOf(path) {
	case "gz":
		zw := gzip.NewWriter(f)
		return &stackedWriter{Writer: zw, closers: []io.Closer{zw, f}}, nil
	case "zst":
		zw, err := zstd.NewWriter(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("opening zstd writer: %w", err)
		}
		return &stackedWriter{Writer: zw, closers: []io.Closer{zw, f}}, nil
	case "lz4":
		zw := lz4.NewWriter(f)
		return &stackedWriter{Writer: zw, closers: []io.Closer{zw, f}}, nil
	default:
		return f, nil
	}
}

type stackedReader struct {
	io.Reader
	closers []io.Closer
}

func (r *stackedReader) Close() error {
	return closeAll(r.closers)
}

type stackedWriter struct {
	io.Writer
	closers []io.Closer
}

func (w *stackedWriter) Close() error {
	return closeAll(w.closers)
}

// closeAll closes inner-most first and returns the first error.
func closeAll(cs []io.Closer) error {
	var first error
	for _, c := range cs {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
