package store

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrPersist wraps every failure to write the output file.
var ErrPersist = errors.New("persist failed")

// JSONLWriter writes records to a file, one JSON document per line.
type JSONLWriter struct {
	path string
}

// NewJSONLWriter returns a writer targeting path.
func NewJSONLWriter(path string) *JSONLWriter {
	return &JSONLWriter{path: path}
}

// Path returns the destination file.
func (w *JSONLWriter) Path() string { return w.path }

// Write replaces the destination with records. The file is written to a
// sibling temp file and renamed into place, so a failed run leaves any
// previous output untouched.
func (w *JSONLWriter) Write(records []json.RawMessage) (err error) {
	dir := filepath.Dir(w.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(w.path)+".*")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	defer func() {
		if err != nil {
			tmp.Close()           //nolint:errcheck
			os.Remove(tmp.Name()) //nolint:errcheck
		}
	}()

	bw := bufio.NewWriter(tmp)
	var line bytes.Buffer
	for i, rec := range records {
		line.Reset()
		if err := json.Compact(&line, rec); err != nil {
			return fmt.Errorf("%w: record %d: %w", ErrPersist, i, err)
		}
		line.WriteByte('\n')
		if _, err := bw.Write(line.Bytes()); err != nil {
			return fmt.Errorf("%w: %w", ErrPersist, err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	if err := os.Rename(tmp.Name(), w.path); err != nil {
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	return nil
}
