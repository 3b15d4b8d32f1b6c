package store

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"
)

// FileBackend stores each collection as <dir>/<collection>.csv with a
// header row. Saves go to a temporary file that is renamed over the old
// one, so readers see either the previous or the new file.
type FileBackend struct {
	dir string
}

func NewFileBackend(dir string) (*FileBackend, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &FileBackend{dir: dir}, nil
}

func (b *FileBackend) Path(collection string) string {
	return filepath.Join(b.dir, collection+".csv")
}

func (b *FileBackend) Load(ctx context.Context, collection string) ([][]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(b.Path(collection))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open %s: %w", collection, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	// header
	if _, err := r.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s header: %w", collection, err)
	}

	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", collection, err)
	}
	return rows, nil
}

func (b *FileBackend) Save(ctx context.Context, collection string, header []string, rows [][]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("encode %s header: %w", collection, err)
	}
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("encode %s: %w", collection, err)
	}

	if err := renameio.WriteFile(b.Path(collection), buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", collection, err)
	}
	return nil
}
