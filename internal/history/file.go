package history

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"
	"go.uber.org/multierr"
)

type document struct {
	Orders []Record `json:"orders"`
}

// FilePersister keeps the history as a single JSON document on disk.
type FilePersister struct {
	path string
}

// NewFilePersister targets path; parent directories are created on first save.
func NewFilePersister(path string) *FilePersister {
	return &FilePersister{path: path}
}

// Path returns the document location.
func (p *FilePersister) Path() string { return p.path }

// Load reads the document. A missing file is not an error.
func (p *FilePersister) Load() ([]Record, error) {
	data, err := os.ReadFile(p.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}
	return doc.Orders, nil
}

// Save writes to a temp file in the same directory and renames it over the document.
func (p *FilePersister) Save(records []Record) (err error) {
	data, err := json.MarshalIndent(document{Orders: records}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	dir := filepath.Dir(p.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create history dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(p.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	defer func() {
		if err != nil {
			err = multierr.Append(err, ignoreMissing(os.Remove(tmp.Name())))
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return multierr.Append(fmt.Errorf("write temp: %w", err), tmp.Close())
	}
	if err = tmp.Sync(); err != nil {
		return multierr.Append(fmt.Errorf("sync temp: %w", err), tmp.Close())
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close temp: %w", err)
	}
	if err = os.Rename(tmp.Name(), p.path); err != nil {
		return fmt.Errorf("replace history: %w", err)
	}
	return nil
}

func ignoreMissing(err error) error {
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
