package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const fileStoreExt = ".json"

type fileStore struct {
	dir string
	mu  sync.Mutex
}

type fileRecord struct {
	ID         string    `json:"id"`
	Algorithm  string    `json:"algorithm"`
	CreatedAt  time.Time `json:"createdAt"`
	PrivateKey []byte    `json:"privateKey"`
}

// NewFileStore keeps one JSON file per key under dir.
func NewFileStore(dir string) (*fileStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create keys directory: %w", err)
	}
	return &fileStore{dir: dir}, nil
}

func (f *fileStore) Load(ctx context.Context) ([]Record, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read keys directory: %w", err)
	}

	var out []Record
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), fileStoreExt) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		path := filepath.Join(f.dir, e.Name())
		r, err := readFileRecord(path)
		if err != nil {
			logrus.WithError(err).WithField("file", path).Debug("unreadable key file")
			r = Record{ID: strings.TrimSuffix(e.Name(), fileStoreExt)}
		}
		out = append(out, r)
	}
	return out, nil
}

func readFileRecord(path string) (Record, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Record{}, err
	}
	var fr fileRecord
	if err := json.Unmarshal(b, &fr); err != nil {
		return Record{}, fmt.Errorf("failed to unmarshal key file: %w", err)
	}
	return Record{
		ID:         fr.ID,
		Algorithm:  fr.Algorithm,
		CreatedAt:  fr.CreatedAt,
		PrivateKey: fr.PrivateKey,
	}, nil
}

// Save writes to a temporary file, syncs it and renames it into place, so a
// crash never leaves a partial key file behind.
func (f *fileStore) Save(ctx context.Context, r Record) error {
	if err := r.validate(); err != nil {
		return err
	}
	if strings.ContainsAny(r.ID, `/\`) || r.ID == "." || r.ID == ".." {
		return fmt.Errorf("record id '%s' is not a valid file name", r.ID)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	b, err := json.MarshalIndent(fileRecord{
		ID:         r.ID,
		Algorithm:  r.Algorithm,
		CreatedAt:  r.CreatedAt.UTC(),
		PrivateKey: r.PrivateKey,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal key file: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	finalPath := filepath.Join(f.dir, r.ID+fileStoreExt)
	if _, err := os.Stat(finalPath); err == nil {
		return fmt.Errorf("%w: %s", ErrDuplicateKeyID, r.ID)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to stat key file: %w", err)
	}

	tmp, err := os.CreateTemp(f.dir, ".tmp-"+r.ID+"-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary key file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temporary key file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync temporary key file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temporary key file: %w", err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return fmt.Errorf("failed to rename key file into place: %w", err)
	}
	return nil
}
