package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var ErrDuplicateKeyID = errors.New("key id already stored")

// Record is one persisted signing key. PrivateKey is the opaque output of
// keys.Key.PrivateBytes.
type Record struct {
	ID         string
	Algorithm  string
	CreatedAt  time.Time
	PrivateKey []byte
}

type KeyStore interface {
	// Load returns every stored record, in no particular order. A record
	// that cannot be decoded is still returned, with the ID and whatever
	// fields could be read, so the caller can report it.
	Load(ctx context.Context) ([]Record, error)

	// Save persists r atomically: after a failed Save no partial record
	// is visible to Load.
	Save(ctx context.Context, r Record) error
}

// Locker is implemented by stores shared between processes. The lock
// serializes key rotation across every process using the store.
type Locker interface {
	Lock(ctx context.Context) (unlock func(), err error)
}

func (r *Record) validate() error {
	if r.ID == "" {
		return fmt.Errorf("record id must be set")
	}
	if r.Algorithm == "" {
		return fmt.Errorf("record algorithm must be set")
	}
	if r.CreatedAt.IsZero() {
		return fmt.Errorf("record creation time must be set")
	}
	if len(r.PrivateKey) == 0 {
		return fmt.Errorf("record private key must be set")
	}
	return nil
}

func (r Record) clone() Record {
	b := make([]byte, len(r.PrivateKey))
	copy(b, r.PrivateKey)
	r.PrivateKey = b
	return r
}
