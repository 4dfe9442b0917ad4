package issuer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"

	"github.com/matheuscscp/technews-auth/internal/config"
	"github.com/matheuscscp/technews-auth/internal/keys"
	"github.com/matheuscscp/technews-auth/internal/logging"
	"github.com/matheuscscp/technews-auth/internal/metrics"
	"github.com/matheuscscp/technews-auth/internal/store"
)

var (
	ErrNoValidKey         = errors.New("no valid signing key")
	ErrMalformedStoredKey = errors.New("malformed stored key")
	ErrKeyPersistFailed   = errors.New("failed to persist signing key")
)

// KeyRetriever reads signing keys from a KeyStore and rotates the current
// key when none is valid. It is safe for concurrent use.
type KeyRetriever struct {
	store     store.KeyStore
	factory   keys.Factory
	factories map[keys.Algorithm]keys.Factory
	metrics   *metrics.Metrics
	recent    *cache.Cache
	now       func() time.Time

	// built holds rebuilt keys by ID. Stored keys are never modified or
	// deleted, so entries do not expire.
	built *cache.Cache

	// mu serializes rotation within the process. Stores implementing
	// store.Locker serialize it across processes as well.
	mu sync.Mutex
}

func NewKeyRetriever(s store.KeyStore, conf *config.KeysConfig, m *metrics.Metrics) (*KeyRetriever, error) {
	factory, err := keys.NewFactory(conf.AlgorithmOrDefault(), conf.TTL)
	if err != nil {
		return nil, err
	}
	r := &KeyRetriever{
		store:     s,
		factory:   factory,
		factories: keys.NewFactories(conf.TTL),
		metrics:   m,
		now:       time.Now,
		built:     cache.New(cache.NoExpiration, 0),
	}
	if conf.PublishCacheTTL > 0 {
		r.recent = cache.New(conf.PublishCacheTTL, 2*conf.PublishCacheTTL)
	}
	return r, nil
}

// Current returns the most recently created key that is still valid,
// creating and persisting a new one when there is none.
func (r *KeyRetriever) Current(ctx context.Context) (keys.Key, error) {
	ks, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	if k, err := newestValid(ks, r.now()); err == nil {
		return k, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if locker, ok := r.store.(store.Locker); ok {
		unlock, err := locker.Lock(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to take rotation lock: %w", err)
		}
		defer unlock()
	}

	// Someone else may have rotated while we waited for the locks.
	ks, err = r.load(ctx)
	if err != nil {
		return nil, err
	}
	now := r.now()
	if k, err := newestValid(ks, now); err == nil {
		return k, nil
	}

	return r.rotate(ctx, now)
}

func (r *KeyRetriever) rotate(ctx context.Context, now time.Time) (keys.Key, error) {
	k, err := r.factory.CreateKey(now)
	if err != nil {
		return nil, fmt.Errorf("failed to create signing key: %w", err)
	}

	err = r.store.Save(ctx, store.Record{
		ID:         k.ID(),
		Algorithm:  k.Algorithm().String(),
		CreatedAt:  k.CreatedAt(),
		PrivateKey: k.PrivateBytes(),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrKeyPersistFailed, err)
	}

	r.built.SetDefault(k.ID(), k)
	if r.recent != nil {
		r.recent.Flush()
	}
	r.metrics.KeyCreated(k.Algorithm().String())
	logging.FromContext(ctx).WithField("key", logrus.Fields{
		"kid":       k.ID(),
		"algorithm": k.Algorithm(),
		"createdAt": k.CreatedAt(),
	}).Info("key generated")

	return k, nil
}

// Recent returns up to n of the most recently created keys, newest first,
// whether or not they are still valid.
func (r *KeyRetriever) Recent(ctx context.Context, n int) ([]keys.Key, error) {
	if n <= 0 {
		return []keys.Key{}, nil
	}

	cacheKey := strconv.Itoa(n)
	if r.recent != nil {
		if v, ok := r.recent.Get(cacheKey); ok {
			return append([]keys.Key{}, v.([]keys.Key)...), nil
		}
	}

	ks, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	if len(ks) > n {
		ks = ks[:n]
	}

	if r.recent != nil {
		r.recent.SetDefault(cacheKey, append([]keys.Key{}, ks...))
	}
	return ks, nil
}

// load rebuilds every stored key, newest first. Records that cannot be
// rebuilt are skipped.
func (r *KeyRetriever) load(ctx context.Context) ([]keys.Key, error) {
	records, err := r.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load signing keys: %w", err)
	}

	ks := make([]keys.Key, 0, len(records))
	for _, rec := range records {
		k, err := r.rebuildCached(rec)
		if err != nil {
			r.metrics.MalformedStoredKey()
			logging.FromContext(ctx).WithError(err).WithField("key", logrus.Fields{
				"kid":       rec.ID,
				"algorithm": rec.Algorithm,
			}).Warn("malformed stored key skipped")
			continue
		}
		ks = append(ks, k)
	}

	sort.SliceStable(ks, func(i, j int) bool {
		if ci, cj := ks[i].CreatedAt(), ks[j].CreatedAt(); !ci.Equal(cj) {
			return ci.After(cj)
		}
		return ks[i].ID() > ks[j].ID()
	})
	return ks, nil
}

func (r *KeyRetriever) rebuildCached(rec store.Record) (keys.Key, error) {
	if v, ok := r.built.Get(rec.ID); ok {
		k := v.(keys.Key)
		if k.Algorithm().String() == rec.Algorithm && k.CreatedAt().Equal(rec.CreatedAt) {
			return k, nil
		}
	}
	k, err := r.rebuild(rec)
	if err != nil {
		return nil, err
	}
	r.built.SetDefault(rec.ID, k)
	return k, nil
}

func (r *KeyRetriever) rebuild(rec store.Record) (keys.Key, error) {
	alg, err := keys.ParseAlgorithm(rec.Algorithm)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedStoredKey, err)
	}
	factory, ok := r.factories[alg]
	if !ok {
		return nil, fmt.Errorf("%w: no factory for algorithm '%s'", ErrMalformedStoredKey, alg)
	}
	if rec.CreatedAt.IsZero() {
		return nil, fmt.Errorf("%w: record has no creation time", ErrMalformedStoredKey)
	}
	k, err := factory.FromPrivateBytes(rec.PrivateKey, rec.ID, rec.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedStoredKey, err)
	}
	return k, nil
}

// newestValid expects ks sorted newest first.
func newestValid(ks []keys.Key, now time.Time) (keys.Key, error) {
	for _, k := range ks {
		if k.Valid(now) {
			return k, nil
		}
	}
	return nil, ErrNoValidKey
}
