package keys

import (
	"fmt"
	"time"
)

type Factory interface {
	Algorithm() Algorithm

	// CreateKey generates a fresh key pair with a new ID created at now.
	CreateKey(now time.Time) (Key, error)

	// FromPrivateBytes rebuilds a Key from the output of Key.PrivateBytes.
	// The rebuilt key returns b unchanged from PrivateBytes.
	FromPrivateBytes(b []byte, id string, createdAt time.Time) (Key, error)
}

func NewFactory(alg Algorithm, ttl time.Duration) (Factory, error) {
	switch alg {
	case AlgorithmRS256:
		return NewRSAFactory(ttl), nil
	case AlgorithmES512:
		return NewECDSAFactory(ttl), nil
	default:
		return nil, fmt.Errorf("%w: '%s'", ErrUnsupportedAlgorithm, alg)
	}
}

// NewFactories returns one factory per supported algorithm, which is what is
// needed to rebuild every record of a KeyStore.
func NewFactories(ttl time.Duration) map[Algorithm]Factory {
	m := make(map[Algorithm]Factory, len(Algorithms()))
	for _, alg := range Algorithms() {
		f, _ := NewFactory(alg, ttl)
		m[alg] = f
	}
	return m
}
