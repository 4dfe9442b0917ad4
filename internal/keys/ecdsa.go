package keys

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const ecdsaCurveName = "P-521"

func ecdsaCurve() elliptic.Curve { return elliptic.P521() }

type ecdsaKey struct{ material }

func (*ecdsaKey) Algorithm() Algorithm { return AlgorithmES512 }

type ecdsaFactory struct {
	ttl time.Duration
}

func NewECDSAFactory(ttl time.Duration) Factory {
	return &ecdsaFactory{ttl: ttl}
}

func (*ecdsaFactory) Algorithm() Algorithm { return AlgorithmES512 }

func (f *ecdsaFactory) CreateKey(now time.Time) (Key, error) {
	priv, err := ecdsa.GenerateKey(ecdsaCurve(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to generate ecdsa key: %v", ErrKeyCreationFailed, err)
	}
	der, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to encode ecdsa key: %v", ErrKeyCreationFailed, err)
	}
	k, err := newECDSAKey(uuid.NewString(), now, f.ttl, priv, der)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyCreationFailed, err)
	}
	return k, nil
}

func (f *ecdsaFactory) FromPrivateBytes(b []byte, id string, createdAt time.Time) (Key, error) {
	parsed, err := x509.ParsePKCS8PrivateKey(b)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedKeyData, err)
	}
	priv, ok := parsed.(*ecdsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: expected ecdsa private key, got %T", ErrMalformedKeyData, parsed)
	}
	if priv.Curve != ecdsaCurve() {
		return nil, fmt.Errorf("%w: expected curve %s, got %s", ErrMalformedKeyData, ecdsaCurveName, priv.Curve.Params().Name)
	}
	der := make([]byte, len(b))
	copy(der, b)
	k, err := newECDSAKey(id, createdAt, f.ttl, priv, der)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedKeyData, err)
	}
	return k, nil
}

func newECDSAKey(id string, createdAt time.Time, ttl time.Duration, priv *ecdsa.PrivateKey, der []byte) (*ecdsaKey, error) {
	handle, err := newSigningHandle(id, AlgorithmES512, priv)
	if err != nil {
		return nil, err
	}
	public, err := handle.publicKey(keyTypeEC)
	if err != nil {
		return nil, err
	}
	return &ecdsaKey{material{
		id:        id,
		createdAt: createdAt,
		ttl:       ttl,
		der:       der,
		handle:    handle,
		public:    public,
	}}, nil
}
