package keys

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const rsaKeyBits = 2048

type rsaKey struct{ material }

func (*rsaKey) Algorithm() Algorithm { return AlgorithmRS256 }

type rsaFactory struct {
	ttl time.Duration
}

func NewRSAFactory(ttl time.Duration) Factory {
	return &rsaFactory{ttl: ttl}
}

func (*rsaFactory) Algorithm() Algorithm { return AlgorithmRS256 }

func (f *rsaFactory) CreateKey(now time.Time) (Key, error) {
	priv, err := rsa.GenerateKey(rand.Reader, rsaKeyBits)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to generate rsa key: %v", ErrKeyCreationFailed, err)
	}
	der, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to encode rsa key: %v", ErrKeyCreationFailed, err)
	}
	k, err := newRSAKey(uuid.NewString(), now, f.ttl, priv, der)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyCreationFailed, err)
	}
	return k, nil
}

func (f *rsaFactory) FromPrivateBytes(b []byte, id string, createdAt time.Time) (Key, error) {
	parsed, err := x509.ParsePKCS8PrivateKey(b)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedKeyData, err)
	}
	priv, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: expected rsa private key, got %T", ErrMalformedKeyData, parsed)
	}
	if bits := priv.N.BitLen(); bits < rsaKeyBits {
		return nil, fmt.Errorf("%w: rsa modulus has %d bits, need at least %d", ErrMalformedKeyData, bits, rsaKeyBits)
	}
	if err := priv.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedKeyData, err)
	}
	der := make([]byte, len(b))
	copy(der, b)
	k, err := newRSAKey(id, createdAt, f.ttl, priv, der)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedKeyData, err)
	}
	return k, nil
}

func newRSAKey(id string, createdAt time.Time, ttl time.Duration, priv *rsa.PrivateKey, der []byte) (*rsaKey, error) {
	handle, err := newSigningHandle(id, AlgorithmRS256, priv)
	if err != nil {
		return nil, err
	}
	public, err := handle.publicKey(keyTypeRSA)
	if err != nil {
		return nil, err
	}
	return &rsaKey{material{
		id:        id,
		createdAt: createdAt,
		ttl:       ttl,
		der:       der,
		handle:    handle,
		public:    public,
	}}, nil
}
