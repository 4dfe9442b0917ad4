// Package keys holds the asymmetric key material used to sign access tokens.
//
// Every algorithm implements the same Key capability set. The private half
// only leaves a Key through SigningHandle (which can sign but not be
// serialized) and PrivateBytes (which is meant for a KeyStore). The public
// half is exposed as a PublicKey, a type with no room for private parameters.
package keys

import (
	"time"
)

type Key interface {
	ID() string
	CreatedAt() time.Time
	Algorithm() Algorithm

	// Valid reports whether the key may still sign new tokens at now.
	Valid(now time.Time) bool

	SigningHandle() SigningHandle
	PublicKey() PublicKey

	// PrivateBytes returns the PKCS#8 DER encoding of the private key. It is
	// meant exclusively for persistence through a KeyStore.
	PrivateBytes() []byte
}

// PublicKey is the JWK representation of the public half of a Key.
type PublicKey struct {
	KeyType   string `json:"kty"`
	KeyID     string `json:"kid"`
	Algorithm string `json:"alg"`
	Use       string `json:"use"`

	// RSA
	N string `json:"n,omitempty"`
	E string `json:"e,omitempty"`

	// EC
	Curve string `json:"crv,omitempty"`
	X     string `json:"x,omitempty"`
	Y     string `json:"y,omitempty"`
}

const (
	keyTypeRSA = "RSA"
	keyTypeEC  = "EC"
	useSig     = "sig"
)

// material carries what every algorithm shares.
type material struct {
	id        string
	createdAt time.Time
	ttl       time.Duration
	der       []byte
	handle    SigningHandle
	public    PublicKey
}

func (m *material) ID() string           { return m.id }
func (m *material) CreatedAt() time.Time { return m.createdAt }

func (m *material) Valid(now time.Time) bool {
	return now.Sub(m.createdAt) < m.ttl
}

func (m *material) SigningHandle() SigningHandle { return m.handle }
func (m *material) PublicKey() PublicKey         { return m.public }

func (m *material) PrivateBytes() []byte {
	b := make([]byte, len(m.der))
	copy(b, m.der)
	return b
}
