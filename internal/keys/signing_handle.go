package keys

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/lestrrat-go/jwx/v3/jws"
	"github.com/lestrrat-go/jwx/v3/jwt"
)

const redacted = "[REDACTED]"

var errNotSerializable = errors.New("signing handle is not serializable")

// SigningHandle signs tokens with the private half of a Key. It cannot be
// marshalled and prints as [REDACTED].
type SigningHandle struct {
	keyID     string
	algorithm Algorithm
	sigAlg    jwa.SignatureAlgorithm
	private   jwk.Key
}

func newSigningHandle(keyID string, alg Algorithm, raw any) (SigningHandle, error) {
	sigAlg, err := alg.signatureAlgorithm()
	if err != nil {
		return SigningHandle{}, err
	}
	private, err := jwk.Import(raw)
	if err != nil {
		return SigningHandle{}, fmt.Errorf("failed to convert private key to jwk: %w", err)
	}
	if err := private.Set(jwk.KeyIDKey, keyID); err != nil {
		return SigningHandle{}, fmt.Errorf("failed to set key ID on jwk: %w", err)
	}
	return SigningHandle{
		keyID:     keyID,
		algorithm: alg,
		sigAlg:    sigAlg,
		private:   private,
	}, nil
}

// publicKey derives the JWK descriptor from the public half of the handle's
// key. Only the members PublicKey declares survive the conversion.
func (h SigningHandle) publicKey(keyType string) (PublicKey, error) {
	public, err := h.private.PublicKey()
	if err != nil {
		return PublicKey{}, fmt.Errorf("failed to get public jwk: %w", err)
	}
	b, err := json.Marshal(public)
	if err != nil {
		return PublicKey{}, fmt.Errorf("failed to marshal public jwk: %w", err)
	}
	var pk PublicKey
	if err := json.Unmarshal(b, &pk); err != nil {
		return PublicKey{}, fmt.Errorf("failed to unmarshal public jwk: %w", err)
	}
	if pk.KeyType != keyType {
		return PublicKey{}, fmt.Errorf("unexpected public jwk type '%s', want '%s'", pk.KeyType, keyType)
	}
	pk.KeyID = h.keyID
	pk.Algorithm = h.algorithm.String()
	pk.Use = useSig
	return pk, nil
}

func (h SigningHandle) KeyID() string        { return h.keyID }
func (h SigningHandle) Algorithm() Algorithm { return h.algorithm }

// Sign serializes tok as a compact JWS carrying the key ID and the given
// token type in the protected header.
func (h SigningHandle) Sign(tok jwt.Token, tokenType string) ([]byte, error) {
	if h.private == nil {
		return nil, errors.New("signing handle has no key")
	}
	hdrs := jws.NewHeaders()
	if err := hdrs.Set(jws.KeyIDKey, h.keyID); err != nil {
		return nil, fmt.Errorf("failed to set key ID header: %w", err)
	}
	if err := hdrs.Set(jws.TypeKey, tokenType); err != nil {
		return nil, fmt.Errorf("failed to set type header: %w", err)
	}
	return jwt.Sign(tok, jwt.WithKey(h.sigAlg, h.private, jws.WithProtectedHeaders(hdrs)))
}

func (SigningHandle) String() string   { return redacted }
func (SigningHandle) GoString() string { return redacted }

func (SigningHandle) Format(f fmt.State, _ rune) {
	_, _ = io.WriteString(f, redacted)
}

func (SigningHandle) MarshalJSON() ([]byte, error) { return nil, errNotSerializable }
func (SigningHandle) MarshalText() ([]byte, error) { return nil, errNotSerializable }
func (SigningHandle) MarshalYAML() (any, error)    { return nil, errNotSerializable }
