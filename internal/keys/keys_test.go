package keys

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/lestrrat-go/jwx/v3/jwt"
	. "github.com/onsi/gomega"
)

const testTTL = 30 * 24 * time.Hour

func testFactories() []Factory {
	return []Factory{NewRSAFactory(testTTL), NewECDSAFactory(testTTL)}
}

func TestRSAFactory_CreateKey(t *testing.T) {
	g := NewWithT(t)

	now := time.Now()
	key, err := NewRSAFactory(testTTL).CreateKey(now)
	g.Expect(err).ToNot(HaveOccurred())

	g.Expect(key.Valid(now)).To(BeTrue())
	g.Expect(key.Algorithm()).To(Equal(AlgorithmRS256))
	g.Expect(key.CreatedAt()).To(Equal(now))
	_, err = uuid.Parse(key.ID())
	g.Expect(err).ToNot(HaveOccurred())

	pub := key.PublicKey()
	g.Expect(pub.KeyType).To(Equal("RSA"))
	g.Expect(pub.Algorithm).To(Equal("RS256"))
	g.Expect(pub.Use).To(Equal("sig"))
	g.Expect(pub.KeyID).To(Equal(key.ID()))
	g.Expect(pub.N).ToNot(BeEmpty())
	g.Expect(pub.E).To(Equal("AQAB"))
	g.Expect(pub.Curve).To(BeEmpty())
	g.Expect(pub.X).To(BeEmpty())
	g.Expect(pub.Y).To(BeEmpty())

	n, err := base64.RawURLEncoding.DecodeString(pub.N)
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(n).To(HaveLen(256))
}

func TestECDSAFactory_CreateKey(t *testing.T) {
	g := NewWithT(t)

	now := time.Now()
	key, err := NewECDSAFactory(testTTL).CreateKey(now)
	g.Expect(err).ToNot(HaveOccurred())

	g.Expect(key.Valid(now)).To(BeTrue())
	g.Expect(key.Algorithm()).To(Equal(AlgorithmES512))

	pub := key.PublicKey()
	g.Expect(pub.KeyType).To(Equal("EC"))
	g.Expect(pub.Algorithm).To(Equal("ES512"))
	g.Expect(pub.Use).To(Equal("sig"))
	g.Expect(pub.KeyID).To(Equal(key.ID()))
	g.Expect(pub.Curve).To(Equal("P-521"))
	g.Expect(pub.N).To(BeEmpty())
	g.Expect(pub.E).To(BeEmpty())

	for _, coord := range []string{pub.X, pub.Y} {
		b, err := base64.RawURLEncoding.DecodeString(coord)
		g.Expect(err).ToNot(HaveOccurred())
		g.Expect(b).To(HaveLen(66))
	}
}

func TestFactory_RoundTrip(t *testing.T) {
	for _, f := range testFactories() {
		t.Run(f.Algorithm().String(), func(t *testing.T) {
			g := NewWithT(t)

			now := time.Now()
			key, err := f.CreateKey(now)
			g.Expect(err).ToNot(HaveOccurred())

			exported := key.PrivateBytes()
			g.Expect(exported).ToNot(BeEmpty())

			imported, err := f.FromPrivateBytes(exported, key.ID(), key.CreatedAt())
			g.Expect(err).ToNot(HaveOccurred())
			g.Expect(imported.PrivateBytes()).To(Equal(exported))
			g.Expect(imported.PublicKey()).To(Equal(key.PublicKey()))
			g.Expect(imported.ID()).To(Equal(key.ID()))
			g.Expect(imported.CreatedAt()).To(Equal(key.CreatedAt()))
			g.Expect(imported.Algorithm()).To(Equal(key.Algorithm()))
			g.Expect(imported.Valid(now)).To(BeTrue())
		})
	}
}

func TestKey_PublicKeyMatchesPrivateKey(t *testing.T) {
	for _, f := range testFactories() {
		t.Run(f.Algorithm().String(), func(t *testing.T) {
			g := NewWithT(t)

			key, err := f.CreateKey(time.Now())
			g.Expect(err).ToNot(HaveOccurred())

			b, err := json.Marshal(key.PublicKey())
			g.Expect(err).ToNot(HaveOccurred())
			parsed, err := jwk.ParseKey(b)
			g.Expect(err).ToNot(HaveOccurred())
			var published any
			g.Expect(jwk.Export(parsed, &published)).To(Succeed())

			priv, err := x509.ParsePKCS8PrivateKey(key.PrivateBytes())
			g.Expect(err).ToNot(HaveOccurred())
			signer, ok := priv.(crypto.Signer)
			g.Expect(ok).To(BeTrue())
			pub, ok := signer.Public().(interface{ Equal(crypto.PublicKey) bool })
			g.Expect(ok).To(BeTrue())
			g.Expect(pub.Equal(published)).To(BeTrue())
		})
	}
}

func TestKey_PrivateBytesReturnsCopy(t *testing.T) {
	g := NewWithT(t)

	key, err := NewECDSAFactory(testTTL).CreateKey(time.Now())
	g.Expect(err).ToNot(HaveOccurred())

	b := key.PrivateBytes()
	b[0] ^= 0xff
	g.Expect(key.PrivateBytes()).ToNot(Equal(b))
}

func TestFactory_FromPrivateBytes_Malformed(t *testing.T) {
	rsaSmall, err := rsa.GenerateKey(rand.Reader, 1024)
	if err != nil {
		t.Fatal(err)
	}
	rsaSmallDER, _ := x509.MarshalPKCS8PrivateKey(rsaSmall)

	p256, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	p256DER, _ := x509.MarshalPKCS8PrivateKey(p256)

	rsaKey, err := NewRSAFactory(testTTL).CreateKey(time.Now())
	if err != nil {
		t.Fatal(err)
	}
	ecKey, err := NewECDSAFactory(testTTL).CreateKey(time.Now())
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		factory Factory
		data    []byte
	}{
		{
			name:    "rsa: empty",
			factory: NewRSAFactory(testTTL),
			data:    nil,
		},
		{
			name:    "rsa: garbage",
			factory: NewRSAFactory(testTTL),
			data:    []byte("not a key"),
		},
		{
			name:    "rsa: ecdsa key",
			factory: NewRSAFactory(testTTL),
			data:    ecKey.PrivateBytes(),
		},
		{
			name:    "rsa: modulus too small",
			factory: NewRSAFactory(testTTL),
			data:    rsaSmallDER,
		},
		{
			name:    "ecdsa: garbage",
			factory: NewECDSAFactory(testTTL),
			data:    []byte{0x30, 0x03, 0x02, 0x01, 0x00},
		},
		{
			name:    "ecdsa: rsa key",
			factory: NewECDSAFactory(testTTL),
			data:    rsaKey.PrivateBytes(),
		},
		{
			name:    "ecdsa: wrong curve",
			factory: NewECDSAFactory(testTTL),
			data:    p256DER,
		},
		{
			name:    "ecdsa: truncated",
			factory: NewECDSAFactory(testTTL),
			data:    ecKey.PrivateBytes()[:20],
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewWithT(t)

			key, err := tt.factory.FromPrivateBytes(tt.data, "id", time.Now())
			g.Expect(err).To(MatchError(ErrMalformedKeyData))
			g.Expect(key).To(BeNil())
		})
	}
}

func TestKey_Valid(t *testing.T) {
	for _, f := range testFactories() {
		t.Run(f.Algorithm().String(), func(t *testing.T) {
			g := NewWithT(t)

			createdAt := time.Date(2023, 1, 1, 12, 0, 0, 0, time.UTC)
			key, err := f.CreateKey(createdAt)
			g.Expect(err).ToNot(HaveOccurred())

			g.Expect(key.Valid(createdAt)).To(BeTrue())
			g.Expect(key.Valid(createdAt.Add(testTTL - time.Second))).To(BeTrue())
			g.Expect(key.Valid(createdAt.Add(testTTL))).To(BeFalse())
			g.Expect(key.Valid(createdAt.Add(testTTL + time.Second))).To(BeFalse())
		})
	}
}

func TestKey_PublicKeyLeaksNothingPrivate(t *testing.T) {
	for _, f := range testFactories() {
		t.Run(f.Algorithm().String(), func(t *testing.T) {
			g := NewWithT(t)

			key, err := f.CreateKey(time.Now())
			g.Expect(err).ToNot(HaveOccurred())

			der := key.PrivateBytes()
			parsed, err := x509.ParsePKCS8PrivateKey(der)
			g.Expect(err).ToNot(HaveOccurred())

			// Encodings under which private material could show up.
			var secrets []string
			for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
				secrets = append(secrets, enc.EncodeToString(der))
			}
			switch priv := parsed.(type) {
			case *rsa.PrivateKey:
				secrets = append(secrets, base64.RawURLEncoding.EncodeToString(priv.D.Bytes()))
				for _, p := range priv.Primes {
					secrets = append(secrets, base64.RawURLEncoding.EncodeToString(p.Bytes()))
				}
			case *ecdsa.PrivateKey:
				d := priv.D.FillBytes(make([]byte, 66))
				secrets = append(secrets, base64.RawURLEncoding.EncodeToString(d))
			}

			pub := key.PublicKey()
			fields := []string{pub.KeyType, pub.KeyID, pub.Algorithm, pub.Use, pub.N, pub.E, pub.Curve, pub.X, pub.Y}
			for _, field := range fields {
				g.Expect(field).ToNot(Equal(string(der)))
				for _, secret := range secrets {
					g.Expect(field).ToNot(ContainSubstring(secret))
				}
			}

			b, err := json.Marshal(pub)
			g.Expect(err).ToNot(HaveOccurred())
			var m map[string]any
			g.Expect(json.Unmarshal(b, &m)).To(Succeed())
			for _, private := range []string{"d", "p", "q", "dp", "dq", "qi"} {
				g.Expect(m).ToNot(HaveKey(private))
			}
		})
	}
}

func TestSigningHandle_NotSerializable(t *testing.T) {
	g := NewWithT(t)

	key, err := NewRSAFactory(testTTL).CreateKey(time.Now())
	g.Expect(err).ToNot(HaveOccurred())
	h := key.SigningHandle()

	g.Expect(h.KeyID()).To(Equal(key.ID()))
	g.Expect(h.Algorithm()).To(Equal(AlgorithmRS256))

	_, err = json.Marshal(h)
	g.Expect(err).To(HaveOccurred())
	_, err = json.Marshal(map[string]any{"handle": h})
	g.Expect(err).To(HaveOccurred())

	for _, verb := range []string{"%v", "%+v", "%#v", "%s", "%x"} {
		g.Expect(fmt.Sprintf(verb, h)).To(Equal("[REDACTED]"))
	}
	g.Expect(fmt.Sprint(struct{ H SigningHandle }{h})).To(ContainSubstring("[REDACTED]"))
}

func TestSigningHandle_Sign(t *testing.T) {
	for _, f := range testFactories() {
		t.Run(f.Algorithm().String(), func(t *testing.T) {
			g := NewWithT(t)

			key, err := f.CreateKey(time.Now())
			g.Expect(err).ToNot(HaveOccurred())

			tok, err := jwt.NewBuilder().Subject("user").Build()
			g.Expect(err).ToNot(HaveOccurred())

			b, err := key.SigningHandle().Sign(tok, "at+jwt")
			g.Expect(err).ToNot(HaveOccurred())

			parts := strings.Split(string(b), ".")
			g.Expect(parts).To(HaveLen(3))
			rawHeader, err := base64.RawURLEncoding.DecodeString(parts[0])
			g.Expect(err).ToNot(HaveOccurred())
			var header map[string]any
			g.Expect(json.Unmarshal(rawHeader, &header)).To(Succeed())
			g.Expect(header).To(HaveKeyWithValue("alg", f.Algorithm().String()))
			g.Expect(header).To(HaveKeyWithValue("kid", key.ID()))
			g.Expect(header).To(HaveKeyWithValue("typ", "at+jwt"))
		})
	}
}

func TestSigningHandle_SignEmpty(t *testing.T) {
	g := NewWithT(t)

	tok, err := jwt.NewBuilder().Subject("user").Build()
	g.Expect(err).ToNot(HaveOccurred())

	_, err = SigningHandle{}.Sign(tok, "at+jwt")
	g.Expect(err).To(MatchError("signing handle has no key"))
}

func TestNewFactory(t *testing.T) {
	tests := []struct {
		alg         Algorithm
		expectedErr error
	}{
		{alg: AlgorithmRS256},
		{alg: AlgorithmES512},
		{alg: "HS256", expectedErr: ErrUnsupportedAlgorithm},
		{alg: "", expectedErr: ErrUnsupportedAlgorithm},
	}

	for _, tt := range tests {
		t.Run(string(tt.alg), func(t *testing.T) {
			g := NewWithT(t)

			f, err := NewFactory(tt.alg, testTTL)
			if tt.expectedErr != nil {
				g.Expect(err).To(MatchError(tt.expectedErr))
				g.Expect(f).To(BeNil())
			} else {
				g.Expect(err).ToNot(HaveOccurred())
				g.Expect(f.Algorithm()).To(Equal(tt.alg))
			}
		})
	}
}

func TestNewFactories(t *testing.T) {
	g := NewWithT(t)

	m := NewFactories(testTTL)
	g.Expect(m).To(HaveLen(2))
	g.Expect(m[AlgorithmRS256].Algorithm()).To(Equal(AlgorithmRS256))
	g.Expect(m[AlgorithmES512].Algorithm()).To(Equal(AlgorithmES512))
}

func TestParseAlgorithm(t *testing.T) {
	tests := []struct {
		in       string
		expected Algorithm
		wantErr  bool
	}{
		{in: "RS256", expected: AlgorithmRS256},
		{in: "rs256", expected: AlgorithmRS256},
		{in: "ES512", expected: AlgorithmES512},
		{in: "es512", expected: AlgorithmES512},
		{in: "ES256", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			g := NewWithT(t)

			alg, err := ParseAlgorithm(tt.in)
			if tt.wantErr {
				g.Expect(err).To(MatchError(ErrUnsupportedAlgorithm))
			} else {
				g.Expect(err).ToNot(HaveOccurred())
				g.Expect(alg).To(Equal(tt.expected))
			}
		})
	}
}
