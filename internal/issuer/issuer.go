package issuer

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v3/jwt"
	"github.com/sirupsen/logrus"

	"github.com/matheuscscp/technews-auth/internal/config"
	"github.com/matheuscscp/technews-auth/internal/constants"
	"github.com/matheuscscp/technews-auth/internal/identity"
	"github.com/matheuscscp/technews-auth/internal/keys"
	"github.com/matheuscscp/technews-auth/internal/logging"
	"github.com/matheuscscp/technews-auth/internal/metrics"
)

var (
	ErrNoSigningKeyAvailable = errors.New("no signing key available")
	ErrReservedClaim         = errors.New("claim name is reserved")
)

// Request describes the subject of a token.
type Request struct {
	SubjectID   string
	Email       string
	DisplayName string
	Issuer      string
	Claims      []identity.Claim
	Roles       []string
}

type AccessToken struct {
	AccessToken      string `json:"accessToken"`
	TokenType        string `json:"tokenType"`
	ExpiresInSeconds int64  `json:"expiresInSeconds"`
}

type currentKeyRetriever interface {
	Current(ctx context.Context) (keys.Key, error)
}

type TokenIssuer struct {
	retriever currentKeyRetriever
	lifetime  time.Duration
	metrics   *metrics.Metrics
}

func NewTokenIssuer(retriever *KeyRetriever, conf *config.TokenConfig, m *metrics.Metrics) *TokenIssuer {
	return &TokenIssuer{
		retriever: retriever,
		lifetime:  conf.Lifetime,
		metrics:   m,
	}
}

// IssueCurrent signs a token with the current key of the retriever.
func (t *TokenIssuer) IssueCurrent(ctx context.Context, req Request, now time.Time) (*AccessToken, error) {
	key, err := t.retriever.Current(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoSigningKeyAvailable, err)
	}
	return t.issue(ctx, req, key, now)
}

// Issue signs a token for req with key. The token is valid from now until
// now plus the configured lifetime.
func (t *TokenIssuer) Issue(req Request, key keys.Key, now time.Time) (*AccessToken, error) {
	return t.issue(context.Background(), req, key, now)
}

func (t *TokenIssuer) issue(ctx context.Context, req Request, key keys.Key, now time.Time) (*AccessToken, error) {
	if key == nil {
		return nil, ErrNoSigningKeyAvailable
	}
	if req.Issuer == "" {
		return nil, fmt.Errorf("token issuer must be set")
	}

	extra, err := extraClaims(req)
	if err != nil {
		return nil, err
	}

	jti := uuid.NewString()
	exp := now.Add(t.lifetime)
	b := jwt.NewBuilder().
		Subject(req.SubjectID).
		Claim(constants.ClaimEmail, req.Email).
		Claim(constants.ClaimName, req.DisplayName).
		JwtID(jti).
		IssuedAt(now).
		NotBefore(now).
		Expiration(exp).
		Issuer(req.Issuer)
	for _, c := range extra {
		if len(c.values) == 1 {
			b = b.Claim(c.name, c.values[0])
		} else {
			b = b.Claim(c.name, c.values)
		}
	}
	tok, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build token: %w", err)
	}

	handle := key.SigningHandle()
	signed, err := handle.Sign(tok, constants.TokenType)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	t.metrics.TokenIssued(handle.Algorithm().String())
	logging.FromContext(ctx).WithField("token", logrus.Fields{
		"kid":       handle.KeyID(),
		"algorithm": handle.Algorithm(),
		"jti":       jti,
		"sub":       req.SubjectID,
		"exp":       exp,
	}).Info("token issued")

	return &AccessToken{
		AccessToken:      string(signed),
		TokenType:        constants.TokenType,
		ExpiresInSeconds: int64(t.lifetime / time.Second),
	}, nil
}

type claimValues struct {
	name   string
	values []string
}

// extraClaims groups the extra claims and roles by name, in the order each
// name first appears.
func extraClaims(req Request) ([]claimValues, error) {
	var out []claimValues
	add := func(name, value string) {
		for i := range out {
			if out[i].name == name {
				out[i].values = append(out[i].values, value)
				return
			}
		}
		out = append(out, claimValues{name: name, values: []string{value}})
	}

	reserved := constants.RegisteredClaims()
	for _, c := range req.Claims {
		if slices.Contains(reserved, c.Type) {
			return nil, fmt.Errorf("%w: '%s'", ErrReservedClaim, c.Type)
		}
		add(c.Type, c.Value)
	}
	for _, role := range req.Roles {
		add(constants.ClaimRole, role)
	}
	return out, nil
}
