package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/oauth2"

	"github.com/matheuscscp/technews-auth/internal/config"
	"github.com/matheuscscp/technews-auth/internal/identity"
	"github.com/matheuscscp/technews-auth/internal/logging"
)

const errorCodeInvalidGrant = "invalid_grant"

// provider authenticates against an upstream OAuth2 server with the resource
// owner password grant and reads the subject from its userinfo endpoint.
// Lockout is the upstream server's concern.
type provider struct {
	oauth2      *oauth2.Config
	userInfoURL string
	rolesClaim  string
	claims      []string
}

func New(conf *config.UpstreamIdentityConfig) (identity.Interface, error) {
	return &provider{
		oauth2: &oauth2.Config{
			ClientID:     conf.ClientID,
			ClientSecret: conf.ClientSecret,
			Scopes:       conf.Scopes,
			Endpoint: oauth2.Endpoint{
				TokenURL: conf.TokenURL,
			},
		},
		userInfoURL: conf.UserInfoURL,
		rolesClaim:  conf.RolesClaim,
		claims:      conf.Claims,
	}, nil
}

func (p *provider) Authenticate(ctx context.Context, email, password string) (*identity.Subject, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	l := logging.FromContext(ctx).WithField("email", email)

	tok, err := p.oauth2.PasswordCredentialsToken(ctx, email, password)
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.ErrorCode == errorCodeInvalidGrant {
			l.Debug("upstream rejected credentials")
			return nil, identity.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to exchange credentials upstream: %w", err)
	}

	info, err := p.userInfo(ctx, oauth2.StaticTokenSource(tok))
	if err != nil {
		return nil, err
	}
	return p.subject(email, info)
}

func (p *provider) userInfo(ctx context.Context, ts oauth2.TokenSource) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create userinfo request: %w", err)
	}
	resp, err := oauth2.NewClient(ctx, ts).Do(req)
	if err != nil {
		return nil, fmt.Errorf("userinfo request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo: %s", resp.Status)
	}

	var info map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("error unmarshaling userinfo response: %w", err)
	}
	return info, nil
}

func (p *provider) subject(email string, info map[string]any) (*identity.Subject, error) {
	sub, _ := info["sub"].(string)
	if sub == "" {
		return nil, fmt.Errorf("userinfo response has no subject")
	}
	s := &identity.Subject{
		ID:    sub,
		Email: email,
		Roles: stringValues(info[p.rolesClaim]),
	}
	if v, ok := info["email"].(string); ok && v != "" {
		s.Email = strings.ToLower(v)
	}
	if v, ok := info["name"].(string); ok {
		s.Name = v
	}
	for _, name := range p.claims {
		for _, v := range stringValues(info[name]) {
			s.Claims = append(s.Claims, identity.Claim{Type: name, Value: v})
		}
	}
	return s, nil
}

// stringValues accepts a string or an array of strings. Anything else yields
// no values.
func stringValues(v any) []string {
	switch v := v.(type) {
	case string:
		return []string{v}
	case []any:
		var out []string
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
