package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

const (
	IdentityProviderStatic   = "static"
	IdentityProviderUpstream = "upstream"

	defaultMaxFailedAttempts = 5
	defaultLockoutDuration   = 5 * time.Minute
	defaultRolesClaim        = "roles"
)

type IdentityConfig struct {
	Provider          string        `yaml:"provider" json:"provider"`
	Users             []UserConfig  `yaml:"users" json:"users"`
	MaxFailedAttempts int           `yaml:"maxFailedAttempts" json:"maxFailedAttempts"`
	LockoutDuration   time.Duration `yaml:"lockoutDuration" json:"lockoutDuration"`

	Upstream UpstreamIdentityConfig `yaml:"upstream" json:"upstream"`
}

// UpstreamIdentityConfig points at an OAuth2 authorization server that
// supports the resource owner password grant and a userinfo endpoint.
type UpstreamIdentityConfig struct {
	TokenURL     string   `yaml:"tokenURL" json:"tokenURL"`
	UserInfoURL  string   `yaml:"userInfoURL" json:"userInfoURL"`
	ClientID     string   `yaml:"clientID" json:"clientID"`
	ClientSecret string   `yaml:"clientSecret" json:"-"`
	Scopes       []string `yaml:"scopes" json:"scopes"`

	// RolesClaim names the userinfo member holding the roles.
	RolesClaim string `yaml:"rolesClaim" json:"rolesClaim"`
	// Claims lists the userinfo members copied into tokens as extra claims.
	Claims []string `yaml:"claims" json:"claims"`
}

type UserConfig struct {
	ID           string        `yaml:"id" json:"id"`
	Email        string        `yaml:"email" json:"email"`
	Name         string        `yaml:"name" json:"name"`
	PasswordHash string        `yaml:"passwordHash" json:"-"`
	Claims       []ClaimConfig `yaml:"claims" json:"claims"`
	Roles        []string      `yaml:"roles" json:"roles"`
}

type ClaimConfig struct {
	Type  string `yaml:"type" json:"type"`
	Value string `yaml:"value" json:"value"`
}

func (i *IdentityConfig) validateAndInitialize() error {
	if i.Provider == "" {
		i.Provider = IdentityProviderStatic
	}
	if i.Users == nil {
		i.Users = []UserConfig{}
	}
	if i.MaxFailedAttempts == 0 {
		i.MaxFailedAttempts = defaultMaxFailedAttempts
	}
	if i.LockoutDuration == 0 {
		i.LockoutDuration = defaultLockoutDuration
	}

	switch i.Provider {
	case IdentityProviderStatic:
	case IdentityProviderUpstream:
		if err := i.Upstream.validateAndInitialize(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("identity.provider must be one of [%s, %s], got '%s'",
			IdentityProviderStatic, IdentityProviderUpstream, i.Provider)
	}
	if i.MaxFailedAttempts < 0 {
		return fmt.Errorf("identity.maxFailedAttempts must be positive")
	}
	if i.LockoutDuration < 0 {
		return fmt.Errorf("identity.lockoutDuration must be positive")
	}

	seenIDs := make(map[string]struct{}, len(i.Users))
	seenEmails := make(map[string]struct{}, len(i.Users))
	for idx := range i.Users {
		u := &i.Users[idx]
		u.Email = strings.ToLower(strings.TrimSpace(u.Email))
		if u.ID == "" {
			return fmt.Errorf("id is empty for identity.users[%d]", idx)
		}
		if u.Email == "" {
			return fmt.Errorf("email is empty for identity.users[%d]", idx)
		}
		if u.PasswordHash == "" {
			return fmt.Errorf("passwordHash is empty for identity.users[%d]", idx)
		}
		if _, ok := seenIDs[u.ID]; ok {
			return fmt.Errorf("duplicate id '%s' in identity.users", u.ID)
		}
		if _, ok := seenEmails[u.Email]; ok {
			return fmt.Errorf("duplicate email '%s' in identity.users", u.Email)
		}
		seenIDs[u.ID] = struct{}{}
		seenEmails[u.Email] = struct{}{}
		for j, c := range u.Claims {
			if c.Type == "" {
				return fmt.Errorf("claim type is empty for identity.users[%d].claims[%d]", idx, j)
			}
		}
	}
	return nil
}

func (u *UpstreamIdentityConfig) validateAndInitialize() error {
	if u.RolesClaim == "" {
		u.RolesClaim = defaultRolesClaim
	}
	if err := validateAbsoluteURL("identity.upstream.tokenURL", u.TokenURL); err != nil {
		return err
	}
	if err := validateAbsoluteURL("identity.upstream.userInfoURL", u.UserInfoURL); err != nil {
		return err
	}
	if u.ClientID == "" {
		return fmt.Errorf("identity.upstream.clientID must be set")
	}
	for idx, c := range u.Claims {
		if c == "" {
			return fmt.Errorf("claim name is empty for identity.upstream.claims[%d]", idx)
		}
	}
	return nil
}

func validateAbsoluteURL(field, s string) error {
	if s == "" {
		return fmt.Errorf("%s must be set", field)
	}
	u, err := url.Parse(s)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return fmt.Errorf("%s must be an absolute URL: '%s'", field, s)
	}
	return nil
}
