package static

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/matheuscscp/technews-auth/internal/config"
	"github.com/matheuscscp/technews-auth/internal/identity"
	"github.com/matheuscscp/technews-auth/internal/logging"
)

type user struct {
	subject      identity.Subject
	passwordHash []byte
}

type attempts struct {
	failed      int
	lockedUntil time.Time
}

type provider struct {
	users             map[string]*user
	maxFailedAttempts int
	lockoutDuration   time.Duration
	now               func() time.Time

	// dummyHash is compared against when the email is unknown, so that
	// unknown users cost as much as wrong passwords.
	dummyHash []byte

	mu       sync.Mutex
	attempts map[string]*attempts
}

func New(conf *config.IdentityConfig) (identity.Interface, error) {
	p, err := newProvider(conf, time.Now)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func newProvider(conf *config.IdentityConfig, now func() time.Time) (*provider, error) {
	dummyHash, err := bcrypt.GenerateFromPassword([]byte("technews-auth"), bcrypt.MinCost)
	if err != nil {
		return nil, fmt.Errorf("failed to generate dummy password hash: %w", err)
	}

	p := &provider{
		users:             make(map[string]*user, len(conf.Users)),
		maxFailedAttempts: conf.MaxFailedAttempts,
		lockoutDuration:   conf.LockoutDuration,
		now:               now,
		dummyHash:         dummyHash,
		attempts:          make(map[string]*attempts),
	}

	for i, u := range conf.Users {
		if _, err := bcrypt.Cost([]byte(u.PasswordHash)); err != nil {
			return nil, fmt.Errorf("invalid passwordHash for identity.users[%d]: %w", i, err)
		}
		claims := make([]identity.Claim, 0, len(u.Claims))
		for _, c := range u.Claims {
			claims = append(claims, identity.Claim{Type: c.Type, Value: c.Value})
		}
		p.users[normalizeEmail(u.Email)] = &user{
			subject: identity.Subject{
				ID:     u.ID,
				Email:  normalizeEmail(u.Email),
				Name:   u.Name,
				Claims: claims,
				Roles:  append([]string(nil), u.Roles...),
			},
			passwordHash: []byte(u.PasswordHash),
		}
	}

	return p, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (p *provider) Authenticate(ctx context.Context, email, password string) (*identity.Subject, error) {
	email = normalizeEmail(email)
	l := logging.FromContext(ctx).WithField("email", email)

	u, ok := p.users[email]
	if !ok {
		_ = bcrypt.CompareHashAndPassword(p.dummyHash, []byte(password))
		l.Debug("unknown user")
		return nil, identity.ErrInvalidCredentials
	}

	now := p.now()
	if p.lockedOut(email, now) {
		l.Debug("authentication attempt while locked out")
		return nil, identity.ErrLockedOut
	}

	if err := bcrypt.CompareHashAndPassword(u.passwordHash, []byte(password)); err != nil {
		if p.recordFailure(email, now) {
			l.WithField("lockout", logrus.Fields{
				"until": now.Add(p.lockoutDuration),
			}).Warn("user locked out")
			return nil, identity.ErrLockedOut
		}
		return nil, identity.ErrInvalidCredentials
	}

	p.resetFailures(email)

	s := u.subject
	s.Claims = append([]identity.Claim(nil), u.subject.Claims...)
	s.Roles = append([]string(nil), u.subject.Roles...)
	return &s, nil
}

func (p *provider) lockedOut(email string, now time.Time) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	a, ok := p.attempts[email]
	return ok && now.Before(a.lockedUntil)
}

// recordFailure counts a failed attempt and reports whether it started a
// lockout.
func (p *provider) recordFailure(email string, now time.Time) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	a, ok := p.attempts[email]
	if !ok {
		a = &attempts{}
		p.attempts[email] = a
	}
	a.failed++
	if a.failed < p.maxFailedAttempts {
		return false
	}
	a.failed = 0
	a.lockedUntil = now.Add(p.lockoutDuration)
	return true
}

func (p *provider) resetFailures(email string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.attempts, email)
}
