package identity

import (
	"context"
	"errors"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrLockedOut          = errors.New("user locked out")
)

// Claim is an extra claim attached to a subject. A subject may carry several
// claims of the same type.
type Claim struct {
	Type  string
	Value string
}

// Subject is an authenticated user.
type Subject struct {
	ID     string
	Email  string
	Name   string
	Claims []Claim
	Roles  []string
}

type Interface interface {
	// Authenticate checks the password of the user with the given email.
	// Unknown users and wrong passwords both fail with ErrInvalidCredentials.
	Authenticate(ctx context.Context, email, password string) (*Subject, error)
}
