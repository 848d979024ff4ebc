// Package credentials hides how user passwords are stored and checked.
package credentials

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const (
	SchemePlain  = "plain"
	SchemeBcrypt = "bcrypt"
)

// Verifier prepares passwords for storage and checks login attempts against
// the stored form.
type Verifier interface {
	Hash(password string) (string, error)
	Verify(stored, password string) bool
}

// New returns the verifier for scheme. An empty scheme means plain.
func New(scheme string) (Verifier, error) {
	switch scheme {
	case "", SchemePlain:
		return Plain{}, nil
	case SchemeBcrypt:
		return Bcrypt{Cost: bcrypt.DefaultCost}, nil
	default:
		return nil, fmt.Errorf("unknown password scheme %q", scheme)
	}
}

// Plain stores passwords as given and compares them by exact equality.
type Plain struct{}

func (Plain) Hash(password string) (string, error) { return password, nil }

func (Plain) Verify(stored, password string) bool { return stored == password }

// Bcrypt stores bcrypt hashes.
type Bcrypt struct {
	Cost int
}

func (b Bcrypt) Hash(password string) (string, error) {
	cost := b.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func (Bcrypt) Verify(stored, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(password)) == nil
}
