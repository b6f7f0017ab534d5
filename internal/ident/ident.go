// Package ident generates record identifiers.
package ident

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/google/uuid"
)

// Schemes accepted by New.
const (
	SchemeShort = "short"
	SchemeUUID  = "uuid"
)

// ShortLength is the number of base36 characters in a short id.
const ShortLength = 7

const alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// Generator produces record identifiers. Implementations need not guarantee
// uniqueness; callers check against the ids they already hold.
type Generator interface {
	NewID() string
}

// GeneratorFunc adapts a plain function to Generator.
type GeneratorFunc func() string

// NewID calls f.
func (f GeneratorFunc) NewID() string { return f() }

// New returns the generator for scheme.
func New(scheme string) (Generator, error) {
	switch scheme {
	case "", SchemeShort:
		return GeneratorFunc(Short), nil
	case SchemeUUID:
		return GeneratorFunc(uuid.NewString), nil
	default:
		return nil, fmt.Errorf("ident: unknown scheme %q", scheme)
	}
}

// Short returns a random 7-character base36 id.
func Short() string {
	max := big.NewInt(int64(len(alphabet)))
	b := make([]byte, ShortLength)
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand does not fail on supported platforms.
			panic(fmt.Sprintf("ident: read random: %v", err))
		}
		b[i] = alphabet[n.Int64()]
	}
	return string(b)
}

// Unique draws ids from g until taken reports false, giving up after
// attempts draws and returning the last id.
func Unique(g Generator, taken func(string) bool, attempts int) string {
	if attempts < 1 {
		attempts = 1
	}
	id := g.NewID()
	for i := 1; i < attempts && taken(id); i++ {
		id = g.NewID()
	}
	return id
}
