// Package roomname generates memorable room IDs such as "brisk-heron-lantern".
package roomname

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

// maxAttempts bounds Unique before it gives up on the taken check.
const maxAttempts = 64

// New returns a random adjective-creature-thing room name.
func New() (string, error) {
	words := make([]string, 0, 3)
	for _, list := range [][]string{adjectives, creatures, things} {
		i, err := randomIndex(len(list))
		if err != nil {
			return "", fmt.Errorf("generate room name: %w", err)
		}
		words = append(words, list[i])
	}
	return strings.Join(words, "-"), nil
}

// Unique returns a name for which taken reports false.
func Unique(taken func(string) bool) (string, error) {
	for range maxAttempts {
		name, err := New()
		if err != nil {
			return "", err
		}
		if taken == nil || !taken(name) {
			return name, nil
		}
	}
	return "", fmt.Errorf("generate room name: no free name after %d attempts", maxAttempts)
}

// Valid reports whether id is usable as a room ID on the command line.
func Valid(id string) bool {
	if id == "" || len(id) > 128 {
		return false
	}
	for _, r := range id {
		if r <= ' ' || r == 0x7f {
			return false
		}
	}
	return true
}

// randomIndex returns a cryptographically secure random index for a slice of given length.
func randomIndex(n int) (int, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, err
	}
	return int(v.Int64()), nil
}
