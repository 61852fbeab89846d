// Package idgen generates short, URL-safe ids for profiles, nodes and edges.
package idgen

import (
	"fmt"

	nanoid "github.com/matoous/go-nanoid/v2"
)

// Prefixes for each kind of generated id.
const (
	ProfilePrefix = "prf-"
	NodePrefix    = "n-"
	EdgePrefix    = "e-"
)

// Alphabet is the character set of the random part.
const Alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Length is the number of random characters after the prefix.
const Length = 10

// New returns prefix followed by Length random characters.
func New(prefix string) (string, error) {
	id, err := nanoid.Generate(Alphabet, Length)
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	return prefix + id, nil
}

// Profile returns a new profile id.
func Profile() (string, error) { return New(ProfilePrefix) }

// Node returns a new node id.
func Node() (string, error) { return New(NodePrefix) }

// Edge returns a new edge id.
func Edge() (string, error) { return New(EdgePrefix) }
