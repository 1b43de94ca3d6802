// Package ids generates the opaque identifiers used for every ledger and
// workflow record: 12 characters drawn from [A-Za-z0-9], checked against
// the owning table before use.
package ids

import (
	"context"
	"crypto/rand"
	"errors"
	"io"
	"regexp"
)

const (
	Length      = 12
	alphabet    = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	maxAttempts = 8
)

var (
	ErrExhausted = errors.New("ids: no free identifier after retries")

	pattern = regexp.MustCompile(`^[A-Za-z0-9]{12}$`)
)

// ExistsFunc reports whether candidate is already taken.
type ExistsFunc func(ctx context.Context, candidate string) (bool, error)

type Generator struct {
	entropy io.Reader
}

func NewGenerator() *Generator {
	return &Generator{entropy: rand.Reader}
}

// NewGeneratorFrom builds a generator over an explicit entropy source.
func NewGeneratorFrom(entropy io.Reader) *Generator {
	return &Generator{entropy: entropy}
}

// Next returns a fresh identifier for which exists reports false. A nil
// exists skips the collision check.
func (g *Generator) Next(ctx context.Context, exists ExistsFunc) (string, error) {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		candidate, err := g.candidate()
		if err != nil {
			return "", err
		}
		if exists == nil {
			return candidate, nil
		}
		taken, err := exists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
	}
	return "", ErrExhausted
}

// candidate uses rejection sampling so every symbol is equally likely.
func (g *Generator) candidate() (string, error) {
	const limit = 256 - 256%len(alphabet)
	out := make([]byte, 0, Length)
	buf := make([]byte, Length*2)
	for len(out) < Length {
		if _, err := io.ReadFull(g.entropy, buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			out = append(out, alphabet[int(b)%len(alphabet)])
			if len(out) == Length {
				break
			}
		}
	}
	return string(out), nil
}

func Valid(id string) bool {
	return pattern.MatchString(id)
}
