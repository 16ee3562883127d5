// Package slug generates short URL-safe identifiers for stored files.
package slug

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
)

// alphabet is the 62-character set used for identifiers: digits plus
// upper and lower case ASCII letters.
const alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

const (
	// MinLength and MaxLength bound the configurable identifier length.
	MinLength = 4
	MaxLength = 32

	// maxAttempts is the generation budget. Exhausting it means the
	// identifier space is effectively saturated at the configured length.
	maxAttempts = 5
)

// ErrCapacityExhausted is returned when the generator cannot find an unused
// identifier within its attempt budget.
var ErrCapacityExhausted = errors.New("identifier capacity exhausted")

// ExistsFunc reports whether an identifier is already allocated.
type ExistsFunc func(ctx context.Context, id string) (bool, error)

// Generator produces collision-checked identifiers. The exists check narrows
// the race window; the final guarantee comes from the unique constraint on
// the files table, which callers must handle by re-drawing.
type Generator struct {
	exists ExistsFunc
}

// NewGenerator creates a Generator backed by the given existence check.
func NewGenerator(exists ExistsFunc) *Generator {
	return &Generator{exists: exists}
}

// Generate returns a fresh identifier of the given length that did not exist
// at the time of the check. Returns ErrCapacityExhausted after the attempt
// budget is spent.
func (g *Generator) Generate(ctx context.Context, length int) (string, error) {
	if length < MinLength || length > MaxLength {
		return "", fmt.Errorf("slug length %d out of range [%d, %d]", length, MinLength, MaxLength)
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		id, err := Random(length)
		if err != nil {
			return "", err
		}

		taken, err := g.exists(ctx, id)
		if err != nil {
			return "", fmt.Errorf("failed to check identifier: %w", err)
		}
		if !taken {
			return id, nil
		}
	}

	return "", ErrCapacityExhausted
}

// Random returns a uniformly random identifier of the given length.
// Uses rejection sampling so every alphabet character is equally likely.
func Random(length int) (string, error) {
	out := make([]byte, 0, length)
	buf := make([]byte, length)

	// 248 is the largest multiple of 62 below 256; bytes at or above it
	// would bias the modulo and are re-drawn.
	const limit = 248

	for len(out) < length {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("failed to generate random bytes: %w", err)
		}
		for _, b := range buf {
			if b >= limit {
				continue
			}
			out = append(out, alphabet[int(b)%len(alphabet)])
			if len(out) == length {
				break
			}
		}
	}

	return string(out), nil
}
