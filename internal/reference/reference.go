package reference

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math/big"
	"sync"
)

const (
	referenceCharset = "abcdefghijklmnopqrstuvwxyz0123456789"
	referenceLength  = 12
	accountDigits    = 9

	// MaxAttempts bounds how many candidates Unique draws before giving up.
	MaxAttempts = 16
)

var (
	// ErrExhausted is returned when every candidate drawn by Unique was taken.
	ErrExhausted = errors.New("no unique value after max attempts")

	accountSpace = big.NewInt(1_000_000_000)
	charsetSize  = big.NewInt(int64(len(referenceCharset)))
)

// Generator draws transaction references and account numbers from a
// cryptographically secure source.
type Generator struct {
	mu  sync.Mutex
	src io.Reader
}

// New builds a generator reading from src. A nil src uses crypto/rand.
func New(src io.Reader) *Generator {
	if src == nil {
		src = rand.Reader
	}
	return &Generator{src: src}
}

// Reference returns a 12 character value over [a-z0-9].
func (g *Generator) Reference() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]byte, referenceLength)
	for i := range out {
		n, err := rand.Int(g.src, charsetSize)
		if err != nil {
			return "", fmt.Errorf("draw reference: %w", err)
		}
		out[i] = referenceCharset[n.Int64()]
	}
	return string(out), nil
}

// AccountNumber returns a zero padded 9 digit account number.
func (g *Generator) AccountNumber() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	n, err := rand.Int(g.src, accountSpace)
	if err != nil {
		return "", fmt.Errorf("draw account number: %w", err)
	}
	return fmt.Sprintf("%0*d", accountDigits, n.Int64()), nil
}

// Unique draws candidates from next until taken reports one as free.
func Unique(ctx context.Context, next func() (string, error), taken func(context.Context, string) (bool, error)) (string, error) {
	for attempt := 0; attempt < MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		candidate, err := next()
		if err != nil {
			return "", err
		}
		exists, err := taken(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("check candidate: %w", err)
		}
		if !exists {
			return candidate, nil
		}
	}
	return "", ErrExhausted
}

// IsReference reports whether value has the shape of a transaction reference.
func IsReference(value string) bool {
	if len(value) != referenceLength {
		return false
	}
	for i := 0; i < len(value); i++ {
		c := value[i]
		if (c < 'a' || c > 'z') && (c < '0' || c > '9') {
			return false
		}
	}
	return true
}

// IsAccountNumber reports whether value is a 9 digit account number.
func IsAccountNumber(value string) bool {
	if len(value) != accountDigits {
		return false
	}
	for i := 0; i < len(value); i++ {
		if value[i] < '0' || value[i] > '9' {
			return false
		}
	}
	return true
}
