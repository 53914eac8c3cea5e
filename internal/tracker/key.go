package tracker

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math/big"
	"regexp"
)

// MaxKeyAttempts bounds how many random keys are tried before giving up.
const MaxKeyAttempts = 20

var (
	keyPattern = regexp.MustCompile(`^[A-Z]{3}-\d{5}$`)

	ErrKeySpaceExhausted = errors.New("could not allocate a unique ticket key")
)

const (
	keyLetters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	keyDigits  = "0123456789"
)

// IsTicketKey reports whether value looks like ABC-01234.
func IsTicketKey(value string) bool {
	return keyPattern.MatchString(value)
}

// RandomTicketKey draws three upper-case letters and five digits from source.
func RandomTicketKey(source io.Reader) (string, error) {
	buf := make([]byte, 0, 9)
	for i := 0; i < 3; i++ {
		c, err := pick(source, keyLetters)
		if err != nil {
			return "", err
		}
		buf = append(buf, c)
	}
	buf = append(buf, '-')
	for i := 0; i < 5; i++ {
		c, err := pick(source, keyDigits)
		if err != nil {
			return "", err
		}
		buf = append(buf, c)
	}
	return string(buf), nil
}

func pick(source io.Reader, alphabet string) (byte, error) {
	n, err := rand.Int(source, big.NewInt(int64(len(alphabet))))
	if err != nil {
		return 0, fmt.Errorf("draw ticket key: %w", err)
	}
	return alphabet[n.Int64()], nil
}

// KeyExistsFunc reports whether a key is already taken.
type KeyExistsFunc func(ctx context.Context, key string) (bool, error)

// NewTicketKey draws keys until exists reports a free one.
func NewTicketKey(ctx context.Context, exists KeyExistsFunc) (string, error) {
	for attempt := 0; attempt < MaxKeyAttempts; attempt++ {
		key, err := RandomTicketKey(rand.Reader)
		if err != nil {
			return "", err
		}
		taken, err := exists(ctx, key)
		if err != nil {
			return "", fmt.Errorf("check ticket key: %w", err)
		}
		if !taken {
			return key, nil
		}
	}
	return "", ErrKeySpaceExhausted
}
