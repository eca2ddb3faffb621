package domain

import (
	"context"
	"crypto/rand"
	"fmt"
)

const codeAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

const (
	DefaultCodeLength   = 7
	DefaultCodeAttempts = 5
)

// CodeChecker reports whether a candidate short code is already taken.
type CodeChecker func(ctx context.Context, code string) (bool, error)

// NewShortCode draws length characters uniformly from a-z0-9 using a
// cryptographically secure source. Codes are public link tokens, so they
// must not be guessable or enumerable. Rejection sampling keeps the
// distribution uniform (256 is not a multiple of 36).
func NewShortCode(length int) (string, error) {
	if length <= 0 {
		length = DefaultCodeLength
	}
	const limit = byte(len(codeAlphabet) * (256 / len(codeAlphabet))) // 252
	out := make([]byte, 0, length)
	buf := make([]byte, length)
	for len(out) < length {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("read random: %w", err)
		}
		for _, b := range buf {
			if b >= limit {
				continue
			}
			out = append(out, codeAlphabet[int(b)%len(codeAlphabet)])
			if len(out) == length {
				break
			}
		}
	}
	return string(out), nil
}

// GenerateUniqueCode draws codes until one passes the taken check, up to
// maxAttempts draws. After maxAttempts consecutive collisions it fails with
// ErrExhaustedRetries; the caller must abort that request, never reuse a
// code. The check is advisory only; the storage unique constraint on
// short_code remains the source of truth under concurrent inserts.
func GenerateUniqueCode(ctx context.Context, taken CodeChecker, length, maxAttempts int) (string, error) {
	if maxAttempts <= 0 {
		maxAttempts = DefaultCodeAttempts
	}
	for i := 0; i < maxAttempts; i++ {
		code, err := NewShortCode(length)
		if err != nil {
			return "", err
		}
		exists, err := taken(ctx, code)
		if err != nil {
			return "", fmt.Errorf("check code: %w", err)
		}
		if !exists {
			return code, nil
		}
	}
	return "", ErrExhaustedRetries
}
