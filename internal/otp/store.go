// Package otp stores single-use email verification codes in Redis. Codes
// live under otp:<email> with a fixed TTL; the store's own expiration is the
// only expiry mechanism, there is no separate expiry field.
package otp

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix = "otp:"
	codeTTL   = 300 * time.Second
)

var (
	// ErrNoCodeOrExpired is returned when no code is pending for the email,
	// either because none was issued or because the TTL ran out.
	ErrNoCodeOrExpired = errors.New("no verification code pending or code expired")

	// ErrInvalidCode is returned on a mismatch. The pending code stays in
	// place so the user can retry within the expiration window.
	ErrInvalidCode = errors.New("incorrect verification code")
)

// Store issues and verifies codes against a Redis-compatible backend.
type Store struct {
	client *redis.Client
}

func NewStore(client *redis.Client) *Store {
	return &Store{client: client}
}

func key(email string) string {
	return keyPrefix + strings.ToLower(strings.TrimSpace(email))
}

// GenerateCode returns a uniformly random 6-digit code in [100000, 999999].
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", fmt.Errorf("generate otp code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

// Issue generates a fresh code for the email and stores it with a 300 second
// TTL, overwriting any pending code (latest code wins). The write is read
// back immediately; an unconfirmed write is a hard failure, never silent
// best-effort.
func (s *Store) Issue(ctx context.Context, email string) (string, error) {
	code, err := GenerateCode()
	if err != nil {
		return "", err
	}

	k := key(email)
	if err := s.client.Set(ctx, k, code, codeTTL).Err(); err != nil {
		return "", fmt.Errorf("store otp: %w", err)
	}

	stored, err := s.client.Get(ctx, k).Result()
	if err != nil {
		return "", fmt.Errorf("confirm otp write: %w", err)
	}
	if stored != code {
		return "", fmt.Errorf("otp write not confirmed")
	}

	return code, nil
}

// Verify compares the submitted code against the pending one. On match the
// key is deleted, making the code single-use. A failed attempt leaves the
// pending code untouched.
func (s *Store) Verify(ctx context.Context, email, submitted string) error {
	k := key(email)

	stored, err := s.client.Get(ctx, k).Result()
	if errors.Is(err, redis.Nil) {
		return ErrNoCodeOrExpired
	}
	if err != nil {
		return fmt.Errorf("read otp: %w", err)
	}

	if stored != submitted {
		return ErrInvalidCode
	}

	if err := s.client.Del(ctx, k).Err(); err != nil {
		return fmt.Errorf("consume otp: %w", err)
	}
	return nil
}
