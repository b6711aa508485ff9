package invites

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"time"

	"github.com/pantryware/homestock/internal/cache"
)

const tokenKeyPrefix = "invites:decision:"

// TokenStore issues and consumes decision tokens. A token is an opaque
// random string bound to the recipient who listed their invitations; it is
// single-use and expires after the configured TTL.
type TokenStore struct {
	cache cache.Cache
	ttl   time.Duration
}

func NewTokenStore(c cache.Cache, ttl time.Duration) *TokenStore {
	if ttl <= 0 {
		ttl = cache.TTLDecisionToken
	}
	return &TokenStore{cache: c, ttl: ttl}
}

// Issue creates a fresh decision token for userID.
func (s *TokenStore) Issue(ctx context.Context, userID string) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	token := base64.RawURLEncoding.EncodeToString(buf)
	if err := s.cache.Set(ctx, tokenKeyPrefix+token, []byte(userID), s.ttl); err != nil {
		return "", err
	}
	return token, nil
}

// Validate checks token belongs to userID without consuming it. Unknown,
// expired, already-consumed, and other-user tokens all fail with
// ErrDecisionTokenInvalid.
func (s *TokenStore) Validate(ctx context.Context, token, userID string) error {
	if token == "" {
		return ErrDecisionTokenInvalid
	}
	val, err := s.cache.Get(ctx, tokenKeyPrefix+token)
	if err != nil {
		if errors.Is(err, cache.ErrNotFound) || errors.Is(err, cache.ErrExpired) {
			return ErrDecisionTokenInvalid
		}
		return err
	}
	if string(val) != userID {
		return ErrDecisionTokenInvalid
	}
	return nil
}

// Consume validates token for userID and invalidates it. Tokens are
// single-use: they are consumed only by a decision that actually mutates
// state, so a rejected decision leaves its token reusable.
func (s *TokenStore) Consume(ctx context.Context, token, userID string) error {
	if err := s.Validate(ctx, token, userID); err != nil {
		return err
	}
	return s.cache.Delete(ctx, tokenKeyPrefix+token)
}
