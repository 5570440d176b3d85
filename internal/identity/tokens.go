package identity

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/blake2b"
)

// ErrInvalidToken is returned when a bearer token is unknown or expired.
var ErrInvalidToken = errors.New("identity: invalid or expired token")

// TokenStore maps opaque bearer tokens to actors in Redis. Tokens are minted
// by the authentication service; only their blake2b digest is used as key.
type TokenStore struct {
	client *redis.Client
	prefix string
}

// NewTokenStore constructs a TokenStore.
func NewTokenStore(client *redis.Client, prefix string) *TokenStore {
	if prefix == "" {
		prefix = "tierquote:token"
	}
	return &TokenStore{client: client, prefix: prefix}
}

// Store binds an externally minted token to actor for ttl.
func (s *TokenStore) Store(ctx context.Context, token string, actor Actor, ttl time.Duration) error {
	if strings.TrimSpace(token) == "" {
		return errors.New("identity: token required")
	}
	if !actor.Role.Valid() {
		return errors.New("identity: actor role required")
	}
	if actor.Role == RoleClient && actor.ClientID == nil {
		return errors.New("identity: client actor must be linked to a client")
	}
	payload, err := json.Marshal(actor)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(token), payload, ttl).Err()
}

// Issue mints a random token for actor.
func (s *TokenStore) Issue(ctx context.Context, actor Actor, ttl time.Duration) (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	token := base64.RawURLEncoding.EncodeToString(b)
	if err := s.Store(ctx, token, actor, ttl); err != nil {
		return "", err
	}
	return token, nil
}

// Resolve returns the actor bound to token.
func (s *TokenStore) Resolve(ctx context.Context, token string) (Actor, error) {
	if strings.TrimSpace(token) == "" {
		return Actor{}, ErrInvalidToken
	}
	payload, err := s.client.Get(ctx, s.key(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Actor{}, ErrInvalidToken
		}
		return Actor{}, err
	}
	var actor Actor
	if err := json.Unmarshal(payload, &actor); err != nil {
		return Actor{}, err
	}
	if !actor.Role.Valid() {
		return Actor{}, ErrInvalidToken
	}
	return actor, nil
}

// Revoke deletes token.
func (s *TokenStore) Revoke(ctx context.Context, token string) error {
	err := s.client.Del(ctx, s.key(token)).Err()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	return err
}

func (s *TokenStore) key(token string) string {
	sum := blake2b.Sum256([]byte(token))
	return s.prefix + ":" + hex.EncodeToString(sum[:])
}
