// Package token issues the single-use tokens a browser presents when it opens
// the list websocket.
package token

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const issuer = "livelist"

var (
	// ErrInvalid is returned for tokens that fail to parse or verify.
	ErrInvalid = errors.New("invalid connect token")
	// ErrReplayed is returned when a token is presented a second time.
	ErrReplayed = errors.New("connect token already used")
)

// Config defines Service configuration
type Config struct {
	TTL time.Duration // Default: 1 minute
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{TTL: time.Minute}
}

// Claims is the payload of a connect token. The registered ID doubles as the
// single-use nonce.
type Claims struct {
	List string `json:"list"`
	jwt.RegisteredClaims
}

// Service signs and verifies connect tokens with a random HS256 key.
type Service struct {
	cfg Config
	now func() time.Time

	mu   sync.Mutex
	key  []byte
	used map[string]time.Time // nonce -> expiry
}

// NewService returns a service with a fresh signing key.
func NewService(cfg Config) (*Service, error) {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultConfig().TTL
	}
	key, err := newKey()
	if err != nil {
		return nil, err
	}
	return &Service{
		cfg:  cfg,
		now:  time.Now,
		key:  key,
		used: make(map[string]time.Time),
	}, nil
}

func newKey() ([]byte, error) {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, errors.Wrap(err, "failed to generate signing key")
	}
	return key, nil
}

// Issue returns a signed token for list.
func (s *Service) Issue(list string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	claims := &Claims{
		List: list,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    issuer,
			Audience:  jwt.ClaimStrings{list},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.TTL)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", errors.Wrap(err, "failed to sign token")
	}
	return signed, nil
}

// Verify checks a token issued for list and consumes it.
func (s *Service) Verify(raw, list string) (*Claims, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return s.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithAudience(list),
		jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "failed to verify token"), ErrInvalid)
	}

	now := s.now()
	s.cleanupLocked(now)
	if _, ok := s.used[claims.ID]; ok {
		return nil, errors.Wrapf(ErrReplayed, "token %s", claims.ID)
	}
	s.used[claims.ID] = claims.ExpiresAt.Time
	return claims, nil
}

// Rotate replaces the signing key. Tokens issued before are no longer valid.
func (s *Service) Rotate() error {
	key, err := newKey()
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.key = key
	return nil
}

// cleanupLocked forgets nonces whose token has expired; an expired token is
// rejected before the nonce is checked.
func (s *Service) cleanupLocked(now time.Time) int {
	n := 0
	for id, exp := range s.used {
		if !now.Before(exp) {
			delete(s.used, id)
			n++
		}
	}
	return n
}
