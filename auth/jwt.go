package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/teranos/postpulse/errors"
)

const (
	issuer    = "postpulse"
	adminRole = "admin"
)

// Claims identify an admin session.
type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// JWTManager signs and checks admin session tokens with HS256.
type JWTManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewJWTManager uses secret as the HMAC key. An empty secret is derived
// from fallback, so sessions survive restarts and are invalidated when the
// admin password changes.
func NewJWTManager(secret, fallback string, ttl time.Duration) (*JWTManager, error) {
	key := []byte(secret)
	if secret == "" {
		if fallback == "" {
			return nil, errors.New("jwt secret or admin password is required")
		}
		sum := sha256.Sum256([]byte("admin-session:" + fallback))
		key = sum[:]
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &JWTManager{secret: key, ttl: ttl, now: time.Now}, nil
}

// TTL returns how long issued tokens live.
func (m *JWTManager) TTL() time.Duration {
	return m.ttl
}

// Issue creates a signed admin token and returns it with its expiry.
func (m *JWTManager) Issue() (string, time.Time, error) {
	now := m.now()
	expires := now.Add(m.ttl)
	id, err := randomID()
	if err != nil {
		return "", time.Time{}, err
	}
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id,
			Issuer:    issuer,
			Subject:   adminRole,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
		Role: adminRole,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, errors.Wrap(err, "failed to sign session token")
	}
	return signed, expires, nil
}

// Validate parses a token and returns its claims. Every failure wraps
// errors.ErrUnauthorized.
func (m *JWTManager) Validate(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Newf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	},
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(m.now),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "invalid session token"), errors.ErrUnauthorized)
	}
	if !parsed.Valid || claims.Role != adminRole {
		return nil, errors.Mark(errors.New("invalid session claims"), errors.ErrUnauthorized)
	}
	return claims, nil
}

func randomID() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", errors.Wrap(err, "failed to generate random bytes")
	}
	return hex.EncodeToString(b), nil
}
