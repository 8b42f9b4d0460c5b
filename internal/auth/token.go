package auth

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/phrasebook-app/apiserver/types"
)

// DefaultTokenTTL matches the short-lived session tokens handed out on sign-in.
const DefaultTokenTTL = 30 * time.Minute

// ErrInvalidToken is returned for tokens that are malformed, expired or
// signed with another key.
var ErrInvalidToken = errors.New("invalid token")

// Identity is the caller resolved from a verified token.
type Identity struct {
	ID       int
	Username string
	Email    string
	Role     string
}

// IdentityOf builds the token identity for a user.
func IdentityOf(user types.User) Identity {
	return Identity{
		ID:       user.ID,
		Username: user.Username,
		Email:    user.Email,
		Role:     user.Role,
	}
}

type claims struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// TokenService issues and verifies HS256 session tokens.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenService(secret string, ttl time.Duration) (*TokenService, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("jwt secret is required")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenService{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// Issue signs a token for id.
func (s *TokenService) Issue(id Identity) (string, error) {
	now := s.now()
	c := claims{
		Username: id.Username,
		Email:    id.Email,
		Role:     id.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.Itoa(id.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	return token.SignedString(s.secret)
}

// Verify parses a token and returns the identity it carries.
func (s *TokenService) Verify(tokenString string) (Identity, error) {
	var c claims
	token, err := jwt.ParseWithClaims(tokenString, &c, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil || !token.Valid {
		return Identity{}, ErrInvalidToken
	}
	id, err := strconv.Atoi(strings.TrimSpace(c.Subject))
	if err != nil || id < 1 {
		return Identity{}, ErrInvalidToken
	}
	return Identity{
		ID:       id,
		Username: c.Username,
		Email:    c.Email,
		Role:     c.Role,
	}, nil
}
