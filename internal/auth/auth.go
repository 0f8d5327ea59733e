// Package auth authenticates API callers. A single operator account is
// configured with a bcrypt password hash; a successful Login issues an HS256
// JWT bearer token that Verify later accepts until it expires.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidCredentials is returned by Login for an unknown user or a
	// wrong password. The two cases are deliberately indistinguishable.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidToken is returned by Verify for malformed, expired, or
	// wrongly signed tokens.
	ErrInvalidToken = errors.New("invalid token")
)

const issuer = "go-messages-api"

// Identity is the authenticated caller extracted from a token.
type Identity struct {
	Subject   string
	ExpiresAt time.Time
}

// Token is an issued bearer token.
type Token struct {
	Token     string    `json:"token"`
	TokenType string    `json:"token_type"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Options configures a Service.
type Options struct {
	Username     string
	PasswordHash string // bcrypt
	Secret       []byte
	TTL          time.Duration
}

// Service issues and verifies tokens. It is safe for concurrent use.
type Service struct {
	opts Options
	now  func() time.Time
}

// New validates opts and returns a Service.
func New(opts Options) (*Service, error) {
	if strings.TrimSpace(opts.Username) == "" {
		return nil, errors.New("auth: username must not be empty")
	}
	if _, err := bcrypt.Cost([]byte(opts.PasswordHash)); err != nil {
		return nil, fmt.Errorf("auth: password hash is not bcrypt: %w", err)
	}
	if len(opts.Secret) < 16 {
		return nil, errors.New("auth: secret must be at least 16 bytes")
	}
	if opts.TTL <= 0 {
		return nil, errors.New("auth: token ttl must be > 0")
	}
	return &Service{opts: opts, now: time.Now}, nil
}

// HashPassword returns a bcrypt hash suitable for Options.PasswordHash.
func HashPassword(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// Login checks the credentials and issues a token.
func (s *Service) Login(username, password string) (Token, error) {
	// Always run bcrypt so timing does not reveal whether the user exists.
	pwErr := bcrypt.CompareHashAndPassword([]byte(s.opts.PasswordHash), []byte(password))
	if username != s.opts.Username || pwErr != nil {
		return Token{}, ErrInvalidCredentials
	}

	now := s.now().UTC()
	exp := now.Add(s.opts.TTL)
	claims := jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   username,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.opts.Secret)
	if err != nil {
		return Token{}, fmt.Errorf("signing token: %w", err)
	}
	return Token{Token: signed, TokenType: "Bearer", ExpiresAt: exp.Truncate(time.Second)}, nil
}

// Verify parses and validates a token string.
func (s *Service) Verify(token string) (Identity, error) {
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return s.opts.Secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid || claims.Subject == "" {
		return Identity{}, ErrInvalidToken
	}
	return Identity{Subject: claims.Subject, ExpiresAt: claims.ExpiresAt.Time}, nil
}
