package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

func newService(t *testing.T) *Service {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	s, err := New(Options{
		Username:     "admin",
		PasswordHash: string(hash),
		Secret:       []byte("0123456789abcdef0123"),
		TTL:          time.Hour,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestNew_Validation(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("x"), bcrypt.MinCost)
	good := Options{Username: "u", PasswordHash: string(hash), Secret: []byte("0123456789abcdef"), TTL: time.Minute}

	cases := map[string]func(o *Options){
		"empty username": func(o *Options) { o.Username = " " },
		"bad hash":       func(o *Options) { o.PasswordHash = "plaintext" },
		"short secret":   func(o *Options) { o.Secret = []byte("short") },
		"zero ttl":       func(o *Options) { o.TTL = 0 },
	}
	for name, mut := range cases {
		t.Run(name, func(t *testing.T) {
			o := good
			mut(&o)
			if _, err := New(o); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
	if _, err := New(good); err != nil {
		t.Fatalf("valid options rejected: %v", err)
	}
}

func TestLogin_AndVerify(t *testing.T) {
	s := newService(t)
	tok, err := s.Login("admin", "s3cret")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if tok.TokenType != "Bearer" || tok.Token == "" || tok.ExpiresAt.IsZero() {
		t.Fatalf("unexpected token: %+v", tok)
	}

	id, err := s.Verify(tok.Token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if id.Subject != "admin" {
		t.Fatalf("subject = %q", id.Subject)
	}
}

func TestLogin_BadCredentials(t *testing.T) {
	s := newService(t)
	for _, c := range [][2]string{{"admin", "wrong"}, {"other", "s3cret"}, {"", ""}} {
		if _, err := s.Login(c[0], c[1]); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("Login(%q,%q) err = %v", c[0], c[1], err)
		}
	}
}

func TestVerify_RejectsTamperedExpiredAndForeign(t *testing.T) {
	s := newService(t)
	tok, _ := s.Login("admin", "s3cret")

	// tampered signature
	bad := tok.Token[:len(tok.Token)-2] + "xx"
	if _, err := s.Verify(bad); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("tampered: err = %v", err)
	}

	// garbage
	if _, err := s.Verify("not-a-token"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("garbage: err = %v", err)
	}

	// expired: move the clock past the TTL
	s.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if _, err := s.Verify(tok.Token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expired: err = %v", err)
	}
	s.now = time.Now

	// signed with another secret
	foreign, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   "admin",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte("another-secret-entirely"))
	if _, err := s.Verify(foreign); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("foreign: err = %v", err)
	}

	// alg none
	none, _ := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Issuer: issuer, Subject: "admin", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if _, err := s.Verify(none); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("alg none: err = %v", err)
	}
}

func TestHashPassword(t *testing.T) {
	h, err := HashPassword("pw")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if !strings.HasPrefix(h, "$2") {
		t.Fatalf("unexpected hash format: %q", h)
	}
	if bcrypt.CompareHashAndPassword([]byte(h), []byte("pw")) != nil {
		t.Fatalf("hash does not verify")
	}
}
