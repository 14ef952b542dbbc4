package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/and161185/timekeeper/internal/errs"
)

func TestTokenService_IssueAndAuthenticate(t *testing.T) {
	t.Parallel()
	devices := &fakeDevices{}
	s := NewTokenService(devices, []byte("secret"), time.Hour)
	ctx := context.Background()

	if _, _, err := s.Issue(ctx, "  "); !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("want ErrValidation on empty name, got %v", err)
	}

	d, tok, err := s.Issue(ctx, "laptop")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if tok == "" || d.Name != "laptop" {
		t.Fatalf("bad issue result: %+v %q", d, tok)
	}

	id, err := s.Authenticate(ctx, tok)
	if err != nil || id != d.ID {
		t.Fatalf("Authenticate: %s %v", id, err)
	}

	// a device removed from the registry loses access
	delete(devices.byID, d.ID)
	if _, err := s.Authenticate(ctx, tok); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("want ErrUnauthorized for unknown device, got %v", err)
	}

	devices.getErr = errors.New("db down")
	if _, err := s.Authenticate(ctx, tok); err == nil || errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("want propagated repo error, got %v", err)
	}
}

func TestTokenService_RejectsBadTokens(t *testing.T) {
	t.Parallel()
	devices := &fakeDevices{}
	s := NewTokenService(devices, []byte("secret"), time.Minute)
	ctx := context.Background()
	d, _, err := s.Issue(ctx, "phone")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	sign := func(method jwt.SigningMethod, key []byte, sub string, exp time.Time) string {
		tok := jwt.NewWithClaims(method, jwt.RegisteredClaims{Subject: sub, ExpiresAt: jwt.NewNumericDate(exp)})
		out, err := tok.SignedString(key)
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		return out
	}
	future := time.Now().Add(time.Hour)
	cases := map[string]string{
		"garbage":   "not-a-jwt",
		"wrong key": sign(jwt.SigningMethodHS256, []byte("other"), d.ID.String(), future),
		"wrong alg": sign(jwt.SigningMethodHS384, []byte("secret"), d.ID.String(), future),
		"expired":   sign(jwt.SigningMethodHS256, []byte("secret"), d.ID.String(), time.Now().Add(-time.Hour)),
		"bad sub":   sign(jwt.SigningMethodHS256, []byte("secret"), "nope", future),
	}
	for name, tok := range cases {
		if _, err := s.Authenticate(ctx, tok); !errors.Is(err, errs.ErrUnauthorized) {
			t.Fatalf("%s: want ErrUnauthorized, got %v", name, err)
		}
	}
}

func TestNewTokenService_DefaultTTL(t *testing.T) {
	s := NewTokenService(&fakeDevices{}, []byte("k"), 0)
	if s.accessTTL != DefaultTokenTTL {
		t.Fatalf("want default ttl, got %v", s.accessTTL)
	}
}
