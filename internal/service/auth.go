package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"

	"github.com/and161185/timekeeper/internal/errs"
	"github.com/and161185/timekeeper/internal/model"
	"github.com/and161185/timekeeper/internal/repository"
)

// DefaultTokenTTL is the lifetime of a device token.
const DefaultTokenTTL = 365 * 24 * time.Hour

// TokenService issues and checks device access tokens.
type TokenService interface {
	// Issue registers a device and returns a signed token whose subject is the device id.
	Issue(ctx context.Context, name string) (model.Device, string, error)
	// Authenticate verifies a token and returns the device it belongs to.
	Authenticate(ctx context.Context, token string) (uuid.UUID, error)
}

type TokenServiceImpl struct {
	devices   repository.DeviceRepository
	signKey   []byte
	accessTTL time.Duration
	now       func() time.Time
}

// NewTokenService constructs TokenService. A non-positive ttl selects DefaultTokenTTL.
func NewTokenService(devices repository.DeviceRepository, signKey []byte, accessTTL time.Duration) *TokenServiceImpl {
	if accessTTL <= 0 {
		accessTTL = DefaultTokenTTL
	}
	return &TokenServiceImpl{devices: devices, signKey: signKey, accessTTL: accessTTL, now: time.Now}
}

// Issue creates a device record and its token.
func (s *TokenServiceImpl) Issue(ctx context.Context, name string) (model.Device, string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.Device{}, "", fmt.Errorf("%w: empty device name", errs.ErrValidation)
	}
	d := model.Device{ID: model.NewID(), Name: name, CreatedAt: s.now().UTC()}
	if err := s.devices.Create(ctx, d); err != nil {
		return model.Device{}, "", err
	}
	tok, err := s.issueAccessToken(d.ID)
	if err != nil {
		return model.Device{}, "", err
	}
	return d, tok, nil
}

// issueAccessToken creates a signed HS256 JWT for the given subject.
func (s *TokenServiceImpl) issueAccessToken(deviceID uuid.UUID) (string, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   deviceID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString(s.signKey)
}

// Authenticate verifies signature, time claims and that the device is still registered.
func (s *TokenServiceImpl) Authenticate(ctx context.Context, token string) (uuid.UUID, error) {
	var claims jwt.RegisteredClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return s.signKey, nil
	}, jwt.WithTimeFunc(s.now), jwt.WithLeeway(30*time.Second))
	if err != nil || !parsed.Valid {
		return uuid.Nil, errs.ErrUnauthorized
	}

	id, err := uuid.FromString(claims.Subject)
	if err != nil {
		return uuid.Nil, errs.ErrUnauthorized
	}
	if _, err := s.devices.GetByID(ctx, id); err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return uuid.Nil, errs.ErrUnauthorized
		}
		return uuid.Nil, err
	}
	return id, nil
}
