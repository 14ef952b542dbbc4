package service

import (
	"context"
	"errors"

	"github.com/and161185/timekeeper/internal/errs"
	"github.com/and161185/timekeeper/internal/model"
	"github.com/and161185/timekeeper/internal/repository"
)

// SettingService defines settings operations.
type SettingService interface {
	// All returns stored settings merged over the defaults.
	All(ctx context.Context) (model.Settings, error)
	// Get returns one value, falling back to the default for known keys.
	Get(ctx context.Context, key model.SettingKey) (string, error)
	Put(ctx context.Context, key model.SettingKey, value string) error
}

type SettingServiceImpl struct {
	repo repository.SettingRepository
}

// NewSettingService constructs SettingService.
func NewSettingService(repo repository.SettingRepository) *SettingServiceImpl {
	return &SettingServiceImpl{repo: repo}
}

func (s *SettingServiceImpl) All(ctx context.Context) (model.Settings, error) {
	stored, err := s.repo.All(ctx)
	if err != nil {
		return nil, err
	}
	out := make(model.Settings, len(model.DefaultSettings)+len(stored))
	for k, v := range model.DefaultSettings {
		out[k] = v
	}
	for k, v := range stored {
		out[k] = v
	}
	return out, nil
}

func (s *SettingServiceImpl) Get(ctx context.Context, key model.SettingKey) (string, error) {
	if key == "" {
		return "", errs.E(errs.KindValidation, "settings.get", errs.ErrValidation)
	}
	v, err := s.repo.Get(ctx, key)
	if errors.Is(err, errs.ErrNotFound) {
		if d, ok := model.DefaultSettings[key]; ok {
			return d, nil
		}
	}
	return v, err
}

func (s *SettingServiceImpl) Put(ctx context.Context, key model.SettingKey, value string) error {
	if err := model.ValidateSetting(key, value); err != nil {
		return err
	}
	return s.repo.Put(ctx, key, value)
}
