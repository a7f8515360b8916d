package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"go.uber.org/zap"

	apperrors "zenfocus/backend/internal/errors"
	"zenfocus/backend/internal/model"
	"zenfocus/backend/internal/repository"
)

// SettingsStore persists one settings record per user.
type SettingsStore interface {
	Fetch(ctx context.Context, userID string) (*model.Settings, error)
	Upsert(ctx context.Context, userID string, settings model.Settings) (*model.Settings, error)
}

// SettingsListener is called after a user's settings were stored.
type SettingsListener func(userID string, settings model.Settings)

var hexColor = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

type SettingsService struct {
	store  SettingsStore
	logger *zap.Logger

	mu        sync.RWMutex
	listeners []SettingsListener
}

type PresetsView struct {
	Gradients   []model.Gradient `json:"gradients"`
	SolidColors []string         `json:"solidColors"`
	Defaults    model.Settings   `json:"defaults"`
}

func NewSettingsService(store SettingsStore, logger *zap.Logger) *SettingsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SettingsService{store: store, logger: logger}
}

func (s *SettingsService) OnChange(listener SettingsListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, listener)
}

// Get returns the stored settings. A user without a record gets the
// defaults, which are persisted on first read.
func (s *SettingsService) Get(ctx context.Context, userID string) (*model.Settings, *apperrors.APIError) {
	settings, err := s.store.Fetch(ctx, userID)
	if err == nil {
		return settings, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		s.logger.Error("fetch settings", zap.String("user_id", userID), zap.Error(err))
		return nil, apperrors.Internal("failed to load settings")
	}

	defaults := model.DefaultSettings()
	stored, err := s.store.Upsert(ctx, userID, defaults)
	if err != nil {
		s.logger.Warn("persist default settings", zap.String("user_id", userID), zap.Error(err))
		return &defaults, nil
	}
	return stored, nil
}

// Update merges patch into the current settings, validates the result and
// stores it. Listeners run only after a successful write.
func (s *SettingsService) Update(ctx context.Context, userID string, patch model.SettingsPatch) (*model.Settings, *apperrors.APIError) {
	current, apiErr := s.Get(ctx, userID)
	if apiErr != nil {
		return nil, apiErr
	}

	merged := current.Apply(patch)
	if apiErr := ValidateSettings(merged); apiErr != nil {
		return nil, apiErr
	}

	stored, err := s.store.Upsert(ctx, userID, merged)
	if err != nil {
		s.logger.Error("upsert settings", zap.String("user_id", userID), zap.Error(err))
		return nil, apperrors.Internal("failed to save settings")
	}

	s.mu.RLock()
	listeners := append([]SettingsListener(nil), s.listeners...)
	s.mu.RUnlock()
	for _, listener := range listeners {
		listener(userID, *stored)
	}
	return stored, nil
}

func (s *SettingsService) Presets() PresetsView {
	return PresetsView{
		Gradients:   model.Gradients,
		SolidColors: model.SolidColors,
		Defaults:    model.DefaultSettings(),
	}
}

func ValidateSettings(settings model.Settings) *apperrors.APIError {
	durations := []struct {
		field string
		value int
	}{
		{"focusMinutes", settings.FocusMinutes},
		{"shortBreakMinutes", settings.ShortBreakMinutes},
		{"longBreakMinutes", settings.LongBreakMinutes},
	}
	for _, d := range durations {
		if d.value <= 0 || d.value > model.MaxDurationMinutes {
			return apperrors.Invalid("invalid_settings", d.field,
				fmt.Sprintf("%s must be between 1 and %d", d.field, model.MaxDurationMinutes))
		}
	}

	switch settings.TimerFace {
	case model.FaceNumeric, model.FaceRing:
	default:
		return apperrors.Invalid("invalid_settings", "timerFace", "timerFace must be NUMERIC or RING")
	}

	value := strings.TrimSpace(settings.Background.Value)
	switch settings.Background.Kind {
	case model.BackgroundSolid:
		if !hexColor.MatchString(value) {
			return apperrors.Invalid("invalid_settings", "background.value", "solid background must be a #rrggbb color")
		}
	case model.BackgroundGradient, model.BackgroundImage:
		if value == "" {
			return apperrors.Invalid("invalid_settings", "background.value", "background value is required")
		}
	default:
		return apperrors.Invalid("invalid_settings", "background.kind", "background kind must be SOLID, GRADIENT or IMAGE")
	}
	return nil
}
