package service

import (
	"context"
	"errors"
	"io"

	"go.uber.org/zap"

	"zenfocus/backend/internal/assets"
	apperrors "zenfocus/backend/internal/errors"
	"zenfocus/backend/internal/model"
)

// AssetService manages uploaded background images and keeps the user's
// background setting pointing at them.
type AssetService struct {
	store    *assets.Store
	settings *SettingsService
	logger   *zap.Logger
}

func NewAssetService(store *assets.Store, settings *SettingsService, logger *zap.Logger) *AssetService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssetService{store: store, settings: settings, logger: logger}
}

// Upload stores r as the user's background image and switches the
// background to it. The previous uploaded image, if any, is deleted.
func (s *AssetService) Upload(ctx context.Context, userID string, r io.Reader) (*model.Settings, *apperrors.APIError) {
	current, apiErr := s.settings.Get(ctx, userID)
	if apiErr != nil {
		return nil, apiErr
	}

	obj, err := s.store.SaveImage(userID, r)
	switch {
	case err == nil:
	case errors.Is(err, assets.ErrTooLarge):
		return nil, apperrors.TooLarge("image_too_large", "image must be 5MB or smaller")
	case errors.Is(err, assets.ErrNotImage):
		return nil, apperrors.BadRequest("invalid_image", "file must be an image")
	default:
		s.logger.Error("save background image", zap.String("user_id", userID), zap.Error(err))
		return nil, apperrors.Internal("failed to store image")
	}

	updated, apiErr := s.settings.Update(ctx, userID, model.SettingsPatch{
		Background: &model.Background{Kind: model.BackgroundImage, Value: obj.URL},
	})
	if apiErr != nil {
		s.deleteOwned(userID, obj.URL)
		return nil, apiErr
	}

	if current.Background.Kind == model.BackgroundImage && current.Background.Value != obj.URL {
		s.deleteOwned(userID, current.Background.Value)
	}
	return updated, nil
}

// Remove deletes the current uploaded image and resets the background to
// solid black.
func (s *AssetService) Remove(ctx context.Context, userID string) (*model.Settings, *apperrors.APIError) {
	current, apiErr := s.settings.Get(ctx, userID)
	if apiErr != nil {
		return nil, apiErr
	}
	if current.Background.Kind == model.BackgroundImage {
		s.deleteOwned(userID, current.Background.Value)
	}

	return s.settings.Update(ctx, userID, model.SettingsPatch{
		Background: &model.Background{Kind: model.BackgroundSolid, Value: "#000000"},
	})
}

// deleteOwned removes the object behind url when it lives in this store under
// userID. Failures are logged only.
func (s *AssetService) deleteOwned(userID, url string) {
	key, ok := s.store.KeyFromURL(url)
	if !ok || assets.OwnerOf(key) != userID {
		return
	}
	if err := s.store.Delete(key); err != nil {
		s.logger.Warn("delete background image", zap.String("user_id", userID), zap.String("key", key), zap.Error(err))
	}
}
