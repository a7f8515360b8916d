package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"zenfocus/backend/internal/model"
)

// SettingsRepository stores one settings row per user with upsert semantics.
type SettingsRepository struct {
	db *sql.DB
}

func NewSettingsRepository(db *sql.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

func (r *SettingsRepository) Fetch(ctx context.Context, userID string) (*model.Settings, error) {
	row := r.db.QueryRowContext(
		ctx,
		`SELECT focus_minutes, short_break_minutes, long_break_minutes,
		        timer_face, background_kind, background_value, updated_at
		 FROM user_settings WHERE user_id = ?`,
		userID,
	)

	var settings model.Settings
	var face, kind, updatedAt string
	err := row.Scan(
		&settings.FocusMinutes,
		&settings.ShortBreakMinutes,
		&settings.LongBreakMinutes,
		&face,
		&kind,
		&settings.Background.Value,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("fetch settings: %w", err)
	}
	settings.TimerFace = model.TimerFace(face)
	settings.Background.Kind = model.BackgroundKind(kind)

	if settings.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse settings updated_at: %w", err)
	}
	return &settings, nil
}

// Upsert writes the full settings record and returns it as stored.
func (r *SettingsRepository) Upsert(ctx context.Context, userID string, settings model.Settings) (*model.Settings, error) {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(
		ctx,
		`INSERT INTO user_settings (
			user_id, focus_minutes, short_break_minutes, long_break_minutes,
			timer_face, background_kind, background_value, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			focus_minutes = excluded.focus_minutes,
			short_break_minutes = excluded.short_break_minutes,
			long_break_minutes = excluded.long_break_minutes,
			timer_face = excluded.timer_face,
			background_kind = excluded.background_kind,
			background_value = excluded.background_value,
			updated_at = excluded.updated_at`,
		userID,
		settings.FocusMinutes,
		settings.ShortBreakMinutes,
		settings.LongBreakMinutes,
		string(settings.TimerFace),
		string(settings.Background.Kind),
		settings.Background.Value,
		formatTime(now),
		formatTime(now),
	)
	if err != nil {
		return nil, fmt.Errorf("upsert settings: %w", err)
	}

	settings.UpdatedAt = now
	return &settings, nil
}
