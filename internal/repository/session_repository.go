package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"zenfocus/backend/internal/model"
)

const sessionColumns = `id, user_id, mode, date, start_time, end_time,
	focus_minutes, break_minutes, note`

// SessionRepository is the append-only session log.
type SessionRepository struct {
	db *sql.DB
}

func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) Append(ctx context.Context, session model.SessionRecord) error {
	var note interface{}
	if session.Note != "" {
		note = session.Note
	}

	_, err := r.db.ExecContext(
		ctx,
		`INSERT INTO sessions (
			id, user_id, mode, date, start_time, end_time,
			focus_minutes, break_minutes, note, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		session.ID,
		session.UserID,
		string(session.Mode),
		session.Date,
		formatTime(session.StartTime),
		formatTime(session.EndTime),
		session.FocusMinutes,
		session.BreakMinutes,
		note,
		formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (r *SessionRepository) Get(ctx context.Context, id string) (*model.SessionRecord, error) {
	row := r.db.QueryRowContext(
		ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`,
		id,
	)
	return scanSession(row)
}

// List returns the user's sessions, most recent day first and most recent
// start first within a day.
func (r *SessionRepository) List(ctx context.Context, userID string, limit int) ([]model.SessionRecord, error) {
	rows, err := r.db.QueryContext(
		ctx,
		`SELECT `+sessionColumns+`
		 FROM sessions
		 WHERE user_id = ?
		 ORDER BY date DESC, start_time DESC
		 LIMIT ?`,
		userID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	sessions := make([]model.SessionRecord, 0, limit)
	for rows.Next() {
		session, scanErr := scanSession(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		sessions = append(sessions, *session)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}

	return sessions, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanSession(s scanner) (*model.SessionRecord, error) {
	session := model.SessionRecord{}
	var mode string
	var startTime string
	var endTime string
	var note sql.NullString
	err := s.Scan(
		&session.ID,
		&session.UserID,
		&mode,
		&session.Date,
		&startTime,
		&endTime,
		&session.FocusMinutes,
		&session.BreakMinutes,
		&note,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}
	session.Mode = model.TimerMode(mode)
	session.Note = note.String

	if session.StartTime, err = parseTime(startTime); err != nil {
		return nil, fmt.Errorf("parse session start_time: %w", err)
	}
	if session.EndTime, err = parseTime(endTime); err != nil {
		return nil, fmt.Errorf("parse session end_time: %w", err)
	}
	return &session, nil
}
