package service

import (
	"bytes"
	"context"
	"time"

	"go.uber.org/zap"

	apperrors "zenfocus/backend/internal/errors"
	"zenfocus/backend/internal/model"
	"zenfocus/backend/internal/report"
)

const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 200
)

// SessionLog is the append-only store of completed sessions.
type SessionLog interface {
	Append(ctx context.Context, record model.SessionRecord) error
	List(ctx context.Context, userID string, limit int) ([]model.SessionRecord, error)
}

type HistoryService struct {
	sessions SessionLog
	auth     *AuthService
	logger   *zap.Logger
	now      func() time.Time
}

func NewHistoryService(sessions SessionLog, auth *AuthService, logger *zap.Logger) *HistoryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HistoryService{
		sessions: sessions,
		auth:     auth,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *HistoryService) List(ctx context.Context, userID string, limit int) ([]model.SessionRecord, *apperrors.APIError) {
	records, err := s.sessions.List(ctx, userID, normalizeLimit(limit))
	if err != nil {
		s.logger.Error("list sessions", zap.String("user_id", userID), zap.Error(err))
		return nil, apperrors.Internal("failed to load history")
	}
	return records, nil
}

func (s *HistoryService) Days(ctx context.Context, userID string, limit int) ([]model.DayGroup, *apperrors.APIError) {
	records, apiErr := s.List(ctx, userID, limit)
	if apiErr != nil {
		return nil, apiErr
	}
	return GroupByDay(records), nil
}

// ExportPDF renders the most recent MaxHistoryLimit sessions grouped by day.
func (s *HistoryService) ExportPDF(ctx context.Context, userID string) ([]byte, *apperrors.APIError) {
	user, apiErr := s.auth.Profile(ctx, userID)
	if apiErr != nil {
		return nil, apiErr
	}
	days, apiErr := s.Days(ctx, userID, MaxHistoryLimit)
	if apiErr != nil {
		return nil, apiErr
	}

	var buf bytes.Buffer
	if err := report.WriteHistoryPDF(&buf, user.Email, s.now(), days); err != nil {
		s.logger.Error("render history pdf", zap.String("user_id", userID), zap.Error(err))
		return nil, apperrors.Internal("failed to render history")
	}
	return buf.Bytes(), nil
}

// GroupByDay folds records ordered by date desc into one group per date,
// preserving order.
func GroupByDay(records []model.SessionRecord) []model.DayGroup {
	groups := make([]model.DayGroup, 0)
	index := make(map[string]int)
	for _, record := range records {
		i, ok := index[record.Date]
		if !ok {
			i = len(groups)
			index[record.Date] = i
			groups = append(groups, model.DayGroup{Date: record.Date})
		}
		group := &groups[i]
		group.Sessions = append(group.Sessions, record)
		if record.IsFocus() {
			group.FocusSessions++
			group.FocusMinutes += record.FocusMinutes
		} else {
			group.BreakMinutes += record.BreakMinutes
		}
	}
	return groups
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		return MaxHistoryLimit
	}
	return limit
}
