package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"zenfocus/backend/internal/insight"
)

const (
	InsightSourceModel        = "model"
	InsightSourceFallback     = "fallback"
	InsightSourceUnconfigured = "unconfigured"
)

type InsightView struct {
	Text   string `json:"text"`
	Source string `json:"source"`
}

// InsightService never fails: missing configuration and upstream errors
// both degrade to static text.
type InsightService struct {
	sessions  SessionLog
	generator insight.Generator
	timeout   time.Duration
	logger    *zap.Logger
}

// NewInsightService accepts a nil generator when no API key is configured.
func NewInsightService(sessions SessionLog, generator insight.Generator, logger *zap.Logger) *InsightService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InsightService{
		sessions:  sessions,
		generator: generator,
		timeout:   15 * time.Second,
		logger:    logger,
	}
}

func (s *InsightService) Generate(ctx context.Context, userID string) InsightView {
	if s.generator == nil {
		return InsightView{Text: insight.NotConfiguredMessage, Source: InsightSourceUnconfigured}
	}

	fallback := InsightView{Text: insight.FallbackMessage, Source: InsightSourceFallback}

	sessions, err := s.sessions.List(ctx, userID, insight.RecentLimit)
	if err != nil {
		s.logger.Warn("list sessions for insight", zap.String("user_id", userID), zap.Error(err))
		return fallback
	}

	prompt, err := insight.BuildPrompt(sessions)
	if err != nil {
		s.logger.Warn("build insight prompt", zap.Error(err))
		return fallback
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	text, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		s.logger.Warn("generate insight", zap.String("user_id", userID), zap.Error(err))
		return fallback
	}
	return InsightView{Text: text, Source: InsightSourceModel}
}
