// Package insight turns a user's recent sessions into a short piece of
// advisory text via a hosted language model.
package insight

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"zenfocus/backend/internal/model"
)

// RecentLimit is how many of the most recent sessions feed a prompt.
const RecentLimit = 20

const (
	NotConfiguredMessage = "To enable AI insights, please configure your API Key."
	FallbackMessage      = "Stay present. Your focus is building."
)

var ErrNotConfigured = errors.New("insight generator is not configured")

type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type Gemini struct {
	client *genai.Client
	model  string
}

func NewGemini(ctx context.Context, apiKey, modelName string) (*Gemini, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, ErrNotConfigured
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &Gemini{client: client, model: modelName}, nil
}

func (g *Gemini) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", errors.New("generate content: empty response")
	}
	return text, nil
}

type promptSession struct {
	Date     string `json:"date"`
	Duration int    `json:"duration"`
	Type     string `json:"type"`
	Note     string `json:"note,omitempty"`
}

// BuildPrompt summarises at most RecentLimit sessions, which must already be
// ordered most recent first.
func BuildPrompt(sessions []model.SessionRecord) (string, error) {
	if len(sessions) > RecentLimit {
		sessions = sessions[:RecentLimit]
	}

	summary := make([]promptSession, 0, len(sessions))
	for _, s := range sessions {
		duration := s.BreakMinutes
		kind := "BREAK"
		if s.IsFocus() {
			duration = s.FocusMinutes
			kind = "FOCUS"
		}
		summary = append(summary, promptSession{
			Date:     s.Date,
			Duration: duration,
			Type:     kind,
			Note:     s.Note,
		})
	}

	payload, err := json.Marshal(summary)
	if err != nil {
		return "", fmt.Errorf("encode sessions: %w", err)
	}

	var b strings.Builder
	b.WriteString("Analyze these recent productivity sessions:\n")
	b.Write(payload)
	b.WriteString("\n\n")
	b.WriteString("Provide a very brief, minimalist, \"whisper-style\" insight or encouragement (max 2 sentences).\n")
	b.WriteString("Focus on patterns or general encouragement.\n")
	b.WriteString("Tone: Calm, professional, Zen.\n")
	b.WriteString("Do not use emojis.\n")
	return b.String(), nil
}
