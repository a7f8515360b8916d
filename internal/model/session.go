package model

import "time"

// DateLayout is the calendar-day format stored on session records.
const DateLayout = "2006-01-02"

// SessionRecord is one naturally completed interval. Exactly one of
// FocusMinutes and BreakMinutes is non-zero.
type SessionRecord struct {
	ID           string    `json:"id"`
	UserID       string    `json:"userId"`
	Mode         TimerMode `json:"mode"`
	Date         string    `json:"date"`
	StartTime    time.Time `json:"startTime"`
	EndTime      time.Time `json:"endTime"`
	FocusMinutes int       `json:"focusMinutes"`
	BreakMinutes int       `json:"breakMinutes"`
	Note         string    `json:"note,omitempty"`
}

func (r SessionRecord) IsFocus() bool {
	return r.FocusMinutes > 0
}

// DayGroup aggregates the sessions completed on one calendar day.
type DayGroup struct {
	Date          string          `json:"date"`
	FocusSessions int             `json:"focusSessions"`
	FocusMinutes  int             `json:"focusMinutes"`
	BreakMinutes  int             `json:"breakMinutes"`
	Sessions      []SessionRecord `json:"sessions"`
}
