package timer

import "zenfocus/backend/internal/model"

// ConfiguredDuration resolves the configured length in minutes for mode.
// Unknown modes fall back to the focus duration.
func ConfiguredDuration(mode model.TimerMode, settings model.Settings) int {
	switch mode {
	case model.ModeShortBreak:
		return settings.ShortBreakMinutes
	case model.ModeLongBreak:
		return settings.LongBreakMinutes
	default:
		return settings.FocusMinutes
	}
}

// NextMode is the mode offered after an interval completes.
func NextMode(mode model.TimerMode) model.TimerMode {
	if mode == model.ModeFocus {
		return model.ModeShortBreak
	}
	return model.ModeFocus
}
