package model

import "time"

type TimerFace string

const (
	FaceNumeric TimerFace = "NUMERIC"
	FaceRing    TimerFace = "RING"
)

type BackgroundKind string

const (
	BackgroundSolid    BackgroundKind = "SOLID"
	BackgroundGradient BackgroundKind = "GRADIENT"
	BackgroundImage    BackgroundKind = "IMAGE"
)

const (
	DefaultFocusMinutes      = 25
	DefaultShortBreakMinutes = 5
	DefaultLongBreakMinutes  = 15
	DefaultGradient          = "linear-gradient(to bottom right, #18181b, #27272a)"

	// MaxDurationMinutes caps every configured duration.
	MaxDurationMinutes = 600
)

type Background struct {
	Kind  BackgroundKind `json:"kind"`
	Value string         `json:"value"`
}

type Settings struct {
	FocusMinutes      int        `json:"focusMinutes"`
	ShortBreakMinutes int        `json:"shortBreakMinutes"`
	LongBreakMinutes  int        `json:"longBreakMinutes"`
	TimerFace         TimerFace  `json:"timerFace"`
	Background        Background `json:"background"`
	UpdatedAt         time.Time  `json:"updatedAt,omitempty"`
}

// SettingsPatch is a partial update; nil fields are left untouched.
type SettingsPatch struct {
	FocusMinutes      *int        `json:"focusMinutes,omitempty"`
	ShortBreakMinutes *int        `json:"shortBreakMinutes,omitempty"`
	LongBreakMinutes  *int        `json:"longBreakMinutes,omitempty"`
	TimerFace         *TimerFace  `json:"timerFace,omitempty"`
	Background        *Background `json:"background,omitempty"`
}

func DefaultSettings() Settings {
	return Settings{
		FocusMinutes:      DefaultFocusMinutes,
		ShortBreakMinutes: DefaultShortBreakMinutes,
		LongBreakMinutes:  DefaultLongBreakMinutes,
		TimerFace:         FaceRing,
		Background: Background{
			Kind:  BackgroundGradient,
			Value: DefaultGradient,
		},
	}
}

// Apply returns a copy of s with every non-nil patch field applied.
func (s Settings) Apply(patch SettingsPatch) Settings {
	if patch.FocusMinutes != nil {
		s.FocusMinutes = *patch.FocusMinutes
	}
	if patch.ShortBreakMinutes != nil {
		s.ShortBreakMinutes = *patch.ShortBreakMinutes
	}
	if patch.LongBreakMinutes != nil {
		s.LongBreakMinutes = *patch.LongBreakMinutes
	}
	if patch.TimerFace != nil {
		s.TimerFace = *patch.TimerFace
	}
	if patch.Background != nil {
		s.Background = *patch.Background
	}
	return s
}

type Gradient struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

var Gradients = []Gradient{
	{Name: "Midnight", Value: "linear-gradient(to bottom right, #000000, #434343)"},
	{Name: "Dusk", Value: "linear-gradient(to bottom right, #232526, #414345)"},
	{Name: "Ocean", Value: "linear-gradient(to bottom right, #0f2027, #203a43, #2c5364)"},
	{Name: "Forest", Value: "linear-gradient(to bottom right, #134e5e, #71b280)"},
	{Name: "Ember", Value: "linear-gradient(to bottom right, #451e3e, #651e3e)"},
}

var SolidColors = []string{
	"#000000",
	"#18181b",
	"#27272a",
	"#2e1065",
	"#0f172a",
	"#052e16",
}
