package service

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	apperrors "zenfocus/backend/internal/errors"
	"zenfocus/backend/internal/model"
	"zenfocus/backend/internal/timer"
)

const persistNotice = "Session completed but could not be saved."

const (
	// EngineIdleTimeout is how long a dormant engine stays cached after its
	// last use.
	EngineIdleTimeout = 30 * time.Minute
	// EngineSweepInterval is how often RunEviction looks for dormant engines.
	EngineSweepInterval = 5 * time.Minute
)

// TimerService owns one engine per user and routes commands to it.
type TimerService struct {
	settings *SettingsService
	sink     timer.Sink
	options  timer.Options
	clock    timer.Clock
	logger   *zap.Logger

	mu      sync.Mutex
	engines map[string]*engineEntry
	// creating counts engine constructions in flight per user; pending holds
	// the latest settings pushed while one was in flight.
	creating map[string]int
	pending  map[string]model.Settings
	closed   bool
}

type engineEntry struct {
	engine   *timer.Engine
	refs     int
	lastUsed time.Time
}

type TimerView struct {
	Timer      timer.Snapshot `json:"timer"`
	Notice     string         `json:"notice,omitempty"`
	ServerTime time.Time      `json:"serverTime"`
}

// NewTimerService registers itself for settings changes. options is the
// template every engine is created with.
func NewTimerService(settings *SettingsService, sink timer.Sink, options timer.Options, logger *zap.Logger) *TimerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if options.Clock == nil {
		options.Clock = timer.SystemClock()
	}
	options.Logger = logger

	s := &TimerService{
		settings: settings,
		sink:     sink,
		options:  options,
		clock:    options.Clock,
		logger:   logger,
		engines:  make(map[string]*engineEntry),
		creating: make(map[string]int),
		pending:  make(map[string]model.Settings),
	}
	settings.OnChange(s.settingsChanged)
	return s
}

func (s *TimerService) State(ctx context.Context, userID string) (*TimerView, *apperrors.APIError) {
	engine, release, apiErr := s.acquire(ctx, userID)
	if apiErr != nil {
		return nil, apiErr
	}
	defer release()
	notice := s.sync(ctx, engine)
	return s.view(engine.Snapshot(), notice), nil
}

func (s *TimerService) Start(ctx context.Context, userID string) (*TimerView, *apperrors.APIError) {
	return s.command(ctx, userID, func(e *timer.Engine) (timer.Snapshot, error) {
		return e.Start()
	})
}

func (s *TimerService) Pause(ctx context.Context, userID string) (*TimerView, *apperrors.APIError) {
	return s.command(ctx, userID, func(e *timer.Engine) (timer.Snapshot, error) {
		return e.Pause(ctx)
	})
}

func (s *TimerService) Stop(ctx context.Context, userID string) (*TimerView, *apperrors.APIError) {
	return s.command(ctx, userID, func(e *timer.Engine) (timer.Snapshot, error) {
		return e.Stop(), nil
	})
}

func (s *TimerService) Next(ctx context.Context, userID string) (*TimerView, *apperrors.APIError) {
	return s.command(ctx, userID, func(e *timer.Engine) (timer.Snapshot, error) {
		return e.NextCycle()
	})
}

func (s *TimerService) SwitchMode(ctx context.Context, userID string, mode model.TimerMode) (*TimerView, *apperrors.APIError) {
	if !mode.Valid() {
		return nil, apperrors.Invalid("invalid_mode", "mode", "mode must be focus, short_break or long_break")
	}
	return s.command(ctx, userID, func(e *timer.Engine) (timer.Snapshot, error) {
		return e.SwitchMode(mode)
	})
}

func (s *TimerService) SetNote(ctx context.Context, userID, note string) (*TimerView, *apperrors.APIError) {
	if len(note) > 2000 {
		return nil, apperrors.Invalid("invalid_note", "note", "note must be at most 2000 characters")
	}
	return s.command(ctx, userID, func(e *timer.Engine) (timer.Snapshot, error) {
		return e.SetNote(note)
	})
}

// Subscribe streams engine events for userID until cancel is called or the
// service closes.
func (s *TimerService) Subscribe(ctx context.Context, userID string, buffer int) (<-chan timer.Event, func(), *apperrors.APIError) {
	engine, release, apiErr := s.acquire(ctx, userID)
	if apiErr != nil {
		return nil, nil, apiErr
	}
	events, unsubscribe := engine.Subscribe(buffer)
	var once sync.Once
	return events, func() {
		once.Do(func() {
			unsubscribe()
			release()
		})
	}, nil
}

// Close stops every engine. Later calls create no new engines.
func (s *TimerService) Close() {
	s.mu.Lock()
	engines := s.engines
	s.engines = make(map[string]*engineEntry)
	s.closed = true
	s.mu.Unlock()

	for _, entry := range engines {
		entry.engine.Close()
	}
}

// Sweep closes and forgets engines that are dormant, unreferenced and unused
// for at least maxIdle. It returns how many were evicted.
func (s *TimerService) Sweep(maxIdle time.Duration) int {
	now := s.clock.Now()

	s.mu.Lock()
	var evicted []*timer.Engine
	for userID, entry := range s.engines {
		if entry.refs > 0 || now.Sub(entry.lastUsed) < maxIdle || !entry.engine.Dormant() {
			continue
		}
		delete(s.engines, userID)
		evicted = append(evicted, entry.engine)
	}
	s.mu.Unlock()

	for _, engine := range evicted {
		engine.Close()
	}
	return len(evicted)
}

// RunEviction sweeps every interval until ctx is done.
func (s *TimerService) RunEviction(ctx context.Context, interval, maxIdle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(maxIdle); n > 0 {
				s.logger.Debug("evicted idle timer engines", zap.Int("count", n))
			}
		}
	}
}

func (s *TimerService) command(
	ctx context.Context,
	userID string,
	run func(*timer.Engine) (timer.Snapshot, error),
) (*TimerView, *apperrors.APIError) {
	engine, release, apiErr := s.acquire(ctx, userID)
	if apiErr != nil {
		return nil, apiErr
	}
	defer release()

	notice := s.sync(ctx, engine)
	snapshot, err := run(engine)
	switch {
	case err == nil:
	case errors.Is(err, timer.ErrInvalidTransition):
		return nil, apperrors.Conflict("invalid_transition", err.Error(), s.view(snapshot, notice))
	case errors.Is(err, timer.ErrInvalidMode):
		return nil, apperrors.Invalid("invalid_mode", "mode", err.Error())
	default:
		// Completion was reached and the record could not be stored. The
		// engine stays COMPLETED; the caller is told, not failed.
		notice = persistNotice
	}
	return s.view(snapshot, notice), nil
}

// sync applies elapsed wall-clock time before a read or command.
func (s *TimerService) sync(ctx context.Context, engine *timer.Engine) string {
	if err := engine.Sync(ctx, s.clock.Now()); err != nil {
		return persistNotice
	}
	return ""
}

func (s *TimerService) view(snapshot timer.Snapshot, notice string) *TimerView {
	return &TimerView{
		Timer:      snapshot,
		Notice:     notice,
		ServerTime: s.clock.Now().UTC(),
	}
}

// acquire returns the user's engine, creating it on first use. The engine
// is not evicted until release is called.
func (s *TimerService) acquire(ctx context.Context, userID string) (*timer.Engine, func(), *apperrors.APIError) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, nil, errShuttingDown()
	}
	if entry, ok := s.engines[userID]; ok {
		entry.refs++
		s.mu.Unlock()
		return entry.engine, s.releaser(entry), nil
	}
	s.creating[userID]++
	s.mu.Unlock()

	settings, apiErr := s.settings.Get(ctx, userID)

	s.mu.Lock()
	defer s.mu.Unlock()
	pending, hasPending := s.pending[userID]
	if s.creating[userID]--; s.creating[userID] == 0 {
		delete(s.creating, userID)
		delete(s.pending, userID)
	}
	if apiErr != nil {
		return nil, nil, apiErr
	}
	if s.closed {
		return nil, nil, errShuttingDown()
	}

	entry, ok := s.engines[userID]
	if !ok {
		entry = &engineEntry{
			engine:   timer.New(userID, *settings, s.sink, s.options),
			lastUsed: s.clock.Now(),
		}
		s.engines[userID] = entry
		// An update that landed after settings were read had no engine to reach.
		if hasPending {
			entry.engine.OnSettingsChanged(pending)
		}
	}
	entry.refs++
	return entry.engine, s.releaser(entry), nil
}

func (s *TimerService) releaser(entry *engineEntry) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			entry.refs--
			entry.lastUsed = s.clock.Now()
			s.mu.Unlock()
		})
	}
}

func (s *TimerService) settingsChanged(userID string, settings model.Settings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry, ok := s.engines[userID]; ok {
		entry.engine.OnSettingsChanged(settings)
		return
	}
	if s.creating[userID] > 0 {
		s.pending[userID] = settings
	}
}

func errShuttingDown() *apperrors.APIError {
	return apperrors.New(http.StatusServiceUnavailable, "shutting_down", "server is shutting down")
}
