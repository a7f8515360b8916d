package timer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"zenfocus/backend/internal/model"
)

var (
	// ErrInvalidTransition is returned when a command is not allowed from the current status.
	ErrInvalidTransition = errors.New("invalid timer transition")
	// ErrInvalidMode is returned for modes outside focus, short_break, long_break.
	ErrInvalidMode = errors.New("invalid timer mode")
)

// persistTimeout bounds a session-log write, which ignores the caller's
// cancellation.
const persistTimeout = 10 * time.Second

// Sink receives the record of every naturally completed interval.
//
//go:generate mockgen -source=engine.go -destination=mock_sink_test.go -package=timer
type Sink interface {
	Append(ctx context.Context, record model.SessionRecord) error
}

// Options contains runtime options for an Engine.
type Options struct {
	TickInterval time.Duration
	Clock        Clock
	// Manual disables the background ticker; the caller drives Tick and Sync.
	Manual bool
	Logger *zap.Logger
	NewID  func() string
}

// Engine is the single owner of one user's active interval.
type Engine struct {
	mu       sync.Mutex
	userID   string
	settings model.Settings
	sink     Sink
	options  Options
	clock    Clock
	logger   *zap.Logger

	mode      model.TimerMode
	status    model.TimerStatus
	remaining int
	startedAt *time.Time
	note      string
	// minutes configured when the current interval started
	intervalMinutes int

	resumedAt         time.Time
	remainingAtResume int
	consumed          int

	cancelTick context.CancelFunc
	events     []chan Event
	closed     bool
}

// New creates an idle Engine in focus mode.
func New(userID string, settings model.Settings, sink Sink, options Options) *Engine {
	if options.TickInterval <= 0 {
		options.TickInterval = time.Second
	}
	if options.Clock == nil {
		options.Clock = SystemClock()
	}
	if options.Logger == nil {
		options.Logger = zap.NewNop()
	}
	if options.NewID == nil {
		options.NewID = uuid.NewString
	}

	engine := &Engine{
		userID:   userID,
		settings: settings,
		sink:     sink,
		options:  options,
		clock:    options.Clock,
		logger:   options.Logger.With(zap.String("user_id", userID)),
	}
	engine.resetLocked(model.ModeFocus)
	return engine
}

// Subscribe registers an observer channel. The returned func unregisters it.
func (e *Engine) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 1
	}
	ch := make(chan Event, buffer)

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	e.events = append(e.events, ch)
	e.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() { e.unsubscribe(ch) })
	}
}

func (e *Engine) unsubscribe(ch chan Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, existing := range e.events {
		if existing == ch {
			e.events = append(e.events[:i], e.events[i+1:]...)
			close(ch)
			return
		}
	}
}

// Snapshot returns a copy of the current interval state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// Start begins a fresh interval from IDLE or resumes from PAUSED.
func (e *Engine) Start() (Snapshot, error) {
	now := e.clock.Now()

	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.status {
	case model.StatusIdle:
		started := now
		e.startedAt = &started
		e.intervalMinutes = ConfiguredDuration(e.mode, e.settings)
		e.remaining = e.intervalMinutes * 60
	case model.StatusPaused:
	default:
		return e.snapshotLocked(), fmt.Errorf("start from %s: %w", e.status, ErrInvalidTransition)
	}

	e.status = model.StatusRunning
	e.resumedAt = now
	e.remainingAtResume = e.remaining
	e.consumed = 0
	e.startTickerLocked()
	e.emitLocked(EventStateChange, nil, "")
	return e.snapshotLocked(), nil
}

// Pause freezes a running interval. Pausing while paused is a no-op.
// Elapsed wall-clock time is applied first, so an interval that already ran
// out completes instead of pausing.
func (e *Engine) Pause(ctx context.Context) (Snapshot, error) {
	if err := e.Sync(ctx, e.clock.Now()); err != nil {
		return e.Snapshot(), err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.status {
	case model.StatusPaused:
		return e.snapshotLocked(), nil
	case model.StatusRunning:
	default:
		return e.snapshotLocked(), fmt.Errorf("pause from %s: %w", e.status, ErrInvalidTransition)
	}

	e.stopTickerLocked()
	e.status = model.StatusPaused
	e.emitLocked(EventStateChange, nil, "")
	return e.snapshotLocked(), nil
}

// Stop abandons the interval without recording it. Stopping while idle is a no-op.
func (e *Engine) Stop() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.status == model.StatusIdle {
		return e.snapshotLocked()
	}
	e.resetLocked(e.mode)
	e.emitLocked(EventStateChange, nil, "")
	return e.snapshotLocked()
}

// SwitchMode discards any interval in progress and idles in mode.
func (e *Engine) SwitchMode(mode model.TimerMode) (Snapshot, error) {
	if !mode.Valid() {
		return e.Snapshot(), fmt.Errorf("%q: %w", mode, ErrInvalidMode)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.resetLocked(mode)
	e.emitLocked(EventStateChange, nil, "")
	return e.snapshotLocked(), nil
}

// NextCycle acknowledges a completed interval and idles in the next mode.
func (e *Engine) NextCycle() (Snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.status != model.StatusCompleted {
		return e.snapshotLocked(), fmt.Errorf("next cycle from %s: %w", e.status, ErrInvalidTransition)
	}
	e.resetLocked(NextMode(e.mode))
	e.emitLocked(EventStateChange, nil, "")
	return e.snapshotLocked(), nil
}

// SetNote attaches a note to the interval; it is written with the record.
func (e *Engine) SetNote(note string) (Snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.status == model.StatusCompleted {
		return e.snapshotLocked(), fmt.Errorf("note on %s interval: %w", e.status, ErrInvalidTransition)
	}
	e.note = note
	e.emitLocked(EventStateChange, nil, "")
	return e.snapshotLocked(), nil
}

// OnSettingsChanged stores new settings. Only an idle interval is reseeded;
// otherwise the new durations apply after the next Stop or SwitchMode.
func (e *Engine) OnSettingsChanged(settings model.Settings) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.settings = settings
	if e.status != model.StatusIdle {
		return
	}
	e.remaining = ConfiguredDuration(e.mode, e.settings) * 60
	e.emitLocked(EventStateChange, nil, "")
}

// Tick advances a running interval by one second.
func (e *Engine) Tick(ctx context.Context) error {
	e.mu.Lock()
	if e.status != model.StatusRunning {
		e.mu.Unlock()
		return nil
	}
	e.consumed++
	return e.advanceLocked(ctx)
}

// Sync catches a running interval up with the wall clock. Ticks and Sync
// share one elapsed counter, so mixing them never counts a second twice.
func (e *Engine) Sync(ctx context.Context, now time.Time) error {
	e.mu.Lock()
	if e.status != model.StatusRunning {
		e.mu.Unlock()
		return nil
	}
	elapsed := int(now.Sub(e.resumedAt) / time.Second)
	if elapsed <= e.consumed {
		e.mu.Unlock()
		return nil
	}
	e.consumed = elapsed
	return e.advanceLocked(ctx)
}

// Dormant reports whether the engine holds nothing worth keeping: an idle
// interval without a note or subscribers.
func (e *Engine) Dormant() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status == model.StatusIdle && e.note == "" && len(e.events) == 0
}

// Close releases the ticker and closes every subscriber channel.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.stopTickerLocked()
	events := e.events
	e.events = nil
	e.mu.Unlock()

	for _, ch := range events {
		close(ch)
	}
}

// advanceLocked must be called with e.mu held; it always releases it.
func (e *Engine) advanceLocked(ctx context.Context) error {
	e.remaining = e.remainingAtResume - e.consumed
	if e.remaining > 0 {
		e.emitLocked(EventTick, nil, "")
		e.mu.Unlock()
		return nil
	}

	// The status flips before the sink is called, so a concurrent tick
	// observes COMPLETED and returns without emitting a second record.
	e.remaining = 0
	e.status = model.StatusCompleted
	e.stopTickerLocked()
	record := e.recordLocked(e.clock.Now())
	e.emitLocked(EventCompleted, &record, "")
	e.mu.Unlock()

	if e.sink == nil {
		return nil
	}
	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	if err := e.sink.Append(persistCtx, record); err != nil {
		e.logger.Error("persist completed session",
			zap.String("session_id", record.ID),
			zap.String("mode", string(record.Mode)),
			zap.Error(err),
		)
		e.mu.Lock()
		e.emitLocked(EventPersistFailed, &record, err.Error())
		e.mu.Unlock()
		return fmt.Errorf("record session %s: %w", record.ID, err)
	}
	return nil
}

func (e *Engine) recordLocked(end time.Time) model.SessionRecord {
	record := model.SessionRecord{
		ID:      e.options.NewID(),
		UserID:  e.userID,
		Mode:    e.mode,
		Date:    end.UTC().Format(model.DateLayout),
		EndTime: end.UTC(),
		Note:    e.note,
	}
	if e.startedAt != nil {
		record.StartTime = e.startedAt.UTC()
	}
	if e.mode == model.ModeFocus {
		record.FocusMinutes = e.intervalMinutes
	} else {
		record.BreakMinutes = e.intervalMinutes
	}
	return record
}

func (e *Engine) resetLocked(mode model.TimerMode) {
	e.stopTickerLocked()
	e.mode = mode
	e.status = model.StatusIdle
	e.startedAt = nil
	e.note = ""
	e.intervalMinutes = 0
	e.consumed = 0
	e.remainingAtResume = 0
	e.resumedAt = time.Time{}
	e.remaining = ConfiguredDuration(mode, e.settings) * 60
}

func (e *Engine) startTickerLocked() {
	if e.options.Manual || e.closed || e.cancelTick != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	e.cancelTick = cancel
	go e.run(ctx)
}

func (e *Engine) stopTickerLocked() {
	if e.cancelTick == nil {
		return
	}
	e.cancelTick()
	e.cancelTick = nil
}

func (e *Engine) run(ctx context.Context) {
	ticker := time.NewTicker(e.options.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// The loop context is cancelled on completion, so the sink
			// gets its own.
			if err := e.Sync(context.Background(), e.clock.Now()); err != nil {
				e.logger.Warn("timer tick", zap.Error(err))
			}
		}
	}
}

func (e *Engine) snapshotLocked() Snapshot {
	duration := ConfiguredDuration(e.mode, e.settings) * 60
	if e.startedAt != nil {
		duration = e.intervalMinutes * 60
	}

	snapshot := Snapshot{
		Mode:             e.mode,
		Status:           e.status,
		RemainingSeconds: e.remaining,
		DurationSeconds:  duration,
		Note:             e.note,
	}
	if duration > 0 {
		snapshot.Progress = float64(duration-e.remaining) / float64(duration)
		if snapshot.Progress < 0 {
			snapshot.Progress = 0
		}
	}
	if e.startedAt != nil {
		started := *e.startedAt
		snapshot.StartedAt = &started
	}
	return snapshot
}

func (e *Engine) emitLocked(eventType EventType, record *model.SessionRecord, message string) {
	if len(e.events) == 0 {
		return
	}
	event := Event{
		Type:    eventType,
		Timer:   e.snapshotLocked(),
		Record:  record,
		Message: message,
		At:      e.clock.Now(),
	}
	for _, ch := range e.events {
		select {
		case ch <- event:
		default:
		}
	}
}
