package timer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"zenfocus/backend/internal/model"
)

var testStart = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T, settings model.Settings, sink Sink) (*Engine, *ManualClock) {
	t.Helper()
	clock := NewManualClock(testStart)
	engine := New("user-1", settings, sink, Options{
		Clock:  clock,
		Manual: true,
		NewID:  func() string { return "session-1" },
	})
	t.Cleanup(engine.Close)
	return engine, clock
}

func tickN(t *testing.T, engine *Engine, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, engine.Tick(context.Background()))
	}
}

func captureRecords(sink *MockSink, records *[]model.SessionRecord) *gomock.Call {
	return sink.EXPECT().Append(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, record model.SessionRecord) error {
			*records = append(*records, record)
			return nil
		},
	)
}

func TestNewEngineIsIdleInFocus(t *testing.T) {
	engine, _ := newTestEngine(t, model.DefaultSettings(), nil)

	snapshot := engine.Snapshot()
	assert.Equal(t, model.ModeFocus, snapshot.Mode)
	assert.Equal(t, model.StatusIdle, snapshot.Status)
	assert.Equal(t, 25*60, snapshot.RemainingSeconds)
	assert.Nil(t, snapshot.StartedAt)
}

func TestSwitchModeResetsToIdle(t *testing.T) {
	settings := model.DefaultSettings()
	modes := []model.TimerMode{model.ModeFocus, model.ModeShortBreak, model.ModeLongBreak}
	prepare := map[string]func(t *testing.T, engine *Engine){
		"idle": func(t *testing.T, engine *Engine) {},
		"running": func(t *testing.T, engine *Engine) {
			_, err := engine.Start()
			require.NoError(t, err)
			tickN(t, engine, 3)
		},
		"paused": func(t *testing.T, engine *Engine) {
			_, err := engine.Start()
			require.NoError(t, err)
			_, err = engine.Pause(context.Background())
			require.NoError(t, err)
		},
	}

	for name, setup := range prepare {
		for _, mode := range modes {
			t.Run(name+"/"+string(mode), func(t *testing.T) {
				engine, _ := newTestEngine(t, settings, nil)
				setup(t, engine)

				snapshot, err := engine.SwitchMode(mode)
				require.NoError(t, err)
				assert.Equal(t, mode, snapshot.Mode)
				assert.Equal(t, model.StatusIdle, snapshot.Status)
				assert.Equal(t, ConfiguredDuration(mode, settings)*60, snapshot.RemainingSeconds)
				assert.Nil(t, snapshot.StartedAt)
			})
		}
	}
}

func TestSwitchModeRejectsUnknownMode(t *testing.T) {
	engine, _ := newTestEngine(t, model.DefaultSettings(), nil)

	_, err := engine.SwitchMode("nap")
	assert.ErrorIs(t, err, ErrInvalidMode)
	assert.Equal(t, model.ModeFocus, engine.Snapshot().Mode)
}

func TestStartSetsStartedAtOncePerInterval(t *testing.T) {
	engine, clock := newTestEngine(t, model.DefaultSettings(), nil)

	snapshot, err := engine.Start()
	require.NoError(t, err)
	require.NotNil(t, snapshot.StartedAt)
	assert.Equal(t, testStart, *snapshot.StartedAt)

	tickN(t, engine, 5)
	clock.Advance(5 * time.Second)
	_, err = engine.Pause(context.Background())
	require.NoError(t, err)

	clock.Advance(time.Minute)
	snapshot, err = engine.Start()
	require.NoError(t, err)
	require.NotNil(t, snapshot.StartedAt)
	assert.Equal(t, testStart, *snapshot.StartedAt)
	assert.Equal(t, 25*60-5, snapshot.RemainingSeconds)
}

func TestStartRejectedWhileRunningOrCompleted(t *testing.T) {
	ctrl := gomock.NewController(t)
	sink := NewMockSink(ctrl)
	sink.EXPECT().Append(gomock.Any(), gomock.Any()).Return(nil)

	settings := model.DefaultSettings()
	settings.FocusMinutes = 1
	engine, _ := newTestEngine(t, settings, sink)

	_, err := engine.Start()
	require.NoError(t, err)
	_, err = engine.Start()
	assert.ErrorIs(t, err, ErrInvalidTransition)

	tickN(t, engine, 60)
	require.Equal(t, model.StatusCompleted, engine.Snapshot().Status)

	_, err = engine.Start()
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, model.StatusCompleted, engine.Snapshot().Status)
}

func TestFocusCompletionEmitsSingleRecord(t *testing.T) {
	ctrl := gomock.NewController(t)
	sink := NewMockSink(ctrl)
	var records []model.SessionRecord
	captureRecords(sink, &records).Times(1)

	settings := model.DefaultSettings()
	settings.FocusMinutes = 25
	engine, clock := newTestEngine(t, settings, sink)

	_, err := engine.Start()
	require.NoError(t, err)
	tickN(t, engine, 1499)
	assert.Equal(t, model.StatusRunning, engine.Snapshot().Status)
	assert.Equal(t, 1, engine.Snapshot().RemainingSeconds)

	clock.Advance(25 * time.Minute)
	tickN(t, engine, 1)

	snapshot := engine.Snapshot()
	assert.Equal(t, model.StatusCompleted, snapshot.Status)
	assert.Equal(t, 0, snapshot.RemainingSeconds)
	assert.InDelta(t, 1.0, snapshot.Progress, 0.0001)

	// Further ticks while completed are no-ops.
	tickN(t, engine, 10)
	require.NoError(t, engine.Sync(context.Background(), clock.Advance(time.Hour)))

	require.Len(t, records, 1)
	record := records[0]
	assert.Equal(t, "session-1", record.ID)
	assert.Equal(t, "user-1", record.UserID)
	assert.Equal(t, model.ModeFocus, record.Mode)
	assert.Equal(t, 25, record.FocusMinutes)
	assert.Equal(t, 0, record.BreakMinutes)
	assert.Equal(t, testStart, record.StartTime)
	assert.Equal(t, testStart.Add(25*time.Minute), record.EndTime)
	assert.Equal(t, "2026-03-14", record.Date)
}

func TestShortBreakPauseResumeCountsFullDuration(t *testing.T) {
	ctrl := gomock.NewController(t)
	sink := NewMockSink(ctrl)
	var records []model.SessionRecord
	captureRecords(sink, &records).Times(1)

	settings := model.DefaultSettings()
	settings.ShortBreakMinutes = 5
	engine, _ := newTestEngine(t, settings, sink)

	_, err := engine.SwitchMode(model.ModeShortBreak)
	require.NoError(t, err)
	_, err = engine.Start()
	require.NoError(t, err)

	tickN(t, engine, 50)
	snapshot, err := engine.Pause(context.Background())
	require.NoError(t, err)
	require.Equal(t, 250, snapshot.RemainingSeconds)

	// Ticks while paused do not move the clock.
	tickN(t, engine, 20)
	assert.Equal(t, 250, engine.Snapshot().RemainingSeconds)

	_, err = engine.Start()
	require.NoError(t, err)
	tickN(t, engine, 250)

	assert.Equal(t, model.StatusCompleted, engine.Snapshot().Status)
	require.Len(t, records, 1)
	assert.Equal(t, 5, records[0].BreakMinutes)
	assert.Equal(t, 0, records[0].FocusMinutes)
	assert.Equal(t, model.ModeShortBreak, records[0].Mode)
}

func TestStopDiscardsIntervalWithoutRecord(t *testing.T) {
	ctrl := gomock.NewController(t)
	sink := NewMockSink(ctrl)
	sink.EXPECT().Append(gomock.Any(), gomock.Any()).Times(0)

	engine, _ := newTestEngine(t, model.DefaultSettings(), sink)

	_, err := engine.Start()
	require.NoError(t, err)
	tickN(t, engine, 10)

	snapshot := engine.Stop()
	assert.Equal(t, model.StatusIdle, snapshot.Status)
	assert.Equal(t, 25*60, snapshot.RemainingSeconds)
	assert.Nil(t, snapshot.StartedAt)
}

func TestStopReturnsCompletedToIdle(t *testing.T) {
	ctrl := gomock.NewController(t)
	sink := NewMockSink(ctrl)
	sink.EXPECT().Append(gomock.Any(), gomock.Any()).Return(nil).Times(1)

	settings := model.DefaultSettings()
	settings.LongBreakMinutes = 1
	engine, _ := newTestEngine(t, settings, sink)

	_, err := engine.SwitchMode(model.ModeLongBreak)
	require.NoError(t, err)
	_, err = engine.Start()
	require.NoError(t, err)
	tickN(t, engine, 60)

	snapshot := engine.Stop()
	assert.Equal(t, model.StatusIdle, snapshot.Status)
	assert.Equal(t, model.ModeLongBreak, snapshot.Mode)
	assert.Equal(t, 60, snapshot.RemainingSeconds)
}

func TestPauseIsIdempotent(t *testing.T) {
	engine, _ := newTestEngine(t, model.DefaultSettings(), nil)

	_, err := engine.Start()
	require.NoError(t, err)
	tickN(t, engine, 7)

	first, err := engine.Pause(context.Background())
	require.NoError(t, err)
	second, err := engine.Pause(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, model.StatusPaused, second.Status)
}

func TestPauseRejectedWhileIdle(t *testing.T) {
	engine, _ := newTestEngine(t, model.DefaultSettings(), nil)

	_, err := engine.Pause(context.Background())
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestSettingsChangeDeferredWhileRunning(t *testing.T) {
	ctrl := gomock.NewController(t)
	sink := NewMockSink(ctrl)
	var records []model.SessionRecord
	captureRecords(sink, &records).Times(1)

	settings := model.DefaultSettings()
	engine, _ := newTestEngine(t, settings, sink)

	_, err := engine.Start()
	require.NoError(t, err)
	tickN(t, engine, 100)

	changed := settings
	changed.FocusMinutes = 30
	engine.OnSettingsChanged(changed)

	snapshot := engine.Snapshot()
	assert.Equal(t, 25*60-100, snapshot.RemainingSeconds)
	assert.Equal(t, 25*60, snapshot.DurationSeconds)

	tickN(t, engine, 25*60-100)
	require.Len(t, records, 1)
	assert.Equal(t, 25, records[0].FocusMinutes)

	snapshot = engine.Stop()
	assert.Equal(t, 30*60, snapshot.RemainingSeconds)
}

func TestSettingsChangeDeferredWhilePaused(t *testing.T) {
	settings := model.DefaultSettings()
	engine, _ := newTestEngine(t, settings, nil)

	_, err := engine.Start()
	require.NoError(t, err)
	tickN(t, engine, 10)
	_, err = engine.Pause(context.Background())
	require.NoError(t, err)

	changed := settings
	changed.FocusMinutes = 50
	engine.OnSettingsChanged(changed)
	assert.Equal(t, 25*60-10, engine.Snapshot().RemainingSeconds)

	snapshot, err := engine.SwitchMode(model.ModeFocus)
	require.NoError(t, err)
	assert.Equal(t, 50*60, snapshot.RemainingSeconds)
}

func TestSettingsChangeReseedsIdle(t *testing.T) {
	settings := model.DefaultSettings()
	engine, _ := newTestEngine(t, settings, nil)
	_, err := engine.SwitchMode(model.ModeLongBreak)
	require.NoError(t, err)

	changed := settings
	changed.LongBreakMinutes = 20
	engine.OnSettingsChanged(changed)

	assert.Equal(t, 20*60, engine.Snapshot().RemainingSeconds)
}

func TestSyncFollowsWallClock(t *testing.T) {
	engine, clock := newTestEngine(t, model.DefaultSettings(), nil)

	_, err := engine.Start()
	require.NoError(t, err)

	require.NoError(t, engine.Sync(context.Background(), clock.Advance(90*time.Second+400*time.Millisecond)))
	assert.Equal(t, 25*60-90, engine.Snapshot().RemainingSeconds)

	// Ticks already accounted for by the wall clock are not counted twice.
	tickN(t, engine, 1)
	require.NoError(t, engine.Sync(context.Background(), clock.Advance(600*time.Millisecond)))
	assert.Equal(t, 25*60-91, engine.Snapshot().RemainingSeconds)
}

func TestSyncCoalescedTicksCompleteOnce(t *testing.T) {
	ctrl := gomock.NewController(t)
	sink := NewMockSink(ctrl)
	var records []model.SessionRecord
	captureRecords(sink, &records).Times(1)

	settings := model.DefaultSettings()
	settings.ShortBreakMinutes = 5
	engine, clock := newTestEngine(t, settings, sink)
	_, err := engine.SwitchMode(model.ModeShortBreak)
	require.NoError(t, err)
	_, err = engine.Start()
	require.NoError(t, err)

	// A suspended process wakes up long after the break ended.
	now := clock.Advance(2 * time.Hour)
	require.NoError(t, engine.Sync(context.Background(), now))
	require.NoError(t, engine.Sync(context.Background(), now.Add(time.Second)))

	assert.Equal(t, model.StatusCompleted, engine.Snapshot().Status)
	require.Len(t, records, 1)
	assert.Equal(t, 5, records[0].BreakMinutes)
}

func TestConcurrentTicksCompleteOnce(t *testing.T) {
	ctrl := gomock.NewController(t)
	sink := NewMockSink(ctrl)
	sink.EXPECT().Append(gomock.Any(), gomock.Any()).Return(nil).Times(1)

	settings := model.DefaultSettings()
	settings.FocusMinutes = 1
	engine, _ := newTestEngine(t, settings, sink)
	_, err := engine.Start()
	require.NoError(t, err)
	tickN(t, engine, 59)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = engine.Tick(context.Background())
		}()
	}
	wg.Wait()

	assert.Equal(t, model.StatusCompleted, engine.Snapshot().Status)
}

func TestPersistFailureKeepsCompletedStatus(t *testing.T) {
	ctrl := gomock.NewController(t)
	sink := NewMockSink(ctrl)
	storeErr := errors.New("database is locked")
	sink.EXPECT().Append(gomock.Any(), gomock.Any()).Return(storeErr).Times(1)

	settings := model.DefaultSettings()
	settings.FocusMinutes = 1
	engine, _ := newTestEngine(t, settings, sink)
	events, cancel := engine.Subscribe(128)
	defer cancel()

	_, err := engine.Start()
	require.NoError(t, err)
	tickN(t, engine, 59)

	err = engine.Tick(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, storeErr)
	assert.Equal(t, model.StatusCompleted, engine.Snapshot().Status)

	var types []EventType
	for len(events) > 0 {
		event := <-events
		types = append(types, event.Type)
	}
	assert.Contains(t, types, EventCompleted)
	assert.Contains(t, types, EventPersistFailed)
}

func TestNextCycleAlternatesModes(t *testing.T) {
	ctrl := gomock.NewController(t)
	sink := NewMockSink(ctrl)
	sink.EXPECT().Append(gomock.Any(), gomock.Any()).Return(nil).Times(2)

	settings := model.Settings{FocusMinutes: 1, ShortBreakMinutes: 1, LongBreakMinutes: 1}
	engine, _ := newTestEngine(t, settings, sink)

	_, err := engine.NextCycle()
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = engine.Start()
	require.NoError(t, err)
	tickN(t, engine, 60)
	snapshot, err := engine.NextCycle()
	require.NoError(t, err)
	assert.Equal(t, model.ModeShortBreak, snapshot.Mode)
	assert.Equal(t, model.StatusIdle, snapshot.Status)

	_, err = engine.Start()
	require.NoError(t, err)
	tickN(t, engine, 60)
	snapshot, err = engine.NextCycle()
	require.NoError(t, err)
	assert.Equal(t, model.ModeFocus, snapshot.Mode)
}

func TestNoteIsWrittenWithRecord(t *testing.T) {
	ctrl := gomock.NewController(t)
	sink := NewMockSink(ctrl)
	var records []model.SessionRecord
	captureRecords(sink, &records).Times(1)

	settings := model.DefaultSettings()
	settings.FocusMinutes = 1
	engine, _ := newTestEngine(t, settings, sink)

	_, err := engine.Start()
	require.NoError(t, err)
	_, err = engine.SetNote("draft chapter two")
	require.NoError(t, err)
	tickN(t, engine, 60)

	_, err = engine.SetNote("too late")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	require.Len(t, records, 1)
	assert.Equal(t, "draft chapter two", records[0].Note)

	assert.Empty(t, engine.Stop().Note)
}

func TestBackgroundTickerCompletesInterval(t *testing.T) {
	ctrl := gomock.NewController(t)
	sink := NewMockSink(ctrl)
	done := make(chan model.SessionRecord, 1)
	sink.EXPECT().Append(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, record model.SessionRecord) error {
			done <- record
			return nil
		},
	).Times(1)

	clock := NewManualClock(testStart)
	settings := model.DefaultSettings()
	settings.FocusMinutes = 1
	engine := New("user-1", settings, sink, Options{
		Clock:        clock,
		TickInterval: 5 * time.Millisecond,
	})
	defer engine.Close()

	_, err := engine.Start()
	require.NoError(t, err)
	clock.Advance(61 * time.Second)

	select {
	case record := <-done:
		assert.Equal(t, 1, record.FocusMinutes)
	case <-time.After(2 * time.Second):
		t.Fatal("background ticker did not complete the interval")
	}
	assert.Equal(t, model.StatusCompleted, engine.Snapshot().Status)
}

func TestCloseClosesSubscribers(t *testing.T) {
	engine, _ := newTestEngine(t, model.DefaultSettings(), nil)
	events, cancel := engine.Subscribe(1)

	engine.Close()
	cancel()

	_, ok := <-events
	assert.False(t, ok)
}

func TestCompletionWriteIgnoresCallerCancellation(t *testing.T) {
	ctrl := gomock.NewController(t)
	sink := NewMockSink(ctrl)
	sink.EXPECT().Append(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, _ model.SessionRecord) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			_, hasDeadline := ctx.Deadline()
			assert.True(t, hasDeadline)
			return nil
		},
	).Times(1)

	settings := model.DefaultSettings()
	settings.FocusMinutes = 1
	engine, clock := newTestEngine(t, settings, sink)

	_, err := engine.Start()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, engine.Sync(ctx, clock.Advance(2*time.Minute)))
	assert.Equal(t, model.StatusCompleted, engine.Snapshot().Status)
}

func TestDormantOnlyWhenIdleWithoutNoteOrSubscribers(t *testing.T) {
	engine, _ := newTestEngine(t, model.DefaultSettings(), nil)
	assert.True(t, engine.Dormant())

	_, cancel := engine.Subscribe(1)
	assert.False(t, engine.Dormant())
	cancel()
	assert.True(t, engine.Dormant())

	_, err := engine.SetNote("outline")
	require.NoError(t, err)
	assert.False(t, engine.Dormant())
	_, err = engine.SwitchMode(model.ModeFocus)
	require.NoError(t, err)
	assert.True(t, engine.Dormant())

	_, err = engine.Start()
	require.NoError(t, err)
	assert.False(t, engine.Dormant())
}
