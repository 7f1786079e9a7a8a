package health

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tutoapp/practicecache/pkg/errors"
)

func TestTracker_RegisterComponent(t *testing.T) {
	tracker := NewTracker(DefaultConfig())
	tracker.RegisterComponent("storage")
	tracker.RegisterComponent("storage")

	assert.Equal(t, StateHealthy, tracker.State("storage"))
	assert.Len(t, tracker.Components(), 1)
	assert.Equal(t, StateUnavailable, tracker.State("unknown"))
}

func TestTracker_Thresholds(t *testing.T) {
	tracker := NewTracker(Config{ErrorThreshold: 2, UnavailableThreshold: 4})
	tracker.RegisterComponent("exercise")

	tracker.RecordError("exercise", fmt.Errorf("fallback"))
	assert.Equal(t, StateHealthy, tracker.State("exercise"), "below threshold")

	tracker.RecordError("exercise", fmt.Errorf("fallback"))
	assert.Equal(t, StateDegraded, tracker.State("exercise"))
	assert.True(t, tracker.CanWrite("exercise"))

	tracker.RecordError("exercise", fmt.Errorf("fallback"))
	tracker.RecordError("exercise", fmt.Errorf("fallback"))
	assert.Equal(t, StateUnavailable, tracker.State("exercise"))
	assert.False(t, tracker.CanRead("exercise"))

	health, err := tracker.Component("exercise")
	require.NoError(t, err)
	assert.Equal(t, 4, health.ConsecutiveErrors)
	assert.Equal(t, "fallback", health.LastErrorMessage)
}

func TestTracker_BlockedStorageIsReadOnly(t *testing.T) {
	tracker := NewTracker(Config{ErrorThreshold: 1, UnavailableThreshold: 5})
	tracker.RegisterComponent("storage")

	tracker.RecordError("storage", errors.NewError(errors.ErrCodeStorageBlocked, "locked"))

	assert.Equal(t, StateReadOnly, tracker.State("storage"))
	assert.True(t, tracker.CanRead("storage"))
	assert.False(t, tracker.CanWrite("storage"))
}

func TestTracker_Recovery(t *testing.T) {
	tracker := NewTracker(Config{ErrorThreshold: 1, UnavailableThreshold: 3})
	tracker.RegisterComponent("validation")

	tracker.RecordError("validation", fmt.Errorf("a"))
	tracker.RecordError("validation", fmt.Errorf("b"))
	require.Equal(t, StateDegraded, tracker.State("validation"))

	tracker.RecordSuccess("validation")
	assert.Equal(t, StateDegraded, tracker.State("validation"), "one error still outstanding")

	tracker.RecordSuccess("validation")
	assert.Equal(t, StateHealthy, tracker.State("validation"))

	health, err := tracker.Component("validation")
	require.NoError(t, err)
	assert.Zero(t, health.ConsecutiveErrors)
	assert.Empty(t, health.LastErrorMessage)
}

func TestTracker_Overall(t *testing.T) {
	tracker := NewTracker(Config{ErrorThreshold: 1, UnavailableThreshold: 2})
	assert.Equal(t, StateHealthy, tracker.Overall(), "no components")

	tracker.RegisterComponent("storage")
	tracker.RegisterComponent("exercise")
	tracker.RecordError("exercise", fmt.Errorf("fallback"))
	assert.Equal(t, StateDegraded, tracker.Overall())

	tracker.RecordError("storage", fmt.Errorf("down"))
	tracker.RecordError("storage", fmt.Errorf("down"))
	assert.Equal(t, StateUnavailable, tracker.Overall())

	names := []string{}
	for _, c := range tracker.Components() {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"exercise", "storage"}, names)
}

func TestTracker_StateChangeCallback(t *testing.T) {
	tracker := NewTracker(Config{ErrorThreshold: 1, UnavailableThreshold: 5})
	tracker.RegisterComponent("storage")

	changes := make(chan string, 2)
	tracker.OnStateChange(StateDegraded, func(component string, oldState, newState State, err error) {
		changes <- fmt.Sprintf("%s:%s->%s", component, oldState, newState)
	})
	tracker.OnStateChange(StateHealthy, func(component string, oldState, newState State, err error) {
		changes <- fmt.Sprintf("%s:%s->%s", component, oldState, newState)
	})

	tracker.RecordError("storage", fmt.Errorf("down"))
	assert.Equal(t, "storage:healthy->degraded", receive(t, changes))

	tracker.RecordSuccess("storage")
	assert.Equal(t, "storage:degraded->healthy", receive(t, changes))
}

func TestTracker_Check(t *testing.T) {
	tracker := NewTracker(Config{ErrorThreshold: 1, UnavailableThreshold: 3})
	tracker.RegisterComponent("storage")
	tracker.RegisterComponent("exercise")

	var checked []string
	tracker.Check(context.Background(), func(_ context.Context, component string) error {
		checked = append(checked, component)
		if component == "storage" {
			return fmt.Errorf("down")
		}
		return nil
	})

	assert.Equal(t, []string{"exercise", "storage"}, checked)
	assert.Equal(t, StateHealthy, tracker.State("exercise"))
	assert.Equal(t, StateDegraded, tracker.State("storage"))
}

func TestTracker_Run(t *testing.T) {
	tracker := NewTracker(Config{ErrorThreshold: 1, UnavailableThreshold: 3, CheckInterval: 5 * time.Millisecond})
	tracker.RegisterComponent("storage")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		tracker.Run(ctx, func(context.Context, string) error { return fmt.Errorf("down") })
		close(done)
	}()

	assert.Eventually(t, func() bool {
		return tracker.State("storage") == StateUnavailable
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestTracker_RunWithoutInterval(t *testing.T) {
	tracker := NewTracker(Config{ErrorThreshold: 1})
	tracker.Run(context.Background(), func(context.Context, string) error { return nil })
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateHealthy, "healthy"},
		{StateDegraded, "degraded"},
		{StateReadOnly, "read-only"},
		{StateUnavailable, "unavailable"},
		{State(42), "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.state.String())
	}
}

func TestTracker_ComponentNotRegistered(t *testing.T) {
	tracker := NewTracker(DefaultConfig())
	_, err := tracker.Component("missing")
	assert.Error(t, err)

	// unknown components are ignored
	tracker.RecordError("missing", fmt.Errorf("x"))
	tracker.RecordSuccess("missing")
}

func receive(t *testing.T, ch <-chan string) string {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(time.Second):
		t.Fatal("no state change observed")
		return ""
	}
}

func BenchmarkTracker_RecordSuccess(b *testing.B) {
	tracker := NewTracker(DefaultConfig())
	tracker.RegisterComponent("storage")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		tracker.RecordSuccess("storage")
	}
}
