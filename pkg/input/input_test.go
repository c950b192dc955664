package input

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func down(code uint16, ext bool) Step {
	return Step{Kind: KeyDown, Scan: Scan{Code: code, Extended: ext}}
}

func up(code uint16, ext bool) Step {
	return Step{Kind: KeyUp, Scan: Scan{Code: code, Extended: ext}}
}

func TestParseKey(t *testing.T) {
	tests := []struct {
		in   string
		want Key
	}{
		{"a", A},
		{"Z", Z},
		{"7", Digit7},
		{"F5", F5},
		{"lctrl", LCtrl},
		{"left-shift", LShift},
		{"np_1", Numpad1},
		{"numpad1", Numpad1},
		{"NP_DIVIDE", NumpadDivide},
		{"arrow_left", ArrowLeft},
		{"left", ArrowLeft},
		{"esc", Escape},
		{" return ", Enter},
		{"\\", Backslash},
		{"print", PrintScreen},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseKey(tt.in)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}

	for _, bad := range []string{"", "hyper", "f13"} {
		_, ok := ParseKey(bad)
		assert.False(t, ok, bad)
	}
}

func TestKeys_RoundTripThroughTokens(t *testing.T) {
	for _, k := range Keys() {
		got, ok := ParseKey(k.String())
		require.True(t, ok, k.String())
		assert.Equal(t, k, got)
	}
}

func TestKey_Scan(t *testing.T) {
	sc, ok := RCtrl.Scan()
	require.True(t, ok)
	assert.Equal(t, Scan{Code: 0x1d, Extended: true}, sc)

	_, ok = PauseBreak.Scan()
	assert.False(t, ok)

	sc, ok = Custom(0x70, false).Scan()
	require.True(t, ok)
	assert.Equal(t, uint16(0x70), sc.Code)

	assert.True(t, LWin.IsModifier())
	assert.False(t, A.IsModifier())
}

func TestChord(t *testing.T) {
	steps := Chord([]Key{LCtrl, LShift}, Escape)

	assert.Equal(t, []Step{
		down(0x1d, false),
		down(0x2a, false),
		down(0x01, false),
		up(0x01, false),
		up(0x2a, false),
		up(0x1d, false),
	}, steps)
}

func TestHold(t *testing.T) {
	steps := Hold([]Key{LAlt}, Tab, 50*time.Millisecond)

	assert.Equal(t, []Step{
		down(0x38, false),
		down(0x0f, false),
		Sleep(50 * time.Millisecond),
		up(0x0f, false),
		up(0x38, false),
	}, steps)
}

func TestTap_UnmappedKeyIsSkipped(t *testing.T) {
	assert.Empty(t, Tap(PrintScreen))
	assert.Equal(t, []Step{Sleep(time.Second)}, TapWithDelay(PrintScreen, time.Second))
}

func TestClickN(t *testing.T) {
	steps := ClickN(Left, 3, 10*time.Millisecond)

	require.Len(t, steps, 8)
	assert.Equal(t, Step{Kind: MouseDown, Button: Left}, steps[0])
	assert.Equal(t, Step{Kind: MouseUp, Button: Left}, steps[1])
	assert.Equal(t, Sleep(10*time.Millisecond), steps[2])
	assert.Equal(t, Step{Kind: MouseUp, Button: Left}, steps[7])

	assert.Len(t, ClickN(Right, 2, 0), 4)
	assert.Empty(t, ClickN(Right, 0, time.Second))
}

func TestSendAll_SkipsPausesAndStopsOnError(t *testing.T) {
	rec := &Recorder{}
	require.NoError(t, SendAll(context.Background(), rec, Seq(Tap(A), []Step{Sleep(time.Millisecond)}, Click(Middle))...))

	assert.Len(t, rec.Steps(), 4)
	for _, s := range rec.Steps() {
		assert.NotEqual(t, Pause, s.Kind)
	}

	failing := &Recorder{Fail: func(s Step) error {
		if s.Kind == KeyUp {
			return errors.New("denied")
		}
		return nil
	}}
	err := SendAll(context.Background(), failing, Tap(B)...)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "denied")
	assert.Len(t, failing.Steps(), 1)
}

func TestSendAll_PauseHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := SendAll(ctx, &Recorder{}, Sleep(time.Hour))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExecutor_RunsSequencesInOrder(t *testing.T) {
	rec := &Recorder{}
	ex := NewExecutor(rec)

	var wg sync.WaitGroup
	for range 8 {
		wg.Go(func() {
			assert.NoError(t, ex.Enqueue(Chord([]Key{LCtrl}, C)...))
		})
	}
	wg.Wait()

	require.NoError(t, ex.Close(context.Background()))

	steps := rec.Steps()
	require.Len(t, steps, 8*4)

	// Sequences never interleave.
	want := Chord([]Key{LCtrl}, C)
	for i := 0; i < len(steps); i += 4 {
		assert.Equal(t, want, steps[i:i+4])
	}
}

func TestExecutor_Closed(t *testing.T) {
	ex := NewExecutor(&Recorder{})
	require.NoError(t, ex.Close(context.Background()))

	assert.ErrorIs(t, ex.Enqueue(Tap(A)...), ErrExecutorClosed)
}

func TestExecutor_QueueLimit(t *testing.T) {
	block := make(chan struct{})
	rec := &Recorder{Fail: func(Step) error {
		<-block
		return nil
	}}

	ex := NewExecutor(rec, WithQueueLimit(2))

	require.NoError(t, ex.Enqueue(Tap(A)...))
	require.Eventually(t, func() bool { return ex.Pending() == 0 }, time.Second, time.Millisecond)

	require.NoError(t, ex.Enqueue(Tap(B)...))
	assert.ErrorIs(t, ex.Enqueue(Tap(C)...), ErrQueueFull)

	close(block)
	require.NoError(t, ex.Close(context.Background()))
	assert.Len(t, rec.Steps(), 4)
}

func TestExecutor_CloseTimeoutAbandonsPauses(t *testing.T) {
	ex := NewExecutor(&Recorder{})
	require.NoError(t, ex.Enqueue(Sleep(time.Hour)))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	assert.ErrorIs(t, ex.Close(ctx), context.DeadlineExceeded)
}

func TestParseCombo(t *testing.T) {
	mods, main, err := ParseCombo("lctrl + lshift+esc")
	require.NoError(t, err)
	assert.Equal(t, []Key{LCtrl, LShift}, mods)
	assert.Equal(t, Escape, main)

	mods, main, err = ParseCombo("f5")
	require.NoError(t, err)
	assert.Empty(t, mods)
	assert.Equal(t, F5, main)

	_, _, err = ParseCombo("ctrl+hyper")
	assert.Error(t, err)

	_, _, err = ParseCombo("")
	assert.Error(t, err)
}
