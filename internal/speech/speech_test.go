package speech

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	lines  []string
	voices []Voice
	block  chan struct{} // when set, Speak waits on it or ctx
	played chan struct{}
}

func newRecorder() *recorder {
	return &recorder{played: make(chan struct{}, 16)}
}

func (r *recorder) Speak(ctx context.Context, text string, voice Voice) error {
	if r.block != nil {
		select {
		case <-r.block:
		case <-ctx.Done():
			r.played <- struct{}{}
			return ctx.Err()
		}
	}
	r.mu.Lock()
	r.lines = append(r.lines, text)
	r.voices = append(r.voices, voice)
	r.mu.Unlock()
	r.played <- struct{}{}
	return nil
}

func (r *recorder) snapshot() ([]string, []Voice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.lines...), append([]Voice(nil), r.voices...)
}

func wait(t *testing.T, ch chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for playback")
	}
}

func TestSpeakPlaysInOrder(t *testing.T) {
	svc := NewService(context.Background())
	defer svc.Close()
	rec := newRecorder()
	svc.Register("local", rec)

	require.True(t, svc.Speak("Beep!", true))
	require.True(t, svc.Speak("Hello robot.", false))
	wait(t, rec.played)
	wait(t, rec.played)

	lines, voices := rec.snapshot()
	assert.Equal(t, []string{"Beep!", "Hello robot."}, lines)
	assert.Equal(t, []Voice{RobotVoice, CritterVoice}, voices)
}

func TestSpeakWithoutProviderOrDisabled(t *testing.T) {
	svc := NewService(context.Background())
	defer svc.Close()
	assert.False(t, svc.Speak("hi", false))

	svc.Register("local", newRecorder())
	svc.SetEnabled(false)
	assert.False(t, svc.Speak("hi", false))
	assert.False(t, svc.Speak("", false))

	var nilSvc *Service
	assert.False(t, nilSvc.Speak("hi", true))
	nilSvc.StopAll()
}

func TestStopAllCancelsInFlight(t *testing.T) {
	svc := NewService(context.Background())
	defer svc.Close()
	rec := newRecorder()
	rec.block = make(chan struct{})
	svc.Register("local", rec)

	require.True(t, svc.Speak("a very long line", false))
	// Give the worker a moment to pick the line up.
	assert.Eventually(t, func() bool {
		q := svc.queues["local"]
		q.mu.Lock()
		defer q.mu.Unlock()
		return q.cancel != nil
	}, time.Second, 5*time.Millisecond)

	svc.Speak("queued 1", false)
	svc.Speak("queued 2", false)
	svc.StopAll()
	wait(t, rec.played)

	close(rec.block)
	time.Sleep(20 * time.Millisecond)
	lines, _ := rec.snapshot()
	assert.Empty(t, lines, "in-flight line cancelled and queue flushed")
}

func TestSetActive(t *testing.T) {
	svc := NewService(context.Background())
	defer svc.Close()
	a, b := newRecorder(), newRecorder()
	svc.Register("a", a)
	svc.Register("b", b)
	assert.False(t, svc.SetActive("c"))
	require.True(t, svc.SetActive("b"))

	svc.Speak("to b", true)
	wait(t, b.played)
	lines, _ := b.snapshot()
	assert.Equal(t, []string{"to b"}, lines)
}
