package chat

import (
	"os/exec"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ashfaaq98/insights-console/internal/notify"
)

func TestSpeakerUnavailableNotifies(t *testing.T) {
	rec := &notify.Recorder{}
	s := NewSpeaker("definitely-not-a-tts-binary", rec, nil)
	assert.False(t, s.Available())

	require.NoError(t, s.Speak("hello"))
	last, ok := rec.Last()
	require.True(t, ok)
	assert.Equal(t, notify.SeverityInfo, last.Severity)
	assert.Equal(t, UnsupportedMessage, last.Message)

	require.NoError(t, s.Speak("   "))
	assert.Len(t, rec.All(), 1, "blank text is ignored")
}

func TestSpeakerSingleUtterance(t *testing.T) {
	if _, err := exec.LookPath("sleep"); err != nil {
		t.Skip("sleep not available")
	}
	// "sleep <text>" stands in for a TTS command.
	s := NewSpeaker("sleep", nil, nil)
	require.True(t, s.Available())

	require.NoError(t, s.Speak("5"))
	assert.True(t, s.Speaking())
	require.NoError(t, s.Speak("5"))
	assert.True(t, s.Speaking())

	s.Stop()
	assert.False(t, s.Speaking())

	require.NoError(t, s.Speak("0"))
	assert.Eventually(t, func() bool { return !s.Speaking() }, 2*time.Second, 10*time.Millisecond)
}

func TestSpeakerConcurrentCallersKeepOneUtterance(t *testing.T) {
	if _, err := exec.LookPath("sleep"); err != nil {
		t.Skip("sleep not available")
	}
	s := NewSpeaker("sleep", nil, nil)
	require.True(t, s.Available())

	var alive, peak, started int32
	s.onStart = func() {
		atomic.AddInt32(&started, 1)
		n := atomic.AddInt32(&alive, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				return
			}
		}
	}
	s.onExit = func() { atomic.AddInt32(&alive, -1) }

	for round := 0; round < 5; round++ {
		var wg sync.WaitGroup
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				assert.NoError(t, s.Speak("3"))
			}()
		}
		wg.Wait()
		assert.True(t, s.Speaking())
	}

	s.Stop()
	assert.Eventually(t, func() bool { return atomic.LoadInt32(&alive) == 0 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(20), atomic.LoadInt32(&started))
	assert.Equal(t, int32(1), atomic.LoadInt32(&peak), "never more than one utterance alive")
}
