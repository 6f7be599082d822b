package notify

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmitterExpiresAfterTTL(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	e := NewEmitter(5*time.Second, nil)
	e.SetClock(func() time.Time { return now })

	e.Errorf("Failed to load reports")
	e.Successf("Report deleted successfully")
	require.Len(t, e.Active(), 2)

	now = now.Add(4 * time.Second)
	assert.Len(t, e.Active(), 2)

	now = now.Add(time.Second)
	assert.Empty(t, e.Active(), "notifications must expire after the ttl")
}

func TestEmitterSubscribersSeeSeverity(t *testing.T) {
	e := NewEmitter(0, nil)
	var mu sync.Mutex
	var got []Notification
	e.Subscribe(func(n Notification) {
		mu.Lock()
		got = append(got, n)
		mu.Unlock()
	})

	e.Notify(SeverityInfo, "Some files were ignored (only PDFs are supported)")
	e.Errorf("%d file(s) failed to process", 2)

	require.Len(t, got, 2)
	assert.Equal(t, SeverityInfo, got[0].Severity)
	assert.Equal(t, SeverityError, got[1].Severity)
	assert.Equal(t, "2 file(s) failed to process", got[1].Message)
	assert.NotEqual(t, got[0].ID, got[1].ID)
}

func TestEmitterDismiss(t *testing.T) {
	e := NewEmitter(time.Minute, nil)
	n := e.Infof("hello")
	e.Infof("world")
	e.Dismiss(n.ID)

	active := e.Active()
	require.Len(t, active, 1)
	assert.Equal(t, "world", active[0].Message)
}

func TestRecorder(t *testing.T) {
	var r Recorder
	_, ok := r.Last()
	assert.False(t, ok)

	r.Notify(SeverityWarning, "a")
	r.Notify(SeverityError, "b")
	last, ok := r.Last()
	require.True(t, ok)
	assert.Equal(t, "b", last.Message)
	assert.Len(t, r.All(), 2)
}
