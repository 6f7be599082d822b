package chat

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ashfaaq98/insights-console/internal/api"
	"github.com/Ashfaaq98/insights-console/internal/api/apitest"
)

type senderFunc func(ctx context.Context, reportID, message string) (string, error)

func (f senderFunc) Chat(ctx context.Context, reportID, message string) (string, error) {
	return f(ctx, reportID, message)
}

func TestOpenStartsWithGreeting(t *testing.T) {
	c := NewController(nil, nil)
	msgs := c.Open("r1")
	require.Len(t, msgs, 1)
	assert.True(t, msgs[0].Greeting)
	assert.Equal(t, RoleModel, msgs[0].Role)
	assert.Equal(t, Greeting, msgs[0].Content)

	// reopening keeps the log
	again := c.Open("r1")
	assert.Equal(t, msgs[0].ID, again[0].ID)

	_, err := c.Messages("nope")
	assert.ErrorIs(t, err, ErrUnknownSession)
}

func TestWhitespaceSendIsNoop(t *testing.T) {
	var calls int32
	c := NewController(senderFunc(func(context.Context, string, string) (string, error) {
		atomic.AddInt32(&calls, 1)
		return "x", nil
	}), nil)
	c.Open("r1")

	for _, text := range []string{"", "  ", "\t\n "} {
		_, err := c.Send(context.Background(), "r1", text)
		assert.ErrorIs(t, err, ErrEmptyMessage)
	}
	msgs, _ := c.Messages("r1")
	assert.Len(t, msgs, 1)
	assert.EqualValues(t, 0, atomic.LoadInt32(&calls))
}

func TestSendReplacesPlaceholderInPlace(t *testing.T) {
	var c *Controller
	c = NewController(senderFunc(func(_ context.Context, reportID, message string) (string, error) {
		msgs, _ := c.Messages(reportID)
		require.Len(t, msgs, 3)
		assert.Equal(t, RoleUser, msgs[1].Role)
		assert.Equal(t, "hi", msgs[1].Content)
		assert.True(t, msgs[2].Pending)
		assert.Equal(t, PendingText, msgs[2].Content)
		return "**hello** back", nil
	}), nil)
	c.Open("r1")
	c.SetDraft("r1", "hi")

	reply, err := c.Send(context.Background(), "r1", "  hi  ")
	require.NoError(t, err)
	assert.Equal(t, "**hello** back", reply.Content)
	assert.False(t, reply.Verbatim)

	msgs, _ := c.Messages("r1")
	require.Len(t, msgs, 3)
	assert.Equal(t, reply.ID, msgs[2].ID)
	assert.False(t, msgs[2].Pending)
	assert.Empty(t, c.Draft("r1"), "draft cleared on send")
}

func TestSendFailureBecomesErrorMessage(t *testing.T) {
	c := NewController(senderFunc(func(context.Context, string, string) (string, error) {
		return "", errors.New("HTTP 500: model overloaded")
	}), nil)
	c.Open("r1")

	reply, err := c.Send(context.Background(), "r1", "hi")
	require.NoError(t, err)
	assert.True(t, reply.Failed)
	assert.Equal(t, "Sorry, I encountered an error: HTTP 500: model overloaded", reply.Content)

	msgs, _ := c.Messages("r1")
	require.Len(t, msgs, 3)
	for _, m := range msgs {
		assert.False(t, m.Pending, "no dangling placeholder")
	}
}

// Two rapid sends yield two user and two model messages after the greeting,
// whatever order the replies arrive in.
func TestConcurrentSendsOutOfOrder(t *testing.T) {
	secondDone := make(chan struct{})
	backend := apitest.NewBackend(api.Report{ID: "r1"})
	defer backend.Close()
	backend.Configure(func(b *apitest.Backend) {
		b.ChatFunc = func(_, message string) (string, error) {
			if message == "first" {
				select {
				case <-secondDone:
				case <-time.After(2 * time.Second):
				}
				return "", errors.New("first failed late")
			}
			return "reply to " + message, nil
		}
	})
	client, err := api.New(backend.URL())
	require.NoError(t, err)

	c := NewController(client, nil)
	c.Open("r1")

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, _ = c.Send(context.Background(), "r1", "first")
	}()
	// Let "first" claim its slots before "second".
	require.Eventually(t, func() bool {
		msgs, _ := c.Messages("r1")
		return len(msgs) == 3
	}, time.Second, 5*time.Millisecond)
	go func() {
		defer wg.Done()
		_, _ = c.Send(context.Background(), "r1", "second")
		close(secondDone)
	}()
	wg.Wait()

	msgs, _ := c.Messages("r1")
	require.Len(t, msgs, 5)
	assert.True(t, msgs[0].Greeting)
	users, models := 0, 0
	for _, m := range msgs[1:] {
		assert.False(t, m.Pending)
		switch m.Role {
		case RoleUser:
			users++
		case RoleModel:
			models++
		}
	}
	assert.Equal(t, 2, users)
	assert.Equal(t, 2, models)
	assert.Equal(t, "first", msgs[1].Content)
	assert.True(t, msgs[2].Failed, "first placeholder replaced in place")
	assert.Equal(t, "second", msgs[3].Content)
	assert.Equal(t, "reply to second", msgs[4].Content)
}

func TestDiscardedSessionDropsLateReply(t *testing.T) {
	release := make(chan struct{})
	c := NewController(senderFunc(func(context.Context, string, string) (string, error) {
		<-release
		return "late", nil
	}), nil)
	c.Open("r1")

	done := make(chan Message)
	go func() {
		m, _ := c.Send(context.Background(), "r1", "hi")
		done <- m
	}()
	require.Eventually(t, func() bool {
		msgs, _ := c.Messages("r1")
		return len(msgs) == 3
	}, time.Second, 5*time.Millisecond)

	c.Discard("r1")
	fresh := c.Open("r1")
	close(release)
	<-done

	msgs, err := c.Messages("r1")
	require.NoError(t, err)
	assert.Len(t, msgs, 1, "stale reply not applied to the new session")
	assert.Equal(t, fresh[0].ID, msgs[0].ID)
}

func TestQuickSendAndOnChange(t *testing.T) {
	var got string
	c := NewController(senderFunc(func(_ context.Context, _, message string) (string, error) {
		got = message
		return "ok", nil
	}), nil)
	var changes int32
	c.OnChange(func(string) { atomic.AddInt32(&changes, 1) })
	c.Open("r1")

	_, err := c.QuickSend(context.Background(), "r1", QuickPrompts[0].Text)
	require.NoError(t, err)
	assert.Equal(t, "Summarize the key findings.", got)
	assert.EqualValues(t, 2, atomic.LoadInt32(&changes))
}

func TestSendUnknownSession(t *testing.T) {
	c := NewController(nil, nil)
	_, err := c.Send(context.Background(), "ghost", "hi")
	assert.ErrorIs(t, err, ErrUnknownSession)
}
