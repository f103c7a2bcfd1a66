package eventbus

import (
	"fmt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"os"
	"testing"
	"warden/logger"
)

func TestMain(m *testing.M) {
	logger.Replace(zap.NewNop())
	os.Exit(m.Run())
}

func TestEvictingList_Values(t *testing.T) {
	l := NewEvictingList[int](5)
	l.Add(1)
	l.Add(2)
	l.Add(3)
	assert.Equal(t, []int{1, 2, 3}, l.Values())

	l.Add(4)
	l.Add(5)
	l.Add(6)
	l.Add(7)
	assert.Equal(t, []int{3, 4, 5, 6, 7}, l.Values())

	v, ok := l.PopFront()
	assert.True(t, ok)
	assert.Equal(t, 3, v)
	assert.Equal(t, 4, l.Len())
}

func TestBus_BroadcastToIdentifierAndAll(t *testing.T) {
	bus := New()
	job := bus.Register("job-1")
	all := bus.Register(All)
	other := bus.Register("job-2")

	bus.BroadcastWithData("job-1", Success, "completed", map[string]string{"status": "completed"})

	ev := <-job
	assert.Equal(t, Success, ev.Type)
	assert.Equal(t, "job-1", ev.Identifier)
	assert.JSONEq(t, `{"status":"completed"}`, string(ev.Data))
	assert.False(t, ev.Time.IsZero())

	ev = <-all
	assert.Equal(t, "completed", ev.Message)
	assert.Len(t, other, 0)
}

func TestBus_SlowSubscriberDoesNotBlock(t *testing.T) {
	bus := New()
	ch := bus.Register("job-1")
	for i := 0; i < subscriberBuffer+10; i++ {
		bus.Broadcast("job-1", Info, "tick")
	}
	assert.Len(t, ch, subscriberBuffer)
}

func TestBus_UnregisterAndRecent(t *testing.T) {
	bus := New()
	ch := bus.Register("job-1")
	bus.Unregister("job-1", ch)
	_, open := <-ch
	assert.False(t, open)

	bus.Broadcast("job-1", Info, "a")
	bus.Broadcast("job-2", Info, "b")
	recent := bus.Recent("job-1")
	require.Len(t, recent, 1)
	assert.Equal(t, "a", recent[0].Message)
	assert.Len(t, bus.Recent(All), 2)
}

func TestBus_SubscribeDuringPublishNeverDuplicates(t *testing.T) {
	bus := New()
	const total = 60
	started := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < total; i++ {
			if i == total/2 {
				close(started)
			}
			bus.Broadcast("job-1", Info, fmt.Sprintf("event %d", i))
		}
	}()

	<-started
	recent, ch := bus.Subscribe("job-1")
	<-done
	bus.Unregister("job-1", ch)

	seen := make(map[string]int)
	for _, ev := range recent {
		seen[ev.Message]++
	}
	for ev := range ch {
		seen[ev.Message]++
	}
	assert.Len(t, seen, total)
	for msg, n := range seen {
		assert.Equal(t, 1, n, msg)
	}
}
