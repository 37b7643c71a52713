package snapshot

import (
	"sync"
	"testing"
	"time"

	"agentwatch/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snap(total int) model.Snapshot {
	return model.Snapshot{Stats: model.Stats{Total: total}, GeneratedAt: time.Now()}
}

func TestStore_CurrentBeforePublish(t *testing.T) {
	s := NewStore()
	_, ok := s.Current()
	assert.False(t, ok)

	s.Publish(snap(3))
	cur, ok := s.Current()
	require.True(t, ok)
	assert.Equal(t, 3, cur.Stats.Total)
}

func TestStore_SubscribeReceivesLatest(t *testing.T) {
	s := NewStore()
	s.Publish(snap(1))

	ch, cancel := s.Subscribe()
	defer cancel()

	got := <-ch
	assert.Equal(t, 1, got.Stats.Total, "new subscribers get the current snapshot")

	s.Publish(snap(2))
	got = <-ch
	assert.Equal(t, 2, got.Stats.Total)
}

func TestStore_SlowSubscriberNewestWins(t *testing.T) {
	s := NewStore()
	ch, cancel := s.Subscribe()
	defer cancel()

	for i := 1; i <= 5; i++ {
		s.Publish(snap(i))
	}

	got := <-ch
	assert.Equal(t, 5, got.Stats.Total)
	select {
	case extra := <-ch:
		t.Fatalf("unexpected extra snapshot %d", extra.Stats.Total)
	default:
	}
}

func TestStore_CancelClosesChannel(t *testing.T) {
	s := NewStore()
	ch, cancel := s.Subscribe()
	require.Equal(t, 1, s.Subscribers())

	cancel()
	cancel()
	assert.Equal(t, 0, s.Subscribers())

	_, open := <-ch
	assert.False(t, open)

	assert.NotPanics(t, func() { s.Publish(snap(1)) })
}

func TestStore_ConcurrentPublishAndRead(t *testing.T) {
	s := NewStore()
	ch, cancel := s.Subscribe()
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			s.Publish(snap(i))
		}(i)
		go func() {
			defer wg.Done()
			s.Current()
		}()
	}
	wg.Wait()

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("subscriber never received a snapshot")
	}
}
