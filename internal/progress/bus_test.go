package progress

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iasik/orchestrator/internal/models"
)

func TestSubscribeReceivesOnlyItsProject(t *testing.T) {
	b := NewBus(WithBufferSize(8))
	defer b.Close()
	ctx := context.Background()

	var mu sync.Mutex
	var received []Event
	unsub := b.Subscribe("proj-1", func(e Event) {
		mu.Lock()
		received = append(received, e)
		mu.Unlock()
	})
	defer unsub()

	require.NoError(t, b.Publish(ctx, NewProgressUpdate(ProgressUpdate{ProjectID: "proj-1", Phase: models.PhaseChunking, ProgressPercent: 10})))
	require.NoError(t, b.Publish(ctx, NewProgressUpdate(ProgressUpdate{ProjectID: "proj-2", Phase: models.PhaseChunking, ProgressPercent: 10})))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 1
	}, time.Second, time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "proj-1", received[0].ProjectID)
}

func TestSubscribeAllReceivesEveryProject(t *testing.T) {
	b := NewBus(WithBufferSize(8))
	defer b.Close()
	ctx := context.Background()

	var mu sync.Mutex
	count := 0
	unsub := b.Subscribe("", func(e Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})
	defer unsub()

	require.NoError(t, b.Publish(ctx, NewJobCompletion(JobCompletion{ProjectID: "a", IsSuccess: true})))
	require.NoError(t, b.Publish(ctx, NewJobCompletion(JobCompletion{ProjectID: "b", IsSuccess: true})))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return count == 2
	}, time.Second, time.Millisecond)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := NewBus(WithBufferSize(8))
	defer b.Close()
	ctx := context.Background()

	var mu sync.Mutex
	count := 0
	unsub := b.Subscribe("proj-1", func(e Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	require.NoError(t, b.Publish(ctx, NewJobCompletion(JobCompletion{ProjectID: "proj-1", IsSuccess: true})))
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return count == 1
	}, time.Second, time.Millisecond)

	unsub()
	require.NoError(t, b.Publish(ctx, NewJobCompletion(JobCompletion{ProjectID: "proj-1", IsSuccess: true})))
	time.Sleep(20 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, count)
}

func TestCurrentPhaseTracksLastProgressUpdate(t *testing.T) {
	b := NewBus()
	defer b.Close()
	ctx := context.Background()

	_, ok := b.CurrentPhase("proj-1")
	assert.False(t, ok)

	require.NoError(t, b.Publish(ctx, NewProgressUpdate(ProgressUpdate{ProjectID: "proj-1", Phase: models.PhaseEmbedding})))

	phase, ok := b.CurrentPhase("proj-1")
	require.True(t, ok)
	assert.Equal(t, models.PhaseEmbedding, phase)
}

func TestPublishAfterCloseReturnsErrBusClosed(t *testing.T) {
	b := NewBus()
	require.NoError(t, b.Close())

	err := b.Publish(context.Background(), NewJobCompletion(JobCompletion{ProjectID: "p", IsSuccess: true}))
	assert.ErrorIs(t, err, ErrBusClosed)
}

func TestFullSubscriberBufferDropsRatherThanBlocks(t *testing.T) {
	b := NewBus(WithBufferSize(1))
	defer b.Close()
	ctx := context.Background()

	block := make(chan struct{})
	unsub := b.Subscribe("proj-1", func(e Event) {
		<-block
	})
	defer func() {
		close(block)
		unsub()
	}()

	for i := 0; i < 5; i++ {
		err := b.Publish(ctx, NewProgressUpdate(ProgressUpdate{ProjectID: "proj-1", ProgressPercent: float64(i)}))
		require.NoError(t, err)
	}

	assert.Greater(t, b.DroppedCount(), int64(0))
}
