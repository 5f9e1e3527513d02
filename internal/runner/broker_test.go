package runner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ss3211545/stock-web-app/internal/contracts"
)

func TestBroker_FanOut(t *testing.T) {
	b := NewBroker()

	ch1, cancel1 := b.Subscribe()
	ch2, cancel2 := b.Subscribe()
	defer cancel2()

	b.Publish(contracts.ProgressEvent{RunID: "r1", Stage: 1})

	ev := <-ch1
	assert.Equal(t, "r1", ev.RunID)
	ev = <-ch2
	assert.Equal(t, 1, ev.Stage)

	// After cancel the channel closes and stops receiving.
	cancel1()
	_, open := <-ch1
	assert.False(t, open)

	b.Publish(contracts.ProgressEvent{RunID: "r2"})
	ev = <-ch2
	assert.Equal(t, "r2", ev.RunID)
}

func TestBroker_SlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	b := NewBroker()
	ch, cancel := b.Subscribe()
	defer cancel()

	// Overfill the buffer; Publish must never block.
	for i := 0; i < 100; i++ {
		b.Publish(contracts.ProgressEvent{Stage: i})
	}

	// The buffered prefix arrives in order, the rest is dropped.
	require.Len(t, ch, 32)
	first := <-ch
	assert.Equal(t, 0, first.Stage)
}

func TestBroker_CancelTwiceIsSafe(t *testing.T) {
	b := NewBroker()
	_, cancel := b.Subscribe()
	cancel()
	assert.NotPanics(t, cancel)
}
