package bus

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishDeliversInSubscriptionOrder(t *testing.T) {
	b := New()
	var order []int

	b.Subscribe(PlayerJoined, func(ev Event) { order = append(order, 1) })
	b.Subscribe(PlayerJoined, func(ev Event) { order = append(order, 2) })
	b.Subscribe(PlayerJoined, func(ev Event) { order = append(order, 3) })

	b.Publish(PlayerJoinedEvent{RoomID: 1, UserID: 2})

	assert.Equal(t, []int{1, 2, 3}, order)
}

// TestPublishSwallowsPanics verifies E2: one failing subscriber must
// not prevent others from running.
func TestPublishSwallowsPanics(t *testing.T) {
	b := New()
	secondRan := false

	b.Subscribe(PlayerJoined, func(ev Event) { panic("boom") })
	b.Subscribe(PlayerJoined, func(ev Event) { secondRan = true })

	require.NotPanics(t, func() {
		b.Publish(PlayerJoinedEvent{RoomID: 1, UserID: 1})
	})
	assert.True(t, secondRan)
}

func TestTokenCancelStopsDelivery(t *testing.T) {
	b := New()
	calls := 0

	tok := b.Subscribe(GameStarted, func(ev Event) { calls++ })
	b.Publish(GameStartedEvent{RoomID: 1})
	require.Equal(t, 1, calls)

	tok.Cancel()
	b.Publish(GameStartedEvent{RoomID: 1})
	assert.Equal(t, 1, calls, "cancelled subscription should not fire again")
}

func TestCancelPrunesSubscriberList(t *testing.T) {
	b := New()
	tok := b.Subscribe(RoomListUpdated, func(ev Event) {})
	assert.Equal(t, 1, b.SubscriberCount(RoomListUpdated))

	tok.Cancel()
	b.Publish(RoomListUpdatedEvent{}) // triggers the lazy prune
	assert.Equal(t, 0, b.SubscriberCount(RoomListUpdated))
}

// TestConcurrentPublishSubscribe exercises R4's concurrency
// requirement: publish and subscribe must be safe to call from many
// goroutines at once.
func TestConcurrentPublishSubscribe(t *testing.T) {
	b := New()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			tok := b.Subscribe(ChatMessageRecv, func(ev Event) {})
			tok.Cancel()
		}()
		go func() {
			defer wg.Done()
			b.Publish(ChatMessageRecvEvent{RoomID: 1, UserID: 2, Message: "hi"})
		}()
	}
	wg.Wait()
}

func TestEventTypeAssertion(t *testing.T) {
	b := New()
	var got PiecePlacedEvent
	b.Subscribe(PiecePlaced, func(ev Event) {
		got = ev.(PiecePlacedEvent)
	})
	b.Publish(PiecePlacedEvent{RoomID: 9, UserID: 4, X: 7, Y: 7})
	assert.Equal(t, uint64(9), got.RoomID)
	assert.Equal(t, uint32(7), got.X)
}
