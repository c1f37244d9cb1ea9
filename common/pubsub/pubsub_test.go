package pubsub

import (
	"testing"
	"time"

	"github.com/eapache/channels"
	"github.com/stretchr/testify/require"
)

const (
	recvTimeout = 5 * time.Second
	bufferSize  = 5
)

func TestPubSub(t *testing.T) {
	t.Run("BasicInfinity", testBasicInfinity)
	t.Run("BasicOverwriting", testBasicOverwriting)
	t.Run("PubLastOnSubscribe", testLastOnSubscribe)
	t.Run("DoubleClose", testDoubleClose)
}

func recv(t *testing.T, ch <-chan int) int {
	select {
	case v, ok := <-ch:
		require.True(t, ok, "channel must be open")
		return v
	case <-time.After(recvTimeout):
		t.Fatalf("Failed to receive value")
	}
	return 0
}

func testBasicInfinity(t *testing.T) {
	broker := NewBroker(false)

	sub := broker.Subscribe()
	typedCh := make(chan int)
	sub.Unwrap(typedCh)

	broker.Broadcast(23)
	require.Equal(t, 23, recv(t, typedCh), "Single Broadcast()")

	for i := 0; i < 10; i++ {
		broker.Broadcast(i)
	}
	for i := 0; i < 10; i++ {
		require.Equal(t, i, recv(t, typedCh), "Buffered Broadcast()")
	}

	require.NotPanics(t, func() { sub.Close() }, "Close()")
	require.Len(t, broker.subscribers, 0, "Subscriber map, post Close()")
}

func testBasicOverwriting(t *testing.T) {
	broker := NewBroker(false)

	sub := broker.SubscribeBuffered(bufferSize)
	typedCh := make(chan int)
	sub.Unwrap(typedCh)

	broker.Broadcast(23)
	require.Equal(t, 23, recv(t, typedCh), "Single Broadcast()")

	for i := 0; i < bufferSize+10; i++ {
		broker.Broadcast(i)
	}
	time.Sleep(100 * time.Millisecond)

	// The ring channel hands the first element straight to the output,
	// so it survives the overwrite.
	expected := []int{0}
	for i := 10; i < bufferSize+10; i++ {
		expected = append(expected, i)
	}
	for _, i := range expected {
		require.Equal(t, i, recv(t, typedCh), "Overwriting Broadcast()")
	}

	sub.Close()
	require.Len(t, broker.subscribers, 0, "Subscriber map, post Close()")
}

func testLastOnSubscribe(t *testing.T) {
	broker := NewBroker(true)
	broker.Broadcast(23)

	for _, b := range []int64{
		int64(channels.Infinity),
		bufferSize,
	} {
		sub := broker.SubscribeBuffered(b)
		typedCh := make(chan int)
		sub.Unwrap(typedCh)

		require.Equal(t, 23, recv(t, typedCh), "Last Broadcast() on Subscribe()")
		sub.Close()
	}
}

func testDoubleClose(t *testing.T) {
	broker := NewBroker(false)
	sub := broker.Subscribe()
	require.NotPanics(t, func() {
		sub.Close()
		sub.Close()
	})
}
