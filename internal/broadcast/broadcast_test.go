package broadcast

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mohsinsiddi/w3connect/internal/connect"
)

func recv[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v, ok := <-ch:
		require.True(t, ok, "channel closed")
		return v
	case <-time.After(time.Second):
		t.Fatal("no value received")
		var zero T
		return zero
	}
}

// ---------------------------------------------------------------------------
// Value
// ---------------------------------------------------------------------------

func TestLateSubscriberSeesCurrentValue(t *testing.T) {
	v := NewValue(1)
	v.Set(2)

	ch, cancel := v.Subscribe()
	defer cancel()
	assert.Equal(t, 2, recv(t, ch))
	assert.Equal(t, 2, v.Get())
}

func TestSlowSubscriberGetsLatest(t *testing.T) {
	v := NewValue("a")
	ch, cancel := v.Subscribe()
	defer cancel()

	v.Set("b")
	v.Set("c")
	v.Set("d")
	assert.Equal(t, "d", recv(t, ch))

	select {
	case x := <-ch:
		t.Fatalf("unexpected extra value %q", x)
	default:
	}
}

func TestSetNeverBlocks(t *testing.T) {
	v := NewValue(0)
	_, cancel := v.Subscribe()
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			v.Set(i)
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Set blocked on an unread subscriber")
	}
	assert.Equal(t, 999, v.Get())
}

func TestCancelClosesChannel(t *testing.T) {
	v := NewValue(0)
	ch, cancel := v.Subscribe()
	<-ch
	cancel()
	cancel()

	_, ok := <-ch
	assert.False(t, ok)
	v.Set(1)
}

func TestCloseEndsSubscriptions(t *testing.T) {
	v := NewValue(0)
	a, _ := v.Subscribe()
	b, _ := v.Subscribe()
	v.Close()
	v.Close()

	for _, ch := range []<-chan int{a, b} {
		assert.Equal(t, 0, <-ch)
		_, ok := <-ch
		assert.False(t, ok)
	}

	v.Set(5)
	assert.Equal(t, 0, v.Get(), "Set after Close is ignored")

	late, _ := v.Subscribe()
	assert.Equal(t, 0, <-late)
	_, ok := <-late
	assert.False(t, ok)
}

func TestConcurrentSubscribers(t *testing.T) {
	v := NewValue(0)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		ch, cancel := v.Subscribe()
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer cancel()
			for x := range ch {
				if x == 100 {
					return
				}
			}
		}()
	}
	for i := 1; i <= 100; i++ {
		v.Set(i)
	}
	wg.Wait()
}

// ---------------------------------------------------------------------------
// Broadcaster
// ---------------------------------------------------------------------------

func TestBroadcasterStartsIdle(t *testing.T) {
	b := New()
	assert.Equal(t, connect.PhaseIdle, b.State().Phase)
	assert.Empty(t, b.DebugLink())
}

func TestBroadcasterRepublishesStates(t *testing.T) {
	b := New()
	states, cancel := b.Subscribe()
	defer cancel()
	links, cancelLinks := b.SubscribeDebugLink()
	defer cancelLinks()
	assert.Equal(t, connect.PhaseIdle, recv(t, states).Phase)
	assert.Empty(t, recv(t, links))

	var d connect.Delegate = b
	d.ConnectionStateChanged(connect.State{Phase: connect.PhaseListening, DeepLink: "wc:abc@2"})
	assert.Equal(t, connect.PhaseListening, recv(t, states).Phase)
	assert.Equal(t, "wc:abc@2", recv(t, links))
	assert.Equal(t, "wc:abc@2", b.DebugLink())

	peer := &connect.Peer{Name: "MetaMask Wallet"}
	d.ConnectionStateChanged(connect.State{Phase: connect.PhaseConnectedToWallet, Peer: peer})
	s := recv(t, states)
	assert.Equal(t, connect.PhaseConnectedToWallet, s.Phase)
	assert.Equal(t, peer, s.Peer)
	assert.Empty(t, recv(t, links), "link cleared once consumed")
}

func TestBroadcasterDebugLinkDeduplicates(t *testing.T) {
	b := New()
	b.SetDebugLink("wc:x@2")
	links, cancel := b.SubscribeDebugLink()
	defer cancel()
	assert.Equal(t, "wc:x@2", recv(t, links))

	b.ConnectionStateChanged(connect.State{Phase: connect.PhaseConnectedToServer, DeepLink: "wc:x@2"})
	select {
	case l := <-links:
		t.Fatalf("unexpected republish of %q", l)
	default:
	}
}

func TestBroadcasterReset(t *testing.T) {
	b := New()
	b.ConnectionStateChanged(connect.State{Phase: connect.PhaseConnectedToServer, DeepLink: "wc:y@2"})
	b.Reset()
	assert.Equal(t, connect.PhaseIdle, b.State().Phase)
	assert.Empty(t, b.DebugLink())

	states, _ := b.Subscribe()
	b.Close()
	assert.Equal(t, connect.PhaseIdle, (<-states).Phase)
	_, ok := <-states
	assert.False(t, ok)
}
