package player

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestCommandQueueFIFO(t *testing.T) {
	q := NewCommandQueue()
	q.Push(Request{ClientID: "a", Command: Play{}})
	q.Push(Request{ClientID: "b", Command: Pause{}})
	if depth := q.Push(Request{ClientID: "c", Command: Skip{}}); depth != 3 {
		t.Fatalf("Push depth = %d, want 3", depth)
	}

	want := []string{"play", "pause", "skip"}
	for _, kind := range want {
		r, ok, err := q.Receive(context.Background(), time.Millisecond)
		if err != nil || !ok {
			t.Fatalf("Receive() = %v, %v", ok, err)
		}
		if r.Command.Kind() != kind {
			t.Errorf("got %s, want %s", r.Command.Kind(), kind)
		}
	}
	if q.Len() != 0 {
		t.Errorf("Len() = %d, want 0", q.Len())
	}
}

func TestCommandQueueReceiveTimeout(t *testing.T) {
	q := NewCommandQueue()
	start := time.Now()
	_, ok, err := q.Receive(context.Background(), 20*time.Millisecond)
	if err != nil {
		t.Fatalf("Receive() error = %v", err)
	}
	if ok {
		t.Fatal("Receive() on empty queue should time out")
	}
	if time.Since(start) < 20*time.Millisecond {
		t.Error("Receive() returned before the timeout")
	}
}

func TestCommandQueueReceiveWakesOnPush(t *testing.T) {
	q := NewCommandQueue()
	go func() {
		time.Sleep(10 * time.Millisecond)
		q.Push(Request{Command: InfoRequest{}})
	}()

	r, ok, err := q.Receive(context.Background(), 5*time.Second)
	if err != nil || !ok {
		t.Fatalf("Receive() = %v, %v", ok, err)
	}
	if _, isInfo := r.Command.(InfoRequest); !isInfo {
		t.Errorf("got %T, want InfoRequest", r.Command)
	}
}

func TestCommandQueueReceiveCanceled(t *testing.T) {
	q := NewCommandQueue()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, ok, err := q.Receive(ctx, time.Second)
	if ok || !errors.Is(err, context.Canceled) {
		t.Fatalf("Receive() = %v, %v; want canceled", ok, err)
	}
}

func TestStatusQueueDropsOldest(t *testing.T) {
	q := NewStatusQueue(2)

	if q.Offer(Status{Event: "1"}) || q.Offer(Status{Event: "2"}) {
		t.Fatal("Offer() dropped before the queue was full")
	}
	if !q.Offer(Status{Event: "3"}) {
		t.Fatal("Offer() on full queue should drop")
	}
	if q.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", q.Len())
	}

	for _, want := range []string{"2", "3"} {
		s, ok := q.TryReceive()
		if !ok || s.Event != want {
			t.Errorf("TryReceive() = %q, %v; want %q", s.Event, ok, want)
		}
	}
	if _, ok := q.TryReceive(); ok {
		t.Error("TryReceive() on empty queue should return false")
	}
}

func TestMutates(t *testing.T) {
	tests := []struct {
		cmd  Command
		want bool
	}{
		{Play{}, true},
		{Pause{}, true},
		{Skip{}, true},
		{ToggleAutoplay{}, true},
		{SetVolume{Value: 0.5}, true},
		{SetSpeed{Value: 1.5}, true},
		{AddEffect{Effect: "fade_in"}, true},
		{SetReloadOnFinish{Enabled: false}, true},
		{SetPlayerHidden{Hidden: true}, true},
		{InfoRequest{}, false},
	}
	for _, tt := range tests {
		if got := Mutates(tt.cmd); got != tt.want {
			t.Errorf("Mutates(%s) = %v, want %v", tt.cmd.Kind(), got, tt.want)
		}
	}
}
