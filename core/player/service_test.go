package player

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/sockheadrps/OBS-Stream-Control-Hub/core/audio"
	"github.com/sockheadrps/OBS-Stream-Control-Hub/core/hub"
)

func deckFactory() (audio.Channel, error) {
	d := audio.NewDeck(nil)
	for _, name := range []string{"a.mp3", "b.mp3", "c.mp3"} {
		d.Push(audio.TrackFromName(name))
	}
	return d, nil
}

func waitCount(t *testing.T, h *hub.Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for h.Count() != n {
		if time.Now().After(deadline) {
			t.Fatalf("hub count = %d, want %d", h.Count(), n)
		}
		time.Sleep(time.Millisecond)
	}
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

// recv waits for the first frame on ch that satisfies match.
func recv(t *testing.T, ch <-chan []byte, match func([]byte) bool) []byte {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				t.Fatal("client channel closed")
			}
			if match(msg) {
				return msg
			}
		case <-timeout:
			t.Fatal("timed out waiting for frame")
		}
	}
}

func isNotification(msg []byte) bool {
	var n hub.Notification
	return json.Unmarshal(msg, &n) == nil && n.Event == hub.EventAudioStateUpdated
}

func TestServiceNoEchoFanOut(t *testing.T) {
	svc := NewService(deckFactory, ServiceOptions{Options: Options{TickInterval: 10 * time.Millisecond}})
	svc.Start(context.Background())
	defer svc.Shutdown(context.Background())

	a := svc.Connect(nil)
	b := svc.Connect(nil)
	c := svc.Connect(nil)
	waitCount(t, svc.Hub(), 3)

	svc.Submit(a.ID, SetVolume{Value: 0.5})

	for _, other := range []*hub.Client{b, c} {
		msg := recv(t, other.Send, isNotification)
		var n hub.Notification
		json.Unmarshal(msg, &n)
		if n.Data.EventType != EventAudioControl {
			t.Errorf("event_type = %s, want audio_control", n.Data.EventType)
		}
	}

	// a 只会收到状态帧
	svc.Submit(b.ID, InfoRequest{})
	recv(t, b.Send, func(msg []byte) bool {
		var m StatusMessage
		return json.Unmarshal(msg, &m) == nil && m.EventType == StatusEventInfo
	})
drain:
	for {
		select {
		case msg := <-a.Send:
			if isNotification(msg) {
				t.Fatalf("originator received its own notification: %s", msg)
			}
		default:
			break drain
		}
	}
}

func TestServiceInfoRequestNotBroadcast(t *testing.T) {
	svc := NewService(deckFactory, ServiceOptions{})
	svc.Start(context.Background())
	defer svc.Shutdown(context.Background())

	a := svc.Connect(nil)
	b := svc.Connect(nil)
	waitCount(t, svc.Hub(), 2)

	svc.Submit(a.ID, InfoRequest{})
	recv(t, a.Send, func(msg []byte) bool {
		var m StatusMessage
		return json.Unmarshal(msg, &m) == nil && m.EventType == StatusEventInfo
	})

	select {
	case msg := <-b.Send:
		if isNotification(msg) {
			t.Errorf("info request should not notify others: %s", msg)
		}
	case <-time.After(50 * time.Millisecond):
	}
}

func TestServiceShutdownClosesClients(t *testing.T) {
	svc := NewService(deckFactory, ServiceOptions{})
	svc.Start(context.Background())

	a := svc.Connect(nil)
	waitCount(t, svc.Hub(), 1)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := svc.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}

	for range a.Send {
	}
	if svc.Hub().Count() != 0 {
		t.Error("hub should be empty after shutdown")
	}
}

func TestServiceDisconnectPromotesPrimary(t *testing.T) {
	svc := NewService(deckFactory, ServiceOptions{Options: Options{TickInterval: 10 * time.Millisecond}})
	svc.Start(context.Background())
	defer svc.Shutdown(context.Background())

	a := svc.Connect(nil)
	b := svc.Connect(nil)
	waitCount(t, svc.Hub(), 2)

	svc.Disconnect(a)
	waitCount(t, svc.Hub(), 1)

	svc.Submit(b.ID, Play{})
	msg := recv(t, b.Send, func(msg []byte) bool {
		var m StatusMessage
		return json.Unmarshal(msg, &m) == nil && m.EventType == StatusEventPeriodic && m.Data.IsPlaying.Playing
	})
	var m StatusMessage
	json.Unmarshal(msg, &m)
	if m.Data.CurrentAudio.Title != "a" {
		t.Errorf("current = %q, want a", m.Data.CurrentAudio.Title)
	}
}

func TestServiceReconnectAfterLastClientLeft(t *testing.T) {
	svc := NewService(deckFactory, ServiceOptions{Options: Options{TickInterval: 10 * time.Millisecond}})
	svc.Start(context.Background())
	defer svc.Shutdown(context.Background())

	if svc.BroadcasterRunning() {
		t.Fatal("broadcaster should not run before the first client")
	}

	a := svc.Connect(nil)
	waitCount(t, svc.Hub(), 1)
	eventually(t, "broadcaster start", svc.BroadcasterRunning)

	svc.Disconnect(a)
	waitCount(t, svc.Hub(), 0)
	eventually(t, "broadcaster stop", func() bool { return !svc.BroadcasterRunning() })

	b := svc.Connect(nil)
	waitCount(t, svc.Hub(), 1)
	eventually(t, "broadcaster restart", svc.BroadcasterRunning)

	svc.Submit(b.ID, InfoRequest{})
	msg := recv(t, b.Send, func(msg []byte) bool {
		var m StatusMessage
		return json.Unmarshal(msg, &m) == nil && m.EventType == StatusEventInfo
	})
	var m StatusMessage
	json.Unmarshal(msg, &m)
	if len(m.Data.Queue) != 3 {
		t.Errorf("queue = %v, want 3 tracks", m.Data.Queue)
	}
}

func TestServiceSubmitDropsNotificationsWhenHubIsBusy(t *testing.T) {
	// hub 未运行，通知队列不会被消费
	svc := NewService(deckFactory, ServiceOptions{})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 300; i++ {
			svc.Submit("client-1", SetVolume{Value: 0.5})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Submit blocked on a full notification queue")
	}
	if got := testutil.ToFloat64(svc.Metrics().NotificationsDropped); got != 44 {
		t.Errorf("dropped = %v, want 44", got)
	}
	if got := svc.commands.Len(); got != 300 {
		t.Errorf("queued commands = %d, want 300", got)
	}
}
