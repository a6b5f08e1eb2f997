package player

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/sockheadrps/OBS-Stream-Control-Hub/core/audio"
)

type fakeDeliverer struct {
	mu      sync.Mutex
	primary [][]byte
	direct  map[string][][]byte
	online  bool
}

func newFakeDeliverer() *fakeDeliverer {
	return &fakeDeliverer{direct: make(map[string][][]byte), online: true}
}

func (f *fakeDeliverer) SendPrimary(msg []byte) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.online {
		return false
	}
	f.primary = append(f.primary, msg)
	return true
}

func (f *fakeDeliverer) SendTo(id string, msg []byte) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.online {
		return false
	}
	f.direct[id] = append(f.direct[id], msg)
	return true
}

type fakeMirror struct {
	got []Snapshot
}

func (m *fakeMirror) Publish(_ context.Context, s Snapshot) error {
	m.got = append(m.got, s)
	return nil
}

func periodic(title string) Status {
	s := emptySnapshot()
	s.IsPlaying = PlayingFlag{Known: true, Playing: true}
	s.CurrentAudio = audio.TrackInfo{Title: title, Artist: "x"}
	return Status{Event: StatusEventPeriodic, Snapshot: s}
}

func TestBroadcasterCoalescesPeriodic(t *testing.T) {
	q := NewStatusQueue(16)
	out := newFakeDeliverer()
	mirror := &fakeMirror{}
	m := NewMetrics(nil)
	b := NewBroadcaster(q, out, mirror, m, 0)

	q.Offer(periodic("one"))
	q.Offer(Status{Event: StatusEventInfo, Target: "c2", Snapshot: emptySnapshot()})
	q.Offer(periodic("two"))
	q.Offer(periodic("three"))

	if n := b.Flush(context.Background()); n != 2 {
		t.Fatalf("Flush() = %d, want 2", n)
	}

	if len(out.primary) != 1 {
		t.Fatalf("primary got %d frames, want 1", len(out.primary))
	}
	var msg StatusMessage
	if err := json.Unmarshal(out.primary[0], &msg); err != nil {
		t.Fatalf("decode frame: %v", err)
	}
	if msg.EventType != StatusEventPeriodic || msg.Data.CurrentAudio.Title != "three" {
		t.Errorf("primary frame = %+v, want newest periodic", msg)
	}

	if len(out.direct["c2"]) != 1 {
		t.Errorf("c2 got %d frames, want 1", len(out.direct["c2"]))
	}
	if got := testutil.ToFloat64(m.SnapshotsDropped); got != 2 {
		t.Errorf("dropped = %v, want 2", got)
	}
	if len(mirror.got) != 1 || mirror.got[0].CurrentAudio.Title != "three" {
		t.Errorf("mirror got %+v", mirror.got)
	}
}

func TestBroadcasterNoClients(t *testing.T) {
	q := NewStatusQueue(4)
	out := newFakeDeliverer()
	out.online = false
	m := NewMetrics(nil)
	b := NewBroadcaster(q, out, nil, m, 0)

	q.Offer(periodic("one"))
	if n := b.Flush(context.Background()); n != 0 {
		t.Errorf("Flush() = %d, want 0", n)
	}
	if got := testutil.ToFloat64(m.SnapshotsDropped); got != 1 {
		t.Errorf("dropped = %v, want 1", got)
	}
	if q.Len() != 0 {
		t.Error("queue should be drained")
	}
}

func TestBroadcasterEmptyFlush(t *testing.T) {
	b := NewBroadcaster(NewStatusQueue(1), newFakeDeliverer(), nil, nil, 0)
	if n := b.Flush(context.Background()); n != 0 {
		t.Errorf("Flush() = %d, want 0", n)
	}
}
