package audio

import (
	"math"
	"testing"
	"time"
)

type fakeClock struct{ now time.Time }

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestDeck(clock *fakeClock, durations ...time.Duration) *Deck {
	d := NewDeck(clock.Now)
	for i, dur := range durations {
		d.Push(&Track{Path: string(rune('a'+i)) + ".mp3", Title: string(rune('a' + i)), Duration: dur})
	}
	return d
}

func TestDeckCurrentIsHeadOfQueue(t *testing.T) {
	d := newTestDeck(newFakeClock(), 0, 0, 0)

	cur := d.Current()
	if cur == nil {
		t.Fatal("Current() = nil")
	}
	if cur.Track().Title != "a" {
		t.Errorf("current = %q, want a", cur.Track().Title)
	}
	if got := len(d.Queue()); got != 3 {
		t.Errorf("len(Queue()) = %d, want 3", got)
	}
	if cur.IsPlaying() {
		t.Error("new deck should not be playing")
	}
}

func TestDeckEmptyCurrentIsNil(t *testing.T) {
	d := NewDeck(nil)
	if d.Current() != nil {
		t.Error("Current() on empty deck should be nil")
	}
}

func TestDeckStopAdvances(t *testing.T) {
	d := newTestDeck(newFakeClock(), 0, 0)

	d.Current().SetVolume(0.4)
	d.Current().Play()
	d.Current().Stop()

	cur := d.Current()
	if cur == nil || cur.Track().Title != "b" {
		t.Fatalf("after Stop current = %v, want b", cur)
	}
	if cur.IsPlaying() {
		t.Error("next track should wait without auto-consume")
	}
	if cur.Volume() != 0.4 {
		t.Errorf("volume = %v, want carried over 0.4", cur.Volume())
	}

	cur.Stop()
	if d.Current() != nil || len(d.Queue()) != 0 {
		t.Error("deck should be empty after stopping the last track")
	}
}

func TestDeckAutoConsumeFinishesOnClock(t *testing.T) {
	clock := newFakeClock()
	d := newTestDeck(clock, 10*time.Second, 10*time.Second, 10*time.Second)
	d.SetAutoConsume(true)
	d.Current().Play()

	clock.Advance(25 * time.Second)

	cur := d.Current()
	if cur == nil || cur.Track().Title != "c" {
		t.Fatalf("current = %v, want c", cur)
	}
	if !cur.IsPlaying() {
		t.Error("c should be playing under auto-consume")
	}
	if pos := cur.PlaybackData().Position; math.Abs(pos-5) > 1e-6 {
		t.Errorf("position = %v, want 5", pos)
	}

	clock.Advance(6 * time.Second)
	if d.Current() != nil {
		t.Error("queue should be exhausted")
	}
}

func TestDeckAutoConsumeEndsMP4(t *testing.T) {
	dir := t.TempDir()
	writeMP4(t, dir, "a.mp4", 3*time.Second)
	writeWAV(t, dir, "b.wav", 2*time.Second)

	clock := newFakeClock()
	loader := &Loader{Dir: dir, Clock: clock.Now, Read: ReadTrackFile}
	ch, err := loader.NewChannel()
	if err != nil {
		t.Fatalf("NewChannel() error = %v", err)
	}
	ch.SetAutoConsume(true)
	ch.Current().Play()

	clock.Advance(4 * time.Second)
	cur := ch.Current()
	if cur == nil || cur.Track().Title != "b" {
		t.Fatalf("current = %v, want b after the mp4 ends", cur)
	}

	clock.Advance(3 * time.Second)
	if q := ch.Queue(); len(q) != 0 {
		t.Errorf("queue = %d tracks, want empty", len(q))
	}
}

func TestDeckWithoutAutoConsumeStopsAfterTrack(t *testing.T) {
	clock := newFakeClock()
	d := newTestDeck(clock, 10*time.Second, 10*time.Second)
	d.Current().Play()

	clock.Advance(11 * time.Second)

	cur := d.Current()
	if cur == nil || cur.Track().Title != "b" {
		t.Fatalf("current = %v, want b", cur)
	}
	if cur.IsPlaying() {
		t.Error("b should not start without auto-consume")
	}
}

func TestDeckPauseKeepsPosition(t *testing.T) {
	clock := newFakeClock()
	d := newTestDeck(clock, time.Minute)
	cur := d.Current()

	cur.Play()
	clock.Advance(3 * time.Second)
	cur.Pause()
	clock.Advance(time.Hour)

	if pos := cur.PlaybackData().Position; pos != 3 {
		t.Errorf("position = %v, want 3", pos)
	}
	if d.Current() != cur {
		t.Error("paused track must not finish")
	}
}

func TestDeckSpeedScalesPosition(t *testing.T) {
	clock := newFakeClock()
	d := newTestDeck(clock, time.Minute)
	cur := d.Current()

	cur.Play()
	clock.Advance(2 * time.Second)
	cur.SetSpeed(2)
	clock.Advance(2 * time.Second)
	cur.SetSpeed(-1) // ignored

	if pos := cur.PlaybackData().Position; pos != 6 {
		t.Errorf("position = %v, want 6", pos)
	}
	if cur.Speed() != 2 {
		t.Errorf("speed = %v, want 2", cur.Speed())
	}
}

func TestDeckVolumeClamped(t *testing.T) {
	d := newTestDeck(newFakeClock(), 0)
	cur := d.Current()

	cur.SetVolume(3)
	if cur.Volume() != 1 {
		t.Errorf("volume = %v, want 1", cur.Volume())
	}
	cur.SetVolume(-1)
	if cur.Volume() != 0 {
		t.Errorf("volume = %v, want 0", cur.Volume())
	}
}

func TestDeckEffectsChainIsCopied(t *testing.T) {
	d := NewDeck(nil)
	chain := []Effect{{Kind: FadeIn, Duration: time.Second}}
	d.SetEffectsChain(chain)
	chain[0].Kind = FadeOut

	if got := d.Effects()[0].Kind; got != FadeIn {
		t.Errorf("effect = %v, want FadeIn", got)
	}
}
