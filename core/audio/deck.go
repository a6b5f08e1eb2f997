package audio

import (
	"time"

	"github.com/sockheadrps/OBS-Stream-Control-Hub/logger"
)

// Clock 可注入的时钟，测试时使用假时钟
type Clock func() time.Time

// Deck 不输出声音的 Channel 实现 (AUDIO_OUTPUT=sim)
//
// Playback is simulated against the clock: the media position advances while a
// track plays, scaled by its speed. A track with a known duration finishes once
// its position reaches the end; the deck advances lazily whenever it is queried,
// so it needs no goroutine of its own. The effect chain is recorded but not
// rendered.
type Deck struct {
	clock       Clock
	queue       []*playback
	autoConsume bool
	effects     []Effect
}

// NewDeck 创建空的 Deck
func NewDeck(clock Clock) *Deck {
	if clock == nil {
		clock = time.Now
	}
	return &Deck{clock: clock}
}

// Push appends a track to the end of the queue.
func (d *Deck) Push(t *Track) {
	d.queue = append(d.queue, &playback{deck: d, track: t, volume: 1, speed: 1})
}

// Current returns the head of the queue.
func (d *Deck) Current() Sink {
	d.sync()
	if len(d.queue) == 0 {
		return nil
	}
	return d.queue[0]
}

// Queue returns the tracks still queued, current track first.
func (d *Deck) Queue() []*Track {
	d.sync()
	tracks := make([]*Track, 0, len(d.queue))
	for _, p := range d.queue {
		tracks = append(tracks, p.track)
	}
	return tracks
}

func (d *Deck) AutoConsume() bool { return d.autoConsume }

func (d *Deck) SetAutoConsume(on bool) { d.autoConsume = on }

// SetEffectsChain replaces the effect chain with a copy of chain.
func (d *Deck) SetEffectsChain(chain []Effect) {
	d.effects = append([]Effect(nil), chain...)
}

func (d *Deck) Effects() []Effect {
	return append([]Effect(nil), d.effects...)
}

// sync finishes every head track whose media position has reached its end.
func (d *Deck) sync() {
	now := d.clock()
	for len(d.queue) > 0 {
		head := d.queue[0]
		dur := head.track.Duration
		if !head.playing || dur <= 0 {
			return
		}
		pos := head.positionAt(now)
		if pos < dur {
			return
		}
		// 计算曲目实际结束的时刻，下一首从那里开始
		overshoot := time.Duration(float64(pos-dur) / head.speed)
		d.finishHead(now.Add(-overshoot))
	}
}

// finishHead drops the current track and prepares the next one.
func (d *Deck) finishHead(at time.Time) {
	prev := d.queue[0]
	prev.playing = false
	d.queue[0] = nil
	d.queue = d.queue[1:]

	logger.Debug("track finished", logger.String("path", prev.track.Path))

	if len(d.queue) == 0 {
		return
	}
	next := d.queue[0]
	next.volume = prev.volume
	next.speed = prev.speed
	if d.autoConsume {
		next.resume(at)
	}
}

// playback 队列中的一项
type playback struct {
	deck    *Deck
	track   *Track
	playing bool
	resumed time.Time     // 最近一次开始播放的时刻
	elapsed time.Duration // resumed 之前累计的媒体时间
	volume  float64
	speed   float64
}

func (p *playback) Track() *Track { return p.track }

func (p *playback) IsPlaying() bool { return p.playing }

func (p *playback) Play() {
	if p.playing {
		return
	}
	p.resume(p.deck.clock())
}

func (p *playback) resume(at time.Time) {
	p.playing = true
	p.resumed = at
}

func (p *playback) Pause() {
	if !p.playing {
		return
	}
	p.elapsed = p.positionAt(p.deck.clock())
	p.playing = false
}

// Stop removes the track from the deck, which advances the queue.
func (p *playback) Stop() {
	d := p.deck
	if len(d.queue) > 0 && d.queue[0] == p {
		d.finishHead(d.clock())
		return
	}
	for i, q := range d.queue {
		if q == p {
			d.queue = append(d.queue[:i], d.queue[i+1:]...)
			return
		}
	}
}

func (p *playback) SetVolume(v float64) {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	p.volume = v
}

func (p *playback) Volume() float64 { return p.volume }

func (p *playback) SetSpeed(s float64) {
	if s <= 0 {
		return
	}
	// 先按旧速度结算已播放的位置
	if p.playing {
		now := p.deck.clock()
		p.elapsed = p.positionAt(now)
		p.resumed = now
	}
	p.speed = s
}

func (p *playback) Speed() float64 { return p.speed }

func (p *playback) positionAt(now time.Time) time.Duration {
	pos := p.elapsed
	if p.playing && now.After(p.resumed) {
		pos += time.Duration(float64(now.Sub(p.resumed)) * p.speed)
	}
	return pos
}

func (p *playback) PlaybackData() TrackInfo {
	info := p.track.Info()
	info.Position = p.positionAt(p.deck.clock()).Seconds()
	return info
}
