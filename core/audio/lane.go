package audio

import (
	"math"
	"sync/atomic"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"

	"github.com/sockheadrps/OBS-Stream-Control-Hub/logger"
)

// 重采样质量，3-4 适合实时播放
const resampleQuality = 4

// Lane 通过 beep 播放的 Channel
//
// Each track is decoded when it first plays and runs through
// effects -> resampler (speed) -> volume -> ctrl (pause) into the output.
// The end of the stream marks the track finished; the lane drops it the next
// time it is queried. Like Deck, a Lane is only used from the processor
// goroutine; the output goroutine only reads the streamers, under the output
// lock.
type Lane struct {
	out         Output
	decode      func(path string) (beep.StreamSeekCloser, beep.Format, error)
	queue       []*laneItem
	autoConsume bool
	effects     []Effect
}

// NewLane creates an empty lane playing into out.
func NewLane(out Output) *Lane {
	return &Lane{out: out, decode: decodeFile}
}

func (l *Lane) Push(t *Track) {
	l.queue = append(l.queue, &laneItem{lane: l, track: t, volume: 1, speed: 1})
}

func (l *Lane) Current() Sink {
	l.sync()
	if len(l.queue) == 0 {
		return nil
	}
	return l.queue[0]
}

func (l *Lane) Queue() []*Track {
	l.sync()
	tracks := make([]*Track, 0, len(l.queue))
	for _, it := range l.queue {
		tracks = append(tracks, it.track)
	}
	return tracks
}

func (l *Lane) AutoConsume() bool { return l.autoConsume }

func (l *Lane) SetAutoConsume(on bool) { l.autoConsume = on }

// SetEffectsChain replaces the chain. It takes effect for tracks that start
// after the call.
func (l *Lane) SetEffectsChain(chain []Effect) {
	l.effects = append([]Effect(nil), chain...)
}

func (l *Lane) Effects() []Effect {
	return append([]Effect(nil), l.effects...)
}

// Close stops playback and releases every decoded stream.
func (l *Lane) Close() error {
	for _, it := range l.queue {
		it.release()
	}
	l.queue = nil
	return nil
}

func (l *Lane) sync() {
	for len(l.queue) > 0 && l.queue[0].finished.Load() {
		l.finishHead()
	}
}

func (l *Lane) finishHead() {
	prev := l.queue[0]
	prev.release()
	l.queue[0] = nil
	l.queue = l.queue[1:]

	logger.Debug("track finished", logger.String("path", prev.track.Path))

	if len(l.queue) == 0 {
		return
	}
	next := l.queue[0]
	next.volume = prev.volume
	next.speed = prev.speed
	if l.autoConsume {
		next.Play()
	}
}

// laneItem 队列中的一项，第一次播放时才打开文件
type laneItem struct {
	lane  *Lane
	track *Track

	source    beep.StreamSeekCloser
	format    beep.Format
	resampler *beep.Resampler
	gain      *effects.Volume
	ctrl      *beep.Ctrl

	playing  bool
	finished atomic.Bool
	volume   float64
	speed    float64
}

func (it *laneItem) Track() *Track { return it.track }

func (it *laneItem) IsPlaying() bool { return it.playing && !it.finished.Load() }

func (it *laneItem) Play() {
	if it.finished.Load() || it.playing {
		return
	}
	if it.ctrl == nil {
		if !it.start() {
			return
		}
		it.playing = true
		return
	}
	it.withLock(func() { it.ctrl.Paused = false })
	it.playing = true
}

// start decodes the file and hands the chain to the output. A file that cannot
// be decoded is marked finished so the queue moves past it.
func (it *laneItem) start() bool {
	l := it.lane
	source, format, err := l.decode(it.track.Path)
	if err != nil {
		logger.Warn("track cannot be played, skipping",
			logger.String("path", it.track.Path),
			logger.ErrorField(err))
		it.finished.Store(true)
		return false
	}
	it.source, it.format = source, format

	s := applyEffects(source, l.effects, format.SampleRate, source.Len())
	it.resampler = beep.ResampleRatio(resampleQuality, it.ratio(), s)
	it.gain = &effects.Volume{Streamer: it.resampler, Base: 2}
	setGain(it.gain, it.volume)
	it.ctrl = &beep.Ctrl{Streamer: it.gain}

	l.out.Play(beep.Seq(it.ctrl, beep.Callback(func() {
		it.finished.Store(true)
	})))
	return true
}

func (it *laneItem) Pause() {
	if !it.IsPlaying() {
		return
	}
	it.withLock(func() { it.ctrl.Paused = true })
	it.playing = false
}

// Stop ends the track; the lane advances its queue.
func (it *laneItem) Stop() {
	l := it.lane
	if len(l.queue) > 0 && l.queue[0] == it {
		l.finishHead()
		return
	}
	for i, q := range l.queue {
		if q == it {
			it.release()
			l.queue = append(l.queue[:i], l.queue[i+1:]...)
			return
		}
	}
}

func (it *laneItem) SetVolume(v float64) {
	v = math.Max(0, math.Min(1, v))
	it.volume = v
	if it.gain != nil {
		it.withLock(func() { setGain(it.gain, v) })
	}
}

func (it *laneItem) Volume() float64 { return it.volume }

func (it *laneItem) SetSpeed(s float64) {
	if s <= 0 {
		return
	}
	it.speed = s
	if it.resampler != nil {
		ratio := it.ratio()
		it.withLock(func() { it.resampler.SetRatio(ratio) })
	}
}

func (it *laneItem) Speed() float64 { return it.speed }

func (it *laneItem) PlaybackData() TrackInfo {
	info := it.track.Info()
	if it.source != nil && it.format.SampleRate > 0 {
		var pos int
		it.withLock(func() { pos = it.source.Position() })
		info.Position = it.format.SampleRate.D(pos).Seconds()
	}
	return info
}

// ratio is the source rate over the output rate, scaled by speed.
func (it *laneItem) ratio() float64 {
	return float64(it.format.SampleRate) / float64(it.lane.out.SampleRate()) * it.speed
}

// release detaches the chain from the output and closes the file.
func (it *laneItem) release() {
	it.playing = false
	if it.ctrl != nil {
		it.withLock(func() { it.ctrl.Streamer = nil })
	}
	if it.source != nil {
		if err := it.source.Close(); err != nil {
			logger.Debug("close track failed", logger.String("path", it.track.Path), logger.ErrorField(err))
		}
		it.source = nil
	}
}

func (it *laneItem) withLock(fn func()) {
	it.lane.out.Lock()
	defer it.lane.out.Unlock()
	fn()
}

// setGain maps a linear volume onto beep's exponential volume.
func setGain(v *effects.Volume, level float64) {
	if level <= 0 {
		v.Silent = true
		return
	}
	v.Silent = false
	v.Volume = math.Log2(level)
}
