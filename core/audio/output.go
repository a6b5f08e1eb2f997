package audio

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
)

// 输出名称
const (
	OutputSpeaker = "speaker"
	OutputNull    = "null"
	OutputSim     = "sim"
)

// Output 播放通道的声音出口
//
// Streamers handed to Play are pulled from another goroutine, so any change to
// a playing streamer must happen between Lock and Unlock.
type Output interface {
	SampleRate() beep.SampleRate
	Play(s beep.Streamer)
	Lock()
	Unlock()
	Close() error
}

// OutputFactory opens an output with the given sample rate and buffer length.
type OutputFactory func(sr beep.SampleRate, buffer time.Duration) (Output, error)

var (
	outputsMu sync.RWMutex
	outputs   = map[string]OutputFactory{
		OutputNull: func(sr beep.SampleRate, buffer time.Duration) (Output, error) {
			o := NewMixerOutput(sr)
			o.Start(buffer)
			return o, nil
		},
	}
)

// RegisterOutput makes an output available by name. Hardware outputs register
// themselves from their package's init.
func RegisterOutput(name string, f OutputFactory) {
	outputsMu.Lock()
	defer outputsMu.Unlock()
	outputs[name] = f
}

// OpenOutput opens the output registered under name.
func OpenOutput(name string, sr beep.SampleRate, buffer time.Duration) (Output, error) {
	outputsMu.RLock()
	f, ok := outputs[name]
	outputsMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("audio output %q not available (have %v)", name, Outputs())
	}
	return f(sr, buffer)
}

// Outputs lists the registered output names.
func Outputs() []string {
	outputsMu.RLock()
	defer outputsMu.RUnlock()
	names := make([]string, 0, len(outputs))
	for name := range outputs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// MixerOutput 不接声卡的输出
//
// Streams are mixed with a beep.Mixer and the result is discarded. Start pulls
// samples in real time so tracks end when they would on a speaker; tests call
// Advance instead.
type MixerOutput struct {
	sr    beep.SampleRate
	mu    sync.Mutex
	mixer beep.Mixer
	buf   [][2]float64
	peak  float64

	stop     chan struct{}
	stopOnce sync.Once
}

// NewMixerOutput creates an idle mixer output.
func NewMixerOutput(sr beep.SampleRate) *MixerOutput {
	return &MixerOutput{sr: sr, stop: make(chan struct{})}
}

func (o *MixerOutput) SampleRate() beep.SampleRate { return o.sr }

func (o *MixerOutput) Play(s beep.Streamer) {
	o.mu.Lock()
	o.mixer.Add(s)
	o.mu.Unlock()
}

func (o *MixerOutput) Lock()   { o.mu.Lock() }
func (o *MixerOutput) Unlock() { o.mu.Unlock() }

// Start pulls one step of audio per step of wall time until Close.
func (o *MixerOutput) Start(step time.Duration) {
	if step <= 0 {
		step = 100 * time.Millisecond
	}
	go func() {
		ticker := time.NewTicker(step)
		defer ticker.Stop()
		last := time.Now()
		for {
			select {
			case <-o.stop:
				return
			case now := <-ticker.C:
				o.Advance(now.Sub(last))
				last = now
			}
		}
	}()
}

// Advance mixes d worth of samples.
func (o *MixerOutput) Advance(d time.Duration) {
	n := o.sr.N(d)
	if n <= 0 {
		return
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if cap(o.buf) < n {
		o.buf = make([][2]float64, n)
	}
	samples := o.buf[:n]
	o.mixer.Stream(samples)

	o.peak = 0
	for _, s := range samples {
		o.peak = math.Max(o.peak, math.Max(math.Abs(s[0]), math.Abs(s[1])))
	}
}

// Peak returns the loudest sample of the last Advance.
func (o *MixerOutput) Peak() float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.peak
}

// Playing returns the number of streams still in the mixer.
func (o *MixerOutput) Playing() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.mixer.Len()
}

// Close stops the pull loop if it was started and drops every stream.
func (o *MixerOutput) Close() error {
	o.stopOnce.Do(func() { close(o.stop) })
	o.mu.Lock()
	o.mixer.Clear()
	o.mu.Unlock()
	return nil
}
