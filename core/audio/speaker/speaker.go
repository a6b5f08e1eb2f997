//go:build speaker

package speaker

import (
	"time"

	"github.com/gopxl/beep/v2"
	beepspeaker "github.com/gopxl/beep/v2/speaker"

	"github.com/sockheadrps/OBS-Stream-Control-Hub/core/audio"
)

func init() {
	audio.RegisterOutput(audio.OutputSpeaker, Open)
}

// device 声卡输出，beep speaker 是进程级单例
type device struct {
	sr beep.SampleRate
}

// Open initializes the sound card at sr.
func Open(sr beep.SampleRate, buffer time.Duration) (audio.Output, error) {
	if buffer <= 0 {
		buffer = 100 * time.Millisecond
	}
	if err := beepspeaker.Init(sr, sr.N(buffer)); err != nil {
		return nil, err
	}
	return &device{sr: sr}, nil
}

func (d *device) SampleRate() beep.SampleRate { return d.sr }

func (d *device) Play(s beep.Streamer) { beepspeaker.Play(s) }

func (d *device) Lock() { beepspeaker.Lock() }

func (d *device) Unlock() { beepspeaker.Unlock() }

func (d *device) Close() error {
	beepspeaker.Clear()
	beepspeaker.Close()
	return nil
}
