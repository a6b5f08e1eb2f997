package player

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"time"

	"github.com/sockheadrps/OBS-Stream-Control-Hub/core/audio"
	"github.com/sockheadrps/OBS-Stream-Control-Hub/logger"
)

// ChannelFactory builds a fresh, fully loaded channel.
type ChannelFactory func() (audio.Channel, error)

// Options 处理器参数
type Options struct {
	TickInterval time.Duration
	FadeDuration time.Duration
}

func (o Options) withDefaults() Options {
	if o.TickInterval <= 0 {
		o.TickInterval = 200 * time.Millisecond
	}
	if o.FadeDuration <= 0 {
		o.FadeDuration = 5 * time.Second
	}
	return o
}

// Processor 命令处理器
//
// Run is the only goroutine that touches the channel and the session flags.
// Everything else talks to it through the command queue.
type Processor struct {
	commands   *CommandQueue
	status     *StatusQueue
	newChannel ChannelFactory
	metrics    *Metrics
	opts       Options

	channel        audio.Channel
	effects        []audio.Effect
	autoplay       bool
	reloadOnFinish bool
	hidden         bool

	latest atomic.Pointer[Snapshot]
}

// NewProcessor 创建命令处理器，ReloadOnFinish 默认开启
func NewProcessor(commands *CommandQueue, status *StatusQueue, factory ChannelFactory, metrics *Metrics, opts Options) *Processor {
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	p := &Processor{
		commands:       commands,
		status:         status,
		newChannel:     factory,
		metrics:        metrics,
		opts:           opts.withDefaults(),
		reloadOnFinish: true,
	}
	empty := emptySnapshot()
	p.latest.Store(&empty)
	return p
}

// Latest returns the most recently emitted snapshot.
func (p *Processor) Latest() Snapshot {
	return *p.latest.Load()
}

// Run builds the first channel and then alternates between commands and idle
// ticks until ctx is done.
func (p *Processor) Run(ctx context.Context) error {
	logger.Info("audio processor started", logger.Duration("tick", p.opts.TickInterval))
	p.rebuild()
	defer p.releaseChannel()

	for {
		req, ok, err := p.commands.Receive(ctx, p.opts.TickInterval)
		if err != nil {
			logger.Info("audio processor stopped")
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		p.metrics.CommandQueue.Set(float64(p.commands.Len()))
		if ok {
			p.handle(req)
			continue
		}
		p.idleTick()
	}
}

func (p *Processor) current() audio.Sink {
	if p.channel == nil {
		return nil
	}
	return p.channel.Current()
}

// handle 执行一条命令
func (p *Processor) handle(req Request) {
	if req.Command == nil {
		logger.Warn("empty command ignored", logger.String("client", req.ClientID))
		return
	}
	p.metrics.Commands.WithLabelValues(req.Command.Kind()).Inc()

	switch cmd := req.Command.(type) {
	case Play:
		cur := p.current()
		if cur == nil || cur.IsPlaying() {
			return
		}
		cur.Play()
		p.emit(StatusEventPeriodic, "", p.snapshot(false))

	case Pause:
		cur := p.current()
		if cur == nil || !cur.IsPlaying() {
			return
		}
		cur.Pause()
		p.emit(StatusEventPeriodic, "", p.snapshot(false))

	case Skip:
		if cur := p.current(); cur != nil {
			cur.Stop()
		}

	case ToggleAutoplay:
		p.autoplay = !p.autoplay
		logger.Debug("autoplay toggled", logger.Bool("autoplay", p.autoplay))
		if p.channel != nil {
			p.channel.SetAutoConsume(p.autoplay)
			if cur := p.channel.Current(); p.autoplay && cur != nil && !cur.IsPlaying() {
				cur.Play()
			}
		}
		p.emit(StatusEventPeriodic, "", p.snapshot(true))

	case SetVolume:
		if cur := p.current(); cur != nil {
			cur.SetVolume(cmd.Value)
			logger.Debug("volume set", logger.Float64("volume", cur.Volume()))
		}

	case SetSpeed:
		if cur := p.current(); cur != nil && cmd.Value > 0 {
			cur.SetSpeed(cmd.Value)
		}

	case AddEffect:
		p.effects = append(p.effects, audio.Effect{Kind: cmd.Effect, Duration: p.opts.FadeDuration})
		logger.Debug("effect added", logger.Strings("effects", audio.EffectNames(p.effects)))
		if p.channel != nil {
			p.channel.SetEffectsChain(p.effects)
		}
		p.emit(StatusEventPeriodic, "", p.snapshot(true))

	case SetReloadOnFinish:
		p.reloadOnFinish = cmd.Enabled

	case SetPlayerHidden:
		p.hidden = cmd.Hidden

	case InfoRequest:
		p.hidden = false
		p.emit(StatusEventInfo, req.ClientID, p.snapshot(true))

	default:
		logger.Warn("unknown command ignored",
			logger.String("kind", req.Command.Kind()),
			logger.String("client", req.ClientID))
	}
}

// idleTick 没有命令到达时执行
func (p *Processor) idleTick() {
	switch {
	case p.channel == nil:
		if p.reloadOnFinish {
			p.reload()
		}

	case !p.hidden && isPlaying(p.channel.Current()):
		p.emit(StatusEventPeriodic, "", p.snapshot(false))

	case len(p.channel.Queue()) == 0:
		if p.reloadOnFinish {
			p.reload()
		} else {
			logger.Info("audio queue exhausted, channel released")
			p.releaseChannel()
		}
	}

	if p.channel == nil {
		p.emit(StatusEventPeriodic, "", emptySnapshot())
	}
}

func isPlaying(s audio.Sink) bool {
	return s != nil && s.IsPlaying()
}

// reload rebuilds the channel and starts it when autoplay is on.
func (p *Processor) reload() {
	if !p.rebuild() {
		return
	}
	if p.autoplay {
		if cur := p.channel.Current(); cur != nil {
			cur.Play()
		}
		p.emit(StatusEventPeriodic, "", p.snapshot(false))
		return
	}
	p.emit(StatusEventPeriodic, "", p.idleSnapshot())
}

// rebuild replaces the channel. On failure the channel is left absent and the
// next idle tick tries again.
func (p *Processor) rebuild() bool {
	p.releaseChannel()
	ch, err := p.newChannel()
	if err != nil {
		p.metrics.ChannelBuilds.WithLabelValues("error").Inc()
		logger.Warn("build audio channel failed", logger.ErrorField(err))
		return false
	}

	ch.SetAutoConsume(p.autoplay)
	if len(p.effects) > 0 {
		ch.SetEffectsChain(p.effects)
	}
	p.channel = ch
	p.metrics.ChannelBuilds.WithLabelValues("ok").Inc()
	return true
}

// releaseChannel drops the channel, closing it when it holds decoded streams.
func (p *Processor) releaseChannel() {
	if c, ok := p.channel.(io.Closer); ok {
		if err := c.Close(); err != nil {
			logger.Warn("close audio channel failed", logger.ErrorField(err))
		}
	}
	p.channel = nil
}

// snapshot 构建当前状态；full 时附带会话字段
func (p *Processor) snapshot(full bool) Snapshot {
	s := emptySnapshot()

	var cur audio.Sink
	if p.channel != nil {
		s.IsPlaying.Known = true
		for _, t := range p.channel.Queue() {
			s.Queue = append(s.Queue, t.Info())
		}
		cur = p.channel.Current()
		if cur != nil {
			s.IsPlaying.Playing = cur.IsPlaying()
			s.CurrentAudio = cur.PlaybackData()
		}
	}

	if full {
		s.SessionInfo = &SessionInfo{
			Effects:        audio.EffectNames(p.effects),
			AutoPlay:       p.autoplay,
			ReloadOnFinish: p.reloadOnFinish,
		}
		if cur != nil {
			v := cur.Volume()
			s.Volume = &v
		}
	}
	return s
}

// idleSnapshot is reported right after a reload without autoplay: the new
// queue, nothing playing yet.
func (p *Processor) idleSnapshot() Snapshot {
	s := p.snapshot(false)
	s.IsPlaying = PlayingFlag{Known: true, Playing: false}
	s.CurrentAudio = audio.EmptyTrackInfo()
	return s
}

func (p *Processor) emit(event, target string, s Snapshot) {
	p.latest.Store(&s)
	p.metrics.Snapshots.WithLabelValues(event).Inc()
	if dropped := p.status.Offer(Status{Event: event, Target: target, Snapshot: s}); dropped {
		p.metrics.SnapshotsDropped.Inc()
	}
}
