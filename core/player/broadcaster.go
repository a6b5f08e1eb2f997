package player

import (
	"context"
	"time"

	"github.com/sockheadrps/OBS-Stream-Control-Hub/logger"
)

// Deliverer 把编码好的帧送到客户端
type Deliverer interface {
	// SendPrimary delivers to the client that receives periodic status.
	SendPrimary(msg []byte) bool
	SendTo(clientID string, msg []byte) bool
}

// StatusMirror receives every delivered snapshot, e.g. to copy it into Redis.
type StatusMirror interface {
	Publish(ctx context.Context, s Snapshot) error
}

// Broadcaster 从状态队列取出快照并推送
type Broadcaster struct {
	status   *StatusQueue
	out      Deliverer
	mirror   StatusMirror
	metrics  *Metrics
	interval time.Duration
}

// NewBroadcaster 创建广播器，mirror 可以为 nil
func NewBroadcaster(status *StatusQueue, out Deliverer, mirror StatusMirror, metrics *Metrics, interval time.Duration) *Broadcaster {
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	if interval <= 0 {
		interval = 200 * time.Millisecond
	}
	return &Broadcaster{status: status, out: out, mirror: mirror, metrics: metrics, interval: interval}
}

// Run flushes the status queue once per interval until ctx is done.
func (b *Broadcaster) Run(ctx context.Context) {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	logger.Debug("status broadcaster started")
	for {
		select {
		case <-ctx.Done():
			logger.Debug("status broadcaster stopped")
			return
		case <-ticker.C:
			b.Flush(ctx)
		}
	}
}

// Flush drains everything queued. Directed replies go to their requester;
// periodic snapshots are coalesced and only the newest reaches the primary
// client. It returns the number of frames delivered.
func (b *Broadcaster) Flush(ctx context.Context) int {
	var (
		latest    *Status
		last      *Snapshot
		delivered int
	)

	for {
		s, ok := b.status.TryReceive()
		if !ok {
			break
		}
		snap := s.Snapshot
		last = &snap

		if s.Target == "" {
			if latest != nil {
				b.metrics.SnapshotsDropped.Inc()
			}
			st := s
			latest = &st
			continue
		}
		if b.deliver(s, func(msg []byte) bool { return b.out.SendTo(s.Target, msg) }) {
			delivered++
		}
	}

	if latest != nil && b.deliver(*latest, b.out.SendPrimary) {
		delivered++
	}

	if last != nil && b.mirror != nil {
		mctx, cancel := context.WithTimeout(ctx, time.Second)
		if err := b.mirror.Publish(mctx, *last); err != nil {
			logger.Warn("publish status mirror failed", logger.ErrorField(err))
		}
		cancel()
	}
	return delivered
}

func (b *Broadcaster) deliver(s Status, send func([]byte) bool) bool {
	msg, err := s.Encode()
	if err != nil {
		logger.Error("encode status failed", logger.ErrorField(err))
		return false
	}
	if !send(msg) {
		// 没有可用的客户端，直接丢弃
		b.metrics.SnapshotsDropped.Inc()
		return false
	}
	return true
}
