package player

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/sockheadrps/OBS-Stream-Control-Hub/core/hub"
	"github.com/sockheadrps/OBS-Stream-Control-Hub/logger"
)

// ServiceOptions 服务参数
type ServiceOptions struct {
	Options
	StatusQueueSize int
	// QueueWarn 命令队列深度告警阈值，0 表示不告警
	QueueWarn      int
	SendBufferSize int
	Mirror         StatusMirror
	Registerer     prometheus.Registerer
}

// Service 播放编排服务
//
// It owns the connection hub and both queues. The processor starts with the
// first connection and runs until Shutdown. The broadcaster runs only while
// at least one client is connected.
type Service struct {
	hub         *hub.Hub
	commands    *CommandQueue
	status      *StatusQueue
	processor   *Processor
	broadcaster *Broadcaster
	metrics     *Metrics
	opts        ServiceOptions

	mu          sync.Mutex
	ctx         context.Context
	cancel      context.CancelFunc
	started     bool
	procStarted bool
	procDone    chan struct{}
	bcastCancel context.CancelFunc
	bcastDone   chan struct{}
	hubDone     chan struct{}
}

// NewService 创建服务
func NewService(factory ChannelFactory, opts ServiceOptions) *Service {
	if opts.StatusQueueSize <= 0 {
		opts.StatusQueueSize = 64
	}
	metrics := NewMetrics(opts.Registerer)
	commands := NewCommandQueue()
	status := NewStatusQueue(opts.StatusQueueSize)
	h := hub.NewHub()

	s := &Service{
		hub:       h,
		commands:  commands,
		status:    status,
		processor: NewProcessor(commands, status, factory, metrics, opts.Options),
		metrics:   metrics,
		opts:      opts,
		procDone:  make(chan struct{}),
		hubDone:   make(chan struct{}),
	}
	s.broadcaster = NewBroadcaster(status, h, opts.Mirror, metrics, s.processor.opts.TickInterval)
	return s
}

// Hub 返回连接注册表
func (s *Service) Hub() *hub.Hub { return s.hub }

// Metrics 返回服务指标
func (s *Service) Metrics() *Metrics { return s.metrics }

// Latest returns the most recent snapshot the processor produced.
func (s *Service) Latest() Snapshot { return s.processor.Latest() }

// Start runs the hub. Background tasks are bound to ctx.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	s.ctx, s.cancel = context.WithCancel(ctx)

	s.hub.OnJoin(s.onJoin)
	s.hub.OnLeave(s.onLeave)
	go func() {
		defer close(s.hubDone)
		s.hub.Run()
	}()
	logger.Info("audio service started")
}

// onJoin 在 hub 协程中调用，不能阻塞
func (s *Service) onJoin(count int) {
	s.metrics.Clients.Set(float64(count))

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx == nil || s.ctx.Err() != nil {
		return
	}

	if !s.procStarted {
		s.procStarted = true
		go func() {
			defer close(s.procDone)
			if err := s.processor.Run(s.ctx); err != nil {
				logger.Error("audio processor exited", logger.ErrorField(err))
			}
		}()
	}

	if s.bcastCancel == nil {
		bctx, cancel := context.WithCancel(s.ctx)
		done := make(chan struct{})
		s.bcastCancel = cancel
		s.bcastDone = done
		go func() {
			defer close(done)
			s.broadcaster.Run(bctx)
		}()
	}
}

// onLeave 最后一个客户端离开时停止广播器
func (s *Service) onLeave(count int) {
	s.metrics.Clients.Set(float64(count))
	if count > 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bcastCancel != nil {
		s.bcastCancel()
		s.bcastCancel = nil
	}
}

// BroadcasterRunning reports whether a broadcaster goroutine is alive.
func (s *Service) BroadcasterRunning() bool {
	s.mu.Lock()
	done := s.bcastDone
	s.mu.Unlock()
	if done == nil {
		return false
	}
	select {
	case <-done:
		return false
	default:
		return true
	}
}

// Connect 注册一个新连接
func (s *Service) Connect(conn *websocket.Conn) *hub.Client {
	client := hub.NewClient(s.hub, conn, s.opts.SendBufferSize)
	s.hub.Register(client)
	return client
}

// Disconnect 注销连接
func (s *Service) Disconnect(client *hub.Client) {
	s.hub.Unregister(client)
}

// Submit enqueues cmd for the processor and, for commands that change state,
// tells every other client to refresh. The originator is never notified.
func (s *Service) Submit(clientID string, cmd Command) {
	depth := s.commands.Push(Request{ClientID: clientID, Command: cmd})
	s.metrics.CommandQueue.Set(float64(depth))
	if s.opts.QueueWarn > 0 && depth >= s.opts.QueueWarn {
		logger.Warn("command queue backing up",
			logger.Int("depth", depth),
			logger.String("kind", cmd.Kind()))
	}

	if Mutates(cmd) && !s.hub.Notify(clientID, hub.StateUpdated(cmd.Event())) {
		s.metrics.NotificationsDropped.Inc()
		logger.Debug("state notification dropped", logger.String("kind", cmd.Kind()))
	}
}

// Shutdown stops the processor and the broadcaster and force-closes every
// connection. It waits for the background tasks until ctx is done.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.cancel()
	procStarted := s.procStarted
	bcastDone := s.bcastDone
	s.bcastCancel = nil
	s.mu.Unlock()

	s.hub.Stop()

	waits := []chan struct{}{s.hubDone}
	if procStarted {
		waits = append(waits, s.procDone)
	}
	if bcastDone != nil {
		waits = append(waits, bcastDone)
	}
	for _, done := range waits {
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	// 最后一次推送留给镜像
	if s.opts.Mirror != nil {
		mctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := s.opts.Mirror.Publish(mctx, s.Latest()); err != nil {
			logger.Warn("final status publish failed", logger.ErrorField(err))
		}
	}
	logger.Info("audio service stopped")
	return nil
}
