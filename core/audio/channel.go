package audio

// Sink 当前曲目的播放句柄
type Sink interface {
	Track() *Track
	Play()
	Pause()
	// Stop ends the track; the channel drops it and advances its queue.
	Stop()
	IsPlaying() bool
	SetVolume(v float64)
	Volume() float64
	SetSpeed(s float64)
	Speed() float64
	PlaybackData() TrackInfo
}

// Channel 一条播放通道：有序队列 + 当前曲目 + 效果链
//
// The head of the queue is the current track. Implementations are not safe for
// concurrent use; the command processor is the only caller.
type Channel interface {
	Push(t *Track)
	// Current returns nil when the queue is empty.
	Current() Sink
	Queue() []*Track
	AutoConsume() bool
	SetAutoConsume(on bool)
	SetEffectsChain(chain []Effect)
	Effects() []Effect
}
