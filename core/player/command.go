package player

import "github.com/sockheadrps/OBS-Stream-Control-Hub/core/audio"

// 客户端事件名，也用作 audio_state_updated 通知里的 event_type
const (
	EventAudioControl   = "audio_control"
	EventEffects        = "effects"
	EventInfoRequest    = "info_request"
	EventReloadOnFinish = "reload_on_finish"
	EventPlayerHidden   = "player_hidden"
)

// Command 播放控制命令
//
// The set is closed: only the types in this file implement it.
type Command interface {
	// Kind names the command for logs and metrics.
	Kind() string
	// Event is the client event the command was decoded from.
	Event() string
	isCommand()
}

// Request 命令及其发送者
type Request struct {
	ClientID string
	Command  Command
}

type Play struct{}

type Pause struct{}

type Skip struct{}

type ToggleAutoplay struct{}

type SetVolume struct{ Value float64 }

type SetSpeed struct{ Value float64 }

type AddEffect struct{ Effect audio.EffectKind }

type SetReloadOnFinish struct{ Enabled bool }

type SetPlayerHidden struct{ Hidden bool }

type InfoRequest struct{}

func (Play) Kind() string              { return "play" }
func (Pause) Kind() string             { return "pause" }
func (Skip) Kind() string              { return "skip" }
func (ToggleAutoplay) Kind() string    { return "autoplay" }
func (SetVolume) Kind() string         { return "volume" }
func (SetSpeed) Kind() string          { return "speed" }
func (AddEffect) Kind() string         { return "set_effects" }
func (SetReloadOnFinish) Kind() string { return "reload_on_finish" }
func (SetPlayerHidden) Kind() string   { return "player_hidden" }
func (InfoRequest) Kind() string       { return "info_request" }

func (Play) Event() string              { return EventAudioControl }
func (Pause) Event() string             { return EventAudioControl }
func (Skip) Event() string              { return EventAudioControl }
func (ToggleAutoplay) Event() string    { return EventAudioControl }
func (SetVolume) Event() string         { return EventAudioControl }
func (SetSpeed) Event() string          { return EventAudioControl }
func (AddEffect) Event() string         { return EventEffects }
func (SetReloadOnFinish) Event() string { return EventReloadOnFinish }
func (SetPlayerHidden) Event() string   { return EventPlayerHidden }
func (InfoRequest) Event() string       { return EventInfoRequest }

func (Play) isCommand()              {}
func (Pause) isCommand()             {}
func (Skip) isCommand()              {}
func (ToggleAutoplay) isCommand()    {}
func (SetVolume) isCommand()         {}
func (SetSpeed) isCommand()          {}
func (AddEffect) isCommand()         {}
func (SetReloadOnFinish) isCommand() {}
func (SetPlayerHidden) isCommand()   {}
func (InfoRequest) isCommand()       {}

// Mutates reports whether other clients should be told to refresh.
func Mutates(cmd Command) bool {
	_, isInfo := cmd.(InfoRequest)
	return !isInfo
}
