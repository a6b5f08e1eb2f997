package player

import (
	"encoding/json"

	"github.com/sockheadrps/OBS-Stream-Control-Hub/core/audio"
)

const (
	StatusEventPeriodic = "audio_status"
	StatusEventInfo     = "info_request"
)

// PlayingFlag 序列化为 true/false，没有 Channel 时为 ""
type PlayingFlag struct {
	Known   bool
	Playing bool
}

func (f PlayingFlag) MarshalJSON() ([]byte, error) {
	if !f.Known {
		return []byte(`""`), nil
	}
	return json.Marshal(f.Playing)
}

func (f *PlayingFlag) UnmarshalJSON(b []byte) error {
	if string(b) == `""` || string(b) == "null" {
		*f = PlayingFlag{}
		return nil
	}
	var playing bool
	if err := json.Unmarshal(b, &playing); err != nil {
		return err
	}
	*f = PlayingFlag{Known: true, Playing: playing}
	return nil
}

// Snapshot 发送给客户端的只读状态视图
type Snapshot struct {
	IsPlaying    PlayingFlag       `json:"is_playing"`
	Queue        []audio.TrackInfo `json:"queue"`
	Data         any               `json:"data"`
	CurrentAudio audio.TrackInfo   `json:"current_audio"`
	*SessionInfo
}

// SessionInfo 完整快照附带的会话字段
type SessionInfo struct {
	Effects        []string `json:"effects"`
	AutoPlay       bool     `json:"auto_play"`
	ReloadOnFinish bool     `json:"reload_on_finish"`
	Volume         *float64 `json:"volume,omitempty"`
}

// emptySnapshot is the view reported while no channel exists.
func emptySnapshot() Snapshot {
	return Snapshot{
		Queue:        []audio.TrackInfo{},
		CurrentAudio: audio.EmptyTrackInfo(),
	}
}

// StatusMessage 服务端推送的状态帧
//
// The status object is never sent bare. Periodic pushes are framed as
// {"event_type":"audio_status","data":{...}} and info replies as
// {"event_type":"info_request","data":{...}}, so a client reads the status
// from data and tells the two apart by event_type.
type StatusMessage struct {
	EventType string   `json:"event_type"`
	Data      Snapshot `json:"data"`
}

// Encode 编码为一帧 JSON，状态对象放在 data 中
func (s Status) Encode() ([]byte, error) {
	return json.Marshal(StatusMessage{EventType: s.Event, Data: s.Snapshot})
}
