package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/sockheadrps/OBS-Stream-Control-Hub/core/audio"
	"github.com/sockheadrps/OBS-Stream-Control-Hub/core/player"
)

var (
	// ErrUnknownEvent 无法识别的事件
	ErrUnknownEvent = errors.New("unknown event")
	// ErrBadPayload 事件已识别但数据格式不对
	ErrBadPayload = errors.New("bad payload")
)

// 客户端连接时发送的握手事件，不产生命令
const eventConnect = "connect"

// ClientMessage 客户端发来的消息
type ClientMessage struct {
	Event string          `json:"event"`
	Type  string          `json:"type,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
	Value json.RawMessage `json:"value,omitempty"`
}

type valuePayload struct {
	Value json.RawMessage `json:"value"`
}

type effectPayload struct {
	Effect string `json:"effect"`
}

// ControlAck 回给发送者的确认
type ControlAck struct {
	Event string         `json:"event"`
	Data  ControlAckData `json:"data"`
}

type ControlAckData struct {
	Command string `json:"command"`
}

// DecodeCommand maps one client frame onto a command. A nil command with a
// nil error means the frame is valid but carries nothing to execute.
func DecodeCommand(raw []byte) (player.Command, error) {
	var msg ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadPayload, err)
	}

	switch msg.Event {
	case player.EventEffects:
		var p effectPayload
		if err := json.Unmarshal(msg.Data, &p); err != nil {
			return nil, fmt.Errorf("%w: effects: %v", ErrBadPayload, err)
		}
		kind, err := audio.ParseEffectKind(p.Effect)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadPayload, err)
		}
		return player.AddEffect{Effect: kind}, nil

	case player.EventInfoRequest:
		return player.InfoRequest{}, nil

	case eventConnect:
		return nil, nil
	}

	// type 优先，也接受直接放在 event 里的设置项
	kind := msg.Type
	if kind == "" {
		kind = msg.Event
	}
	switch kind {
	case "volume":
		v, err := numberValue(msg.Data)
		if err != nil {
			return nil, fmt.Errorf("%w: volume: %v", ErrBadPayload, err)
		}
		return player.SetVolume{Value: volumeFraction(v)}, nil

	case "speed":
		v, err := numberValue(msg.Data)
		if err != nil {
			return nil, fmt.Errorf("%w: speed: %v", ErrBadPayload, err)
		}
		return player.SetSpeed{Value: v}, nil

	case player.EventReloadOnFinish:
		on, err := boolValue(msg.Data)
		if err != nil {
			return nil, fmt.Errorf("%w: reload_on_finish: %v", ErrBadPayload, err)
		}
		return player.SetReloadOnFinish{Enabled: on}, nil

	case player.EventPlayerHidden:
		raw := msg.Value
		if len(raw) == 0 {
			var p valuePayload
			if err := json.Unmarshal(msg.Data, &p); err == nil {
				raw = p.Value
			}
		}
		hidden, err := parseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: player_hidden: %v", ErrBadPayload, err)
		}
		return player.SetPlayerHidden{Hidden: hidden}, nil
	}

	if msg.Event == player.EventAudioControl {
		var name string
		if err := json.Unmarshal(msg.Data, &name); err != nil {
			return nil, fmt.Errorf("%w: audio_control: %v", ErrBadPayload, err)
		}
		switch name {
		case "play":
			return player.Play{}, nil
		case "pause":
			return player.Pause{}, nil
		case "skip":
			return player.Skip{}, nil
		case "auto_play", "autoplay":
			return player.ToggleAutoplay{}, nil
		}
		return nil, fmt.Errorf("%w: audio_control %q", ErrUnknownEvent, name)
	}

	return nil, fmt.Errorf("%w: event=%q type=%q", ErrUnknownEvent, msg.Event, msg.Type)
}

// Ack returns the acknowledgement the originator receives for cmd, or nil.
func Ack(cmd player.Command) []byte {
	var name string
	switch cmd.(type) {
	case player.Play:
		name = "play"
	case player.Pause:
		name = "pause"
	case player.Skip:
		name = "skip"
	case player.ToggleAutoplay:
		name = "autoplay"
	default:
		return nil
	}
	b, _ := json.Marshal(ControlAck{Event: player.EventAudioControl, Data: ControlAckData{Command: name}})
	return b
}

func numberValue(data json.RawMessage) (float64, error) {
	var p valuePayload
	if err := json.Unmarshal(data, &p); err != nil {
		return 0, err
	}
	return parseNumber(p.Value)
}

func boolValue(data json.RawMessage) (bool, error) {
	var p valuePayload
	if err := json.Unmarshal(data, &p); err != nil {
		return false, err
	}
	return parseBool(p.Value)
}

// parseNumber accepts a JSON number or a numeric string.
func parseNumber(raw json.RawMessage) (float64, error) {
	if len(raw) == 0 {
		return 0, errors.New("missing value")
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, fmt.Errorf("not a number: %s", raw)
	}
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

// parseBool accepts true/false, 0/1 and their string forms.
func parseBool(raw json.RawMessage) (bool, error) {
	if len(raw) == 0 {
		return false, errors.New("missing value")
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b, nil
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f != 0, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return false, fmt.Errorf("not a boolean: %s", raw)
	}
	return strconv.ParseBool(strings.TrimSpace(s))
}

// volumeFraction maps a wire volume onto 0-1. The slider sends whole numbers
// from 0 to 100; anything else is already a fraction and is clamped.
func volumeFraction(v float64) float64 {
	if v > 1 && v <= 100 && v == math.Trunc(v) {
		return v / 100
	}
	return math.Max(0, math.Min(1, v))
}
