package player

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/sockheadrps/OBS-Stream-Control-Hub/core/audio"
)

func TestEmptySnapshotJSON(t *testing.T) {
	msg, err := Status{Event: StatusEventPeriodic, Snapshot: emptySnapshot()}.Encode()
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	want := `{"event_type":"audio_status","data":{"is_playing":"","queue":[],"data":null,"current_audio":{"title":"","artist":""}}}`
	if string(msg) != want {
		t.Errorf("Encode() =\n%s\nwant\n%s", msg, want)
	}
}

func TestInfoReplyFrame(t *testing.T) {
	msg, err := Status{Event: StatusEventInfo, Target: "c1", Snapshot: emptySnapshot()}.Encode()
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	var frame map[string]json.RawMessage
	if err := json.Unmarshal(msg, &frame); err != nil {
		t.Fatal(err)
	}
	if len(frame) != 2 {
		t.Fatalf("frame keys = %v, want event_type and data", frame)
	}
	if string(frame["event_type"]) != `"info_request"` {
		t.Errorf("event_type = %s", frame["event_type"])
	}
	if !strings.HasPrefix(string(frame["data"]), `{"is_playing":`) {
		t.Errorf("data = %s, want the status object", frame["data"])
	}
}

func TestFullSnapshotJSON(t *testing.T) {
	vol := 0.5
	s := Snapshot{
		IsPlaying:    PlayingFlag{Known: true, Playing: true},
		Queue:        []audio.TrackInfo{{Title: "Song", Artist: "Band"}},
		CurrentAudio: audio.TrackInfo{Title: "Song", Artist: "Band"},
		SessionInfo: &SessionInfo{
			Effects:        []string{"FadeIn"},
			AutoPlay:       true,
			ReloadOnFinish: true,
			Volume:         &vol,
		},
	}
	b, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	for _, part := range []string{
		`"is_playing":true`,
		`"effects":["FadeIn"]`,
		`"auto_play":true`,
		`"reload_on_finish":true`,
		`"volume":0.5`,
	} {
		if !strings.Contains(string(b), part) {
			t.Errorf("snapshot %s missing %s", b, part)
		}
	}
}

func TestPlayingFlagRoundTrip(t *testing.T) {
	tests := []struct {
		in   string
		want PlayingFlag
	}{
		{`""`, PlayingFlag{}},
		{`true`, PlayingFlag{Known: true, Playing: true}},
		{`false`, PlayingFlag{Known: true}},
	}
	for _, tt := range tests {
		var f PlayingFlag
		if err := json.Unmarshal([]byte(tt.in), &f); err != nil {
			t.Fatalf("Unmarshal(%s) error = %v", tt.in, err)
		}
		if f != tt.want {
			t.Errorf("Unmarshal(%s) = %+v, want %+v", tt.in, f, tt.want)
		}
		b, _ := json.Marshal(f)
		if string(b) != tt.in {
			t.Errorf("Marshal(%+v) = %s, want %s", f, b, tt.in)
		}
	}
}
