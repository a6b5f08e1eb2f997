package audio

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/abema/go-mp4"
	"github.com/dhowden/tag"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/wav"

	"github.com/sockheadrps/OBS-Stream-Control-Hub/logger"
)

const (
	extMP3 = ".mp3"
	extWAV = ".wav"
	extMP4 = ".mp4"

	// UnknownArtist 文件名和标签都没有艺术家信息时使用
	UnknownArtist = "Unknown Artist"
)

// SupportedExtensions 可加载的文件扩展名
var SupportedExtensions = []string{extMP3, extWAV, extMP4}

// IsSupported reports whether the file name carries an allowed extension.
func IsSupported(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, allowed := range SupportedExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

// Track 一个可播放的音频文件，加载后不可变
type Track struct {
	Path     string
	Title    string
	Artist   string
	Duration time.Duration // 0 表示未知
}

// TrackInfo 发送给客户端的曲目信息 (playback data)
type TrackInfo struct {
	Title    string  `json:"title"`
	Artist   string  `json:"artist"`
	Duration float64 `json:"duration,omitempty"` // seconds
	Position float64 `json:"position,omitempty"` // seconds
}

// EmptyTrackInfo 没有当前曲目时的占位值
func EmptyTrackInfo() TrackInfo {
	return TrackInfo{Title: "", Artist: ""}
}

// Info returns the queue view of the track.
func (t *Track) Info() TrackInfo {
	return TrackInfo{
		Title:    t.Title,
		Artist:   t.Artist,
		Duration: t.Duration.Seconds(),
	}
}

// TrackReader reads display metadata and duration from an audio file.
type TrackReader func(path string) *Track

// ReadTrackFile 读取标签和时长，缺失的标题/艺术家从文件名推导
func ReadTrackFile(path string) *Track {
	t := TrackFromName(path)

	f, err := os.Open(path)
	if err != nil {
		logger.Debug("open track failed", logger.String("path", path), logger.ErrorField(err))
		return t
	}
	if m, err := tag.ReadFrom(f); err == nil {
		if title := strings.TrimSpace(m.Title()); title != "" {
			t.Title = title
		}
		if artist := strings.TrimSpace(m.Artist()); artist != "" {
			t.Artist = artist
		}
	}
	f.Close()

	t.Duration = fileDuration(path)
	return t
}

// TrackFromName derives title and artist from "Artist - Title.ext".
func TrackFromName(path string) *Track {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	stem = strings.TrimSpace(stem)

	t := &Track{Path: path, Title: stem, Artist: UnknownArtist}
	if artist, title, ok := strings.Cut(stem, " - "); ok {
		artist, title = strings.TrimSpace(artist), strings.TrimSpace(title)
		if artist != "" && title != "" {
			t.Artist = artist
			t.Title = title
		}
	}
	return t
}

// errNoDecoder 容器可以识别，但没有可用的音频解码器
var errNoDecoder = errors.New("no decoder for container")

// decodeFile opens path and returns a decoded stream. The caller closes the
// stream, which also closes the file.
func decodeFile(path string) (beep.StreamSeekCloser, beep.Format, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != extMP3 && ext != extWAV {
		return nil, beep.Format{}, fmt.Errorf("%s: %w", ext, errNoDecoder)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, beep.Format{}, err
	}

	var (
		streamer beep.StreamSeekCloser
		format   beep.Format
	)
	if ext == extMP3 {
		streamer, format, err = mp3.Decode(f)
	} else {
		streamer, format, err = wav.Decode(f)
	}
	if err != nil {
		f.Close()
		return nil, beep.Format{}, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return streamer, format, nil
}

// fileDuration finds the track length from the stream header, or from the
// movie header for mp4 containers.
func fileDuration(path string) time.Duration {
	if strings.ToLower(filepath.Ext(path)) == extMP4 {
		return mp4Duration(path)
	}

	streamer, format, err := decodeFile(path)
	if err != nil {
		logger.Debug("read duration failed", logger.String("path", path), logger.ErrorField(err))
		return 0
	}
	defer streamer.Close()

	if format.SampleRate <= 0 || streamer.Len() <= 0 {
		return 0
	}
	return format.SampleRate.D(streamer.Len())
}

// mp4Duration reads the duration from the mvhd box.
func mp4Duration(path string) time.Duration {
	f, err := os.Open(path)
	if err != nil {
		return 0
	}
	defer f.Close()

	info, err := mp4.Probe(f)
	if err != nil {
		logger.Debug("read mp4 header failed", logger.String("path", path), logger.ErrorField(err))
		return 0
	}
	if info.Timescale == 0 {
		return 0
	}
	return time.Duration(float64(info.Duration) / float64(info.Timescale) * float64(time.Second))
}
