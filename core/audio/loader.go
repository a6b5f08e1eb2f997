package audio

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/sockheadrps/OBS-Stream-Control-Hub/logger"
)

// ErrNoTracks 目录中没有可播放的文件
var ErrNoTracks = errors.New("no playable tracks")

// Loader 扫描音乐目录并构建 Channel
//
// With an Output the channel is a Lane playing through it; without one it is a
// Deck driven by Clock.
type Loader struct {
	Dir    string
	Clock  Clock
	Read   TrackReader
	Output Output
}

// NewLoader 创建 Loader，默认使用真实时钟和文件探测
func NewLoader(dir string) *Loader {
	return &Loader{Dir: dir, Read: ReadTrackFile}
}

// ListFiles returns the playable file names in dir, sorted lexicographically.
// Subdirectories are not descended into.
func ListFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read music dir %s: %w", dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !IsSupported(entry.Name()) {
			continue
		}
		if !entry.Type().IsRegular() {
			// 符号链接按目标判断
			fi, err := os.Stat(filepath.Join(dir, entry.Name()))
			if err != nil || !fi.Mode().IsRegular() {
				continue
			}
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Scan reads every playable file in the directory.
func (l *Loader) Scan() ([]*Track, error) {
	names, err := ListFiles(l.Dir)
	if err != nil {
		return nil, err
	}

	read := l.Read
	if read == nil {
		read = TrackFromName
	}

	tracks := make([]*Track, 0, len(names))
	for _, name := range names {
		tracks = append(tracks, read(filepath.Join(l.Dir, name)))
	}
	return tracks, nil
}

// NewChannel builds a fully loaded channel. It is only returned once every
// track has been pushed.
func (l *Loader) NewChannel() (Channel, error) {
	tracks, err := l.Scan()
	if err != nil {
		return nil, err
	}
	if len(tracks) == 0 {
		return nil, fmt.Errorf("%s: %w", l.Dir, ErrNoTracks)
	}

	var ch Channel
	if l.Output != nil {
		ch = NewLane(l.Output)
	} else {
		ch = NewDeck(l.Clock)
	}
	for _, t := range tracks {
		ch.Push(t)
	}

	logger.Info("audio channel created",
		logger.String("dir", l.Dir),
		logger.Int("tracks", len(tracks)),
		logger.Bool("output", l.Output != nil))
	return ch, nil
}
