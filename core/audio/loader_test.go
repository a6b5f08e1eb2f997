package audio

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func writeFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestListFilesFiltersAndSorts(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "c.mp3", "a.wav", "notes.txt", "b.MP4", "cover.jpg")
	if err := os.Mkdir(filepath.Join(dir, "nested.mp3"), 0o755); err != nil {
		t.Fatal(err)
	}

	got, err := ListFiles(dir)
	if err != nil {
		t.Fatalf("ListFiles() error = %v", err)
	}

	want := []string{"a.wav", "b.MP4", "c.mp3"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ListFiles() = %v, want %v", got, want)
	}
}

func TestListFilesMissingDir(t *testing.T) {
	if _, err := ListFiles(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected error for missing directory")
	}
}

func TestLoaderNewChannel(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "b.mp3", "a.mp3", "c.mp3")

	loader := &Loader{Dir: dir, Read: TrackFromName}
	ch, err := loader.NewChannel()
	if err != nil {
		t.Fatalf("NewChannel() error = %v", err)
	}

	queue := ch.Queue()
	if len(queue) != 3 {
		t.Fatalf("len(queue) = %d, want 3", len(queue))
	}
	for i, want := range []string{"a", "b", "c"} {
		if queue[i].Title != want {
			t.Errorf("queue[%d] = %q, want %q", i, queue[i].Title, want)
		}
	}
	if cur := ch.Current(); cur == nil || cur.Track().Title != "a" {
		t.Errorf("current = %v, want a", cur)
	}
}

func TestLoaderNewChannelWithOutput(t *testing.T) {
	dir := t.TempDir()
	writeWAV(t, dir, "a.wav", 100*time.Millisecond)
	out := NewMixerOutput(testRate)
	defer out.Close()

	ch, err := (&Loader{Dir: dir, Read: ReadTrackFile, Output: out}).NewChannel()
	if err != nil {
		t.Fatalf("NewChannel() error = %v", err)
	}
	if _, ok := ch.(*Lane); !ok {
		t.Fatalf("NewChannel() = %T, want *Lane", ch)
	}
	ch.Current().Play()
	if out.Playing() != 1 {
		t.Errorf("mixer streams = %d, want 1", out.Playing())
	}
}

func TestLoaderEmptyDir(t *testing.T) {
	loader := &Loader{Dir: t.TempDir()}
	_, err := loader.NewChannel()
	if !errors.Is(err, ErrNoTracks) {
		t.Errorf("NewChannel() error = %v, want ErrNoTracks", err)
	}
}

func TestLibraryPicksUpNewFiles(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "a.mp3")

	lib, err := NewLibrary(dir)
	if err != nil {
		t.Fatalf("NewLibrary() error = %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go lib.Run(ctx)

	if got := lib.Files(); !reflect.DeepEqual(got, []string{"a.mp3"}) {
		t.Fatalf("Files() = %v", got)
	}

	writeFiles(t, dir, "b.mp3")

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if len(lib.Files()) == 2 {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Errorf("Files() = %v, want a.mp3 and b.mp3", lib.Files())
}
