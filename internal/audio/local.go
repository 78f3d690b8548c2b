package audio

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/speaker"
	"github.com/faiface/beep/wav"
)

// Local plays <dir>/NNN.wav on the host's speaker. Playback runs on its own
// goroutine; a new track stops the one playing.
type Local struct {
	dir   string
	queue chan string
	play  func(path string)

	once sync.Once
	done chan struct{}
}

// NewLocal starts a local player reading tracks from dir.
func NewLocal(dir string) *Local {
	l := newLocal(dir, nil)
	l.play = newSpeaker().play
	go l.run()
	return l
}

func newLocal(dir string, play func(string)) *Local {
	return &Local{
		dir:   dir,
		queue: make(chan string, 1),
		play:  play,
		done:  make(chan struct{}),
	}
}

// Path returns the file played for track.
func (l *Local) Path(track int) string {
	return filepath.Join(l.dir, fmt.Sprintf("%03d.wav", track))
}

// Play queues track. If a track is already waiting the new one is dropped.
func (l *Local) Play(track int) error {
	if err := checkTrack(track); err != nil {
		return err
	}
	select {
	case l.queue <- l.Path(track):
	default:
		log.Printf("audio: player busy, dropped track %d", track)
	}
	return nil
}

// Close stops the playback goroutine.
func (l *Local) Close() error {
	l.once.Do(func() { close(l.queue) })
	<-l.done
	return nil
}

func (l *Local) run() {
	defer close(l.done)
	for path := range l.queue {
		l.play(path)
	}
}

// speakerOut owns the beep output and the current stream.
type speakerOut struct {
	ok     bool
	ctrl   *beep.Ctrl
	stream beep.StreamSeekCloser
}

func newSpeaker() *speakerOut {
	sr := beep.SampleRate(44100)
	if err := speaker.Init(sr, sr.N(time.Second/5)); err != nil {
		log.Printf("audio: speaker init failed: %v", err)
		return &speakerOut{}
	}
	return &speakerOut{ok: true}
}

func (s *speakerOut) play(path string) {
	if !s.ok {
		log.Printf("audio: no speaker, cannot play %s", path)
		return
	}
	if s.ctrl != nil {
		speaker.Lock()
		s.ctrl.Paused = true
		s.ctrl.Streamer = nil
		speaker.Unlock()
		s.ctrl = nil
	}
	if s.stream != nil {
		s.stream.Close()
		s.stream = nil
	}

	f, err := os.Open(path)
	if err != nil {
		log.Printf("audio: open %s: %v", path, err)
		return
	}
	stream, _, err := wav.Decode(f)
	if err != nil {
		f.Close()
		log.Printf("audio: decode %s: %v", path, err)
		return
	}
	s.stream = stream
	s.ctrl = &beep.Ctrl{Streamer: stream}
	speaker.Play(s.ctrl)
}
