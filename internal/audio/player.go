package audio

import (
	"io"
	"log"
	"os"
	"sync"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"
	"github.com/gopxl/beep/speaker"
	"github.com/gopxl/beep/vorbis"
	"github.com/pkg/errors"
)

// Player loops a soundtrack on the local sound card: the synthesized beat
// or an OGG Vorbis file.
type Player struct {
	mu          sync.Mutex
	ctrl        *beep.Ctrl
	file        io.Closer
	initialized bool
}

// NewPlayer creates an idle player.
func NewPlayer() *Player {
	return &Player{}
}

// loopStream builds the endless, volume-adjusted beat.
func loopStream(cfg BeatConfig) (*beep.Ctrl, beep.Format, error) {
	beat, err := NewBeat(cfg)
	if err != nil {
		return nil, beep.Format{}, err
	}
	gain := &effects.Gain{Streamer: beep.Loop(-1, beat), Gain: cfg.Volume - 1}
	return &beep.Ctrl{Streamer: gain}, beat.Format(), nil
}

// fileStream opens an OGG file for endless streaming. The decoder reads
// lazily, so the returned closer must outlive playback.
func fileStream(path string, volume float64) (*beep.Ctrl, beep.Format, io.Closer, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, beep.Format{}, nil, errors.Wrap(err, "open music")
	}

	// Decode OGG Vorbis - this sets up streaming, NOT full decode
	streamer, format, err := vorbis.Decode(file)
	if err != nil {
		file.Close()
		return nil, beep.Format{}, nil, errors.Wrapf(err, "decode %s", path)
	}

	gain := &effects.Gain{Streamer: beep.Loop(-1, streamer), Gain: volume - 1}
	return &beep.Ctrl{Streamer: gain}, format, streamer, nil
}

// Start opens the speaker and begins looping the beat. Calling Start
// twice is a no-op.
func (p *Player) Start(cfg BeatConfig) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.initialized {
		return nil
	}

	ctrl, format, err := loopStream(cfg)
	if err != nil {
		return err
	}
	return p.play(ctrl, format, nil)
}

// StartFile is Start for an OGG Vorbis soundtrack.
func (p *Player) StartFile(path string, volume float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.initialized {
		return nil
	}

	ctrl, format, closer, err := fileStream(path, volume)
	if err != nil {
		return err
	}
	if err := p.play(ctrl, format, closer); err != nil {
		closer.Close()
		return err
	}
	log.Printf("✅ Background music loaded: %s (%d Hz, %d channels)", path, format.SampleRate, format.NumChannels)
	return nil
}

func (p *Player) play(ctrl *beep.Ctrl, format beep.Format, closer io.Closer) error {
	// 100ms buffer
	if err := speaker.Init(format.SampleRate, format.SampleRate.N(100*time.Millisecond)); err != nil {
		return errors.Wrap(err, "init speaker")
	}

	speaker.Play(ctrl)
	p.ctrl = ctrl
	p.file = closer
	p.initialized = true
	return nil
}

// Toggle pauses or resumes the loop and reports whether it is now playing.
func (p *Player) Toggle() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.initialized {
		return false
	}
	speaker.Lock()
	p.ctrl.Paused = !p.ctrl.Paused
	paused := p.ctrl.Paused
	speaker.Unlock()
	return !paused
}

// Close stops playback and releases the device.
func (p *Player) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.initialized {
		return
	}
	speaker.Clear()
	speaker.Close()
	if p.file != nil {
		p.file.Close()
		p.file = nil
	}
	p.initialized = false
}
