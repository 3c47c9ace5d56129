// Package audio synthesizes the crawler's procedural synthwave loop:
// four-on-the-floor kick, backbeat snare, random hats and a square-wave
// bass that is re-rolled every bar and ducked under the kick.
package audio

import (
	"io"
	"math"
	"math/rand"

	"bone-crawler/internal/config"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"
	"github.com/gopxl/beep/wav"
	"github.com/pkg/errors"
)

// ErrInvalidBeat is returned for non-positive tempo, rate or length.
var ErrInvalidBeat = errors.New("invalid beat settings")

const (
	stepsPerBeat = 4 // 16th notes
	stepsPerBar  = 16

	// sidechain ducks the bass on kick steps
	sidechain = 0.35
	// hatDensity is the chance a step gets a hi-hat
	hatDensity = 0.65
	// octaveDown is the chance a bass note drops an octave
	octaveDown = 0.25
)

// bassScale is a minor pentatonic on A1.
var bassScale = [...]float64{55, 65.4, 73.4, 82.4, 98}

var (
	kickPattern  = [stepsPerBar]bool{0: true, 4: true, 8: true, 12: true}
	snarePattern = [stepsPerBar]bool{4: true, 12: true}
)

// BeatConfig describes one rendered loop.
type BeatConfig struct {
	SampleRate int
	BPM        float64
	Bars       int
	Volume     float64 // 0.0 to 1.0
	Seed       int64
}

// DefaultBeatConfig returns four bars at 128 BPM.
func DefaultBeatConfig() BeatConfig {
	return BeatConfig{
		SampleRate: 44100,
		BPM:        128,
		Bars:       4,
		Volume:     1,
		Seed:       1,
	}
}

// BeatConfigFrom takes the audio section and the level seed, so a given
// maze always ships with the same groove.
func BeatConfigFrom(app config.AppConfig) BeatConfig {
	return BeatConfig{
		SampleRate: app.Audio.SampleRate,
		BPM:        app.Audio.BPM,
		Bars:       app.Audio.Bars,
		Volume:     app.Audio.Volume,
		Seed:       app.Level.Seed,
	}
}

func (c BeatConfig) validate() error {
	if c.SampleRate <= 0 || c.BPM <= 0 || c.Bars <= 0 {
		return errors.Wrapf(ErrInvalidBeat, "rate=%d bpm=%v bars=%d", c.SampleRate, c.BPM, c.Bars)
	}
	if c.Volume < 0 || c.Volume > 1 {
		return errors.Wrapf(ErrInvalidBeat, "volume %v outside [0, 1]", c.Volume)
	}
	return nil
}

// Beat is a finite, seekable mono stream of the loop. The same config
// always produces the same samples.
type Beat struct {
	cfg            BeatConfig
	samplesPerStep int
	total          int

	rng  *rand.Rand
	pos  int
	hats [stepsPerBar]bool
	bass [stepsPerBar]float64
}

// NewBeat prepares a beat. Samples are synthesized as they are streamed.
func NewBeat(cfg BeatConfig) (*Beat, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	samplesPerBeat := int(float64(cfg.SampleRate) * 60 / cfg.BPM)
	sps := samplesPerBeat / stepsPerBeat
	if sps < 1 {
		return nil, errors.Wrapf(ErrInvalidBeat, "tempo %v too fast for %d Hz", cfg.BPM, cfg.SampleRate)
	}

	b := &Beat{
		cfg:            cfg,
		samplesPerStep: sps,
		total:          sps * stepsPerBar * cfg.Bars,
	}
	b.reset()
	return b, nil
}

func (b *Beat) reset() {
	b.rng = rand.New(rand.NewSource(b.cfg.Seed))
	b.pos = 0
	for i := range b.hats {
		b.hats[i] = b.rng.Float64() < hatDensity
	}
}

// rollBass picks a new bass line for the coming bar.
func (b *Beat) rollBass() {
	for i := range b.bass {
		f := bassScale[b.rng.Intn(len(bassScale))]
		if b.rng.Float64() < octaveDown {
			f *= 0.5
		}
		b.bass[i] = f
	}
}

// Format is the stream format: mono, 16-bit.
func (b *Beat) Format() beep.Format {
	return beep.Format{
		SampleRate:  beep.SampleRate(b.cfg.SampleRate),
		NumChannels: 1,
		Precision:   2,
	}
}

// SamplesPerStep is the length of one 16th note in samples.
func (b *Beat) SamplesPerStep() int { return b.samplesPerStep }

// Len implements beep.StreamSeeker.
func (b *Beat) Len() int { return b.total }

// Position implements beep.StreamSeeker.
func (b *Beat) Position() int { return b.pos }

// Seek implements beep.StreamSeeker. Noise and bass draws depend on
// everything before them, so seeking replays the stream from the start.
func (b *Beat) Seek(p int) error {
	if p < 0 || p > b.total {
		return errors.Errorf("seek %d outside [0, %d]", p, b.total)
	}
	b.reset()
	for b.pos < p {
		b.next()
	}
	return nil
}

// Err implements beep.Streamer.
func (b *Beat) Err() error { return nil }

// Stream implements beep.Streamer.
func (b *Beat) Stream(samples [][2]float64) (n int, ok bool) {
	if b.pos >= b.total {
		return 0, false
	}
	for n < len(samples) && b.pos < b.total {
		v := b.next()
		samples[n][0] = v
		samples[n][1] = v
		n++
	}
	return n, true
}

// next synthesizes the sample at pos and advances.
func (b *Beat) next() float64 {
	i := b.pos
	b.pos++

	step := (i / b.samplesPerStep) % stepsPerBar
	stepSample := i % b.samplesPerStep
	t := float64(stepSample) / float64(b.cfg.SampleRate)

	if step == 0 && stepSample == 0 {
		b.rollBass()
	}

	var sample float64
	if kickPattern[step] {
		sample += math.Sin(2*math.Pi*50*t) * math.Exp(-t*30) * 0.9
	}
	if snarePattern[step] {
		sample += (b.rng.Float64()*2 - 1) * math.Exp(-t*45) * 0.4
	}
	if b.hats[step] {
		sample += (b.rng.Float64()*2 - 1) * math.Exp(-t*90) * 0.15
	}

	bass := square(2*math.Pi*b.bass[step]*t) * math.Exp(-t*8) * 0.3
	if kickPattern[step] {
		bass *= sidechain
	}
	sample += bass

	return math.Max(-1, math.Min(1, sample))
}

func square(phase float64) float64 {
	s := math.Sin(phase)
	switch {
	case s > 0:
		return 1
	case s < 0:
		return -1
	}
	return 0
}

// WriteBeat renders the loop described by cfg as a 16-bit mono WAV.
func WriteBeat(w io.WriteSeeker, cfg BeatConfig) error {
	beat, err := NewBeat(cfg)
	if err != nil {
		return err
	}
	s := &effects.Gain{Streamer: beat, Gain: cfg.Volume - 1}
	return errors.Wrap(wav.Encode(w, s, beat.Format()), "encode wav")
}

// RenderWAV renders the loop into memory.
func RenderWAV(cfg BeatConfig) ([]byte, error) {
	var buf seekBuffer
	if err := WriteBeat(&buf, cfg); err != nil {
		return nil, err
	}
	return buf.data, nil
}
