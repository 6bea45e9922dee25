// Package alarm provides the completion side effects: a synthesized
// audible chime and an OS-level notification. Both are best-effort and
// never block or fail the state transition that triggered them.
package alarm

import (
	"log/slog"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/generators"
	"github.com/faiface/beep/speaker"
)

const (
	sampleRate = beep.SampleRate(44100)

	// The chime is a fixed-frequency tone with a fast attack/decay
	// envelope, repeated three times at a 600ms cadence.
	toneHz      = 880
	toneLen     = 180 * time.Millisecond
	attackLen   = 8 * time.Millisecond
	repeatEvery = 600 * time.Millisecond
	repeats     = 3
)

// Ringer synthesizes the completion chime programmatically; no media
// files are involved. If the audio device cannot be initialized the
// ringer degrades to silence without surfacing an error.
type Ringer struct {
	enabled bool
	logger  *slog.Logger

	initOnce sync.Once
	initErr  error
}

// NewRinger creates a Ringer. When enabled is false, Ring is a no-op.
func NewRinger(enabled bool, logger *slog.Logger) *Ringer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Ringer{enabled: enabled, logger: logger}
}

// Ring plays the chime asynchronously. The speaker is initialized
// lazily on first use; failures are logged once and swallowed.
func (r *Ringer) Ring() {
	if !r.enabled {
		return
	}
	go func() {
		r.initOnce.Do(func() {
			r.initErr = speaker.Init(sampleRate, sampleRate.N(time.Second/10))
			if r.initErr != nil {
				r.logger.Warn("audio unavailable, alarm will be silent", "error", r.initErr)
			}
		})
		if r.initErr != nil {
			return
		}
		chime, err := buildChime(sampleRate)
		if err != nil {
			r.logger.Warn("synthesize chime", "error", err)
			return
		}
		speaker.Play(chime)
	}()
}

// buildChime assembles the three-beep sequence.
func buildChime(sr beep.SampleRate) (beep.Streamer, error) {
	var parts []beep.Streamer
	for i := 0; i < repeats; i++ {
		tone, err := generators.SinTone(sr, toneHz)
		if err != nil {
			return nil, err
		}
		shaped := &envelope{
			inner:  tone,
			attack: sr.N(attackLen),
			total:  sr.N(toneLen),
		}
		parts = append(parts, beep.Take(sr.N(toneLen), shaped))
		if i < repeats-1 {
			parts = append(parts, beep.Silence(sr.N(repeatEvery-toneLen)))
		}
	}
	return beep.Seq(parts...), nil
}

// envelope shapes a streamer with a linear attack followed by a linear
// decay to silence, avoiding the click of a hard-edged tone.
type envelope struct {
	inner  beep.Streamer
	pos    int
	attack int
	total  int
}

func (e *envelope) Stream(samples [][2]float64) (int, bool) {
	n, ok := e.inner.Stream(samples)
	for i := 0; i < n; i++ {
		g := e.gainAt(e.pos + i)
		samples[i][0] *= g
		samples[i][1] *= g
	}
	e.pos += n
	return n, ok
}

func (e *envelope) Err() error { return e.inner.Err() }

func (e *envelope) gainAt(pos int) float64 {
	if pos >= e.total {
		return 0
	}
	if pos < e.attack {
		return float64(pos) / float64(e.attack)
	}
	// Decay from full gain at the end of the attack down to zero.
	return float64(e.total-pos) / float64(e.total-e.attack)
}
