package gps

import (
	"fmt"
	"strings"
	"time"
)

const maxSpeedKnots = 999

// EmitterConfig describes the receiver the emitter pretends to be
type EmitterConfig struct {
	Talker     string
	Start      Fix
	Interval   time.Duration // simulated time per Tick
	Quality    Quality
	Satellites SatelliteConfig
	Seed       int64
	VTG        bool
}

// Emitter turns the navigation state and satellite model into one batch of
// sentences per tick. It is not safe for concurrent use.
type Emitter struct {
	talker       string
	interval     time.Duration
	quality      Quality
	builders     []Builder
	sats         *SatelliteModel
	fix          Fix
	targetCourse float64
	targetSpeed  float64
	sequence     uint64
}

// NewEmitter validates cfg and returns an emitter positioned at cfg.Start
func NewEmitter(cfg EmitterConfig) (*Emitter, error) {
	if cfg.Talker == "" {
		cfg.Talker = DefaultTalker
	}
	if !validTalker(cfg.Talker) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTalker, cfg.Talker)
	}
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOutputRate, cfg.Interval)
	}
	if err := cfg.Start.Validate(); err != nil {
		return nil, fmt.Errorf("start fix: %w", err)
	}
	if cfg.Start.Speed > maxSpeedKnots {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSpeed, cfg.Start.Speed)
	}

	sats, err := NewSatelliteModel(cfg.Satellites, cfg.Seed)
	if err != nil {
		return nil, err
	}

	start := cfg.Start
	start.Time = start.Time.UTC()

	return &Emitter{
		talker:       cfg.Talker,
		interval:     cfg.Interval,
		quality:      cfg.Quality,
		builders:     StandardBuilders(cfg.VTG),
		sats:         sats,
		fix:          start,
		targetCourse: start.Course,
		targetSpeed:  start.Speed,
	}, nil
}

// Tick advances the simulated clock by the configured interval
func (e *Emitter) Tick() (Batch, error) {
	return e.step(e.interval)
}

// TickAt advances the fix to now. now must not be before the current fix time.
func (e *Emitter) TickAt(now time.Time) (Batch, error) {
	elapsed := now.Sub(e.fix.Time)
	if elapsed < 0 {
		return Batch{}, fmt.Errorf("%w: clock moved back %v", ErrValueOutOfRange, -elapsed)
	}
	return e.step(elapsed)
}

// step commits the new fix only when every sentence was built
func (e *Emitter) step(elapsed time.Duration) (Batch, error) {
	next, err := Advance(e.fix, elapsed)
	if err != nil {
		return Batch{}, err
	}
	next.Course = Steer(next.Course, e.targetCourse, HeadingStep)
	next.Speed = Approach(next.Speed, e.targetSpeed, SpeedStep)

	sats, err := e.sats.Next()
	if err != nil {
		return Batch{}, err
	}

	batch, err := e.build(Epoch{Fix: next, Satellites: sats, Quality: e.quality})
	if err != nil {
		return Batch{}, err
	}

	e.fix = next
	e.sequence++
	batch.Sequence = e.sequence
	return batch, nil
}

// Render formats ep without touching the emitter state. Rendering the same
// epoch twice gives byte-identical output.
func (e *Emitter) Render(ep Epoch) (Batch, error) {
	batch, err := e.build(ep)
	if err != nil {
		return Batch{}, err
	}
	batch.Sequence = e.sequence
	return batch, nil
}

// Epoch returns the snapshot the next Render would see without ticking
func (e *Emitter) Epoch() Epoch {
	return Epoch{Fix: e.fix, Satellites: e.sats.Set(), Quality: e.quality}
}

func (e *Emitter) build(ep Epoch) (Batch, error) {
	if err := ep.Fix.Validate(); err != nil {
		return Batch{}, err
	}
	if n := ep.Satellites.UsedCount(); n > maxUsedSats {
		return Batch{}, fmt.Errorf("%w: %d satellites used in fix", ErrInvalidSatelliteCount, n)
	}

	var sentences []Sentence
	for _, b := range e.builders {
		out, err := b.Build(e.talker, ep)
		if err != nil {
			return Batch{}, fmt.Errorf("build %s: %w", b.ID(), err)
		}
		sentences = append(sentences, out...)
	}
	return Batch{Epoch: ep, Sentences: sentences}, nil
}

// Command sets the course and speed the helm steers toward
func (e *Emitter) Command(course, speed float64) error {
	if !finite(course) || course < 0 || course >= 360 {
		return fmt.Errorf("%w: %v", ErrInvalidCourse, course)
	}
	if !finite(speed) || speed < 0 || speed > maxSpeedKnots {
		return fmt.Errorf("%w: %v", ErrInvalidSpeed, speed)
	}
	e.targetCourse = course
	e.targetSpeed = speed
	return nil
}

// SetMotion changes course and speed at once, bypassing the helm
func (e *Emitter) SetMotion(course, speed float64) error {
	if err := e.Command(course, speed); err != nil {
		return err
	}
	e.fix.Course = course
	e.fix.Speed = speed
	return nil
}

// Reposition moves the fix to a new point, as a replayed track does
func (e *Emitter) Reposition(lat, lon, alt float64) error {
	next := e.fix
	next.Latitude, next.Longitude, next.Altitude = lat, lon, alt
	if err := next.Validate(); err != nil {
		return err
	}
	e.fix = next
	return nil
}

// SetLocked switches between searching for satellites and tracking them
func (e *Emitter) SetLocked(locked bool) {
	e.sats.SetLocked(locked)
}

// Locked reports whether the satellite model is tracking
func (e *Emitter) Locked() bool {
	return e.sats.Locked()
}

// Fix returns the current navigation state
func (e *Emitter) Fix() Fix {
	return e.fix
}

// Satellites returns the current constellation
func (e *Emitter) Satellites() SatelliteSet {
	return e.sats.Set()
}

// Targets returns the commanded course and speed
func (e *Emitter) Targets() (course, speed float64) {
	return e.targetCourse, e.targetSpeed
}

// Sequence returns the number of committed ticks
func (e *Emitter) Sequence() uint64 {
	return e.sequence
}

func validTalker(t string) bool {
	return len(t) == 2 && strings.ToUpper(t) == t && t[0] >= 'A' && t[0] <= 'Z' && t[1] >= 'A' && t[1] <= 'Z'
}
