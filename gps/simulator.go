package gps

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/mohae/deepcopy"
)

// gpxFlushEvery is how many recorded fixes go by between GPX file rewrites
const gpxFlushEvery = 10

// Simulator drives an Emitter on a ticker and hands every batch to the NMEA
// writer and the registered callbacks.
type Simulator struct {
	mu         sync.RWMutex
	config     Config
	emitter    *Emitter
	simStart   time.Time // time of the first fix
	nmeaWriter io.Writer
	gpxWriter  *GPXWriter
	// Replay mode fields
	replayPoints    []TrackPoint
	replayIndex     int
	replayOffset    time.Duration
	replayCompleted bool
	// Scenario fields
	scenario    []ScenarioCommand
	nextCommand int
	lastBatch   Batch
	lastError   error
	// Control fields
	running   bool
	startTime time.Time
	ctx       context.Context
	cancel    context.CancelFunc
	ticker    *time.Ticker
	callbacks []func(NMEAData)
}

// NewSimulator creates a new emulator instance. Nothing is emitted until
// Start or Step is called.
func NewSimulator(config Config) (*Simulator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	start := config.StartTime
	if start.IsZero() || config.WallClock {
		start = time.Now().UTC()
		if !config.WallClock {
			start = start.Truncate(time.Second)
		}
	}

	sim := &Simulator{
		config:    config,
		simStart:  start,
		scenario:  config.sortedScenario(),
		callbacks: make([]func(NMEAData), 0),
	}

	// Load GPX file for replay mode
	if config.ReplayFile != "" {
		points, err := ReadGPXFile(config.ReplayFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load replay file: %w", err)
		}
		sim.replayPoints = points
		config.Latitude = points[0].Lat
		config.Longitude = points[0].Lon
		config.Altitude = points[0].Elevation
	}

	emitter, err := NewEmitter(config.EmitterConfig(start))
	if err != nil {
		return nil, err
	}
	if config.TimeToLock > 0 {
		emitter.SetLocked(false)
	}
	sim.emitter = emitter

	if config.GPXEnabled && config.GPXFile != "" {
		gpxWriter, err := NewGPXWriter(config.GPXFile)
		if err != nil {
			return nil, fmt.Errorf("failed to create GPX writer: %w", err)
		}
		sim.gpxWriter = gpxWriter
	}

	return sim, nil
}

// SetNMEAWriter sets the writer every batch is written to
func (s *Simulator) SetNMEAWriter(writer io.Writer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nmeaWriter = writer
}

// AddCallback registers a function called with each batch. Callbacks run
// on their own goroutine.
func (s *Simulator) AddCallback(callback func(NMEAData)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callbacks = append(s.callbacks, callback)
}

// Start starts ticking at the configured output rate
func (s *Simulator) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrSimulatorAlreadyRunning
	}

	// Stop closed the track; a restart keeps appending to it
	if s.gpxWriter != nil {
		if err := s.gpxWriter.Reopen(); err != nil {
			return err
		}
	}

	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.ticker = time.NewTicker(s.config.OutputRate)
	s.running = true
	s.startTime = time.Now()

	go s.run(s.ctx)
	return nil
}

// Stop stops the ticker and closes the GPX track
func (s *Simulator) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return ErrSimulatorNotRunning
	}

	s.cancel()
	s.ticker.Stop()
	s.running = false

	if s.gpxWriter != nil {
		if err := s.gpxWriter.Close(); err != nil {
			log.Printf("gps: closing GPX track: %v", err)
		}
	}

	return nil
}

// IsRunning returns whether the simulator is currently running
func (s *Simulator) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// GetStatus returns a snapshot that shares no memory with the simulator
func (s *Simulator) GetStatus() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var elapsedTime time.Duration
	if s.running {
		elapsedTime = time.Since(s.startTime)
	}

	course, speed := s.emitter.Targets()
	status := Status{
		Running:         s.running,
		StartTime:       s.startTime,
		ElapsedTime:     elapsedTime,
		Ticks:           s.emitter.Sequence(),
		Locked:          s.emitter.Locked(),
		Epoch:           s.emitter.Epoch(),
		TargetCourse:    course,
		TargetSpeed:     speed,
		Config:          s.config,
		ReplayIndex:     s.replayIndex,
		ReplayTotal:     len(s.replayPoints),
		ReplayCompleted: s.replayCompleted,
	}
	if s.lastError != nil {
		status.LastError = s.lastError.Error()
	}

	return deepcopy.Copy(status).(Status)
}

// UpdateConfig applies a new configuration while running. The output rate
// and the commanded course and speed take effect at once; the helm turns
// toward the new course gradually. Other fields apply on the next
// NewSimulator.
func (s *Simulator) UpdateConfig(newConfig Config) error {
	if err := newConfig.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.emitter.Command(newConfig.Course, newConfig.Speed); err != nil {
		return err
	}

	oldRate := s.config.OutputRate
	s.config = newConfig

	if s.running && oldRate != newConfig.OutputRate {
		s.ticker.Reset(newConfig.OutputRate)
	}

	return nil
}

// Steer commands a new course and speed, reached at the helm's turn and
// acceleration rate.
func (s *Simulator) Steer(course, speed float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.emitter.Command(course, speed)
}

// LastBatch returns the most recent successful batch
func (s *Simulator) LastBatch() Batch {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastBatch
}

// run is the main simulation loop
func (s *Simulator) run(ctx context.Context) {
	s.mu.RLock()
	ticks := s.ticker.C
	duration := s.config.Duration
	s.mu.RUnlock()

	var durationChan <-chan time.Time
	if duration > 0 {
		durationTimer := time.NewTimer(duration)
		durationChan = durationTimer.C
		defer durationTimer.Stop()
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticks:
			if _, err := s.tick(); err != nil && !errors.Is(err, ErrSimulatorNotRunning) {
				log.Printf("gps: tick failed: %v", err)
			}

			if s.replayDone() {
				s.Stop()
				return
			}
		case <-durationChan:
			s.Stop()
			return
		}
	}
}

func (s *Simulator) replayDone() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config.ReplayFile != "" && !s.config.ReplayLoop && s.replayCompleted
}

// Step runs one tick: lock state, scenario, replay, then the emitter. The
// batch is written and passed to callbacks. A writer error is logged and
// does not fail the step.
func (s *Simulator) Step() (Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.step()
}

// tick is Step for the run loop. A tick that loses the race with Stop is
// dropped.
func (s *Simulator) tick() (Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return Batch{}, ErrSimulatorNotRunning
	}
	return s.step()
}

func (s *Simulator) step() (Batch, error) {
	elapsed := s.emitter.Fix().Time.Sub(s.simStart)

	if !s.emitter.Locked() && elapsed >= s.config.TimeToLock {
		s.emitter.SetLocked(true)
	}

	for s.nextCommand < len(s.scenario) && s.scenario[s.nextCommand].At <= elapsed {
		cmd := s.scenario[s.nextCommand]
		if err := s.emitter.Command(cmd.Course, cmd.Speed); err != nil {
			log.Printf("gps: scenario command at %v: %v", cmd.At, err)
		}
		s.nextCommand++
	}

	if s.config.ReplayFile != "" {
		if err := s.updateReplayPosition(elapsed); err != nil {
			s.lastError = err
			return Batch{}, fmt.Errorf("replay: %w", err)
		}
	}

	var batch Batch
	var err error
	if s.config.WallClock {
		batch, err = s.emitter.TickAt(time.Now())
	} else {
		batch, err = s.emitter.Tick()
	}
	if err != nil {
		s.lastError = err
		return Batch{}, err
	}
	s.lastError = nil
	s.lastBatch = batch

	s.updateGPX(batch.Epoch)
	s.outputNMEA(batch)

	return batch, nil
}

// updateGPX adds the fix to the GPX track while the receiver has a fix
func (s *Simulator) updateGPX(ep Epoch) {
	if s.gpxWriter == nil || !ep.HasFix() {
		return
	}
	s.gpxWriter.AddFix(ep.Fix)
	if s.gpxWriter.PointCount()%gpxFlushEvery == 0 {
		if err := s.gpxWriter.Flush(); err != nil {
			log.Printf("gps: writing GPX track: %v", err)
		}
	}
}

// outputNMEA writes the batch and notifies callbacks
func (s *Simulator) outputNMEA(batch Batch) {
	if s.nmeaWriter != nil {
		if _, err := s.nmeaWriter.Write(batch.Bytes()); err != nil {
			log.Printf("gps: writing NMEA: %v", err)
		}
	}

	data := NMEAData{
		Sentences: batch.Lines(),
		Epoch:     batch.Epoch,
		Sequence:  batch.Sequence,
		Timestamp: time.Now(),
	}
	for _, callback := range s.callbacks {
		go callback(data)
	}
}
