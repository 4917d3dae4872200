package gps

import (
	"math"
	"sort"
	"time"
)

// updateReplayPosition puts the emitter on the track point due after elapsed
// simulated time and points it at the next one, so the tick that follows
// dead-reckons along the recorded leg.
func (s *Simulator) updateReplayPosition(elapsed time.Duration) error {
	points := s.replayPoints
	if len(points) == 0 || (s.replayCompleted && !s.config.ReplayLoop) {
		return nil
	}

	progress := time.Duration(float64(elapsed-s.replayOffset) * s.config.ReplaySpeed)
	useTimestamps := hasSequentialTimestamps(points)

	var index int
	if useTimestamps {
		target := points[0].Time.Add(progress)
		index = sort.Search(len(points), func(i int) bool { return points[i].Time.After(target) }) - 1
		if target.After(points[len(points)-1].Time) {
			index = len(points)
		}
	} else {
		// one point per second at 1x
		index = int(progress / time.Second)
	}

	if index >= len(points) {
		s.replayCompleted = true
		if !s.config.ReplayLoop {
			return nil
		}
		s.replayOffset = elapsed
		index = 0
	}
	if index < 0 {
		index = 0
	}
	s.replayIndex = index

	current := points[index]
	if err := s.emitter.Reposition(current.Lat, current.Lon, current.Elevation); err != nil {
		return err
	}

	course, speed := s.emitter.Fix().Course, 0.0
	if index < len(points)-1 {
		next := points[index+1]
		legSeconds := 1.0
		if useTimestamps {
			legSeconds = next.Time.Sub(current.Time).Seconds()
		}
		if legSeconds > 0 {
			distance := distanceMeters(current.Lat, current.Lon, next.Lat, next.Lon)
			speed = distance / legSeconds * metersPerSecondToKnots * s.config.ReplaySpeed
			course = initialBearing(current.Lat, current.Lon, next.Lat, next.Lon)
		}
	}
	speed = math.Round(math.Min(speed, maxSpeedKnots)*1000) / 1000

	return s.emitter.SetMotion(course, speed)
}

// hasSequentialTimestamps reports whether point times never go backwards
// and the track spans some time at all
func hasSequentialTimestamps(points []TrackPoint) bool {
	if len(points) < 2 {
		return false
	}
	for i := 0; i < len(points)-1; i++ {
		if points[i+1].Time.Before(points[i].Time) {
			return false
		}
	}
	return points[len(points)-1].Time.After(points[0].Time)
}
