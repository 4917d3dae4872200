package gps

import (
	"fmt"
	"math"
	"time"
)

const (
	earthRadiusMeters      = 6371000.0
	knotsToMetersPerSecond = 0.514444
	metersPerSecondToKnots = 1.94384

	// HeadingStep and SpeedStep bound how far the helm moves toward a
	// commanded course or speed on each tick.
	HeadingStep = 3.0
	SpeedStep   = 3.0
)

// Validate checks that the fix can be represented in NMEA fields
func (f Fix) Validate() error {
	switch {
	case !finite(f.Latitude) || math.Abs(f.Latitude) > 90:
		return fmt.Errorf("%w: latitude %v", ErrValueOutOfRange, f.Latitude)
	case !finite(f.Longitude) || math.Abs(f.Longitude) > 180:
		return fmt.Errorf("%w: longitude %v", ErrValueOutOfRange, f.Longitude)
	case !finite(f.Altitude):
		return fmt.Errorf("%w: altitude %v", ErrValueOutOfRange, f.Altitude)
	case !finite(f.Speed) || f.Speed < 0:
		return fmt.Errorf("%w: speed %v", ErrValueOutOfRange, f.Speed)
	case !finite(f.Course) || f.Course < 0 || f.Course >= 360:
		return fmt.Errorf("%w: course %v", ErrValueOutOfRange, f.Course)
	}
	return nil
}

// Advance integrates the fix over elapsed time. Position moves along a
// great circle on a spherical Earth; speed and course are left alone.
func Advance(f Fix, elapsed time.Duration) (Fix, error) {
	if elapsed < 0 {
		return f, fmt.Errorf("%w: negative elapsed time %v", ErrValueOutOfRange, elapsed)
	}
	if err := f.Validate(); err != nil {
		return f, err
	}

	next := f
	next.Time = f.Time.Add(elapsed)
	if f.Speed > 0 && elapsed > 0 {
		distance := f.Speed * knotsToMetersPerSecond * elapsed.Seconds()
		next.Latitude, next.Longitude = destination(f.Latitude, f.Longitude, distance, f.Course)
	}
	return next, nil
}

// Steer turns current toward target by at most step degrees, taking the
// shorter way around. The result is in [0, 360) rounded to 0.1 degree.
func Steer(current, target, step float64) float64 {
	// signed turn in [-180, 180)
	turn := math.Mod(target-current+540, 360) - 180
	switch {
	case math.Abs(turn) <= step:
		current = target
	case turn > 0:
		current += step
	default:
		current -= step
	}
	return normalizeCourse(math.Round(current*10) / 10)
}

// Approach moves current speed toward target by at most step knots
func Approach(current, target, step float64) float64 {
	diff := target - current
	switch {
	case math.Abs(diff) <= step:
		current = target
	case diff > 0:
		current += step
	default:
		current -= step
	}
	return math.Round(current*1000) / 1000
}

func normalizeCourse(c float64) float64 {
	c = math.Mod(c, 360)
	if c < 0 {
		c += 360
	}
	if c >= 360 {
		c = 0
	}
	return c
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// distanceMeters calculates distance between two points using Haversine formula
func distanceMeters(lat1, lon1, lat2, lon2 float64) float64 {
	lat1Rad := lat1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	deltaLat := (lat2 - lat1) * math.Pi / 180
	deltaLon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(deltaLon/2)*math.Sin(deltaLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusMeters * c
}

// destination calculates a new lat/lon position given starting point, distance, and bearing
func destination(lat, lon, distance, bearing float64) (newLat, newLon float64) {
	latRad := lat * math.Pi / 180.0
	lonRad := lon * math.Pi / 180.0
	bearingRad := bearing * math.Pi / 180.0

	angularDistance := distance / earthRadiusMeters

	newLatRad := math.Asin(math.Sin(latRad)*math.Cos(angularDistance) +
		math.Cos(latRad)*math.Sin(angularDistance)*math.Cos(bearingRad))

	newLonRad := lonRad + math.Atan2(
		math.Sin(bearingRad)*math.Sin(angularDistance)*math.Cos(latRad),
		math.Cos(angularDistance)-math.Sin(latRad)*math.Sin(newLatRad))

	newLat = newLatRad * 180.0 / math.Pi
	newLon = newLonRad * 180.0 / math.Pi

	// Normalize longitude to -180 to +180 range
	for newLon > 180 {
		newLon -= 360
	}
	for newLon < -180 {
		newLon += 360
	}

	return newLat, newLon
}

// initialBearing calculates the bearing from point 1 to point 2
func initialBearing(lat1, lon1, lat2, lon2 float64) float64 {
	lat1Rad := lat1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	deltaLonRad := (lon2 - lon1) * math.Pi / 180

	y := math.Sin(deltaLonRad) * math.Cos(lat2Rad)
	x := math.Cos(lat1Rad)*math.Sin(lat2Rad) - math.Sin(lat1Rad)*math.Cos(lat2Rad)*math.Cos(deltaLonRad)

	return normalizeCourse(math.Atan2(y, x) * 180 / math.Pi)
}
