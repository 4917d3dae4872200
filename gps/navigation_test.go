package gps

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestAdvanceNorth(t *testing.T) {
	start := Fix{
		Latitude:  54.5,
		Longitude: 19.3,
		Speed:     60,
		Course:    0,
		Time:      time.Date(2024, 3, 15, 6, 0, 0, 0, time.UTC),
	}

	next, err := Advance(start, time.Hour)
	if err != nil {
		t.Fatalf("Advance failed: %v", err)
	}

	distance := 60 * knotsToMetersPerSecond * 3600
	wantLat := start.Latitude + distance/earthRadiusMeters*180/math.Pi
	if math.Abs(next.Latitude-wantLat) > 1e-9 {
		t.Errorf("Latitude = %v, want %v", next.Latitude, wantLat)
	}
	if math.Abs(next.Longitude-start.Longitude) > 1e-9 {
		t.Errorf("Longitude drifted to %v", next.Longitude)
	}
	if !next.Time.Equal(start.Time.Add(time.Hour)) {
		t.Errorf("Time = %v, want one hour later", next.Time)
	}
	if next.Speed != start.Speed || next.Course != start.Course {
		t.Errorf("Advance changed speed or course: %+v", next)
	}
}

func TestAdvanceDistanceMatchesSpeed(t *testing.T) {
	start := Fix{Latitude: 54.5, Longitude: 19 + 20.0/60, Speed: 10.5, Course: 90, Time: time.Now()}

	next, err := Advance(start, 10*time.Second)
	if err != nil {
		t.Fatalf("Advance failed: %v", err)
	}

	got := distanceMeters(start.Latitude, start.Longitude, next.Latitude, next.Longitude)
	want := 10.5 * knotsToMetersPerSecond * 10
	if math.Abs(got-want) > 0.01 {
		t.Errorf("Moved %v m, want %v m", got, want)
	}
	if next.Longitude <= start.Longitude {
		t.Errorf("Heading east should increase longitude: %v -> %v", start.Longitude, next.Longitude)
	}
}

func TestAdvanceCrossesAntimeridian(t *testing.T) {
	start := Fix{Latitude: 0, Longitude: 179.999, Speed: 100, Course: 90, Time: time.Now()}

	next, err := Advance(start, time.Minute)
	if err != nil {
		t.Fatalf("Advance failed: %v", err)
	}
	if next.Longitude > -179 || next.Longitude < -180 {
		t.Errorf("Longitude %v should have wrapped to just east of -180", next.Longitude)
	}
}

func TestAdvanceStationary(t *testing.T) {
	start := Fix{Latitude: 10, Longitude: 20, Speed: 0, Course: 45, Time: time.Now()}

	next, err := Advance(start, time.Second)
	if err != nil {
		t.Fatalf("Advance failed: %v", err)
	}
	if next.Latitude != start.Latitude || next.Longitude != start.Longitude {
		t.Errorf("Stationary fix moved to %v,%v", next.Latitude, next.Longitude)
	}
}

func TestAdvanceErrors(t *testing.T) {
	valid := Fix{Latitude: 10, Longitude: 20, Speed: 5, Course: 45, Time: time.Now()}

	if _, err := Advance(valid, -time.Second); !errors.Is(err, ErrValueOutOfRange) {
		t.Errorf("Negative elapsed: got %v, want ErrValueOutOfRange", err)
	}

	tests := []struct {
		name   string
		mutate func(*Fix)
	}{
		{"latitude", func(f *Fix) { f.Latitude = 91 }},
		{"longitude", func(f *Fix) { f.Longitude = -180.5 }},
		{"altitude", func(f *Fix) { f.Altitude = math.NaN() }},
		{"speed", func(f *Fix) { f.Speed = -1 }},
		{"course", func(f *Fix) { f.Course = 360 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := valid
			tt.mutate(&f)
			if _, err := Advance(f, time.Second); !errors.Is(err, ErrValueOutOfRange) {
				t.Errorf("got %v, want ErrValueOutOfRange", err)
			}
		})
	}
}

func TestSteer(t *testing.T) {
	tests := []struct {
		name                  string
		current, target, step float64
		expected              float64
	}{
		{"already there", 90, 90, 3, 90},
		{"within one step", 90, 92, 3, 92},
		{"turn right", 90, 180, 3, 93},
		{"turn left", 90, 10, 3, 87},
		{"right through north", 350, 10, 3, 353},
		{"left through north", 10, 350, 3, 7},
		{"short hop through north", 359, 1, 3, 1},
		{"wrap below zero", 1, 300, 3, 358},
		{"rounds to a tenth", 10.04, 50, 3, 13},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Steer(tt.current, tt.target, tt.step)
			if math.Abs(got-tt.expected) > 1e-9 {
				t.Errorf("Steer(%v, %v, %v) = %v, want %v", tt.current, tt.target, tt.step, got, tt.expected)
			}
		})
	}
}

func TestSteerConverges(t *testing.T) {
	course := 270.0
	for i := 0; i < 200 && course != 45; i++ {
		course = Steer(course, 45, HeadingStep)
		if course < 0 || course >= 360 {
			t.Fatalf("Course %v left [0, 360)", course)
		}
	}
	if course != 45 {
		t.Errorf("Steer never reached 45, stuck at %v", course)
	}
}

func TestApproach(t *testing.T) {
	tests := []struct {
		current, target, expected float64
	}{
		{10.5, 10.5, 10.5},
		{10.5, 20, 13.5},
		{10.5, 0, 7.5},
		{10.5, 12, 12},
		{1, 0, 0},
	}

	for _, tt := range tests {
		if got := Approach(tt.current, tt.target, SpeedStep); math.Abs(got-tt.expected) > 1e-9 {
			t.Errorf("Approach(%v, %v) = %v, want %v", tt.current, tt.target, got, tt.expected)
		}
	}
}

func TestInitialBearing(t *testing.T) {
	if b := initialBearing(0, 0, 1, 0); math.Abs(b) > 1e-9 {
		t.Errorf("Bearing north = %v", b)
	}
	if b := initialBearing(0, 0, 0, 1); math.Abs(b-90) > 1e-9 {
		t.Errorf("Bearing east = %v", b)
	}
	if b := initialBearing(0, 0, 0, -1); math.Abs(b-270) > 1e-9 {
		t.Errorf("Bearing west = %v", b)
	}
}
