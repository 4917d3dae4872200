package gps

import (
	"strings"
	"time"
)

// Fix is the simulated truth for one epoch
type Fix struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Altitude  float64   `json:"altitude"` // meters above mean sea level
	Speed     float64   `json:"speed"`    // knots
	Course    float64   `json:"course"`   // degrees true
	Time      time.Time `json:"time"`     // UTC, also carries the date
}

// Satellite represents a GPS satellite in view
type Satellite struct {
	PRN       int  `json:"prn"`
	Elevation int  `json:"elevation"` // degrees above horizon
	Azimuth   int  `json:"azimuth"`   // degrees from north
	SNR       int  `json:"snr"`       // signal-to-noise ratio, dB
	Used      bool `json:"used"`      // part of the position solution
}

// SatelliteSet is the visible constellation of one epoch, ordered by PRN
type SatelliteSet []Satellite

// Used returns the satellites used in the fix, in set order
func (s SatelliteSet) Used() []Satellite {
	var used []Satellite
	for _, sat := range s {
		if sat.Used {
			used = append(used, sat)
		}
	}
	return used
}

// UsedCount returns the number of satellites used in the fix
func (s SatelliteSet) UsedCount() int {
	n := 0
	for _, sat := range s {
		if sat.Used {
			n++
		}
	}
	return n
}

// Quality holds receiver parameters that are reported alongside the fix
type Quality struct {
	PDOP            float64 `json:"pdop"`
	HDOP            float64 `json:"hdop"`
	VDOP            float64 `json:"vdop"`
	GeoidSeparation float64 `json:"geoid_separation"` // meters
	Differential    bool    `json:"differential"`
	SelectionMode   string  `json:"selection_mode"` // "A" automatic, "M" manual
}

// Epoch is the snapshot every builder reads during one tick
type Epoch struct {
	Fix        Fix          `json:"fix"`
	Satellites SatelliteSet `json:"satellites"`
	Quality    Quality      `json:"quality"`
}

// HasFix reports whether at least one satellite is used in the solution
func (e Epoch) HasFix() bool {
	return e.Satellites.UsedCount() > 0
}

// Batch is the complete output of one tick
type Batch struct {
	Sequence  uint64     `json:"sequence"`
	Epoch     Epoch      `json:"epoch"`
	Sentences []Sentence `json:"-"`
}

// Lines returns each framed sentence, CRLF included
func (b Batch) Lines() []string {
	lines := make([]string, len(b.Sentences))
	for i, s := range b.Sentences {
		lines[i] = s.String()
	}
	return lines
}

// Bytes returns the whole batch as it goes on the wire
func (b Batch) Bytes() []byte {
	return []byte(strings.Join(b.Lines(), ""))
}

// TrackPoint represents a point in a GPS track
type TrackPoint struct {
	Lat       float64   `xml:"lat,attr"`
	Lon       float64   `xml:"lon,attr"`
	Elevation float64   `xml:"ele"`
	Time      time.Time `xml:"time"`
}

// Status represents the current simulator status
type Status struct {
	Running         bool          `json:"running"`
	StartTime       time.Time     `json:"start_time,omitempty"`
	ElapsedTime     time.Duration `json:"elapsed_time"`
	Ticks           uint64        `json:"ticks"`
	Locked          bool          `json:"locked"`
	Epoch           Epoch         `json:"epoch"`
	TargetCourse    float64       `json:"target_course"`
	TargetSpeed     float64       `json:"target_speed"`
	Config          Config        `json:"config"`
	LastError       string        `json:"last_error,omitempty"`
	ReplayIndex     int           `json:"replay_index,omitempty"`
	ReplayTotal     int           `json:"replay_total,omitempty"`
	ReplayCompleted bool          `json:"replay_completed,omitempty"`
}

// NMEAData is handed to callbacks after every tick
type NMEAData struct {
	Sentences []string  `json:"sentences"`
	Epoch     Epoch     `json:"epoch"`
	Sequence  uint64    `json:"sequence"`
	Timestamp time.Time `json:"timestamp"`
}
