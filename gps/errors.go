package gps

import "errors"

// Errors returned by the sentence engine. ErrValueOutOfRange and
// ErrInvalidSatelliteCount abort the batch being built; nothing is emitted.
var (
	ErrValueOutOfRange       = errors.New("value out of range for NMEA field")
	ErrInvalidSatelliteCount = errors.New("invalid satellite count")
)

// Configuration and lifecycle errors returned by the GPS simulator
var (
	ErrInvalidLatitude         = errors.New("latitude must be between -90.0 and 90.0 degrees")
	ErrInvalidLongitude        = errors.New("longitude must be between -180.0 and 180.0 degrees")
	ErrInvalidSatellites       = errors.New("satellites must be between 0 and 32, with min used <= 12")
	ErrInvalidSpeed            = errors.New("speed must be between 0 and 999 knots")
	ErrInvalidCourse           = errors.New("course must be between 0.0 and 359.9 degrees")
	ErrInvalidOutputRate       = errors.New("output rate must be positive")
	ErrInvalidTalker           = errors.New("talker ID must be two uppercase letters")
	ErrInvalidDOP              = errors.New("dilution of precision values must be positive")
	ErrInvalidBaudRate         = errors.New("baud rate must be positive")
	ErrInvalidReplaySpeed      = errors.New("replay speed must be positive")
	ErrInvalidCommand          = errors.New("scenario command is invalid")
	ErrInvalidQoS              = errors.New("MQTT QoS must be 0, 1 or 2")
	ErrSimulatorNotRunning     = errors.New("simulator is not running")
	ErrSimulatorAlreadyRunning = errors.New("simulator is already running")
)
