package sink

import (
	"fmt"

	"go.bug.st/serial"
)

// OpenSerial opens port for NMEA output at baud, 8 data bits, no parity,
// one stop bit
func OpenSerial(port string, baud int) (serial.Port, error) {
	if port == "" {
		return nil, fmt.Errorf("no serial port given")
	}
	if baud <= 0 {
		return nil, fmt.Errorf("invalid baud rate %d", baud)
	}

	mode := &serial.Mode{
		BaudRate: baud,
		Parity:   serial.NoParity,
		DataBits: 8,
		StopBits: serial.OneStopBit,
	}

	p, err := serial.Open(port, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", port, err)
	}
	return p, nil
}

// SerialPorts lists the serial ports present on this machine
func SerialPorts() ([]string, error) {
	return serial.GetPortsList()
}
