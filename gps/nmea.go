package gps

import (
	"fmt"
	"strconv"
	"strings"
)

// DefaultTalker is the talker ID of a GPS-only receiver
const DefaultTalker = "GP"

// Sentence is one assembled NMEA sentence. It is never modified after a
// builder returns it.
type Sentence struct {
	Talker string
	ID     string
	Fields []string
}

// Body returns everything between '$' and '*'
func (s Sentence) Body() string {
	var b strings.Builder
	b.WriteString(s.Talker)
	b.WriteString(s.ID)
	for _, f := range s.Fields {
		b.WriteByte(',')
		b.WriteString(f)
	}
	return b.String()
}

// Checksum returns the two hex digit checksum of the sentence body
func (s Sentence) Checksum() string {
	return Checksum(s.Body())
}

// String returns the framed line, including the trailing CRLF
func (s Sentence) String() string {
	return formatNMEA(s.Body())
}

// Checksum calculates the NMEA checksum: the XOR of every byte of body,
// rendered as two uppercase hex digits. body excludes '$' and '*'.
func Checksum(body string) string {
	return fmt.Sprintf("%02X", checksumByte(body))
}

func checksumByte(body string) byte {
	var checksum byte
	for i := 0; i < len(body); i++ {
		checksum ^= body[i]
	}
	return checksum
}

// formatNMEA frames a sentence body with '$', checksum and CRLF
func formatNMEA(body string) string {
	return fmt.Sprintf("$%s*%s\r\n", body, Checksum(body))
}

// SplitLine checks the framing and checksum of a single NMEA line and
// returns its body. Trailing CR/LF are ignored.
func SplitLine(line string) (string, error) {
	line = strings.TrimRight(line, "\r\n")
	if !strings.HasPrefix(line, "$") {
		return "", fmt.Errorf("nmea: missing '$' in %q", line)
	}
	star := strings.LastIndexByte(line, '*')
	if star == -1 {
		return "", fmt.Errorf("nmea: missing checksum in %q", line)
	}
	body := line[1:star]
	sum := line[star+1:]
	if len(sum) != 2 {
		return "", fmt.Errorf("nmea: checksum %q is not two hex digits", sum)
	}
	want, err := strconv.ParseUint(sum, 16, 8)
	if err != nil {
		return "", fmt.Errorf("nmea: bad checksum %q: %w", sum, err)
	}
	if got := checksumByte(body); uint64(got) != want {
		return "", fmt.Errorf("nmea: checksum mismatch in %q: got %02X, want %s", line, got, sum)
	}
	return body, nil
}

// VerifyLine reports whether line is a well-framed NMEA sentence with a
// correct checksum.
func VerifyLine(line string) error {
	_, err := SplitLine(line)
	return err
}
