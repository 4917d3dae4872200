package sink

import (
	"fmt"
	"net"
	"time"
)

const dialTimeout = 5 * time.Second

// Stream pushes batches to a remote listener over TCP or UDP
type Stream struct {
	network string
	conn    net.Conn
}

// DialStream connects to addr. Over UDP every sentence travels in its own
// datagram.
func DialStream(network, addr string) (*Stream, error) {
	switch network {
	case "tcp", "udp":
	default:
		return nil, fmt.Errorf("unsupported stream network %q, want tcp or udp", network)
	}

	conn, err := net.DialTimeout(network, addr, dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect %s stream to %s: %w", network, addr, err)
	}
	return &Stream{network: network, conn: conn}, nil
}

func (s *Stream) Write(p []byte) (int, error) {
	if s.network == "tcp" {
		return s.conn.Write(p)
	}

	written := 0
	for _, sentence := range splitSentences(p) {
		n, err := s.conn.Write(sentence)
		written += n
		if err != nil {
			return written, err
		}
	}
	return written, nil
}

// RemoteAddr returns the address the stream is sent to
func (s *Stream) RemoteAddr() net.Addr {
	return s.conn.RemoteAddr()
}

func (s *Stream) Close() error {
	return s.conn.Close()
}
