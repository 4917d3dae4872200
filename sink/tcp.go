package sink

import (
	"errors"
	"log"
	"net"
	"sync"
	"time"
)

const (
	// DefaultTCPAddr is the usual NMEA-over-TCP port on all interfaces
	DefaultTCPAddr = "0.0.0.0:10110"
	// DefaultMaxClients caps simultaneous TCP clients
	DefaultMaxClients = 10

	tcpWriteTimeout = 2 * time.Second
)

// TCPServer accepts clients and sends every batch to all of them. Clients
// over the cap are disconnected as soon as they connect; clients that fail
// a write are dropped.
type TCPServer struct {
	listener   net.Listener
	maxClients int

	mu      sync.Mutex
	clients map[net.Conn]struct{}
	closed  bool
	wg      sync.WaitGroup
}

// ListenTCP starts accepting clients on addr. maxClients <= 0 means
// DefaultMaxClients.
func ListenTCP(addr string, maxClients int) (*TCPServer, error) {
	if maxClients <= 0 {
		maxClients = DefaultMaxClients
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	s := &TCPServer{
		listener:   ln,
		maxClients: maxClients,
		clients:    make(map[net.Conn]struct{}),
	}
	s.wg.Add(1)
	go s.acceptLoop()
	return s, nil
}

// Addr returns the address the server is listening on
func (s *TCPServer) Addr() net.Addr {
	return s.listener.Addr()
}

func (s *TCPServer) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			log.Printf("sink: accept: %v", err)
			continue
		}
		if !s.addClient(conn) {
			log.Printf("sink: refusing %s, %d clients connected", conn.RemoteAddr(), s.maxClients)
			conn.Close()
			continue
		}
		log.Printf("sink: client %s connected", conn.RemoteAddr())
	}
}

func (s *TCPServer) addClient(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || len(s.clients) >= s.maxClients {
		return false
	}
	s.clients[conn] = struct{}{}
	return true
}

// Clients returns the number of connected clients
func (s *TCPServer) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Write sends p to every client. A batch with no clients connected is
// discarded, and client failures are not reported to the caller.
func (s *TCPServer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for conn := range s.clients {
		conn.SetWriteDeadline(time.Now().Add(tcpWriteTimeout))
		if _, err := conn.Write(p); err != nil {
			log.Printf("sink: dropping client %s: %v", conn.RemoteAddr(), err)
			conn.Close()
			delete(s.clients, conn)
		}
	}
	return len(p), nil
}

// Close stops accepting and disconnects every client
func (s *TCPServer) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	for conn := range s.clients {
		conn.Close()
		delete(s.clients, conn)
	}
	s.mu.Unlock()

	err := s.listener.Close()
	s.wg.Wait()
	return err
}
