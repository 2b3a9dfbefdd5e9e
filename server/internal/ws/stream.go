package ws

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/atomweather/atomweather/pkg/observation"
	"github.com/atomweather/atomweather/server/internal/store"
)

// writeTimeout bounds a single frame write; a client that stalls longer is
// dropped.
const writeTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	// The admin listener is expected to sit behind a reverse proxy that
	// applies CORS; allow all origins here.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Frame is one update pushed to a connected client.
type Frame struct {
	Stations     int                  `json:"stations"`
	Observations []observation.Record `json:"observations"`
	At           string               `json:"at"` // RFC3339
}

// Stream pushes the live observation set to every connected admin client.
// Each connection runs its own ticker loop, so a slow client only delays
// itself and is dropped once a write exceeds the timeout.
type Stream struct {
	store    *store.Store
	interval time.Duration

	mu     sync.Mutex
	closed bool
	conns  map[*websocket.Conn]struct{}
}

// New creates a Stream reading from st that pushes a frame every interval.
func New(st *store.Store, interval time.Duration) *Stream {
	return &Stream{
		store:    st,
		interval: interval,
		conns:    make(map[*websocket.Conn]struct{}),
	}
}

// ServeHTTP upgrades the request and pushes frames until the client goes
// away or the stream is closed. The first frame is sent immediately.
func (s *Stream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	if !s.track(conn) {
		conn.Close()
		return
	}
	defer s.untrack(conn)

	// Inbound frames are discarded; the reader exists only to notice the
	// peer closing, which surfaces as a write error on the next push.
	go func() {
		for {
			if _, _, err := conn.NextReader(); err != nil {
				conn.Close()
				return
			}
		}
	}()

	t := time.NewTicker(s.interval)
	defer t.Stop()
	for {
		if err := s.push(conn); err != nil {
			return
		}
		<-t.C
	}
}

// Count reports the number of connected clients.
func (s *Stream) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// Close disconnects every client and rejects new connections. Called once at
// server shutdown.
func (s *Stream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for conn := range s.conns {
		conn.Close()
	}
	s.conns = make(map[*websocket.Conn]struct{})
}

// push writes one frame with the current live observations.
func (s *Stream) push(conn *websocket.Conn) error {
	recs := s.store.List()
	payload, err := json.Marshal(Frame{
		Stations:     len(recs),
		Observations: recs,
		At:           time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}

	conn.SetWriteDeadline(time.Now().Add(writeTimeout)) //nolint:errcheck
	return conn.WriteMessage(websocket.TextMessage, payload)
}

// track registers a connection, refusing it when the stream is closed.
func (s *Stream) track(conn *websocket.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns[conn] = struct{}{}
	return true
}

func (s *Stream) untrack(conn *websocket.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
	conn.Close()
}
