package server

import (
	"bufio"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/atomweather/atomweather/pkg/observation"
	"github.com/atomweather/atomweather/server/internal/httpwire"
	"github.com/atomweather/atomweather/server/internal/metrics"
	"github.com/atomweather/atomweather/server/internal/store"
)

const endpointPath = "/weatherInfo.json"

// handleConn reads one request from the connection, dispatches it and writes
// one response. The connection is closed on every exit path.
func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	reqID := xid.New().String()
	conn.SetDeadline(time.Now().Add(s.cfg.ReadTimeout)) //nolint:errcheck

	req, err := httpwire.ReadRequest(bufio.NewReader(conn))
	if err != nil {
		if err == io.EOF {
			return
		}
		if errors.Is(err, httpwire.ErrMalformedRequest) {
			s.respond(conn, reqID, "?", httpwire.StatusBadRequest, errBody("invalid request"))
			return
		}
		// Transport failure (timeout, reset): drop the connection.
		slog.Warn("server: read request failed", "req_id", reqID, "err", err)
		return
	}

	switch {
	case req.Method == "GET" && strings.HasPrefix(req.Path, endpointPath):
		code, body := s.handleGet(req)
		s.respond(conn, reqID, req.Method, code, body)
	case req.Method == "PUT" && pathOnly(req.Path) == endpointPath:
		code, body := s.handlePut(req)
		s.respond(conn, reqID, req.Method, code, body)
	default:
		s.respond(conn, reqID, req.Method, httpwire.StatusBadRequest, errBody("invalid request"))
	}
}

// handleGet serves GET /weatherInfo.json and GET /weatherInfo.json?id=<sid>.
func (s *Server) handleGet(req *httpwire.Request) (int, []byte) {
	s.clock.Tick() // local event: begin handling
	s.sweep(time.Now())

	if id := req.StationID(); id != "" {
		e, ok := s.store.Get(id)
		if !ok {
			return httpwire.StatusNotFound, errBody("no weather data available for station " + id)
		}
		body, err := e.Record.Encode()
		if err != nil {
			return httpwire.StatusInternalServerError, errBody("error processing request")
		}
		return httpwire.StatusOK, body
	}

	recs := s.store.List()
	if len(recs) == 0 {
		return httpwire.StatusNotFound, nil
	}
	body, err := json.Marshal(recs)
	if err != nil {
		return httpwire.StatusInternalServerError, errBody("error processing request")
	}
	return httpwire.StatusOK, body
}

// handlePut serves PUT /weatherInfo.json.
func (s *Server) handlePut(req *httpwire.Request) (int, []byte) {
	if len(req.Body) == 0 {
		// No content: no store mutation, no snapshot flush; the response
		// tick is the only clock event.
		return httpwire.StatusNoContent, nil
	}

	s.clock.Observe(req.LamportClock)

	rec, err := observation.Decode(req.Body)
	if err != nil {
		return httpwire.StatusInternalServerError, errBody("error processing request: " + err.Error())
	}
	id := rec.ID()
	if id == "" {
		return httpwire.StatusBadRequest, errBody("missing required field: id")
	}

	s.mu.Lock()
	res, evicted := s.store.Put(id, rec)
	s.metrics.ObserveEvictions(metrics.ReasonCapacity, len(evicted))
	s.metrics.SetStoreSize(s.store.Count())
	flushed := s.flushLocked()
	s.mu.Unlock()

	if !flushed {
		return httpwire.StatusInternalServerError, errBody("error persisting data")
	}
	if len(evicted) > 0 {
		slog.Info("store full, evicted oldest station", "evicted", evicted, "station", id)
	}
	s.alerts.Evaluate(rec)
	if res == store.Created {
		return httpwire.StatusCreated, msgBody("data created successfully")
	}
	return httpwire.StatusOK, msgBody("data updated successfully")
}

// respond stamps the response with a fresh clock tick and writes it.
func (s *Server) respond(conn net.Conn, reqID, method string, code int, body []byte) {
	clock := s.clock.Tick() // local event: assemble response
	if err := httpwire.WriteResponse(conn, code, clock, body); err != nil {
		slog.Warn("server: write response failed", "req_id", reqID, "err", err)
		return
	}
	s.metrics.ObserveRequest(method, code)
	slog.Info("request handled",
		"req_id", reqID,
		"method", method,
		"status", code,
		"clock", clock,
	)
}

// pathOnly strips the query string from a request path.
func pathOnly(path string) string {
	p, _, _ := strings.Cut(path, "?")
	return p
}

func errBody(msg string) []byte {
	b, _ := json.Marshal(map[string]string{"error": msg})
	return b
}

func msgBody(msg string) []byte {
	b, _ := json.Marshal(map[string]string{"message": msg})
	return b
}
