package httpwire

import (
	"fmt"
	"io"
	"strconv"
)

// Status codes the aggregation protocol uses.
const (
	StatusOK                  = 200
	StatusCreated             = 201
	StatusNoContent           = 204
	StatusBadRequest          = 400
	StatusNotFound            = 404
	StatusInternalServerError = 500
)

var statusText = map[int]string{
	StatusOK:                  "OK",
	StatusCreated:             "Created",
	StatusNoContent:           "No Content",
	StatusBadRequest:          "Bad Request",
	StatusNotFound:            "Not Found",
	StatusInternalServerError: "Internal Server Error",
}

// StatusText returns the reason phrase for a protocol status code.
func StatusText(code int) string {
	if text, ok := statusText[code]; ok {
		return text
	}
	return "Unknown"
}

// WriteResponse writes one complete HTTP/1.1 response carrying the given
// Lamport clock value. Content-Length always matches len(body) exactly, and
// the connection is marked for close.
func WriteResponse(w io.Writer, code int, clock int64, body []byte) error {
	buf := make([]byte, 0, 128+len(body))
	buf = append(buf, "HTTP/1.1 "...)
	buf = strconv.AppendInt(buf, int64(code), 10)
	buf = append(buf, ' ')
	buf = append(buf, StatusText(code)...)
	buf = append(buf, "\r\nContent-Type: application/json\r\nLamport-Clock: "...)
	buf = strconv.AppendInt(buf, clock, 10)
	buf = append(buf, "\r\nContent-Length: "...)
	buf = strconv.AppendInt(buf, int64(len(body)), 10)
	buf = append(buf, "\r\nConnection: close\r\n\r\n"...)
	buf = append(buf, body...)

	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("httpwire: write response: %w", err)
	}
	return nil
}
