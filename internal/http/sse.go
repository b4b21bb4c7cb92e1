package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// SSEWriter writes Server-Sent Events. Every write is bounded by a write
// deadline so a stalled client cannot hold the handler.
type SSEWriter struct {
	w            http.ResponseWriter
	rc           *http.ResponseController
	writeTimeout time.Duration
}

// NewSSEWriter sets the stream headers and returns a writer.
func NewSSEWriter(w http.ResponseWriter, writeTimeout time.Duration) *SSEWriter {
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	return &SSEWriter{w: w, rc: http.NewResponseController(w), writeTimeout: writeTimeout}
}

// WriteEvent sends one event with a JSON data line. An empty id omits the id field.
func (s *SSEWriter) WriteEvent(event, id string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", event, err)
	}
	return s.write(func() error {
		if id != "" {
			if _, err := fmt.Fprintf(s.w, "id: %s\n", id); err != nil {
				return err
			}
		}
		_, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, payload)
		return err
	})
}

// WriteComment sends a comment line, used as a keep-alive.
func (s *SSEWriter) WriteComment(text string) error {
	return s.write(func() error {
		_, err := fmt.Fprintf(s.w, ": %s\n\n", text)
		return err
	})
}

func (s *SSEWriter) write(fn func() error) error {
	if s.writeTimeout > 0 {
		err := s.rc.SetWriteDeadline(time.Now().Add(s.writeTimeout))
		if err != nil && !errors.Is(err, http.ErrNotSupported) {
			return fmt.Errorf("set write deadline: %w", err)
		}
	}
	if err := fn(); err != nil {
		return err
	}
	if err := s.rc.Flush(); err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	return nil
}
