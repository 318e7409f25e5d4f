// Package logger records telnet session transcripts in Asciinema v2
// JSON-Lines format so operator activity can be replayed after the fact.
package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Header is the first line of an Asciinema v2 recording.
type Header struct {
	Version   int               `json:"version"`
	Width     int               `json:"width"`
	Height    int               `json:"height"`
	Timestamp int64             `json:"timestamp"`
	Env       map[string]string `json:"env,omitempty"`
}

// Event is a single recorded event: [time_offset, event_type, data].
type Event struct {
	TimeOffset float64
	EventType  string // "o" for output, "i" for input
	Data       string
}

// MarshalJSON encodes the event as the three-element array the format requires.
func (e Event) MarshalJSON() ([]byte, error) {
	return json.Marshal([]interface{}{e.TimeOffset, e.EventType, e.Data})
}

// UnmarshalJSON decodes the three-element array form.
func (e *Event) UnmarshalJSON(data []byte) error {
	var arr []interface{}
	if err := json.Unmarshal(data, &arr); err != nil {
		return err
	}
	if len(arr) != 3 {
		return fmt.Errorf("invalid event: expected 3 elements, got %d", len(arr))
	}
	offset, ok := arr[0].(float64)
	if !ok {
		return fmt.Errorf("invalid time offset")
	}
	kind, ok := arr[1].(string)
	if !ok {
		return fmt.Errorf("invalid event type")
	}
	payload, ok := arr[2].(string)
	if !ok {
		return fmt.Errorf("invalid event data")
	}
	e.TimeOffset = offset
	e.EventType = kind
	e.Data = payload
	return nil
}

// Transcript writes one session's traffic as an Asciinema v2 recording.
// It is safe for concurrent use; session echo and broadcasts may arrive
// from different goroutines.
type Transcript struct {
	writer    io.Writer
	file      *os.File // only set if we own the file
	startTime time.Time
	mu        sync.Mutex
}

// NewTranscript creates a Transcript that records to the given file path.
func NewTranscript(path string) (*Transcript, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create transcript file: %w", err)
	}
	return &Transcript{
		writer:    file,
		file:      file,
		startTime: time.Now(),
	}, nil
}

// NewTranscriptWithWriter creates a Transcript that records to w.
// This is useful for testing.
func NewTranscriptWithWriter(w io.Writer) *Transcript {
	return &Transcript{
		writer:    w,
		startTime: time.Now(),
	}
}

// WriteHeader writes the recording header. Call once before any events.
func (t *Transcript) WriteHeader(cols, rows int, env map[string]string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	header := Header{
		Version:   2,
		Width:     cols,
		Height:    rows,
		Timestamp: t.startTime.Unix(),
		Env:       env,
	}
	data, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}
	if _, err := t.writer.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	return nil
}

// WriteOutput records server-to-client bytes.
func (t *Transcript) WriteOutput(data []byte) error {
	return t.writeEvent("o", data)
}

// WriteInput records a submitted command line. Password lines are never
// passed here by the session.
func (t *Transcript) WriteInput(data []byte) error {
	return t.writeEvent("i", data)
}

func (t *Transcript) writeEvent(eventType string, data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	event := Event{
		TimeOffset: time.Since(t.startTime).Seconds(),
		EventType:  eventType,
		Data:       string(data),
	}
	eventData, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if _, err := t.writer.Write(append(eventData, '\n')); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	return nil
}

// Close closes the transcript file, if this Transcript owns one.
func (t *Transcript) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.file != nil {
		return t.file.Close()
	}
	return nil
}

// StartTime returns when the recording started.
func (t *Transcript) StartTime() time.Time {
	return t.startTime
}
