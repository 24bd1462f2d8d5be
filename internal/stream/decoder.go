package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
)

// EventKind tags a decoded stream event.
type EventKind int

const (
	EventProgress EventKind = iota + 1
	EventRecord
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventProgress:
		return "progress"
	case EventRecord:
		return "record"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Progress is the position reported by a progress marker.
type Progress struct {
	Current int `json:"current"`
	Total   int `json:"total"`
}

// Event is one decoded line.
type Event struct {
	Kind     EventKind
	Progress Progress
	Record   json.RawMessage
	Err      *DecodeError
}

type progressProbe struct {
	ProgressUpdate bool `json:"progress_update"`
	Current        int  `json:"current"`
	Total          int  `json:"total"`
}

// Decoder splits a chunked newline-delimited JSON stream into events.
// The trailing partial line is buffered until more data or Close arrives.
type Decoder struct {
	buf  []byte
	line int
}

// NewDecoder returns an empty decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Write feeds a chunk and returns the events of every line it completes.
func (d *Decoder) Write(chunk []byte) []Event {
	d.buf = append(d.buf, chunk...)
	var events []Event
	for {
		i := bytes.IndexByte(d.buf, '\n')
		if i < 0 {
			break
		}
		line := d.buf[:i]
		d.buf = d.buf[i+1:]
		if ev, ok := d.decodeLine(line); ok {
			events = append(events, ev)
		}
	}
	if len(d.buf) == 0 {
		d.buf = nil
	}
	return events
}

// Close parses whatever remains buffered as the final record.
// An invalid remainder is a TerminationError.
func (d *Decoder) Close() ([]Event, error) {
	rest := d.buf
	d.buf = nil
	ev, ok := d.decodeLine(rest)
	if !ok {
		return nil, nil
	}
	if ev.Kind == EventError {
		return nil, &TerminationError{Line: ev.Err.Line, Text: ev.Err.Text, Err: ev.Err.Err}
	}
	return []Event{ev}, nil
}

func (d *Decoder) decodeLine(raw []byte) (Event, bool) {
	line := bytes.TrimSpace(raw)
	if len(line) == 0 {
		return Event{}, false
	}
	d.line++

	var record json.RawMessage
	if err := json.Unmarshal(line, &record); err != nil {
		return Event{Kind: EventError, Err: &DecodeError{Line: d.line, Text: string(line), Err: err}}, true
	}

	if line[0] == '{' {
		// only a literal true flag marks progress
		var probe progressProbe
		if err := json.Unmarshal(line, &probe); err == nil && probe.ProgressUpdate {
			return Event{Kind: EventProgress, Progress: Progress{Current: probe.Current, Total: probe.Total}}, true
		}
	}
	return Event{Kind: EventRecord, Record: record}, true
}

// Handler receives events in line order. Returning an error stops consumption.
type Handler func(Event) error

const readChunk = 32 * 1024

// Consume reads r to the end, feeding every event to fn.
// Per-line decode errors are delivered as EventError and do not stop the stream.
func Consume(ctx context.Context, r io.Reader, fn Handler) error {
	dec := NewDecoder()
	chunk := make([]byte, readChunk)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, readErr := r.Read(chunk)
		if n > 0 {
			for _, ev := range dec.Write(chunk[:n]) {
				if err := fn(ev); err != nil {
					return err
				}
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return readErr
		}
	}
	events, err := dec.Close()
	if err != nil {
		return err
	}
	for _, ev := range events {
		if err := fn(ev); err != nil {
			return err
		}
	}
	return nil
}
