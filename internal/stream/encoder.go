package stream

import (
	"encoding/json"
	"io"
)

// ProgressMarker is the wire form of a progress line.
type ProgressMarker struct {
	ProgressUpdate bool `json:"progress_update"`
	Current        int  `json:"current"`
	Total          int  `json:"total"`
}

// ErrorRecord is the wire form of a failed record.
type ErrorRecord struct {
	Error string `json:"error"`
}

type flusher interface {
	Flush() error
}

// Encoder writes newline-delimited JSON, flushing after every line when the
// writer supports it.
type Encoder struct {
	w io.Writer
}

// NewEncoder wraps w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// Progress writes a progress marker.
func (e *Encoder) Progress(current, total int) error {
	return e.Encode(ProgressMarker{ProgressUpdate: true, Current: current, Total: total})
}

// Error writes an error record.
func (e *Encoder) Error(err error) error {
	return e.Encode(ErrorRecord{Error: err.Error()})
}

// Encode writes v as one line.
func (e *Encoder) Encode(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	b = append(b, '\n')
	if _, err := e.w.Write(b); err != nil {
		return err
	}
	if f, ok := e.w.(flusher); ok {
		return f.Flush()
	}
	return nil
}
