package stream

import "fmt"

// DecodeError reports one complete line that is not valid JSON.
// Consumption continues after it.
type DecodeError struct {
	Line int
	Text string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("stream line %d: %v", e.Line, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// TerminationError reports an invalid trailing partial line at end of stream.
type TerminationError struct {
	Line int
	Text string
	Err  error
}

func (e *TerminationError) Error() string {
	return fmt.Sprintf("stream terminated with invalid line %d: %v", e.Line, e.Err)
}

func (e *TerminationError) Unwrap() error {
	return e.Err
}
