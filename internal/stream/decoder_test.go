package stream

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestDecoderHoldsTrailingLineUntilClose(t *testing.T) {
	dec := NewDecoder()
	events := dec.Write([]byte(`{"a":1}` + "\n" + `{"b":2}`))
	if len(events) != 1 || string(events[0].Record) != `{"a":1}` {
		t.Fatalf("Write() = %+v, want one record {\"a\":1}", events)
	}
	final, err := dec.Close()
	if err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if len(final) != 1 || final[0].Kind != EventRecord || string(final[0].Record) != `{"b":2}` {
		t.Errorf("Close() = %+v, want record {\"b\":2}", final)
	}
}

func TestDecoderProgressThenRecord(t *testing.T) {
	dec := NewDecoder()
	events := dec.Write([]byte(`{"progress_update":true,"current":3,"total":10}` + "\n" + `{"ok":true}` + "\n"))
	if len(events) != 2 {
		t.Fatalf("len(events) = %d, want 2", len(events))
	}
	if events[0].Kind != EventProgress || events[0].Progress != (Progress{Current: 3, Total: 10}) {
		t.Errorf("events[0] = %+v, want progress (3, 10)", events[0])
	}
	if events[1].Kind != EventRecord || string(events[1].Record) != `{"ok":true}` {
		t.Errorf("events[1] = %+v, want record {\"ok\":true}", events[1])
	}
	if final, err := dec.Close(); err != nil || len(final) != 0 {
		t.Errorf("Close() = %+v, %v; want nothing", final, err)
	}
}

func TestDecoderSplitsAcrossChunks(t *testing.T) {
	input := `{"progress_update":true,"current":1,"total":2}` + "\n\n" + `{"serial":"SN-1"}` + "\r\n" + `{"error":"boom"}` + "\n"
	for size := 1; size <= len(input); size++ {
		dec := NewDecoder()
		var kinds []EventKind
		for start := 0; start < len(input); start += size {
			end := start + size
			if end > len(input) {
				end = len(input)
			}
			for _, ev := range dec.Write([]byte(input[start:end])) {
				kinds = append(kinds, ev.Kind)
			}
		}
		final, err := dec.Close()
		if err != nil || len(final) != 0 {
			t.Fatalf("chunk %d: Close() = %+v, %v", size, final, err)
		}
		want := []EventKind{EventProgress, EventRecord, EventRecord}
		if len(kinds) != len(want) {
			t.Fatalf("chunk %d: kinds = %v, want %v", size, kinds, want)
		}
		for i := range want {
			if kinds[i] != want[i] {
				t.Errorf("chunk %d: kinds[%d] = %v, want %v", size, i, kinds[i], want[i])
			}
		}
	}
}

func TestDecoderInvalidLineIsNotFatal(t *testing.T) {
	dec := NewDecoder()
	events := dec.Write([]byte("{broken\n" + `{"ok":1}` + "\n"))
	if len(events) != 2 {
		t.Fatalf("len(events) = %d, want 2", len(events))
	}
	if events[0].Kind != EventError || events[0].Err == nil || events[0].Err.Line != 1 || events[0].Err.Text != "{broken" {
		t.Errorf("events[0] = %+v", events[0])
	}
	if events[1].Kind != EventRecord {
		t.Errorf("events[1].Kind = %v, want record", events[1].Kind)
	}
}

func TestDecoderInvalidTrailingLineIsFatal(t *testing.T) {
	dec := NewDecoder()
	dec.Write([]byte(`{"ok":1}` + "\n" + `{"trunc`))
	_, err := dec.Close()
	var term *TerminationError
	if !errors.As(err, &term) {
		t.Fatalf("Close() error = %v, want TerminationError", err)
	}
	if term.Line != 2 || term.Text != `{"trunc` {
		t.Errorf("TerminationError = %+v", term)
	}
}

func TestDecoderFalseProgressFlagIsRecord(t *testing.T) {
	dec := NewDecoder()
	events := dec.Write([]byte(`{"progress_update":false,"current":1}` + "\n" + `[1,2]` + "\n"))
	if len(events) != 2 || events[0].Kind != EventRecord || events[1].Kind != EventRecord {
		t.Errorf("events = %+v, want two records", events)
	}
}

type chunkReader struct {
	chunks []string
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if len(r.chunks) == 0 {
		return 0, io.EOF
	}
	n := copy(p, r.chunks[0])
	r.chunks[0] = r.chunks[0][n:]
	if r.chunks[0] == "" {
		r.chunks = r.chunks[1:]
	}
	return n, nil
}

func TestConsume(t *testing.T) {
	r := &chunkReader{chunks: []string{`{"progress_update":true,"current":5,`, `"total":5}` + "\n{oops\n", `{"rt_num":"RT-1"}`}}
	var got []EventKind
	err := Consume(context.Background(), r, func(ev Event) error {
		got = append(got, ev.Kind)
		return nil
	})
	if err != nil {
		t.Fatalf("Consume() error = %v", err)
	}
	want := []EventKind{EventProgress, EventError, EventRecord}
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("events[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestConsumeStopsOnHandlerError(t *testing.T) {
	stop := errors.New("stop")
	calls := 0
	err := Consume(context.Background(), strings.NewReader("{}\n{}\n{}\n"), func(Event) error {
		calls++
		return stop
	})
	if !errors.Is(err, stop) || calls != 1 {
		t.Errorf("Consume() = %v after %d calls, want stop after 1", err, calls)
	}
}

func TestConsumeHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Consume(ctx, strings.NewReader("{}\n"), func(Event) error { return nil })
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Consume() error = %v, want context.Canceled", err)
	}
}

func TestEncoderRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	enc := NewEncoder(w)
	if err := enc.Progress(2, 4); err != nil {
		t.Fatal(err)
	}
	if err := enc.Encode(map[string]string{"rt_num": "RT-1"}); err != nil {
		t.Fatal(err)
	}
	if err := enc.Error(errors.New("no such serial")); err != nil {
		t.Fatal(err)
	}
	want := `{"progress_update":true,"current":2,"total":4}` + "\n" + `{"rt_num":"RT-1"}` + "\n" + `{"error":"no such serial"}` + "\n"
	if buf.String() != want {
		t.Errorf("encoded = %q, want %q", buf.String(), want)
	}

	var kinds []EventKind
	_ = Consume(context.Background(), &buf, func(ev Event) error {
		kinds = append(kinds, ev.Kind)
		return nil
	})
	if len(kinds) != 3 || kinds[0] != EventProgress || kinds[2] != EventRecord {
		t.Errorf("decoded kinds = %v", kinds)
	}
}
