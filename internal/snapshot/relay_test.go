package snapshot

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"
)

func TestTakeRequest(t *testing.T) {
	r := NewRelay()
	if r.TakeRequest() {
		t.Fatal("TakeRequest() = true with no request pending")
	}

	r.Request()
	r.Request()
	if !r.TakeRequest() || !r.TakeRequest() {
		t.Fatal("expected two pending requests")
	}
	if r.TakeRequest() {
		t.Fatal("TakeRequest() = true after consuming all requests")
	}
}

func TestMessagesAreOrdered(t *testing.T) {
	r := NewRelay()
	r.Send([]byte("a"))
	r.Send([]byte("bc"))
	r.End()

	ctx := context.Background()
	for _, want := range []string{"a", "bc"} {
		m, err := r.Next(ctx)
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		if m.Kind != KindChunk || string(m.Data) != want {
			t.Fatalf("Next() = %+v, want chunk %q", m, want)
		}
	}
	if m, _ := r.Next(ctx); m.Kind != KindEnd {
		t.Fatalf("Next() = %+v, want end marker", m)
	}
}

func TestSendCopiesBuffer(t *testing.T) {
	r := NewRelay()
	buf := []byte("xyz")
	r.Send(buf)
	buf[0] = 'Q'

	m, _ := r.Next(context.Background())
	if string(m.Data) != "xyz" {
		t.Errorf("chunk aliased caller buffer: %q", m.Data)
	}
}

func TestNextHonoursContext(t *testing.T) {
	r := NewRelay()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := r.Next(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Next() error = %v, want deadline exceeded", err)
	}
}

func TestFetchStreamsUntilEnd(t *testing.T) {
	r := NewRelay()

	// Simulated relay loop: wait for the request, then send two chunks.
	go func() {
		for !r.TakeRequest() {
			time.Sleep(time.Millisecond)
		}
		r.Send([]byte("head"))
		r.Send([]byte("tail"))
		r.End()
	}()

	var out bytes.Buffer
	n, err := r.Fetch(context.Background(), &out)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if n != 8 || out.String() != "headtail" {
		t.Errorf("Fetch() = %d %q", n, out.String())
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("broken") }

func TestFetchDrainsAfterWriteError(t *testing.T) {
	r := NewRelay()
	r.Send([]byte("one"))
	r.Send([]byte("two"))
	r.End()

	if _, err := r.Fetch(context.Background(), failingWriter{}); err == nil {
		t.Fatal("Fetch() should report the write error")
	}

	r.Send([]byte("next"))
	r.End()
	var out bytes.Buffer
	if _, err := r.Fetch(context.Background(), &out); err != nil {
		t.Fatalf("second Fetch() error = %v", err)
	}
	if out.String() != "next" {
		t.Errorf("second Fetch() = %q, stale chunks leaked", out.String())
	}
}
