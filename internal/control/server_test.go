package control

import (
	"bufio"
	"bytes"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/smazurov/zoomrelay/internal/crop"
	"github.com/smazurov/zoomrelay/internal/events"
	"github.com/smazurov/zoomrelay/internal/frame"
	"github.com/smazurov/zoomrelay/internal/snapshot"
)

var testSize = frame.Size{Width: 1280, Height: 720}

type testServer struct {
	*Server
	crop      *crop.State
	snapshots *snapshot.Relay
	bus       *events.Bus
}

func startServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{
		crop:      crop.NewState(testSize),
		snapshots: snapshot.NewRelay(),
		bus:       events.New(),
	}
	ts.Server = NewServer(Options{
		Addr:      "127.0.0.1:0",
		Size:      testSize,
		Crop:      ts.crop,
		Snapshots: ts.snapshots,
		Bus:       ts.bus,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err := ts.Listen(); err != nil {
		t.Fatalf("Listen() error = %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- ts.Serve() }()
	t.Cleanup(func() {
		ts.Close()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Serve() error = %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Error("Serve did not return after Close")
		}
		ts.bus.Close()
	})
	return ts
}

type client struct {
	t    *testing.T
	conn net.Conn
	r    *bufio.Reader
}

func dial(t *testing.T, addr net.Addr) *client {
	t.Helper()
	conn, err := net.Dial("tcp", addr.String())
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return &client{t: t, conn: conn, r: bufio.NewReader(conn)}
}

func (c *client) send(line string) {
	c.t.Helper()
	c.conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
	if _, err := io.WriteString(c.conn, line+"\n"); err != nil {
		c.t.Fatalf("write %q: %v", line, err)
	}
}

func (c *client) readLine() string {
	c.t.Helper()
	c.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	line, err := c.r.ReadString('\n')
	if err != nil {
		c.t.Fatalf("read reply: %v", err)
	}
	return strings.TrimSuffix(line, "\n")
}

func (c *client) command(line string) string {
	c.t.Helper()
	c.send(line)
	return c.readLine()
}

func TestZoomTo(t *testing.T) {
	tests := []struct {
		name  string
		line  string
		reply string
		view  frame.Viewport
	}{
		{"valid", "zoom_to 640x360+320+180", ReplyOK, frame.Viewport{X: 320, Y: 180, W: 640, H: 360}},
		{"full frame", "zoom_to 1280x720+0+0", ReplyOK, frame.Full(testSize)},
		{"touches right edge", "zoom_to 10x10+1270+0", ReplyOK, frame.Viewport{X: 1270, Y: 0, W: 10, H: 10}},
		{"surrounding spaces", "  zoom_to 2x2+1+1  ", ReplyOK, frame.Viewport{X: 1, Y: 1, W: 2, H: 2}},
		{"missing", "zoom_to", ReplyMissingParameter, frame.Full(testSize)},
		{"trailing space only", "zoom_to ", ReplyMissingParameter, frame.Full(testSize)},
		{"empty parameter", "zoom_to  640x360+0+0", ReplySyntax, frame.Full(testSize)},
		{"syntax", "zoom_to 640-360+0+0", ReplySyntax, frame.Full(testSize)},
		{"not a number", "zoom_to axb+0+0", ReplySyntax, frame.Full(testSize)},
		{"too few offsets", "zoom_to 640x360+0", ReplySyntax, frame.Full(testSize)},
		{"zero width", "zoom_to 0x360+0+0", ReplySyntax, frame.Full(testSize)},
		{"horizontal", "zoom_to 640x360+641+0", ReplyOutsideH, frame.Full(testSize)},
		{"vertical", "zoom_to 640x360+0+361", ReplyOutsideV, frame.Full(testSize)},
		{"both outside", "zoom_to 2000x2000+0+0", ReplyOutsideH, frame.Full(testSize)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := startServer(t)
			c := dial(t, ts.Addr())

			if got := c.command(tt.line); got != tt.reply {
				t.Errorf("reply = %q, want %q", got, tt.reply)
			}
			if got := ts.crop.Read(); got != tt.view {
				t.Errorf("crop = %s, want %s", got, tt.view)
			}
		})
	}
}

func TestRejectedZoomKeepsPreviousViewport(t *testing.T) {
	ts := startServer(t)
	c := dial(t, ts.Addr())

	want := frame.Viewport{X: 10, Y: 20, W: 100, H: 50}
	if got := c.command("zoom_to 100x50+10+20"); got != ReplyOK {
		t.Fatalf("reply = %q", got)
	}
	for _, line := range []string{"zoom_to 100x50+1200+0", "zoom_to 100x50+0+700", "zoom_to junk", "zoom_to"} {
		c.command(line)
	}
	if got := ts.crop.Read(); got != want {
		t.Errorf("crop = %s, want %s", got, want)
	}
}

func TestRepeatedZoomIsIdempotent(t *testing.T) {
	ts := startServer(t)
	c := dial(t, ts.Addr())

	for i := 0; i < 2; i++ {
		if got := c.command("zoom_to 640x360+320+180"); got != ReplyOK {
			t.Fatalf("attempt %d reply = %q", i, got)
		}
	}
	if got, want := ts.crop.Read(), (frame.Viewport{X: 320, Y: 180, W: 640, H: 360}); got != want {
		t.Errorf("crop = %s, want %s", got, want)
	}
}

func TestGetResolutionIgnoresViewport(t *testing.T) {
	ts := startServer(t)
	c := dial(t, ts.Addr())

	if got := c.command("get_resolution"); got != "1280x720" {
		t.Errorf("reply = %q", got)
	}
	c.command("zoom_to 64x36+0+0")
	if got := c.command("get_resolution"); got != "1280x720" {
		t.Errorf("reply after zoom = %q", got)
	}
}

func TestUnknownCommandKeepsConnection(t *testing.T) {
	ts := startServer(t)
	c := dial(t, ts.Addr())

	for _, line := range []string{"", "zoom", "ZOOM_TO 1x1+0+0", "get_resolution_now"} {
		if got := c.command(line); got != ReplyUnknown {
			t.Errorf("%q: reply = %q, want %q", line, got, ReplyUnknown)
		}
	}
	if got := c.command("get_resolution"); got != "1280x720" {
		t.Errorf("connection unusable after errors: %q", got)
	}
}

func TestOversizedLineKeepsConnection(t *testing.T) {
	ts := startServer(t)
	c := dial(t, ts.Addr())

	if got := c.command(strings.Repeat("a", 70000)); got != ReplyUnknown {
		t.Errorf("reply = %q, want %q", got, ReplyUnknown)
	}
	if got := c.command("zoom_to " + strings.Repeat("1", 100000)); got != ReplySyntax {
		t.Errorf("reply = %q, want %q", got, ReplySyntax)
	}
	if got := c.command("get_resolution"); got != "1280x720" {
		t.Errorf("connection unusable after long lines: %q", got)
	}
}

func TestConnectionsServedOneAtATime(t *testing.T) {
	ts := startServer(t)
	first := dial(t, ts.Addr())
	if got := first.command("get_resolution"); got != "1280x720" {
		t.Fatalf("first reply = %q", got)
	}

	second := dial(t, ts.Addr())
	second.send("get_resolution")

	// The second client waits while the first one is connected.
	second.conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	if _, err := second.r.ReadString('\n'); err == nil {
		t.Fatal("second connection served while first still open")
	}

	first.conn.Close()
	if got := second.readLine(); got != "1280x720" {
		t.Errorf("second reply = %q", got)
	}
}

// serveSnapshots stands in for the relay loop: every pending request is
// answered with chunks followed by the end marker.
func serveSnapshots(t *testing.T, r *snapshot.Relay, chunks ...[]byte) {
	t.Helper()
	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			case <-time.After(5 * time.Millisecond):
			}
			if r.TakeRequest() {
				for _, c := range chunks {
					r.Send(c)
				}
				r.End()
			}
		}
	}()
	t.Cleanup(func() {
		close(stop)
		wg.Wait()
	})
}

func TestGetImageStreamsChunks(t *testing.T) {
	ts := startServer(t)
	chunks := [][]byte{
		bytes.Repeat([]byte{1}, 1000),
		bytes.Repeat([]byte{2}, 70000),
		bytes.Repeat([]byte{3}, 5),
	}
	serveSnapshots(t, ts.snapshots, chunks...)

	served := make(chan events.SnapshotServedEvent, 1)
	unsub := ts.bus.Subscribe(func(e events.SnapshotServedEvent) { served <- e })
	defer unsub()

	c := dial(t, ts.Addr())
	c.send("get_image")

	want := bytes.Join(chunks, nil)
	got := make([]byte, len(want))
	c.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := io.ReadFull(c.r, got); err != nil {
		t.Fatalf("read image: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Error("image bytes differ from the relayed chunks")
	}

	// The connection stays usable after the image.
	if reply := c.command("get_resolution"); reply != "1280x720" {
		t.Errorf("reply after image = %q", reply)
	}

	select {
	case e := <-served:
		if e.Bytes != int64(len(want)) || e.Err != nil {
			t.Errorf("event = %+v", e)
		}
	case <-time.After(time.Second):
		t.Error("no SnapshotServedEvent")
	}
}

func TestViewportChangedEvent(t *testing.T) {
	ts := startServer(t)
	changed := make(chan events.ViewportChangedEvent, 1)
	unsub := ts.bus.Subscribe(func(e events.ViewportChangedEvent) { changed <- e })
	defer unsub()

	c := dial(t, ts.Addr())
	c.command("zoom_to 640x360+320+180")

	select {
	case e := <-changed:
		if e.Previous != frame.Full(testSize) || e.Current != (frame.Viewport{X: 320, Y: 180, W: 640, H: 360}) {
			t.Errorf("event = %+v", e)
		}
	case <-time.After(time.Second):
		t.Error("no ViewportChangedEvent")
	}
}

func TestReplyFor(t *testing.T) {
	tests := []struct {
		arg  string
		want string
	}{
		{"", ReplySyntax},
		{"1x1", ReplySyntax},
		{"1281x1+0+0", ReplyOutsideH},
		{"1x721+0+0", ReplyOutsideV},
		{"70000x1+0+0", ReplySyntax},
	}
	for _, tt := range tests {
		_, err := frame.ParseViewport(tt.arg, testSize)
		if err == nil {
			t.Fatalf("ParseViewport(%q) succeeded", tt.arg)
		}
		if got := replyFor(err); got != tt.want {
			t.Errorf("replyFor(%q) = %q, want %q", tt.arg, got, tt.want)
		}
	}
}
