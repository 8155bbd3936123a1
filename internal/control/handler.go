package control

import (
	"bufio"
	"errors"
	"io"
	"net"
	"strings"
	"time"

	"github.com/smazurov/zoomrelay/internal/events"
	"github.com/smazurov/zoomrelay/internal/frame"
	"github.com/smazurov/zoomrelay/internal/metrics"
)

// Protocol replies.
const (
	ReplyOK               = "OK"
	ReplyMissingParameter = "Missing parameter"
	ReplySyntax           = "Incorrect resolution syntax"
	ReplyOutsideH         = "Viewport is outside the screen in horizontal direction"
	ReplyOutsideV         = "Viewport is outside the screen in vertical direction"
	ReplyUnknown          = "Unknown command"
)

// Metric results.
const (
	resultOK      = "ok"
	resultInvalid = "invalid"
	resultFailed  = "failed"
)

// errReplyFailed ends a connection whose peer can no longer be written to.
var errReplyFailed = errors.New("control: reply failed")

func (s *Server) handleConnection(conn net.Conn) {
	start := time.Now()
	remote := conn.RemoteAddr().String()
	logger := s.logger.With("remote", remote)
	logger.Info("Control client connected")

	defer func() {
		conn.Close()
		logger.Info("Control client disconnected", "duration", time.Since(start))
	}()

	r := bufio.NewReader(conn)
	w := bufio.NewWriter(conn)

	// Lines are read without a length limit; an oversized line is still
	// just one command.
	for {
		line, err := r.ReadString('\n')
		if line != "" {
			if derr := s.dispatch(line, w, conn, remote); derr != nil {
				logger.Warn("Dropping control connection", "error", derr)
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && s.ctx.Err() == nil {
				logger.Warn("Control connection read failed", "error", err)
			}
			return
		}
	}
}

// dispatch runs one command line. A returned error abandons the connection;
// protocol errors are answered and return nil.
func (s *Server) dispatch(line string, w *bufio.Writer, raw io.Writer, remote string) error {
	parts := strings.Split(strings.TrimSpace(line), " ")

	switch parts[0] {
	case "zoom_to":
		if len(parts) < 2 {
			metrics.ControlCommand("zoom_to", resultInvalid)
			return s.reply(w, ReplyMissingParameter)
		}
		reply, result := s.zoomTo(parts[1], remote)
		metrics.ControlCommand("zoom_to", result)
		return s.reply(w, reply)

	case "get_resolution":
		metrics.ControlCommand("get_resolution", resultOK)
		return s.reply(w, s.size.String())

	case "get_image":
		return s.getImage(raw, remote)

	default:
		s.logger.Debug("Unknown control command", "command", parts[0], "remote", remote)
		metrics.ControlCommand("unknown", resultInvalid)
		return s.reply(w, ReplyUnknown)
	}
}

func (s *Server) zoomTo(arg, remote string) (string, string) {
	view, err := frame.ParseViewport(arg, s.size)
	if err != nil {
		s.logger.Debug("Rejected zoom_to", "arg", arg, "remote", remote, "error", err)
		return replyFor(err), resultInvalid
	}

	previous := s.crop.Write(view)
	s.bus.Publish(events.ViewportChangedEvent{Previous: previous, Current: view, Remote: remote})
	s.logger.Info("Viewport changed", "from", previous.String(), "to", view.String(), "remote", remote)
	return ReplyOK, resultOK
}

// getImage requests one frame from the relay and streams it to the client
// chunk by chunk as it arrives.
func (s *Server) getImage(w io.Writer, remote string) error {
	n, err := s.snapshots.Fetch(s.ctx, w)
	s.bus.Publish(events.SnapshotServedEvent{Remote: remote, Bytes: n, Err: err})
	metrics.SnapshotServed(err == nil)
	if err != nil {
		metrics.ControlCommand("get_image", resultFailed)
		return err
	}
	metrics.ControlCommand("get_image", resultOK)
	s.logger.Debug("Snapshot served", "remote", remote, "bytes", n)
	return nil
}

func (s *Server) reply(w *bufio.Writer, msg string) error {
	if _, err := w.WriteString(msg + "\n"); err != nil {
		return errors.Join(errReplyFailed, err)
	}
	if err := w.Flush(); err != nil {
		return errors.Join(errReplyFailed, err)
	}
	return nil
}

// replyFor maps a viewport parse error to its protocol reply.
func replyFor(err error) string {
	switch {
	case errors.Is(err, frame.ErrOutsideH):
		return ReplyOutsideH
	case errors.Is(err, frame.ErrOutsideV):
		return ReplyOutsideV
	default:
		return ReplySyntax
	}
}
