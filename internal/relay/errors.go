package relay

import (
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
)

// ErrEndOfInput reports that the producer closed the input stream,
// possibly in the middle of a frame.
var ErrEndOfInput = errors.New("relay: end of input")

// outputError marks a failure writing to the consumer.
type outputError struct {
	err error
}

func (e *outputError) Error() string { return "write output: " + e.err.Error() }

func (e *outputError) Unwrap() error { return e.err }

// output tags every write failure so it can be told apart from engine I/O.
type output struct {
	w io.Writer
}

func (o output) Write(p []byte) (int, error) {
	n, err := o.w.Write(p)
	if err != nil {
		return n, &outputError{err: err}
	}
	return n, nil
}

// readFull fills buf from the input, mapping any EOF to ErrEndOfInput.
func readFull(r io.Reader, buf []byte) error {
	if _, err := io.ReadFull(r, buf); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return ErrEndOfInput
		}
		return fmt.Errorf("read input: %w", err)
	}
	return nil
}

// consumerGone reports whether err is the consumer closing the output.
func consumerGone(err error) bool {
	var oe *outputError
	if !errors.As(err, &oe) {
		return false
	}
	return errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, net.ErrClosed)
}

// IsGraceful reports whether err ends the relay without a failure:
// end of input or a disconnected consumer.
func IsGraceful(err error) bool {
	return err == nil || errors.Is(err, ErrEndOfInput) || consumerGone(err)
}
