package snapshot

import (
	"context"
	"io"
)

// Fetch raises a request and copies every chunk of the response to w until
// the end marker. After a write error the remaining chunks are still consumed
// so the next request starts on a clean queue; the first write error is
// returned.
func (r *Relay) Fetch(ctx context.Context, w io.Writer) (int64, error) {
	r.Request()

	var written int64
	var writeErr error
	for {
		m, err := r.Next(ctx)
		if err != nil {
			return written, err
		}
		if m.Kind == KindEnd {
			return written, writeErr
		}
		if writeErr != nil {
			continue
		}
		n, err := w.Write(m.Data)
		written += int64(n)
		if err != nil {
			writeErr = err
		}
	}
}
