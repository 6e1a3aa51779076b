package rpcwire

import (
	"context"
	"sync"
	"time"
)

// Writer is the minimal sink PaddedWriter flushes padded frames to: a raw
// TCP/TLS connection or a websocket connection both satisfy it.
type Writer interface {
	Write(p []byte) (int, error)
}

// MinPayloadSize is the smallest padded packet PaddedWriter ever sends,
// matching the reference transport's traffic-analysis countermeasure.
const MinPayloadSize = 1024

// PaddedWriter buffers outgoing JSON-RPC lines and flushes them as
// roughly power-of-two-sized packets padded with trailing spaces, so a
// network observer who can only see packet sizes (not plaintext, assumed
// wrapped in TLS) can't fingerprint individual responses. Buffered data is
// flushed once it's large enough, or after it's sat unsent for a while.
type PaddedWriter struct {
	conn Writer

	mu       sync.Mutex
	buf      []byte
	lastSend time.Time

	hasData chan struct{}
	closed  chan struct{}
	once    sync.Once
}

// NewPaddedWriter starts the writer's background flush loop over conn. The
// caller must call Close when the connection ends.
func NewPaddedWriter(conn Writer) *PaddedWriter {
	w := &PaddedWriter{
		conn:     conn,
		lastSend: time.Now(),
		hasData:  make(chan struct{}, 1),
		closed:   make(chan struct{}),
	}
	go w.pollLoop()
	return w
}

// Write appends framed to the send buffer and flushes immediately if it is
// already large enough.
func (w *PaddedWriter) Write(framed []byte) {
	w.mu.Lock()
	w.buf = append(w.buf, framed...)
	w.mu.Unlock()

	select {
	case w.hasData <- struct{}{}:
	default:
	}
	w.maybeFlush()
}

func (w *PaddedWriter) pollLoop() {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-w.closed:
			return
		case <-ticker.C:
			w.maybeFlush()
		case <-w.hasData:
			w.maybeFlush()
		}
	}
}

// maybeFlush implements the same sizing decision as the reference
// transport: pad to the next power of two at or above MinPayloadSize, or if
// that wastes too much bandwidth, send a half-sized packet and defer the
// remainder.
func (w *PaddedWriter) maybeFlush() {
	w.mu.Lock()
	defer w.mu.Unlock()

	buf := w.buf
	if len(buf) == 0 {
		return
	}
	if len(buf) < MinPayloadSize && time.Since(w.lastSend) < time.Second {
		return
	}

	payloadLsize := len(buf)
	totalLsize := nextPow2AtLeast(payloadLsize, MinPayloadSize)
	npadLsize := totalLsize - payloadLsize

	totalSsize := totalLsize / 2
	if totalSsize < MinPayloadSize {
		totalSsize = MinPayloadSize
	}
	payloadSsize := lastNewlineBefore(buf, totalSsize)

	var npad, splitAt int
	if payloadSsize == -1 {
		npad = npadLsize
		splitAt = payloadLsize
	} else {
		npadSsize := totalSsize - payloadSsize
		if npadLsize <= npadSsize {
			npad = npadLsize
			splitAt = payloadLsize
		} else {
			npad = npadSsize
			splitAt = payloadSsize
		}
	}

	if splitAt < 2 {
		return
	}
	out := make([]byte, 0, splitAt+npad)
	out = append(out, buf[:splitAt-2]...)
	for i := 0; i < npad; i++ {
		out = append(out, ' ')
	}
	out = append(out, buf[splitAt-2:splitAt]...)

	w.buf = append([]byte{}, buf[splitAt:]...)
	w.lastSend = time.Now()

	_, _ = w.conn.Write(out)
}

func nextPow2AtLeast(n, floor int) int {
	p := floor
	for p < n {
		p *= 2
	}
	return p
}

// lastNewlineBefore returns the index just after the last '\n' at or before
// limit, or -1 if none exists.
func lastNewlineBefore(buf []byte, limit int) int {
	if limit > len(buf) {
		limit = len(buf)
	}
	for i := limit - 1; i >= 0; i-- {
		if buf[i] == '\n' {
			return i + 1
		}
	}
	return -1
}

// Close stops the flush loop and sends any remaining buffered data
// immediately, unpadded.
func (w *PaddedWriter) Close() error {
	w.once.Do(func() { close(w.closed) })
	w.mu.Lock()
	remaining := w.buf
	w.buf = nil
	w.mu.Unlock()
	if len(remaining) > 0 {
		_, _ = w.conn.Write(remaining)
	}
	return nil
}

// Flush forces any buffered data out immediately, unpadded, without waiting
// for the size/time thresholds, used when the caller (e.g. a context
// cancellation) needs the connection drained promptly.
func (w *PaddedWriter) Flush(ctx context.Context) {
	w.mu.Lock()
	remaining := w.buf
	w.buf = nil
	w.lastSend = time.Now()
	w.mu.Unlock()
	if len(remaining) > 0 {
		_, _ = w.conn.Write(remaining)
	}
}
