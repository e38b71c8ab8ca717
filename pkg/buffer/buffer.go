// Package buffer stores HTTP message bytes in memory, spilling to a temp
// file once past a configured threshold, so relaysuite's HTTP proxy doesn't
// hold an unbounded request/response body in RAM (spec.md §5's resource
// discipline: worker allocations stay bounded and are freed on return).
// Grounded on go-rawhttp's pkg/buffer.Buffer, adapted onto relaysuite's
// pkg/errors taxonomy instead of go-rawhttp's.
package buffer

import (
	"bytes"
	"io"
	"os"
	"sync"

	"github.com/relayforge/relaysuite/pkg/errors"
)

// DefaultMemoryLimit is the default memory threshold before spilling to disk.
const DefaultMemoryLimit = 4 * 1024 * 1024

// Buffer stores data either in memory or spooled to a temporary file once
// past its memory limit.
type Buffer struct {
	buf    bytes.Buffer
	file   *os.File
	path   string
	size   int64
	limit  int64
	mu     sync.Mutex
	closed bool
}

// New returns a Buffer with the given memory limit; limit <= 0 uses
// DefaultMemoryLimit.
func New(limit int64) *Buffer {
	if limit <= 0 {
		limit = DefaultMemoryLimit
	}
	return &Buffer{limit: limit}
}

// Write stores p, spilling to disk once the buffer's memory limit is
// exceeded.
func (b *Buffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return 0, errors.NewIOError("buffer_write", "", nil)
	}

	b.size += int64(len(p))

	if b.file == nil && int64(b.buf.Len()+len(p)) <= b.limit {
		return b.buf.Write(p)
	}

	if b.file == nil {
		tmp, err := os.CreateTemp("", "relaysuite-buffer-*.tmp")
		if err != nil {
			return 0, errors.NewIOError("buffer_spill_create", "", err)
		}
		b.file = tmp
		b.path = tmp.Name()

		if b.buf.Len() > 0 {
			if _, err := tmp.Write(b.buf.Bytes()); err != nil {
				b.closeLocked()
				return 0, errors.NewIOError("buffer_spill_write", "", err)
			}
		}
		b.buf.Reset()
	}

	n, err := b.file.Write(p)
	if err != nil {
		return n, errors.NewIOError("buffer_spill_write", "", err)
	}
	return n, nil
}

// Bytes returns the in-memory data. If the payload spilled to disk this is
// empty; use Reader for the general case.
func (b *Buffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.file != nil {
		return nil
	}
	return b.buf.Bytes()
}

// Size returns the total number of bytes written.
func (b *Buffer) Size() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

// IsSpilled reports whether the buffer has spilled to disk.
func (b *Buffer) IsSpilled() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.file != nil
}

// Reader returns a fresh reader over the stored data, from memory or from
// the spilled file.
func (b *Buffer) Reader() (io.ReadCloser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, errors.NewIOError("buffer_reader", "", nil)
	}
	if b.file != nil {
		if err := b.file.Sync(); err != nil {
			return nil, errors.NewIOError("buffer_sync", "", err)
		}
		f, err := os.Open(b.path)
		if err != nil {
			return nil, errors.NewIOError("buffer_reopen", "", err)
		}
		return f, nil
	}
	return io.NopCloser(bytes.NewReader(b.buf.Bytes())), nil
}

// Close releases the spilled temp file, if any. Safe to call more than
// once.
func (b *Buffer) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closeLocked()
}

func (b *Buffer) closeLocked() error {
	if b.closed {
		return nil
	}
	b.closed = true

	if b.file != nil {
		err := b.file.Close()
		if removeErr := os.Remove(b.path); removeErr != nil && err == nil {
			err = removeErr
		}
		b.file = nil
		b.path = ""
		if err != nil {
			return errors.NewIOError("buffer_close", "", err)
		}
	}
	return nil
}
