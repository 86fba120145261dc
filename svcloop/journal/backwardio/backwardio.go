// Package backwardio implements a buffered scanner that scans backwards, from
// the end of a file to its start.
package backwardio

import (
	"bufio"
	"bytes"
	"io"

	"github.com/pkg/errors"
)

// DefaultSize is the default maximum token size, which is also the size of the
// scanner's buffer.
const DefaultSize = bufio.MaxScanTokenSize

// Scanner reads delimited tokens from an io.ReadSeeker starting at the end.
// Tokens returned by ReadUntil are only valid until the next call.
type Scanner struct {
	r    io.ReadSeeker
	buf  []byte // unconsumed bytes, mapping to file[off:off+len(buf)]
	size int
	off  int64

	started bool
	done    bool
}

// NewScanner creates a new scanner with DefaultSize.
func NewScanner(r io.ReadSeeker) *Scanner {
	return NewScannerSize(r, DefaultSize)
}

// NewScannerSize creates a new scanner whose tokens may be at most size bytes
// long.
func NewScannerSize(r io.ReadSeeker, size int) *Scanner {
	return &Scanner{r: r, size: size}
}

// ReadUntil returns the bytes between the last unread delim and the one
// before it, excluding both. The first token of the file is returned last,
// after which io.EOF is returned. bufio.ErrTooLong is returned if a token
// does not fit in the buffer.
func (s *Scanner) ReadUntil(delim byte) ([]byte, error) {
	if s.done {
		return nil, io.EOF
	}

	if !s.started {
		end, err := s.r.Seek(0, io.SeekEnd)
		if err != nil {
			return nil, errors.Wrap(err, "failed to find end of file")
		}

		s.off = end
		s.buf = make([]byte, 0, s.size)
		s.started = true
	}

	for {
		if i := bytes.LastIndexByte(s.buf, delim); i >= 0 {
			tok := s.buf[i+1:]
			s.buf = s.buf[:i]
			return tok, nil
		}

		if s.off == 0 {
			s.done = true
			return s.buf, nil
		}

		if len(s.buf) >= s.size {
			return nil, bufio.ErrTooLong
		}

		if err := s.fill(); err != nil {
			return nil, err
		}
	}
}

// fill prepends as much of the file before off as fits into the buffer.
func (s *Scanner) fill() error {
	n := int64(s.size - len(s.buf))
	if n > s.off {
		n = s.off
	}

	old := len(s.buf)
	s.buf = s.buf[:old+int(n)]
	copy(s.buf[n:], s.buf[:old])

	if _, err := s.r.Seek(s.off-n, io.SeekStart); err != nil {
		return errors.Wrap(err, "failed to seek backwards")
	}

	if _, err := io.ReadFull(s.r, s.buf[:n]); err != nil {
		return errors.Wrap(err, "failed to read seeked chunk")
	}

	s.off -= n
	return nil
}
