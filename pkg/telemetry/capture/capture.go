// Package capture reads and writes raw datagram capture files: each
// datagram is stored as a little endian uint32 length prefix followed
// by the payload bytes. The format carries no timestamps; replay speed
// is the consumer's business.
package capture

import (
	"bufio"
	"encoding/binary"
	"io"
	"os"

	"github.com/pkg/errors"
)

// datagrams larger than this are corrupt capture data
const maxDatagramLen = 64 * 1024

type Writer struct {
	f *os.File
	w *bufio.Writer
}

func NewWriter(filename string) (*Writer, error) {
	f, err := os.Create(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "creating capture file %s", filename)
	}
	return &Writer{f: f, w: bufio.NewWriter(f)}, nil
}

func (c *Writer) Write(buf []byte) error {
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(buf)))
	if _, err := c.w.Write(lenBuf[:]); err != nil {
		return errors.Wrap(err, "writing datagram length")
	}
	_, err := c.w.Write(buf)
	return errors.Wrap(err, "writing datagram")
}

func (c *Writer) Close() error {
	if err := c.w.Flush(); err != nil {
		//nolint:errcheck // the flush error is the interesting one
		c.f.Close()
		return errors.Wrap(err, "flushing capture file")
	}
	return errors.Wrap(c.f.Close(), "closing capture file")
}

type Reader struct {
	f *os.File
	r *bufio.Reader
}

func NewReader(filename string) (*Reader, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "opening capture file %s", filename)
	}
	return &Reader{f: f, r: bufio.NewReader(f)}, nil
}

// Next returns the next datagram or io.EOF at the clean end of the file.
func (c *Reader) Next() ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(c.r, lenBuf[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, errors.Wrap(err, "reading datagram length")
	}
	n := binary.LittleEndian.Uint32(lenBuf[:])
	if n == 0 || n > maxDatagramLen {
		return nil, errors.Errorf("implausible datagram length %d", n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(c.r, buf); err != nil {
		return nil, errors.Wrap(err, "reading datagram")
	}
	return buf, nil
}

func (c *Reader) Close() error {
	return errors.Wrap(c.f.Close(), "closing capture file")
}
