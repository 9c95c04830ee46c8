// Package rawbin reads and writes ESPA raw binary band files: a flat
// little-endian int16 array in row-major order with no embedded header.
// Dimensions and fill/scale metadata live in the scene's XML catalog.
package rawbin

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

const elementSize = 2 // int16 samples

// Reader provides idempotent line-block reads from one band file. Every
// read computes its own byte offset from the line number, so there is no
// cursor to corrupt and failed reads can be retried as-is.
type Reader struct {
	f      *os.File
	nlines int
	nsamps int
	raw    []byte // scratch for one block of encoded samples
}

// OpenReader opens a band file and verifies its size matches the declared
// dimensions.
func OpenReader(path string, nlines, nsamps int) (*Reader, error) {
	if nlines <= 0 || nsamps <= 0 {
		return nil, fmt.Errorf("invalid band dimensions %dx%d", nsamps, nlines)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening band file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat band file %s: %w", path, err)
	}
	want := int64(nlines) * int64(nsamps) * elementSize
	if info.Size() != want {
		f.Close()
		return nil, fmt.Errorf("band file %s is %d bytes, want %d for %d x %d int16",
			path, info.Size(), want, nsamps, nlines)
	}
	return &Reader{f: f, nlines: nlines, nsamps: nsamps}, nil
}

// ReadLines reads nlines full-width lines starting at line into buf, which
// must hold at least nlines*nsamps samples. Either the whole slab is read
// or an error is returned.
func (r *Reader) ReadLines(line, nlines int, buf []int16) error {
	if line < 0 || nlines <= 0 || line+nlines > r.nlines {
		return fmt.Errorf("line range [%d, %d) outside band of %d lines",
			line, line+nlines, r.nlines)
	}
	n := nlines * r.nsamps
	if len(buf) < n {
		return fmt.Errorf("buffer holds %d samples, slab needs %d", len(buf), n)
	}
	nbytes := n * elementSize
	if cap(r.raw) < nbytes {
		r.raw = make([]byte, nbytes)
	}
	raw := r.raw[:nbytes]

	offset := int64(line) * int64(r.nsamps) * elementSize
	if _, err := r.f.ReadAt(raw, offset); err != nil {
		return fmt.Errorf("reading %d lines at line %d: %w", nlines, line, err)
	}
	for i := 0; i < n; i++ {
		buf[i] = int16(binary.LittleEndian.Uint16(raw[i*elementSize:]))
	}
	return nil
}

// Lines returns the declared number of lines in the band.
func (r *Reader) Lines() int { return r.nlines }

// Samples returns the declared number of samples per line.
func (r *Reader) Samples() int { return r.nsamps }

func (r *Reader) Close() error { return r.f.Close() }

var _ io.Closer = (*Reader)(nil)
