package rawbin

import (
	"encoding/binary"
	"fmt"
	"os"
)

// Writer writes line blocks to one output band file. The image height is
// fixed at creation and never grows; blocks arrive in increasing line
// order, so writes are purely sequential, but the offset is still computed
// from the line number rather than a cursor.
type Writer struct {
	f      *os.File
	path   string
	nlines int
	nsamps int
	raw    []byte
}

// Create creates (truncating) an output band file for the given dimensions.
func Create(path string, nlines, nsamps int) (*Writer, error) {
	if nlines <= 0 || nsamps <= 0 {
		return nil, fmt.Errorf("invalid band dimensions %dx%d", nsamps, nlines)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating band file: %w", err)
	}
	return &Writer{f: f, path: path, nlines: nlines, nsamps: nsamps}, nil
}

// WriteLines writes nlines full-width lines from buf starting at line.
func (w *Writer) WriteLines(line, nlines int, buf []int16) error {
	if line < 0 || nlines <= 0 || line+nlines > w.nlines {
		return fmt.Errorf("line range [%d, %d) outside band of %d lines",
			line, line+nlines, w.nlines)
	}
	n := nlines * w.nsamps
	if len(buf) < n {
		return fmt.Errorf("buffer holds %d samples, slab needs %d", len(buf), n)
	}
	nbytes := n * elementSize
	if cap(w.raw) < nbytes {
		w.raw = make([]byte, nbytes)
	}
	raw := w.raw[:nbytes]
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint16(raw[i*elementSize:], uint16(buf[i]))
	}

	offset := int64(line) * int64(w.nsamps) * elementSize
	if _, err := w.f.WriteAt(raw, offset); err != nil {
		return fmt.Errorf("writing %d lines at line %d: %w", nlines, line, err)
	}
	return nil
}

// Path returns the file path the writer was created with.
func (w *Writer) Path() string { return w.path }

// Close flushes and closes the band file.
func (w *Writer) Close() error {
	if err := w.f.Sync(); err != nil {
		w.f.Close()
		return fmt.Errorf("syncing band file %s: %w", w.path, err)
	}
	return w.f.Close()
}
