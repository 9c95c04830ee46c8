// Package gdalio reads reflectance bands from GeoTIFF files through GDAL,
// presenting the same line-block contract as the raw binary reader.
package gdalio

import (
	"fmt"
	"sync"

	"github.com/airbusgeo/godal"
)

var registerOnce sync.Once

// Reader streams line blocks from the first band of a GeoTIFF dataset.
type Reader struct {
	ds     *godal.Dataset
	band   godal.Band
	nlines int
	nsamps int
}

// OpenBand opens a single-band GeoTIFF and checks its dimensions against
// the scene metadata.
func OpenBand(path string, nlines, nsamps int) (*Reader, error) {
	registerOnce.Do(godal.RegisterAll)

	ds, err := godal.Open(path, godal.ErrLogger(func(ec godal.ErrorCategory, code int, msg string) error {
		if ec <= godal.CE_Warning {
			return nil
		}
		return fmt.Errorf("gdal: %s", msg)
	}))
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	st := ds.Structure()
	if st.SizeX != nsamps || st.SizeY != nlines {
		ds.Close()
		return nil, fmt.Errorf("%s is %dx%d, metadata declares %dx%d",
			path, st.SizeX, st.SizeY, nsamps, nlines)
	}
	bands := ds.Bands()
	if len(bands) == 0 {
		ds.Close()
		return nil, fmt.Errorf("%s has no raster bands", path)
	}
	return &Reader{ds: ds, band: bands[0], nlines: nlines, nsamps: nsamps}, nil
}

// ReadLines reads nlines full-width lines starting at line into buf.
func (r *Reader) ReadLines(line, nlines int, buf []int16) error {
	if line < 0 || nlines <= 0 || line+nlines > r.nlines {
		return fmt.Errorf("line range [%d, %d) outside band of %d lines",
			line, line+nlines, r.nlines)
	}
	n := nlines * r.nsamps
	if len(buf) < n {
		return fmt.Errorf("buffer holds %d samples, slab needs %d", len(buf), n)
	}
	if err := r.band.Read(0, line, buf[:n], r.nsamps, nlines); err != nil {
		return fmt.Errorf("reading %d lines at line %d: %w", nlines, line, err)
	}
	return nil
}

// Lines returns the declared number of lines in the band.
func (r *Reader) Lines() int { return r.nlines }

// Samples returns the declared number of samples per line.
func (r *Reader) Samples() int { return r.nsamps }

func (r *Reader) Close() error { return r.ds.Close() }
