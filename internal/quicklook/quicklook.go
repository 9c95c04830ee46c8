// Package quicklook renders a browse PNG from a scaled index band so a run
// can be eyeballed without GIS tooling.
package quicklook

import (
	"fmt"

	"github.com/fogleman/gg"

	"github.com/lsrd-tools/spectral-indices/internal/rawbin"
	"github.com/lsrd-tools/spectral-indices/internal/si"
)

// Options control the rendering. MaxDim bounds the longer image edge;
// the band is decimated by an integer stride to fit.
type Options struct {
	MaxDim int
}

// DefaultMaxDim keeps quicklooks around browse size for full scenes.
const DefaultMaxDim = 1024

// Render reads a scaled index band and writes a grayscale PNG. Index
// values map linearly from [-10000, 10000] to black..white; fill pixels
// render black, saturated pixels white.
func Render(bandPath, pngPath string, nlines, nsamps int, opts Options) error {
	maxDim := opts.MaxDim
	if maxDim <= 0 {
		maxDim = DefaultMaxDim
	}
	stride := 1
	for (nlines+stride-1)/stride > maxDim || (nsamps+stride-1)/stride > maxDim {
		stride++
	}
	width := (nsamps + stride - 1) / stride
	height := (nlines + stride - 1) / stride

	r, err := rawbin.OpenReader(bandPath, nlines, nsamps)
	if err != nil {
		return fmt.Errorf("opening index band: %w", err)
	}
	defer r.Close()

	dc := gg.NewContext(width, height)
	row := make([]int16, nsamps)
	for i := 0; i < height; i++ {
		if err := r.ReadLines(i*stride, 1, row); err != nil {
			return fmt.Errorf("reading line %d: %w", i*stride, err)
		}
		for j := 0; j < width; j++ {
			g := shade(row[j*stride])
			dc.SetRGB(g, g, g)
			dc.SetPixel(j, i)
		}
	}

	if err := dc.SavePNG(pngPath); err != nil {
		return fmt.Errorf("saving quicklook: %w", err)
	}
	return nil
}

func shade(v int16) float64 {
	switch v {
	case si.FillValue:
		return 0
	case si.SaturateValue:
		return 1
	}
	g := (float64(v) + si.IndexScale) / (2 * si.IndexScale)
	if g < 0 {
		g = 0
	} else if g > 1 {
		g = 1
	}
	return g
}
