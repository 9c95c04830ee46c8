// Package report accumulates per-product output statistics during
// streaming and writes them as a CSV summary beside the output bands.
package report

import (
	"fmt"
	"os"

	"github.com/gocarina/gocsv"
)

// ProductStats summarizes one output band.
type ProductStats struct {
	Band      string  `csv:"band"`
	Pixels    int64   `csv:"pixels"`
	Fill      int64   `csv:"fill"`
	Saturated int64   `csv:"saturated"`
	Valid     int64   `csv:"valid"`
	Min       int16   `csv:"min"`
	Max       int16   `csv:"max"`
	Mean      float64 `csv:"mean"`
}

// Accumulator folds output slabs into running statistics for one band.
// Fill and saturate are the output sentinels, not the input ones.
type Accumulator struct {
	band     string
	fill     int16
	saturate int16

	pixels    int64
	fillN     int64
	saturateN int64
	min       int16
	max       int16
	sum       int64
	anyValid  bool
}

// NewAccumulator starts statistics for a band with the given sentinels.
func NewAccumulator(band string, fill, saturate int16) *Accumulator {
	return &Accumulator{band: band, fill: fill, saturate: saturate}
}

// Add folds one output slab into the statistics.
func (a *Accumulator) Add(slab []int16) {
	a.pixels += int64(len(slab))
	for _, v := range slab {
		switch v {
		case a.fill:
			a.fillN++
		case a.saturate:
			a.saturateN++
		default:
			if !a.anyValid {
				a.min, a.max = v, v
				a.anyValid = true
			} else if v < a.min {
				a.min = v
			} else if v > a.max {
				a.max = v
			}
			a.sum += int64(v)
		}
	}
}

// Stats returns the summary so far.
func (a *Accumulator) Stats() ProductStats {
	s := ProductStats{
		Band:      a.band,
		Pixels:    a.pixels,
		Fill:      a.fillN,
		Saturated: a.saturateN,
		Valid:     a.pixels - a.fillN - a.saturateN,
	}
	if a.anyValid {
		s.Min = a.min
		s.Max = a.max
		s.Mean = float64(a.sum) / float64(s.Valid)
	}
	return s
}

// WriteCSV writes the statistics table to path.
func WriteCSV(path string, stats []ProductStats) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating stats file: %w", err)
	}
	defer f.Close()
	if err := gocsv.MarshalFile(&stats, f); err != nil {
		return fmt.Errorf("writing stats file: %w", err)
	}
	return nil
}
