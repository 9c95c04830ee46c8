// Package pipeline streams reflectance line blocks through the spectral
// index formulas and writes scaled int16 output bands, keeping every output
// product and its metadata in sync.
package pipeline

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/schollz/progressbar/v3"

	"github.com/lsrd-tools/spectral-indices/internal/espa"
	"github.com/lsrd-tools/spectral-indices/internal/gdalio"
	"github.com/lsrd-tools/spectral-indices/internal/rawbin"
	"github.com/lsrd-tools/spectral-indices/internal/report"
	"github.com/lsrd-tools/spectral-indices/internal/si"
)

// ErrCanceled is wrapped by the error returned when a Cancel hook stops
// the run at a block boundary.
var ErrCanceled = errors.New("run canceled")

// State tracks the driver through its lifecycle. Transitions only move
// forward; any failure abandons the run where it stands.
type State int

const (
	Configured State = iota
	Opened
	Streaming
	Finalizing
	Closed
)

func (s State) String() string {
	switch s {
	case Configured:
		return "configured"
	case Opened:
		return "opened"
	case Streaming:
		return "streaming"
	case Finalizing:
		return "finalizing"
	case Closed:
		return "closed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

type blockReader interface {
	ReadLines(line, nlines int, buf []int16) error
	Close() error
}

type blockWriter interface {
	WriteLines(line, nlines int, buf []int16) error
	Path() string
	Close() error
}

// inputBand is one distinct reflectance band: its metadata, its stream,
// and the scratch buffer its slabs land in. Bands shared by several
// indices are read once per block into this one buffer.
type inputBand struct {
	number int
	meta   *espa.Band
	r      blockReader
	buf    []int16
}

// product is one requested index product and its output stream.
type product struct {
	def      si.Definition
	bandName string
	fileName string
	w        blockWriter
	buf      []int16
	inputs   []*inputBand // in def.Bands order
	in       [][]int16    // slab views over inputs, rebuilt per block
	stats    *report.Accumulator
}

// Report describes a completed run.
type Report struct {
	SceneID     string
	Instrument  string
	Source      string
	Extent      orb.Bound // geographic scene extent, lon/lat
	Nlines      int
	Nsamps      int
	Blocks      int
	OutputBands []string
	OutputFiles []string
	Stats       []report.ProductStats
	Elapsed     time.Duration
}

// Pipeline drives one run over one scene.
type Pipeline struct {
	cfg   Config
	meta  *espa.Metadata
	dir   string
	state State

	rep      *espa.Band
	source   string // sr_refl or toa_refl
	nlines   int
	nsamps   int
	fill     int16
	saturate int16
	scale    float64

	inputs   []*inputBand
	products []*product

	// Seams for tests; production runs use rawbin or gdalio.
	openReader func(path string, nlines, nsamps int) (blockReader, error)
	openWriter func(path string, nlines, nsamps int) (blockWriter, error)
}

// Run executes the whole pipeline for one configuration and reports the
// produced output bands. Any error aborts the run; partially written
// output files are not cleaned up and must not be treated as valid.
func Run(cfg Config) (*Report, error) {
	p, err := newPipeline(cfg)
	if err != nil {
		return nil, err
	}
	return p.run()
}

func newPipeline(cfg Config) (*Pipeline, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	meta, err := espa.ParseFile(cfg.XMLPath)
	if err != nil {
		return nil, failf(MetadataError, err, "reading scene metadata")
	}
	p := &Pipeline{
		cfg:   cfg,
		meta:  meta,
		dir:   filepath.Dir(cfg.XMLPath),
		state: Configured,
	}
	switch cfg.Format {
	case FormatGeoTIFF:
		p.openReader = func(path string, nlines, nsamps int) (blockReader, error) {
			return gdalio.OpenBand(path, nlines, nsamps)
		}
	default:
		p.openReader = func(path string, nlines, nsamps int) (blockReader, error) {
			return rawbin.OpenReader(path, nlines, nsamps)
		}
	}
	p.openWriter = func(path string, nlines, nsamps int) (blockWriter, error) {
		return rawbin.Create(path, nlines, nsamps)
	}
	return p, nil
}

func (p *Pipeline) run() (*Report, error) {
	start := time.Now()
	defer p.close()

	if err := p.open(); err != nil {
		return nil, err
	}
	blocks, err := p.stream()
	if err != nil {
		return nil, err
	}
	rep, err := p.finalize()
	if err != nil {
		return nil, err
	}
	rep.Blocks = blocks
	rep.Elapsed = time.Since(start)
	return rep, nil
}

// open validates the index selection against the scene, opens every
// distinct input band, and creates one output stream per product.
func (p *Pipeline) open() error {
	rep, err := representativeBand(p.meta)
	if err != nil {
		return err
	}
	p.rep = rep

	p.source = "sr_refl"
	prefix := "sr"
	if p.cfg.TOA {
		p.source, prefix = "toa_refl", "toa"
	}

	roles, err := si.InstrumentBands(p.meta.Global.Instrument)
	if err != nil {
		return failf(ConfigError, err, "resolving band offsets")
	}

	blockSize := p.cfg.blockSize()
	byNumber := map[int]*inputBand{}
	for _, key := range p.cfg.Indices {
		def, _ := si.Lookup(key)
		for _, role := range def.Bands {
			number := roles[role]
			if byNumber[number] != nil {
				continue
			}
			bmeta, ok := p.meta.ReflectanceBand(p.cfg.TOA, number)
			if !ok {
				return &Error{Kind: InputError, Band: number, Line: -1,
					Op: fmt.Sprintf("band %s_band%d (%s) not found in scene metadata", prefix, number, role)}
			}
			if p.nlines == 0 {
				p.nlines, p.nsamps = bmeta.Nlines, bmeta.Nsamps
				p.fill = int16(bmeta.FillValue)
				p.saturate = int16(bmeta.SaturateValue)
				p.scale = bmeta.ScaleFactor
			} else if bmeta.Nlines != p.nlines || bmeta.Nsamps != p.nsamps {
				return &Error{Kind: InputError, Band: number, Line: -1,
					Op: fmt.Sprintf("band %s is %dx%d, other bands are %dx%d",
						bmeta.Name, bmeta.Nsamps, bmeta.Nlines, p.nsamps, p.nlines)}
			}
			r, err := p.openReader(p.bandPath(bmeta.FileName), bmeta.Nlines, bmeta.Nsamps)
			if err != nil {
				return &Error{Kind: InputError, Band: number, Line: -1,
					Op: fmt.Sprintf("opening band %s", bmeta.Name), Err: err}
			}
			band := &inputBand{
				number: number,
				meta:   bmeta,
				r:      r,
				buf:    make([]int16, blockSize*bmeta.Nsamps),
			}
			byNumber[number] = band
			p.inputs = append(p.inputs, band)
		}
	}

	grouping := p.cfg.grouping()
	for _, key := range p.cfg.Indices {
		def, _ := si.Lookup(key)
		bandName := prefix + "_" + def.ShortName
		fileName := grouping(p.meta.Global.ProductID, bandName, def)
		w, err := p.openWriter(filepath.Join(p.dir, fileName), p.nlines, p.nsamps)
		if err != nil {
			return &Error{Kind: OutputError, Product: bandName, Line: -1,
				Op: fmt.Sprintf("creating output %s", fileName), Err: err}
		}
		prod := &product{
			def:      def,
			bandName: bandName,
			fileName: fileName,
			w:        w,
			buf:      make([]int16, blockSize*p.nsamps),
			stats:    report.NewAccumulator(bandName, si.FillValue, si.SaturateValue),
		}
		for _, role := range def.Bands {
			prod.inputs = append(prod.inputs, byNumber[roles[role]])
		}
		prod.in = make([][]int16, len(prod.inputs))
		p.products = append(p.products, prod)
	}

	if p.cfg.Verbose {
		ext := p.meta.Global.Bound()
		fmt.Printf("  Scene extent: %.6f,%.6f to %.6f,%.6f\n",
			ext.Min.Lon(), ext.Min.Lat(), ext.Max.Lon(), ext.Max.Lat())
		fmt.Printf("  Number of lines/samples: %d/%d\n", p.nlines, p.nsamps)
		fmt.Printf("  Number of input bands: %d\n", len(p.inputs))
		fmt.Printf("  Fill value: %d\n", p.fill)
		fmt.Printf("  Saturation value: %d\n", p.saturate)
		fmt.Printf("  Scale factor: %g\n", p.scale)
		fmt.Printf("  Processing %d lines at a time\n", blockSize)
	}

	p.state = Opened
	return nil
}

// bandPath resolves a band file name relative to the metadata directory,
// swapping the raw binary extension for .tif when reading GeoTIFF.
func (p *Pipeline) bandPath(fileName string) string {
	if p.cfg.Format == FormatGeoTIFF {
		fileName = strings.TrimSuffix(fileName, ".img") + ".tif"
	}
	return filepath.Join(p.dir, fileName)
}

// stream iterates the scene top to bottom in line blocks. Each distinct
// input band is read exactly once per block no matter how many indices
// consume it; then every product computes and writes its slab before the
// driver advances.
func (p *Pipeline) stream() (int, error) {
	p.state = Streaming
	blockSize := p.cfg.blockSize()

	var bar *progressbar.ProgressBar
	if p.cfg.Progress {
		bar = progressbar.Default(int64(p.nlines), "computing spectral indices")
	}

	blocks := 0
	for line := 0; line < p.nlines; line += blockSize {
		if p.cfg.Cancel != nil && p.cfg.Cancel() {
			return blocks, &Error{Kind: IOError, Line: line,
				Op: "aborting at block boundary", Err: ErrCanceled}
		}

		n := blockSize
		if line+n > p.nlines {
			n = p.nlines - line
		}
		slab := n * p.nsamps

		for _, band := range p.inputs {
			if err := band.r.ReadLines(line, n, band.buf); err != nil {
				return blocks, &Error{Kind: IOError, Band: band.number, Line: line,
					Op: fmt.Sprintf("reading %d lines from band %s", n, band.meta.Name), Err: err}
			}
		}

		for _, prod := range p.products {
			for i, band := range prod.inputs {
				prod.in[i] = band.buf[:slab]
			}
			out := prod.buf[:slab]
			prod.def.Compute(prod.in, p.scale, p.fill, p.saturate, out)
			prod.stats.Add(out)
			if err := prod.w.WriteLines(line, n, out); err != nil {
				return blocks, &Error{Kind: IOError, Product: prod.bandName, Line: line,
					Op: fmt.Sprintf("writing %d output lines", n), Err: err}
			}
		}

		blocks++
		if bar != nil {
			bar.Add(n)
		}
	}
	return blocks, nil
}

// finalize closes the inputs, flushes and closes every output stream, then
// derives and persists the output band descriptors: an ENVI header per
// band plus one append into the scene's XML catalog.
func (p *Pipeline) finalize() (*Report, error) {
	p.state = Finalizing

	for _, band := range p.inputs {
		if err := band.r.Close(); err != nil {
			return nil, &Error{Kind: IOError, Band: band.number, Line: -1,
				Op: fmt.Sprintf("closing band %s", band.meta.Name), Err: err}
		}
		band.r = nil
	}

	now := time.Now()
	rep := &Report{
		SceneID:    p.meta.Global.ProductID,
		Instrument: p.meta.Global.Instrument,
		Source:     p.source,
		Extent:     p.meta.Global.Bound(),
		Nlines:     p.nlines,
		Nsamps:     p.nsamps,
	}

	var bands []espa.Band
	for _, prod := range p.products {
		if err := prod.w.Close(); err != nil {
			return nil, &Error{Kind: IOError, Product: prod.bandName, Line: -1,
				Op: "closing output stream", Err: err}
		}
		prod.w = nil

		band := outputBandMeta(p.rep, prod.def, prod.bandName, prod.fileName, p.source, now)
		if _, err := espa.WriteEnviHeader(p.dir, &band); err != nil {
			return nil, &Error{Kind: IOError, Product: prod.bandName, Line: -1,
				Op: "writing ENVI header", Err: err}
		}
		bands = append(bands, band)

		rep.OutputBands = append(rep.OutputBands, prod.bandName)
		rep.OutputFiles = append(rep.OutputFiles, filepath.Join(p.dir, prod.fileName))
		rep.Stats = append(rep.Stats, prod.stats.Stats())
	}

	if err := espa.AppendBands(p.cfg.XMLPath, bands); err != nil {
		return nil, failf(MetadataError, err, "appending output bands to scene metadata")
	}
	return rep, nil
}

// close releases whatever is still open and drops the scratch buffers.
// Safe after a failure at any stage.
func (p *Pipeline) close() {
	for _, band := range p.inputs {
		if band.r != nil {
			band.r.Close()
		}
		band.buf = nil
	}
	for _, prod := range p.products {
		if prod.w != nil {
			prod.w.Close()
		}
		prod.buf = nil
		prod.in = nil
	}
	p.state = Closed
}
