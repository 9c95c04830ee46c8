package pipeline

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"

	"github.com/lsrd-tools/spectral-indices/internal/espa"
	"github.com/lsrd-tools/spectral-indices/internal/rawbin"
	"github.com/lsrd-tools/spectral-indices/internal/si"
)

const testSceneID = "LC80400332013190LGN00"

// writeScene materializes a synthetic ESPA scene: band files plus the XML
// catalog. bands maps physical band numbers to pixel data of nlines*nsamps.
func writeScene(t *testing.T, dir, instrument string, toa bool, nlines, nsamps int, bands map[int][]int16) string {
	t.Helper()

	product, prefix := "sr_refl", "sr"
	if toa {
		product, prefix = "toa_refl", "toa"
	}

	meta := &espa.Metadata{
		Version: "2.0",
		Global: espa.GlobalMetadata{
			DataProvider:    "USGS/EROS",
			Satellite:       "LANDSAT_8",
			Instrument:      instrument,
			AcquisitionDate: "2013-07-09",
			ProductID:       testSceneID,
			Bounding: espa.BoundingCoordinates{
				West: -120.291575, East: -117.621391,
				North: 39.622058, South: 37.432675,
			},
		},
	}

	// The representative band 1 always exists, zero-filled if the caller
	// did not provide it.
	if _, ok := bands[1]; !ok {
		bands[1] = make([]int16, nlines*nsamps)
	}

	for number, data := range bands {
		if len(data) != nlines*nsamps {
			t.Fatalf("band %d has %d samples, want %d", number, len(data), nlines*nsamps)
		}
		name := fmt.Sprintf("%s_band%d", prefix, number)
		fileName := fmt.Sprintf("%s_%s.img", testSceneID, name)

		w, err := rawbin.Create(filepath.Join(dir, fileName), nlines, nsamps)
		if err != nil {
			t.Fatal(err)
		}
		if err := w.WriteLines(0, nlines, data); err != nil {
			t.Fatal(err)
		}
		if err := w.Close(); err != nil {
			t.Fatal(err)
		}

		meta.Bands = append(meta.Bands, espa.Band{
			Product:       product,
			Source:        "level1",
			Name:          name,
			Category:      "image",
			DataType:      espa.DataTypeInt16,
			Nlines:        nlines,
			Nsamps:        nsamps,
			FillValue:     -9999,
			SaturateValue: 20000,
			ScaleFactor:   0.0001,
			ShortName:     "LC8SR",
			LongName:      fmt.Sprintf("band %d reflectance", number),
			FileName:      fileName,
			PixelSize:     espa.PixelSize{X: 30, Y: 30, Units: "meters"},
			DataUnits:     "reflectance",
		})
	}

	xmlPath := filepath.Join(dir, testSceneID+".xml")
	if err := espa.WriteFile(xmlPath, meta); err != nil {
		t.Fatal(err)
	}
	return xmlPath
}

func readBand(t *testing.T, path string, nlines, nsamps int) []int16 {
	t.Helper()
	r, err := rawbin.OpenReader(path, nlines, nsamps)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	buf := make([]int16, nlines*nsamps)
	if err := r.ReadLines(0, nlines, buf); err != nil {
		t.Fatal(err)
	}
	return buf
}

func TestRunNDVI(t *testing.T) {
	dir := t.TempDir()
	// OLI_TIRS: nir = band 5, red = band 4.
	nir := []int16{5000, -9999, 20000, 0, 2000, 4000}
	red := []int16{3000, 3000, 3000, 0, -2000, 4000}
	xmlPath := writeScene(t, dir, "OLI_TIRS", false, 2, 3, map[int][]int16{4: red, 5: nir})

	rep, err := Run(Config{XMLPath: xmlPath, Indices: []si.Key{si.NDVI}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if rep.SceneID != testSceneID || rep.Instrument != "OLI_TIRS" || rep.Source != "sr_refl" {
		t.Errorf("report identity: %+v", rep)
	}
	if rep.Blocks != 1 || rep.Nlines != 2 || rep.Nsamps != 3 {
		t.Errorf("report geometry: %+v", rep)
	}
	wantExtent := orb.Bound{
		Min: orb.Point{-120.291575, 37.432675},
		Max: orb.Point{-117.621391, 39.622058},
	}
	if rep.Extent != wantExtent {
		t.Errorf("report extent: %v, want %v", rep.Extent, wantExtent)
	}
	if len(rep.OutputBands) != 1 || rep.OutputBands[0] != "sr_ndvi" {
		t.Fatalf("output bands: %v", rep.OutputBands)
	}

	got := readBand(t, rep.OutputFiles[0], 2, 3)
	want := []int16{2500, -9999, 20000, 0, 0, 0}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("pixel %d: have %d want %d", i, got[i], want[i])
		}
	}

	// Stats reflect the same slab.
	if len(rep.Stats) != 1 {
		t.Fatalf("stats: %v", rep.Stats)
	}
	s := rep.Stats[0]
	if s.Pixels != 6 || s.Fill != 1 || s.Saturated != 1 || s.Valid != 4 {
		t.Errorf("stats counts: %+v", s)
	}
	if s.Min != 0 || s.Max != 2500 {
		t.Errorf("stats range: %+v", s)
	}

	// The catalog gained the output band descriptor.
	m, err := espa.ParseFile(xmlPath)
	if err != nil {
		t.Fatal(err)
	}
	band, ok := m.FindBand("spectral_indices", "sr_ndvi")
	if !ok {
		t.Fatal("sr_ndvi not appended to catalog")
	}
	if band.FillValue != -9999 || band.SaturateValue != 20000 || band.ScaleFactor != 0.0001 {
		t.Errorf("descriptor constants: %+v", band)
	}
	if band.ValidRange == nil || band.ValidRange.Min != -10000 || band.ValidRange.Max != 10000 {
		t.Errorf("descriptor valid range: %+v", band.ValidRange)
	}
	if band.LongName != "normalized difference vegetation index" {
		t.Errorf("descriptor long name: %q", band.LongName)
	}

	// And the ENVI header exists beside the band file.
	hdr := filepath.Join(dir, testSceneID+"_sr_ndvi.hdr")
	if _, err := os.Stat(hdr); err != nil {
		t.Errorf("ENVI header: %v", err)
	}
}

func TestRunTOA(t *testing.T) {
	dir := t.TempDir()
	nir := []int16{5000, 3000}
	red := []int16{3000, 5000}
	xmlPath := writeScene(t, dir, "OLI_TIRS", true, 1, 2, map[int][]int16{4: red, 5: nir})

	rep, err := Run(Config{XMLPath: xmlPath, TOA: true, Indices: []si.Key{si.NDVI}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.Source != "toa_refl" || rep.OutputBands[0] != "toa_ndvi" {
		t.Errorf("TOA naming: %+v", rep)
	}
	got := readBand(t, rep.OutputFiles[0], 1, 2)
	if got[0] != 2500 || got[1] != -2500 {
		t.Errorf("TOA NDVI: %v", got)
	}
}

func TestRunSharedBandsReadOncePerBlock(t *testing.T) {
	dir := t.TempDir()
	data := make([]int16, 4)
	// TM: NDVI and SAVI both use nir=4/red=3, NBR adds swir=7.
	xmlPath := writeScene(t, dir, "TM", false, 2, 2,
		map[int][]int16{3: data, 4: data, 7: data})

	p, err := newPipeline(Config{XMLPath: xmlPath,
		Indices: []si.Key{si.NDVI, si.SAVI, si.NBR}})
	if err != nil {
		t.Fatal(err)
	}
	reads := map[string]int{}
	open := p.openReader
	p.openReader = func(path string, nlines, nsamps int) (blockReader, error) {
		r, err := open(path, nlines, nsamps)
		if err != nil {
			return nil, err
		}
		return &countingReader{r: r, path: path, reads: reads}, nil
	}
	if _, err := p.run(); err != nil {
		t.Fatalf("run: %v", err)
	}

	// Three distinct bands, one block: exactly one read each.
	if len(reads) != 3 {
		t.Fatalf("read %d distinct bands, want 3: %v", len(reads), reads)
	}
	for path, n := range reads {
		if n != 1 {
			t.Errorf("band %s read %d times, want 1", filepath.Base(path), n)
		}
	}
}

type countingReader struct {
	r     blockReader
	path  string
	reads map[string]int
}

func (c *countingReader) ReadLines(line, nlines int, buf []int16) error {
	c.reads[c.path]++
	return c.r.ReadLines(line, nlines, buf)
}
func (c *countingReader) Close() error { return c.r.Close() }

func TestBlockSequence(t *testing.T) {
	dir := t.TempDir()
	nlines := 2500
	data := make([]int16, nlines)
	xmlPath := writeScene(t, dir, "OLI_TIRS", false, nlines, 1,
		map[int][]int16{4: data, 5: data})

	p, err := newPipeline(Config{XMLPath: xmlPath, Indices: []si.Key{si.NDVI}})
	if err != nil {
		t.Fatal(err)
	}
	var readCalls, writeCalls []lineCall
	openR := p.openReader
	p.openReader = func(path string, nl, ns int) (blockReader, error) {
		r, err := openR(path, nl, ns)
		if err != nil {
			return nil, err
		}
		return &recordingReader{r: r, calls: &readCalls}, nil
	}
	openW := p.openWriter
	p.openWriter = func(path string, nl, ns int) (blockWriter, error) {
		w, err := openW(path, nl, ns)
		if err != nil {
			return nil, err
		}
		return &recordingWriter{w: w, calls: &writeCalls}, nil
	}

	rep, err := p.run()
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if rep.Blocks != 3 {
		t.Errorf("blocks: %d want 3", rep.Blocks)
	}

	want := []lineCall{{0, 1000}, {1000, 1000}, {2000, 500}}
	// Two input bands, so each block is read twice; the sequence per band
	// interleaves as band-major within a block.
	if len(readCalls) != 6 {
		t.Fatalf("read calls: %v", readCalls)
	}
	for i, c := range want {
		for b := 0; b < 2; b++ {
			got := readCalls[i*2+b]
			if got != c {
				t.Errorf("read call %d: have %+v want %+v", i*2+b, got, c)
			}
		}
	}
	if len(writeCalls) != 3 {
		t.Fatalf("write calls: %v", writeCalls)
	}
	for i, c := range want {
		if writeCalls[i] != c {
			t.Errorf("write call %d: have %+v want %+v", i, writeCalls[i], c)
		}
	}
}

type lineCall struct{ line, nlines int }

type recordingReader struct {
	r     blockReader
	calls *[]lineCall
}

func (r *recordingReader) ReadLines(line, nlines int, buf []int16) error {
	*r.calls = append(*r.calls, lineCall{line, nlines})
	return r.r.ReadLines(line, nlines, buf)
}
func (r *recordingReader) Close() error { return r.r.Close() }

type recordingWriter struct {
	w     blockWriter
	calls *[]lineCall
}

func (w *recordingWriter) WriteLines(line, nlines int, buf []int16) error {
	*w.calls = append(*w.calls, lineCall{line, nlines})
	return w.w.WriteLines(line, nlines, buf)
}
func (w *recordingWriter) Path() string { return w.w.Path() }
func (w *recordingWriter) Close() error { return w.w.Close() }

func TestRunIdempotent(t *testing.T) {
	dir := t.TempDir()
	nir := []int16{5000, -9999, 20000, 123}
	red := []int16{3000, 3000, 3000, 456}
	blue := []int16{1000, 1000, 1000, 789}
	xmlPath := writeScene(t, dir, "OLI_TIRS", false, 2, 2,
		map[int][]int16{2: blue, 4: red, 5: nir})

	cfg := Config{XMLPath: xmlPath, Indices: []si.Key{si.NDVI, si.EVI, si.MSAVI}}

	rep1, err := Run(cfg)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	first := map[string][]byte{}
	for _, path := range rep1.OutputFiles {
		raw, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		first[path] = raw
	}

	rep2, err := Run(cfg)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	for _, path := range rep2.OutputFiles {
		raw, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(raw, first[path]) {
			t.Errorf("output %s differs between runs", filepath.Base(path))
		}
	}

	// Re-running replaces catalog entries instead of duplicating them.
	m, err := espa.ParseFile(xmlPath)
	if err != nil {
		t.Fatal(err)
	}
	count := 0
	for _, b := range m.Bands {
		if b.Product == "spectral_indices" {
			count++
		}
	}
	if count != 3 {
		t.Errorf("catalog has %d index bands, want 3", count)
	}
}

func TestRunErrors(t *testing.T) {
	dir := t.TempDir()
	data := make([]int16, 4)
	xmlPath := writeScene(t, dir, "OLI_TIRS", false, 2, 2,
		map[int][]int16{4: data, 5: data})

	cases := []struct {
		name string
		cfg  Config
		kind Kind
	}{
		{"no indices", Config{XMLPath: xmlPath}, ConfigError},
		{"unknown index", Config{XMLPath: xmlPath, Indices: []si.Key{"albedo"}}, ConfigError},
		{"duplicate index", Config{XMLPath: xmlPath, Indices: []si.Key{si.NDVI, si.NDVI}}, ConfigError},
		{"negative block size", Config{XMLPath: xmlPath, Indices: []si.Key{si.NDVI}, BlockSize: -1}, ConfigError},
		{"missing band", Config{XMLPath: xmlPath, Indices: []si.Key{si.NDMI}}, InputError},
		{"toa bands absent", Config{XMLPath: xmlPath, TOA: true, Indices: []si.Key{si.NDVI}}, InputError},
		{"missing metadata file", Config{XMLPath: filepath.Join(dir, "nope.xml"), Indices: []si.Key{si.NDVI}}, MetadataError},
	}
	for _, c := range cases {
		_, err := Run(c.cfg)
		if err == nil {
			t.Errorf("%s: expected error", c.name)
			continue
		}
		if !IsKind(err, c.kind) {
			t.Errorf("%s: have %v, want kind %v", c.name, err, c.kind)
		}
	}
}

func TestRunUnsupportedInstrument(t *testing.T) {
	dir := t.TempDir()
	data := make([]int16, 4)
	xmlPath := writeScene(t, dir, "MODIS", false, 2, 2,
		map[int][]int16{4: data, 5: data})

	_, err := Run(Config{XMLPath: xmlPath, Indices: []si.Key{si.NDVI}})
	if !IsKind(err, ConfigError) {
		t.Errorf("have %v, want ConfigError", err)
	}
}

func TestRunDimensionMismatch(t *testing.T) {
	dir := t.TempDir()
	data := make([]int16, 4)
	xmlPath := writeScene(t, dir, "OLI_TIRS", false, 2, 2,
		map[int][]int16{4: data, 5: data})

	// Corrupt the catalog: band 5 claims different dimensions.
	m, err := espa.ParseFile(xmlPath)
	if err != nil {
		t.Fatal(err)
	}
	b, _ := m.FindBand("sr_refl", "sr_band5")
	b.Nlines = 4
	b.Nsamps = 1
	if err := espa.WriteFile(xmlPath, m); err != nil {
		t.Fatal(err)
	}

	_, err = Run(Config{XMLPath: xmlPath, Indices: []si.Key{si.NDVI}})
	if !IsKind(err, InputError) {
		t.Errorf("have %v, want InputError", err)
	}
}

func TestRunTruncatedBandFile(t *testing.T) {
	dir := t.TempDir()
	data := make([]int16, 4)
	xmlPath := writeScene(t, dir, "OLI_TIRS", false, 2, 2,
		map[int][]int16{4: data, 5: data})

	if err := os.Truncate(filepath.Join(dir, testSceneID+"_sr_band5.img"), 2); err != nil {
		t.Fatal(err)
	}
	_, err := Run(Config{XMLPath: xmlPath, Indices: []si.Key{si.NDVI}})
	if !IsKind(err, InputError) {
		t.Errorf("have %v, want InputError", err)
	}
}

func TestRunCancel(t *testing.T) {
	dir := t.TempDir()
	data := make([]int16, 4)
	xmlPath := writeScene(t, dir, "OLI_TIRS", false, 2, 2,
		map[int][]int16{4: data, 5: data})

	_, err := Run(Config{
		XMLPath: xmlPath,
		Indices: []si.Key{si.NDVI},
		Cancel:  func() bool { return true },
	})
	if !IsKind(err, IOError) {
		t.Errorf("have %v, want IOError", err)
	}
	if !errors.Is(err, ErrCanceled) {
		t.Errorf("error does not wrap ErrCanceled: %v", err)
	}
}
