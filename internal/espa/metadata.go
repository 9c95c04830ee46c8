// Package espa models the ESPA internal metadata format: one XML catalog
// per scene describing every band, with pixel data stored beside it in
// flat raw binary files.
package espa

import (
	"fmt"

	"github.com/paulmach/orb"
)

// Data type identifiers used in band metadata.
const (
	DataTypeInt16 = "INT16"
	DataTypeUInt8 = "UINT8"
)

// Metadata is a parsed scene catalog.
type Metadata struct {
	Version string
	Global  GlobalMetadata
	Bands   []Band
}

// GlobalMetadata describes the scene as a whole.
type GlobalMetadata struct {
	DataProvider    string
	Satellite       string
	Instrument      string
	AcquisitionDate string
	SceneCenterTime string
	ProductID       string
	Bounding        BoundingCoordinates
	Corners         []Corner
}

// BoundingCoordinates are the geographic extents of the scene.
type BoundingCoordinates struct {
	West  float64
	East  float64
	North float64
	South float64
}

// Corner is a named scene corner, UL or LR.
type Corner struct {
	Location  string
	Latitude  float64
	Longitude float64
}

// Corner returns the lon/lat point of the named corner.
func (g *GlobalMetadata) Corner(location string) (orb.Point, bool) {
	for _, c := range g.Corners {
		if c.Location == location {
			return orb.Point{c.Longitude, c.Latitude}, true
		}
	}
	return orb.Point{}, false
}

// Bound returns the scene extent as an orb bound.
func (g *GlobalMetadata) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{g.Bounding.West, g.Bounding.South},
		Max: orb.Point{g.Bounding.East, g.Bounding.North},
	}
}

// PixelSize is a band's ground resolution.
type PixelSize struct {
	X     float64
	Y     float64
	Units string
}

// ValidRange bounds the meaningful sample values of a band.
type ValidRange struct {
	Min float64
	Max float64
}

// Band describes one band of the scene: identity, dimensions, the sentinel
// values carried by its samples, and the file holding its pixels.
type Band struct {
	Product        string
	Source         string
	Name           string
	Category       string
	DataType       string
	Nlines         int
	Nsamps         int
	FillValue      int
	SaturateValue  int
	ScaleFactor    float64
	ShortName      string
	LongName       string
	FileName       string
	PixelSize      PixelSize
	DataUnits      string
	ValidRange     *ValidRange
	AppVersion     string
	ProductionDate string
}

// FindBand locates a band by name and product.
func (m *Metadata) FindBand(product, name string) (*Band, bool) {
	for i := range m.Bands {
		if m.Bands[i].Name == name && m.Bands[i].Product == product {
			return &m.Bands[i], true
		}
	}
	return nil, false
}

// ReflectanceBand locates the reflectance band with the given physical band
// number, from the TOA or surface reflectance product. Band files are named
// sr_bandN / toa_bandN in their respective products.
func (m *Metadata) ReflectanceBand(toa bool, number int) (*Band, bool) {
	product, prefix := "sr_refl", "sr"
	if toa {
		product, prefix = "toa_refl", "toa"
	}
	return m.FindBand(product, fmt.Sprintf("%s_band%d", prefix, number))
}

// Validate checks the invariants the pipeline depends on: a product id,
// a recognized version, and at least one band with positive dimensions.
func (m *Metadata) Validate() error {
	if m.Version == "" {
		return fmt.Errorf("metadata has no version attribute")
	}
	if m.Global.ProductID == "" {
		return fmt.Errorf("metadata has no product_id")
	}
	if len(m.Bands) == 0 {
		return fmt.Errorf("metadata lists no bands")
	}
	for i := range m.Bands {
		b := &m.Bands[i]
		if b.Name == "" {
			return fmt.Errorf("band %d has no name", i)
		}
		if b.Nlines <= 0 || b.Nsamps <= 0 {
			return fmt.Errorf("band %s has invalid dimensions %dx%d",
				b.Name, b.Nsamps, b.Nlines)
		}
		if b.FileName == "" {
			return fmt.Errorf("band %s has no file_name", b.Name)
		}
	}
	return nil
}
