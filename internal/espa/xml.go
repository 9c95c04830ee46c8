package espa

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
)

// The XML wire form is kept separate from the exported model so the parsed
// types stay free of tag noise and the schema can evolve in one place.

type xmlMetadata struct {
	XMLName xml.Name  `xml:"espa_metadata"`
	Version string    `xml:"version,attr"`
	Global  xmlGlobal `xml:"global_metadata"`
	Bands   []xmlBand `xml:"bands>band"`
}

type xmlGlobal struct {
	DataProvider    string      `xml:"data_provider"`
	Satellite       string      `xml:"satellite"`
	Instrument      string      `xml:"instrument"`
	AcquisitionDate string      `xml:"acquisition_date"`
	SceneCenterTime string      `xml:"scene_center_time,omitempty"`
	ProductID       string      `xml:"product_id"`
	Bounding        xmlBounding `xml:"bounding_coordinates"`
	Corners         []xmlCorner `xml:"corner"`
}

type xmlBounding struct {
	West  float64 `xml:"west"`
	East  float64 `xml:"east"`
	North float64 `xml:"north"`
	South float64 `xml:"south"`
}

type xmlCorner struct {
	Location  string  `xml:"location,attr"`
	Latitude  float64 `xml:"latitude,attr"`
	Longitude float64 `xml:"longitude,attr"`
}

type xmlBand struct {
	Product        string         `xml:"product,attr"`
	Source         string         `xml:"source,attr,omitempty"`
	Name           string         `xml:"name,attr"`
	Category       string         `xml:"category,attr"`
	DataType       string         `xml:"data_type,attr"`
	Nlines         int            `xml:"nlines,attr"`
	Nsamps         int            `xml:"nsamps,attr"`
	FillValue      int            `xml:"fill_value,attr"`
	SaturateValue  int            `xml:"saturate_value,attr,omitempty"`
	ScaleFactor    float64        `xml:"scale_factor,attr,omitempty"`
	ShortName      string         `xml:"short_name"`
	LongName       string         `xml:"long_name"`
	FileName       string         `xml:"file_name"`
	PixelSize      xmlPixelSize   `xml:"pixel_size"`
	DataUnits      string         `xml:"data_units"`
	ValidRange     *xmlValidRange `xml:"valid_range"`
	AppVersion     string         `xml:"app_version,omitempty"`
	ProductionDate string         `xml:"production_date,omitempty"`
}

type xmlPixelSize struct {
	X     float64 `xml:"x,attr"`
	Y     float64 `xml:"y,attr"`
	Units string  `xml:"units,attr"`
}

type xmlValidRange struct {
	Min float64 `xml:"min,attr"`
	Max float64 `xml:"max,attr"`
}

// Parse decodes a scene catalog and validates it.
func Parse(r io.Reader) (*Metadata, error) {
	var doc xmlMetadata
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decoding metadata XML: %w", err)
	}
	m := fromXML(&doc)
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("invalid metadata: %w", err)
	}
	return m, nil
}

// ParseFile reads and validates the scene catalog at path.
func ParseFile(path string) (*Metadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening metadata file: %w", err)
	}
	defer f.Close()
	m, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Write encodes the catalog as indented XML.
func Write(w io.Writer, m *Metadata) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "    ")
	if err := enc.Encode(toXML(m)); err != nil {
		return fmt.Errorf("encoding metadata XML: %w", err)
	}
	return enc.Close()
}

// WriteFile writes the catalog atomically: encode to a temp file in the
// same directory, then rename over the target.
func WriteFile(path string, m *Metadata) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("creating metadata file: %w", err)
	}
	if err := Write(f, m); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replacing metadata file: %w", err)
	}
	return nil
}

// AppendBands merges the given bands into the scene catalog at path and
// rewrites it. A band with the same product and name as an existing entry
// replaces it, so re-running a product does not duplicate catalog entries.
func AppendBands(path string, bands []Band) error {
	m, err := ParseFile(path)
	if err != nil {
		return err
	}
	for _, band := range bands {
		if existing, ok := m.FindBand(band.Product, band.Name); ok {
			*existing = band
			continue
		}
		m.Bands = append(m.Bands, band)
	}
	return WriteFile(path, m)
}

func fromXML(doc *xmlMetadata) *Metadata {
	m := &Metadata{
		Version: doc.Version,
		Global: GlobalMetadata{
			DataProvider:    doc.Global.DataProvider,
			Satellite:       doc.Global.Satellite,
			Instrument:      doc.Global.Instrument,
			AcquisitionDate: doc.Global.AcquisitionDate,
			SceneCenterTime: doc.Global.SceneCenterTime,
			ProductID:       doc.Global.ProductID,
			Bounding: BoundingCoordinates{
				West:  doc.Global.Bounding.West,
				East:  doc.Global.Bounding.East,
				North: doc.Global.Bounding.North,
				South: doc.Global.Bounding.South,
			},
		},
	}
	for _, c := range doc.Global.Corners {
		m.Global.Corners = append(m.Global.Corners, Corner(c))
	}
	for _, b := range doc.Bands {
		band := Band{
			Product:        b.Product,
			Source:         b.Source,
			Name:           b.Name,
			Category:       b.Category,
			DataType:       b.DataType,
			Nlines:         b.Nlines,
			Nsamps:         b.Nsamps,
			FillValue:      b.FillValue,
			SaturateValue:  b.SaturateValue,
			ScaleFactor:    b.ScaleFactor,
			ShortName:      b.ShortName,
			LongName:       b.LongName,
			FileName:       b.FileName,
			PixelSize:      PixelSize(b.PixelSize),
			DataUnits:      b.DataUnits,
			AppVersion:     b.AppVersion,
			ProductionDate: b.ProductionDate,
		}
		if b.ValidRange != nil {
			vr := ValidRange(*b.ValidRange)
			band.ValidRange = &vr
		}
		m.Bands = append(m.Bands, band)
	}
	return m
}

func toXML(m *Metadata) *xmlMetadata {
	doc := &xmlMetadata{
		Version: m.Version,
		Global: xmlGlobal{
			DataProvider:    m.Global.DataProvider,
			Satellite:       m.Global.Satellite,
			Instrument:      m.Global.Instrument,
			AcquisitionDate: m.Global.AcquisitionDate,
			SceneCenterTime: m.Global.SceneCenterTime,
			ProductID:       m.Global.ProductID,
			Bounding: xmlBounding{
				West:  m.Global.Bounding.West,
				East:  m.Global.Bounding.East,
				North: m.Global.Bounding.North,
				South: m.Global.Bounding.South,
			},
		},
	}
	for _, c := range m.Global.Corners {
		doc.Global.Corners = append(doc.Global.Corners, xmlCorner(c))
	}
	for _, band := range m.Bands {
		b := xmlBand{
			Product:        band.Product,
			Source:         band.Source,
			Name:           band.Name,
			Category:       band.Category,
			DataType:       band.DataType,
			Nlines:         band.Nlines,
			Nsamps:         band.Nsamps,
			FillValue:      band.FillValue,
			SaturateValue:  band.SaturateValue,
			ScaleFactor:    band.ScaleFactor,
			ShortName:      band.ShortName,
			LongName:       band.LongName,
			FileName:       band.FileName,
			PixelSize:      xmlPixelSize(band.PixelSize),
			DataUnits:      band.DataUnits,
			AppVersion:     band.AppVersion,
			ProductionDate: band.ProductionDate,
		}
		if band.ValidRange != nil {
			vr := xmlValidRange(*band.ValidRange)
			b.ValidRange = &vr
		}
		doc.Bands = append(doc.Bands, b)
	}
	return doc
}
