package pipeline

import (
	"strings"
	"time"

	"github.com/lsrd-tools/spectral-indices/internal/espa"
	"github.com/lsrd-tools/spectral-indices/internal/si"
)

// representativeBand finds the band whose descriptor seeds the output band
// metadata: TOA band 1 when present, otherwise surface reflectance band 1.
// Size and resolution are the same either way.
func representativeBand(m *espa.Metadata) (*espa.Band, error) {
	if b, ok := m.FindBand("toa_refl", "toa_band1"); ok {
		return b, nil
	}
	if b, ok := m.FindBand("sr_refl", "sr_band1"); ok {
		return b, nil
	}
	return nil, failf(MetadataError, nil,
		"unable to find the reflectance bands in the metadata for initializing the output metadata")
}

// outputBandMeta derives one output band's descriptor from the
// representative input band plus the fixed index-product constants.
func outputBandMeta(rep *espa.Band, def si.Definition, bandName, fileName, source string, now time.Time) espa.Band {
	shortName := rep.ShortName
	if len(shortName) > 4 {
		shortName = shortName[:4]
	}
	shortName += strings.ToUpper(def.ShortName)

	return espa.Band{
		Product:        "spectral_indices",
		Source:         source,
		Name:           bandName,
		Category:       "index",
		DataType:       espa.DataTypeInt16,
		Nlines:         rep.Nlines,
		Nsamps:         rep.Nsamps,
		FillValue:      int(si.FillValue),
		SaturateValue:  int(si.SaturateValue),
		ScaleFactor:    si.OutputScaleFactor,
		ShortName:      shortName,
		LongName:       def.LongName,
		FileName:       fileName,
		PixelSize:      rep.PixelSize,
		DataUnits:      "band ratio index value",
		ValidRange:     &espa.ValidRange{Min: -si.IndexScale, Max: si.IndexScale},
		AppVersion:     AppVersion,
		ProductionDate: espa.ProductionDate(now),
	}
}
