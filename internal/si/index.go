package si

import "fmt"

// BandRole is a logical reflectance band used by an index formula. The
// physical band number it maps to depends on the instrument.
type BandRole int

const (
	Blue BandRole = iota
	Red
	NIR
	MIR
	SWIR
)

func (r BandRole) String() string {
	switch r {
	case Blue:
		return "blue"
	case Red:
		return "red"
	case NIR:
		return "nir"
	case MIR:
		return "mir"
	case SWIR:
		return "swir"
	}
	return fmt.Sprintf("BandRole(%d)", int(r))
}

// Key identifies one spectral index product.
type Key string

const (
	NDVI  Key = "ndvi"
	EVI   Key = "evi"
	SAVI  Key = "savi"
	MSAVI Key = "msavi"
	NDMI  Key = "ndmi"
	NBR   Key = "nbr"
	NBR2  Key = "nbr2"
)

// Definition describes one index: its names, the logical bands its formula
// needs, and the compute function. Compute receives the input slabs in the
// same order as Bands and fills out, one value per pixel.
type Definition struct {
	Key       Key
	ShortName string
	LongName  string
	Bands     []BandRole
	Compute   func(in [][]int16, scaleFactor float64, fill, saturate int16, out []int16)
}

// Catalog lists every supported index. The order is the historical output
// order: the vegetation indices first, then the moisture and burn ratios.
var Catalog = []Definition{
	{
		Key:       NDVI,
		ShortName: "ndvi",
		LongName:  "normalized difference vegetation index",
		Bands:     []BandRole{NIR, Red},
		Compute: func(in [][]int16, _ float64, fill, saturate int16, out []int16) {
			NormalizedDifference(in[0], in[1], fill, saturate, out)
		},
	},
	{
		Key:       EVI,
		ShortName: "evi",
		LongName:  "enhanced vegetation index",
		Bands:     []BandRole{NIR, Red, Blue},
		Compute: func(in [][]int16, scale float64, fill, saturate int16, out []int16) {
			Enhanced(in[0], in[1], in[2], scale, fill, saturate, out)
		},
	},
	{
		Key:       SAVI,
		ShortName: "savi",
		LongName:  "soil adjusted vegetation index",
		Bands:     []BandRole{NIR, Red},
		Compute: func(in [][]int16, scale float64, fill, saturate int16, out []int16) {
			SoilAdjusted(in[0], in[1], scale, fill, saturate, out)
		},
	},
	{
		Key:       MSAVI,
		ShortName: "msavi",
		LongName:  "modified soil adjusted vegetation index",
		Bands:     []BandRole{NIR, Red},
		Compute: func(in [][]int16, scale float64, fill, saturate int16, out []int16) {
			ModifiedSoilAdjusted(in[0], in[1], scale, fill, saturate, out)
		},
	},
	{
		Key:       NDMI,
		ShortName: "ndmi",
		LongName:  "normalized difference moisture index",
		Bands:     []BandRole{NIR, MIR},
		Compute: func(in [][]int16, _ float64, fill, saturate int16, out []int16) {
			NormalizedDifference(in[0], in[1], fill, saturate, out)
		},
	},
	{
		Key:       NBR,
		ShortName: "nbr",
		LongName:  "normalized burn ratio",
		Bands:     []BandRole{NIR, SWIR},
		Compute: func(in [][]int16, _ float64, fill, saturate int16, out []int16) {
			NormalizedDifference(in[0], in[1], fill, saturate, out)
		},
	},
	{
		Key:       NBR2,
		ShortName: "nbr2",
		LongName:  "normalized burn ratio 2",
		Bands:     []BandRole{MIR, SWIR},
		Compute: func(in [][]int16, _ float64, fill, saturate int16, out []int16) {
			NormalizedDifference(in[0], in[1], fill, saturate, out)
		},
	},
}

// Lookup returns the definition for a key.
func Lookup(key Key) (Definition, bool) {
	for _, def := range Catalog {
		if def.Key == key {
			return def, true
		}
	}
	return Definition{}, false
}

// Keys parses a list of index names into keys, rejecting unknown names.
func Keys(names []string) ([]Key, error) {
	keys := make([]Key, 0, len(names))
	for _, name := range names {
		if _, ok := Lookup(Key(name)); !ok {
			return nil, fmt.Errorf("unknown spectral index %q", name)
		}
		keys = append(keys, Key(name))
	}
	return keys, nil
}
