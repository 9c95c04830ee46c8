package si

import (
	"fmt"
	"strings"
)

// instrumentBands maps each supported instrument to the physical band
// number serving each logical role. The 6-band sensors (TM, ETM+) and the
// 8-band OLI/TIRS place the reflective bands at different offsets.
var instrumentBands = map[string]map[BandRole]int{
	"TM": {
		Blue: 1,
		Red:  3,
		NIR:  4,
		MIR:  5,
		SWIR: 7,
	},
	"ETM": {
		Blue: 1,
		Red:  3,
		NIR:  4,
		MIR:  5,
		SWIR: 7,
	},
	"OLI_TIRS": {
		Blue: 2,
		Red:  4,
		NIR:  5,
		MIR:  6,
		SWIR: 7,
	},
}

// normalizeInstrument folds instrument spelling variants onto the table
// keys. "ETM", "ETM+" and "ETM_PLUS" all identify the same sensor family.
func normalizeInstrument(instrument string) string {
	inst := strings.ToUpper(strings.TrimSpace(instrument))
	if strings.HasPrefix(inst, "ETM") {
		return "ETM"
	}
	return inst
}

// InstrumentBands returns the role-to-band table for an instrument.
// An unrecognized instrument is a configuration error: processing cannot
// guess which physical bands hold red or NIR.
func InstrumentBands(instrument string) (map[BandRole]int, error) {
	bands, ok := instrumentBands[normalizeInstrument(instrument)]
	if !ok {
		return nil, fmt.Errorf("unsupported instrument %q", instrument)
	}
	return bands, nil
}

// RequiredBands returns the distinct physical band numbers needed to
// compute the given indices on an instrument, in ascending order.
func RequiredBands(instrument string, keys []Key) ([]int, error) {
	bands, err := InstrumentBands(instrument)
	if err != nil {
		return nil, err
	}
	seen := map[int]bool{}
	var required []int
	for _, key := range keys {
		def, ok := Lookup(key)
		if !ok {
			return nil, fmt.Errorf("unknown spectral index %q", key)
		}
		for _, role := range def.Bands {
			band := bands[role]
			if !seen[band] {
				seen[band] = true
				required = append(required, band)
			}
		}
	}
	for i := 1; i < len(required); i++ {
		for j := i; j > 0 && required[j] < required[j-1]; j-- {
			required[j], required[j-1] = required[j-1], required[j]
		}
	}
	return required, nil
}
