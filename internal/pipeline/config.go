package pipeline

import (
	"fmt"
	"strings"

	"github.com/lsrd-tools/spectral-indices/internal/si"
)

// DefaultBlockSize is how many lines are processed per block. Blocks bound
// memory use; the last block of a scene is truncated to the remaining lines.
const DefaultBlockSize = 1000

// AppVersion is recorded in every output band's metadata.
const AppVersion = "spectral_indices_3.0.0"

// InputFormat selects the container the reflectance bands are read from.
type InputFormat int

const (
	// FormatRawBinary reads the ESPA flat raw binary .img files.
	FormatRawBinary InputFormat = iota
	// FormatGeoTIFF reads GeoTIFF band files through GDAL.
	FormatGeoTIFF
)

func (f InputFormat) String() string {
	switch f {
	case FormatRawBinary:
		return "raw binary"
	case FormatGeoTIFF:
		return "geotiff"
	}
	return fmt.Sprintf("InputFormat(%d)", int(f))
}

// GroupingPolicy maps an index product to its output file identity. Every
// product owns exactly one output stream regardless of policy; grouping is
// purely a naming concern.
type GroupingPolicy func(productID, bandName string, def si.Definition) string

// PerIndexFiles names one file per index: {product_id}_{band_name}.img.
func PerIndexFiles(productID, bandName string, _ si.Definition) string {
	return fmt.Sprintf("%s_%s.img", productID, bandName)
}

// GroupedVegetationFiles keeps the historical grouping of the vegetation
// indices under a shared _vi_ identity, with the remaining indices named
// per index.
func GroupedVegetationFiles(productID, bandName string, def si.Definition) string {
	switch def.Key {
	case si.NDVI, si.EVI, si.SAVI, si.MSAVI:
		prefix, short, ok := strings.Cut(bandName, "_")
		if ok {
			return fmt.Sprintf("%s_%s_vi_%s.img", productID, prefix, short)
		}
	}
	return PerIndexFiles(productID, bandName, def)
}

// Config is the immutable description of one pipeline run.
type Config struct {
	// XMLPath locates the scene's metadata catalog. Band files are resolved
	// relative to its directory.
	XMLPath string

	// Indices are the products to compute; at least one is required.
	Indices []si.Key

	// TOA selects the top-of-atmosphere reflectance bands instead of the
	// surface reflectance bands.
	TOA bool

	// BlockSize overrides DefaultBlockSize when positive. Negative values
	// are a configuration error.
	BlockSize int

	// Format selects the input band container.
	Format InputFormat

	// Grouping names output files; nil means PerIndexFiles.
	Grouping GroupingPolicy

	// Verbose enables diagnostic prints; Progress a progress bar. Both are
	// observational only.
	Verbose  bool
	Progress bool

	// Cancel, when non-nil, is polled once per block boundary; returning
	// true aborts the run with an IOError wrapping ErrCanceled.
	Cancel func() bool
}

func (c *Config) blockSize() int {
	if c.BlockSize == 0 {
		return DefaultBlockSize
	}
	return c.BlockSize
}

func (c *Config) grouping() GroupingPolicy {
	if c.Grouping == nil {
		return PerIndexFiles
	}
	return c.Grouping
}

func (c *Config) validate() error {
	if c.XMLPath == "" {
		return failf(ConfigError, nil, "no input metadata file given")
	}
	if len(c.Indices) == 0 {
		return failf(ConfigError, nil, "no index product was specified for processing")
	}
	seen := map[si.Key]bool{}
	for _, key := range c.Indices {
		if _, ok := si.Lookup(key); !ok {
			return failf(ConfigError, nil, "unknown spectral index %q", key)
		}
		if seen[key] {
			return failf(ConfigError, nil, "index %q requested twice", key)
		}
		seen[key] = true
	}
	if c.BlockSize < 0 {
		return failf(ConfigError, nil, "invalid block size %d", c.BlockSize)
	}
	return nil
}
