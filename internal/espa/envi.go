package espa

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// enviDataType maps ESPA data types to ENVI type codes.
var enviDataType = map[string]int{
	DataTypeUInt8: 1,
	DataTypeInt16: 2,
}

// EnviHeader renders the ENVI .hdr text describing one raw binary band.
func EnviHeader(band *Band) (string, error) {
	dtype, ok := enviDataType[band.DataType]
	if !ok {
		return "", fmt.Errorf("no ENVI data type for %s", band.DataType)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "ENVI\n")
	fmt.Fprintf(&b, "description = {%s}\n", band.LongName)
	fmt.Fprintf(&b, "samples = %d\n", band.Nsamps)
	fmt.Fprintf(&b, "lines   = %d\n", band.Nlines)
	fmt.Fprintf(&b, "bands   = 1\n")
	fmt.Fprintf(&b, "header offset = 0\n")
	fmt.Fprintf(&b, "file type = ENVI Standard\n")
	fmt.Fprintf(&b, "data type = %d\n", dtype)
	fmt.Fprintf(&b, "interleave = bsq\n")
	fmt.Fprintf(&b, "byte order = 0\n")
	fmt.Fprintf(&b, "data ignore value = %d\n", band.FillValue)
	fmt.Fprintf(&b, "band names = {%s}\n", band.Name)
	return b.String(), nil
}

// WriteEnviHeader writes the .hdr file beside a band's .img file. The
// header path is the band file name with its extension replaced by .hdr.
func WriteEnviHeader(dir string, band *Band) (string, error) {
	base := band.FileName
	if i := strings.LastIndex(base, "."); i >= 0 {
		base = base[:i]
	}
	hdrPath := filepath.Join(dir, base+".hdr")
	hdr, err := EnviHeader(band)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(hdrPath, []byte(hdr), 0644); err != nil {
		return "", fmt.Errorf("writing ENVI header: %w", err)
	}
	return hdrPath, nil
}
