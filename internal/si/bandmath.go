package si

import "math"

// Output constants shared by every index product. The fill and saturation
// markers are fixed regardless of what the input bands use.
const (
	FillValue     int16 = -9999
	SaturateValue int16 = 20000

	// IndexScale converts a [-1,1] ratio to the stored int16 range.
	IndexScale = 10000.0

	// OutputScaleFactor is recorded in the output band metadata so readers
	// can recover the ratio from the stored integer.
	OutputScaleFactor = 0.0001

	// SoilBrightness is the L factor used by SAVI and MSAVI.
	SoilBrightness = 0.5
)

// quantize clamps a ratio to [-1,1] and scales it to an int16 using
// round-half-away-from-zero. Callers guard degenerate arithmetic before
// the ratio is formed, so the input is always a finite float.
func quantize(ratio float64) int16 {
	if ratio > 1.0 {
		ratio = 1.0
	} else if ratio < -1.0 {
		ratio = -1.0
	}
	if ratio >= 0.0 {
		return int16(ratio*IndexScale + 0.5)
	}
	return int16(ratio*IndexScale - 0.5)
}

// NormalizedDifference computes (band1 - band2) / (band1 + band2) for every
// pixel of the slab into out. The raw digital numbers are used directly:
// both bands carry the same scale factor, so it cancels in the ratio.
//
// A pixel that is fill in either band is fill in the output; likewise for
// saturation, with fill taking priority. A zero denominator yields a ratio
// of 0 rather than leaving the division to produce NaN.
func NormalizedDifference(band1, band2 []int16, fill, saturate int16, out []int16) {
	for pix := range out {
		b1, b2 := band1[pix], band2[pix]
		switch {
		case b1 == fill || b2 == fill:
			out[pix] = FillValue
		case b1 == saturate || b2 == saturate:
			out[pix] = SaturateValue
		default:
			var ratio float64
			if denom := float64(b1) + float64(b2); denom != 0 {
				ratio = (float64(b1) - float64(b2)) / denom
			}
			out[pix] = quantize(ratio)
		}
	}
}

// SoilAdjusted computes SAVI = ((nir - red) / (nir + red + L)) * (1 + L)
// with L = 0.5. Unlike the normalized-difference family the additive L term
// does not cancel, so the digital numbers are unscaled to reflectance first.
func SoilAdjusted(nir, red []int16, scaleFactor float64, fill, saturate int16, out []int16) {
	for pix := range out {
		n, r := nir[pix], red[pix]
		switch {
		case n == fill || r == fill:
			out[pix] = FillValue
		case n == saturate || r == saturate:
			out[pix] = SaturateValue
		default:
			nu := float64(n) * scaleFactor
			ru := float64(r) * scaleFactor
			var ratio float64
			if denom := nu + ru + SoilBrightness; denom != 0 {
				ratio = (nu - ru) / denom * (1.0 + SoilBrightness)
			}
			out[pix] = quantize(ratio)
		}
	}
}

// ModifiedSoilAdjusted computes the self-adjusting MSAVI2 formulation:
//
//	MSAVI = ((2*nir + 1) - sqrt((2*nir + 1)^2 - 8*(nir - red))) * 0.5
//
// The 0.5 is a final multiplier, not the additive soil term SAVI uses.
func ModifiedSoilAdjusted(nir, red []int16, scaleFactor float64, fill, saturate int16, out []int16) {
	for pix := range out {
		n, r := nir[pix], red[pix]
		switch {
		case n == fill || r == fill:
			out[pix] = FillValue
		case n == saturate || r == saturate:
			out[pix] = SaturateValue
		default:
			nu := float64(n) * scaleFactor
			ru := float64(r) * scaleFactor
			term := 2.0*nu + 1.0
			// A negative discriminant (possible when red is negative,
			// which is within the reflectance valid range) has no real
			// root; the ratio is defined as 0, like a zero denominator.
			var ratio float64
			if disc := term*term - 8.0*(nu-ru); disc >= 0 {
				ratio = (term - math.Sqrt(disc)) * SoilBrightness
			}
			out[pix] = quantize(ratio)
		}
	}
}

// Enhanced computes EVI = (nir - red) / (nir + 6*red - 7.5*blue + 1) on
// unscaled reflectance, the MODIS EVI coefficients.
func Enhanced(nir, red, blue []int16, scaleFactor float64, fill, saturate int16, out []int16) {
	for pix := range out {
		n, r, b := nir[pix], red[pix], blue[pix]
		switch {
		case n == fill || r == fill || b == fill:
			out[pix] = FillValue
		case n == saturate || r == saturate || b == saturate:
			out[pix] = SaturateValue
		default:
			nu := float64(n) * scaleFactor
			ru := float64(r) * scaleFactor
			bu := float64(b) * scaleFactor
			var ratio float64
			if denom := nu + 6.0*ru - 7.5*bu + 1.0; denom != 0 {
				ratio = (nu - ru) / denom
			}
			out[pix] = quantize(ratio)
		}
	}
}
