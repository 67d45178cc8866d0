package stacube

//go:generate enumer -json -type Resampling -trimprefix Resampling

import (
	"strings"

	"github.com/airbusgeo/godal"
)

// Resampling defines how a raster is resampled when its grid has to be changed
type Resampling int32

// Supported values for resampling (gdal resampling methods)
const (
	ResamplingUNDEFINED Resampling = iota
	ResamplingNEAR
	ResamplingBILINEAR
	ResamplingCUBIC
	ResamplingCUBICSPLINE
	ResamplingLANCZOS
	ResamplingAVERAGE
	ResamplingMODE
	ResamplingMAX
	ResamplingMIN
	ResamplingMED
	ResamplingQ1
	ResamplingQ3
)

// CanInterpolate returns true if the resampling may interpolate values
func (r Resampling) CanInterpolate() bool {
	switch r {
	case ResamplingBILINEAR, ResamplingCUBIC, ResamplingCUBICSPLINE, ResamplingLANCZOS, ResamplingAVERAGE:
		return true
	default:
		return false
	}
}

func (r Resampling) ToGDAL() godal.ResamplingAlg {
	switch r {
	default:
		return godal.Nearest
	case ResamplingBILINEAR:
		return godal.Bilinear
	case ResamplingCUBIC:
		return godal.Cubic
	case ResamplingCUBICSPLINE:
		return godal.CubicSpline
	case ResamplingLANCZOS:
		return godal.Lanczos
	case ResamplingAVERAGE:
		return godal.Average
	case ResamplingMODE:
		return godal.Mode
	case ResamplingMAX:
		return godal.Max
	case ResamplingMIN:
		return godal.Min
	case ResamplingMED:
		return godal.Median
	case ResamplingQ1:
		return godal.Q1
	case ResamplingQ3:
		return godal.Q3
	}
}

// categoricalBands are rasters of class labels or bitmasks that must never be interpolated
var categoricalBands = map[string]struct{}{
	"SCL": {}, "CLD": {}, "SNW": {}, "QA_PIXEL": {}, "QA60": {},
}

// ResamplingForBand returns the resampling to use for a band when none is requested:
// nearest for categorical bands, bilinear for the continuous ones.
// The band name may carry a resolution suffix (e.g. "scl_20m").
func ResamplingForBand(band string) Resampling {
	name := strings.ToUpper(band)
	if i := strings.LastIndexByte(name, '_'); i > 0 && strings.HasSuffix(name, "M") {
		name = name[:i]
	}
	if _, ok := categoricalBands[name]; ok {
		return ResamplingNEAR
	}
	return ResamplingBILINEAR
}
