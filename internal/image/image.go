package image

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/airbusgeo/godal"
	"github.com/google/uuid"
	"github.com/xcube-dev/stacube/internal/grid"
	"github.com/xcube-dev/stacube/internal/stacube"
	"github.com/xcube-dev/stacube/internal/utils"
	"github.com/xcube-dev/stacube/internal/utils/affine"
)

// Source references one raster to mosaic into a frame
type Source struct {
	URI         string
	Band        int // band of the asset (1-based), 0 for the first band
	DataMapping stacube.DataMapping
}

var ErrLogger = godal.ErrLogger(func(ec godal.ErrorCategory, code int, msg string) error {
	if ec <= godal.CE_Warning {
		return nil
	}
	return fmt.Errorf("GDAL %d: %s", code, msg)
})

// FrameDescriptor describes the output frame of a mosaic: the canonical grid and
// the common data format all the sources are cast to
type FrameDescriptor struct {
	WktCRS        string
	PixToCRS      *affine.Affine
	Width, Height int
	Resampling    stacube.Resampling
	DataMapping   stacube.DataMapping
	ValidPixPc    int // Minimum percentage of valid pixels (or ErrNotEnoughValidPixels is returned). -1 to disable
}

var (
	ErrNoCastToPerform      = errors.New("no cast to perform")
	ErrUnableToCast         = errors.New("unableToCast")
	ErrNotEnoughValidPixels = errors.New("not enough valid pixels")
)

// castDatasetOptions returns the translate options to create a new data with toDFormat and converts the ds.pixels fromRange toDFormat (using an non-linear mapping if exponent != 1)
func castDatasetOptions(fromRange stacube.Range, exponent float64, toDFormat stacube.DataFormat) []string {
	options := []string{
		"-ot", toDFormat.DType.ToGDAL().String(),
	}
	if toDFormat.NoDataDefined() {
		options = append(options, "-a_nodata", toS(toDFormat.NoData))
	} else {
		options = append(options, "-a_nodata", "none")
	}
	if fromRange.Min != toDFormat.Range.Min || fromRange.Max != toDFormat.Range.Max {
		options = append(options, "-scale", toS(fromRange.Min), toS(fromRange.Max), toS(toDFormat.Range.Min), toS(toDFormat.Range.Max))
	}
	if exponent != 1 {
		options = append(options, "-exponent", toS(exponent))
	}

	return options
}

// ve = f(vi) = RangeExt.Min + (RangeExt.Max - RangeExt.Min) * ((vi - Range.Min)/(Range.Max - Range.Min))^Exponent
func castValue(vi float64, rin, rext stacube.Range, exponent float64) float64 {
	return rext.Min + rext.Interval()*math.Pow((vi-rin.Min)/rin.Interval(), exponent)
}

func castValueBF(vi float64, fromDFormat, toDFormat stacube.DataMapping) float64 {
	ve := castValue(vi, fromDFormat.Range, fromDFormat.RangeExt, fromDFormat.Exponent)
	ve = castValue(ve, toDFormat.RangeExt, toDFormat.Range, 1/toDFormat.Exponent)
	switch toDFormat.DType {
	case stacube.DTypeUINT8:
		return math.Min(math.Max(ve, 0), math.MaxUint8)
	case stacube.DTypeUINT16:
		return math.Min(math.Max(ve, 0), math.MaxUint16)
	case stacube.DTypeUINT32:
		return math.Min(math.Max(ve, 0), math.MaxUint32)
	case stacube.DTypeINT8:
		return math.Min(math.Max(ve, math.MinInt8), math.MaxInt8)
	case stacube.DTypeINT16:
		return math.Min(math.Max(ve, math.MinInt16), math.MaxInt16)
	case stacube.DTypeINT32:
		return math.Min(math.Max(ve, math.MinInt32), math.MaxInt32)
	case stacube.DTypeFLOAT32:
		return math.Min(math.Max(ve, -math.MaxFloat32), math.MaxFloat32)
	}
	return ve
}

// CastDatasetOptions returns the translate options to cast fromDFormat toDFormat
// fromDFormat: NoData is ignored
func CastDatasetOptions(fromDFormat, toDFormat stacube.DataMapping) ([]string, error) {
	if fromDFormat.Equals(toDFormat) {
		return nil, ErrNoCastToPerform
	}

	// Reminder : ve = f(vi) = RangeExt.Min + (RangeExt.Max - RangeExt.Min) * ((vi - Range.Min)/(Range.Max - Range.Min))^Exponent
	// vinter = f(vfrom) = f(vto)
	// In some cases the formula is very simple !
	if toDFormat.Exponent == 1 {
		rangeEq := stacube.Range{
			Min: castValue(fromDFormat.RangeExt.Min, toDFormat.RangeExt, toDFormat.Range, 1),
			Max: castValue(fromDFormat.RangeExt.Max, toDFormat.RangeExt, toDFormat.Range, 1)}

		return castDatasetOptions(fromDFormat.Range, fromDFormat.Exponent, stacube.DataFormat{
			DType:  toDFormat.DType,
			Range:  rangeEq,
			NoData: toDFormat.NoData,
		}), nil
	}
	if fromDFormat.Exponent == 1 {
		rangeEq := stacube.Range{
			Min: castValue(toDFormat.RangeExt.Min, fromDFormat.RangeExt, fromDFormat.Range, 1),
			Max: castValue(toDFormat.RangeExt.Max, fromDFormat.RangeExt, fromDFormat.Range, 1)}

		return castDatasetOptions(rangeEq, 1/toDFormat.Exponent, toDFormat.DataFormat), nil
	}

	if fromDFormat.Exponent == toDFormat.Exponent {
		if fromDFormat.RangeExt.Min == toDFormat.RangeExt.Min {
			f := fromDFormat.RangeExt.Interval() / toDFormat.RangeExt.Interval()
			rangeEq := stacube.Range{
				Min: toDFormat.Range.Min,
				Max: toDFormat.Range.Interval()*math.Pow(f, 1/toDFormat.Exponent) + toDFormat.Range.Min,
			}
			return castDatasetOptions(fromDFormat.Range, 1, stacube.DataFormat{
				DType:  toDFormat.DType,
				Range:  rangeEq,
				NoData: toDFormat.NoData,
			}), nil
		}
	}

	return nil, fmt.Errorf(" Unable to cast %v to %v %w", fromDFormat, toDFormat, ErrUnableToCast)
}

// CastSource opens the source and casts it toDFormat as a VRT
// The caller is responsible to close the dataset
// fromDFormat: NoData is ignored
func CastSource(ctx context.Context, source *Source, toDFormat stacube.DataMapping) (*EphemeralDataset, error) {
	ds, err := godal.Open(source.URI, ErrLogger, godal.Shared())
	if err != nil {
		return nil, fmt.Errorf("CastSource[%s]: %w", source.URI, err)
	}

	// Cast dataset to output format
	options, err := CastDatasetOptions(source.DataMapping, toDFormat)
	if err != nil && !errors.Is(err, ErrNoCastToPerform) {
		ds.Close()
		return nil, err
	}
	if source.Band > 1 || (source.Band == 1 && len(ds.Bands()) > 1) {
		options = append(options, "-b", fmt.Sprintf("%d", source.Band))
	}

	// Translate if necessary
	if len(options) == 0 {
		return &EphemeralDataset{ds, ""}, nil
	}

	turi := "/vsimem/" + uuid.New().String() + ".vrt"
	tds, err := ds.Translate(turi, options, ErrLogger)
	ds.Close()
	if err != nil {
		return nil, fmt.Errorf("CastSource.Translate[%s] with options [%v]: %w", source.URI, options, err)
	}
	return &EphemeralDataset{tds, turi}, nil
}

type EphemeralDataset struct {
	*godal.Dataset
	URI string
}

// UnlinkDataset closes and unlinks dataset whether it's a /vsimem or physical uri
func UnlinkDataset(dataset *godal.Dataset, uri string) error {
	if dataset != nil {
		if err := dataset.Close(); err != nil {
			return err
		}
	}
	return godal.VSIUnlink(uri)
}

func (ds *EphemeralDataset) Close() error {
	err := UnlinkDataset(ds.Dataset, ds.URI)
	ds.Dataset = nil
	return err
}

func CloseEphemeralDatasets(ds []EphemeralDataset) error {
	var errs error
	for i := len(ds) - 1; i >= 0; i-- {
		if err := ds[i].Close(); err != nil {
			errs = utils.MergeErrors(true, errs, err)
		}
	}
	return errs
}

// MosaicSources casts the sources to the common format of the frame and warps them
// onto the frame grid, in one pass whether a reprojection is needed or not.
// Sources must be given in catalog order: with OverlapFirstValid the first valid
// pixel wins, with OverlapLastValid the last one does.
// The caller is responsible to close the output dataset.
func MosaicSources(ctx context.Context, sources []*Source, outDesc *FrameDescriptor, overlap stacube.OverlapPolicy) (*godal.Dataset, error) {
	if len(sources) == 0 {
		return nil, fmt.Errorf("MosaicSources: no source to mosaic")
	}

	var vrts []EphemeralDataset
	gdatasets := make([]*godal.Dataset, len(sources))

	defer func() {
		CloseEphemeralDatasets(vrts)
	}()
	for i, source := range sources {
		outDataMapping := outDesc.DataMapping
		outDataMapping.NoData = castValueBF(source.DataMapping.NoData, source.DataMapping, outDataMapping)
		eds, err := CastSource(ctx, source, outDataMapping)
		if err != nil {
			return nil, fmt.Errorf("MosaicSources.%w", err)
		}
		vrts = append(vrts, *eds)
		// Warp gives the priority to the last dataset
		if overlap == stacube.OverlapFirstValid {
			gdatasets[len(sources)-1-i] = eds.Dataset
		} else {
			gdatasets[i] = eds.Dataset
		}
	}

	warpOptions := append(warpFrameOptions(outDesc), "-of", "MEM")
	mosaicDs, err := godal.Warp("", gdatasets, warpOptions, ErrLogger)
	if err != nil {
		return nil, fmt.Errorf("MosaicSources.Warp[%v]: %w", warpOptions, err)
	}

	// Test whether the frame has enough valid pixels
	if outDesc.ValidPixPc >= 0 {
		if ok, err := isValid(mosaicDs, (outDesc.Width*outDesc.Height*outDesc.ValidPixPc)/100); err != nil || !ok {
			mosaicDs.Close()
			if err != nil {
				return nil, fmt.Errorf("MosaicSources.%w", err)
			}
			return nil, ErrNotEnoughValidPixels
		}
	}

	return mosaicDs, nil
}

// warpFrameOptions returns the warp options targeting the frame grid.
// Every frame of a cube is warped with the same options, so that the slices only
// differ by their pixels.
func warpFrameOptions(outDesc *FrameDescriptor) []string {
	dformat := outDesc.DataMapping.DataFormat
	options := []string{
		"-t_srs", outDesc.WktCRS,
		"-ts", toS(float64(outDesc.Width)), toS(float64(outDesc.Height)),
		"-ovr", "AUTO",
		"-wo", "INIT_DEST=" + toS(dformat.NoData),
		"-wm", "500",
		"-ot", dformat.DType.ToGDAL().String(),
		"-r", outDesc.Resampling.String(),
		"-nomd",
		"-multi",
	}

	if dformat.NoDataDefined() {
		options = append(options, "-dstnodata", toS(dformat.NoData))
	} else {
		options = append(options, "-dstnodata", "None")
	}

	if outDesc.PixToCRS != nil {
		xMin, yMax := outDesc.PixToCRS.Transform(0, 0)
		xMax, yMin := outDesc.PixToCRS.Transform(float64(outDesc.Width), float64(outDesc.Height))
		options = append(options, "-te", toS(xMin), toS(yMin), toS(xMax), toS(yMax))
	}
	return options
}

func isValid(ds *godal.Dataset, validPix int) (bool, error) {
	nodata, ok := ds.Bands()[0].NoData()
	if !ok {
		return true, nil
	}
	bitmap, err := stacube.NewBitmapFromDataset(ds)
	if err != nil {
		return false, fmt.Errorf("countValidPix: %w", err)
	}
	return bitmap.IsValid(nodata, validPix), nil
}

// FrameToTiffAsBytes translates the frame to a tiff and returns the byte representation.
// The grid mapping tag is always written, so that every slice of a cube declares its
// CRS under the same name.
func FrameToTiffAsBytes(ds *godal.Dataset, wktCRS string, tags map[string]string) ([]byte, error) {
	options := []string{
		"-mo", fmt.Sprintf("%s=%s", grid.GridMappingName, wktCRS),
	}
	for k, t := range tags {
		options = append(options, "-mo", fmt.Sprintf("%s=%s", k, t))
	}

	virtualname := "/vsimem/" + uuid.New().String() + ".tif"
	tifDs, err := ds.Translate(virtualname, options)
	if err != nil {
		return nil, fmt.Errorf("FrameToTiff.Translate: %w", err)
	}
	defer UnlinkDataset(tifDs, virtualname)

	vsiFile, err := godal.VSIOpen(virtualname)
	if err != nil {
		return nil, fmt.Errorf("FrameToTiff.%w", err)
	}
	defer vsiFile.Close()
	return io.ReadAll(vsiFile)
}

func toS(f float64) string {
	return utils.F64ToS(f)
}
