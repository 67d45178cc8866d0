package image

import (
	"bytes"
	"fmt"

	"github.com/airbusgeo/cogger"
	"github.com/airbusgeo/godal"
	"github.com/google/tiff"
	"github.com/google/uuid"
	"github.com/xcube-dev/stacube/internal/grid"
	"github.com/xcube-dev/stacube/internal/stacube"
)

// Compression of a cog slice
type Compression int32

const (
	CompressionNO Compression = iota
	CompressionLOSSLESS
	CompressionLOSSY
)

// CogConfig tunes the cloud-optimized layout of a slice
type CogConfig struct {
	BlockXSize, BlockYSize int
	Compression            Compression
	// OverviewsMinSize: size of the smallest overview (0: no overviews)
	OverviewsMinSize int
	Resampling       stacube.Resampling
}

// FrameToCogAsBytes translates the frame to a cloud-optimized geotiff and returns
// the byte representation. The grid mapping tag is always written, so that every
// slice of a cube declares its CRS under the same name.
func FrameToCogAsBytes(ds *godal.Dataset, cfg CogConfig, mapping stacube.DataMapping, wktCRS string, tags map[string]string) ([]byte, error) {
	options := []string{
		"-co", "TILED=YES",
		"-co", "NUM_THREADS=ALL_CPUS",
		"-co", "SPARSE_OK=TRUE",
		"-mo", fmt.Sprintf("%s=%s", grid.GridMappingName, wktCRS),
	}
	if cfg.BlockXSize != 0 {
		options = append(options, "-co", fmt.Sprintf("BLOCKXSIZE=%d", cfg.BlockXSize))
	}
	if cfg.BlockYSize != 0 {
		options = append(options, "-co", fmt.Sprintf("BLOCKYSIZE=%d", cfg.BlockYSize))
	}
	options = append(options, compressionOptions(cfg.Compression, mapping.DType)...)
	structure := ds.Structure()
	if structure.SizeX*structure.SizeY >= 10000*10000 {
		options = append(options, "-co", "BIGTIFF=YES")
	}
	for k, t := range tags {
		options = append(options, "-mo", fmt.Sprintf("%s=%s", k, t))
	}

	virtualname := "/vsimem/" + uuid.New().String() + ".tif"
	cogDs, err := ds.Translate(virtualname, options)
	if err != nil {
		return nil, fmt.Errorf("FrameToCog.Translate: %w", err)
	}
	defer godal.VSIUnlink(virtualname)

	if cfg.OverviewsMinSize > 0 {
		if err := cogDs.BuildOverviews(godal.Resampling(cfg.Resampling.ToGDAL()), godal.MinSize(cfg.OverviewsMinSize)); err != nil {
			cogDs.Close()
			return nil, fmt.Errorf("FrameToCog.BuildOverviews: %w", err)
		}
	}
	for _, band := range cogDs.Bands() {
		if err := band.SetNoData(mapping.NoData); err != nil {
			cogDs.Close()
			return nil, fmt.Errorf("FrameToCog.SetNoData: %w", err)
		}
	}
	if err := cogDs.Close(); err != nil {
		return nil, fmt.Errorf("FrameToCog.Close: %w", err)
	}

	// Rewrite with the IFDs and blocks in cloud-optimized order
	vsiFile, err := godal.VSIOpen(virtualname)
	if err != nil {
		return nil, fmt.Errorf("FrameToCog.%w", err)
	}
	defer vsiFile.Close()

	var buf bytes.Buffer
	if err := cogger.Rewrite(&buf, tiff.NewReadAtReadSeeker(vsiFile)); err != nil {
		return nil, fmt.Errorf("FrameToCog.Rewrite: %w", err)
	}
	return buf.Bytes(), nil
}

func compressionOptions(compression Compression, dtype stacube.DType) []string {
	if compression == CompressionNO {
		return nil
	}
	switch dtype {
	case stacube.DTypeINT8, stacube.DTypeUINT8, stacube.DTypeINT16, stacube.DTypeUINT16, stacube.DTypeINT32, stacube.DTypeUINT32:
		if compression == CompressionLOSSY {
			return []string{"-co", "COMPRESS=LERC", "-co", "MAX_Z_ERROR=0.01"}
		}
		return []string{"-co", "COMPRESS=ZSTD", "-co", "PREDICTOR=2"}
	case stacube.DTypeFLOAT32, stacube.DTypeFLOAT64:
		if compression == CompressionLOSSY {
			return []string{"-co", "COMPRESS=LERC_ZSTD", "-co", "MAX_Z_ERROR=0.01"}
		}
		return []string{"-co", "COMPRESS=LERC_ZSTD", "-co", "MAX_Z_ERROR=0"}
	}
	return nil
}
