package stacube

//go:generate enumer -json -type GroupBy -trimprefix GroupBy

import (
	"math"
	"strings"
	"time"
)

// GroupBy defines the temporal key used to mosaic observations
type GroupBy int32

const (
	// GroupByTIME: one cube slice per exact acquisition datetime
	GroupByTIME GroupBy = iota
	// GroupBySOLARDAY: observations of the same solar day are mosaicked together
	GroupBySOLARDAY
)

// OverlapPolicy defines which contributor wins where tiles overlap
type OverlapPolicy int32

const (
	// OverlapFirstValid: the first valid pixel in catalog order wins
	OverlapFirstValid OverlapPolicy = iota
	// OverlapLastValid: the last valid pixel in catalog order wins
	OverlapLastValid
)

func (o OverlapPolicy) String() string {
	if o == OverlapLastValid {
		return "last-valid"
	}
	return "first-valid"
}

// AssetKind is the kind of dataset an opener produces
type AssetKind int32

const (
	AssetKindUNDEFINED AssetKind = iota
	AssetKindDATASET
	AssetKindMLDATASET
)

// AssetFormat is the storage format of an asset
type AssetFormat int32

const (
	AssetFormatUNDEFINED AssetFormat = iota
	AssetFormatGEOTIFF
	AssetFormatJP2
	AssetFormatZARR
	AssetFormatNETCDF
)

func AssetKindFromString(kind string) AssetKind {
	switch strings.ToLower(kind) {
	case "dataset":
		return AssetKindDATASET
	case "mldataset":
		return AssetKindMLDATASET
	default:
		return AssetKindUNDEFINED
	}
}

func AssetFormatFromString(format string) AssetFormat {
	switch strings.ToLower(format) {
	case "geotiff", "tiff", "cog":
		return AssetFormatGEOTIFF
	case "jp2", "jpeg2000":
		return AssetFormatJP2
	case "zarr":
		return AssetFormatZARR
	case "netcdf":
		return AssetFormatNETCDF
	default:
		return AssetFormatUNDEFINED
	}
}

func (k AssetKind) String() string {
	switch k {
	case AssetKindDATASET:
		return "dataset"
	case AssetKindMLDATASET:
		return "mldataset"
	}
	return "undefined"
}

func (f AssetFormat) String() string {
	switch f {
	case AssetFormatGEOTIFF:
		return "geotiff"
	case AssetFormatJP2:
		return "jp2"
	case AssetFormatZARR:
		return "zarr"
	case AssetFormatNETCDF:
		return "netcdf"
	}
	return "undefined"
}

// OpenerKey identifies the opener able to read an asset.
// Both fields are validated at construction, so that a key cannot silently
// fall through the dispatch like a free-form string would.
type OpenerKey struct {
	Kind   AssetKind
	Format AssetFormat
}

// NewOpenerKey creates an OpenerKey and validates it
func NewOpenerKey(kind AssetKind, format AssetFormat) (OpenerKey, error) {
	if kind == AssetKindUNDEFINED {
		return OpenerKey{}, NewConfigurationError("kind", "opener kind cannot be undefined")
	}
	if format == AssetFormatUNDEFINED {
		return OpenerKey{}, NewConfigurationError("format", "opener format cannot be undefined")
	}
	return OpenerKey{Kind: kind, Format: format}, nil
}

// ParseOpenerKey parses "<kind>:<format>" into an OpenerKey
func ParseOpenerKey(s string) (OpenerKey, error) {
	kind, format, ok := strings.Cut(s, ":")
	if !ok {
		return OpenerKey{}, NewConfigurationError("opener", "invalid opener key %q (expecting \"<kind>:<format>\")", s)
	}
	return NewOpenerKey(AssetKindFromString(kind), AssetFormatFromString(format))
}

func (k OpenerKey) String() string {
	return k.Kind.String() + ":" + k.Format.String()
}

// ChunkSpec bounds the memory of the materialization
type ChunkSpec struct {
	// SizeX, SizeY: size of a slice chunk in pixels (0: whole slice)
	SizeX, SizeY int
	// Workers bounds the number of slices assembled in parallel (0: runtime default)
	Workers int
}

// CubeRequest describes a cube to assemble from a collection.
// It is read-only once validated.
type CubeRequest struct {
	Collection string
	Bands      []string

	// Extent, either Bbox in CRS units or Point+BboxWidth in meters
	Bbox      [4]float64
	Point     *[2]float64
	BboxWidth float64

	CRS        string
	Resolution float64

	FromTime, ToTime time.Time

	// Query: additional item filters forwarded to the catalog search
	Query map[string]string

	GroupBy    GroupBy
	Overlap    OverlapPolicy
	Resampling map[string]Resampling // per-band override, else ResamplingForBand

	Chunks ChunkSpec
}

// ResamplingFor returns the resampling requested for the band, or the per-band default
func (req *CubeRequest) ResamplingFor(band string) Resampling {
	if r, ok := req.Resampling[band]; ok && r != ResamplingUNDEFINED {
		return r
	}
	return ResamplingForBand(band)
}

// Validate only returns ConfigurationError
func (req *CubeRequest) Validate() error {
	if req.Collection == "" {
		return NewConfigurationError("collection", "collection cannot be empty")
	}
	if len(req.Bands) == 0 {
		return NewConfigurationError("bands", "at least one band is required")
	}
	for _, b := range req.Bands {
		if b == "" {
			return NewConfigurationError("bands", "band name cannot be empty")
		}
	}
	if req.Resolution <= 0 || math.IsNaN(req.Resolution) {
		return NewConfigurationError("resolution", "resolution must be strictly positive")
	}
	if req.Point == nil {
		// A point request may omit the crs (the UTM zone of the point is used)
		if req.CRS == "" {
			return NewConfigurationError("crs", "crs cannot be empty")
		}
		if math.IsNaN(req.Bbox[0]) || req.Bbox[0] >= req.Bbox[2] || req.Bbox[1] >= req.Bbox[3] {
			return NewConfigurationError("bbox", "invalid bbox [%g, %g, %g, %g]", req.Bbox[0], req.Bbox[1], req.Bbox[2], req.Bbox[3])
		}
	} else if req.BboxWidth <= 0 {
		return NewConfigurationError("bbox_width", "bbox_width must be strictly positive when a point is provided")
	}
	if !req.FromTime.IsZero() && !req.ToTime.IsZero() && req.ToTime.Before(req.FromTime) {
		return NewConfigurationError("time", "empty time range [%v, %v]", req.FromTime, req.ToTime)
	}
	if req.Chunks.SizeX < 0 || req.Chunks.SizeY < 0 || req.Chunks.Workers < 0 {
		return NewConfigurationError("chunks", "chunk sizes and workers cannot be negative")
	}
	return nil
}
