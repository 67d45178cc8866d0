package catalog

import (
	"fmt"
	"math"
	"time"

	"github.com/xcube-dev/stacube/internal/stacube"
	"github.com/xcube-dev/stacube/internal/utils/affine"
)

// corruptedBboxWidth: some catalogs publish antimeridian-crossing footprints as a
// bbox spanning almost the whole globe. Such a bbox is useless for intersection
// tests and the item is discarded.
const corruptedBboxWidth = 20.

// Asset is a STAC asset of an item
type Asset struct {
	Href  string   `json:"href"`
	Type  string   `json:"type,omitempty"`
	Roles []string `json:"roles,omitempty"`

	// proj extension, at the asset level
	Shape     []int     `json:"proj:shape,omitempty"`
	Transform []float64 `json:"proj:transform,omitempty"`
}

// Item is a STAC item reduced to what the cube assembly needs
type Item struct {
	ID         string                 `json:"id"`
	Collection string                 `json:"collection"`
	Bbox       [4]float64             `json:"bbox"`
	Properties map[string]interface{} `json:"properties"`
	Assets     map[string]Asset       `json:"assets"`
}

// Datetime returns the acquisition datetime of the item (UTC)
func (i *Item) Datetime() time.Time {
	s, ok := i.Properties["datetime"].(string)
	if !ok {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

// SolarDatetime returns the datetime shifted to the local solar time of the item,
// so that ascending/descending passes of the same day share the same date
func (i *Item) SolarDatetime() time.Time {
	lon := (i.Bbox[0] + i.Bbox[2]) / 2
	offset := time.Duration(int(lon/15)) * time.Hour
	return i.Datetime().Add(offset)
}

// ProcessingVersion returns the processing baseline of the item, or "" if unknown
func (i *Item) ProcessingVersion() string {
	for _, key := range []string{"processing:version", "s2:processing_baseline"} {
		if v, ok := i.Properties[key].(string); ok {
			return v
		}
	}
	return ""
}

// NativeEpsg returns the EPSG code of the native grid declared by the item, or 0
func (i *Item) NativeEpsg() int {
	switch v := i.Properties["proj:epsg"].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	if code, ok := i.Properties["proj:code"].(string); ok {
		var epsg int
		if n, err := fmt.Sscanf(code, "EPSG:%d", &epsg); err == nil && n == 1 {
			return epsg
		}
	}
	return 0
}

// CheckValid returns a CatalogDataError if the item footprint cannot be trusted.
// Invalid items are skipped by the locator, not fatal.
func (i *Item) CheckValid() error {
	if i.ID == "" {
		return stacube.NewCatalogDataError("", "", "item without id")
	}
	for _, v := range i.Bbox {
		if math.IsNaN(v) {
			return stacube.NewCatalogDataError("", i.ID, "item %s: bbox contains NaN", i.ID)
		}
	}
	if i.Bbox[0] < -180 || i.Bbox[2] > 180 || i.Bbox[1] < -90 || i.Bbox[3] > 90 {
		return stacube.NewCatalogDataError("", i.ID, "item %s: bbox out of lon/lat range %v", i.ID, i.Bbox)
	}
	if i.Bbox[0] >= i.Bbox[2] || i.Bbox[1] >= i.Bbox[3] {
		return stacube.NewCatalogDataError("", i.ID, "item %s: degenerate bbox %v", i.ID, i.Bbox)
	}
	if i.Bbox[2]-i.Bbox[0] >= corruptedBboxWidth {
		return stacube.NewCatalogDataError("", i.ID, "item %s: bbox spans %g degrees, footprint is corrupted", i.ID, i.Bbox[2]-i.Bbox[0])
	}
	if i.Datetime().IsZero() {
		return stacube.NewCatalogDataError("", i.ID, "item %s: missing or invalid datetime", i.ID)
	}
	return nil
}

// TileRef references one band of one item on its native grid.
// It is a plain value: no I/O happens before the tile is opened by the image layer.
type TileRef struct {
	Item  *Item
	Band  string // requested band name
	Asset string // resolved asset key
	URI   string // gdal-openable uri

	// Native grid
	Epsg          int
	PixToCRS      *affine.Affine // nil if the catalog does not declare it
	Width, Height int

	DataMapping stacube.DataMapping
	Resampling  stacube.Resampling

	// AngleHref points to the viewing-angle metadata of the granule, if any
	AngleHref string

	// Index is the rank of the tile in catalog order, used by the overlap policy
	Index int
}

// nativeTransform extracts the native geotransform of the asset, if declared
func nativeTransform(asset Asset) (*affine.Affine, int, int) {
	if len(asset.Transform) < 6 || len(asset.Shape) < 2 {
		return nil, 0, 0
	}
	// proj:transform is row-major [a, b, xoff, d, e, yoff]
	t := asset.Transform
	pixToCRS := affine.FromGeoTransform([6]float64{t[2], t[0], t[1], t[5], t[3], t[4]})
	// proj:shape is [height, width]
	return pixToCRS, asset.Shape[1], asset.Shape[0]
}
