package catalog

import (
	"math"
	"sort"
	"strings"

	"github.com/xcube-dev/stacube/internal/stacube"
	"github.com/xcube-dev/stacube/internal/utils/proj"
)

// NativeGridProvider returns the EPSG code of the grid the item tiles natively live on.
// It must never derive it from the requested output CRS.
type NativeGridProvider interface {
	NativeEpsg(item *Item) (int, error)
}

// BandResolver maps a requested band name to the asset carrying it, given the
// requested resolution, and knows the raw data format of each band.
type BandResolver interface {
	ResolveAsset(item *Item, band string, resolution float64) (string, Asset, error)
	DataMapping(item *Item, band string) stacube.DataMapping
}

// ViewingAngleProvider points to the viewing-angle metadata of an item, if available
type ViewingAngleProvider interface {
	AngleHref(item *Item) string
}

// URIResolver translates an asset href into a uri GDAL can open
type URIResolver interface {
	ResolveURI(href string) string
}

// Capabilities is the set of collection-specific behaviours.
// ViewingAngles may be nil.
type Capabilities struct {
	NativeGrid    NativeGridProvider
	Bands         BandResolver
	ViewingAngles ViewingAngleProvider
	URIs          URIResolver
}

// Registry holds the capabilities of the known collections
type Registry struct {
	caps map[string]Capabilities
}

// NewRegistry creates a registry with the built-in collections
func NewRegistry() *Registry {
	r := &Registry{caps: map[string]Capabilities{}}

	// Sentinel-2 L2A, as published by CDSE (assets keyed "B04_10m", s3 hrefs) and
	// by Planetary Computer (assets keyed "B04", https hrefs). One capability set
	// handles both layouts.
	sen2 := sen2Capability{}
	r.Register("sentinel-2-l2a", Capabilities{
		NativeGrid:    sen2,
		Bands:         sen2,
		ViewingAngles: sen2,
		URIs:          vsiURIs{},
	})
	return r
}

// Register adds or replaces the capabilities of a collection
func (r *Registry) Register(collection string, caps Capabilities) {
	r.caps[collection] = caps
}

// Capabilities returns the capabilities of the collection, or a generic set for
// collections that are not registered
func (r *Registry) Capabilities(collection string) Capabilities {
	if caps, ok := r.caps[collection]; ok {
		return caps
	}
	return Capabilities{NativeGrid: genericGrid{}, Bands: genericBands{}, URIs: vsiURIs{}}
}

/*******************************************************************/
/*                           GENERIC                               */
/*******************************************************************/

// vsiURIs maps hrefs to GDAL VSI uris. Object storage schemes are left as-is,
// they are handled by the registered osio adapters.
type vsiURIs struct{}

func (vsiURIs) ResolveURI(href string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return "/vsicurl/" + href
	}
	return href
}

// genericGrid trusts the proj extension, with a UTM fallback on the bbox center
type genericGrid struct{}

func (genericGrid) NativeEpsg(item *Item) (int, error) {
	if epsg := item.NativeEpsg(); epsg != 0 {
		return epsg, nil
	}
	lon, lat := (item.Bbox[0]+item.Bbox[2])/2, (item.Bbox[1]+item.Bbox[3])/2
	return proj.UTMEpsgFromLonLat(lon, lat), nil
}

// genericBands resolves a band to the asset of the same name
type genericBands struct{}

func (genericBands) ResolveAsset(item *Item, band string, resolution float64) (string, Asset, error) {
	if asset, ok := item.Assets[band]; ok {
		return band, asset, nil
	}
	for key, asset := range item.Assets {
		if strings.EqualFold(key, band) {
			return key, asset, nil
		}
	}
	return "", Asset{}, stacube.NewCatalogDataError("", item.ID, "item %s has no asset for band %q", item.ID, band)
}

func (genericBands) DataMapping(item *Item, band string) stacube.DataMapping {
	// Unknown collection: read as float32, identity mapping
	df := stacube.DataFormat{DType: stacube.DTypeFLOAT32, NoData: math.NaN(), Range: stacube.Range{Min: -math.MaxFloat32, Max: math.MaxFloat32}}
	return stacube.DataMapping{DataFormat: df, RangeExt: df.Range, Exponent: 1}
}

/*******************************************************************/
/*                        SENTINEL-2 L2A                           */
/*******************************************************************/

// sen2Resolutions are the ground resolutions a Sentinel-2 band is published at
var sen2Resolutions = []int{10, 20, 60}

// quantification and offset of the L2A surface reflectance DNs
const (
	sen2Quantification = 10000.
	sen2Offset         = -0.1
	// baselines >= 04.00 shift the DNs by -1000
	sen2OffsetBaseline = "04.00"
)

type sen2Capability struct{}

func (sen2Capability) NativeEpsg(item *Item) (int, error) {
	if epsg := item.NativeEpsg(); epsg != 0 {
		return epsg, nil
	}
	// MGRS tiles are UTM, fall back to the zone of the bbox center
	lon, lat := (item.Bbox[0]+item.Bbox[2])/2, (item.Bbox[1]+item.Bbox[3])/2
	return proj.UTMEpsgFromLonLat(lon, lat), nil
}

// ResolveAsset maps "B04" to the "B04" asset (Planetary Computer layout) or to the
// "B04_<res>m" asset of the nearest published resolution (CDSE layout)
func (sen2Capability) ResolveAsset(item *Item, band string, resolution float64) (string, Asset, error) {
	if asset, ok := item.Assets[band]; ok {
		return band, asset, nil
	}

	// Nearest available resolution first
	resolutions := append([]int{}, sen2Resolutions...)
	sort.Slice(resolutions, func(i, j int) bool {
		return math.Abs(float64(resolutions[i])-resolution) < math.Abs(float64(resolutions[j])-resolution)
	})
	for _, res := range resolutions {
		key := sen2AssetKey(band, res)
		if asset, ok := item.Assets[key]; ok {
			return key, asset, nil
		}
	}
	return "", Asset{}, stacube.NewCatalogDataError("", item.ID, "item %s has no asset for band %q at any resolution", item.ID, band)
}

func sen2AssetKey(band string, res int) string {
	return band + "_" + map[int]string{10: "10m", 20: "20m", 60: "60m"}[res]
}

func (sen2Capability) DataMapping(item *Item, band string) stacube.DataMapping {
	if stacube.ResamplingForBand(band) == stacube.ResamplingNEAR {
		// Categorical band (scene classification, masks): keep the raw labels
		df := stacube.DataFormat{DType: stacube.DTypeUINT8, NoData: 0, Range: stacube.Range{Min: 0, Max: 255}}
		return stacube.DataMapping{DataFormat: df, RangeExt: df.Range, Exponent: 1}
	}

	// Reflectance DN -> [0, 1], with the baseline>=04.00 offset
	df := stacube.DataFormat{DType: stacube.DTypeUINT16, NoData: 0, Range: stacube.Range{Min: 0, Max: sen2Quantification}}
	rangeExt := stacube.Range{Min: 0, Max: 1}
	if item.ProcessingVersion() >= sen2OffsetBaseline {
		rangeExt = stacube.Range{Min: sen2Offset, Max: 1 + sen2Offset}
	}
	return stacube.DataMapping{DataFormat: df, RangeExt: rangeExt, Exponent: 1}
}

// AngleHref returns the granule metadata carrying the viewing angle grids
func (sen2Capability) AngleHref(item *Item) string {
	for _, key := range []string{"granule_metadata", "granule-metadata"} {
		if asset, ok := item.Assets[key]; ok {
			return asset.Href
		}
	}
	return ""
}
