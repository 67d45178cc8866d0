// Package grid resolves the canonical target grid of a cube request.
//
// The canonical grid is immutable once resolved: every slice of a cube shares
// its CRS, its pixel-to-CRS transform and its size, whatever the native grids
// of the tiles that contribute to it.
package grid

import (
	"fmt"
	"math"
	"runtime"

	"github.com/airbusgeo/godal"
	"github.com/xcube-dev/stacube/internal/stacube"
	"github.com/xcube-dev/stacube/internal/utils/affine"
	"github.com/xcube-dev/stacube/internal/utils/proj"
)

// GridMappingName is the name of the grid-mapping attribute attached to every
// frame and cube slice. There is a single constant on purpose: both alignment
// paths must produce structurally identical frames.
const GridMappingName = "spatial_ref"

// MaxPointBboxWidth is the largest extent (in meters) that can be requested around a point
const MaxPointBboxWidth = 10000

// approximate meters per degree of latitude
const metersPerDegree = 111195.0

// CanonicalGrid is the immutable target grid of a cube
type CanonicalGrid struct {
	crs           *godal.SpatialRef
	srid          int
	pixToCRS      *affine.Affine
	width, height int
}

// ResolveGrid creates the canonical grid covering the bbox (in crs units) at the given resolution.
// Only returns ConfigurationError.
func ResolveGrid(bbox [4]float64, crsInput string, resolution float64) (*CanonicalGrid, error) {
	crs, srid, err := newCRS(crsInput)
	if err != nil {
		return nil, err
	}
	if err := checkResolutionUnit(crs, crsInput, resolution); err != nil {
		return nil, err
	}
	if bbox[0] >= bbox[2] || bbox[1] >= bbox[3] {
		return nil, stacube.NewConfigurationError("bbox", "invalid bbox [%g, %g, %g, %g]", bbox[0], bbox[1], bbox[2], bbox[3])
	}

	// Smallest integer size covering the bbox
	width := coveringSize(bbox[2]-bbox[0], resolution)
	height := coveringSize(bbox[3]-bbox[1], resolution)

	return &CanonicalGrid{
		crs:      crs,
		srid:     srid,
		pixToCRS: affine.Translation(bbox[0], bbox[3]).Multiply(affine.Scale(resolution, -resolution)),
		width:    width,
		height:   height,
	}, nil
}

// ResolveGridAtPoint creates the canonical grid of a bboxWidth-meter square centered
// on the lon/lat point. If crsInput is empty, the UTM zone of the point is used.
// Only returns ConfigurationError.
func ResolveGridAtPoint(lon, lat float64, bboxWidth float64, crsInput string, resolution float64) (*CanonicalGrid, error) {
	if bboxWidth <= 0 || bboxWidth >= MaxPointBboxWidth {
		return nil, stacube.NewConfigurationError("bbox_width", "bbox_width must be in ]0, %d[ meters (got %g)", MaxPointBboxWidth, bboxWidth)
	}
	if crsInput == "" {
		crsInput = fmt.Sprintf("epsg:%d", proj.UTMEpsgFromLonLat(lon, lat))
	}
	crs, _, err := newCRS(crsInput)
	if err != nil {
		return nil, err
	}

	halfW, halfH := bboxWidth/2, bboxWidth/2
	x, y := lon, lat
	if proj.IsGeographic(crs) {
		halfH /= metersPerDegree
		halfW /= metersPerDegree * math.Cos(proj.DegToRad*lat)
	} else {
		lonLatToCRS, err := proj.CreateLonLatProj(crs, false)
		if err != nil {
			return nil, stacube.NewConfigurationError("crs", "cannot project point to %s: %v", crsInput, err)
		}
		xs, ys := []float64{lon}, []float64{lat}
		if err := lonLatToCRS.TransformEx(xs, ys, []float64{0}, nil); err != nil {
			return nil, stacube.NewConfigurationError("point", "cannot project point [%g, %g] to %s: %v", lon, lat, crsInput, err)
		}
		x, y = xs[0], ys[0]
	}

	// Snap the origin to the resolution lattice, so that two nearby points
	// resolve grids sharing pixel borders
	xMin := math.Floor((x-halfW)/resolution) * resolution
	yMin := math.Floor((y-halfH)/resolution) * resolution
	return ResolveGrid([4]float64{xMin, yMin, xMin + 2*halfW, yMin + 2*halfH}, crsInput, resolution)
}

func newCRS(crsInput string) (*godal.SpatialRef, int, error) {
	crs, srid, err := proj.CRSFromUserInput(crsInput)
	if err != nil {
		return nil, 0, stacube.NewConfigurationError("crs", "invalid crs %q: %v", crsInput, err)
	}
	if srid == 0 {
		return nil, 0, stacube.NewConfigurationError("crs", "unable to retrieve SRID from crs %q", crsInput)
	}
	runtime.SetFinalizer(crs, func(crs *godal.SpatialRef) { crs.Close() })
	return crs, srid, nil
}

// checkResolutionUnit rejects a resolution whose magnitude does not match the crs unit
// (e.g. 10m requested on a lon/lat grid)
func checkResolutionUnit(crs *godal.SpatialRef, crsInput string, resolution float64) error {
	if resolution <= 0 || math.IsNaN(resolution) {
		return stacube.NewConfigurationError("resolution", "resolution must be strictly positive (got %g)", resolution)
	}
	if proj.IsGeographic(crs) {
		if resolution >= 1 {
			return stacube.NewConfigurationError("resolution", "resolution %g is not in degrees, but crs %q is geographic", resolution, crsInput)
		}
	} else if resolution < 1e-3 {
		return stacube.NewConfigurationError("resolution", "resolution %g is not in meters, but crs %q is projected", resolution, crsInput)
	}
	return nil
}

// coveringSize returns the smallest pixel count covering the extent, with a
// tolerance for extents that are an exact multiple of the resolution
func coveringSize(extent, resolution float64) int {
	n := int(math.Ceil(extent/resolution - 1e-9))
	if n < 1 {
		return 1
	}
	return n
}

// CRS returns the spatial reference of the grid. DO NOT close it.
func (g *CanonicalGrid) CRS() *godal.SpatialRef {
	return g.crs
}

// Srid returns the EPSG code of the grid CRS
func (g *CanonicalGrid) Srid() int {
	return g.srid
}

// PixToCRS returns the transform from pixel coordinates to CRS coordinates
func (g *CanonicalGrid) PixToCRS() *affine.Affine {
	return g.pixToCRS
}

// Width returns the number of columns
func (g *CanonicalGrid) Width() int {
	return g.width
}

// Height returns the number of rows
func (g *CanonicalGrid) Height() int {
	return g.height
}

// Resolution returns the pixel size in CRS unit
func (g *CanonicalGrid) Resolution() float64 {
	return math.Abs(g.pixToCRS.Rx())
}

// Bounds returns [xmin, ymin, xmax, ymax] in CRS coordinates
func (g *CanonicalGrid) Bounds() [4]float64 {
	x0, y0 := g.pixToCRS.Transform(0, 0)
	x1, y1 := g.pixToCRS.Transform(float64(g.width), float64(g.height))
	if x0 > x1 {
		x0, x1 = x1, x0
	}
	if y0 > y1 {
		y0, y1 = y1, y0
	}
	return [4]float64{x0, y0, x1, y1}
}

// GeographicRing returns the lon/lat footprint of the grid (densified along curved edges)
func (g *CanonicalGrid) GeographicRing() (proj.GeographicRing, error) {
	return proj.NewGeographicRingFromExtent(g.pixToCRS, g.width, g.height, g.crs)
}

// LonLatBbox returns the lon/lat bbox covering the grid
func (g *CanonicalGrid) LonLatBbox() ([4]float64, error) {
	return proj.BboxToLonLat(g.crs, g.Bounds())
}

// Equal returns true if the two grids are interchangeable
func (g *CanonicalGrid) Equal(g2 *CanonicalGrid) bool {
	return g.srid == g2.srid && g.width == g2.width && g.height == g2.height &&
		g.pixToCRS.Equals(g2.pixToCRS)
}

func (g *CanonicalGrid) String() string {
	return fmt.Sprintf("epsg:%d %dx%d @%g", g.srid, g.width, g.height, g.Resolution())
}
