package pipeline

import (
	"math"
	"sort"

	"github.com/xcube-dev/stacube/internal/catalog"
	"github.com/xcube-dev/stacube/internal/stacube"
)

// alignmentTolerance, as a fraction of a pixel
const alignmentTolerance = 1e-6

// Zone is the set of tiles of a slice sharing a native CRS.
// Tiles of the same zone mosaic without resampling, tiles of different zones
// meet on the canonical grid after reprojection.
type Zone struct {
	Epsg  int
	Tiles []*catalog.TileRef
}

// GroupByZone groups the tiles by native CRS, preserving catalog order within a
// zone. Zones are returned by ascending EPSG code.
func GroupByZone(tiles []*catalog.TileRef) []*Zone {
	byEpsg := map[int]*Zone{}
	var zones []*Zone
	for _, tile := range tiles {
		zone, ok := byEpsg[tile.Epsg]
		if !ok {
			zone = &Zone{Epsg: tile.Epsg}
			byEpsg[tile.Epsg] = zone
			zones = append(zones, zone)
		}
		zone.Tiles = append(zone.Tiles, tile)
	}
	sort.Slice(zones, func(i, j int) bool { return zones[i].Epsg < zones[j].Epsg })
	return zones
}

// CheckAlignment verifies that the tiles of the zone share the pixel lattice:
// same resolution and origins offset by a whole number of pixels. A catalog
// declaring misaligned grids in one CRS cannot be mosaicked without resampling
// native pixels against each other.
func (z *Zone) CheckAlignment() error {
	var ref *catalog.TileRef
	for _, tile := range z.Tiles {
		if tile.PixToCRS == nil {
			continue
		}
		if ref == nil {
			ref = tile
			continue
		}
		if tile.PixToCRS.Rx() != ref.PixToCRS.Rx() || tile.PixToCRS.Ry() != ref.PixToCRS.Ry() {
			return stacube.NewDataConsistencyError(ref.Item.ID, tile.Item.ID,
				"tiles %s and %s share EPSG:%d but not the native resolution (%gx%g vs %gx%g)",
				ref.Item.ID, tile.Item.ID, z.Epsg, ref.PixToCRS.Rx(), ref.PixToCRS.Ry(), tile.PixToCRS.Rx(), tile.PixToCRS.Ry())
		}
		x0, y0 := ref.PixToCRS.Transform(0, 0)
		x1, y1 := tile.PixToCRS.Transform(0, 0)
		dx := (x1 - x0) / ref.PixToCRS.Rx()
		dy := (y1 - y0) / ref.PixToCRS.Ry()
		if math.Abs(dx-math.Round(dx)) > alignmentTolerance || math.Abs(dy-math.Round(dy)) > alignmentTolerance {
			return stacube.NewDataConsistencyError(ref.Item.ID, tile.Item.ID,
				"tiles %s and %s share EPSG:%d but their grids are offset by a fraction of a pixel (%g, %g)",
				ref.Item.ID, tile.Item.ID, z.Epsg, dx, dy)
		}
	}
	return nil
}
