package pipeline

import (
	"fmt"
	"sort"
	"time"

	"github.com/xcube-dev/stacube/internal/catalog"
	"github.com/xcube-dev/stacube/internal/stacube"
)

// temporalKey returns the key the tile is grouped under
func temporalKey(item *catalog.Item, groupBy stacube.GroupBy) time.Time {
	if groupBy == stacube.GroupBySOLARDAY {
		return item.SolarDatetime().Truncate(24 * time.Hour)
	}
	return item.Datetime()
}

// footprint identifies the patch of ground a tile covers on its native grid
type footprint struct {
	epsg          int
	x0, y0        float64
	width, height int
}

func tileFootprint(tile *catalog.TileRef) footprint {
	fp := footprint{epsg: tile.Epsg, width: tile.Width, height: tile.Height}
	if tile.PixToCRS != nil {
		fp.x0, fp.y0 = tile.PixToCRS.Transform(0, 0)
	} else {
		fp.x0, fp.y0 = tile.Item.Bbox[0], tile.Item.Bbox[3]
	}
	return fp
}

// sliceGroup is the set of tiles mosaicked into one slice of the cube
type sliceGroup struct {
	Key   time.Time
	Band  string
	Tiles []*catalog.TileRef
}

// groupTiles groups the tiles by (temporal key, band) and deduplicates reprocessed
// footprints: when a footprint appears twice under the same key, the latest
// processing version wins, then the latest acquisition. Two items that are
// indistinguishable by version and datetime are a catalog inconsistency.
// Groups are returned by ascending key, then by requested band order; tiles keep
// their catalog order within a group.
func groupTiles(tiles []*catalog.TileRef, bands []string, groupBy stacube.GroupBy) ([]*sliceGroup, error) {
	type groupKey struct {
		key  time.Time
		band string
	}
	groups := map[groupKey]map[footprint]*catalog.TileRef{}

	for _, tile := range tiles {
		gk := groupKey{key: temporalKey(tile.Item, groupBy), band: tile.Band}
		byFootprint, ok := groups[gk]
		if !ok {
			byFootprint = map[footprint]*catalog.TileRef{}
			groups[gk] = byFootprint
		}

		fp := tileFootprint(tile)
		other, ok := byFootprint[fp]
		if !ok {
			byFootprint[fp] = tile
			continue
		}
		winner, err := resolveDuplicate(other, tile)
		if err != nil {
			return nil, fmt.Errorf("groupTiles.%w", err)
		}
		byFootprint[fp] = winner
	}

	var sliceGroups []*sliceGroup
	for gk, byFootprint := range groups {
		group := &sliceGroup{Key: gk.key, Band: gk.band}
		for _, tile := range byFootprint {
			group.Tiles = append(group.Tiles, tile)
		}
		sort.Slice(group.Tiles, func(i, j int) bool { return group.Tiles[i].Index < group.Tiles[j].Index })
		sliceGroups = append(sliceGroups, group)
	}

	bandRank := map[string]int{}
	for i, band := range bands {
		bandRank[band] = i
	}
	sort.Slice(sliceGroups, func(i, j int) bool {
		if !sliceGroups[i].Key.Equal(sliceGroups[j].Key) {
			return sliceGroups[i].Key.Before(sliceGroups[j].Key)
		}
		return bandRank[sliceGroups[i].Band] < bandRank[sliceGroups[j].Band]
	})
	return sliceGroups, nil
}

// resolveDuplicate picks the tile to keep among two observations of the same
// footprint under the same temporal key
func resolveDuplicate(a, b *catalog.TileRef) (*catalog.TileRef, error) {
	if a.Item.ID == b.Item.ID {
		return a, nil
	}
	va, vb := a.Item.ProcessingVersion(), b.Item.ProcessingVersion()
	if va != vb {
		if va > vb {
			return a, nil
		}
		return b, nil
	}
	ta, tb := a.Item.Datetime(), b.Item.Datetime()
	if !ta.Equal(tb) {
		if ta.After(tb) {
			return a, nil
		}
		return b, nil
	}
	return nil, stacube.NewDataConsistencyError(a.Item.ID, b.Item.ID,
		"items %s and %s cover the same footprint at %v with the same processing version",
		a.Item.ID, b.Item.ID, ta)
}
