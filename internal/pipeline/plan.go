package pipeline

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/xcube-dev/stacube/internal/catalog"
	"github.com/xcube-dev/stacube/internal/grid"
	"github.com/xcube-dev/stacube/internal/log"
	"github.com/xcube-dev/stacube/internal/stacube"
	"go.uber.org/zap"
)

// SliceJob is the plan of one slice: the tiles to mosaic under one temporal key
// for one band
type SliceJob struct {
	ID    int
	Key   time.Time
	Band  string
	Tiles []*catalog.TileRef
	Zones []*Zone

	// Reprojected is true if at least one tile is warped from another CRS
	Reprojected bool

	// OutMapping is the common data format the sources of the band are cast to
	OutMapping stacube.DataMapping
	Resampling stacube.Resampling
}

// CubePlan is the full description of a cube before any pixel is read.
// Building the plan only talks to the catalog; materializing it reads the rasters.
type CubePlan struct {
	Grid    *grid.CanonicalGrid
	Request *stacube.CubeRequest
	Times   []time.Time
	Jobs    []*SliceJob
}

// BuildPlan resolves the canonical grid, locates the tiles and lays out the
// slices of the cube. No raster is opened.
func BuildPlan(ctx context.Context, locator *catalog.Locator, req *stacube.CubeRequest) (*CubePlan, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("BuildPlan.%w", err)
	}

	var cgrid *grid.CanonicalGrid
	var err error
	if req.Point != nil {
		cgrid, err = grid.ResolveGridAtPoint(req.Point[0], req.Point[1], req.BboxWidth, req.CRS, req.Resolution)
	} else {
		cgrid, err = grid.ResolveGrid(req.Bbox, req.CRS, req.Resolution)
	}
	if err != nil {
		return nil, fmt.Errorf("BuildPlan.%w", err)
	}

	stream, err := locator.Locate(ctx, req, cgrid)
	if err != nil {
		return nil, fmt.Errorf("BuildPlan.%w", err)
	}
	var tiles []*catalog.TileRef
	for tile := range stream {
		if tile.Error != nil {
			return nil, fmt.Errorf("BuildPlan.%w", tile.Error)
		}
		tiles = append(tiles, tile.Tile)
	}
	if len(tiles) == 0 {
		// The locator silently skips untrustable items and unresolvable bands, but an
		// empty cube must not pass for a successful one
		return nil, fmt.Errorf("BuildPlan.%w", stacube.NewCatalogDataError(req.Collection, "",
			"no usable item between %s and %s: the search returned nothing or every item was filtered out",
			req.FromTime.UTC().Format(time.RFC3339), req.ToTime.UTC().Format(time.RFC3339)))
	}

	groups, err := groupTiles(tiles, req.Bands, req.GroupBy)
	if err != nil {
		return nil, fmt.Errorf("BuildPlan.%w", err)
	}

	plan := &CubePlan{Grid: cgrid, Request: req}
	for _, group := range groups {
		zones := GroupByZone(group.Tiles)
		reprojected := false
		for _, zone := range zones {
			if err := zone.CheckAlignment(); err != nil {
				return nil, fmt.Errorf("BuildPlan.%w", err)
			}
			if zone.Epsg != cgrid.Srid() {
				reprojected = true
			}
		}
		plan.Jobs = append(plan.Jobs, &SliceJob{
			ID:          len(plan.Jobs),
			Key:         group.Key,
			Band:        group.Band,
			Tiles:       group.Tiles,
			Zones:       zones,
			Reprojected: reprojected,
			OutMapping:  outputMapping(group.Tiles),
			Resampling:  req.ResamplingFor(group.Band),
		})
		if len(plan.Times) == 0 || !plan.Times[len(plan.Times)-1].Equal(group.Key) {
			plan.Times = append(plan.Times, group.Key)
		}
	}

	log.Logger(ctx).Debug("plan built",
		zap.String("grid", cgrid.String()),
		zap.Int("tiles", len(tiles)),
		zap.Int("times", len(plan.Times)),
		zap.Int("slices", len(plan.Jobs)))
	return plan, nil
}

// NbTiles returns the number of tiles the plan reads
func (p *CubePlan) NbTiles() int {
	nb := 0
	for _, job := range p.Jobs {
		nb += len(job.Tiles)
	}
	return nb
}

// outputMapping returns the common format the sources of a band are cast to.
// A band whose tiles all share an identity mapping keeps its raw format (the
// labels of a categorical band must survive untouched). Otherwise the band is
// decoded to float32 over the union of the physical ranges.
func outputMapping(tiles []*catalog.TileRef) stacube.DataMapping {
	identity := true
	for _, tile := range tiles {
		m := tile.DataMapping
		if !tile.DataMapping.Equals(tiles[0].DataMapping) || m.RangeExt != m.Range || m.Exponent != 1 {
			identity = false
			break
		}
	}
	if identity {
		return tiles[0].DataMapping
	}

	rangeExt := tiles[0].DataMapping.RangeExt
	for _, tile := range tiles[1:] {
		rangeExt.Min = math.Min(rangeExt.Min, tile.DataMapping.RangeExt.Min)
		rangeExt.Max = math.Max(rangeExt.Max, tile.DataMapping.RangeExt.Max)
	}
	df := stacube.DataFormat{DType: stacube.DTypeFLOAT32, NoData: math.NaN(), Range: rangeExt}
	return stacube.DataMapping{DataFormat: df, RangeExt: rangeExt, Exponent: 1}
}
