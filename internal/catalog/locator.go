package catalog

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/xcube-dev/stacube/internal/grid"
	"github.com/xcube-dev/stacube/internal/log"
	"github.com/xcube-dev/stacube/internal/stacube"
)

// StreamedTile is a TileRef or an error, streamed by the locator
type StreamedTile struct {
	Tile  *TileRef
	Error error
}

// Locator searches a collection and streams the tiles intersecting a canonical grid.
// The stream is deterministic: ascending datetime, item id tiebreak, then the
// requested band order. Restarting a cube means re-issuing the search.
type Locator struct {
	client   *Client
	registry *Registry
}

// NewLocator creates a Locator on a search client
func NewLocator(client *Client, registry *Registry) *Locator {
	return &Locator{client: client, registry: registry}
}

// Locate streams the tiles of the collection that intersect the grid within the
// time range of the request. Items with an untrustable footprint are skipped.
// The channel is closed when the stream is done or on the first error.
func (l *Locator) Locate(ctx context.Context, req *stacube.CubeRequest, cgrid *grid.CanonicalGrid) (<-chan StreamedTile, error) {
	lonLatBbox, err := cgrid.LonLatBbox()
	if err != nil {
		return nil, fmt.Errorf("Locate.%w", err)
	}
	caps := l.registry.Capabilities(req.Collection)

	tiles := make(chan StreamedTile)
	go func() {
		defer close(tiles)

		items, err := l.client.Search(ctx, SearchRequest{
			Collections: []string{req.Collection},
			Bbox:        lonLatBbox,
			Datetime:    formatInterval(req.FromTime, req.ToTime),
			Query:       req.Query,
		})
		if err != nil {
			sendTile(ctx, tiles, StreamedTile{Error: fmt.Errorf("Locate.%w", err)})
			return
		}

		// Drop the items whose footprint cannot be trusted
		valid := items[:0]
		for _, item := range items {
			if err := item.CheckValid(); err != nil {
				log.Logger(ctx).Sugar().Debugf("Locate: skip item: %v", err)
				continue
			}
			valid = append(valid, item)
		}

		// Catalog order, whatever the order the server returned the pages in
		sort.SliceStable(valid, func(i, j int) bool {
			ti, tj := valid[i].Datetime(), valid[j].Datetime()
			if ti.Equal(tj) {
				return valid[i].ID < valid[j].ID
			}
			return ti.Before(tj)
		})

		index := 0
		for _, item := range valid {
			epsg, err := caps.NativeGrid.NativeEpsg(item)
			if err != nil {
				sendTile(ctx, tiles, StreamedTile{Error: fmt.Errorf("Locate.%w", err)})
				return
			}
			angleHref := ""
			if caps.ViewingAngles != nil {
				angleHref = caps.ViewingAngles.AngleHref(item)
			}

			for _, band := range req.Bands {
				key, asset, err := caps.Bands.ResolveAsset(item, band, cgrid.Resolution())
				if err != nil {
					// A missing band contributes nodata, it does not fail the cube
					log.Logger(ctx).Sugar().Debugf("Locate: %v", err)
					continue
				}
				pixToCRS, width, height := nativeTransform(asset)
				tile := &TileRef{
					Item:        item,
					Band:        band,
					Asset:       key,
					URI:         caps.URIs.ResolveURI(asset.Href),
					Epsg:        epsg,
					PixToCRS:    pixToCRS,
					Width:       width,
					Height:      height,
					DataMapping: caps.Bands.DataMapping(item, band),
					Resampling:  req.ResamplingFor(band),
					AngleHref:   angleHref,
					Index:       index,
				}
				index++
				if !sendTile(ctx, tiles, StreamedTile{Tile: tile}) {
					return
				}
			}
		}
	}()

	return tiles, nil
}

func sendTile(ctx context.Context, tiles chan<- StreamedTile, tile StreamedTile) bool {
	select {
	case tiles <- tile:
		return true
	case <-ctx.Done():
		return false
	}
}

func formatInterval(from, to time.Time) string {
	if from.IsZero() && to.IsZero() {
		return ""
	}
	f, t := "..", ".."
	if !from.IsZero() {
		f = from.UTC().Format(time.RFC3339)
	}
	if !to.IsZero() {
		t = to.UTC().Format(time.RFC3339)
	}
	return f + "/" + t
}
