package catalog_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/airbusgeo/godal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xcube-dev/stacube/internal/catalog"
	"github.com/xcube-dev/stacube/internal/grid"
	"github.com/xcube-dev/stacube/internal/stacube"
)

func TestMain(m *testing.M) {
	godal.RegisterAll()
	os.Exit(m.Run())
}

func sen2SearchItem(id, datetime string, bands ...string) map[string]interface{} {
	assets := map[string]interface{}{}
	for _, band := range bands {
		assets[band+"_10m"] = map[string]interface{}{
			"href":           fmt.Sprintf("s3://eodata/%s/%s_10m.jp2", id, band),
			"proj:shape":     []int{10980, 10980},
			"proj:transform": []float64{10, 0, 399960, 0, -10, 5500020},
		}
	}
	return map[string]interface{}{
		"id":         id,
		"collection": "sentinel-2-l2a",
		"bbox":       []float64{9, 47.7, 10.5, 48.8},
		"properties": map[string]interface{}{
			"datetime":  datetime,
			"proj:epsg": 32632,
		},
		"assets": assets,
	}
}

// stacServer serves the given features in the given order, one page per feature,
// chained with rel=next links
func stacServer(t *testing.T, features []map[string]interface{}) *httptest.Server {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page := 0
		fmt.Sscanf(r.URL.Query().Get("page"), "%d", &page)
		fc := map[string]interface{}{"features": []interface{}{}, "links": []interface{}{}}
		if page < len(features) {
			fc["features"] = []interface{}{features[page]}
		}
		if page+1 < len(features) {
			fc["links"] = []interface{}{map[string]interface{}{
				"rel":  "next",
				"href": fmt.Sprintf("%s/search?page=%d", server.URL, page+1),
			}}
		}
		w.Header().Set("Content-Type", "application/geo+json")
		if err := json.NewEncoder(w).Encode(fc); err != nil {
			t.Error(err)
		}
	}))
	return server
}

func collectTiles(t *testing.T, tiles <-chan catalog.StreamedTile) []*catalog.TileRef {
	var refs []*catalog.TileRef
	for tile := range tiles {
		require.NoError(t, tile.Error)
		refs = append(refs, tile.Tile)
	}
	return refs
}

func TestLocateDeterministicOrder(t *testing.T) {
	// Serve the items out of order, on separate pages
	server := stacServer(t, []map[string]interface{}{
		sen2SearchItem("T32UNU_B", "2023-06-04T10:30:00Z", "B04", "B08"),
		sen2SearchItem("T32UNU_A", "2023-06-01T10:30:00Z", "B04", "B08"),
		sen2SearchItem("T32UNU_C", "2023-06-04T10:30:00Z", "B04", "B08"),
	})
	defer server.Close()

	cgrid, err := grid.ResolveGrid([4]float64{399960, 5490240, 409560, 5500020}, "epsg:32632", 10)
	require.NoError(t, err)

	req := &stacube.CubeRequest{
		Collection: "sentinel-2-l2a",
		Bands:      []string{"B04", "B08"},
		FromTime:   time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC),
		ToTime:     time.Date(2023, 6, 30, 0, 0, 0, 0, time.UTC),
	}

	locator := catalog.NewLocator(catalog.NewClient(server.URL, nil), catalog.NewRegistry())
	tiles, err := locator.Locate(context.Background(), req, cgrid)
	require.NoError(t, err)
	refs := collectTiles(t, tiles)

	// Ascending datetime, item id tiebreak, requested band order
	require.Len(t, refs, 6)
	expected := []struct{ id, band string }{
		{"T32UNU_A", "B04"}, {"T32UNU_A", "B08"},
		{"T32UNU_B", "B04"}, {"T32UNU_B", "B08"},
		{"T32UNU_C", "B04"}, {"T32UNU_C", "B08"},
	}
	for i, e := range expected {
		assert.Equal(t, e.id, refs[i].Item.ID)
		assert.Equal(t, e.band, refs[i].Band)
		assert.Equal(t, i, refs[i].Index)
	}

	// Native grid flows from the item, not from the request
	assert.Equal(t, 32632, refs[0].Epsg)
	assert.Equal(t, 10980, refs[0].Width)
	require.NotNil(t, refs[0].PixToCRS)
	x, y := refs[0].PixToCRS.Transform(0, 0)
	assert.Equal(t, 399960., x)
	assert.Equal(t, 5500020., y)
}

func TestLocateSkipsInvalidAndMissing(t *testing.T) {
	corrupted := sen2SearchItem("CORRUPTED", "2023-06-02T10:30:00Z", "B04")
	corrupted["bbox"] = []float64{-179, -22, 179, -21}
	server := stacServer(t, []map[string]interface{}{
		sen2SearchItem("T32UNU_A", "2023-06-01T10:30:00Z", "B04"),
		corrupted,
		sen2SearchItem("T32UNU_B", "2023-06-04T10:30:00Z", "B08"), // no B04 asset
	})
	defer server.Close()

	cgrid, err := grid.ResolveGrid([4]float64{399960, 5490240, 409560, 5500020}, "epsg:32632", 10)
	require.NoError(t, err)

	req := &stacube.CubeRequest{Collection: "sentinel-2-l2a", Bands: []string{"B04"}}
	locator := catalog.NewLocator(catalog.NewClient(server.URL, nil), catalog.NewRegistry())
	tiles, err := locator.Locate(context.Background(), req, cgrid)
	require.NoError(t, err)
	refs := collectTiles(t, tiles)

	// The corrupted footprint and the item missing the band are skipped, not fatal
	require.Len(t, refs, 1)
	assert.Equal(t, "T32UNU_A", refs[0].Item.ID)
}

func TestLocateCancel(t *testing.T) {
	server := stacServer(t, []map[string]interface{}{
		sen2SearchItem("T32UNU_A", "2023-06-01T10:30:00Z", "B04"),
		sen2SearchItem("T32UNU_B", "2023-06-04T10:30:00Z", "B04"),
	})
	defer server.Close()

	cgrid, err := grid.ResolveGrid([4]float64{399960, 5490240, 409560, 5500020}, "epsg:32632", 10)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	req := &stacube.CubeRequest{Collection: "sentinel-2-l2a", Bands: []string{"B04"}}
	locator := catalog.NewLocator(catalog.NewClient(server.URL, nil), catalog.NewRegistry())
	tiles, err := locator.Locate(ctx, req, cgrid)
	require.NoError(t, err)

	<-tiles
	cancel()

	// The producer must terminate and close the channel
	timeout := time.After(5 * time.Second)
	for {
		select {
		case _, ok := <-tiles:
			if !ok {
				return
			}
		case <-timeout:
			t.Fatal("tile stream not closed after cancellation")
		}
	}
}
