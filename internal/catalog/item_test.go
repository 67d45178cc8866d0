package catalog_test

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/xcube-dev/stacube/internal/catalog"
	"github.com/xcube-dev/stacube/internal/stacube"
)

func newItem(id string, bbox [4]float64, datetime string) *catalog.Item {
	return &catalog.Item{
		ID:         id,
		Collection: "sentinel-2-l2a",
		Bbox:       bbox,
		Properties: map[string]interface{}{"datetime": datetime},
	}
}

func TestCheckValid(t *testing.T) {
	tests := []struct {
		name  string
		item  *catalog.Item
		valid bool
	}{
		{"nominal", newItem("a", [4]float64{9, 47, 10, 48}, "2023-06-01T10:30:00Z"), true},
		{"no id", newItem("", [4]float64{9, 47, 10, 48}, "2023-06-01T10:30:00Z"), false},
		{"nan bbox", newItem("a", [4]float64{math.NaN(), 47, 10, 48}, "2023-06-01T10:30:00Z"), false},
		{"zero area", newItem("a", [4]float64{9, 47, 9, 48}, "2023-06-01T10:30:00Z"), false},
		{"lon out of range", newItem("a", [4]float64{-190, 47, -170, 48}, "2023-06-01T10:30:00Z"), false},
		{"lat out of range", newItem("a", [4]float64{9, 47, 10, 91}, "2023-06-01T10:30:00Z"), false},
		{"corrupted antimeridian bbox", newItem("a", [4]float64{-179, -22, 179, -21}, "2023-06-01T10:30:00Z"), false},
		{"19 degrees is still valid", newItem("a", [4]float64{0, 47, 19, 48}, "2023-06-01T10:30:00Z"), true},
		{"no datetime", newItem("a", [4]float64{9, 47, 10, 48}, ""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.item.CheckValid()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.True(t, stacube.IsError(err, stacube.CatalogDataError), "expecting CatalogDataError, got %v", err)
			}
		})
	}
}

func TestSolarDatetime(t *testing.T) {
	// Central Europe (~10.5E): solar time is utc
	item := newItem("a", [4]float64{10, 47, 11, 48}, "2023-06-01T23:30:00Z")
	assert.Equal(t, time.Date(2023, 6, 1, 23, 30, 0, 0, time.UTC), item.SolarDatetime())

	// New Zealand (~174E): utc+11h, the acquisition belongs to the next solar day
	item = newItem("b", [4]float64{173.5, -42, 174.5, -41}, "2023-06-01T22:10:00Z")
	assert.Equal(t, time.Date(2023, 6, 2, 9, 10, 0, 0, time.UTC), item.SolarDatetime())

	// Same overpass, two utc days, one solar day
	a := newItem("a", [4]float64{173.5, -42, 174.5, -41}, "2023-06-01T23:50:00Z")
	b := newItem("b", [4]float64{173.5, -42, 174.5, -41}, "2023-06-02T00:05:00Z")
	assert.Equal(t, a.SolarDatetime().Truncate(24*time.Hour), b.SolarDatetime().Truncate(24*time.Hour))
}

func TestNativeEpsg(t *testing.T) {
	item := newItem("a", [4]float64{9, 47, 10, 48}, "2023-06-01T10:30:00Z")
	assert.Equal(t, 0, item.NativeEpsg())

	item.Properties["proj:epsg"] = 32632.0
	assert.Equal(t, 32632, item.NativeEpsg())

	delete(item.Properties, "proj:epsg")
	item.Properties["proj:code"] = "EPSG:32733"
	assert.Equal(t, 32733, item.NativeEpsg())
}

func TestProcessingVersion(t *testing.T) {
	item := newItem("a", [4]float64{9, 47, 10, 48}, "2023-06-01T10:30:00Z")
	assert.Equal(t, "", item.ProcessingVersion())
	item.Properties["s2:processing_baseline"] = "05.00"
	assert.Equal(t, "05.00", item.ProcessingVersion())
	item.Properties["processing:version"] = "05.10"
	assert.Equal(t, "05.10", item.ProcessingVersion())
}
