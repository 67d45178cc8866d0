package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xcube-dev/stacube/cmd"
	"github.com/xcube-dev/stacube/interface/storage"
	"github.com/xcube-dev/stacube/interface/storage/uri"
	"github.com/xcube-dev/stacube/internal/catalog"
	"github.com/xcube-dev/stacube/internal/image"
	"github.com/xcube-dev/stacube/internal/log"
	"github.com/xcube-dev/stacube/internal/pipeline"
	"github.com/xcube-dev/stacube/internal/stacube"
)

func main() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	ctx, cancel := context.WithCancel(context.Background())
	runerr := make(chan error)

	go func() {
		runerr <- run(ctx)
	}()

	for {
		select {
		case err := <-runerr:
			if err != nil {
				log.Logger(ctx).Fatal("run error", zap.Error(err))
			}
			return
		case <-quit:
			cancel()
			go func() {
				time.Sleep(30 * time.Second)
				runerr <- fmt.Errorf("did not terminate after 30 seconds")
			}()
		}
	}
}

func run(ctx context.Context) error {
	config, err := newAppConfig()
	if err != nil {
		return err
	}

	if err := cmd.InitGDAL(ctx, config.GDALConfig); err != nil {
		return fmt.Errorf("init gdal: %w", err)
	}

	locator := catalog.NewLocator(catalog.NewClient(config.StacURL, nil), catalog.NewRegistry())
	plan, err := pipeline.BuildPlan(ctx, locator, config.Request)
	if err != nil {
		return err
	}

	info, slices, err := plan.Materialize(ctx, config.Materialize)
	if err != nil {
		return err
	}
	log.Logger(ctx).Info("materializing cube",
		zap.Int("slices", info.NbSlices),
		zap.Int("times", info.NbTimes),
		zap.Int("bands", info.NbBands),
		zap.Int("tiles", info.NbTiles))

	if config.Mucog {
		return stackCube(ctx, slices, config)
	}
	return writeSlices(ctx, slices, config)
}

// writeSlices uploads each slice of the cube to the destination
func writeSlices(ctx context.Context, slices <-chan pipeline.CubeSlice, config *appConfig) error {
	strategy, err := newStrategy(ctx, config.Destination)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(config.Request.Chunks.Workers + 1)
	nbErrors, nbSlices := 0, 0
	for slice := range slices {
		nbSlices++
		if slice.Err != nil {
			log.Logger(ctx).Warn("slice failed", zap.Time("datetime", slice.Key), zap.String("band", slice.Band), zap.Error(slice.Err))
			nbErrors++
			continue
		}
		sliceURI := config.Destination + "/" + sliceName(&slice)
		data := slice.Image.Bytes
		g.Go(func() error {
			return strategy.Upload(gctx, sliceURI, data)
		})
		log.Logger(ctx).Debug("slice", zap.Time("datetime", slice.Key), zap.String("band", slice.Band),
			zap.Int("items", len(slice.Items)), zap.Any("metadata", slice.Metadata))
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("upload: %w", err)
	}
	if nbErrors > 0 {
		return fmt.Errorf("%d/%d slices failed", nbErrors, nbSlices)
	}
	return nil
}

// stackCube writes the slices to a scratch directory, interleaves them into a
// single multi-temporal file and uploads it
func stackCube(ctx context.Context, slices <-chan pipeline.CubeSlice, config *appConfig) error {
	workDir, err := os.MkdirTemp("", "stacube")
	if err != nil {
		return err
	}
	defer os.RemoveAll(workDir)

	var slicePaths []string
	for slice := range slices {
		if slice.Err != nil {
			return fmt.Errorf("slice %s/%s: %w", slice.Key.UTC().Format(time.RFC3339), slice.Band, slice.Err)
		}
		slicePath := path.Join(workDir, sliceName(&slice))
		if err := os.WriteFile(slicePath, slice.Image.Bytes, 0600); err != nil {
			return err
		}
		slicePaths = append(slicePaths, slicePath)
	}
	if len(slicePaths) == 0 {
		return fmt.Errorf("empty cube")
	}

	stackPath, err := image.StackSlices(workDir, slicePaths)
	if err != nil {
		return err
	}

	strategy, err := newStrategy(ctx, config.Destination)
	if err != nil {
		return err
	}
	stackFile, err := os.Open(stackPath)
	if err != nil {
		return err
	}
	return strategy.UploadFile(ctx, config.Destination+"/"+path.Base(stackPath), stackFile)
}

func newStrategy(ctx context.Context, destination string) (storage.Strategy, error) {
	destUri, err := uri.ParseUri(destination)
	if err != nil {
		return nil, fmt.Errorf("destination %s: %w", destination, err)
	}
	strategy, err := destUri.NewStorageStrategy(ctx)
	if err != nil {
		return nil, fmt.Errorf("destination %s: %w", destination, err)
	}
	return strategy, nil
}

func sliceName(slice *pipeline.CubeSlice) string {
	return slice.Key.UTC().Format("20060102T150405") + "_" + slice.Band + ".tif"
}

type appConfig struct {
	StacURL     string
	Destination string
	Mucog       bool
	Request     *stacube.CubeRequest
	Materialize pipeline.MaterializeOptions
	GDALConfig  *cmd.GDALConfig
}

func newAppConfig() (*appConfig, error) {
	config := appConfig{Request: &stacube.CubeRequest{}}

	flag.StringVar(&config.StacURL, "stac-url", "", "url of the stac api the collection is searched on")
	flag.StringVar(&config.Destination, "dest", "", "destination uri the cube is written to (file:///path, gs://bucket/path)")
	flag.BoolVar(&config.Mucog, "mucog", false, "interleave the slices into a single multi-temporal file (requires -format COG)")

	flag.StringVar(&config.Request.Collection, "collection", "", "collection to assemble the cube from")
	bands := flag.String("bands", "", "comma-separated bands (e.g. B04,B08)")
	bbox := flag.String("bbox", "", "bounding box in crs units (minx,miny,maxx,maxy)")
	point := flag.String("point", "", "center of the cube in lon,lat (alternative to -bbox)")
	flag.Float64Var(&config.Request.BboxWidth, "bbox-width", 0, "width in meters of the cube around -point")
	flag.StringVar(&config.Request.CRS, "crs", "", "output crs (e.g. epsg:32632, empty with -point: the utm zone of the point)")
	flag.Float64Var(&config.Request.Resolution, "resolution", 0, "output resolution in crs units")
	fromTime := flag.String("from", "", "start of the time range (RFC3339 or 2006-01-02)")
	toTime := flag.String("to", "", "end of the time range (RFC3339 or 2006-01-02)")
	query := flag.String("query", "", "comma-separated item filters forwarded to the search (e.g. eo:cloud_cover=10)")
	groupBy := flag.String("group-by", "TIME", "temporal key of the slices: TIME or SOLARDAY")
	lastValid := flag.Bool("last-valid", false, "where tiles overlap, the last valid pixel in catalog order wins (default: the first)")
	resampling := flag.String("resampling", "", "per-band resampling override (e.g. B04=bilinear,SCL=near)")

	format := flag.String("format", "GTiff", "format of the slices: GTiff or COG")
	compression := flag.String("compression", "lossless", "cog compression: no, lossless or lossy")
	flag.IntVar(&config.Materialize.Cog.OverviewsMinSize, "overviews-min-size", 0, "size of the smallest cog overview (0: no overviews)")
	flag.IntVar(&config.Materialize.ValidPixPc, "min-valid-pix", -1, "minimum percentage of valid pixels of a slice (-1: keep all slices)")
	flag.IntVar(&config.Request.Chunks.SizeX, "chunkSizeX", 0, "block width of the slices in pixels (0: driver default)")
	flag.IntVar(&config.Request.Chunks.SizeY, "chunkSizeY", 0, "block height of the slices in pixels (0: driver default)")
	flag.IntVar(&config.Request.Chunks.Workers, "workers", 0, "number of slices assembled in parallel (0: derived from the memory budget)")
	config.GDALConfig = cmd.GDALConfigFlags()

	flag.Parse()

	if config.StacURL == "" {
		return nil, fmt.Errorf("failed to initialize --stac-url application flag")
	}
	if config.Destination == "" {
		return nil, fmt.Errorf("failed to initialize --dest application flag")
	}
	config.Destination = strings.TrimSuffix(config.Destination, "/")
	config.Request.Bands = splitList(*bands)

	var err error
	if *bbox != "" {
		if config.Request.Bbox, err = parseBbox(*bbox); err != nil {
			return nil, err
		}
	}
	if *point != "" {
		var p [2]float64
		if _, err := fmt.Sscanf(*point, "%f,%f", &p[0], &p[1]); err != nil {
			return nil, fmt.Errorf("invalid -point %s: %w", *point, err)
		}
		config.Request.Point = &p
	}
	if config.Request.FromTime, err = parseTime(*fromTime); err != nil {
		return nil, err
	}
	if config.Request.ToTime, err = parseTime(*toTime); err != nil {
		return nil, err
	}
	if config.Request.Query, err = parsePairs(*query); err != nil {
		return nil, err
	}

	if config.Request.GroupBy, err = stacube.GroupByString(strings.ToUpper(*groupBy)); err != nil {
		return nil, fmt.Errorf("invalid -group-by %s (expecting one of %v)", *groupBy, stacube.GroupByStrings())
	}
	if *lastValid {
		config.Request.Overlap = stacube.OverlapLastValid
	}
	if config.Request.Resampling, err = parseResampling(*resampling); err != nil {
		return nil, err
	}

	switch strings.ToLower(*format) {
	case "gtiff", "tiff":
		config.Materialize.Format = "GTiff"
	case "cog":
		config.Materialize.Format = "COG"
	default:
		return nil, fmt.Errorf("invalid -format %s (expecting GTiff or COG)", *format)
	}
	if config.Mucog && config.Materialize.Format != "COG" {
		return nil, fmt.Errorf("-mucog requires -format COG")
	}
	switch strings.ToLower(*compression) {
	case "no":
		config.Materialize.Cog.Compression = image.CompressionNO
	case "lossless":
		config.Materialize.Cog.Compression = image.CompressionLOSSLESS
	case "lossy":
		config.Materialize.Cog.Compression = image.CompressionLOSSY
	default:
		return nil, fmt.Errorf("invalid -compression %s (expecting no, lossless or lossy)", *compression)
	}
	config.Materialize.Cog.BlockXSize = config.Request.Chunks.SizeX
	config.Materialize.Cog.BlockYSize = config.Request.Chunks.SizeY

	return &config, nil
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	items := strings.Split(s, ",")
	for i := range items {
		items[i] = strings.TrimSpace(items[i])
	}
	return items
}

func parseBbox(s string) ([4]float64, error) {
	var bbox [4]float64
	if _, err := fmt.Sscanf(s, "%f,%f,%f,%f", &bbox[0], &bbox[1], &bbox[2], &bbox[3]); err != nil {
		return bbox, fmt.Errorf("invalid -bbox %s: %w", s, err)
	}
	return bbox, nil
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %s (expecting RFC3339 or 2006-01-02)", s)
	}
	return t, nil
}

func parsePairs(s string) (map[string]string, error) {
	if s == "" {
		return nil, nil
	}
	pairs := map[string]string{}
	for _, pair := range strings.Split(s, ",") {
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("invalid pair %s (expecting key=value)", pair)
		}
		pairs[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return pairs, nil
}

func parseResampling(s string) (map[string]stacube.Resampling, error) {
	pairs, err := parsePairs(s)
	if err != nil {
		return nil, err
	}
	if pairs == nil {
		return nil, nil
	}
	resampling := map[string]stacube.Resampling{}
	for band, mode := range pairs {
		r, err := stacube.ResamplingString(strings.ToUpper(mode))
		if err != nil {
			return nil, fmt.Errorf("invalid resampling %s (expecting one of %v)", mode, stacube.ResamplingStrings())
		}
		resampling[band] = r
	}
	return resampling, nil
}
