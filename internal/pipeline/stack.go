package pipeline

import (
	"context"
	"fmt"
	imagerect "image"
	"strconv"
	"strings"
	"time"

	"github.com/xcube-dev/stacube/internal/catalog"
	internalImage "github.com/xcube-dev/stacube/internal/image"
	"github.com/xcube-dev/stacube/internal/stacube"
	"github.com/xcube-dev/stacube/internal/utils"
)

// ramSize is the memory budget the default number of workers is derived from
const ramSize = 4 << 30

// CubeSlice is one slice of the cube: the mosaic of one band under one temporal key
type CubeSlice struct {
	Image *stacube.Bitmap
	Err   error

	Key  time.Time
	Band string

	// Items that contributed to the slice, in catalog order
	Items    []*catalog.Item
	Metadata map[string]string

	// Tiles provide direct access to the raw assets of the slice
	Tiles []*catalog.TileRef
}

// CubeInfo stores various information about the cube
type CubeInfo struct {
	NbSlices int
	NbTimes  int
	NbBands  int
	NbTiles  int
}

// MaterializeOptions tunes the materialization of a plan
type MaterializeOptions struct {
	// Format of the slice images: "" for raw bitmaps, "GTiff" for encoded tiffs,
	// "COG" for cloud-optimized tiffs
	Format string
	// Cog layout, when Format is "COG"
	Cog internalImage.CogConfig
	// ValidPixPc: minimum percentage of valid pixels of a slice (-1: keep all slices)
	ValidPixPc int
	// Workers overrides the number of parallel slice assemblies
	Workers int
}

// Materialize reads the rasters of the plan and streams the slices of the cube,
// ordered by temporal key then requested band order. The stream is closed when
// the cube is done or the context is cancelled.
// A slice whose mosaic fails carries the error; the stream continues.
func (p *CubePlan) Materialize(ctx context.Context, opts MaterializeOptions) (CubeInfo, <-chan CubeSlice, error) {
	wktCRS, err := p.Grid.CRS().WKT()
	if err != nil {
		return CubeInfo{}, nil, fmt.Errorf("Materialize.ToWKT: %w", err)
	}
	if opts.ValidPixPc == 0 {
		opts.ValidPixPc = -1
	}

	// One job per slice, one result channel per job
	var unorderedSlices []chan CubeSlice
	for range p.Jobs {
		unorderedSlices = append(unorderedSlices, make(chan CubeSlice))
	}

	orderedSlices := make(chan CubeSlice)
	go orderResults(ctx, unorderedSlices, orderedSlices)

	// Start workers
	{
		jobChan := make(chan *SliceJob, len(p.Jobs))
		nbWorkers := utils.MinI(len(p.Jobs), p.nbWorkers(opts))
		for i := 0; i < nbWorkers; i++ {
			go p.sliceWorker(ctx, jobChan, unorderedSlices, wktCRS, opts)
		}
		for _, job := range p.Jobs {
			jobChan <- job
		}
		close(jobChan)
	}

	return CubeInfo{
		NbSlices: len(p.Jobs),
		NbTimes:  len(p.Times),
		NbBands:  len(p.Request.Bands),
		NbTiles:  p.NbTiles(),
	}, orderedSlices, nil
}

func (p *CubePlan) nbWorkers(opts MaterializeOptions) int {
	if opts.Workers > 0 {
		return opts.Workers
	}
	if p.Request.Chunks.Workers > 0 {
		return p.Request.Chunks.Workers
	}
	sliceBytes := p.Grid.Width() * p.Grid.Height() * stacube.DTypeFLOAT32.Size() * 10
	return utils.MinI(10, utils.MaxI(1, ramSize/sliceBytes))
}

// orderResults waits for the result of workers and streams the results sorted by job.id
func orderResults(ctx context.Context, unordered []chan CubeSlice, ordered chan<- CubeSlice) {
	defer close(ordered)
	var slice CubeSlice
	for _, chanOut := range unordered {
		// Wait for the next job to finish
		select {
		case slice = <-chanOut:
		case <-ctx.Done():
			return
		}

		// Stream the results
		select {
		case ordered <- slice:
		case <-ctx.Done():
			return
		}
	}
}

// sliceWorker panics if a job has no tile
func (p *CubePlan) sliceWorker(ctx context.Context, jobs <-chan *SliceJob, slicesOut []chan CubeSlice, wktCRS string, opts MaterializeOptions) {
	for job := range jobs {
		// In case of early cancellation
		select {
		case <-ctx.Done():
			return
		default:
		}

		outDesc := internalImage.FrameDescriptor{
			WktCRS:      wktCRS,
			PixToCRS:    p.Grid.PixToCRS(),
			Width:       p.Grid.Width(),
			Height:      p.Grid.Height(),
			Resampling:  job.Resampling,
			DataMapping: job.OutMapping,
			ValidPixPc:  opts.ValidPixPc,
		}
		sources := make([]*internalImage.Source, len(job.Tiles))
		for i, tile := range job.Tiles {
			sources[i] = &internalImage.Source{URI: tile.URI, DataMapping: tile.DataMapping}
		}

		start := time.Now()
		var bitmap *stacube.Bitmap
		ds, err := internalImage.MosaicSources(ctx, sources, &outDesc, p.Request.Overlap)
		if err == nil {
			switch opts.Format {
			case "GTiff":
				bitmap = stacube.NewBitmapHeader(imagerect.Rect(0, 0, outDesc.Width, outDesc.Height), outDesc.DataMapping.DType, 1)
				bitmap.Bytes, err = internalImage.FrameToTiffAsBytes(ds, wktCRS, sliceTags(job))
			case "COG":
				cog := opts.Cog
				if cog.Resampling == stacube.ResamplingUNDEFINED {
					cog.Resampling = job.Resampling
				}
				bitmap = stacube.NewBitmapHeader(imagerect.Rect(0, 0, outDesc.Width, outDesc.Height), outDesc.DataMapping.DType, 1)
				bitmap.Bytes, err = internalImage.FrameToCogAsBytes(ds, cog, job.OutMapping, wktCRS, sliceTags(job))
			default:
				bitmap, err = stacube.NewBitmapFromDataset(ds)
			}
			ds.Close()
		}

		metadata := map[string]string{fmt.Sprintf("Mosaic %d", len(job.Tiles)): fmt.Sprintf("%v", time.Since(start))}

		// Send bitmap
		select {
		case <-ctx.Done():
			return
		case slicesOut[job.ID] <- CubeSlice{
			Image:    bitmap,
			Err:      err,
			Key:      job.Key,
			Band:     job.Band,
			Items:    sliceItems(job),
			Metadata: metadata,
			Tiles:    job.Tiles,
		}:
		}
	}
}

// sliceItems returns the distinct items of the job, in catalog order
func sliceItems(job *SliceJob) []*catalog.Item {
	var items []*catalog.Item
	seen := map[string]struct{}{}
	for _, tile := range job.Tiles {
		if _, ok := seen[tile.Item.ID]; !ok {
			seen[tile.Item.ID] = struct{}{}
			items = append(items, tile.Item)
		}
	}
	return items
}

// sliceTags returns the metadata tags written into the slice image
func sliceTags(job *SliceJob) map[string]string {
	tags := map[string]string{
		"datetime": job.Key.UTC().Format(time.RFC3339),
		"band":     job.Band,
	}
	var ids []string
	for _, item := range sliceItems(job) {
		ids = append(ids, item.ID)
	}
	tags["items"] = strings.Join(ids, ",")

	angles := utils.StringSet{}
	for _, tile := range job.Tiles {
		if tile.AngleHref != "" && !angles.Exists(tile.AngleHref) {
			tags["viewing_angles."+strconv.Itoa(len(angles))] = tile.AngleHref
			angles.Push(tile.AngleHref)
		}
	}
	return tags
}
