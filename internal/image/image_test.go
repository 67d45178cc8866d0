package image

import (
	"context"
	"math"
	"os"
	"testing"

	"github.com/airbusgeo/godal"
	"github.com/google/uuid"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"github.com/xcube-dev/stacube/internal/stacube"
	"github.com/xcube-dev/stacube/internal/utils"
	"github.com/xcube-dev/stacube/internal/utils/affine"
)

func TestImage(t *testing.T) {
	godal.RegisterAll()
	RegisterFailHandler(Fail)
	RunSpecs(t, "Image Suite")
}

var _ = Describe("CastDatasetOptions", func() {

	var (
		fromDFormat, toDFormat stacube.DataMapping
		returnedOptions        []string
		returnedError          error
	)

	JustBeforeEach(func() {
		returnedOptions, returnedError = CastDatasetOptions(fromDFormat, toDFormat)
	})

	var (
		itShouldNotReturnAnError = func() {
			It("should not return an error", func() {
				Expect(returnedError).To(BeNil())
			})
		}
		itShouldReturnOptions = func(options ...string) {
			It("should return the translate options", func() {
				Expect(returnedOptions).To(Equal(options))
			})
		}
	)

	Context("identical mappings", func() {
		BeforeEach(func() {
			fromDFormat = reflectanceMapping("03.01")
			toDFormat = fromDFormat
		})
		It("should return ErrNoCastToPerform", func() {
			Expect(returnedError).To(Equal(ErrNoCastToPerform))
		})
	})

	Context("reflectance to float32", func() {
		BeforeEach(func() {
			fromDFormat = reflectanceMapping("03.01")
			toDFormat = float32Mapping()
		})
		itShouldNotReturnAnError()
		itShouldReturnOptions("-ot", "Float32", "-a_nodata", "NaN", "-scale", "0", "10000", "0", "1")
	})

	Context("offset reflectance to float32", func() {
		BeforeEach(func() {
			fromDFormat = reflectanceMapping("05.00")
			toDFormat = float32Mapping()
		})
		itShouldNotReturnAnError()
		// The baseline offset shifts the output range, not the scaling factor
		itShouldReturnOptions("-ot", "Float32", "-a_nodata", "NaN", "-scale", "0", "10000", "-0.1", "0.9")
	})

	Context("incompatible exponents", func() {
		BeforeEach(func() {
			fromDFormat = reflectanceMapping("03.01")
			fromDFormat.Exponent = 2
			toDFormat = float32Mapping()
			toDFormat.Exponent = 3
			toDFormat.RangeExt = stacube.Range{Min: 0.5, Max: 1}
		})
		It("should return ErrUnableToCast", func() {
			Expect(returnedError).To(MatchError(ErrUnableToCast))
		})
	})
})

var _ = Describe("WarpFrameOptions", func() {

	var (
		desc            *FrameDescriptor
		returnedOptions []string
	)

	JustBeforeEach(func() {
		returnedOptions = warpFrameOptions(desc)
	})

	Context("canonical frame", func() {
		BeforeEach(func() {
			desc = &FrameDescriptor{
				WktCRS:      "epsg:32632",
				PixToCRS:    affine.Translation(399960, 5500020).Multiply(affine.Scale(10, -10)),
				Width:       960,
				Height:      978,
				Resampling:  stacube.ResamplingBILINEAR,
				DataMapping: float32Mapping(),
			}
		})

		It("should target the frame grid", func() {
			Expect(returnedOptions).To(Equal([]string{
				"-t_srs", "epsg:32632",
				"-ts", "960", "978",
				"-ovr", "AUTO",
				"-wo", "INIT_DEST=NaN",
				"-wm", "500",
				"-ot", "Float32",
				"-r", "BILINEAR",
				"-nomd",
				"-multi",
				"-dstnodata", "NaN",
				"-te", "399960", "5490240", "409560", "5500020",
			}))
		})

		It("should not depend on the frame content", func() {
			Expect(returnedOptions).To(Equal(warpFrameOptions(desc)))
		})
	})

	Context("categorical frame", func() {
		BeforeEach(func() {
			df := stacube.DataFormat{DType: stacube.DTypeUINT8, NoData: 0, Range: stacube.Range{Min: 0, Max: 255}}
			desc = &FrameDescriptor{
				WktCRS:      "epsg:32632",
				Width:       100,
				Height:      100,
				Resampling:  stacube.ResamplingNEAR,
				DataMapping: stacube.DataMapping{DataFormat: df, RangeExt: df.Range, Exponent: 1},
			}
		})

		It("should keep the labels with a nearest resampling", func() {
			Expect(returnedOptions).To(ContainElement("NEAR"))
			Expect(returnedOptions).To(ContainElement("Byte"))
			Expect(returnedOptions).To(ContainElement("INIT_DEST=0"))
		})
	})
})

var _ = Describe("CastValue", func() {
	It("should map the nodata of the source onto the frame format", func() {
		from := reflectanceMapping("05.00")
		to := float32Mapping()
		Expect(castValueBF(0, from, to)).To(Equal(-0.1))
		Expect(castValueBF(11000, from, to)).To(BeNumerically("~", 1.0, 1e-12))
	})

	It("should clamp to the output data type", func() {
		from := float32Mapping()
		from.RangeExt = stacube.Range{Min: -10, Max: 300}
		df := stacube.DataFormat{DType: stacube.DTypeUINT8, NoData: math.NaN(), Range: stacube.Range{Min: 0, Max: 255}}
		to := stacube.DataMapping{DataFormat: df, RangeExt: df.Range, Exponent: 1}
		Expect(castValueBF(1, from, to)).To(Equal(float64(math.MaxUint8)))
	})
})

var _ = Describe("MosaicSources", func() {

	// newTestSource writes a 4x4 float32 raster to /vsimem
	newTestSource := func(epsg int, gt [6]float64, values []float32) *Source {
		sr, err := godal.NewSpatialRefFromEPSG(epsg)
		Expect(err).To(BeNil())
		defer sr.Close()

		uri := "/vsimem/" + uuid.New().String() + ".tif"
		ds, err := godal.Create(godal.GTiff, uri, 1, godal.Float32, 4, 4)
		Expect(err).To(BeNil())
		Expect(ds.SetSpatialRef(sr)).To(BeNil())
		Expect(ds.SetGeoTransform(gt)).To(BeNil())
		Expect(ds.Bands()[0].SetNoData(math.NaN())).To(BeNil())
		Expect(ds.Bands()[0].Write(0, 0, values, 4, 4)).To(BeNil())
		Expect(ds.Close()).To(BeNil())
		return &Source{URI: uri, DataMapping: float32Mapping()}
	}

	values := make([]float32, 16)
	for i := range values {
		values[i] = float32(i) / 16
	}

	nativeDesc := func() *FrameDescriptor {
		return &FrameDescriptor{
			WktCRS:      "epsg:32632",
			PixToCRS:    affine.Translation(399960, 5500020).Multiply(affine.Scale(10, -10)),
			Width:       4,
			Height:      4,
			Resampling:  stacube.ResamplingNEAR,
			DataMapping: float32Mapping(),
			ValidPixPc:  -1,
		}
	}

	// readTag reopens the encoded frame and returns one of its metadata items
	readTag := func(tif []byte, key string) string {
		f, err := os.CreateTemp("", "frame*.tif")
		Expect(err).To(BeNil())
		defer os.Remove(f.Name())
		_, err = f.Write(tif)
		Expect(err).To(BeNil())
		Expect(f.Close()).To(BeNil())

		ds, err := godal.Open(f.Name())
		Expect(err).To(BeNil())
		defer ds.Close()
		return ds.Metadata(key)
	}

	It("should return a single-tile frame unchanged", func() {
		source := newTestSource(32632, [6]float64{399960, 10, 0, 5500020, 0, -10}, values)
		defer godal.VSIUnlink(source.URI)

		ds, err := MosaicSources(context.Background(), []*Source{source}, nativeDesc(), stacube.OverlapFirstValid)
		Expect(err).To(BeNil())
		defer ds.Close()

		bitmap, err := stacube.NewBitmapFromDataset(ds)
		Expect(err).To(BeNil())
		pix := utils.SliceByteToFloat32(bitmap.Bytes)
		Expect(pix).To(HaveLen(len(values)))
		for i, v := range values {
			Expect(pix[i]).To(BeNumerically("~", v, 1e-6))
		}
	})

	It("should name the crs tag identically with and without reprojection", func() {
		native := newTestSource(32632, [6]float64{399960, 10, 0, 5500020, 0, -10}, values)
		defer godal.VSIUnlink(native.URI)
		foreign := newTestSource(4326, [6]float64{8.9, 0.01, 0, 49.0, 0, -0.01}, values)
		defer godal.VSIUnlink(foreign.URI)

		sameCRS, err := MosaicSources(context.Background(), []*Source{native}, nativeDesc(), stacube.OverlapFirstValid)
		Expect(err).To(BeNil())
		defer sameCRS.Close()

		crossDesc := nativeDesc()
		crossDesc.PixToCRS = affine.Translation(490000, 5430000).Multiply(affine.Scale(100, -100))
		crossCRS, err := MosaicSources(context.Background(), []*Source{foreign}, crossDesc, stacube.OverlapFirstValid)
		Expect(err).To(BeNil())
		defer crossCRS.Close()

		sameTif, err := FrameToTiffAsBytes(sameCRS, "epsg:32632", nil)
		Expect(err).To(BeNil())
		crossTif, err := FrameToTiffAsBytes(crossCRS, "epsg:32632", nil)
		Expect(err).To(BeNil())

		Expect(readTag(sameTif, "spatial_ref")).To(Equal("epsg:32632"))
		Expect(readTag(crossTif, "spatial_ref")).To(Equal("epsg:32632"))
	})
})

func reflectanceMapping(baseline string) stacube.DataMapping {
	df := stacube.DataFormat{DType: stacube.DTypeUINT16, NoData: 0, Range: stacube.Range{Min: 0, Max: 10000}}
	rangeExt := stacube.Range{Min: 0, Max: 1}
	if baseline >= "04.00" {
		rangeExt = stacube.Range{Min: -0.1, Max: 0.9}
	}
	return stacube.DataMapping{DataFormat: df, RangeExt: rangeExt, Exponent: 1}
}

func float32Mapping() stacube.DataMapping {
	df := stacube.DataFormat{DType: stacube.DTypeFLOAT32, NoData: math.NaN(), Range: stacube.Range{Min: 0, Max: 1}}
	return stacube.DataMapping{DataFormat: df, RangeExt: df.Range, Exponent: 1}
}
