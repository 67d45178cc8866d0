package proj_test

import (
	"testing"

	"github.com/airbusgeo/godal"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"github.com/xcube-dev/stacube/internal/utils/affine"
	"github.com/xcube-dev/stacube/internal/utils/proj"
)

func TestProj(t *testing.T) {
	godal.RegisterAll()
	RegisterFailHandler(Fail)
	RunSpecs(t, "Proj Suite")
}

var _ = Describe("Ring", func() {
	var pixToCRS *affine.Affine
	var ring, ringExpected proj.Ring

	var (
		itShouldBeEqual = func(ring, expected *proj.Ring) {
			It("it should be equal", func() {
				Expect(ring.Equal(expected)).To(BeTrue())
			})
		}
	)

	BeforeEach(func() {
		pixToCRS = affine.Translation(453120, 5338560).Multiply(affine.Scale(10, -10))
		ringExpected = proj.NewRingFlat(4326, []float64{453120, 5334400, 453120, 5338560, 499520, 5338560, 499520, 5334400, 453120, 5334400})
	})

	Describe("NewRingFromExtent", func() {
		JustBeforeEach(func() {
			ring = proj.NewRingFromExtent(pixToCRS, 4640, 416, 4326)
		})

		Context("create ring", func() {
			itShouldBeEqual(&ring, &ringExpected)
		})
	})
})

var _ = Describe("CRS", func() {
	var err error
	var crs *godal.SpatialRef
	var epsg int

	var (
		itShouldNotReturnError = func() {
			It("it should not return error", func() {
				Expect(err).To(BeNil())
			})
		}
	)

	JustBeforeEach(func() {
		crs, err = proj.CRSFromEPSG(epsg)
	})

	Describe("IsGeographic", func() {
		Context("lon/lat crs", func() {
			BeforeEach(func() { epsg = 4326 })
			itShouldNotReturnError()
			It("it should be geographic", func() {
				Expect(proj.IsGeographic(crs)).To(BeTrue())
			})
		})

		Context("utm crs", func() {
			BeforeEach(func() { epsg = 32632 })
			itShouldNotReturnError()
			It("it should not be geographic", func() {
				Expect(proj.IsGeographic(crs)).To(BeFalse())
			})
		})
	})

	Describe("Srid", func() {
		Context("utm crs", func() {
			BeforeEach(func() { epsg = 32701 })
			itShouldNotReturnError()
			It("it should retrieve the epsg", func() {
				Expect(proj.Srid(crs)).To(Equal(32701))
			})
		})
	})
})

var _ = Describe("UTMEpsgFromLonLat", func() {
	Context("northern hemisphere", func() {
		It("it should return a 326xx zone", func() {
			Expect(proj.UTMEpsgFromLonLat(9.0, 48.0)).To(Equal(32632))
		})
	})

	Context("southern hemisphere", func() {
		It("it should return a 327xx zone", func() {
			Expect(proj.UTMEpsgFromLonLat(-179.5, -21.0)).To(Equal(32701))
		})
	})

	Context("zone boundaries", func() {
		It("it should include the western edge", func() {
			Expect(proj.UTMEpsgFromLonLat(6.0, 48.0)).To(Equal(32632))
		})
		It("it should exclude the eastern edge", func() {
			Expect(proj.UTMEpsgFromLonLat(12.0, 48.0)).To(Equal(32633))
		})
	})
})
