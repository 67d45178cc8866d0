package grid_test

import (
	"math"
	"testing"

	"github.com/airbusgeo/godal"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"github.com/xcube-dev/stacube/internal/grid"
	"github.com/xcube-dev/stacube/internal/stacube"
)

func TestGrid(t *testing.T) {
	godal.RegisterAll()
	RegisterFailHandler(Fail)
	RunSpecs(t, "Grid Suite")
}

var _ = Describe("ResolveGrid", func() {
	var err error
	var g *grid.CanonicalGrid

	var bbox [4]float64
	var crs string
	var resolution float64

	var (
		itShouldNotReturnError = func() {
			It("it should not return error", func() {
				Expect(err).To(BeNil())
			})
		}

		itShouldReturnConfigurationError = func() {
			It("it should return a configuration error", func() {
				Expect(stacube.IsError(err, stacube.ConfigurationError)).To(BeTrue())
			})
		}
	)

	JustBeforeEach(func() {
		g, err = grid.ResolveGrid(bbox, crs, resolution)
	})

	Context("bbox is an exact multiple of the resolution", func() {
		BeforeEach(func() {
			bbox = [4]float64{399960, 5490240, 409560, 5500020}
			crs = "epsg:32632"
			resolution = 10
		})

		itShouldNotReturnError()
		It("it should have the exact size", func() {
			Expect(g.Width()).To(Equal(960))
			Expect(g.Height()).To(Equal(978))
		})
		It("it should anchor the origin on the top-left corner", func() {
			x, y := g.PixToCRS().Transform(0, 0)
			Expect(x).To(Equal(399960.))
			Expect(y).To(Equal(5500020.))
		})
		It("it should cover the bbox exactly", func() {
			Expect(g.Bounds()).To(Equal(bbox))
		})
	})

	Context("bbox is not a multiple of the resolution", func() {
		BeforeEach(func() {
			bbox = [4]float64{399960, 5490240, 399995, 5490275}
			crs = "epsg:32632"
			resolution = 10
		})

		itShouldNotReturnError()
		It("it should round the size up", func() {
			Expect(g.Width()).To(Equal(4))
			Expect(g.Height()).To(Equal(4))
		})
		It("it should cover the bbox", func() {
			b := g.Bounds()
			Expect(b[0]).To(BeNumerically("<=", bbox[0]))
			Expect(b[1]).To(BeNumerically("<=", bbox[1]))
			Expect(b[2]).To(BeNumerically(">=", bbox[2]))
			Expect(b[3]).To(BeNumerically(">=", bbox[3]))
		})
	})

	Context("geographic crs with a degree resolution", func() {
		BeforeEach(func() {
			bbox = [4]float64{9, 47, 10, 48}
			crs = "epsg:4326"
			resolution = 0.001
		})

		itShouldNotReturnError()
		It("it should have a strictly positive size", func() {
			Expect(g.Width()).To(Equal(1000))
			Expect(g.Height()).To(Equal(1000))
		})
	})

	Context("geographic crs with a meter resolution", func() {
		BeforeEach(func() {
			bbox = [4]float64{9, 47, 10, 48}
			crs = "epsg:4326"
			resolution = 10
		})

		itShouldReturnConfigurationError()
	})

	Context("projected crs with a degree resolution", func() {
		BeforeEach(func() {
			bbox = [4]float64{399960, 5490240, 409560, 5500020}
			crs = "epsg:32632"
			resolution = 0.0001
		})

		itShouldReturnConfigurationError()
	})

	Context("empty bbox", func() {
		BeforeEach(func() {
			bbox = [4]float64{399960, 5490240, 399960, 5500020}
			crs = "epsg:32632"
			resolution = 10
		})

		itShouldReturnConfigurationError()
	})

	Context("unknown crs", func() {
		BeforeEach(func() {
			bbox = [4]float64{0, 0, 1, 1}
			crs = "not-a-crs"
			resolution = 10
		})

		itShouldReturnConfigurationError()
	})
})

var _ = Describe("ResolveGridAtPoint", func() {
	var err error
	var g *grid.CanonicalGrid

	var lon, lat float64
	var bboxWidth float64
	var crs string

	var (
		itShouldNotReturnError = func() {
			It("it should not return error", func() {
				Expect(err).To(BeNil())
			})
		}

		itShouldReturnConfigurationError = func() {
			It("it should return a configuration error", func() {
				Expect(stacube.IsError(err, stacube.ConfigurationError)).To(BeTrue())
			})
		}
	)

	JustBeforeEach(func() {
		g, err = grid.ResolveGridAtPoint(lon, lat, bboxWidth, crs, 10)
	})

	Context("point in the native utm zone", func() {
		BeforeEach(func() {
			lon, lat = 9.0, 48.0
			bboxWidth = 1000
			crs = ""
		})

		itShouldNotReturnError()
		It("it should resolve the utm zone of the point", func() {
			Expect(g.Srid()).To(Equal(32632))
		})
		It("it should produce a 100x100 grid", func() {
			Expect(g.Width()).To(Equal(100))
			Expect(g.Height()).To(Equal(100))
		})
		It("it should be centered on the point", func() {
			b := g.Bounds()
			Expect(b[2] - b[0]).To(BeNumerically("~", 1000, 1e-6))
			Expect(b[3] - b[1]).To(BeNumerically("~", 1000, 1e-6))
		})
		It("it should snap the origin to the resolution lattice", func() {
			x0, y0 := g.PixToCRS().Transform(0, 0)
			Expect(math.Mod(x0, 10)).To(BeNumerically("~", 0, 1e-9))
			Expect(math.Mod(y0, 10)).To(BeNumerically("~", 0, 1e-9))
		})
	})

	Context("bbox width above the limit", func() {
		BeforeEach(func() {
			lon, lat = 9.0, 48.0
			bboxWidth = 10000
			crs = ""
		})

		itShouldReturnConfigurationError()
	})

	Context("bbox width is zero", func() {
		BeforeEach(func() {
			lon, lat = 9.0, 48.0
			bboxWidth = 0
			crs = ""
		})

		itShouldReturnConfigurationError()
	})
})

var _ = Describe("CanonicalGrid", func() {
	Describe("Equal", func() {
		It("it should be equal to a grid resolved from the same request", func() {
			g1, err := grid.ResolveGrid([4]float64{399960, 5490240, 409560, 5500020}, "epsg:32632", 10)
			Expect(err).To(BeNil())
			g2, err := grid.ResolveGrid([4]float64{399960, 5490240, 409560, 5500020}, "32632", 10)
			Expect(err).To(BeNil())
			Expect(g1.Equal(g2)).To(BeTrue())
		})

		It("it should differ from a grid with another resolution", func() {
			g1, err := grid.ResolveGrid([4]float64{399960, 5490240, 409560, 5500020}, "epsg:32632", 10)
			Expect(err).To(BeNil())
			g2, err := grid.ResolveGrid([4]float64{399960, 5490240, 409560, 5500020}, "epsg:32632", 20)
			Expect(err).To(BeNil())
			Expect(g1.Equal(g2)).To(BeFalse())
		})
	})
})
