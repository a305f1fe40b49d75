package particles

import (
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/viscosim/internal/constraint"
	"github.com/san-kum/viscosim/internal/dynamo"
	"github.com/san-kum/viscosim/internal/neighbor"
)

var _ = Describe("ViscoplasticBody", func() {
	const step = 0.001

	Describe("advance", func() {
		var (
			body *ViscoplasticBody
			spy  *spied
		)

		BeforeEach(func() {
			var err error
			body, spy, err = initializedBody(lattice(6, 0.004))
			Expect(err).NotTo(HaveOccurred())
			body.Velocities()[0] = dynamo.Coord{X: -0.2, Y: 0.1}
			body.Velocities()[5] = dynamo.Coord{X: 0.3}
		})

		It("calls the collaborators in the fixed order", func() {
			Expect(body.Advance(step)).To(Succeed())
			Expect(spy.log.calls).To(Equal([]string{
				"integrator.begin",
				"integrator.integrate",
				"neighborhood.compute",
				"elastoplasticity.solve_elasticity",
				"neighborhood.compute",
				"elastoplasticity.apply_plasticity",
				"elastoplasticity.reset_rest_shape",
				"viscosity.constrain",
				"integrator.end",
			}))
			Expect(spy.recorder.stages()).To(Equal(body.Stages()))
		})

		It("rebuilds the neighborhood exactly twice per step", func() {
			for i := 0; i < 3; i++ {
				spy.log.calls = nil
				Expect(body.Advance(step)).To(Succeed())
				Expect(spy.log.count("neighborhood.compute")).To(Equal(2))
			}
		})

		It("hands the second neighborhood to plasticity and viscosity", func() {
			Expect(body.Advance(step)).To(Succeed())
			first, second := spy.nbrs.lastStep()

			Expect(sameList(spy.plast.solveSaw, first)).To(BeTrue())
			Expect(sameList(spy.plast.applySaw, second)).To(BeTrue())
			Expect(sameList(spy.plast.resetSaw, second)).To(BeTrue())
			Expect(sameList(spy.visc.saw, second)).To(BeTrue())
			Expect(sameList(spy.plast.applySaw, first)).To(BeFalse())
		})

		It("resets the rest shape after applying plasticity", func() {
			Expect(body.Advance(step)).To(Succeed())
			apply := spy.log.index("elastoplasticity.apply_plasticity")
			reset := spy.log.index("elastoplasticity.reset_rest_shape")
			Expect(apply).To(BeNumerically(">=", 0))
			Expect(reset).To(BeNumerically(">", apply))
		})

		It("keeps the particle arrays the same length", func() {
			for i := 0; i < 5; i++ {
				Expect(body.Advance(step)).To(Succeed())
				Expect(body.Positions()).To(HaveLen(6))
				Expect(body.Velocities()).To(HaveLen(6))
				Expect(body.Forces()).To(HaveLen(6))
			}
		})

		It("never invokes the density projection", func() {
			for i := 0; i < 3; i++ {
				Expect(body.Advance(step)).To(Succeed())
			}
			Expect(spy.log.count("pbd.constrain")).To(BeZero())
		})
	})

	DescribeTable("particle counts stay fixed",
		func(n int) {
			body, _, err := initializedBody(lattice(n, 0.003))
			Expect(err).NotTo(HaveOccurred())
			body.SetGravity(dynamo.Coord{Y: -9.8})
			for i := 0; i < 4; i++ {
				Expect(body.Advance(step)).To(Succeed())
			}
			Expect(body.Positions()).To(HaveLen(n))
			Expect(body.Velocities()).To(HaveLen(n))
			Expect(body.Forces()).To(HaveLen(n))
			Expect(body.Neighborhood().Len()).To(Equal(n))
		},
		Entry("empty", 0),
		Entry("single", 1),
		Entry("pair", 2),
		Entry("block", 27),
	)

	Describe("horizon", func() {
		It("is one shared value for every consumer", func() {
			body, err := NewViscoplasticBody("body")
			Expect(err).NotTo(HaveOccurred())

			check := func(h float64) {
				Expect(body.NeighborSearch().InRadius().Value()).To(Equal(h))
				Expect(body.DensityConstraint().InSmoothingLength().Value()).To(Equal(h))
				Expect(body.Viscosity().InSmoothingLength().Value()).To(Equal(h))
			}
			check(DefaultHorizon)
			Expect(body.SetHorizon(0.02)).To(Succeed())
			check(0.02)

			Expect(body.NeighborSearch().InRadius().Source()).To(BeIdenticalTo(body.HorizonField()))
			Expect(body.DensityConstraint().InSmoothingLength().Source()).To(BeIdenticalTo(body.HorizonField()))
			Expect(body.Viscosity().InSmoothingLength().Source()).To(BeIdenticalTo(body.HorizonField()))
		})

		It("changes the neighborhood on the next rebuild", func() {
			body, err := NewViscoplasticBody("body")
			Expect(err).NotTo(HaveOccurred())
			body.PointSet().SetPoints(lattice(2, 0.01))
			Expect(body.Initialize()).To(Succeed())
			Expect(body.Neighborhood().Mean()).To(BeZero())

			Expect(body.SetHorizon(0.015)).To(Succeed())
			Expect(body.Advance(step)).To(Succeed())
			Expect(body.Neighborhood().Mean()).To(Equal(1.0))
		})
	})

	Describe("topology", func() {
		var body *ViscoplasticBody

		BeforeEach(func() {
			var err error
			body, err = NewViscoplasticBody("body")
			Expect(err).NotTo(HaveOccurred())
			body.Mesh().SetPoints([]dynamo.Coord{{X: 0.001}, {X: 0.007, Y: 0.002}, {Y: 0.006}})
			body.PointSet().SetPoints(lattice(4, 0.003))
			Expect(body.Initialize()).To(Succeed())
			body.SetVelocity(dynamo.Coord{X: 0.5, Z: -0.2})
			for i := 0; i < 3; i++ {
				Expect(body.Advance(step)).To(Succeed())
			}
		})

		It("is idempotent when positions do not change", func() {
			Expect(body.UpdateTopology()).To(Succeed())
			once := dynamo.CloneCoords(body.Mesh().Points())
			Expect(body.UpdateTopology()).To(Succeed())
			Expect(body.Mesh().Points()).To(Equal(once))
		})

		It("copies positions into the particle set", func() {
			Expect(body.UpdateTopology()).To(Succeed())
			Expect(body.PointSet().Points()).To(Equal(body.Positions()))
		})

		It("leaves the particles alone when mapping", func() {
			before := dynamo.CloneCoords(body.Positions())
			Expect(body.UpdateTopology()).To(Succeed())
			Expect(body.Positions()).To(Equal(before))
		})

		It("round-trips a translation", func() {
			Expect(body.UpdateTopology()).To(Succeed())
			pos := dynamo.CloneCoords(body.Positions())
			mesh := dynamo.CloneCoords(body.Mesh().Points())

			offset := dynamo.Coord{X: 0.3, Y: -1.2, Z: 0.05}
			Expect(body.Translate(offset)).To(Succeed())
			Expect(dynamo.MaxDelta(body.Positions(), pos)).To(BeNumerically(">", 0.1))

			Expect(body.Translate(dynamo.Coord{X: -offset.X, Y: -offset.Y, Z: -offset.Z})).To(Succeed())
			Expect(dynamo.MaxDelta(body.Positions(), pos)).To(BeNumerically("<", 1e-12))
			Expect(dynamo.MaxDelta(body.Mesh().Points(), mesh)).To(BeNumerically("<", 1e-12))

			Expect(body.UpdateTopology()).To(Succeed())
			Expect(dynamo.MaxDelta(body.Mesh().Points(), mesh)).To(BeNumerically("<", 1e-12))
		})

		It("scales both representations alike", func() {
			Expect(body.UpdateTopology()).To(Succeed())
			pos := dynamo.CloneCoords(body.Positions())
			mesh := dynamo.CloneCoords(body.Mesh().Points())

			Expect(body.Scale(2)).To(Succeed())
			for i := range pos {
				Expect(body.Positions()[i].X).To(BeNumerically("~", 2*pos[i].X, 1e-12))
			}
			for i := range mesh {
				Expect(body.Mesh().Points()[i].Y).To(BeNumerically("~", 2*mesh[i].Y, 1e-12))
			}

			Expect(body.UpdateTopology()).To(Succeed())
			for i := range mesh {
				Expect(body.Mesh().Points()[i].Y).To(BeNumerically("~", 2*mesh[i].Y, 1e-12))
			}
		})
	})

	Describe("construction", func() {
		It("rejects a cyclic wiring without leaving edges behind", func() {
			nbrs := neighbor.NewQuery("n")
			plast := constraint.NewElastoplasticity("e")
			Expect(connectBack(plast, nbrs)).To(Succeed())

			body, err := NewViscoplasticBody("body", WithNeighborSearch(nbrs), WithElastoplasticity(plast))
			Expect(err).To(MatchError(dynamo.ErrCycle))
			Expect(body).To(BeNil())

			Expect(nbrs.InPosition().Source()).To(BeNil())
			Expect(nbrs.InRadius().Source()).To(BeNil())
			Expect(plast.InPosition().Source()).To(BeNil())
			Expect(plast.InVelocity().Source()).To(BeNil())
			Expect(nbrs.OutNeighborhood().Targets()).To(BeEmpty())
		})
	})

	Describe("scenarios", func() {
		It("keeps an isolated particle still", func() {
			body, err := NewViscoplasticBody("body")
			Expect(err).NotTo(HaveOccurred())
			Expect(body.Horizon()).To(Equal(0.0085))
			body.PointSet().SetPoints([]dynamo.Coord{{X: 0.1, Y: 0.2, Z: 0.3}})
			Expect(body.Initialize()).To(Succeed())

			Expect(body.Advance(step)).To(Succeed())
			Expect(body.Positions()[0]).To(Equal(dynamo.Coord{X: 0.1, Y: 0.2, Z: 0.3}))
			Expect(body.Velocities()[0]).To(Equal(dynamo.Coord{}))
		})

		It("runs elasticity and plasticity with zero friction and cohesion", func() {
			body, spy, err := initializedBody(lattice(2, 0.005))
			Expect(err).NotTo(HaveOccurred())
			Expect(body.Elastoplasticity().FrictionAngle()).To(BeZero())
			Expect(body.Elastoplasticity().Cohesion()).To(BeZero())

			body.Velocities()[1] = dynamo.Coord{X: 0.2}
			Expect(body.Advance(step)).To(Succeed())
			Expect(spy.log.count("elastoplasticity.solve_elasticity")).To(Equal(1))
			Expect(spy.log.count("elastoplasticity.apply_plasticity")).To(Equal(1))
			Expect(dynamo.ValidCoords(body.Positions())).To(BeTrue())
			Expect(math.Abs(body.Positions()[1].X - 0.005)).To(BeNumerically(">", 0))
		})
	})
})
