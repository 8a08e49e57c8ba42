package core_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rv64sim/timing/core"
)

var _ = Describe("Predictor", func() {
	var p *core.Predictor

	BeforeEach(func() {
		p = core.NewPredictor(core.PredictorConfig{BHTSize: 16, BTBSize: 8})
	})

	It("should initially predict taken without a target", func() {
		pred := p.Predict(0x1000)

		Expect(pred.Taken).To(BeTrue())
		Expect(pred.TargetKnown).To(BeFalse())
		Expect(pred.Correct(true, 0x2000)).To(BeFalse())
	})

	It("should learn a taken branch and its target", func() {
		for i := 0; i < 4; i++ {
			p.Update(0x1000, true, 0x2000)
		}

		pred := p.Predict(0x1000)

		Expect(pred.Taken).To(BeTrue())
		Expect(pred.TargetKnown).To(BeTrue())
		Expect(pred.Target).To(Equal(uint64(0x2000)))
		Expect(pred.Correct(true, 0x2000)).To(BeTrue())
		Expect(pred.Correct(true, 0x3000)).To(BeFalse())
	})

	It("should need two wrong outcomes to flip a saturated counter", func() {
		for i := 0; i < 3; i++ {
			p.Update(0x1000, true, 0x2000)
		}

		p.Update(0x1000, false, 0)
		Expect(p.Predict(0x1000).Taken).To(BeTrue())

		p.Update(0x1000, false, 0)
		Expect(p.Predict(0x1000).Taken).To(BeFalse())
	})

	It("should treat a not-taken prediction as correct regardless of target", func() {
		p.Update(0x1000, false, 0)

		pred := p.Predict(0x1000)

		Expect(pred.Taken).To(BeFalse())
		Expect(pred.Correct(false, 0x1004)).To(BeTrue())
	})

	It("should index halfword-aligned PCs separately", func() {
		p.Update(0x1002, false, 0)
		p.Update(0x1002, false, 0)

		Expect(p.Predict(0x1000).Taken).To(BeTrue())
		Expect(p.Predict(0x1002).Taken).To(BeFalse())
	})

	It("should not return a target stored for another PC", func() {
		p.Update(0x1000, true, 0x2000)

		// 0x1010 maps to the same target buffer entry.
		Expect(p.Predict(0x1010).TargetKnown).To(BeFalse())
	})

	It("should count direction outcomes", func() {
		p.Update(0x1000, true, 0x2000)
		p.Update(0x1000, false, 0)

		stats := p.Stats()
		Expect(stats.Correct).To(Equal(uint64(1)))
		Expect(stats.Mispredictions).To(Equal(uint64(1)))
	})

	It("should reset tables and statistics", func() {
		p.Update(0x1000, false, 0)
		p.Update(0x1000, false, 0)
		p.Predict(0x1000)

		p.Reset()

		Expect(p.Stats()).To(Equal(core.PredictorStats{}))
		Expect(p.Predict(0x1000).Taken).To(BeTrue())
	})

	DescribeTable("config validation",
		func(config core.PredictorConfig, valid bool) {
			if valid {
				Expect(config.Validate()).To(Succeed())
			} else {
				Expect(config.Validate()).NotTo(Succeed())
			}
		},
		Entry("defaults", core.DefaultPredictorConfig(), true),
		Entry("zero BHT", core.PredictorConfig{BHTSize: 0, BTBSize: 8}, false),
		Entry("non power of two BTB", core.PredictorConfig{BHTSize: 16, BTBSize: 12}, false),
	)
})
