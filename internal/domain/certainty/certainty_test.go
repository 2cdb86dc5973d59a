package certainty_test

import (
	"context"
	"math"
	"testing"

	"github.com/okian/farmwatch/internal/domain/certainty"
	"github.com/okian/farmwatch/internal/domain/model"
	"github.com/okian/farmwatch/internal/domain/scoring"
	. "github.com/smartystreets/goconvey/convey"
)

// withoutBorderline mirrors the local rules minus the borderline penalty.
func withoutBorderline(p, v float64) float64 {
	c := 0.85
	if p < 3.0 {
		c += 0.05
	}
	if v < 0.4 {
		c += 0.07
	}
	return scoring.Round3(certainty.Clamp(c))
}

func TestCompute(t *testing.T) {
	Convey("Given the local certainty rules", t, func() {
		Convey("When both readings are critically low", func() {
			So(certainty.Compute(2.1, 0.32), ShouldEqual, 0.97)
		})

		Convey("When both readings are normal", func() {
			So(certainty.Compute(5.5, 0.75), ShouldEqual, 0.85)
		})

		Convey("When the reference score is exactly on the alert threshold", func() {
			c := certainty.Compute(4.0, 0.4)

			Convey("Then the borderline penalty should apply", func() {
				So(c, ShouldEqual, 0.7)
				So(withoutBorderline(4.0, 0.4)-c, ShouldAlmostEqual, 0.15, 1e-9)
			})
		})

		Convey("When the reference score sits on the band edges", func() {
			Convey("Then the lower edge 0.35 should be inclusive", func() {
				So(scoring.Reference(5.0, 0.0), ShouldEqual, 0.35)
				So(certainty.Compute(5.0, 0.0), ShouldEqual, 0.77)
			})

			Convey("Then the upper edge 0.45 should be inclusive", func() {
				So(scoring.Reference(4.5, 0.45), ShouldEqual, 0.45)
				So(certainty.Compute(4.5, 0.45), ShouldEqual, 0.7)
			})

			Convey("Then just above the band should not be penalised", func() {
				So(certainty.Compute(6.43, 0.0), ShouldEqual, 0.92)
			})
		})

		Convey("When a low volume reading is borderline", func() {
			So(certainty.Compute(4.5, 0.35), ShouldEqual, 0.77)
			So(certainty.Compute(2.0, 0.7), ShouldEqual, 0.75)
		})

		Convey("When sweeping the valid input grid", func() {
			Convey("Then certainty should stay in bounds and the penalty should be exactly 0.15", func() {
				for p := 0.0; p <= 10.0; p += 0.1 {
					for v := 0.0; v <= 1.0; v += 0.02 {
						c := certainty.Compute(p, v)
						So(c, ShouldBeBetweenOrEqual, certainty.Min, certainty.Max)
						if certainty.IsBorderline(scoring.Reference(p, v)) {
							So(withoutBorderline(p, v)-c, ShouldAlmostEqual, 0.15, 1e-9)
						} else {
							So(c, ShouldEqual, withoutBorderline(p, v))
						}
					}
				}
			})
		})

		Convey("When computing the same reading twice", func() {
			So(math.Float64bits(certainty.Compute(3.3, 0.21)), ShouldEqual, math.Float64bits(certainty.Compute(3.3, 0.21)))
		})
	})
}

func TestClamp(t *testing.T) {
	Convey("Given values outside the certainty range", t, func() {
		So(certainty.Clamp(0.2), ShouldEqual, certainty.Min)
		So(certainty.Clamp(1.5), ShouldEqual, certainty.Max)
		So(certainty.Clamp(0.6), ShouldEqual, 0.6)
		So(certainty.Clamp(0.99), ShouldEqual, 0.99)
		So(certainty.Clamp(0.8), ShouldEqual, 0.8)
	})
}

func TestLocal_Estimate(t *testing.T) {
	Convey("Given the local estimator", t, func() {
		est := certainty.NewLocal()
		reading := model.Reading{FarmerID: "F-1", DHAPercent: 2.1, MRIVolume: 0.32}

		Convey("When estimating with a live context", func() {
			res, err := est.Estimate(context.Background(), reading)

			Convey("Then it should return the local rule result", func() {
				So(err, ShouldBeNil)
				So(res.Value, ShouldEqual, 0.97)
				So(res.Source, ShouldEqual, model.SourceLocal)
			})
		})

		Convey("When the context is already cancelled", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			_, err := est.Estimate(ctx, reading)

			Convey("Then it should report the cancellation", func() {
				So(err, ShouldEqual, context.Canceled)
			})
		})
	})
}
