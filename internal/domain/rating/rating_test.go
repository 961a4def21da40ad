package rating_test

import (
	"math"
	"sync"
	"testing"

	rating "github.com/okian/arena/internal/domain/rating"
	. "github.com/smartystreets/goconvey/convey"
)

func TestCalculator_Update(t *testing.T) {
	Convey("Given a calculator with the default K of 32", t, func() {
		calc := rating.NewCalculator()
		So(calc.KFactor(), ShouldEqual, 32)

		Convey("When two 1500 profiles meet", func() {
			w, l := calc.Update(1500, 1500)

			Convey("Then the winner gains 16 and the loser drops 16", func() {
				So(w, ShouldEqual, 1516)
				So(l, ShouldEqual, 1484)
			})
		})

		Convey("When the favourite 1600 beats 1400", func() {
			w, l := calc.Update(1600, 1400)

			Convey("Then the change is smaller than an even match", func() {
				So(w, ShouldEqual, 1608)
				So(l, ShouldEqual, 1392)
				So(w-1600, ShouldBeLessThan, 16)
			})
		})

		Convey("When the underdog 1400 beats 1600", func() {
			w, l := calc.Update(1400, 1600)

			Convey("Then the change is larger than an even match", func() {
				So(w, ShouldEqual, 1424)
				So(l, ShouldEqual, 1576)
			})
		})

		Convey("When the same inputs are applied twice", func() {
			w1, l1 := calc.Update(1733, 1291)
			w2, l2 := calc.Update(1733, 1291)

			Convey("Then the results are identical", func() {
				So(w1, ShouldEqual, w2)
				So(l1, ShouldEqual, l2)
			})
		})

		Convey("When ratings are extreme", func() {
			w, l := calc.Update(100_000, -100_000)

			Convey("Then the update is still defined and bounded", func() {
				So(w, ShouldEqual, 100_000)
				So(l, ShouldEqual, -100_000)
			})
		})
	})
}

func TestCalculator_Bounds(t *testing.T) {
	Convey("Given a sweep of rating pairs", t, func() {
		calc := rating.NewCalculator()
		k := int(calc.KFactor())

		Convey("Then each of gain and loss stays within [0, K] and they differ by at most one point", func() {
			for rw := 800; rw <= 2400; rw += 37 {
				for rl := 800; rl <= 2400; rl += 41 {
					w, l := calc.Update(rw, rl)
					gain, loss := w-rw, rl-l
					So(gain, ShouldBeBetweenOrEqual, 0, k)
					So(loss, ShouldBeBetweenOrEqual, 0, k)
					So(math.Abs(float64(gain-loss)), ShouldBeLessThanOrEqualTo, 1)
					if rw >= rl {
						So(gain+loss, ShouldBeLessThanOrEqualTo, k)
					}
				}
			}
		})
	})
}

func TestCalculator_Symmetry(t *testing.T) {
	Convey("Given two ratings", t, func() {
		calc := rating.NewCalculator()

		Convey("Then the favourite's gain plus the underdog's gain is K within rounding", func() {
			for _, pair := range [][2]int{{1500, 1500}, {1600, 1400}, {1812, 1455}, {1200, 2100}} {
				a, b := pair[0], pair[1]
				aw, _ := calc.Update(a, b)
				bw, _ := calc.Update(b, a)
				So(math.Abs(float64((aw-a)+(bw-b))-calc.KFactor()), ShouldBeLessThanOrEqualTo, 1)
			}
		})

		Convey("Then swapping inputs and roles reproduces the mirrored pair", func() {
			// outcome rates a meeting of a and b listed in a fixed order.
			outcome := func(a, b int, aWins bool) (int, int) {
				if aWins {
					return calc.Update(a, b)
				}
				bw, al := calc.Update(b, a)
				return al, bw
			}
			for _, pair := range [][2]int{{1500, 1500}, {1600, 1400}, {1400, 1600}, {1812, 1455}, {1200, 2100}, {0, 3000}} {
				rw, rl := pair[0], pair[1]
				w, l := calc.Update(rw, rl)
				ml, mw := outcome(rl, rw, false)
				So(ml, ShouldEqual, l)
				So(mw, ShouldEqual, w)
				So(w-rw, ShouldEqual, rl-l)
			}
		})

		Convey("Then the mirrored scenarios match the known values", func() {
			w, l := calc.Update(1600, 1400)
			So([]int{w, l}, ShouldResemble, []int{1608, 1392})
			w, l = calc.Update(1400, 1600)
			So([]int{w, l}, ShouldResemble, []int{1424, 1576})
			for _, r := range []int{800, 1500, 2300} {
				w, l = calc.Update(r, r)
				So([]int{w, l}, ShouldResemble, []int{r + 16, r - 16})
			}
		})

		Convey("Then expected scores of both sides sum to one", func() {
			So(rating.ExpectedScore(1600, 1400)+rating.ExpectedScore(1400, 1600), ShouldAlmostEqual, 1.0, 1e-12)
			So(rating.ExpectedScore(1500, 1500), ShouldEqual, 0.5)
		})
	})
}

func TestCalculator_Options(t *testing.T) {
	Convey("Given K factor options", t, func() {
		Convey("When K is set to 16", func() {
			w, l := rating.NewCalculator(rating.WithKFactor(16)).Update(1500, 1500)

			Convey("Then an even match moves each side by 8", func() {
				So(w, ShouldEqual, 1508)
				So(l, ShouldEqual, 1492)
			})
		})

		Convey("When K is non-positive", func() {
			calc := rating.NewCalculator(rating.WithKFactor(-4))

			Convey("Then the default is kept", func() {
				So(calc.KFactor(), ShouldEqual, rating.DefaultKFactor)
			})
		})
	})
}

func TestCalculator_Concurrent(t *testing.T) {
	Convey("Given a shared calculator", t, func() {
		calc := rating.NewCalculator()
		var wg sync.WaitGroup
		results := make([][2]int, 64)
		for i := range results {
			wg.Add(1)
			go func() {
				defer wg.Done()
				w, l := calc.Update(1600, 1400)
				results[i] = [2]int{w, l}
			}()
		}
		wg.Wait()

		Convey("Then every goroutine sees the same pure result", func() {
			for _, r := range results {
				So(r, ShouldResemble, [2]int{1608, 1392})
			}
		})
	})
}
