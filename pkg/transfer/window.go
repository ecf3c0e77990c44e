package transfer

// MinWindowWidth is the narrowest window accepted. Narrower widths are
// clamped to it.
const MinWindowWidth = 1.0

// WindowLevel is a CT display window in HU.
type WindowLevel struct {
	Center float64 `json:"center" yaml:"center" toml:"center"`
	Width  float64 `json:"width" yaml:"width" toml:"width"`
}

// EffectiveWidth returns Width clamped to MinWindowWidth.
func (w WindowLevel) EffectiveWidth() float64 {
	if w.Width < MinWindowWidth {
		return MinWindowWidth
	}
	return w.Width
}

// Bounds returns the window floor and ceiling in HU.
func (w WindowLevel) Bounds() (low, high float64) {
	width := w.EffectiveWidth()
	return w.Center - width/2, w.Center + width/2
}

// Opacity shoulders extend the ramp beyond the window edges.
const (
	shoulderBelow = 200.0
	shoulderAbove = 500.0
)

// BuildWindow builds a grey ramp over the window and an opacity ramp that is
// near-transparent at the floor and close to opaque above the ceiling.
func BuildWindow(name string, w WindowLevel, cal Calibration) Pair {
	width := w.EffectiveWidth()
	low, high := w.Bounds()
	mid1 := low + width*0.25
	mid2 := low + width*0.75

	grey := func(hu, v float64) ColorPoint {
		return ColorPoint{Scalar: cal.HUToScalar(hu), R: v, G: v, B: v}
	}
	op := func(hu, a float64) OpacityPoint {
		return OpacityPoint{Scalar: cal.HUToScalar(hu), Opacity: a}
	}

	p := Pair{
		Preset: name,
		Color: []ColorPoint{
			grey(low, 0.0),
			grey(mid1, 0.5),
			grey(mid2, 0.8),
			grey(high, 1.0),
		},
		Opacity: []OpacityPoint{
			op(low-shoulderBelow, 0.00),
			op(low, 0.02),
			op(mid1, 0.10),
			op(mid2, 0.35),
			op(high, 0.80),
			op(high+shoulderAbove, 0.95),
		},
	}
	p.sortPoints()
	return p
}
