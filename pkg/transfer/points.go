package transfer

import (
	"sort"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/interp"
)

// ColorPoint is one control point of a colour transfer function. Channels are
// in [0,1].
type ColorPoint struct {
	Scalar float64 `json:"scalar" yaml:"scalar"`
	R      float64 `json:"r" yaml:"r"`
	G      float64 `json:"g" yaml:"g"`
	B      float64 `json:"b" yaml:"b"`
}

// OpacityPoint is one control point of a scalar opacity function.
type OpacityPoint struct {
	Scalar  float64 `json:"scalar" yaml:"scalar"`
	Opacity float64 `json:"opacity" yaml:"opacity"`
}

// Pair holds the colour and opacity functions built for one preset. Both
// sequences are strictly increasing in Scalar.
type Pair struct {
	Preset  string         `json:"preset" yaml:"preset"`
	Color   []ColorPoint   `json:"color" yaml:"color"`
	Opacity []OpacityPoint `json:"opacity" yaml:"opacity"`
}

// Validate reports whether both sequences hold at least one point and have
// strictly increasing abscissas.
func (p Pair) Validate() error {
	if len(p.Color) == 0 || len(p.Opacity) == 0 {
		return errors.Errorf("transfer function %q has no control points", p.Preset)
	}
	for i := 1; i < len(p.Color); i++ {
		if !(p.Color[i].Scalar > p.Color[i-1].Scalar) {
			return errors.Errorf("colour point %d of %q not increasing: %g after %g",
				i, p.Preset, p.Color[i].Scalar, p.Color[i-1].Scalar)
		}
	}
	for i := 1; i < len(p.Opacity); i++ {
		if !(p.Opacity[i].Scalar > p.Opacity[i-1].Scalar) {
			return errors.Errorf("opacity point %d of %q not increasing: %g after %g",
				i, p.Preset, p.Opacity[i].Scalar, p.Opacity[i-1].Scalar)
		}
	}
	return nil
}

// sortPoints orders both sequences by scalar. Mapping through a negative
// slope reverses the HU order of the landmarks.
func (p *Pair) sortPoints() {
	sort.SliceStable(p.Color, func(i, j int) bool { return p.Color[i].Scalar < p.Color[j].Scalar })
	sort.SliceStable(p.Opacity, func(i, j int) bool { return p.Opacity[i].Scalar < p.Opacity[j].Scalar })
}

// Evaluator interpolates a Pair the way a volume renderer does: piecewise
// linear between control points, clamped to the end values outside them.
type Evaluator struct {
	r, g, b, a  interp.Predictor
	colorConst  [3]float64
	opacConst   float64
	colorSingle bool
	opacSingle  bool
}

// Evaluator fits interpolators to the control points of p.
func (p Pair) Evaluator() (*Evaluator, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	e := &Evaluator{}

	if len(p.Color) == 1 {
		e.colorSingle = true
		e.colorConst = [3]float64{p.Color[0].R, p.Color[0].G, p.Color[0].B}
	} else {
		xs := make([]float64, len(p.Color))
		rs := make([]float64, len(p.Color))
		gs := make([]float64, len(p.Color))
		bs := make([]float64, len(p.Color))
		for i, c := range p.Color {
			xs[i], rs[i], gs[i], bs[i] = c.Scalar, c.R, c.G, c.B
		}
		var err error
		if e.r, err = fitLinear(xs, rs); err != nil {
			return nil, err
		}
		if e.g, err = fitLinear(xs, gs); err != nil {
			return nil, err
		}
		if e.b, err = fitLinear(xs, bs); err != nil {
			return nil, err
		}
	}

	if len(p.Opacity) == 1 {
		e.opacSingle = true
		e.opacConst = p.Opacity[0].Opacity
	} else {
		xs := make([]float64, len(p.Opacity))
		as := make([]float64, len(p.Opacity))
		for i, o := range p.Opacity {
			xs[i], as[i] = o.Scalar, o.Opacity
		}
		var err error
		if e.a, err = fitLinear(xs, as); err != nil {
			return nil, err
		}
	}
	return e, nil
}

func fitLinear(xs, ys []float64) (interp.Predictor, error) {
	var pl interp.PiecewiseLinear
	if err := pl.Fit(xs, ys); err != nil {
		return nil, err
	}
	return &pl, nil
}

// Color returns the interpolated colour at scalar s.
func (e *Evaluator) Color(s float64) (r, g, b float64) {
	if e.colorSingle {
		return e.colorConst[0], e.colorConst[1], e.colorConst[2]
	}
	return e.r.Predict(s), e.g.Predict(s), e.b.Predict(s)
}

// Opacity returns the interpolated opacity at scalar s.
func (e *Evaluator) Opacity(s float64) float64 {
	if e.opacSingle {
		return e.opacConst
	}
	return e.a.Predict(s)
}
