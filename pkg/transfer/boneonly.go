package transfer

import (
	"fmt"

	"github.com/pkg/errors"
)

// BoneOnlyVariant selects one of the two bone-only landmark sets.
type BoneOnlyVariant int

const (
	// BoneOnlyStandard hides everything up to 150 HU and keeps cortical
	// bone partly translucent.
	BoneOnlyStandard BoneOnlyVariant = iota
	// BoneOnlyDense hides everything up to 180 HU and renders bone more
	// opaque.
	BoneOnlyDense
)

func (v BoneOnlyVariant) String() string {
	switch v {
	case BoneOnlyStandard:
		return "standard"
	case BoneOnlyDense:
		return "dense"
	default:
		return fmt.Sprintf("BoneOnlyVariant(%d)", int(v))
	}
}

// ParseBoneOnlyVariant parses "standard" or "dense". The empty string is
// standard.
func ParseBoneOnlyVariant(s string) (BoneOnlyVariant, error) {
	switch s {
	case "", "standard":
		return BoneOnlyStandard, nil
	case "dense":
		return BoneOnlyDense, nil
	}
	return BoneOnlyStandard, errors.Errorf("unknown bone-only variant %q", s)
}

// Bone landmarks in HU shared by both variants.
const (
	boneRampStart     = 250.0
	boneCorticalOnset = 700.0
	boneDense         = 1500.0
	boneClampTop      = 3000.0
)

type boneOpacities struct {
	threshold              float64
	cortical, dense, clamp float64
}

var boneOnlyTable = map[BoneOnlyVariant]boneOpacities{
	BoneOnlyStandard: {threshold: 150, cortical: 0.35, dense: 0.85, clamp: 0.95},
	BoneOnlyDense:    {threshold: 180, cortical: 0.50, dense: 0.92, clamp: 0.98},
}

// BuildBoneOnly builds transfer functions that suppress soft tissue and show
// only bone. Colour starts at the ramp landmark since everything below it is
// transparent.
func BuildBoneOnly(v BoneOnlyVariant, cal Calibration) Pair {
	t, ok := boneOnlyTable[v]
	if !ok {
		t = boneOnlyTable[BoneOnlyStandard]
	}
	s := cal.HUToScalar

	p := Pair{
		Preset: PresetBoneOnly,
		Color: []ColorPoint{
			{Scalar: s(boneRampStart), R: 0.85, G: 0.82, B: 0.78},
			{Scalar: s(boneCorticalOnset), R: 0.92, G: 0.89, B: 0.85},
			{Scalar: s(boneDense), R: 0.97, G: 0.95, B: 0.93},
			{Scalar: s(boneClampTop), R: 1, G: 1, B: 1},
		},
		Opacity: []OpacityPoint{
			{Scalar: s(t.threshold), Opacity: 0.00},
			{Scalar: s(boneRampStart), Opacity: 0.02},
			{Scalar: s(boneCorticalOnset), Opacity: t.cortical},
			{Scalar: s(boneDense), Opacity: t.dense},
			{Scalar: s(boneClampTop), Opacity: t.clamp},
		},
	}
	p.sortPoints()
	return p
}
